package freshness

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"
)

// RefreshFunc performs one background refresh fetch-and-store for a page
// key; supplied by the process wiring in cmd/twice (its closure calls
// DataStore.Refresh).
type RefreshFunc func(ctx context.Context, pageKey string)

// Refresher fans out soft-stale background refreshes without blocking
// the request that discovered the staleness, throttled by a token
// bucket so a burst of simultaneously-expiring pages cannot stampede the
// origin.
type Refresher struct {
	limiter *rate.Limiter
	do      RefreshFunc
	logger  *slog.Logger
}

// NewRefresher builds a Refresher with the given rate/burst and refresh
// callback.
func NewRefresher(ratePerSecond float64, burst int, do RefreshFunc, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		do:      do,
		logger:  logger,
	}
}

// Schedule launches a refresh for pageKey in its own goroutine, without
// blocking the caller. If the limiter has no tokens available right now,
// the refresh is dropped — the page stays soft-stale and will be
// reconsidered on the next request, which is strictly better than
// blocking a live request on rate-limiting.
func (r *Refresher) Schedule(ctx context.Context, pageKey string) {
	if !r.limiter.Allow() {
		r.logger.Debug("soft-stale refresh throttled", "key", pageKey)
		return
	}
	go func() {
		// Detach from the triggering request's context: says a
		// closed client connection must not cancel an in-flight refresh.
		refreshCtx := context.WithoutCancel(ctx)
		r.do(refreshCtx, pageKey)
	}()
}
