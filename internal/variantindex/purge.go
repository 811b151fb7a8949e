package variantindex

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twicecache/twice/internal/cachebackend"
	"github.com/twicecache/twice/internal/metrics"
)

// PurgeNotifier is notified once a purge request has been applied, for
// the operator event stream. Implemented by *events.Hub; kept as an
// interface here so variantindex does not need to import events.
type PurgeNotifier interface {
	PurgeCompleted(kind, uri string, keysDeleted int)
}

// Kind identifies the purge-kind values the configured purge header can
// carry.
type Kind string

const (
	KindAll     Kind = "*"
	KindURL     Kind = "url"
	KindSession Kind = "session"
)

// sessionRelatedKinds is the configured set of element kinds considered
// "session-related" for a purge-by-session request.
var sessionRelatedKinds = []string{"favorite", "subscription", "session"}

// Handler interprets purge requests against the cache backend and the
// variant index. Purges are best-effort: they return before cache
// backend propagation necessarily completes.
type Handler struct {
	backend  cachebackend.Backend
	index    *Index
	metrics  *metrics.PurgeMetrics
	notifier PurgeNotifier
	logger   *slog.Logger
}

// NewHandler builds a purge Handler. notifier may be nil (no event
// stream, e.g. when the admin plane is disabled or in tests).
func NewHandler(backend cachebackend.Backend, index *Index, m *metrics.PurgeMetrics, notifier PurgeNotifier, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{backend: backend, index: index, metrics: m, notifier: notifier, logger: logger}
}

// Purge interprets kind against uri and returns the textual summary
// used as the response body ("Expired <kind>_<uri>").
func (h *Handler) Purge(ctx context.Context, kind Kind, uri string) (string, error) {
	if h.metrics != nil {
		h.metrics.RequestsTotal.WithLabelValues(string(normalizeKind(kind))).Inc()
	}

	switch kind {
	case KindAll:
		// The backend doesn't report a total entry count cheaply, so the
		// known-URI count stands in for "keys deleted" on a full flush.
		removed := h.index.Len()
		if err := h.backend.Flush(ctx); err != nil {
			return "", err
		}
		h.index.Flush()
		h.logger.Info("purge: flushed entire cache")
		h.notify(string(kind), uri, removed)
		return fmt.Sprintf("Expired %s_%s", kind, uri), nil

	case KindURL:
		keys := h.index.Keys(uri)
		if len(keys) > 0 {
			if err := h.backend.Delete(ctx, keys); err != nil {
				return "", err
			}
		}
		h.index.Delete(uri)
		h.bumpDeleted(len(keys))
		h.logger.Info("purge: by url", "uri", uri, "keys_removed", len(keys))
		h.notify(string(kind), uri, len(keys))
		return fmt.Sprintf("Expired %s_%s", kind, uri), nil

	case KindSession:
		sessionID := trimLeadingSlash(uri)
		keys := make([]string, 0, len(sessionRelatedKinds))
		for _, k := range sessionRelatedKinds {
			keys = append(keys, k+"_"+sessionID)
		}
		if err := h.backend.Delete(ctx, keys); err != nil {
			return "", err
		}
		h.bumpDeleted(len(keys))
		h.logger.Info("purge: by session", "session_id", sessionID)
		h.notify(string(kind), uri, len(keys))
		return fmt.Sprintf("Expired %s_%s", kind, uri), nil

	default:
		// Any other header value names a single "<kind>_<uri-path>" key.
		key := string(kind) + "_" + trimLeadingSlash(uri)
		if err := h.backend.Delete(ctx, []string{key}); err != nil {
			return "", err
		}
		h.bumpDeleted(1)
		h.logger.Info("purge: single key", "key", key)
		h.notify(string(kind), uri, 1)
		return fmt.Sprintf("Expired %s", key), nil
	}
}

func (h *Handler) notify(kind, uri string, keysDeleted int) {
	if h.notifier != nil {
		h.notifier.PurgeCompleted(kind, uri, keysDeleted)
	}
}

func (h *Handler) bumpDeleted(n int) {
	if h.metrics == nil || n <= 0 {
		return
	}
	h.metrics.KeysDeleted.Add(float64(n))
}

func normalizeKind(kind Kind) Kind {
	switch kind {
	case KindAll, KindURL, KindSession:
		return kind
	default:
		return "other"
	}
}

func trimLeadingSlash(uri string) string {
	if len(uri) > 0 && uri[0] == '/' {
		return uri[1:]
	}
	return uri
}
