package elements

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/twicecache/twice/internal/config"
	"github.com/twicecache/twice/internal/freshness"
	"github.com/twicecache/twice/internal/model"
	"github.com/twicecache/twice/internal/originclient"
	"github.com/twicecache/twice/internal/variantindex"
)

// shortStatusTTL is the fixed TTL for 404/304 responses.
const shortStatusTTL = 30 * time.Second

// backendGrace is added on top of a page's own TTL when writing to the
// cache backend, so soft-stale serving can still find the entry after
// its logical expiry (step 4).
const backendGrace = 24 * time.Hour

var noCacheStatuses = map[int]bool{500: true, 502: true, 503: true, 504: true, 307: true}
var shortTTLStatuses = map[int]bool{404: true, 304: true}

// PageKind is the "page" element kind.
type PageKind struct {
	cfg      *config.Config
	origin   *originclient.Client
	variants *variantindex.Index
	logger   *slog.Logger
}

// NewPageKind builds the page Kind.
func NewPageKind(cfg *config.Config, origin *originclient.Client, variants *variantindex.Index, logger *slog.Logger) *PageKind {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageKind{cfg: cfg, origin: origin, variants: variants, logger: logger}
}

func (k *PageKind) Name() string { return "page" }

// ComputeKey derives the page-id portion (without the "page_" prefix)
// from the request and, if non-empty, the cookies the origin has
// declared as varying. A nil/empty cookieNames means "no
// known variance yet" — the state of the very first prefetch before the
// origin has been asked.
func ComputeKey(cfg *config.Config, req *model.Request, cookieNames []string) string {
	id := req.EffectiveHost() + req.Path

	if cfg.HashLangHeader != "" {
		lang := req.Header(cfg.HashLangHeader)
		if lang == "" {
			lang = cfg.HashLangDefault
		}
		if lang != "" {
			id += "/" + lang
		}
	}

	if len(cookieNames) > 0 {
		pairs := make([]string, 0, len(cookieNames))
		for _, name := range cookieNames {
			pairs = append(pairs, name+"="+req.Cookie(name))
		}
		sort.Strings(pairs)
		id += "//" + strings.Join(pairs, ",")
	}
	return id
}

func (k *PageKind) Hash(ctx context.Context, req *model.Request, id string) (string, bool) {
	return ComputeKey(k.cfg, req, nil), true
}

func (k *PageKind) Fetch(ctx context.Context, req *model.Request, id string) (Value, error) {
	resp, directives, err := k.origin.Forward(ctx, req)
	if err != nil {
		k.logger.Warn("page fetch failed", "path", req.Path, "error", err)
		return Value{Absent: true}, nil
	}
	return Value{
		Bytes:               resp.Body,
		Status:              resp.Status,
		ContentType:         responseContentType(resp.Headers),
		OriginMaxAgeSeconds: directives.MaxAgeSeconds,
		OriginVaryCookies:   directives.VaryCookies,
	}, nil
}

func (k *PageKind) Validate(ctx context.Context, id string, cached Value, now time.Time) bool {
	return freshness.Classify(now, cached.ExpiresOn, cached.CacheControlSeconds).IsHit()
}

func (k *PageKind) NeedsBackgroundRefresh(id string, cached Value, now time.Time) bool {
	return freshness.Classify(now, cached.ExpiresOn, cached.CacheControlSeconds).NeedsBackgroundRefresh()
}

// Extract implements page extract algorithm.
func (k *PageKind) Extract(ctx context.Context, req *model.Request, id string, fetched Value) (Value, bool, time.Duration, error) {
	k.variants.Add(req.Path, MakeKey("page", id))

	stored := Value{
		Bytes:               fetched.Bytes,
		Status:              fetched.Status,
		ContentType:         fetched.ContentType,
		OriginMaxAgeSeconds: fetched.OriginMaxAgeSeconds,
		OriginVaryCookies:   fetched.OriginVaryCookies,
	}

	if req.Method != "GET" {
		return stored, false, 0, nil
	}
	if noCacheStatuses[fetched.Status] {
		return stored, false, 0, nil
	}
	if shortTTLStatuses[fetched.Status] {
		now := time.Now()
		stored.ExpiresOn = now.Add(shortStatusTTL)
		stored.CacheControlSeconds = int(shortStatusTTL.Seconds())
		return stored, true, shortStatusTTL + backendGrace, nil
	}
	if fetched.OriginMaxAgeSeconds <= 0 {
		return stored, false, 0, nil
	}

	ttl := time.Duration(fetched.OriginMaxAgeSeconds) * time.Second
	now := time.Now()
	stored.ExpiresOn = now.Add(ttl)
	stored.CacheControlSeconds = fetched.OriginMaxAgeSeconds
	return stored, true, ttl + backendGrace, nil
}
