// Package datastore implements the C3 orchestrator: a
// batched multi-key get that partitions cached state into hit/invalid/
// miss, fans out element fetches concurrently, and merges the result.
package datastore

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/twicecache/twice/internal/cachebackend"
	"github.com/twicecache/twice/internal/elements"
	"github.com/twicecache/twice/internal/freshness"
	"github.com/twicecache/twice/internal/metrics"
	"github.com/twicecache/twice/internal/model"
)

// FreshnessNotifier is notified when a cached entry crosses a freshness
// boundary that triggers background action, for the operator event
// stream. Implemented by *events.Hub; kept as an interface here so
// datastore does not need to import events.
type FreshnessNotifier interface {
	FreshnessTransition(key, from, to string)
}

// DataStore is the C3 orchestrator.
type DataStore struct {
	backend   cachebackend.Backend
	registry  *elements.Registry
	refresher *freshness.Refresher
	metrics   *metrics.CacheMetrics
	notifier  FreshnessNotifier
	logger    *slog.Logger
}

// New builds a DataStore. refresher and notifier may both be nil (no
// background refresh / no event stream, e.g. in tests).
func New(backend cachebackend.Backend, registry *elements.Registry, refresher *freshness.Refresher, m *metrics.CacheMetrics, notifier FreshnessNotifier, logger *slog.Logger) *DataStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataStore{backend: backend, registry: registry, refresher: refresher, metrics: m, notifier: notifier, logger: logger}
}

// Get batch-fetches keys, fanning out to the element registry for any
// miss or invalid entry, and returns the union (steps 1-5).
// req is forwarded to Fetch/Extract for any key that needs a fresh
// lookup; it is not consulted for keys already satisfied by the cache.
func (d *DataStore) Get(ctx context.Context, keys []string, req *model.Request) (map[string]elements.Value, error) {
	if len(keys) == 0 {
		return map[string]elements.Value{}, nil
	}

	raw, err := d.backend.Get(ctx, keys)
	if err != nil {
		// Cache backend error: treat every key as a miss.
		d.logger.Warn("cache backend get failed, treating batch as miss", "error", err)
		raw = map[string][]byte{}
	}

	now := time.Now()
	result := make(map[string]elements.Value, len(keys))
	var toFetch []string

	for _, key := range keys {
		kindName, id, ok := elements.Split(key)
		if !ok {
			d.logger.Warn("malformed element key, skipping", "key", key)
			continue
		}
		kind, ok := d.registry.Lookup(kindName)
		if !ok {
			d.logger.Warn("no registered kind for key", "key", key, "kind", kindName)
			continue
		}

		rawBytes, present := raw[key]
		if !present {
			d.bump(d.metrics != nil, kindName, "miss")
			toFetch = append(toFetch, key)
			continue
		}

		val, err := elements.Unmarshal(rawBytes)
		if err != nil {
			d.logger.Warn("cache entry unmarshal failed, treating as miss", "key", key, "error", err)
			toFetch = append(toFetch, key)
			continue
		}

		if !kind.Validate(ctx, id, val, now) {
			d.bump(d.metrics != nil, kindName, "invalid")
			toFetch = append(toFetch, key)
			continue
		}

		d.bump(d.metrics != nil, kindName, "hit")
		result[key] = val

		if kind.NeedsBackgroundRefresh(id, val, now) {
			if d.notifier != nil {
				d.notifier.FreshnessTransition(key, "fresh", "soft_stale")
			}
			if d.refresher != nil {
				d.refresher.Schedule(ctx, key)
			}
		}
	}

	if len(toFetch) == 0 {
		return result, nil
	}

	fetched := d.fetchAndStoreAll(ctx, toFetch, req)
	for k, v := range fetched {
		result[k] = v
	}
	return result, nil
}

// Refresh performs one background fetch-and-store for key. It is the
// callback a freshness.Refresher invokes for a soft-stale page once the
// request that discovered the staleness has already been served from
// the cached copy.
func (d *DataStore) Refresh(ctx context.Context, key string) {
	d.fetchAndStore(ctx, key, nil)
	if d.notifier != nil {
		d.notifier.FreshnessTransition(key, "soft_stale", "fresh")
	}
}

// fetchAndStoreAll launches one goroutine per key (step 3)
// and waits for all of them (step 4); a failed individual fetch yields
// an absent Value rather than failing the batch.
func (d *DataStore) fetchAndStoreAll(ctx context.Context, keys []string, req *model.Request) map[string]elements.Value {
	out := make(map[string]elements.Value, len(keys))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			val := d.fetchAndStore(ctx, key, req)
			mu.Lock()
			out[key] = val
			mu.Unlock()
		}(key)
	}
	wg.Wait()
	return out
}

// fetchAndStore fetches, extracts, and (if cacheable) writes back one
// key. Shared by the foreground miss/invalid path and the background
// soft-stale refresh path.
func (d *DataStore) fetchAndStore(ctx context.Context, key string, req *model.Request) elements.Value {
	kindName, id, ok := elements.Split(key)
	if !ok {
		return elements.Value{Absent: true}
	}
	kind, ok := d.registry.Lookup(kindName)
	if !ok {
		return elements.Value{Absent: true}
	}
	if req == nil {
		req = syntheticRequest(kindName, id)
	}

	start := time.Now()
	raw, err := kind.Fetch(ctx, req, id)
	if d.metrics != nil {
		d.metrics.FetchSecs.WithLabelValues(kindName).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		d.logger.Warn("element fetch failed", "key", key, "error", err)
		raw = elements.Value{Absent: true}
	}

	stored, cacheable, ttl, err := kind.Extract(ctx, req, id, raw)
	if err != nil {
		d.logger.Warn("element extract failed", "key", key, "error", err)
		return elements.Value{Absent: true}
	}
	if cacheable {
		if bytes, merr := elements.Marshal(stored); merr == nil {
			entries := []cachebackend.Entry{{Key: key, Value: bytes}}
			if serr := d.backend.Set(ctx, entries, ttl); serr != nil {
				d.logger.Warn("cache backend set failed", "key", key, "error", serr)
			}
		}
	}
	return stored
}

func (d *DataStore) bump(enabled bool, kind, outcome string) {
	if !enabled {
		return
	}
	switch outcome {
	case "hit":
		d.metrics.Hits.WithLabelValues(kind).Inc()
	case "miss":
		d.metrics.Misses.WithLabelValues(kind).Inc()
	case "invalid":
		d.metrics.Invalid.WithLabelValues(kind).Inc()
	}
}

// syntheticRequest rebuilds a minimal request for a background refresh
// that has no live client request to reuse, parsing host/path back out
// of a page id. Cookie/language variance is not reconstructed — a
// best-effort refresh that does not block the response path.
func syntheticRequest(kindName, id string) *model.Request {
	if kindName != "page" {
		return &model.Request{Method: "GET"}
	}
	pageID := id
	if idx := strings.Index(pageID, "//"); idx >= 0 {
		pageID = pageID[:idx]
	}
	host, path := pageID, "/"
	if slash := strings.IndexByte(pageID, '/'); slash >= 0 {
		host, path = pageID[:slash], pageID[slash:]
	}
	return &model.Request{Method: "GET", Host: host, Path: path}
}
