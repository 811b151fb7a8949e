// Package metrics provides a centralized Prometheus metrics registry for
// twice, organized into cache/pipeline/purge categories.
//
// Metric names start with twice_ and end in _total (counters) or
// _seconds (histograms).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the central handle for every metric twice exports.
// Thread-safe; categories are lazily built once via sync.Once.
type Registry struct {
	reg *prometheus.Registry

	cacheOnce    sync.Once
	pipelineOnce sync.Once
	purgeOnce    sync.Once

	cache    *CacheMetrics
	pipeline *PipelineMetrics
	purge    *PurgeMetrics
}

// CacheMetrics covers the C1 backend and C3 orchestrator.
type CacheMetrics struct {
	Hits      *prometheus.CounterVec
	Misses    *prometheus.CounterVec
	Invalid   *prometheus.CounterVec
	FetchSecs *prometheus.HistogramVec
}

// PipelineMetrics covers C4 request handling.
type PipelineMetrics struct {
	RequestsTotal      *prometheus.CounterVec
	ReconciliationsHit prometheus.Counter
	RenderSeconds      prometheus.Histogram
	SoftStaleRefreshes prometheus.Counter
}

// PurgeMetrics covers C6.
type PurgeMetrics struct {
	RequestsTotal *prometheus.CounterVec
	KeysDeleted   prometheus.Counter
}

// NewRegistry builds a Registry around a fresh prometheus.Registry.
func NewRegistry() *Registry {
	return &Registry{reg: prometheus.NewRegistry()}
}

// Prometheus exposes the underlying collector registry (for an /metrics
// handler).
func (r *Registry) Prometheus() *prometheus.Registry { return r.reg }

// Cache returns (and lazily builds) the cache metrics group.
func (r *Registry) Cache() *CacheMetrics {
	r.cacheOnce.Do(func() {
		c := &CacheMetrics{
			Hits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "twice_cache_hits_total",
				Help: "Cache backend hits by element kind.",
			}, []string{"kind"}),
			Misses: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "twice_cache_misses_total",
				Help: "Cache backend misses by element kind.",
			}, []string{"kind"}),
			Invalid: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "twice_cache_invalid_total",
				Help: "Cache entries rejected by validate() by element kind.",
			}, []string{"kind"}),
			FetchSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "twice_element_fetch_seconds",
				Help:    "Element fetch() latency by kind.",
				Buckets: prometheus.DefBuckets,
			}, []string{"kind"}),
		}
		r.reg.MustRegister(c.Hits, c.Misses, c.Invalid, c.FetchSecs)
		r.cache = c
	})
	return r.cache
}

// Pipeline returns (and lazily builds) the pipeline metrics group.
func (r *Registry) Pipeline() *PipelineMetrics {
	r.pipelineOnce.Do(func() {
		p := &PipelineMetrics{
			RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "twice_pipeline_requests_total",
				Help: "Requests handled by outcome (served/purge/liveness).",
			}, []string{"outcome"}),
			ReconciliationsHit: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "twice_pipeline_variant_reconciliations_total",
				Help: "Requests that required a cookie-variant reconciliation refetch.",
			}),
			RenderSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "twice_pipeline_render_seconds",
				Help:    "Time spent scanning and rendering a response body.",
				Buckets: prometheus.DefBuckets,
			}),
			SoftStaleRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "twice_pipeline_soft_stale_refreshes_total",
				Help: "Background refreshes launched for soft-stale pages.",
			}),
		}
		r.reg.MustRegister(p.RequestsTotal, p.ReconciliationsHit, p.RenderSeconds, p.SoftStaleRefreshes)
		r.pipeline = p
	})
	return r.pipeline
}

// Purge returns (and lazily builds) the purge metrics group.
func (r *Registry) Purge() *PurgeMetrics {
	r.purgeOnce.Do(func() {
		keysDeleted := prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twice_purge_keys_deleted_total",
			Help: "Cache keys removed across all purge requests.",
		})
		p := &PurgeMetrics{
			RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "twice_purge_requests_total",
				Help: "Purge requests by kind (*, url, session, other).",
			}, []string{"kind"}),
			KeysDeleted: keysDeleted,
		}
		r.reg.MustRegister(p.RequestsTotal, p.KeysDeleted)
		r.purge = p
	})
	return r.purge
}
