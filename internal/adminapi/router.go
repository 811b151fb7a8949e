// Package adminapi is the operator-facing admin plane: metrics,
// generated API docs, and the event-stream websocket. It never sits on
// the client-facing request path (internal/pipeline, internal/server).
package adminapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/twicecache/twice/internal/events"
)

// NewRouter builds the admin-plane mux.Router: /admin/metrics,
// /admin/docs, /admin/events and /admin/healthz. reg is the Prometheus
// registry backing /admin/metrics; hub is the event stream backing
// /admin/events (may be nil to disable it).
//
// @title twice admin API
// @version 1
// @description Operator surface for the twice edge cache: metrics, the
// purge/freshness event stream, and these generated docs.
// @BasePath /admin
func NewRouter(reg *prometheus.Registry, hub *events.Hub, logger *slog.Logger) *mux.Router {
	if logger == nil {
		logger = slog.Default()
	}
	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))

	router.Path("/admin/metrics").Handler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.PathPrefix("/admin/docs").Handler(httpSwagger.WrapHandler)

	if hub != nil {
		router.HandleFunc("/admin/events", hub.ServeWS)
	}

	router.HandleFunc("/admin/healthz", healthzHandler).Methods(http.MethodGet)

	return router
}

// healthzHandler reports the admin plane itself is up; it says nothing
// about cache/origin health (liveness endpoint, served on
// the client-facing plane, covers that).
func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// loggingMiddleware logs each admin request with request-scoped
// structured fields.
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("admin request",
				"method", r.Method,
				"path", r.URL.Path,
				"duration", time.Since(start),
			)
		})
	}
}
