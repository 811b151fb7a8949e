package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/twicecache/twice/internal/adminapi"
	"github.com/twicecache/twice/internal/events"
)

// adminServer is a thin net/http.Server wrapper around adminapi's
// router, kept separate from the client-facing proxy plane (spec
// SUPPLEMENT: the admin surface never participates in the request
// pipeline).
type adminServer struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func newAdminServer(addr string, reg *prometheus.Registry, hub *events.Hub, logger *slog.Logger) *adminServer {
	return &adminServer{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: adminapi.NewRouter(reg, hub, logger),
		},
		logger: logger,
	}
}

func (s *adminServer) ListenAndServe() error {
	s.logger.Info("admin plane listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *adminServer) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
