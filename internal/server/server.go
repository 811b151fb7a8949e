// Package server is the client-facing proxy plane: a net/http.Server
// that adapts raw HTTP into model.Request/model.Response and dispatches
// into the request pipeline, adapted from "parse inbound payload" to
// "parse proxied request" and from JSON response to raw body passthrough.
package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/twicecache/twice/internal/logging"
	"github.com/twicecache/twice/internal/model"
)

// Pipeline is the subset of pipeline.Pipeline the server depends on.
type Pipeline interface {
	Handle(ctx context.Context, req *model.Request) *model.Response
}

// Server is the client-facing HTTP/1.0 listener: the connection is
// closed after each response, no keep-alives.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds a Server listening on addr, dispatching every request into
// pipeline.
func New(addr string, pipeline Pipeline, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/", newHandler(pipeline, logger))

	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: mux,
			// Keep-alives are disabled in ListenAndServe, which mirrors
			// the "Connection: close" contract at the transport level,
			// not just the header.
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// ListenAndServe blocks serving requests until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.httpServer.SetKeepAlivesEnabled(false)
	s.logger.Info("proxy plane listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func newHandler(pipeline Pipeline, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := logging.NewRequestID()
		// Detach from the client connection's context: net/http cancels
		// r.Context() the moment the client disconnects, but an in-flight
		// origin fetch must still finish and populate the cache for later
		// requests even if this one never reads the result. The per-fetch
		// timeout inside originclient.Forward still bounds how long that
		// fetch can run.
		ctx := logging.WithRequestID(context.WithoutCancel(r.Context()), requestID)

		req, err := toModelRequest(r)
		if err != nil {
			logger.Warn("failed to read request body", "error", err, "request_id", requestID)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		resp := pipeline.Handle(ctx, req)
		writeModelResponse(w, resp)
	}
}

func toModelRequest(r *http.Request) (*model.Request, error) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
	}

	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	return &model.Request{
		Method:     r.Method,
		Path:       path,
		Host:       r.Host,
		RealHost:   r.Header.Get("X-Real-Host"),
		Headers:    r.Header,
		Cookies:    model.ParseCookieHeader(r.Header.Get("Cookie")),
		RemoteAddr: r.RemoteAddr,
		Body:       body,
	}, nil
}

func writeModelResponse(w http.ResponseWriter, resp *model.Response) {
	header := w.Header()
	for name, values := range resp.Headers {
		for _, v := range values {
			header.Add(name, v)
		}
	}
	header.Set("Connection", "close")

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	w.Write(resp.Body)
}
