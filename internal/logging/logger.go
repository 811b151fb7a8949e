// Package logging provides structured logging built on log/slog, with
// request-scoped fields and rotating file output.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/twicecache/twice/internal/config"
)

// ContextKey is the type for context-scoped logging keys.
type ContextKey string

// RequestIDKey is the context key under which the per-request ID is stored.
const RequestIDKey ContextKey = "request_id"

// New builds a slog.Logger from the resolved LogConfig.
func New(cfg config.LogConfig) *slog.Logger {
	level := ParseLevel(cfg.Level)
	writer := setupWriter(cfg)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a config string to a slog.Level, defaulting to Info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupWriter(cfg config.LogConfig) io.Writer {
	if strings.EqualFold(cfg.Output, "file") && cfg.Filename != "" {
		return &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	}
	return os.Stdout
}

// NewRequestID generates a new request-scoped correlation ID.
func NewRequestID() string {
	return uuid.NewString()
}

// WithRequestID returns a context carrying requestID under RequestIDKey.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestIDFromContext extracts the request ID stashed by WithRequestID,
// or "unknown" if none is present.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// WithRequest returns a logger with the request ID bound as an attribute
// for per-request structured logging.
func WithRequest(logger *slog.Logger, ctx context.Context) *slog.Logger {
	return logger.With("request_id", RequestIDFromContext(ctx))
}
