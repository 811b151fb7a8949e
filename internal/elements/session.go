package elements

import (
	"context"
	"log/slog"
	"time"

	"github.com/twicecache/twice/internal/config"
	"github.com/twicecache/twice/internal/dbupstream"
	"github.com/twicecache/twice/internal/model"
)

// sessionTTL is the fixed fragment TTL for session entries.
const sessionTTL = 24 * time.Hour

// SessionKind is the "session" element kind. Its fetch
// source is the DB upstream's parameterized session lookup.
type SessionKind struct {
	cookieName string
	store      dbupstream.Store
	logger     *slog.Logger
}

// NewSessionKind builds the session Kind.
func NewSessionKind(cfg *config.Config, store dbupstream.Store, logger *slog.Logger) *SessionKind {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionKind{cookieName: cfg.SessionCookie, store: store, logger: logger}
}

func (k *SessionKind) Name() string { return "session" }

// Hash returns the session cookie's value as the id, or ok=false if the
// cookie is absent — no session key applies to this request.
func (k *SessionKind) Hash(ctx context.Context, req *model.Request, id string) (string, bool) {
	sessionID := req.Cookie(k.cookieName)
	if sessionID == "" {
		return "", false
	}
	return sessionID, true
}

func (k *SessionKind) Fetch(ctx context.Context, req *model.Request, id string) (Value, error) {
	fields, ok, err := k.store.GetSession(ctx, id)
	if err != nil {
		k.logger.Warn("session fetch failed", "session_id", id, "error", err)
		return Value{Absent: true}, nil
	}
	if !ok {
		return Value{Absent: true}, nil
	}
	return Value{Fields: fields}, nil
}

func (k *SessionKind) Validate(ctx context.Context, id string, cached Value, now time.Time) bool {
	return true
}

func (k *SessionKind) NeedsBackgroundRefresh(id string, cached Value, now time.Time) bool {
	return false
}

func (k *SessionKind) Extract(ctx context.Context, req *model.Request, id string, fetched Value) (Value, bool, time.Duration, error) {
	if fetched.Absent {
		return fetched, false, 0, nil
	}
	return fetched, true, sessionTTL, nil
}
