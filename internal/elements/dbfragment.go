package elements

import (
	"context"
	"log/slog"
	"time"

	"github.com/twicecache/twice/internal/dbupstream"
	"github.com/twicecache/twice/internal/model"
)

// dbFragmentTTL is the fragment TTL for db-backed kinds (favorite,
// subscription). Longer than a kv fragment's since these change less
// often and a purge-by-session already exists for explicit invalidation.
const dbFragmentTTL = 5 * time.Minute

// DBFragmentKind is a DB-backed fragment kind (favorite, subscription —
// the session-related kinds a purge-by-session request invalidates).
// Read-only: unlike kv fragments, db fragments have no incr/decr side
// effect.
type DBFragmentKind struct {
	name   string
	store  dbupstream.Store
	logger *slog.Logger
}

// NewDBFragmentKind builds a DB-backed Kind named name.
func NewDBFragmentKind(name string, store dbupstream.Store, logger *slog.Logger) *DBFragmentKind {
	if logger == nil {
		logger = slog.Default()
	}
	return &DBFragmentKind{name: name, store: store, logger: logger}
}

func (k *DBFragmentKind) Name() string { return k.name }

func (k *DBFragmentKind) Hash(ctx context.Context, req *model.Request, id string) (string, bool) {
	if id == "" {
		return "", false
	}
	return id, true
}

func (k *DBFragmentKind) Fetch(ctx context.Context, req *model.Request, id string) (Value, error) {
	value, ok, err := k.store.GetFragment(ctx, k.name, id)
	if err != nil {
		k.logger.Warn("db fragment fetch failed", "kind", k.name, "id", id, "error", err)
		return Value{Absent: true}, nil
	}
	if !ok {
		return Value{Absent: true}, nil
	}
	return Value{Bytes: []byte(value)}, nil
}

func (k *DBFragmentKind) Validate(ctx context.Context, id string, cached Value, now time.Time) bool {
	return true
}

func (k *DBFragmentKind) NeedsBackgroundRefresh(id string, cached Value, now time.Time) bool {
	return false
}

func (k *DBFragmentKind) Extract(ctx context.Context, req *model.Request, id string, fetched Value) (Value, bool, time.Duration, error) {
	if fetched.Absent {
		return fetched, false, 0, nil
	}
	return fetched, true, dbFragmentTTL, nil
}
