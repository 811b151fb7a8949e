package elements

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/twicecache/twice/internal/kvupstream"
	"github.com/twicecache/twice/internal/model"
)

// kvFragmentTTL is the default fragment TTL for kv-backed fragments.
const kvFragmentTTL = 30 * time.Second

// KVFragmentKind is a kv-backed fragment kind: always eligible even with
// no session, and the only kind whose template commands (incr/decr)
// carry a write side effect.
type KVFragmentKind struct {
	name   string
	client *kvupstream.Client
	logger *slog.Logger
}

// NewKVFragmentKind builds a kv-backed Kind named name (e.g. "kv").
func NewKVFragmentKind(name string, client *kvupstream.Client, logger *slog.Logger) *KVFragmentKind {
	if logger == nil {
		logger = slog.Default()
	}
	return &KVFragmentKind{name: name, client: client, logger: logger}
}

func (k *KVFragmentKind) Name() string { return k.name }

func (k *KVFragmentKind) Hash(ctx context.Context, req *model.Request, id string) (string, bool) {
	if id == "" {
		return "", false
	}
	return id, true
}

func (k *KVFragmentKind) Fetch(ctx context.Context, req *model.Request, id string) (Value, error) {
	val, ok, err := k.client.Get(ctx, k.fullKey(id))
	if err != nil {
		k.logger.Warn("kv fragment fetch failed", "kind", k.name, "id", id, "error", err)
		return Value{Absent: true}, nil
	}
	if !ok {
		return Value{Absent: true}, nil
	}
	return Value{Bytes: val}, nil
}

func (k *KVFragmentKind) Validate(ctx context.Context, id string, cached Value, now time.Time) bool {
	return true
}

func (k *KVFragmentKind) NeedsBackgroundRefresh(id string, cached Value, now time.Time) bool {
	return false
}

func (k *KVFragmentKind) Extract(ctx context.Context, req *model.Request, id string, fetched Value) (Value, bool, time.Duration, error) {
	if fetched.Absent {
		return fetched, false, 0, nil
	}
	return fetched, true, kvFragmentTTL, nil
}

// Increment performs the "incr" template command's side effect: bump
// the authoritative kv value and return the new value as a string.
func (k *KVFragmentKind) Increment(ctx context.Context, id string) (string, error) {
	n, err := k.client.Incr(ctx, k.fullKey(id))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n, 10), nil
}

// Decrement is the symmetric "decr" side effect.
func (k *KVFragmentKind) Decrement(ctx context.Context, id string) (string, error) {
	n, err := k.client.Decr(ctx, k.fullKey(id))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n, 10), nil
}

// SetIfAbsent performs the "incr"/"decr" command's fallback side effect
// when the key has no prior value: set it to arg2 verbatim.
func (k *KVFragmentKind) SetIfAbsent(ctx context.Context, id, value string) error {
	return k.client.Set(ctx, k.fullKey(id), []byte(value), kvFragmentTTL)
}

func (k *KVFragmentKind) fullKey(id string) string {
	return MakeKey(k.name, id)
}
