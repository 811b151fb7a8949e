package cachebackend

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// RemoteConfig configures the remote K/V backend.
type RemoteConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Validate reports a malformed RemoteConfig.
func (c *RemoteConfig) Validate() error {
	if c.Addr == "" {
		return ErrInvalidConfig
	}
	if c.PoolSize <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Remote is the C1 backend over a remote K/V store. It holds a
// fixed-size pool of connections to one endpoint and picks one
// uniformly at random per operation — a poor-man's load balance. A
// *redis.Client already multiplexes its own internal pool, so Remote
// keeps a small slice of independently-dialed clients and picks among
// them with math/rand to faithfully reproduce that selection policy rather
// than delegate pooling entirely to one client.
type Remote struct {
	clients []*redis.Client
	logger  *slog.Logger
}

// NewRemote dials a fixed number of independent connections (cfg.PoolSize)
// to the same endpoint.
func NewRemote(cfg *RemoteConfig, logger *slog.Logger) (*Remote, error) {
	if cfg == nil {
		cfg = &RemoteConfig{Addr: "localhost:6379", PoolSize: 8}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	clients := make([]*redis.Client, cfg.PoolSize)
	for i := range clients {
		clients[i] = redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     1,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := clients[0].Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to remote cache", "addr", cfg.Addr, "error", err)
		return nil, ErrConnectionFailed.WithCause(err)
	}

	logger.Info("connected to remote cache backend", "addr", cfg.Addr, "pool_size", cfg.PoolSize)
	return &Remote{clients: clients, logger: logger}, nil
}

func (r *Remote) pick() *redis.Client {
	return r.clients[rand.Intn(len(r.clients))]
}

// Get batches a multi-get via MGET on one randomly-chosen connection. A
// connection-level error fails the whole call; callers treat
// that as "affected keys become misses", which DataStore does naturally
// by routing the error upward rather than poisoning any cache entry.
func (r *Remote) Get(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	client := r.pick()
	vals, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, ErrConnectionFailed.WithCause(err)
	}

	out := make(map[string][]byte, len(keys))
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		out[keys[i]] = []byte(s)
	}
	return out, nil
}

// Set stores every entry atomically per-key via a pipeline, so one slow
// or failing key does not block the others — each entry is atomic on
// its own, not the batch as a whole.
func (r *Remote) Set(ctx context.Context, entries []Entry, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}
	client := r.pick()
	pipe := client.Pipeline()
	for _, e := range entries {
		pipe.Set(ctx, e.Key, e.Value, ttl)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return ErrConnectionFailed.WithCause(err)
	}
	return nil
}

// Delete removes keys.
func (r *Remote) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	client := r.pick()
	if err := client.Del(ctx, keys...).Err(); err != nil {
		return ErrConnectionFailed.WithCause(err)
	}
	return nil
}

// Flush clears the entire remote database selected by DB.
func (r *Remote) Flush(ctx context.Context) error {
	client := r.pick()
	if err := client.FlushDB(ctx).Err(); err != nil {
		return ErrConnectionFailed.WithCause(err)
	}
	return nil
}

// Close tears down every dialed connection; the first error (if any) is
// returned after every client has had a chance to close.
func (r *Remote) Close() error {
	var firstErr error
	for _, c := range r.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
