// Package kvupstream is the authoritative K/V upstream behind the "kv"
// element kind: binary get/set/increment/delete semantics,
// implemented over Redis — a different role than the C1 cache backend,
// the source of truth a kv fragment's
// fetch() reads from, not the page/session cache).
package kvupstream

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound names the missing-key condition. Get does not return it:
// Get reports a missing key through its ok result with a nil error.
var ErrNotFound = errors.New("kvupstream: key not found")

// Client is the K/V upstream client.
type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// Config configures the upstream connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// New dials the K/V upstream.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		logger: logger,
	}
}

// Get returns (value, true, nil) when present, (nil, false, nil) when
// absent, or an error on connection failure.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set stores value under key with ttl (0 means no expiry).
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Incr increments the integer stored at key by 1, creating it at 1 if
// absent, and returns the new value.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, key).Result()
}

// Decr is the symmetric decrement.
func (c *Client) Decr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Decr(ctx, key).Result()
}

// Delete removes key.
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
