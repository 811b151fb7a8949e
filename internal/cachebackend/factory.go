package cachebackend

import (
	"log/slog"

	"github.com/twicecache/twice/internal/config"
)

// New selects and builds the configured backend, mirroring the
// dbupstream package's profile-selected factory.
func New(cfg *config.Config, logger *slog.Logger) (Backend, error) {
	switch cfg.CacheType {
	case config.CacheMemcache:
		return NewRemote(&RemoteConfig{
			Addr:         cfg.CacheServer,
			PoolSize:     cfg.CachePool,
			DialTimeout:  cfg.OriginTimeout,
			ReadTimeout:  cfg.OriginTimeout,
			WriteTimeout: cfg.OriginTimeout,
		}, logger)
	default:
		return NewMemory(), nil
	}
}
