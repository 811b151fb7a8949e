package dbupstream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twicecache/twice/internal/config"
)

// New selects the Store implementation for cfg.Profile.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.Profile {
	case config.ProfileStandard:
		return NewPostgresStore(ctx, cfg.DB, logger)
	case config.ProfileLite:
		return NewSQLiteStore(ctx, cfg.DB, logger)
	default:
		return nil, NewError("invalid_config", fmt.Sprintf("unknown profile %q", cfg.Profile), nil)
	}
}
