package dbupstream

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/twicecache/twice/internal/config"
)

// Migrate runs every pending goose migration under dir against the
// configured profile.
func Migrate(cfg *config.Config, dir string) error {
	switch cfg.Profile {
	case config.ProfileStandard:
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return NewError("connection_failed", "open postgres for migration", err)
		}
		defer db.Close()
		if err := goose.SetDialect("postgres"); err != nil {
			return NewError("migration_failed", "set goose dialect", err)
		}
		if err := goose.Up(db, dir); err != nil {
			return NewError("migration_failed", "run migrations", err)
		}
		return nil

	case config.ProfileLite:
		db, err := sql.Open("sqlite", cfg.DB.SQLitePath)
		if err != nil {
			return NewError("connection_failed", "open sqlite for migration", err)
		}
		defer db.Close()
		if err := goose.SetDialect("sqlite3"); err != nil {
			return NewError("migration_failed", "set goose dialect", err)
		}
		if err := goose.Up(db, dir); err != nil {
			return NewError("migration_failed", "run migrations", err)
		}
		return nil

	default:
		return NewError("invalid_config", fmt.Sprintf("unknown profile %q", cfg.Profile), nil)
	}
}
