package dbupstream

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/twicecache/twice/internal/config"
)

// SQLiteStore backs Store with the embedded pure-Go SQLite driver, for
// the "lite" deployment profile (local/dev runs, no Postgres required).
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if absent) the SQLite file at cfg.SQLitePath.
func NewSQLiteStore(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		return nil, NewError("connection_failed", "open sqlite", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single-writer
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, NewError("connection_failed", "ping sqlite", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (map[string]string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT name, admin FROM sessions WHERE id = ?`, sessionID)
	var name, admin string
	if err := row.Scan(&name, &admin); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, NewError("query_failed", "select session", err)
	}
	return map[string]string{"name": name, "admin": admin}, true, nil
}

func (s *SQLiteStore) GetFragment(ctx context.Context, kind, id string) (string, bool, error) {
	table, ok := fragmentTables[kind]
	if !ok {
		return "", false, NewError("unknown_kind", fmt.Sprintf("no table for db kind %q", kind), nil)
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE id = ?`, table), id)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, NewError("query_failed", "select fragment", err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
