package dbupstream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/twicecache/twice/internal/config"
)

// fragmentTables maps a db-kind element name to its backing table.
var fragmentTables = map[string]string{
	"favorite":     "favorites",
	"subscription": "subscriptions",
}

// PostgresStore backs Store with a pgxpool connection pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects to Postgres using cfg.DB ("standard" profile).
func NewPostgresStore(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, NewError("invalid_config", "parse postgres dsn", err)
	}
	poolCfg.MinConns = cfg.PoolMinConn
	poolCfg.MaxConns = cfg.PoolMaxConn

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, NewError("connection_failed", "connect to postgres", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, NewError("connection_failed", "ping postgres", err)
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (map[string]string, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT name, admin FROM sessions WHERE id = $1`, sessionID)
	var name, admin string
	if err := row.Scan(&name, &admin); err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, NewError("query_failed", "select session", err)
	}
	return map[string]string{"name": name, "admin": admin}, true, nil
}

func (s *PostgresStore) GetFragment(ctx context.Context, kind, id string) (string, bool, error) {
	table, ok := fragmentTables[kind]
	if !ok {
		return "", false, NewError("unknown_kind", fmt.Sprintf("no table for db kind %q", kind), nil)
	}
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE id = $1`, table), id)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, NewError("query_failed", "select fragment", err)
	}
	return value, true, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
