package history

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the Postgres connection pool behind PostgresStore.
type PostgresConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresStore keeps the history set in a Postgres table, one URL per row.
// It is an alternative to the gzip file for deployments that already run a
// database and want the set queryable.
type PostgresStore struct {
	pool  pgxPool
	table string
}

// NewPostgresStore connects a pool and verifies the configuration.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("history.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgresStoreWithPool(pool, cfg.Table)
}

// NewPostgresStoreWithPool builds a store from an existing pool (primarily
// for testing).
func NewPostgresStoreWithPool(pool pgxPool, table string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "history"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Load reads every recorded URL.
func (s *PostgresStore) Load(ctx context.Context) (*Set, error) {
	query := fmt.Sprintf(`SELECT url FROM %s`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query history rows: %w", err)
	}
	defer rows.Close()

	set := NewSet()
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		set.Add(url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return set, nil
}

// Save upserts every URL in the set. Rows are never deleted; the set only
// grows within a run, so inserting the full snapshot is idempotent.
func (s *PostgresStore) Save(ctx context.Context, set *Set) error {
	query := fmt.Sprintf(`INSERT INTO %s (url) VALUES ($1) ON CONFLICT (url) DO NOTHING`, s.table)
	for _, url := range set.URLs() {
		if _, err := s.pool.Exec(ctx, query, url); err != nil {
			return fmt.Errorf("insert history row: %w", err)
		}
	}
	return nil
}
