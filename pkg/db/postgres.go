package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"cartoon-ingest/pkg/config"
)

// PostgresClient is a thin wrapper around a sql.DB handle opened with pgx.
type PostgresClient struct {
	db  *sql.DB
	cfg config.PostgresConfig
}

// NewPostgresClient constructs a Postgres client. Call Connect before use.
func NewPostgresClient(cfg config.PostgresConfig) *PostgresClient {
	return &PostgresClient{cfg: cfg}
}

// Connect opens the pool and verifies connectivity.
func (c *PostgresClient) Connect(ctx context.Context) error {
	if c.cfg.DSN == "" {
		return fmt.Errorf("postgres DSN is required")
	}

	db, err := openPool(ctx, c.cfg.DSN, c.cfg)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	c.db = db
	return nil
}

// Close closes the underlying sql.DB handle.
func (c *PostgresClient) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DB exposes the underlying handle for query/exec operations.
func (c *PostgresClient) DB() *sql.DB {
	return c.db
}

// openPool opens a pgx-backed sql.DB, applies pool tuning and pings it.
func openPool(ctx context.Context, dsn string, pool config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxIdle > 0 {
		db.SetConnMaxIdleTime(pool.ConnMaxIdle)
	}
	if pool.ConnMaxLife > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLife)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}
