// Package db stores feeds and articles in PostgreSQL and serves the
// cursor-paginated windows the HTTP layer hands out.
package db

import (
	"context"
	"database/sql"
	"fmt"
)

// DB handles all database operations with a shared connection pool.
type DB struct {
	db *sql.DB
}

// NewDB opens a connection pool and verifies connectivity.
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	pool, err := connection(cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &DB{db: pool}, nil
}

// Close releases the underlying pool.
func (db *DB) Close() error {
	return db.db.Close()
}
