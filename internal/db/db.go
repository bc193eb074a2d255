// Package db provides PostgreSQL access for the search cache and the log of
// careers-page resolutions.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is empty")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// schema is applied idempotently on startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS search_cache (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL DEFAULT '',
		not_found  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS careers_resolutions (
		id            UUID PRIMARY KEY,
		run_id        UUID,
		company       TEXT NOT NULL,
		status        TEXT NOT NULL,
		url           TEXT,
		similarity    DOUBLE PRECISION NOT NULL DEFAULT 0,
		method        TEXT,
		keywords      TEXT[] NOT NULL DEFAULT '{}',
		error_message TEXT,
		duration_ms   BIGINT NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS careers_resolutions_company_idx ON careers_resolutions (company)`,
	`CREATE INDEX IF NOT EXISTS careers_resolutions_run_idx ON careers_resolutions (run_id)`,
}

// EnsureSchema creates the tables this package uses if they are missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
