package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// GetCacheEntry retrieves a cache entry by key, or nil when absent
func (db *DB) GetCacheEntry(ctx context.Context, key string) (*CacheEntry, error) {
	var e CacheEntry
	err := db.pool.QueryRow(ctx,
		`SELECT key, value, not_found, created_at FROM search_cache WHERE key = $1`,
		key,
	).Scan(&e.Key, &e.Value, &e.NotFound, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache entry %s: %w", key, err)
	}
	return &e, nil
}

// PutCacheEntry inserts or replaces a cache entry
func (db *DB) PutCacheEntry(ctx context.Context, e *CacheEntry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO search_cache (key, value, not_found, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET value = $2, not_found = $3, created_at = $4`,
		e.Key, e.Value, e.NotFound, created,
	)
	if err != nil {
		return fmt.Errorf("failed to put cache entry %s: %w", e.Key, err)
	}
	return nil
}

// DeleteCacheEntry removes a cache entry; missing keys are ignored
func (db *DB) DeleteCacheEntry(ctx context.Context, key string) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM search_cache WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}
