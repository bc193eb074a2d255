package cache

import (
	"context"

	"github.com/jonathan/careers-finder/internal/db"
)

// Postgres is a Store backed by the search_cache table.
type Postgres struct {
	db    *db.DB
	owned bool
}

// OpenPostgres connects to databaseURL and ensures the schema exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return &Postgres{db: database, owned: true}, nil
}

// NewPostgres uses an already connected database. Close leaves it open.
func NewPostgres(database *db.DB) *Postgres {
	return &Postgres{db: database}
}

// Get implements Store.
func (p *Postgres) Get(ctx context.Context, key string) (Entry, bool, error) {
	row, err := p.db.GetCacheEntry(ctx, key)
	if err != nil || row == nil {
		return Entry{}, false, err
	}
	return Entry{Value: row.Value, NotFound: row.NotFound, CreatedAt: row.CreatedAt}, true, nil
}

// Set implements Store.
func (p *Postgres) Set(ctx context.Context, key string, entry Entry) error {
	return p.db.PutCacheEntry(ctx, &db.CacheEntry{
		Key:       key,
		Value:     entry.Value,
		NotFound:  entry.NotFound,
		CreatedAt: entry.CreatedAt,
	})
}

// Delete implements Store.
func (p *Postgres) Delete(ctx context.Context, key string) error {
	return p.db.DeleteCacheEntry(ctx, key)
}

// Close implements Store.
func (p *Postgres) Close() error {
	if p.owned {
		p.db.Close()
	}
	return nil
}
