// Package cache provides the persistent key-value store used to memoize
// paid external calls across process runs. Entries never expire.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("cache: store is closed")

// Entry is a memoized outcome. NotFound records a lookup that completed
// but produced nothing, so it is not repeated either.
type Entry struct {
	Value     string    `json:"value"`
	NotFound  bool      `json:"not_found"`
	CreatedAt time.Time `json:"created_at"`
}

// Found builds an entry holding value.
func Found(value string) Entry {
	return Entry{Value: value, CreatedAt: time.Now().UTC()}
}

// Missing builds an entry recording an empty outcome.
func Missing() Entry {
	return Entry{NotFound: true, CreatedAt: time.Now().UTC()}
}

// Store is a durable string-keyed map.
type Store interface {
	// Get returns the entry for key and whether it exists.
	Get(ctx context.Context, key string) (Entry, bool, error)
	// Set stores entry under key, replacing any previous value.
	Set(ctx context.Context, key string, entry Entry) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the store's resources.
	Close() error
}

// Memory is an in-process Store. It does not survive restarts and is meant
// for tests and dry runs.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	closed  bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Entry{}, false, ErrClosed
	}
	e, ok := m.entries[key]
	return e, ok, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.entries[key] = entry
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.entries, key)
	return nil
}

// Close implements Store.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Backend names a Store implementation.
type Backend string

// Supported backends.
const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
	BackendMemory   Backend = "memory"
)

// Options selects and configures a backend for Open.
type Options struct {
	Backend     Backend
	SQLitePath  string // sqlite
	DatabaseURL string // postgres
	RedisAddr   string // redis
	RedisPrefix string // redis
}

// Open creates the Store selected by opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		return OpenSQLite(ctx, opts.SQLitePath)
	case BackendPostgres:
		return OpenPostgres(ctx, opts.DatabaseURL)
	case BackendRedis:
		return OpenRedis(ctx, opts.RedisAddr, opts.RedisPrefix)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
