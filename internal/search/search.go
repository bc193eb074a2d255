// Package search finds a company's careers page through an external web
// search engine and memoizes the answer in a persistent cache.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonathan/careers-finder/internal/cache"
	"github.com/jonathan/careers-finder/internal/trace"
)

// DefaultQueryTemplate builds the search query; %s is the company name.
const DefaultQueryTemplate = "%s official website careers"

// DefaultTimeout bounds one upstream search call.
const DefaultTimeout = 30 * time.Second

// ErrNoResults means the search completed but yielded no usable URL:
// zero organic results or a response without the expected shape.
var ErrNoResults = errors.New("search: no results")

// Engine runs a query against a search backend and returns the URL of the
// first organic result, or ErrNoResults.
type Engine interface {
	Name() string
	FirstResult(ctx context.Context, query string) (string, error)
}

// CachedOptions configures a Cached finder.
type CachedOptions struct {
	QueryTemplate string        // Must contain one %s; DefaultQueryTemplate when empty
	Timeout       time.Duration // Per upstream call; DefaultTimeout when zero
}

// CareersFinder resolves a company name to the top search result for its
// careers page.
type CareersFinder interface {
	FindCareersPage(ctx context.Context, name string) (string, error)
}

// Cached is a CareersFinder over an Engine. Results, including empty ones,
// are cached without expiry; transport failures are not cached. Concurrent
// lookups of the same query share a single upstream call.
type Cached struct {
	engine   Engine
	store    cache.Store
	template string
	timeout  time.Duration
	flights  singleflight.Group
}

// NewCached creates a Cached finder. A nil store disables memoization.
func NewCached(engine Engine, store cache.Store, opts CachedOptions) *Cached {
	if opts.QueryTemplate == "" {
		opts.QueryTemplate = DefaultQueryTemplate
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Cached{
		engine:   engine,
		store:    store,
		template: opts.QueryTemplate,
		timeout:  opts.Timeout,
	}
}

// BuildQuery fills template with the company name.
func BuildQuery(template, name string) string {
	return fmt.Sprintf(template, strings.TrimSpace(name))
}

// CacheKey derives the cache key for a query: trimmed, inner whitespace
// collapsed, lowercased.
func CacheKey(query string) string {
	return "search:" + strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// FindCareersPage returns the first organic result for the company's
// careers query. It fails with ErrNoResults (possibly cached) or with the
// engine's transport error.
func (p *Cached) FindCareersPage(ctx context.Context, name string) (string, error) {
	query := BuildQuery(p.template, name)
	key := CacheKey(query)
	logger := trace.Logger(ctx)

	if entry, ok := p.cached(ctx, key); ok {
		return outcome(entry)
	}

	ch := p.flights.DoChan(key, func() (any, error) {
		// A flight that just finished may have filled the cache after our check.
		if entry, ok := p.cached(ctx, key); ok {
			url, err := outcome(entry)
			return url, err
		}
		// The flight outlives any single waiter, so it carries its own deadline.
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		url, err := p.lookup(callCtx, key, query)
		return url, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			logger.Debug("joined in-flight search", "key", key)
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// cached returns the stored outcome for key. Read failures count as a miss.
func (p *Cached) cached(ctx context.Context, key string) (cache.Entry, bool) {
	if p.store == nil {
		return cache.Entry{}, false
	}
	entry, ok, err := p.store.Get(ctx, key)
	if err != nil {
		trace.Logger(ctx).Warn("search cache read failed", "key", key, "error", err)
		return cache.Entry{}, false
	}
	if ok {
		trace.Logger(ctx).Debug("search cache hit", "key", key, "not_found", entry.NotFound)
	}
	return entry, ok
}

func outcome(entry cache.Entry) (string, error) {
	if entry.NotFound {
		return "", ErrNoResults
	}
	return entry.Value, nil
}

func (p *Cached) lookup(ctx context.Context, key, query string) (string, error) {
	logger := trace.Logger(ctx)
	logger.Debug("search cache miss", "engine", p.engine.Name(), "query", query)

	url, err := p.engine.FirstResult(ctx, query)
	switch {
	case errors.Is(err, ErrNoResults):
		p.remember(ctx, key, cache.Missing())
		return "", ErrNoResults
	case err != nil:
		logger.Warn("search failed", "engine", p.engine.Name(), "error", err)
		return "", fmt.Errorf("%s search failed: %w", p.engine.Name(), err)
	}

	p.remember(ctx, key, cache.Found(url))
	return url, nil
}

func (p *Cached) remember(ctx context.Context, key string, entry cache.Entry) {
	if p.store == nil {
		return
	}
	if err := p.store.Set(ctx, key, entry); err != nil {
		trace.Logger(ctx).Warn("search cache write failed", "key", key, "error", err)
	}
}
