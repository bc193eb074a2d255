// Package resolver decides whether a company's top search result is its
// careers page. A result is accepted when its domain resembles the company
// name, or failing that, when the page itself mentions hiring vocabulary.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/careers-finder/internal/bounded"
	"github.com/jonathan/careers-finder/internal/domain"
	"github.com/jonathan/careers-finder/internal/search"
	"github.com/jonathan/careers-finder/internal/similarity"
	"github.com/jonathan/careers-finder/internal/trace"
)

// Defaults for Config.
const (
	DefaultSimilarityThreshold = 0.6
	DefaultFallbackTimeout     = 5 * time.Second
	DefaultSearchTimeout       = 30 * time.Second
)

var (
	// ErrSearchFailed is returned when no candidate URL could be obtained.
	// It wraps search.ErrNoResults or the search transport error.
	ErrSearchFailed = errors.New("careers page search failed")
	// ErrNotFound is returned by FindWebsite when no page was accepted.
	ErrNotFound = errors.New("careers page not found")
)

// Status is the outcome of a resolution.
type Status string

const (
	StatusFound       Status = "found"
	StatusNotRelevant Status = "not_relevant"
	StatusFailed      Status = "failed"
)

// Method records which check accepted a URL.
type Method string

const (
	MethodNone       Method = ""
	MethodSimilarity Method = "similarity"
	MethodKeywords   Method = "keywords"
)

// State is a step of the resolution state machine.
type State string

const (
	StateSearching        State = "SEARCHING"
	StateScoring          State = "SCORING"
	StateFallbackChecking State = "FALLBACK_CHECKING"
	StateAccepted         State = "ACCEPTED"
	StateRejected         State = "REJECTED"
	StateFailed           State = "FAILED"
)

// Resolution is the result of resolving one company.
type Resolution struct {
	Company  string        `json:"company"`
	Status   Status        `json:"status"`
	URL      string        `json:"url,omitempty"`
	Score    float64       `json:"score"`
	Method   Method        `json:"method,omitempty"`
	Keywords []string      `json:"keywords,omitempty"`
	States   []State       `json:"states"`
	Duration time.Duration `json:"duration"`
}

// Found reports whether a careers page was accepted.
func (r Resolution) Found() bool {
	return r.Status == StatusFound
}

func (r *Resolution) enter(s State) {
	r.States = append(r.States, s)
}

// KeywordMatcher returns the hiring terms found on a page.
type KeywordMatcher interface {
	Match(ctx context.Context, url string) ([]string, error)
}

// Config tunes a Resolver.
type Config struct {
	SimilarityThreshold float64
	FallbackTimeout     time.Duration
	SearchTimeout       time.Duration
	LabelStrategy       domain.Strategy
}

// DefaultConfig returns the standard thresholds and timeouts.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: DefaultSimilarityThreshold,
		FallbackTimeout:     DefaultFallbackTimeout,
		SearchTimeout:       DefaultSearchTimeout,
		LabelStrategy:       domain.StrategyNaive,
	}
}

// Resolver runs the search, scoring and fallback steps for one company at a
// time. It is safe for concurrent use when its collaborators are.
type Resolver struct {
	finder  search.CareersFinder
	matcher KeywordMatcher
	cfg     Config
}

// New creates a Resolver. Zero config fields take their defaults.
func New(finder search.CareersFinder, matcher KeywordMatcher, cfg Config) *Resolver {
	def := DefaultConfig()
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = def.SimilarityThreshold
	}
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = def.FallbackTimeout
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = def.SearchTimeout
	}
	if cfg.LabelStrategy == "" {
		cfg.LabelStrategy = def.LabelStrategy
	}
	return &Resolver{finder: finder, matcher: matcher, cfg: cfg}
}

// Resolve finds and vets the careers page for name. The returned error is
// non-nil only when the search itself failed (matching ErrSearchFailed) or
// ctx was cancelled. A rejected candidate is StatusNotRelevant with a nil
// error.
func (r *Resolver) Resolve(ctx context.Context, name string) (Resolution, error) {
	if trace.Company(ctx) == "" {
		ctx = trace.WithCompany(ctx, name)
	}
	logger := trace.Logger(ctx)
	start := time.Now()
	res := Resolution{Company: name}

	res.enter(StateSearching)
	url, err := r.search(ctx, name)
	if err != nil {
		res.enter(StateFailed)
		res.Status = StatusFailed
		res.Duration = time.Since(start)
		logger.Warn("could not find website for company", "error", err)
		return res, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	res.URL = url
	logger.Debug("found candidate careers page", "url", url)

	res.enter(StateScoring)
	label := r.cfg.LabelStrategy.Label(url)
	res.Score = similarity.Ratio(label, domain.Normalize(name))
	logger.Debug("scored domain against company name", "label", label, "score", res.Score)

	if res.Score > r.cfg.SimilarityThreshold {
		res.enter(StateAccepted)
		res.Status = StatusFound
		res.Method = MethodSimilarity
		res.Duration = time.Since(start)
		logger.Info("found careers page", "url", url, "score", res.Score, "method", res.Method)
		return res, nil
	}
	logger.Info("website is not similar enough to company name", "url", url, "score", res.Score)

	res.enter(StateFallbackChecking)
	matches, err := bounded.Run(ctx, r.cfg.FallbackTimeout, func(ctx context.Context) ([]string, error) {
		return r.matcher.Match(ctx, url)
	})
	switch {
	case err != nil && ctx.Err() != nil:
		res.enter(StateFailed)
		res.Status = StatusFailed
		res.Duration = time.Since(start)
		return res, ctx.Err()
	case errors.Is(err, bounded.ErrTimeout):
		logger.Warn("keyword check timed out", "url", url, "timeout", r.cfg.FallbackTimeout)
	case err != nil:
		logger.Warn("keyword check failed", "url", url, "error", err)
	case len(matches) > 0:
		res.enter(StateAccepted)
		res.Status = StatusFound
		res.Method = MethodKeywords
		res.Keywords = matches
		res.Duration = time.Since(start)
		logger.Info("found careers page", "url", url, "keywords", matches, "matched", len(matches), "method", res.Method)
		return res, nil
	}

	res.enter(StateRejected)
	res.Status = StatusNotRelevant
	res.Duration = time.Since(start)
	logger.Info("careers page rejected", "url", url, "matched", len(matches))
	return res, nil
}

func (r *Resolver) search(ctx context.Context, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.SearchTimeout)
	defer cancel()
	return r.finder.FindCareersPage(ctx, name)
}

// FindWebsite returns the accepted careers page URL for name. Both a failed
// search and a rejected candidate yield an error matching ErrNotFound.
func (r *Resolver) FindWebsite(ctx context.Context, name string) (string, error) {
	res, err := r.Resolve(ctx, name)
	if errors.Is(err, ErrSearchFailed) {
		return "", fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if err != nil {
		return "", err
	}
	if !res.Found() {
		return "", fmt.Errorf("%w for company %s", ErrNotFound, name)
	}
	return res.URL, nil
}
