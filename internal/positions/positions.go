// Package positions extracts open job positions from a careers page with
// an LLM.
package positions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/careers-finder/internal/cache"
	"github.com/jonathan/careers-finder/internal/fetch"
	"github.com/jonathan/careers-finder/internal/llm"
	"github.com/jonathan/careers-finder/internal/prompts"
	"github.com/jonathan/careers-finder/internal/schemas"
	"github.com/jonathan/careers-finder/internal/trace"
)

// NotAvailable fills fields the page does not state.
const NotAvailable = "N/A"

// DefaultTimeout bounds a single LLM call.
const DefaultTimeout = 60 * time.Second

// ErrEmptyPage means the careers page had no visible text.
var ErrEmptyPage = errors.New("empty careers page contents")

// Position is one job opening.
type Position struct {
	Title    string `json:"title"`
	Type     string `json:"type"`
	Location string `json:"location"`
}

type rawPosition struct {
	Title    *string `json:"title"`
	Type     *string `json:"type"`
	Location *string `json:"location"`
}

// Extractor turns careers pages into position lists. Replies are memoized
// in the cache store by prompt, so an unchanged page of the same company
// is not re-sent.
type Extractor struct {
	client    llm.Client
	store     cache.Store
	fetchOpts fetch.Options
	tier      llm.ModelTier
	timeout   time.Duration
}

// NewExtractor creates an Extractor. store may be nil; opts may be nil.
// timeout bounds each LLM call; zero means DefaultTimeout.
func NewExtractor(client llm.Client, store cache.Store, opts *fetch.Options, timeout time.Duration) *Extractor {
	if opts == nil {
		opts = fetch.DefaultOptions()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	fetchOpts := *opts
	fetchOpts.NoRedirects = true
	return &Extractor{
		client:    client,
		store:     store,
		fetchOpts: fetchOpts,
		tier:      llm.TierLite,
		timeout:   timeout,
	}
}

// Extract fetches url without following redirects and returns the
// positions listed on it.
func (e *Extractor) Extract(ctx context.Context, company, url string) ([]Position, error) {
	trace.Logger(ctx).Debug("analyzing open positions", "url", url)

	result, err := fetch.URL(ctx, url, &e.fetchOpts)
	if err != nil {
		return nil, err
	}

	text, err := fetch.StripPage(result.HTML, fetch.ListingSelectors(fetch.DetectPlatform(url))...)
	if err != nil {
		return nil, fmt.Errorf("failed to reduce page %s: %w", url, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w for %s", ErrEmptyPage, url)
	}
	return e.ExtractText(ctx, company, url, text)
}

// ExtractText returns the positions found in already-reduced page text.
func (e *Extractor) ExtractText(ctx context.Context, company, url, text string) ([]Position, error) {
	logger := trace.Logger(ctx)

	system, err := prompts.Get(prompts.PositionsFile, prompts.KeyPositionsSystem)
	if err != nil {
		return nil, err
	}
	user, err := prompts.Get(prompts.PositionsFile, prompts.KeyPositionsUser)
	if err != nil {
		return nil, err
	}
	content := prompts.Format(user, map[string]string{
		"Company":  company,
		"URL":      url,
		"PageText": text,
	})
	key := CacheKey(system, content)

	if e.store != nil {
		entry, ok, err := e.store.Get(ctx, key)
		if err != nil {
			logger.Warn("positions cache read failed", "key", key, "error", err)
		} else if ok {
			var cached []Position
			if err := json.Unmarshal([]byte(entry.Value), &cached); err == nil {
				logger.Debug("positions cache hit", "key", key, "count", len(cached))
				return cached, nil
			}
			logger.Warn("discarding unreadable positions cache entry", "key", key)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	resp, err := e.client.GenerateJSON(callCtx, system, content, e.tier)
	if err != nil {
		return nil, fmt.Errorf("position extraction failed: %w", err)
	}
	logger.Debug("position extraction prompt was sent",
		"prompt_tokens", resp.PromptTokens, "output_tokens", resp.OutputTokens, "truncated", resp.Truncated)

	found, err := parseReply(ctx, resp)
	if err != nil {
		return nil, err
	}

	if e.store != nil {
		payload, _ := json.Marshal(found)
		if err := e.store.Set(ctx, key, cache.Found(string(payload))); err != nil {
			logger.Warn("positions cache write failed", "key", key, "error", err)
		}
	}
	return found, nil
}

// CacheKey derives the memoization key from the full prompt, which names
// the company and URL alongside the page text.
func CacheKey(system, content string) string {
	h := sha256.New()
	h.Write([]byte(system))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return "positions:" + hex.EncodeToString(h.Sum(nil))
}

func parseReply(ctx context.Context, resp *llm.Response) ([]Position, error) {
	logger := trace.Logger(ctx)

	if strings.TrimSpace(resp.Text) == "" {
		logger.Error("open positions extraction resulted in an empty reply")
		return []Position{}, nil
	}

	payload := llm.CleanJSONBlock(resp.Text)
	if resp.Truncated {
		repaired, err := llm.RepairTruncatedJSON(resp.Text)
		if err != nil {
			return nil, fmt.Errorf("reply hit the output limit: %w", err)
		}
		logger.Warn("repaired truncated positions reply")
		payload = repaired
	}

	if err := schemas.Validate(schemas.Positions, payload); err != nil {
		return nil, fmt.Errorf("invalid positions reply: %w", err)
	}

	var doc struct {
		Positions []rawPosition `json:"positions"`
	}
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode positions reply: %w", err)
	}

	out := make([]Position, 0, len(doc.Positions))
	for _, raw := range doc.Positions {
		title := valueOr(raw.Title)
		if title == NotAvailable {
			logger.Warn("dropping position without a title")
			continue
		}
		out = append(out, Position{
			Title:    title,
			Type:     valueOr(raw.Type),
			Location: valueOr(raw.Location),
		})
	}
	return out, nil
}

func valueOr(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return NotAvailable
	}
	return strings.TrimSpace(*s)
}
