package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonathan/careers-finder/internal/trace"
)

// DefaultSERPEndpoint is the realtime SERP scraping API.
const DefaultSERPEndpoint = "https://realtime.oxylabs.io/v1/queries"

// DefaultGeoLocation scopes results geographically.
const DefaultGeoLocation = "United Kingdom"

// SERPConfig configures a SERPClient.
type SERPConfig struct {
	Endpoint          string
	Username          string
	Password          string
	GeoLocation       string
	RequestsPerSecond float64 // Zero disables rate limiting
	HTTPClient        *http.Client
}

// SERPClient queries a realtime Google SERP scraping API that returns
// parsed results.
type SERPClient struct {
	cfg     SERPConfig
	client  *http.Client
	limiter *rate.Limiter
}

// APIError is a non-2xx reply from the SERP API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("SERP API returned status %d: %s", e.StatusCode, e.Body)
}

type serpRequest struct {
	Source      string `json:"source"`
	Query       string `json:"query"`
	Limit       int    `json:"limit"`
	GeoLocation string `json:"geo_location,omitempty"`
	Parse       bool   `json:"parse"`
}

type serpResponse struct {
	Results []struct {
		Content json.RawMessage `json:"content"`
	} `json:"results"`
}

type serpContent struct {
	Results *struct {
		Organic []struct {
			URL string `json:"url"`
		} `json:"organic"`
	} `json:"results"`
}

// NewSERPClient creates a SERPClient.
func NewSERPClient(cfg SERPConfig) (*SERPClient, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("SERP API credentials are required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultSERPEndpoint
	}
	if cfg.GeoLocation == "" {
		cfg.GeoLocation = DefaultGeoLocation
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &SERPClient{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// Name implements Engine.
func (c *SERPClient) Name() string { return "serp" }

// FirstResult implements Engine.
func (c *SERPClient) FirstResult(ctx context.Context, query string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload, err := json.Marshal(serpRequest{
		Source:      "google_search",
		Query:       query,
		Limit:       1,
		GeoLocation: c.cfg.GeoLocation,
		Parse:       true,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create SERP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("SERP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read SERP response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > 200 {
			body = body[:200]
		}
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return firstOrganicURL(ctx, body)
}

// firstOrganicURL reads results[0].content.results.organic[0].url. Any
// missing step in that path is ErrNoResults rather than a failure.
func firstOrganicURL(ctx context.Context, body []byte) (string, error) {
	logger := trace.Logger(ctx)

	var resp serpResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		logger.Error("invalid SERP response", "error", err)
		return "", ErrNoResults
	}
	if len(resp.Results) == 0 {
		logger.Debug("empty search results")
		return "", ErrNoResults
	}

	var content serpContent
	if err := json.Unmarshal(resp.Results[0].Content, &content); err != nil || content.Results == nil {
		logger.Error("invalid response schema", "content", truncate(string(resp.Results[0].Content), 200))
		return "", ErrNoResults
	}
	if len(content.Results.Organic) == 0 {
		logger.Warn("no organic search results")
		return "", ErrNoResults
	}
	url := content.Results.Organic[0].URL
	if url == "" {
		logger.Error("missing url in first organic result")
		return "", ErrNoResults
	}
	return url, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
