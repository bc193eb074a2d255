package search

import (
	"context"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// CustomSearchConfig configures a CustomSearch engine.
type CustomSearchConfig struct {
	APIKey   string
	CX       string // Programmable Search Engine ID
	Country  string // Two-letter "gl" code, e.g. "uk"
	Endpoint string // Optional API base URL override
}

// CustomSearch queries Google Programmable Search.
type CustomSearch struct {
	svc *customsearch.Service
	cx  string
	gl  string
}

// NewCustomSearch creates a CustomSearch engine.
func NewCustomSearch(ctx context.Context, cfg CustomSearchConfig) (*CustomSearch, error) {
	if cfg.APIKey == "" || cfg.CX == "" {
		return nil, fmt.Errorf("custom search requires an API key and engine ID")
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &CustomSearch{svc: svc, cx: cfg.CX, gl: cfg.Country}, nil
}

// Name implements Engine.
func (s *CustomSearch) Name() string { return "customsearch" }

// FirstResult implements Engine.
func (s *CustomSearch) FirstResult(ctx context.Context, query string) (string, error) {
	call := s.svc.Cse.List().Cx(s.cx).Q(query).Num(1).Context(ctx)
	if s.gl != "" {
		call = call.Gl(s.gl)
	}
	resp, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}

	if len(resp.Items) == 0 || resp.Items[0].Link == "" {
		return "", ErrNoResults
	}
	return resp.Items[0].Link, nil
}
