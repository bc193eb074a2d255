package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/careers-finder/internal/cache"
	"github.com/jonathan/careers-finder/internal/config"
	"github.com/jonathan/careers-finder/internal/db"
	"github.com/jonathan/careers-finder/internal/fetch"
	"github.com/jonathan/careers-finder/internal/keywords"
	"github.com/jonathan/careers-finder/internal/llm"
	"github.com/jonathan/careers-finder/internal/positions"
	"github.com/jonathan/careers-finder/internal/resolver"
	"github.com/jonathan/careers-finder/internal/search"
)

func openStore(ctx context.Context, c config.Config) (cache.Store, error) {
	store, err := cache.Open(ctx, c.Cache())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s cache: %w", c.CacheBackend, err)
	}
	return store, nil
}

func newEngine(ctx context.Context, c config.Config) (search.Engine, error) {
	if err := c.ValidateSearch(); err != nil {
		return nil, err
	}
	switch c.SearchBackend {
	case config.SearchCustomSearch:
		return search.NewCustomSearch(ctx, search.CustomSearchConfig{
			APIKey:  c.GoogleSearchKey,
			CX:      c.GoogleSearchCX,
			Country: c.SearchCountry,
		})
	default:
		return search.NewSERPClient(search.SERPConfig{
			Endpoint:          c.SERPEndpoint,
			Username:          c.SERPUsername,
			Password:          c.SERPPassword,
			GeoLocation:       c.GeoLocation,
			RequestsPerSecond: c.SearchRatePerSec,
		})
	}
}

func newResolver(ctx context.Context, c config.Config, store cache.Store) (*resolver.Resolver, error) {
	engine, err := newEngine(ctx, c)
	if err != nil {
		return nil, err
	}
	finder := search.NewCached(engine, store, search.CachedOptions{
		QueryTemplate: c.QueryTemplate,
		Timeout:       c.Resolver().SearchTimeout,
	})

	var vocabulary []string
	if c.VocabularyFile != "" {
		if vocabulary, err = keywords.LoadVocabulary(c.VocabularyFile); err != nil {
			return nil, err
		}
	}
	checker := keywords.NewChecker(vocabulary, fetch.DefaultOptions())

	return resolver.New(finder, checker, c.Resolver()), nil
}

// newLLMClient connects to Gemini. llm_model overrides the model of tier.
func newLLMClient(ctx context.Context, c config.Config, tier llm.ModelTier) (llm.Client, error) {
	if err := c.ValidateLLM(); err != nil {
		return nil, err
	}
	llmConfig := llm.DefaultConfig()
	if c.LLMModel != "" {
		llmConfig = llmConfig.WithModel(tier, c.LLMModel)
	}
	return llm.NewClient(ctx, llmConfig, c.GeminiAPIKey)
}

func newExtractor(ctx context.Context, c config.Config, store cache.Store) (*positions.Extractor, llm.Client, error) {
	client, err := newLLMClient(ctx, c, llm.TierLite)
	if err != nil {
		return nil, nil, err
	}
	return positions.NewExtractor(client, store, fetch.DefaultOptions(), time.Duration(c.LLMTimeout)), client, nil
}

func openDatabase(ctx context.Context, c config.Config) (*db.DB, error) {
	database, err := db.Connect(ctx, c.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}
