// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/careers-finder/internal/cache"
	"github.com/jonathan/careers-finder/internal/domain"
	"github.com/jonathan/careers-finder/internal/positions"
	"github.com/jonathan/careers-finder/internal/resolver"
)

// Search backends.
const (
	SearchSERP         = "serp"
	SearchCustomSearch = "customsearch"
)

// Duration is a time.Duration written as "5s" or "1m30s" in config files.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the CLI configuration. Every field is optional in the file;
// Default supplies the rest and secrets usually come from the environment.
type Config struct {
	// Search
	SearchBackend     string  `json:"search_backend,omitempty" yaml:"search_backend" validate:"omitempty,oneof=serp customsearch"`
	QueryTemplate     string  `json:"query_template,omitempty" yaml:"query_template" validate:"omitempty,contains=%s"`
	GeoLocation       string  `json:"geo_location,omitempty" yaml:"geo_location"`
	SearchCountry     string  `json:"search_country,omitempty" yaml:"search_country" validate:"omitempty,len=2"`
	SearchRatePerSec  float64 `json:"search_rate_per_sec,omitempty" yaml:"search_rate_per_sec" validate:"gte=0"`
	SERPEndpoint      string  `json:"serp_endpoint,omitempty" yaml:"serp_endpoint" validate:"omitempty,url"`
	SERPUsername      string  `json:"serp_username,omitempty" yaml:"serp_username"`
	SERPPassword      string  `json:"serp_password,omitempty" yaml:"serp_password"`
	GoogleSearchKey   string  `json:"google_search_api_key,omitempty" yaml:"google_search_api_key"`
	GoogleSearchCX    string  `json:"google_search_cx,omitempty" yaml:"google_search_cx"`

	// Resolution
	SimilarityThreshold float64  `json:"similarity_threshold,omitempty" yaml:"similarity_threshold" validate:"gte=0,lt=1"`
	FallbackTimeout     Duration `json:"fallback_timeout,omitempty" yaml:"fallback_timeout" validate:"gte=0"`
	SearchTimeout       Duration `json:"search_timeout,omitempty" yaml:"search_timeout" validate:"gte=0"`
	LabelStrategy       string   `json:"label_strategy,omitempty" yaml:"label_strategy" validate:"omitempty,oneof=naive publicsuffix"`
	VocabularyFile      string   `json:"vocabulary_file,omitempty" yaml:"vocabulary_file"`

	// Batch
	CompaniesFile    string `json:"companies_file,omitempty" yaml:"companies_file"`
	NameColumn       string `json:"name_column,omitempty" yaml:"name_column"`
	Limit            int    `json:"limit,omitempty" yaml:"limit" validate:"gte=0"`
	BatchSize        int    `json:"batch_size,omitempty" yaml:"batch_size" validate:"gte=0,lte=200"`
	ExtractPositions bool   `json:"extract_positions,omitempty" yaml:"extract_positions"`
	OutputDir        string `json:"output_dir,omitempty" yaml:"output_dir"`
	Override         bool   `json:"override,omitempty" yaml:"override"`

	// Storage
	CacheBackend      string `json:"cache_backend,omitempty" yaml:"cache_backend" validate:"omitempty,oneof=sqlite postgres redis memory"`
	CachePath         string `json:"cache_path,omitempty" yaml:"cache_path"`
	RedisAddr         string `json:"redis_addr,omitempty" yaml:"redis_addr"`
	RedisPrefix       string `json:"redis_prefix,omitempty" yaml:"redis_prefix"`
	DatabaseURL       string `json:"database_url,omitempty" yaml:"database_url"`
	RecordResolutions bool   `json:"record_resolutions,omitempty" yaml:"record_resolutions"`

	// Events
	KafkaBroker string `json:"kafka_broker,omitempty" yaml:"kafka_broker"`
	KafkaTopic  string `json:"kafka_topic,omitempty" yaml:"kafka_topic"`

	// LLM
	GeminiAPIKey string   `json:"gemini_api_key,omitempty" yaml:"gemini_api_key"`
	LLMModel     string   `json:"llm_model,omitempty" yaml:"llm_model"`
	LLMTimeout   Duration `json:"llm_timeout,omitempty" yaml:"llm_timeout" validate:"gte=0"`

	// Logging
	LogLevel string `json:"log_level,omitempty" yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	LogDir   string `json:"log_dir,omitempty" yaml:"log_dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SearchBackend:       SearchSERP,
		QueryTemplate:       "%s official website careers",
		GeoLocation:         "United Kingdom",
		SearchCountry:       "uk",
		SimilarityThreshold: resolver.DefaultSimilarityThreshold,
		FallbackTimeout:     Duration(resolver.DefaultFallbackTimeout),
		SearchTimeout:       Duration(resolver.DefaultSearchTimeout),
		LabelStrategy:       string(domain.StrategyNaive),
		NameColumn:          "Organisation Name",
		BatchSize:           20,
		OutputDir:           "run_outputs",
		CacheBackend:        string(cache.BackendSQLite),
		CachePath:           filepath.Join("run_outputs", "cache.db"),
		LLMTimeout:          Duration(positions.DefaultTimeout),
		LogLevel:            "info",
	}
}

// LoadConfig reads a JSON or YAML (.yaml, .yml) configuration file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}
	return &cfg, nil
}

// LoadDotEnv loads variables from .env files into the process environment
// without overriding ones already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides secrets and endpoints from the environment. lookup is
// usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SERP_USERNAME":         &c.SERPUsername,
		"SERP_PASSWORD":         &c.SERPPassword,
		"GOOGLE_SEARCH_API_KEY": &c.GoogleSearchKey,
		"GOOGLE_SEARCH_CX":      &c.GoogleSearchCX,
		"GEMINI_API_KEY":        &c.GeminiAPIKey,
		"DATABASE_URL":          &c.DatabaseURL,
		"REDIS_ADDR":            &c.RedisAddr,
		"KAFKA_BROKER":          &c.KafkaBroker,
		"LOG_LEVEL":             &c.LogLevel,
	}
	for key, field := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*field = v
		}
	}

	if v, ok := lookup("BATCH_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BATCH_SIZE %q: %w", v, err)
		}
		c.BatchSize = n
	}
	return nil
}

// MergeWithDefaults returns a copy of c with zero-valued fields taken from
// defaults. Bools cannot distinguish unset from false and are not merged.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	strs := []struct{ dst, src *string }{
		{&result.SearchBackend, &defaults.SearchBackend},
		{&result.QueryTemplate, &defaults.QueryTemplate},
		{&result.GeoLocation, &defaults.GeoLocation},
		{&result.SearchCountry, &defaults.SearchCountry},
		{&result.SERPEndpoint, &defaults.SERPEndpoint},
		{&result.SERPUsername, &defaults.SERPUsername},
		{&result.SERPPassword, &defaults.SERPPassword},
		{&result.GoogleSearchKey, &defaults.GoogleSearchKey},
		{&result.GoogleSearchCX, &defaults.GoogleSearchCX},
		{&result.LabelStrategy, &defaults.LabelStrategy},
		{&result.VocabularyFile, &defaults.VocabularyFile},
		{&result.CompaniesFile, &defaults.CompaniesFile},
		{&result.NameColumn, &defaults.NameColumn},
		{&result.OutputDir, &defaults.OutputDir},
		{&result.CacheBackend, &defaults.CacheBackend},
		{&result.CachePath, &defaults.CachePath},
		{&result.RedisAddr, &defaults.RedisAddr},
		{&result.RedisPrefix, &defaults.RedisPrefix},
		{&result.DatabaseURL, &defaults.DatabaseURL},
		{&result.KafkaBroker, &defaults.KafkaBroker},
		{&result.KafkaTopic, &defaults.KafkaTopic},
		{&result.GeminiAPIKey, &defaults.GeminiAPIKey},
		{&result.LLMModel, &defaults.LLMModel},
		{&result.LogLevel, &defaults.LogLevel},
		{&result.LogDir, &defaults.LogDir},
	}
	for _, f := range strs {
		if *f.dst == "" {
			*f.dst = *f.src
		}
	}

	if result.SearchRatePerSec == 0 {
		result.SearchRatePerSec = defaults.SearchRatePerSec
	}
	if result.SimilarityThreshold == 0 {
		result.SimilarityThreshold = defaults.SimilarityThreshold
	}
	if result.FallbackTimeout == 0 {
		result.FallbackTimeout = defaults.FallbackTimeout
	}
	if result.SearchTimeout == 0 {
		result.SearchTimeout = defaults.SearchTimeout
	}
	if result.LLMTimeout == 0 {
		result.LLMTimeout = defaults.LLMTimeout
	}
	if result.Limit == 0 {
		result.Limit = defaults.Limit
	}
	if result.BatchSize == 0 {
		result.BatchSize = defaults.BatchSize
	}

	return result
}

// Validate checks field formats and ranges, plus the settings each
// selected backend depends on.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	switch cache.Backend(c.CacheBackend) {
	case cache.BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config error: cache backend postgres requires database_url")
		}
	case cache.BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("config error: cache backend redis requires redis_addr")
		}
	}
	if c.RecordResolutions && c.DatabaseURL == "" {
		return fmt.Errorf("config error: record_resolutions requires database_url")
	}
	if c.VocabularyFile != "" {
		if _, err := os.Stat(c.VocabularyFile); err != nil {
			return fmt.Errorf("config error: vocabulary file not found: %s", c.VocabularyFile)
		}
	}
	return nil
}

// ValidateSearch checks that the selected search backend has credentials.
func (c *Config) ValidateSearch() error {
	switch c.SearchBackend {
	case SearchSERP, "":
		if c.SERPUsername == "" || c.SERPPassword == "" {
			return fmt.Errorf("config error: serp search requires SERP_USERNAME and SERP_PASSWORD")
		}
	case SearchCustomSearch:
		if c.GoogleSearchKey == "" || c.GoogleSearchCX == "" {
			return fmt.Errorf("config error: customsearch requires GOOGLE_SEARCH_API_KEY and GOOGLE_SEARCH_CX")
		}
	}
	return nil
}

// ValidateLLM checks that the LLM-backed commands can reach the LLM.
func (c *Config) ValidateLLM() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("config error: the LLM requires GEMINI_API_KEY")
	}
	return nil
}

// Resolver returns the resolver settings.
func (c *Config) Resolver() resolver.Config {
	return resolver.Config{
		SimilarityThreshold: c.SimilarityThreshold,
		FallbackTimeout:     time.Duration(c.FallbackTimeout),
		SearchTimeout:       time.Duration(c.SearchTimeout),
		LabelStrategy:       domain.Strategy(c.LabelStrategy),
	}
}

// Cache returns the cache store settings.
func (c *Config) Cache() cache.Options {
	return cache.Options{
		Backend:     cache.Backend(c.CacheBackend),
		SQLitePath:  c.CachePath,
		DatabaseURL: c.DatabaseURL,
		RedisAddr:   c.RedisAddr,
		RedisPrefix: c.RedisPrefix,
	}
}
