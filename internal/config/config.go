// Package config provides configuration management for sommelier.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default tuning constants. The blend weights are hand-tuned starting points,
// not derived values; deployments override them through settings or env.
const (
	DefaultHTTPPort = 38800

	DefaultEmbeddingModel      = "text-embedding-3-small"
	DefaultEmbeddingDimensions = 1536
	DefaultChatModel           = "gpt-4o-mini"

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxBatchSize   = 1000

	DefaultEmbeddingTTLDays      = 30
	DefaultCandidateLimit        = 1000
	DefaultRerankPoolSize        = 60
	DefaultRerankMaxPicks        = 24
	DefaultRecommendationTTLDays = 7
	DefaultSearchLimit           = 20
	MaxSearchLimit               = 24

	DefaultIndexerIntervalHours = 24
	DefaultRefreshIntervalHours = 168 // weekly per-user refresh

	// DefaultProviderRPS paces external embedding/LLM calls in batch jobs.
	DefaultProviderRPS = 2.0
)

// Weights are the blended pre-score weights. They sum with the recency bump
// to an arbitrary scale; only relative magnitudes matter.
type Weights struct {
	Style       float64 `yaml:"style" json:"style"`
	Price       float64 `yaml:"price" json:"price"`
	Varietal    float64 `yaml:"varietal" json:"varietal"`
	Region      float64 `yaml:"region" json:"region"`
	RecencyBump float64 `yaml:"recency_bump" json:"recency_bump"`
}

// DefaultWeights returns the stock blend weighting.
func DefaultWeights() Weights {
	return Weights{
		Style:       0.55,
		Price:       0.20,
		Varietal:    0.10,
		Region:      0.05,
		RecencyBump: 0.10,
	}
}

// Config holds the application configuration. It is constructed once in main
// and passed explicitly to each component; there is no ambient global.
type Config struct {
	// HTTP
	HTTPPort int `yaml:"http_port"`

	// Database. A postgres:// DSN selects the Postgres driver; anything else
	// is treated as a sqlite file path (dev/test mode).
	DSN      string `yaml:"dsn"`
	MaxConns int    `yaml:"max_conns"`

	// Embedding provider (OpenAI-compatible)
	EmbeddingBaseURL    string `yaml:"embedding_base_url"`
	EmbeddingAPIKey     string `yaml:"embedding_api_key"`
	EmbeddingModel      string `yaml:"embedding_model"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions"`

	// Chat/completion provider (OpenAI-compatible)
	ChatBaseURL string `yaml:"chat_base_url"`
	ChatAPIKey  string `yaml:"chat_api_key"`
	ChatModel   string `yaml:"chat_model"`

	// External call behavior
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ProviderRPS    float64       `yaml:"provider_rps"`

	// Batch jobs
	MaxBatchSize         int `yaml:"max_batch_size"`
	EmbeddingTTLDays     int `yaml:"embedding_ttl_days"`
	IndexerIntervalHours int `yaml:"indexer_interval_hours"`
	RefreshIntervalHours int `yaml:"refresh_interval_hours"`

	// Recommendation pipeline
	CandidateLimit        int     `yaml:"candidate_limit"`
	RerankPoolSize        int     `yaml:"rerank_pool_size"`
	RerankMaxPicks        int     `yaml:"rerank_max_picks"`
	RecommendationTTLDays int     `yaml:"recommendation_ttl_days"`
	Weights               Weights `yaml:"weights"`

	// Search
	SearchLimit int `yaml:"search_limit"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		HTTPPort:              DefaultHTTPPort,
		MaxConns:              10,
		EmbeddingBaseURL:      "https://api.openai.com/v1",
		EmbeddingModel:        DefaultEmbeddingModel,
		EmbeddingDimensions:   DefaultEmbeddingDimensions,
		ChatBaseURL:           "https://api.openai.com/v1",
		ChatModel:             DefaultChatModel,
		RequestTimeout:        DefaultRequestTimeout,
		ProviderRPS:           DefaultProviderRPS,
		MaxBatchSize:          DefaultMaxBatchSize,
		EmbeddingTTLDays:      DefaultEmbeddingTTLDays,
		IndexerIntervalHours:  DefaultIndexerIntervalHours,
		RefreshIntervalHours:  DefaultRefreshIntervalHours,
		CandidateLimit:        DefaultCandidateLimit,
		RerankPoolSize:        DefaultRerankPoolSize,
		RerankMaxPicks:        DefaultRerankMaxPicks,
		RecommendationTTLDays: DefaultRecommendationTTLDays,
		Weights:               DefaultWeights(),
		SearchLimit:           DefaultSearchLimit,
	}
}

// Load reads configuration from the settings file at path (if present),
// then applies environment overrides on top of defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read settings %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config values from SOMMELIER_* environment variables.
// API keys in particular are expected to arrive through the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("SOMMELIER_HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.HTTPPort = p
		}
	}
	if v := os.Getenv("SOMMELIER_DSN"); v != "" {
		c.DSN = v
	}
	if v := os.Getenv("SOMMELIER_EMBEDDING_BASE_URL"); v != "" {
		c.EmbeddingBaseURL = v
	}
	if v := os.Getenv("SOMMELIER_EMBEDDING_API_KEY"); v != "" {
		c.EmbeddingAPIKey = v
	}
	if v := os.Getenv("SOMMELIER_EMBEDDING_MODEL"); v != "" {
		c.EmbeddingModel = v
	}
	if v := os.Getenv("SOMMELIER_EMBEDDING_DIMENSIONS"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			c.EmbeddingDimensions = d
		}
	}
	if v := os.Getenv("SOMMELIER_CHAT_BASE_URL"); v != "" {
		c.ChatBaseURL = v
	}
	if v := os.Getenv("SOMMELIER_CHAT_API_KEY"); v != "" {
		c.ChatAPIKey = v
	}
	if v := os.Getenv("SOMMELIER_CHAT_MODEL"); v != "" {
		c.ChatModel = v
	}
	if v := os.Getenv("SOMMELIER_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.RequestTimeout = d
		}
	}
	if v := os.Getenv("SOMMELIER_MAX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxBatchSize = n
		}
	}
}

// validate rejects configurations that would make components misbehave.
func (c *Config) validate() error {
	if c.RerankPoolSize < c.RerankMaxPicks {
		return fmt.Errorf("rerank_pool_size (%d) must be >= rerank_max_picks (%d)",
			c.RerankPoolSize, c.RerankMaxPicks)
	}
	if c.SearchLimit <= 0 || c.SearchLimit > MaxSearchLimit {
		return fmt.Errorf("search_limit must be in 1..%d, got %d", MaxSearchLimit, c.SearchLimit)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("embedding_dimensions must be positive, got %d", c.EmbeddingDimensions)
	}
	return nil
}

// EmbeddingTTL returns the staleness interval for stored embeddings.
func (c *Config) EmbeddingTTL() time.Duration {
	return time.Duration(c.EmbeddingTTLDays) * 24 * time.Hour
}

// RecommendationTTL returns the lifetime of generated recommendations.
func (c *Config) RecommendationTTL() time.Duration {
	return time.Duration(c.RecommendationTTLDays) * 24 * time.Hour
}
