package ai

import (
	"errors"
	"time"

	"github.com/dp9910/app4me-sub001/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	Enabled bool

	Embedding EmbeddingConfig
	LLM       LLMConfig
	RateLimit RateLimitConfig
}

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Provider   string // openai, siliconflow, ollama
	Model      string // text-embedding-3-small
	Dimensions int    // 1536
	APIKey     string
	BaseURL    string
}

// LLMConfig represents LLM configuration.
type LLMConfig struct {
	Provider    string // openai, deepseek, siliconflow, ollama
	Model       string // gpt-4o-mini
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 2048
	Temperature float32 // default: 0.2
}

// RateLimitConfig bounds outbound model calls and their retries.
type RateLimitConfig struct {
	RequestsPerSecond float64       // 0 disables limiting
	Burst             int           // default: 1
	MaxRetries        int           // attempts including the first, default: 3
	BaseDelay         time.Duration // default: 500ms
	MaxDelay          time.Duration // default: 8s
	Multiplier        float64       // default: 2
}

// DefaultRateLimitConfig returns the default limits.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 5,
		Burst:             5,
		MaxRetries:        3,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          8 * time.Second,
		Multiplier:        2,
	}
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Enabled: p.AI.Enabled,
	}

	if !cfg.Enabled {
		return cfg
	}

	// Embedding configuration
	cfg.Embedding = EmbeddingConfig{
		Provider:   p.AI.EmbeddingProvider,
		Model:      p.AI.EmbeddingModel,
		Dimensions: p.AI.EmbeddingDimensions,
	}

	switch p.AI.EmbeddingProvider {
	case "siliconflow":
		cfg.Embedding.APIKey = p.AI.SiliconFlowAPIKey
		cfg.Embedding.BaseURL = p.AI.SiliconFlowBaseURL
	case "openai":
		cfg.Embedding.APIKey = p.AI.OpenAIAPIKey
		cfg.Embedding.BaseURL = p.AI.OpenAIBaseURL
	case "ollama":
		cfg.Embedding.BaseURL = p.AI.OllamaBaseURL
	}

	// LLM configuration
	cfg.LLM = LLMConfig{
		Provider:    p.AI.LLMProvider,
		Model:       p.AI.LLMModel,
		MaxTokens:   2048,
		Temperature: 0.2,
	}

	switch p.AI.LLMProvider {
	case "deepseek":
		cfg.LLM.APIKey = p.AI.DeepSeekAPIKey
		cfg.LLM.BaseURL = p.AI.DeepSeekBaseURL
	case "siliconflow":
		cfg.LLM.APIKey = p.AI.SiliconFlowAPIKey
		cfg.LLM.BaseURL = p.AI.SiliconFlowBaseURL
	case "openai":
		cfg.LLM.APIKey = p.AI.OpenAIAPIKey
		cfg.LLM.BaseURL = p.AI.OpenAIBaseURL
	case "ollama":
		cfg.LLM.BaseURL = p.AI.OllamaBaseURL
	}

	cfg.RateLimit = DefaultRateLimitConfig()
	if p.AI.RequestsPerSecond > 0 {
		cfg.RateLimit.RequestsPerSecond = p.AI.RequestsPerSecond
	}
	if p.AI.Burst > 0 {
		cfg.RateLimit.Burst = p.AI.Burst
	}
	if p.AI.MaxRetries > 0 {
		cfg.RateLimit.MaxRetries = p.AI.MaxRetries
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Embedding.Provider == "" {
		return errors.New("embedding provider is required")
	}

	if c.Embedding.Provider != "ollama" && c.Embedding.APIKey == "" {
		return errors.New("embedding API key is required")
	}

	if c.LLM.Provider == "" {
		return errors.New("LLM provider is required")
	}

	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		return errors.New("LLM API key is required")
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		return errors.New("requests per second must not be negative")
	}

	return nil
}
