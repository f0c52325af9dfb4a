package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by the profile.
const EnvPrefix = "APP4ME"

// Profile is the configuration to start the search server and CLI.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string `mapstructure:"mode"`
	// Addr is the binding address for server
	Addr string `mapstructure:"addr"`
	// Port is the binding port for server
	Port int `mapstructure:"port"`
	// Data is the data directory
	Data string `mapstructure:"data"`
	// DSN points to where app4me stores the app catalog
	DSN string `mapstructure:"dsn"`
	// Driver is the database driver (sqlite or postgres)
	Driver string `mapstructure:"driver"`
	// Version is the current version of server
	Version string `mapstructure:"version"`

	AI        AIProfile        `mapstructure:"ai"`
	Retrieval RetrievalProfile `mapstructure:"retrieval"`
	Server    ServerProfile    `mapstructure:"server"`
}

// AIProfile configures the external model services.
type AIProfile struct {
	Enabled             bool    `mapstructure:"enabled"`              // APP4ME_AI_ENABLED
	EmbeddingProvider   string  `mapstructure:"embedding_provider"`   // openai, siliconflow, ollama
	LLMProvider         string  `mapstructure:"llm_provider"`         // openai, deepseek, siliconflow, ollama
	OpenAIAPIKey        string  `mapstructure:"openai_api_key"`       // APP4ME_AI_OPENAI_API_KEY
	OpenAIBaseURL       string  `mapstructure:"openai_base_url"`      // default: https://api.openai.com/v1
	DeepSeekAPIKey      string  `mapstructure:"deepseek_api_key"`     // APP4ME_AI_DEEPSEEK_API_KEY
	DeepSeekBaseURL     string  `mapstructure:"deepseek_base_url"`    // default: https://api.deepseek.com
	SiliconFlowAPIKey   string  `mapstructure:"siliconflow_api_key"`  // APP4ME_AI_SILICONFLOW_API_KEY
	SiliconFlowBaseURL  string  `mapstructure:"siliconflow_base_url"` // default: https://api.siliconflow.cn/v1
	OllamaBaseURL       string  `mapstructure:"ollama_base_url"`      // default: http://localhost:11434
	EmbeddingModel      string  `mapstructure:"embedding_model"`      // default: text-embedding-3-small
	EmbeddingDimensions int     `mapstructure:"embedding_dimensions"` // default: 1536
	LLMModel            string  `mapstructure:"llm_model"`            // default: gpt-4o-mini
	RequestsPerSecond   float64 `mapstructure:"requests_per_second"`  // outbound limit shared by all model calls
	Burst               int     `mapstructure:"burst"`
	MaxRetries          int     `mapstructure:"max_retries"`
}

// RetrievalProfile holds the retrieval tuning knobs.
type RetrievalProfile struct {
	TopK                int     `mapstructure:"top_k"`
	CandidatePool       int     `mapstructure:"candidate_pool"`
	RRFConstant         int     `mapstructure:"rrf_k"`
	SemanticThreshold   float64 `mapstructure:"semantic_threshold"`
	RerankEnabled       bool    `mapstructure:"rerank_enabled"`
	RerankMaxCandidates int     `mapstructure:"rerank_max_candidates"`
	MaxQueryLength      int     `mapstructure:"max_query_length"`

	// Keyword scorer weights. Zero keeps the built-in default.
	KeywordScoreFloor      float64 `mapstructure:"keyword_score_floor"`
	KeywordCategoryBoost   float64 `mapstructure:"keyword_category_boost"`
	KeywordPartialKeyword  float64 `mapstructure:"keyword_partial_keyword"`
	KeywordPartialCategory float64 `mapstructure:"keyword_partial_category"`
	KeywordQualityBoost    float64 `mapstructure:"keyword_quality_boost"`
}

// ServerProfile configures the HTTP surface.
type ServerProfile struct {
	// RequestsPerMinute is the per-client limit of the search endpoint. 0 disables it.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	// MaxConcurrentSearches bounds searches running at once; others wait for a slot.
	MaxConcurrentSearches int `mapstructure:"max_concurrent_searches"`
}

var defaults = map[string]any{
	"mode":   "dev",
	"addr":   "",
	"port":   8081,
	"data":   "",
	"dsn":    "",
	"driver": "sqlite",

	"ai.enabled":              false,
	"ai.embedding_provider":   "openai",
	"ai.llm_provider":         "openai",
	"ai.openai_api_key":       "",
	"ai.openai_base_url":      "https://api.openai.com/v1",
	"ai.deepseek_api_key":     "",
	"ai.deepseek_base_url":    "https://api.deepseek.com",
	"ai.siliconflow_api_key":  "",
	"ai.siliconflow_base_url": "https://api.siliconflow.cn/v1",
	"ai.ollama_base_url":      "http://localhost:11434",
	"ai.embedding_model":      "text-embedding-3-small",
	"ai.embedding_dimensions": 1536,
	"ai.llm_model":            "gpt-4o-mini",
	"ai.requests_per_second":  5.0,
	"ai.burst":                5,
	"ai.max_retries":          3,

	"retrieval.top_k":                 10,
	"retrieval.candidate_pool":        50,
	"retrieval.rrf_k":                 60,
	"retrieval.semantic_threshold":    0.4,
	"retrieval.rerank_enabled":        true,
	"retrieval.rerank_max_candidates": 20,
	"retrieval.max_query_length":      1000,

	"retrieval.keyword_score_floor":      0.05,
	"retrieval.keyword_category_boost":   1.2,
	"retrieval.keyword_partial_keyword":  0.7,
	"retrieval.keyword_partial_category": 0.8,
	"retrieval.keyword_quality_boost":    0.1,

	"server.requests_per_minute":     60,
	"server.max_concurrent_searches": 8,
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// Load builds a profile from defaults, an optional config file and
// APP4ME_* environment variables, in increasing order of precedence.
// The file format is inferred from its extension (yaml, toml, json).
func Load(path string) (*Profile, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	profile := &Profile{}
	if err := v.Unmarshal(profile); err != nil {
		return nil, errors.Wrap(err, "failed to decode profile")
	}
	return profile, nil
}

// FromEnv loads the AI, retrieval and server sections from environment
// variables, falling back to defaults. Mode, driver and DSN are left as set.
func (p *Profile) FromEnv() {
	loaded := &Profile{}
	if err := newViper().Unmarshal(loaded); err != nil {
		slog.Warn("failed to decode profile from env", slog.String("error", err.Error()))
		return
	}
	p.AI = loaded.AI
	p.Retrieval = loaded.Retrieval
	p.Server = loaded.Server
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if AI is enabled and at least one API key or base URL is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.AI.Enabled && (p.AI.OpenAIAPIKey != "" || p.AI.DeepSeekAPIKey != "" || p.AI.SiliconFlowAPIKey != "" || p.AI.OllamaBaseURL != "")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	switch p.Driver {
	case "sqlite":
		if p.DSN == "" {
			if p.Data == "" {
				p.Data = "."
			}
			dataDir, err := checkDataDir(p.Data)
			if err != nil {
				slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
				return err
			}
			p.Data = dataDir
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("app4me_%s.db", p.Mode))
		}
	case "postgres":
		if p.DSN == "" {
			return errors.New("dsn is required for the postgres driver")
		}
	default:
		return errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", p.Driver)
	}

	if p.Retrieval.MaxQueryLength <= 0 {
		p.Retrieval.MaxQueryLength = 1000
	}
	return nil
}
