// Package config loads runtime configuration from the environment.
// Defaults mirror a small single-node deployment; everything is
// overridable with INTELLIFLOW_* variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Completion gateway.
	AnthropicAPIKey string `env:"INTELLIFLOW_ANTHROPIC_API_KEY"`
	Model           string `env:"INTELLIFLOW_MODEL" envDefault:"claude-sonnet-4-20250514"`
	MaxTokens       int64  `env:"INTELLIFLOW_MAX_TOKENS" envDefault:"4096"`

	// Embedding gateway (OpenAI-compatible /v1/embeddings).
	EmbeddingAPIKey  string `env:"INTELLIFLOW_EMBEDDING_API_KEY"`
	EmbeddingBaseURL string `env:"INTELLIFLOW_EMBEDDING_BASE_URL" envDefault:"https://api.openai.com/v1"`
	EmbeddingModel   string `env:"INTELLIFLOW_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`

	// Session window and summarization.
	WindowSize       int           `env:"INTELLIFLOW_WINDOW_SIZE" envDefault:"12"`
	SummaryThreshold int           `env:"INTELLIFLOW_SUMMARY_THRESHOLD" envDefault:"10"`
	SessionTTL       time.Duration `env:"INTELLIFLOW_SESSION_TTL" envDefault:"30m"`
	PendingTTL       time.Duration `env:"INTELLIFLOW_PENDING_TTL" envDefault:"10m"`

	// Retrieval.
	CoarseTopN    int `env:"INTELLIFLOW_COARSE_TOP_N" envDefault:"20"`
	TopK          int `env:"INTELLIFLOW_TOP_K" envDefault:"4"`
	SummaryTopK   int `env:"INTELLIFLOW_SUMMARY_TOP_K" envDefault:"2"`
	ContextBudget int `env:"INTELLIFLOW_CONTEXT_BUDGET" envDefault:"12000"` // characters

	// Rerank (optional; empty key disables the stage).
	CohereAPIKey string `env:"INTELLIFLOW_COHERE_API_KEY"`
	RerankModel  string `env:"INTELLIFLOW_RERANK_MODEL" envDefault:"rerank-multilingual-v3.0"`

	// Session store. Empty RedisURL selects the in-process store.
	RedisURL string `env:"INTELLIFLOW_REDIS_URL"`

	// Publish targets.
	LocalWorkspace string `env:"INTELLIFLOW_LOCAL_WORKSPACE" envDefault:"./workspace"`
	GitHubToken    string `env:"INTELLIFLOW_GITHUB_TOKEN"`
	GitHubRepo     string `env:"INTELLIFLOW_GITHUB_REPO"` // owner/repo
	GitHubBranch   string `env:"INTELLIFLOW_GITHUB_BRANCH" envDefault:"main"`
	GitHubBasePath string `env:"INTELLIFLOW_GITHUB_BASE_PATH" envDefault:"content"`
}

// Load parses configuration from the environment and validates the
// relationships the pipeline depends on.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot honor.
func (c *Config) Validate() error {
	if c.WindowSize < 1 {
		return fmt.Errorf("window size must be at least 1, got %d", c.WindowSize)
	}
	if c.SummaryThreshold < 1 {
		return fmt.Errorf("summary threshold must be at least 1, got %d", c.SummaryThreshold)
	}
	if c.TopK > c.CoarseTopN {
		return fmt.Errorf("top-k (%d) cannot exceed coarse top-n (%d)", c.TopK, c.CoarseTopN)
	}
	if c.ContextBudget < 1 {
		return fmt.Errorf("context budget must be positive, got %d", c.ContextBudget)
	}
	return nil
}
