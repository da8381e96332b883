// Package llm provides a small chat-completion client used for article
// summarization. It speaks the OpenAI-compatible protocol (OpenAI, MiniMax,
// Ollama) and Google Gemini, with retries on transient failures.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Provider names a chat-completion backend.
type Provider string

const (
	OpenAI  Provider = "openai"
	Gemini  Provider = "gemini"
	Ollama  Provider = "ollama"
	MiniMax Provider = "minimax"
)

// compatibleBaseURLs are the default endpoints of providers that speak the
// OpenAI chat-completions protocol. OpenAI itself uses the client default.
var compatibleBaseURLs = map[Provider]string{
	MiniMax: "https://api.minimax.io/v1",
	Ollama:  "http://localhost:11434/v1",
}

// Config selects and tunes the summarization model.
type Config struct {
	Provider    Provider      `yaml:"provider" toml:"provider" json:"provider" env:"LLM_PROVIDER"`
	Model       string        `yaml:"model" toml:"model" json:"model" env:"LLM_MODEL"`
	APIKey      string        `yaml:"api_key" toml:"api_key" json:"-" env:"LLM_API_KEY"`
	BaseURL     string        `yaml:"base_url" toml:"base_url" json:"base_url" env:"LLM_BASE_URL"`
	MaxRetries  int           `yaml:"max_retries" toml:"max_retries" json:"max_retries"`
	Timeout     time.Duration `yaml:"timeout" toml:"timeout" json:"timeout"`
	MaxTokens   int           `yaml:"max_tokens" toml:"max_tokens" json:"max_tokens"`
	Temperature float64       `yaml:"temperature" toml:"temperature" json:"temperature"`
}

// DefaultConfig targets a small, low-temperature OpenAI model, which keeps
// summaries short and stable.
func DefaultConfig() Config {
	return Config{
		Provider:    OpenAI,
		Model:       "gpt-4o-mini",
		MaxRetries:  3,
		Timeout:     30 * time.Second,
		MaxTokens:   512,
		Temperature: 0.2,
	}
}

// Client generates one completion per call.
type Client interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
	Provider() Provider
	Close() error
}

// Message is one chat turn. Role is "system", "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-neutral completion request. Zero MaxTokens and
// Temperature fall back to the client Config.
type Request struct {
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Response carries the completion text and usage counters.
type Response struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	TokensIn     int    `json:"tokens_in"`
	TokensOut    int    `json:"tokens_out"`
	Model        string `json:"model"`
	LatencyMs    int64  `json:"latency_ms"`
}

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider Provider
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.Status, e.Message)
}

// StatusCode exposes the HTTP status for retry decisions.
func (e *APIError) StatusCode() int { return e.Status }

// NewClient builds the client for cfg.Provider, wrapped with retries.
// An empty provider means OpenAI.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.Provider == "" {
		cfg.Provider = OpenAI
	}

	switch cfg.Provider {
	case Gemini:
		return newGeminiClient(ctx, cfg)
	case OpenAI, MiniMax, Ollama:
		if cfg.BaseURL == "" {
			cfg.BaseURL = compatibleBaseURLs[cfg.Provider]
		}
		return newOpenAIClient(cfg)
	}
	return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
}
