package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Summarizer turns article text into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// HuggingFaceURL is the default hosted summarization model.
const HuggingFaceURL = "https://api-inference.huggingface.co/models/facebook/bart-large-cnn"

var (
	// ErrNoToken is returned when the summarizer has no API token.
	ErrNoToken = errors.New("huggingface token not configured")
	// ErrEmptySummary is returned when the model answers without a summary.
	ErrEmptySummary = errors.New("empty summary")
)

// HuggingFaceConfig configures the hosted summarizer.
type HuggingFaceConfig struct {
	Token   string        `yaml:"token" toml:"token" env:"HUGGINGFACE_TOKEN"`
	URL     string        `yaml:"url" toml:"url" env:"HUGGINGFACE_URL"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
	// MaxInputChars truncates long inputs before they are sent.
	MaxInputChars int `yaml:"max_input_chars" toml:"max_input_chars"`
	// RequestsPerMinute throttles calls; zero disables throttling.
	RequestsPerMinute int `yaml:"requests_per_minute" toml:"requests_per_minute"`
}

// HuggingFace calls the Hugging Face inference API.
type HuggingFace struct {
	client   *http.Client
	token    string
	url      string
	maxChars int
	limiter  *rate.Limiter
}

// NewHuggingFace creates a hosted summarizer.
func NewHuggingFace(cfg HuggingFaceConfig) *HuggingFace {
	if cfg.URL == "" {
		cfg.URL = HuggingFaceURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = 4000
	}
	h := &HuggingFace{
		client:   &http.Client{Timeout: cfg.Timeout},
		token:    cfg.Token,
		url:      cfg.URL,
		maxChars: cfg.MaxInputChars,
	}
	if cfg.RequestsPerMinute > 0 {
		h.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return h
}

type hfSummary struct {
	SummaryText string `json:"summary_text"`
}

type hfError struct {
	Error string `json:"error"`
}

func (h *HuggingFace) Summarize(ctx context.Context, text string) (string, error) {
	if h.token == "" {
		return "", ErrNoToken
	}
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	body, err := json.Marshal(map[string]string{"inputs": truncateRunes(text, h.maxChars)})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e hfError
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			return "", fmt.Errorf("HuggingFace API error (%d): %s", resp.StatusCode, e.Error)
		}
		return "", fmt.Errorf("HuggingFace API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var summaries []hfSummary
	if err := json.Unmarshal(respBody, &summaries); err != nil {
		var e hfError
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			return "", fmt.Errorf("HuggingFace API error: %s", e.Error)
		}
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(summaries) == 0 || strings.TrimSpace(summaries[0].SummaryText) == "" {
		return "", ErrEmptySummary
	}
	return strings.TrimSpace(summaries[0].SummaryText), nil
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
