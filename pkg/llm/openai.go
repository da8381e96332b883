package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// openaiClient talks to any OpenAI-compatible /chat/completions endpoint.
type openaiClient struct {
	cfg  Config
	http *http.Client
	base string
}

func newOpenAIClient(cfg Config) (Client, error) {
	// Local Ollama servers accept any key.
	if cfg.APIKey == "" && cfg.Provider != Ollama {
		return nil, fmt.Errorf("%s API key is required", cfg.Provider)
	}
	base := "https://api.openai.com/v1"
	if cfg.BaseURL != "" {
		base = strings.TrimRight(cfg.BaseURL, "/")
	}
	client := &openaiClient{
		cfg:  cfg,
		base: base,
		http: &http.Client{Timeout: cfg.Timeout},
	}
	return wrapWithRetry(client, cfg.MaxRetries), nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Model string `json:"model"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *openaiClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	cReq := chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   firstPositive(req.MaxTokens, c.cfg.MaxTokens),
		Temperature: req.Temperature,
	}
	if cReq.Temperature <= 0 {
		cReq.Temperature = c.cfg.Temperature
	}

	body, err := json.Marshal(cReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		msg := string(respBody)
		var errResp chatError
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return nil, &APIError{Provider: c.cfg.Provider, Status: httpResp.StatusCode, Message: msg}
	}

	var cResp chatResponse
	if err := json.Unmarshal(respBody, &cResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(cResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return &Response{
		Content:      stripThinkTags(cResp.Choices[0].Message.Content),
		FinishReason: cResp.Choices[0].FinishReason,
		TokensIn:     cResp.Usage.PromptTokens,
		TokensOut:    cResp.Usage.CompletionTokens,
		Model:        cResp.Model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (c *openaiClient) Provider() Provider { return c.cfg.Provider }

func (c *openaiClient) Close() error { return nil }

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

var thinkTagRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// stripThinkTags removes <think>...</think> reasoning blocks that some
// MiniMax and Ollama models emit ahead of the answer.
func stripThinkTags(content string) string {
	return strings.TrimSpace(thinkTagRe.ReplaceAllString(content, ""))
}
