package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// geminiClient implements Client on the Google Generative AI SDK.
type geminiClient struct {
	cfg    Config
	client *genai.Client
}

func newGeminiClient(ctx context.Context, cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if cfg.Model == "" || strings.HasPrefix(cfg.Model, "gpt-") {
		cfg.Model = "gemini-1.5-flash"
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return wrapWithRetry(&geminiClient{cfg: cfg, client: client}, cfg.MaxRetries), nil
}

func (c *geminiClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	model := c.client.GenerativeModel(c.cfg.Model)
	if req.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	if n := firstPositive(req.MaxTokens, c.cfg.MaxTokens); n > 0 {
		model.SetMaxOutputTokens(int32(n))
	}
	temp := req.Temperature
	if temp <= 0 {
		temp = c.cfg.Temperature
	}
	if temp > 0 {
		model.SetTemperature(float32(temp))
	}

	cs := model.StartChat()
	var last genai.Part = genai.Text("")
	for i, m := range req.Messages {
		if i == len(req.Messages)-1 {
			last = genai.Text(m.Content)
			break
		}
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}

	resp, err := cs.SendMessage(ctx, last)
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return nil, &APIError{Provider: Gemini, Status: gerr.Code, Message: gerr.Message}
		}
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no candidates in response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}

	out := &Response{
		Content:      strings.TrimSpace(sb.String()),
		FinishReason: resp.Candidates[0].FinishReason.String(),
		Model:        c.cfg.Model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}
	if resp.UsageMetadata != nil {
		out.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
		out.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func (c *geminiClient) Provider() Provider { return Gemini }

func (c *geminiClient) Close() error { return c.client.Close() }
