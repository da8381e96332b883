package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/RobinCoderZhao/newsdesk/pkg/llm"
)

const summarizePrompt = `You summarize news articles. Reply with two or three plain sentences
covering who, what and why it matters. No preamble, no bullet points, no markdown.`

// LLMSummarizer summarizes through a chat-completion model.
type LLMSummarizer struct {
	client    llm.Client
	maxTokens int
	maxChars  int
}

// NewLLMSummarizer wraps an LLM client as a Summarizer.
func NewLLMSummarizer(client llm.Client) *LLMSummarizer {
	return &LLMSummarizer{client: client, maxTokens: 256, maxChars: 8000}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := s.client.Generate(ctx, &llm.Request{
		System:      summarizePrompt,
		Messages:    []llm.Message{{Role: "user", Content: truncateRunes(text, s.maxChars)}},
		MaxTokens:   s.maxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("%s summarize: %w", s.client.Provider(), err)
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", ErrEmptySummary
	}
	return summary, nil
}
