// Package enrich adds summaries and topics to articles using a bounded pool
// of concurrent workers. A failure on one article never affects another and
// never fails the batch; the affected field is simply left unset.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/sources"
)

const (
	// DefaultConcurrency is the number of articles enriched at once.
	DefaultConcurrency = 2
	// DefaultMaxTopics caps the topics kept per article.
	DefaultMaxTopics = 3
)

// TextFetcher loads the readable text of an article page.
type TextFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Options configures a Stage.
type Options struct {
	Concurrency int
	MaxTopics   int
	// FullText, when set, fills in content for articles that have none.
	FullText TextFetcher
	Logger   *slog.Logger
}

// Stage enriches batches of articles.
type Stage struct {
	summarizer  Summarizer
	topics      TopicExtractor
	fullText    TextFetcher
	concurrency int
	maxTopics   int
	logger      *slog.Logger
}

// NewStage creates an enrichment stage. A nil summarizer or extractor skips
// that step.
func NewStage(summarizer Summarizer, topics TopicExtractor, opts Options) *Stage {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxTopics <= 0 {
		opts.MaxTopics = DefaultMaxTopics
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Stage{
		summarizer:  summarizer,
		topics:      topics,
		fullText:    opts.FullText,
		concurrency: opts.Concurrency,
		maxTopics:   opts.MaxTopics,
		logger:      opts.Logger,
	}
}

// Enrich returns a copy of articles, same length and order, with summary and
// topics filled in where possible. It returns after every article is done.
func (s *Stage) Enrich(ctx context.Context, articles []sources.Article) []sources.Article {
	out := make([]sources.Article, len(articles))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, a := range articles {
		i, a := i, a
		g.Go(func() error {
			out[i] = s.enrichOne(ctx, a)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Stage) enrichOne(ctx context.Context, a sources.Article) (result sources.Article) {
	result = a
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("enrichment panicked", "url", a.URL, "panic", r)
		}
	}()

	text := a.Text()
	if text == "" && s.fullText != nil && a.URL != "" {
		body, err := s.fullText.FetchText(ctx, a.URL)
		if err != nil {
			s.logger.Warn("full text fetch failed", "url", a.URL, "error", err)
		} else if body != "" {
			result.Content = body
			text = body
		}
	}
	if text == "" {
		return result
	}

	if s.summarizer != nil {
		summary, err := s.summarize(ctx, text)
		if err != nil {
			s.logger.Warn("summarization failed", "url", a.URL, "error", err)
		} else {
			result.Summary = summary
		}
	}

	if s.topics != nil {
		topics, err := s.extractTopics(text)
		if err != nil {
			s.logger.Warn("topic extraction failed", "url", a.URL, "error", err)
			result.Topics = nil
		} else {
			joined := strings.Join(topics, ", ")
			result.Topics = &joined
		}
	}
	return result
}

func (s *Stage) summarize(ctx context.Context, text string) (summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("summarizer panic: %v", r)
		}
	}()
	return s.summarizer.Summarize(ctx, text)
}

func (s *Stage) extractTopics(text string) (topics []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("topic extractor panic: %v", r)
		}
	}()
	phrases, err := s.topics.Extract(text)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(phrases))
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		topics = append(topics, p)
		if len(topics) == s.maxTopics {
			break
		}
	}
	return topics, nil
}
