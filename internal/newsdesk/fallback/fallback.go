// Package fallback tries news providers in priority order and returns the
// first tier whose result is good enough. Results from different tiers are
// never combined.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/sources"
	"github.com/RobinCoderZhao/newsdesk/pkg/retry"
)

// DefaultMinArticles is the smallest batch a non-final tier may return.
const DefaultMinArticles = 3

// ErrEmptyTopic is returned when FetchNews is called without a topic.
var ErrEmptyTopic = errors.New("topic is required")

// ExhaustedError reports that no tier produced a usable result.
type ExhaustedError struct {
	Topic string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("Could not retrieve sufficient news for '%s'. Please try another search.", e.Topic)
}

// Outcome is the accepted tier's result.
type Outcome struct {
	Articles []sources.Article `json:"articles"`
	Provider string            `json:"provider"`
}

// Options configures an Orchestrator.
type Options struct {
	MinArticles int
	Policy      retry.Policy
	Logger      *slog.Logger
}

// Orchestrator walks provider tiers from highest to lowest priority.
type Orchestrator struct {
	tiers       []sources.Provider
	minArticles int
	policy      retry.Policy
	logger      *slog.Logger
}

// New creates an orchestrator over tiers, highest priority first.
func New(tiers []sources.Provider, opts Options) *Orchestrator {
	if opts.MinArticles <= 0 {
		opts.MinArticles = DefaultMinArticles
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Policy.Logger == nil {
		opts.Policy.Logger = opts.Logger
	}
	return &Orchestrator{
		tiers:       tiers,
		minArticles: opts.MinArticles,
		policy:      opts.Policy,
		logger:      opts.Logger,
	}
}

// FetchNews returns the first tier result with at least MinArticles
// articles. The last tier is accepted with any non-empty result.
func (o *Orchestrator) FetchNews(ctx context.Context, topic string) (*Outcome, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	for i, p := range o.tiers {
		last := i == len(o.tiers)-1
		log := o.logger.With("topic", topic, "provider", p.Name(), "tier", i+1)
		log.Info("fetching articles")

		articles, err := retry.Value(ctx, o.policy, func(ctx context.Context) ([]sources.Article, error) {
			return p.Fetch(ctx, topic)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error("provider failed", "error", err)
			continue
		}

		switch {
		case len(articles) >= o.minArticles:
			log.Info("provider accepted", "articles", len(articles))
			return &Outcome{Articles: articles, Provider: p.Name()}, nil
		case last && len(articles) > 0:
			log.Info("accepting best-effort result from last tier", "articles", len(articles), "min", o.minArticles)
			return &Outcome{Articles: articles, Provider: p.Name()}, nil
		default:
			log.Warn("provider returned too few articles", "articles", len(articles), "min", o.minArticles)
		}
	}

	o.logger.Error("all sources exhausted", "topic", topic, "min", o.minArticles)
	return nil, &ExhaustedError{Topic: topic}
}
