// Package app assembles the newsdesk components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/archive"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/config"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/dedup"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/enrich"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/events"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/fallback"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/research"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/scheduler"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/store"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/vector"
	"github.com/RobinCoderZhao/newsdesk/pkg/llm"
	"github.com/RobinCoderZhao/newsdesk/pkg/notify"
	"github.com/RobinCoderZhao/newsdesk/pkg/scraper"
)

// App holds the wired components of a running newsdesk.
type App struct {
	Config   config.Config
	Store    *store.Store
	Fetcher  *fallback.Orchestrator
	Stage    *enrich.Stage
	Research *research.Service
	Vectors  vector.Index
	Notifier *notify.Dispatcher

	closers []func() error
	logger  *slog.Logger
}

// New opens the database and connects optional services. Optional services
// that are not configured, or fail to connect, are replaced by no-ops.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg, logger: slog.Default().With("component", "app")}

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.Store = st
	a.closers = append(a.closers, st.Close)

	a.Fetcher = fallback.New(cfg.Providers(), fallback.Options{
		MinArticles: cfg.Fetch.MinArticles,
		Policy:      cfg.RetryPolicy(),
	})

	summarizer, err := a.summarizer(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	stageOpts := enrich.Options{
		Concurrency: cfg.Enrich.Concurrency,
		MaxTopics:   cfg.Enrich.MaxTopics,
	}
	if cfg.Enrich.FetchFullText {
		stageOpts.FullText = scraper.NewFetcher(cfg.Scraper)
	}
	a.Stage = enrich.NewStage(summarizer, enrich.NounPhrases{}, stageOpts)

	known := a.knownIndex(ctx)
	a.Vectors = a.vectorIndex(ctx)

	a.Research = research.NewService(a.Fetcher, a.Stage, st, research.Options{
		HeadSize: cfg.Enrich.HeadSize,
		HeadOnly: cfg.Enrich.HeadOnly,
		Known:    known,
		Vectors:  a.Vectors,
		Archive:  a.archiver(ctx),
		Events:   a.publisher(),
	})
	a.Notifier = notify.FromConfig(cfg.Notify)
	return a, nil
}

func (a *App) summarizer(ctx context.Context) (enrich.Summarizer, error) {
	if a.Config.Enrich.Backend != config.BackendLLM {
		return enrich.NewHuggingFace(a.Config.HuggingFace), nil
	}
	client, err := llm.NewClient(ctx, a.Config.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return enrich.NewLLMSummarizer(client), nil
}

func (a *App) knownIndex(ctx context.Context) dedup.Index {
	if a.Config.Redis.Addr == "" {
		return a.Store
	}
	cache, err := dedup.NewCache(ctx, a.Store, a.Config.Redis)
	if err != nil {
		a.logger.Warn("redis unavailable, using database for dedup", "error", err)
		return a.Store
	}
	a.closers = append(a.closers, cache.Close)
	return cache
}

func (a *App) vectorIndex(ctx context.Context) vector.Index {
	if a.Config.Chroma.URL == "" || a.Config.Cohere.APIKey == "" {
		return vector.Nop{}
	}
	embedder, err := vector.NewCohere(a.Config.Cohere)
	if err != nil {
		a.logger.Warn("cohere unavailable, similarity search disabled", "error", err)
		return vector.Nop{}
	}
	chroma, err := vector.NewChroma(ctx, a.Config.Chroma, embedder)
	if err != nil {
		a.logger.Warn("chroma unavailable, similarity search disabled", "error", err)
		return vector.Nop{}
	}
	return chroma
}

func (a *App) archiver(ctx context.Context) archive.Archiver {
	if a.Config.Archive.Bucket == "" {
		return archive.Nop{}
	}
	s3, err := archive.NewS3(ctx, a.Config.Archive)
	if err != nil {
		a.logger.Warn("s3 unavailable, archiving disabled", "error", err)
		return archive.Nop{}
	}
	return s3
}

func (a *App) publisher() events.Publisher {
	if len(a.Config.Events.Brokers) == 0 {
		return events.Nop{}
	}
	k, err := events.NewKafka(a.Config.Events)
	if err != nil {
		a.logger.Warn("kafka unavailable, events disabled", "error", err)
		return events.Nop{}
	}
	a.closers = append(a.closers, k.Close)
	return k
}

// Scheduler returns a scheduler with the configured daily research job.
// Completed runs are sent to every configured notification channel.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	s := scheduler.New(a.Config.Scheduler.LockFile)
	topic := a.Config.Scheduler.Topic
	err := s.Add(scheduler.Job{
		Name:     "daily-research",
		Schedule: a.Config.Scheduler.Schedule,
		Fn: func(ctx context.Context) error {
			res, err := a.Research.Run(ctx, topic)
			if err != nil {
				return err
			}
			if res.Error != "" {
				return errors.New(res.Error)
			}
			if len(a.Notifier.Channels()) > 0 && len(res.Articles) > 0 {
				if err := a.Notifier.SendAll(ctx, digestMessage(res)); err != nil {
					a.logger.Warn("digest not delivered", "task_id", res.TaskID, "error", err)
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases every connection in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
