// Package research runs one research task end to end: fetch with
// fallback, drop known URLs, enrich the head of the batch, and persist.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/archive"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/dedup"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/enrich"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/events"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/fallback"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/sources"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/store"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/vector"
)

// DefaultHeadSize is how many new articles are enriched per run.
const DefaultHeadSize = 2

// Fetcher retrieves a batch for a topic.
type Fetcher interface {
	FetchNews(ctx context.Context, topic string) (*fallback.Outcome, error)
}

// Enricher adds summaries and topics to a batch.
type Enricher interface {
	Enrich(ctx context.Context, articles []sources.Article) []sources.Article
}

// Store is the persistence used by a run.
type Store interface {
	CreateTask(ctx context.Context, topic string) (*store.Task, error)
	SetTaskStatus(ctx context.Context, id int64, status store.Status) error
	CreateDocument(ctx context.Context, taskID int64, source string, content store.Content) (*store.Document, error)
	UpdateDocumentSummary(ctx context.Context, id int64, summary string) error
	UpdateDocumentTopics(ctx context.Context, id int64, topics string) error
	GetTask(ctx context.Context, id int64) (*store.Task, error)
	DeleteTask(ctx context.Context, id int64) (bool, error)
}

// Result is what a run produced.
type Result struct {
	TaskID    int64             `json:"task_id"`
	Topic     string            `json:"topic"`
	Status    store.Status      `json:"status"`
	Provider  string            `json:"provider,omitempty"`
	Articles  []sources.Article `json:"articles"`
	Duplicate bool              `json:"duplicate,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Options configures a Service.
type Options struct {
	HeadSize int
	// HeadOnly returns just the enriched head instead of head and tail.
	HeadOnly bool

	Known   dedup.Index
	Vectors vector.Index
	Archive archive.Archiver
	Events  events.Publisher
	Logger  *slog.Logger
	Now     func() time.Time
}

// Service runs research tasks. It is safe for concurrent use.
type Service struct {
	fetcher  Fetcher
	enricher Enricher
	store    Store
	known    dedup.Index
	vectors  vector.Index
	archive  archive.Archiver
	events   events.Publisher
	headSize int
	headOnly bool
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires a research service. Optional collaborators left nil are
// disabled; Known defaults to nothing being known.
func NewService(fetcher Fetcher, enricher Enricher, st Store, opts Options) *Service {
	if opts.HeadSize <= 0 {
		opts.HeadSize = DefaultHeadSize
	}
	if opts.Vectors == nil {
		opts.Vectors = vector.Nop{}
	}
	if opts.Archive == nil {
		opts.Archive = archive.Nop{}
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		fetcher:  fetcher,
		enricher: enricher,
		store:    st,
		known:    opts.Known,
		vectors:  opts.Vectors,
		archive:  opts.Archive,
		events:   opts.Events,
		headSize: opts.HeadSize,
		headOnly: opts.HeadOnly,
		logger:   opts.Logger.With("component", "research"),
		now:      opts.Now,
	}
}

// Run executes one research task for topic. Running out of sources is not
// an error: the result carries the message and the task is marked failed.
// Errors are returned only for an empty topic or a persistence failure.
func (s *Service) Run(ctx context.Context, topic string) (*Result, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fallback.ErrEmptyTopic
	}
	log := s.logger.With("topic", topic)

	task, err := s.store.CreateTask(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	log = log.With("task_id", task.ID)
	res := &Result{TaskID: task.ID, Topic: topic, Articles: []sources.Article{}}

	outcome, err := s.fetcher.FetchNews(ctx, topic)
	if err != nil {
		var exhausted *fallback.ExhaustedError
		if !errors.As(err, &exhausted) {
			s.finish(ctx, res, store.StatusFailed)
			return nil, fmt.Errorf("fetch news: %w", err)
		}
		log.Warn("no usable news", "error", err)
		res.Error = exhausted.Error()
		s.finish(ctx, res, store.StatusFailed)
		return res, nil
	}
	res.Provider = outcome.Provider
	if len(outcome.Articles) == 0 {
		s.finish(ctx, res, store.StatusEmpty)
		return res, nil
	}

	var known map[string]struct{}
	if s.known != nil {
		known, err = dedup.Known(ctx, s.known, outcome.Articles)
		if err != nil {
			s.finish(ctx, res, store.StatusFailed)
			return nil, fmt.Errorf("look up known urls: %w", err)
		}
	}
	fresh := dedup.FilterNew(outcome.Articles, known)
	if len(fresh) == 0 {
		log.Info("all articles already stored", "fetched", len(outcome.Articles))
		res.Duplicate = true
		s.finish(ctx, res, store.StatusDuplicate)
		return res, nil
	}

	head, tail := enrich.Split(fresh, s.headSize)
	enriched := s.enricher.Enrich(ctx, head)
	log.Info("enriched articles", "provider", outcome.Provider, "fetched", len(outcome.Articles),
		"new", len(fresh), "enriched", len(enriched))

	var stored []string
	for _, a := range enriched {
		if err := s.persist(ctx, task.ID, outcome.Provider, a); err != nil {
			s.finish(ctx, res, store.StatusFailed)
			return nil, err
		}
		if a.URL != "" {
			stored = append(stored, a.URL)
		}
	}
	if r, ok := s.known.(dedup.Rememberer); ok && len(stored) > 0 {
		if err := r.Remember(ctx, stored); err != nil {
			log.Warn("remember urls failed", "error", err)
		}
	}

	if s.headOnly {
		res.Articles = enriched
	} else {
		res.Articles = enrich.Assemble(enriched, tail)
	}
	s.finish(ctx, res, store.StatusCompleted)
	return res, nil
}

// DeleteTask removes a task and its documents. Their URLs are evicted from
// the known-URL cache first, so a failed eviction leaves the task in place
// and the delete can be retried. Vector removal failures are only logged.
// It reports false when the task does not exist.
func (s *Service) DeleteTask(ctx context.Context, id int64) (bool, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	var urls []string
	ids := make([]int64, 0, len(task.Documents))
	for _, d := range task.Documents {
		ids = append(ids, d.ID)
		if d.Content.URL != "" {
			urls = append(urls, d.Content.URL)
		}
	}
	if f, ok := s.known.(dedup.Forgetter); ok && len(urls) > 0 {
		if err := f.Forget(ctx, urls); err != nil {
			return false, fmt.Errorf("forget task %d urls: %w", id, err)
		}
	}

	deleted, err := s.store.DeleteTask(ctx, id)
	if err != nil || !deleted {
		return deleted, err
	}
	if len(ids) > 0 {
		if err := s.vectors.Delete(ctx, ids); err != nil {
			s.logger.Warn("vector delete failed", "task_id", id, "error", err)
		}
	}
	s.logger.Info("deleted task", "task_id", id, "documents", len(ids))
	return true, nil
}

func (s *Service) persist(ctx context.Context, taskID int64, provider string, a sources.Article) error {
	source := a.Source
	if source == "" {
		source = provider
	}
	doc, err := s.store.CreateDocument(ctx, taskID, source, store.Content{
		Title:       a.Title,
		URL:         a.URL,
		Description: a.Description,
		Image:       a.ImageURL,
	})
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	if a.Summary != "" {
		if err := s.store.UpdateDocumentSummary(ctx, doc.ID, a.Summary); err != nil {
			return err
		}
	}
	if a.Topics != nil {
		if err := s.store.UpdateDocumentTopics(ctx, doc.ID, *a.Topics); err != nil {
			return err
		}
	}

	text := a.Summary
	if text == "" {
		text = a.Text()
	}
	if text != "" {
		meta := vector.Metadata{TaskID: taskID, DocumentID: doc.ID, Source: source, Title: a.Title, URL: a.URL}
		if err := s.vectors.Index(ctx, doc.ID, strings.TrimSpace(a.Title+"\n"+text), meta); err != nil {
			s.logger.Warn("vector index failed", "document_id", doc.ID, "error", err)
		}
	}
	return nil
}

// finish records the final status, then archives and announces the run.
// Only the status update is required; the rest is logged on failure.
func (s *Service) finish(ctx context.Context, res *Result, status store.Status) {
	res.Status = status
	log := s.logger.With("task_id", res.TaskID, "topic", res.Topic, "status", status)
	if err := s.store.SetTaskStatus(ctx, res.TaskID, status); err != nil {
		log.Error("update task status failed", "error", err)
	}

	if status == store.StatusCompleted {
		if key, err := s.archive.Put(ctx, res.TaskID, s.now(), res); err != nil {
			log.Warn("archive failed", "error", err)
		} else if key != "" {
			log.Debug("archived result", "key", key)
		}
	}

	ev := events.Event{
		TaskID:   res.TaskID,
		Topic:    res.Topic,
		Status:   string(status),
		Articles: len(res.Articles),
		Provider: res.Provider,
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Warn("publish event failed", "error", err)
	}
	log.Info("research task finished", "articles", len(res.Articles))
}
