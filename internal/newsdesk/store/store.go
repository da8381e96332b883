// Package store persists research tasks and their documents in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/RobinCoderZhao/newsdesk/pkg/storage"
)

// Schema is the SQLite schema for tasks and documents.
const Schema = `
CREATE TABLE IF NOT EXISTS tasks (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    topic       TEXT NOT NULL,
    status      TEXT NOT NULL DEFAULT 'processing',
    created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    task_id     INTEGER NOT NULL REFERENCES tasks(id),
    source      TEXT NOT NULL,
    content     TEXT NOT NULL,
    summary     TEXT,
    topics      TEXT,
    created_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_topic ON tasks(topic);
CREATE INDEX IF NOT EXISTS idx_documents_task ON documents(task_id);
CREATE INDEX IF NOT EXISTS idx_documents_url ON documents(json_extract(content, '$.url'));
`

// Status is the lifecycle state of a research task.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusEmpty      Status = "empty"
	StatusDuplicate  Status = "duplicate"
	StatusFailed     Status = "failed"
)

// Task is one research request for a topic.
type Task struct {
	ID        int64      `json:"id"`
	Topic     string     `json:"topic"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	Documents []Document `json:"documents"`
}

// Content is the article snapshot stored with a document.
type Content struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Document is a persisted article belonging to a task.
type Document struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	Source    string    `json:"source"`
	Content   Content   `json:"content"`
	Summary   *string   `json:"summary"`
	Topics    *string   `json:"topics"`
	CreatedAt time.Time `json:"created_at"`
}

// TopicCount is a topic and how many tasks requested it.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// Stats summarizes stored research.
type Stats struct {
	TotalTasks     int          `json:"total_tasks"`
	TotalDocuments int          `json:"total_documents"`
	TopTopics      []TopicCount `json:"top_topics"`
}

// Store provides task and document persistence.
type Store struct {
	db  *storage.DB
	sql sq.StatementBuilderType
	now func() time.Time
}

// New wraps an open database and applies the schema.
func New(ctx context.Context, db *storage.DB) (*Store, error) {
	if err := db.Migrate(ctx, Schema); err != nil {
		return nil, err
	}
	return &Store{
		db:  db,
		sql: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Open opens the database described by cfg and applies the schema.
func Open(ctx context.Context, cfg storage.Config) (*Store, error) {
	db, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) exec(ctx context.Context, db execer, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return db.ExecContext(ctx, query, args...)
}

func (s *Store) query(ctx context.Context, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.db.QueryContext(ctx, query, args...)
}

func (s *Store) queryRow(ctx context.Context, b sq.Sqlizer) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.db.QueryRowContext(ctx, query, args...), nil
}

// CreateTask inserts a new task in the processing state.
func (s *Store) CreateTask(ctx context.Context, topic string) (*Task, error) {
	task := &Task{Topic: topic, Status: StatusProcessing, CreatedAt: s.now(), Documents: []Document{}}
	res, err := s.exec(ctx, s.db, s.sql.Insert("tasks").
		Columns("topic", "status", "created_at").
		Values(task.Topic, string(task.Status), task.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	if task.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("task id: %w", err)
	}
	return task, nil
}

// SetTaskStatus updates a task's status.
func (s *Store) SetTaskStatus(ctx context.Context, id int64, status Status) error {
	_, err := s.exec(ctx, s.db, s.sql.Update("tasks").Set("status", string(status)).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("update task %d status: %w", id, err)
	}
	return nil
}

// GetTask returns the task with its documents, or nil when it does not exist.
func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	row, err := s.queryRow(ctx, s.sql.Select("id", "topic", "status", "created_at").
		From("tasks").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	var t Task
	if err := row.Scan(&t.ID, &t.Topic, &t.Status, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}

	docs, err := s.documents(ctx, sq.Eq{"task_id": id})
	if err != nil {
		return nil, err
	}
	t.Documents = docs
	return &t, nil
}

// ListTasks returns tasks newest first, without documents.
func (s *Store) ListTasks(ctx context.Context, skip, limit int) ([]Task, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.query(ctx, s.sql.Select("id", "topic", "status", "created_at").
		From("tasks").OrderBy("id DESC").Limit(uint64(limit)).Offset(uint64(skip)))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Topic, &t.Status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// DeleteTask removes a task and its documents. It reports false when the
// task does not exist.
func (s *Store) DeleteTask(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, s.sql.Delete("documents").Where(sq.Eq{"task_id": id})); err != nil {
			return fmt.Errorf("delete documents: %w", err)
		}
		res, err := s.exec(ctx, tx, s.sql.Delete("tasks").Where(sq.Eq{"id": id}))
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// CreateDocument stores an article snapshot under a task.
func (s *Store) CreateDocument(ctx context.Context, taskID int64, source string, content Content) (*Document, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}
	doc := &Document{TaskID: taskID, Source: source, Content: content, CreatedAt: s.now()}
	res, err := s.exec(ctx, s.db, s.sql.Insert("documents").
		Columns("task_id", "source", "content", "created_at").
		Values(taskID, source, string(raw), doc.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	if doc.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("document id: %w", err)
	}
	return doc, nil
}

// UpdateDocumentSummary sets a document's summary.
func (s *Store) UpdateDocumentSummary(ctx context.Context, id int64, summary string) error {
	_, err := s.exec(ctx, s.db, s.sql.Update("documents").Set("summary", summary).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("update document %d summary: %w", id, err)
	}
	return nil
}

// UpdateDocumentTopics sets a document's topics.
func (s *Store) UpdateDocumentTopics(ctx context.Context, id int64, topics string) error {
	_, err := s.exec(ctx, s.db, s.sql.Update("documents").Set("topics", topics).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("update document %d topics: %w", id, err)
	}
	return nil
}

// ExistingURLs returns which of urls are already stored.
func (s *Store) ExistingURLs(ctx context.Context, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	rows, err := s.query(ctx, s.sql.Select("DISTINCT json_extract(content, '$.url')").
		From("documents").Where(sq.Eq{"json_extract(content, '$.url')": urls}))
	if err != nil {
		return nil, fmt.Errorf("existing urls: %w", err)
	}
	defer rows.Close()

	var found []string
	for rows.Next() {
		var u sql.NullString
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		if u.Valid {
			found = append(found, u.String)
		}
	}
	return found, rows.Err()
}

// SearchDocuments returns documents whose summary contains q, newest first.
func (s *Store) SearchDocuments(ctx context.Context, q string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + escapeLike(q) + "%"
	return s.documents(ctx, sq.Expr("summary LIKE ? ESCAPE '\\'", pattern), limit)
}

// Stats returns totals and the five most requested topics.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{TopTopics: []TopicCount{}}

	row, err := s.queryRow(ctx, s.sql.Select("COUNT(*)").From("tasks"))
	if err != nil {
		return nil, err
	}
	if err := row.Scan(&st.TotalTasks); err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	row, err = s.queryRow(ctx, s.sql.Select("COUNT(*)").From("documents"))
	if err != nil {
		return nil, err
	}
	if err := row.Scan(&st.TotalDocuments); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	rows, err := s.query(ctx, s.sql.Select("topic", "COUNT(id) AS n").From("tasks").
		GroupBy("topic").OrderBy("n DESC", "topic ASC").Limit(5))
	if err != nil {
		return nil, fmt.Errorf("top topics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tc TopicCount
		if err := rows.Scan(&tc.Topic, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		st.TopTopics = append(st.TopTopics, tc)
	}
	return st, rows.Err()
}

func (s *Store) documents(ctx context.Context, where sq.Sqlizer, limit ...int) ([]Document, error) {
	b := s.sql.Select("id", "task_id", "source", "content", "summary", "topics", "created_at").
		From("documents").Where(where)
	if len(limit) > 0 {
		b = b.OrderBy("id DESC").Limit(uint64(limit[0]))
	} else {
		b = b.OrderBy("id ASC")
	}
	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var (
			d       Document
			raw     string
			summary sql.NullString
			topics  sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.TaskID, &d.Source, &raw, &summary, &topics, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &d.Content); err != nil {
			return nil, fmt.Errorf("decode document %d content: %w", d.ID, err)
		}
		if summary.Valid {
			d.Summary = &summary.String
		}
		if topics.Valid {
			d.Topics = &topics.String
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
