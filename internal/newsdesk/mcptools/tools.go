// Package mcptools exposes newsdesk operations as MCP tools.
package mcptools

import (
	"context"
	"errors"
	"fmt"

	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/research"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/store"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/vector"
	"github.com/RobinCoderZhao/newsdesk/pkg/mcpserver"
)

// Store is the read side of the task store.
type Store interface {
	GetTask(ctx context.Context, id int64) (*store.Task, error)
	SearchDocuments(ctx context.Context, q string, limit int) ([]store.Document, error)
	Stats(ctx context.Context) (*store.Stats, error)
}

// Researcher runs research tasks.
type Researcher interface {
	Run(ctx context.Context, topic string) (*research.Result, error)
}

// Deps are the services the tools call.
type Deps struct {
	Research Researcher
	Store    Store
	Vectors  vector.Index
}

// NewServer returns an MCP server with every newsdesk tool registered.
func NewServer(version string, d Deps) *mcpserver.Server {
	s := mcpserver.New("newsdesk", version)
	s.Register(Tools(d)...)
	return s
}

// Tools builds the tool set over d.
func Tools(d Deps) []mcpserver.Tool {
	if d.Vectors == nil {
		d.Vectors = vector.Nop{}
	}
	return []mcpserver.Tool{
		{
			Name:        "research_topic",
			Description: "Fetch the latest news for a topic, summarize the top articles and store them as a new task.",
			Schema: mcpserver.ObjectSchema(map[string]any{
				"topic": mcpserver.Prop("string", "News topic or search query"),
			}, "topic"),
			Handler: d.researchTopic,
		},
		{
			Name:        "get_task",
			Description: "Return a stored research task with its documents.",
			Schema: mcpserver.ObjectSchema(map[string]any{
				"id": mcpserver.Prop("integer", "Task ID"),
			}, "id"),
			Handler: d.getTask,
		},
		{
			Name:        "search_history",
			Description: "Search stored articles by keyword.",
			Schema: mcpserver.ObjectSchema(map[string]any{
				"query": mcpserver.Prop("string", "Keyword to look for"),
				"limit": mcpserver.Prop("integer", "Maximum results (default 20)"),
			}, "query"),
			Handler: d.searchHistory,
		},
		{
			Name:        "similar_articles",
			Description: "Find stored articles semantically similar to a query.",
			Schema: mcpserver.ObjectSchema(map[string]any{
				"query": mcpserver.Prop("string", "Free text query"),
				"limit": mcpserver.Prop("integer", "Maximum results (default 5)"),
			}, "query"),
			Handler: d.similarArticles,
		},
		{
			Name:        "newsdesk_stats",
			Description: "Return task and document totals and the most researched topics.",
			Schema:      mcpserver.ObjectSchema(map[string]any{}),
			Handler:     d.stats,
		},
	}
}

func (d Deps) researchTopic(ctx context.Context, args mcpserver.Args) (*mcpserver.ToolCallResult, error) {
	topic, err := args.RequiredString("topic")
	if err != nil {
		return nil, err
	}
	res, err := d.Research.Run(ctx, topic)
	if err != nil {
		return nil, err
	}
	if res.Error != "" {
		return mcpserver.ErrorResult(errors.New(res.Error)), nil
	}
	return mcpserver.JSONResult(res), nil
}

func (d Deps) getTask(ctx context.Context, args mcpserver.Args) (*mcpserver.ToolCallResult, error) {
	id, err := args.Int("id", 0)
	if err != nil {
		return nil, err
	}
	if id < 1 {
		return nil, errors.New(`argument "id" must be a positive integer`)
	}
	task, err := d.Store.GetTask(ctx, int64(id))
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %d not found", id)
	}
	return mcpserver.JSONResult(task), nil
}

func (d Deps) searchHistory(ctx context.Context, args mcpserver.Args) (*mcpserver.ToolCallResult, error) {
	q, err := args.RequiredString("query")
	if err != nil {
		return nil, err
	}
	limit, err := args.Int("limit", 20)
	if err != nil {
		return nil, err
	}
	docs, err := d.Store.SearchDocuments(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	return mcpserver.JSONResult(docs), nil
}

func (d Deps) similarArticles(ctx context.Context, args mcpserver.Args) (*mcpserver.ToolCallResult, error) {
	q, err := args.RequiredString("query")
	if err != nil {
		return nil, err
	}
	limit, err := args.Int("limit", vector.DefaultLimit)
	if err != nil {
		return nil, err
	}
	matches, err := d.Vectors.Search(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	return mcpserver.JSONResult(matches), nil
}

func (d Deps) stats(ctx context.Context, _ mcpserver.Args) (*mcpserver.ToolCallResult, error) {
	s, err := d.Store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return mcpserver.JSONResult(s), nil
}
