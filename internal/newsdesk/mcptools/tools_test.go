package mcptools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/research"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/store"
	"github.com/RobinCoderZhao/newsdesk/pkg/mcpserver"
	"github.com/RobinCoderZhao/newsdesk/pkg/storage"
)

type fakeResearcher struct {
	res *research.Result
}

func (f fakeResearcher) Run(_ context.Context, topic string) (*research.Result, error) {
	r := *f.res
	r.Topic = topic
	return &r, nil
}

func call(t *testing.T, s *mcpserver.Server, name string, args map[string]any) *mcpserver.ToolCallResult {
	t.Helper()
	params, _ := json.Marshal(map[string]any{"name": name, "arguments": args})
	resp := s.Handle(context.Background(), &mcpserver.Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage("1"),
		Method:  "tools/call",
		Params:  params,
	})
	if resp.Error != nil {
		t.Fatalf("%s: rpc error %v", name, resp.Error)
	}
	return resp.Result.(*mcpserver.ToolCallResult)
}

func newDeps(t *testing.T, res *research.Result) (Deps, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), storage.Config{Path: filepath.Join(t.TempDir(), "mcp.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return Deps{Research: fakeResearcher{res: res}, Store: st}, st
}

func TestToolsListed(t *testing.T) {
	d, _ := newDeps(t, &research.Result{})
	defs := NewServer("test", d).Tools()
	var names []string
	for _, def := range defs {
		names = append(names, def.Name)
	}
	want := "get_task,newsdesk_stats,research_topic,search_history,similar_articles"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("tools = %s, want %s", got, want)
	}
}

func TestResearchTopic(t *testing.T) {
	d, _ := newDeps(t, &research.Result{TaskID: 9, Status: store.StatusCompleted, Provider: "gnews"})
	s := NewServer("test", d)

	res := call(t, s, "research_topic", map[string]any{"topic": "quantum"})
	if res.IsError || !strings.Contains(res.Content[0].Text, `"topic": "quantum"`) {
		t.Fatalf("result = %+v", res)
	}

	if res := call(t, s, "research_topic", map[string]any{}); !res.IsError {
		t.Fatal("missing topic should be a tool error")
	}
}

func TestResearchTopic_Exhausted(t *testing.T) {
	d, _ := newDeps(t, &research.Result{TaskID: 2, Error: "Could not retrieve sufficient news for 'x'. Please try another search."})
	res := call(t, NewServer("test", d), "research_topic", map[string]any{"topic": "x"})
	if !res.IsError || !strings.Contains(res.Content[0].Text, "Could not retrieve") {
		t.Fatalf("result = %+v", res)
	}
}

func TestGetTaskAndHistory(t *testing.T) {
	ctx := context.Background()
	d, st := newDeps(t, &research.Result{})
	task, err := st.CreateTask(ctx, "mars")
	if err != nil {
		t.Fatal(err)
	}
	doc, err := st.CreateDocument(ctx, task.ID, "gnews", store.Content{Title: "Mars rover finds water", URL: "https://n/1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateDocumentSummary(ctx, doc.ID, "The rover found ice."); err != nil {
		t.Fatal(err)
	}
	s := NewServer("test", d)

	res := call(t, s, "get_task", map[string]any{"id": float64(task.ID)})
	if res.IsError || !strings.Contains(res.Content[0].Text, "Mars rover") {
		t.Fatalf("get_task = %+v", res)
	}
	if res := call(t, s, "get_task", map[string]any{"id": float64(999)}); !res.IsError {
		t.Fatal("missing task should be a tool error")
	}

	res = call(t, s, "search_history", map[string]any{"query": "rover"})
	var docs []store.Document
	if err := json.Unmarshal([]byte(res.Content[0].Text), &docs); err != nil || len(docs) != 1 {
		t.Fatalf("search_history = %+v (%v)", res, err)
	}
}

func TestSimilarArticles_Disabled(t *testing.T) {
	d, _ := newDeps(t, &research.Result{})
	res := call(t, NewServer("test", d), "similar_articles", map[string]any{"query": "ai"})
	if !res.IsError || !strings.Contains(res.Content[0].Text, "not configured") {
		t.Fatalf("result = %+v", res)
	}
}

func TestStats(t *testing.T) {
	d, _ := newDeps(t, &research.Result{})
	res := call(t, NewServer("test", d), "newsdesk_stats", nil)
	if res.IsError || !strings.Contains(res.Content[0].Text, `"total_tasks": 0`) {
		t.Fatalf("result = %+v", res)
	}
}
