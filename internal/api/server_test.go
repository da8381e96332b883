package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/fallback"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/research"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/store"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/vector"
	"github.com/RobinCoderZhao/newsdesk/pkg/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubResearcher struct {
	res *research.Result
	err error
	got string

	st      *store.Store
	deletes []int64
}

func (r *stubResearcher) Run(_ context.Context, topic string) (*research.Result, error) {
	r.got = topic
	if strings.TrimSpace(topic) == "" {
		return nil, fallback.ErrEmptyTopic
	}
	return r.res, r.err
}

func (r *stubResearcher) DeleteTask(ctx context.Context, id int64) (bool, error) {
	r.deletes = append(r.deletes, id)
	if r.st == nil {
		return false, nil
	}
	return r.st.DeleteTask(ctx, id)
}

type stubIndex struct {
	vector.Nop
	matches []vector.Match
}

func (s stubIndex) Search(context.Context, string, int) ([]vector.Match, error) {
	return s.matches, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), storage.Config{Path: filepath.Join(t.TempDir(), "api.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestRoot(t *testing.T) {
	srv := NewServer(newTestStore(t), &stubResearcher{}, nil, nil)
	rec := do(t, srv.Routes(), http.MethodGet, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestTasks_ListGetDelete(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	task, err := st.CreateTask(ctx, "robotics")
	if err != nil {
		t.Fatal(err)
	}
	id := task.ID
	r := &stubResearcher{st: st}
	h := NewServer(st, r, nil, nil).Routes()

	rec := do(t, h, http.MethodGet, "/api/tasks?skip=0&limit=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var tasks []store.Task
	decode(t, rec, &tasks)
	if len(tasks) != 1 || tasks[0].Topic != "robotics" {
		t.Fatalf("tasks = %+v", tasks)
	}

	rec = do(t, h, http.MethodGet, "/api/tasks/"+itoa(id))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodDelete, "/api/tasks/"+itoa(id))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if len(r.deletes) != 1 || r.deletes[0] != id {
		t.Fatalf("delete should go through the research service, got %v", r.deletes)
	}

	rec = do(t, h, http.MethodGet, "/api/tasks/"+itoa(id))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["detail"] != "Task not found" {
		t.Fatalf("body = %v", body)
	}

	rec = do(t, h, http.MethodDelete, "/api/tasks/"+itoa(id))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}
}

func TestTasks_BadParams(t *testing.T) {
	h := NewServer(newTestStore(t), &stubResearcher{}, nil, nil).Routes()
	for _, target := range []string{"/api/tasks?limit=0", "/api/tasks?skip=-1", "/api/tasks/abc"} {
		if rec := do(t, h, http.MethodGet, target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", target, rec.Code)
		}
	}
}

func TestResearch(t *testing.T) {
	r := &stubResearcher{res: &research.Result{TaskID: 7, Topic: "ai", Status: store.StatusCompleted, Provider: "gnews"}}
	h := NewServer(newTestStore(t), r, nil, nil).Routes()

	rec := do(t, h, http.MethodGet, "/api/search/ai")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res research.Result
	decode(t, rec, &res)
	if res.TaskID != 7 || res.Provider != "gnews" || r.got != "ai" {
		t.Fatalf("result = %+v, topic = %q", res, r.got)
	}
}

func TestResearch_ExhaustedIsOK(t *testing.T) {
	r := &stubResearcher{res: &research.Result{TaskID: 3, Error: "No news found from any source"}}
	h := NewServer(newTestStore(t), r, nil, nil).Routes()

	rec := do(t, h, http.MethodGet, "/api/search/obscure")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	decode(t, rec, &body)
	if body["error"] != "No news found from any source" {
		t.Fatalf("body = %v", body)
	}
}

func TestResearch_Failure(t *testing.T) {
	r := &stubResearcher{err: errors.New("db down")}
	h := NewServer(newTestStore(t), r, nil, nil).Routes()
	if rec := do(t, h, http.MethodGet, "/api/search/ai"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSearchHistory(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	task, err := st.CreateTask(ctx, "space")
	if err != nil {
		t.Fatal(err)
	}
	doc, err := st.CreateDocument(ctx, task.ID, "gnews", store.Content{Title: "Rocket launch", URL: "https://x/1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateDocumentSummary(ctx, doc.ID, "A rocket reached orbit."); err != nil {
		t.Fatal(err)
	}
	h := NewServer(st, &stubResearcher{}, nil, nil).Routes()

	if rec := do(t, h, http.MethodGet, "/api/search/history"); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing q status = %d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/api/search/history?q=rocket")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var docs []store.Document
	decode(t, rec, &docs)
	if len(docs) != 1 || docs[0].Content.Title != "Rocket launch" {
		t.Fatalf("docs = %+v", docs)
	}
}

func TestSearchSimilar(t *testing.T) {
	st := newTestStore(t)

	disabled := NewServer(st, &stubResearcher{}, nil, nil).Routes()
	if rec := do(t, disabled, http.MethodGet, "/api/search/similar?q=ai"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("disabled status = %d", rec.Code)
	}

	idx := stubIndex{matches: []vector.Match{{ID: "doc-1", Distance: 0.1, Document: "AI chips"}}}
	h := NewServer(st, &stubResearcher{}, idx, nil).Routes()
	rec := do(t, h, http.MethodGet, "/api/search/similar?q=ai")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var matches []vector.Match
	decode(t, rec, &matches)
	if len(matches) != 1 || matches[0].ID != "doc-1" {
		t.Fatalf("matches = %+v", matches)
	}
}

func TestStats(t *testing.T) {
	h := NewServer(newTestStore(t), &stubResearcher{}, nil, nil).Routes()
	rec := do(t, h, http.MethodGet, "/api/analytics/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var s store.Stats
	decode(t, rec, &s)
	if s.TotalTasks != 0 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestCORS(t *testing.T) {
	h := NewServer(newTestStore(t), &stubResearcher{}, nil, []string{"http://localhost:3000"}).Routes()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin = %q", got)
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func TestMountMCP(t *testing.T) {
	srv := NewServer(newTestStore(t), &stubResearcher{}, nil, nil)
	srv.MountMCP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h := srv.Routes()
	if rec := do(t, h, http.MethodPost, "/mcp"); rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
}
