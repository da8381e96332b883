package vector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeEmbedder struct {
	docs    [][]string
	queries []string
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float64, error) {
	f.docs = append(f.docs, texts)
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float64, error) {
	f.queries = append(f.queries, text)
	return []float64{0, 1}, nil
}

const collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"

func newChromaServer(t *testing.T, existing bool) (*httptest.Server, *[]map[string]any, *[]map[string]any) {
	t.Helper()
	var adds, deletes []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == collectionsPath+"/newsdesk_documents":
			if !existing {
				http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
				return
			}
			w.Write([]byte(`{"id":"col-1","name":"newsdesk_documents"}`))
		case r.Method == http.MethodPost && r.URL.Path == collectionsPath:
			w.Write([]byte(`{"id":"col-new","name":"newsdesk_documents"}`))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/add"):
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			adds = append(adds, body)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`true`))
		case r.Method == http.MethodPost && r.URL.Path == collectionsPath+"/col-1/delete":
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			deletes = append(deletes, body)
			w.Write([]byte(`null`))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/query"):
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["n_results"].(float64) != 5 {
				t.Errorf("expected default limit 5, got %v", body["n_results"])
			}
			w.Write([]byte(`{
				"ids":[["7","9"]],
				"distances":[[0.12,0.4]],
				"documents":[["chips rally","rates rise"]],
				"metadatas":[[{"task_id":3,"document_id":7,"source":"GNews","title":"Chips","url":"https://a"},{"task_id":3,"document_id":9}]]
			}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &adds, &deletes
}

func TestChroma_IndexAndSearch(t *testing.T) {
	srv, adds, _ := newChromaServer(t, true)
	emb := &fakeEmbedder{}

	c, err := NewChroma(context.Background(), ChromaConfig{URL: srv.URL}, emb)
	if err != nil {
		t.Fatal(err)
	}
	if c.collectionID != "col-1" {
		t.Fatalf("expected existing collection, got %q", c.collectionID)
	}

	err = c.Index(context.Background(), 7, "chips rally", Metadata{TaskID: 3, DocumentID: 7, Source: "GNews", URL: "https://a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(*adds) != 1 {
		t.Fatalf("expected one add call, got %d", len(*adds))
	}
	ids := (*adds)[0]["ids"].([]any)
	if ids[0] != "7" {
		t.Fatalf("expected id 7, got %v", ids)
	}
	if (*adds)[0]["embeddings"] == nil {
		t.Fatal("expected client-side embeddings")
	}

	matches, err := c.Search(context.Background(), "semiconductors", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Metadata.DocumentID != 7 || matches[0].Metadata.URL != "https://a" || matches[0].Distance != 0.12 {
		t.Fatalf("unexpected first match %+v", matches[0])
	}
	if len(emb.queries) != 1 || emb.queries[0] != "semiconductors" {
		t.Fatalf("expected query embedding, got %v", emb.queries)
	}
}

func TestChroma_Delete(t *testing.T) {
	srv, _, deletes := newChromaServer(t, true)
	c, err := NewChroma(context.Background(), ChromaConfig{URL: srv.URL}, &fakeEmbedder{})
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Delete(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(*deletes) != 0 {
		t.Fatal("empty delete should not call chroma")
	}

	if err := c.Delete(context.Background(), []int64{7, 9}); err != nil {
		t.Fatal(err)
	}
	if len(*deletes) != 1 {
		t.Fatalf("expected one delete call, got %d", len(*deletes))
	}
	ids := (*deletes)[0]["ids"].([]any)
	if len(ids) != 2 || ids[0] != "7" || ids[1] != "9" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestChroma_CreatesMissingCollection(t *testing.T) {
	srv, _, _ := newChromaServer(t, false)
	c, err := NewChroma(context.Background(), ChromaConfig{URL: srv.URL}, &fakeEmbedder{})
	if err != nil {
		t.Fatal(err)
	}
	if c.collectionID != "col-new" {
		t.Fatalf("expected created collection, got %q", c.collectionID)
	}
}

func TestNewChroma_RequiresConfig(t *testing.T) {
	if _, err := NewChroma(context.Background(), ChromaConfig{}, &fakeEmbedder{}); err == nil {
		t.Fatal("expected error without url")
	}
	if _, err := NewChroma(context.Background(), ChromaConfig{URL: "http://localhost:1"}, nil); err == nil {
		t.Fatal("expected error without embedder")
	}
}

func TestNop(t *testing.T) {
	var idx Index = Nop{}
	if err := idx.Index(context.Background(), 1, "x", Metadata{}); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Search(context.Background(), "x", 5); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if err := idx.Delete(context.Background(), []int64{1}); err != nil {
		t.Fatal(err)
	}
}

func TestNewCohere_RequiresKey(t *testing.T) {
	if _, err := NewCohere(CohereConfig{}); err == nil {
		t.Fatal("expected error without api key")
	}
	c, err := NewCohere(CohereConfig{APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	if c.model != DefaultCohereModel {
		t.Fatalf("expected default model, got %q", c.model)
	}
}
