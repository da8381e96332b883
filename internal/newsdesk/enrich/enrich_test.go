package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/sources"
)

type mockSummarizer struct {
	summarizeFn func(ctx context.Context, text string) (string, error)
}

func (m *mockSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	return m.summarizeFn(ctx, text)
}

type mockExtractor struct {
	extractFn func(text string) ([]string, error)
}

func (m *mockExtractor) Extract(text string) ([]string, error) { return m.extractFn(text) }

func staticTopics(topics ...string) *mockExtractor {
	return &mockExtractor{extractFn: func(string) ([]string, error) { return topics, nil }}
}

func numbered(n int) []sources.Article {
	out := make([]sources.Article, n)
	for i := range out {
		out[i] = sources.Article{
			Title:       fmt.Sprintf("title %d", i),
			URL:         fmt.Sprintf("https://example.com/%d", i),
			Description: fmt.Sprintf("description %d", i),
		}
	}
	return out
}

func TestEnrich_PreservesLengthAndOrder(t *testing.T) {
	sum := &mockSummarizer{summarizeFn: func(ctx context.Context, text string) (string, error) {
		// Finish out of order.
		if strings.HasSuffix(text, "0") {
			time.Sleep(20 * time.Millisecond)
		}
		return "summary of " + text, nil
	}}
	stage := NewStage(sum, staticTopics("a"), Options{Concurrency: 4})

	in := numbered(6)
	out := stage.Enrich(context.Background(), in)
	if len(out) != len(in) {
		t.Fatalf("expected %d articles, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i].URL != in[i].URL {
			t.Fatalf("order changed at %d: %s != %s", i, out[i].URL, in[i].URL)
		}
		if out[i].Summary != "summary of "+in[i].Description {
			t.Errorf("article %d summary = %q", i, out[i].Summary)
		}
	}
	if in[0].Summary != "" {
		t.Fatal("input batch must not be mutated")
	}
}

func TestEnrich_FailureIsIsolated(t *testing.T) {
	sum := &mockSummarizer{summarizeFn: func(ctx context.Context, text string) (string, error) {
		if text == "description 1" {
			return "", errors.New("quota exceeded")
		}
		return "ok", nil
	}}
	stage := NewStage(sum, staticTopics("x", "y"), Options{Concurrency: 3})

	out := stage.Enrich(context.Background(), numbered(3))
	if out[1].Summary != "" {
		t.Fatalf("failed article should have no summary, got %q", out[1].Summary)
	}
	if out[1].Topics == nil || *out[1].Topics != "x, y" {
		t.Fatalf("topics must still be set when summarization fails, got %v", out[1].Topics)
	}
	for _, i := range []int{0, 2} {
		if out[i].Summary != "ok" || out[i].Topics == nil {
			t.Fatalf("sibling %d affected by failure: %+v", i, out[i])
		}
	}
}

func TestEnrich_TopicFailureLeavesSummary(t *testing.T) {
	sum := &mockSummarizer{summarizeFn: func(context.Context, string) (string, error) { return "s", nil }}
	ext := &mockExtractor{extractFn: func(string) ([]string, error) { return nil, errors.New("tagger failed") }}
	out := NewStage(sum, ext, Options{}).Enrich(context.Background(), numbered(1))
	if out[0].Summary != "s" {
		t.Fatalf("expected summary, got %q", out[0].Summary)
	}
	if out[0].Topics != nil {
		t.Fatalf("expected nil topics, got %q", *out[0].Topics)
	}
}

func TestEnrich_ExtractorPanicIsContained(t *testing.T) {
	ext := &mockExtractor{extractFn: func(string) ([]string, error) { panic("boom") }}
	out := NewStage(nil, ext, Options{}).Enrich(context.Background(), numbered(2))
	if len(out) != 2 || out[0].Topics != nil {
		t.Fatalf("expected unenriched articles, got %+v", out)
	}
}

func TestEnrich_SummarizerPanicKeepsTopics(t *testing.T) {
	sum := &mockSummarizer{summarizeFn: func(context.Context, string) (string, error) { panic("model crashed") }}
	out := NewStage(sum, staticTopics("ai"), Options{}).Enrich(context.Background(), numbered(2))
	for i, a := range out {
		if a.Summary != "" {
			t.Fatalf("article %d: expected no summary, got %q", i, a.Summary)
		}
		if a.Topics == nil || *a.Topics != "ai" {
			t.Fatalf("article %d: topics should still be extracted, got %v", i, a.Topics)
		}
	}
}

func TestEnrich_NoTextPassesThrough(t *testing.T) {
	called := false
	sum := &mockSummarizer{summarizeFn: func(context.Context, string) (string, error) {
		called = true
		return "s", nil
	}}
	in := []sources.Article{{Title: "bare", URL: "https://example.com/bare"}}
	out := NewStage(sum, staticTopics("t"), Options{}).Enrich(context.Background(), in)
	if called {
		t.Fatal("summarizer must not be called without text")
	}
	if out[0] != in[0] {
		t.Fatalf("expected article unchanged, got %+v", out[0])
	}
}

func TestEnrich_PrefersContent(t *testing.T) {
	var got string
	sum := &mockSummarizer{summarizeFn: func(_ context.Context, text string) (string, error) {
		got = text
		return "s", nil
	}}
	in := []sources.Article{{URL: "u", Description: "short", Content: "full body"}}
	NewStage(sum, nil, Options{}).Enrich(context.Background(), in)
	if got != "full body" {
		t.Fatalf("expected content to be summarized, got %q", got)
	}
}

func TestEnrich_TopicsDistinctAndCapped(t *testing.T) {
	ext := staticTopics("alpha", "beta", "alpha", " ", "gamma", "delta", "epsilon")
	out := NewStage(nil, ext, Options{MaxTopics: 3}).Enrich(context.Background(), numbered(1))
	if out[0].Topics == nil || *out[0].Topics != "alpha, beta, gamma" {
		t.Fatalf("unexpected topics %v", out[0].Topics)
	}

	out = NewStage(nil, ext, Options{MaxTopics: 5}).Enrich(context.Background(), numbered(1))
	if *out[0].Topics != "alpha, beta, gamma, delta, epsilon" {
		t.Fatalf("unexpected topics %q", *out[0].Topics)
	}
}

func TestEnrich_RespectsConcurrencyCap(t *testing.T) {
	var inFlight, peak int32
	sum := &mockSummarizer{summarizeFn: func(context.Context, string) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return "s", nil
	}}
	NewStage(sum, nil, Options{Concurrency: 2}).Enrich(context.Background(), numbered(8))
	if peak > 2 {
		t.Fatalf("expected at most 2 concurrent tasks, saw %d", peak)
	}
}

type mockFetcher struct {
	mu   sync.Mutex
	urls []string
	body string
	err  error
}

func (m *mockFetcher) FetchText(ctx context.Context, url string) (string, error) {
	m.mu.Lock()
	m.urls = append(m.urls, url)
	m.mu.Unlock()
	return m.body, m.err
}

func TestEnrich_FullTextFillsMissingContent(t *testing.T) {
	f := &mockFetcher{body: "page text"}
	sum := &mockSummarizer{summarizeFn: func(_ context.Context, text string) (string, error) { return "sum:" + text, nil }}
	in := []sources.Article{{URL: "https://example.com/a"}, {URL: "https://example.com/b", Description: "has text"}}

	out := NewStage(sum, nil, Options{FullText: f}).Enrich(context.Background(), in)
	if out[0].Content != "page text" || out[0].Summary != "sum:page text" {
		t.Fatalf("expected full text to be used, got %+v", out[0])
	}
	if len(f.urls) != 1 {
		t.Fatalf("expected one full-text fetch, got %v", f.urls)
	}
}

func TestSplitAndAssemble(t *testing.T) {
	in := numbered(8)
	head, tail := Split(in, 2)
	if len(head) != 2 || len(tail) != 6 {
		t.Fatalf("split = %d/%d", len(head), len(tail))
	}

	enriched := NewStage(&mockSummarizer{summarizeFn: func(context.Context, string) (string, error) { return "s", nil }},
		staticTopics("t"), Options{}).Enrich(context.Background(), head)
	out := Assemble(enriched, tail)
	if len(out) != 8 {
		t.Fatalf("expected 8 articles, got %d", len(out))
	}
	for i := range in {
		if out[i].URL != in[i].URL {
			t.Fatalf("order changed at %d", i)
		}
		enrichedField := out[i].Summary != "" || out[i].Topics != nil
		if i < 2 && !enrichedField {
			t.Fatalf("head article %d not enriched", i)
		}
		if i >= 2 && enrichedField {
			t.Fatalf("tail article %d must stay untouched", i)
		}
	}

	all, none := Split(in, 0)
	if len(all) != 8 || none != nil {
		t.Fatal("k=0 should select everything")
	}
	all, none = Split(in, 20)
	if len(all) != 8 || none != nil {
		t.Fatal("k beyond length should select everything")
	}
}

func TestHuggingFace_Summarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		fmt.Fprint(w, `[{"summary_text":"  A short summary. "}]`)
	}))
	defer srv.Close()

	h := NewHuggingFace(HuggingFaceConfig{Token: "tok", URL: srv.URL})
	got, err := h.Summarize(context.Background(), "long article text")
	if err != nil {
		t.Fatal(err)
	}
	if got != "A short summary." {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestHuggingFace_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"model loading", http.StatusServiceUnavailable, `{"error":"Model is currently loading"}`},
		{"error object with 200", http.StatusOK, `{"error":"bad input"}`},
		{"empty list", http.StatusOK, `[]`},
		{"malformed", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			h := NewHuggingFace(HuggingFaceConfig{Token: "tok", URL: srv.URL})
			if _, err := h.Summarize(context.Background(), "text"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestHuggingFace_NoToken(t *testing.T) {
	h := NewHuggingFace(HuggingFaceConfig{})
	if _, err := h.Summarize(context.Background(), "text"); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo wörld", 5); got != "héllo" {
		t.Fatalf("truncateRunes = %q", got)
	}
	if got := truncateRunes("short", 10); got != "short" {
		t.Fatalf("truncateRunes = %q", got)
	}
}

func TestNounPhrases(t *testing.T) {
	phrases, err := NounPhrases{}.Extract("The European Central Bank raised interest rates on Thursday as inflation stayed high.")
	if err != nil {
		t.Fatal(err)
	}
	if len(phrases) == 0 {
		t.Fatal("expected noun phrases")
	}
	seen := map[string]bool{}
	foundBank := false
	for _, p := range phrases {
		if p != strings.ToLower(p) {
			t.Errorf("phrase %q is not lower-cased", p)
		}
		if seen[p] {
			t.Errorf("duplicate phrase %q", p)
		}
		seen[p] = true
		if strings.Contains(p, "bank") {
			foundBank = true
		}
	}
	if !foundBank {
		t.Fatalf("expected a phrase mentioning the bank, got %v", phrases)
	}
}
