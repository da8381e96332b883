package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/config"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/research"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/sources"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/vector"
	"github.com/RobinCoderZhao/newsdesk/pkg/notify"
)

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "app.db")
	cfg.Scheduler.LockFile = filepath.Join(t.TempDir(), "app.lock")
	return cfg
}

func TestNew_DefaultsToLocalComponents(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if a.Store == nil || a.Research == nil || a.Fetcher == nil || a.Stage == nil {
		t.Fatalf("expected wired components, got %+v", a)
	}
	if _, ok := a.Vectors.(vector.Nop); !ok {
		t.Fatalf("expected similarity search to be disabled, got %T", a.Vectors)
	}

	s, err := a.Scheduler()
	if err != nil {
		t.Fatal(err)
	}
	jobs := s.Jobs()
	if len(jobs) != 1 || jobs[0].Name != "daily-research" || jobs[0].Schedule != "0 9 * * *" {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
}

func TestNew_LLMBackendNeedsKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Enrich.Backend = config.BackendLLM
	cfg.LLM.APIKey = ""
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected error for llm backend without api key")
	}
}

func TestNew_UnreachableRedisFallsBack(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Addr = "127.0.0.1:1"
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Schedule = "whenever"
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if _, err := a.Scheduler(); err == nil {
		t.Fatal("expected invalid schedule error")
	}
}

func TestDigestMessage(t *testing.T) {
	res := &research.Result{Topic: "fusion", Provider: "gnews"}
	for i := 0; i < 12; i++ {
		res.Articles = append(res.Articles, sources.Article{
			Title: fmt.Sprintf("Story %d", i+1),
			URL:   fmt.Sprintf("https://news.test/%d", i+1),
		})
	}
	res.Articles[0].Summary = "Record plasma time."

	msg := digestMessage(res)
	if msg.Title != "Daily news: fusion (gnews)" {
		t.Fatalf("title = %q", msg.Title)
	}
	if !strings.HasPrefix(msg.Body, "1. Story 1\n   Record plasma time.\n   https://news.test/1\n2. Story 2") {
		t.Fatalf("body = %q", msg.Body)
	}
	if !strings.HasSuffix(msg.Body, "… and 2 more") || strings.Contains(msg.Body, "Story 11") {
		t.Fatalf("body should stop after ten items: %q", msg.Body)
	}
}

func TestNew_NotifierFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notify.Webhook.URL = "http://127.0.0.1:1/hook"
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if got := a.Notifier.Channels(); len(got) != 1 || got[0] != notify.ChannelWebhook {
		t.Fatalf("channels = %v", got)
	}
}
