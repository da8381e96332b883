// Package config defines the newsdesk application configuration. It is
// loaded once at startup and passed by value to constructors.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/archive"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/dedup"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/enrich"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/events"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/fallback"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/research"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/sources"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/vector"
	pkgconfig "github.com/RobinCoderZhao/newsdesk/pkg/config"
	"github.com/RobinCoderZhao/newsdesk/pkg/llm"
	"github.com/RobinCoderZhao/newsdesk/pkg/notify"
	"github.com/RobinCoderZhao/newsdesk/pkg/retry"
	"github.com/RobinCoderZhao/newsdesk/pkg/scraper"
	"github.com/RobinCoderZhao/newsdesk/pkg/storage"
)

// Summarizer backends.
const (
	BackendHuggingFace = "huggingface"
	BackendLLM         = "llm"
)

// Config is the complete application configuration.
type Config struct {
	Log         LogConfig                `yaml:"log" toml:"log"`
	Server      ServerConfig             `yaml:"server" toml:"server"`
	Sources     SourcesConfig            `yaml:"sources" toml:"sources"`
	Fetch       FetchConfig              `yaml:"fetch" toml:"fetch"`
	Enrich      EnrichConfig             `yaml:"enrich" toml:"enrich"`
	HuggingFace enrich.HuggingFaceConfig `yaml:"huggingface" toml:"huggingface"`
	LLM         llm.Config               `yaml:"llm" toml:"llm"`
	Scraper     scraper.Options          `yaml:"scraper" toml:"scraper"`
	Database    storage.Config           `yaml:"database" toml:"database"`
	Redis       dedup.CacheConfig        `yaml:"redis" toml:"redis"`
	Chroma      vector.ChromaConfig      `yaml:"chroma" toml:"chroma"`
	Cohere      vector.CohereConfig      `yaml:"cohere" toml:"cohere"`
	Archive     archive.Config           `yaml:"archive" toml:"archive"`
	Events      events.Config            `yaml:"events" toml:"events"`
	Scheduler   SchedulerConfig          `yaml:"scheduler" toml:"scheduler"`
	Notify      notify.Config            `yaml:"notify" toml:"notify"`
}

// LogConfig controls the default slog handler.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" toml:"format" env:"LOG_FORMAT"` // "text", "json" or "" for auto
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" toml:"port" env:"PORT"`
	CORSOrigins []string `yaml:"cors_origins" toml:"cors_origins" env:"CORS_ORIGINS"`
}

// SourcesConfig holds provider credentials and endpoints.
type SourcesConfig struct {
	GNewsKey    string         `yaml:"gnews_api_key" toml:"gnews_api_key" env:"GNEWS_API_KEY"`
	NewsDataKey string         `yaml:"newsdata_api_key" toml:"newsdata_api_key" env:"NEWSDATA_API_KEY"`
	GNewsURL    string         `yaml:"gnews_url" toml:"gnews_url"`
	NewsDataURL string         `yaml:"newsdata_url" toml:"newsdata_url"`
	MaxResults  int            `yaml:"max_results" toml:"max_results"`
	Language    string         `yaml:"language" toml:"language"`
	Timeout     time.Duration  `yaml:"timeout" toml:"timeout" env:"NEWSDESK_SOURCE_TIMEOUT"`
	Feeds       []sources.Feed `yaml:"feeds" toml:"feeds"`
}

// FetchConfig tunes the fallback orchestrator and its retries.
type FetchConfig struct {
	MinArticles    int           `yaml:"min_articles" toml:"min_articles" env:"NEWSDESK_MIN_ARTICLES"`
	Retries        int           `yaml:"retries" toml:"retries" env:"NEWSDESK_RETRIES"`
	InitialBackoff time.Duration `yaml:"initial_backoff" toml:"initial_backoff" env:"NEWSDESK_INITIAL_BACKOFF"`
	MaxBackoff     time.Duration `yaml:"max_backoff" toml:"max_backoff"`
}

// EnrichConfig tunes the enrichment stage and research runs.
type EnrichConfig struct {
	Backend       string `yaml:"backend" toml:"backend" env:"NEWSDESK_SUMMARIZER"`
	Concurrency   int    `yaml:"concurrency" toml:"concurrency" env:"NEWSDESK_CONCURRENCY"`
	HeadSize      int    `yaml:"head_size" toml:"head_size" env:"NEWSDESK_HEAD_SIZE"`
	HeadOnly      bool   `yaml:"head_only" toml:"head_only" env:"NEWSDESK_HEAD_ONLY"`
	MaxTopics     int    `yaml:"max_topics" toml:"max_topics" env:"NEWSDESK_MAX_TOPICS"`
	FetchFullText bool   `yaml:"fetch_full_text" toml:"fetch_full_text" env:"NEWSDESK_FULL_TEXT"`
}

// SchedulerConfig configures the recurring research job.
type SchedulerConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled" env:"NEWSDESK_SCHEDULER"`
	Schedule string `yaml:"schedule" toml:"schedule" env:"NEWSDESK_SCHEDULE"`
	Topic    string `yaml:"topic" toml:"topic" env:"NEWSDESK_DAILY_TOPIC"`
	LockFile string `yaml:"lock_file" toml:"lock_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info"},
		Server: ServerConfig{Port: 8000, CORSOrigins: []string{"http://localhost:3000"}},
		Sources: SourcesConfig{
			MaxResults: 10,
			Language:   "en",
			Timeout:    20 * time.Second,
			Feeds:      sources.DefaultFeeds,
		},
		Fetch: FetchConfig{
			MinArticles:    fallback.DefaultMinArticles,
			Retries:        3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
		},
		Enrich: EnrichConfig{
			Backend:     BackendHuggingFace,
			Concurrency: enrich.DefaultConcurrency,
			HeadSize:    research.DefaultHeadSize,
			MaxTopics:   enrich.DefaultMaxTopics,
		},
		LLM:      llm.DefaultConfig(),
		Scraper:  scraper.DefaultOptions(),
		Database: storage.Config{Path: "newsdesk.db"},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Schedule: "0 9 * * *",
			Topic:    "artificial intelligence",
			LockFile: os.TempDir() + "/newsdesk.lock",
		},
	}
}

// Load reads .env (if present), then the config file at path (if present),
// then environment overrides, on top of Default.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()
	if err := pkgconfig.LoadOrDefault(path, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	var errs []error
	if c.Fetch.MinArticles < 1 {
		errs = append(errs, errors.New("fetch.min_articles must be at least 1"))
	}
	if c.Fetch.Retries < 1 {
		errs = append(errs, errors.New("fetch.retries must be at least 1"))
	}
	if c.Enrich.Concurrency < 1 {
		errs = append(errs, errors.New("enrich.concurrency must be at least 1"))
	}
	if c.Enrich.HeadSize < 0 {
		errs = append(errs, errors.New("enrich.head_size must not be negative"))
	}
	switch strings.ToLower(c.Enrich.Backend) {
	case BackendHuggingFace, BackendLLM:
	default:
		errs = append(errs, fmt.Errorf("enrich.backend %q must be %q or %q", c.Enrich.Backend, BackendHuggingFace, BackendLLM))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	return errors.Join(errs...)
}

// RetryPolicy builds the provider retry policy.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		Retries:    c.Fetch.Retries,
		Backoff:    c.Fetch.InitialBackoff,
		MaxBackoff: c.Fetch.MaxBackoff,
	}
}

// SourceOptions returns the options shared by the API providers.
func (c Config) SourceOptions() []sources.Option {
	opts := []sources.Option{
		sources.WithTimeout(c.Sources.Timeout),
		sources.WithMaxResults(c.Sources.MaxResults),
		sources.WithLanguage(c.Sources.Language),
	}
	return opts
}

// Providers builds the provider tiers in priority order.
func (c Config) Providers() []sources.Provider {
	gnewsOpts := c.SourceOptions()
	if c.Sources.GNewsURL != "" {
		gnewsOpts = append(gnewsOpts, sources.WithBaseURL(c.Sources.GNewsURL))
	}
	newsdataOpts := c.SourceOptions()
	if c.Sources.NewsDataURL != "" {
		newsdataOpts = append(newsdataOpts, sources.WithBaseURL(c.Sources.NewsDataURL))
	}
	return []sources.Provider{
		sources.NewGNewsSource(c.Sources.GNewsKey, gnewsOpts...),
		sources.NewNewsDataSource(c.Sources.NewsDataKey, newsdataOpts...),
		sources.NewFeedSource(c.Sources.Feeds, c.Sources.Timeout),
	}
}
