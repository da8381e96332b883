package sources

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// GNewsURL is the GNews search endpoint.
const GNewsURL = "https://gnews.io/api/v4/search"

// GNewsSource is the primary tier backed by the GNews search API.
type GNewsSource struct {
	client  *http.Client
	apiKey  string
	baseURL string
	max     int
	lang    string
}

// NewGNewsSource creates a GNews provider. An empty apiKey disables it.
func NewGNewsSource(apiKey string, opts ...Option) *GNewsSource {
	o := applyOptions(GNewsURL, opts)
	return &GNewsSource{
		client:  &http.Client{Timeout: o.timeout},
		apiKey:  apiKey,
		baseURL: o.baseURL,
		max:     o.max,
		lang:    o.lang,
	}
}

func (g *GNewsSource) Name() string { return "GNews" }

type gnewsResponse struct {
	TotalArticles int `json:"totalArticles"`
	Articles      []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		URL         string `json:"url"`
		Image       string `json:"image"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

func (g *GNewsSource) Fetch(ctx context.Context, topic string) ([]Article, error) {
	if g.apiKey == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", topic)
	params.Set("apikey", g.apiKey)
	params.Set("max", strconv.Itoa(g.max))
	params.Set("lang", g.lang)

	var resp gnewsResponse
	if err := getJSON(ctx, g.client, g.Name(), g.baseURL, params, &resp); err != nil {
		return nil, err
	}

	articles := make([]Article, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		articles = append(articles, Article{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			ImageURL:    a.Image,
			Content:     a.Content,
			Source:      a.Source.Name,
			PublishedAt: parseTime([]string{time.RFC3339}, a.PublishedAt),
		})
	}
	return articles, nil
}

// Option adjusts an API-backed provider.
type Option func(*options)

type options struct {
	baseURL string
	timeout time.Duration
	max     int
	lang    string
}

// WithBaseURL points the provider at a different endpoint.
func WithBaseURL(u string) Option {
	return func(o *options) {
		if u != "" {
			o.baseURL = u
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMaxResults sets the provider-side result cap.
func WithMaxResults(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.max = n
		}
	}
}

// WithLanguage sets the requested article language.
func WithLanguage(lang string) Option {
	return func(o *options) {
		if lang != "" {
			o.lang = lang
		}
	}
}

func applyOptions(baseURL string, opts []Option) options {
	o := options{
		baseURL: baseURL,
		timeout: defaultTimeout,
		max:     10,
		lang:    "en",
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
