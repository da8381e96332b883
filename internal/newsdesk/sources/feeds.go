package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/text/cases"

	"github.com/RobinCoderZhao/newsdesk/pkg/retry"
)

// Feed names one RSS or Atom feed.
type Feed struct {
	Name string `yaml:"name" toml:"name"`
	URL  string `yaml:"url" toml:"url"`
}

// DefaultFeeds is the built-in set of general news feeds.
var DefaultFeeds = []Feed{
	{Name: "BBC News", URL: "https://feeds.bbci.co.uk/news/rss.xml"},
	{Name: "NPR News", URL: "https://feeds.npr.org/1001/rss.xml"},
	{Name: "The Guardian World", URL: "https://www.theguardian.com/world/rss"},
	{Name: "TechCrunch", URL: "https://techcrunch.com/feed/"},
	{Name: "Ars Technica", URL: "https://feeds.arstechnica.com/arstechnica/index"},
}

const userAgent = "newsdesk/1.0 (+https://github.com/RobinCoderZhao/newsdesk)"

// FeedSource is the last-resort tier. It reads every configured feed and
// keeps entries whose title or summary mentions the topic.
type FeedSource struct {
	feeds  []Feed
	client *http.Client
	logger *slog.Logger
}

// NewFeedSource creates a feed aggregator. A nil or empty feeds list uses DefaultFeeds.
func NewFeedSource(feeds []Feed, timeout time.Duration) *FeedSource {
	if len(feeds) == 0 {
		feeds = DefaultFeeds
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &FeedSource{
		feeds:  feeds,
		client: &http.Client{Timeout: timeout},
		logger: slog.Default(),
	}
}

func (f *FeedSource) Name() string { return "Feeds" }

func (f *FeedSource) Fetch(ctx context.Context, topic string) ([]Article, error) {
	type result struct {
		feed     Feed
		articles []Article
		err      error
	}

	ch := make(chan result, len(f.feeds))
	for _, feed := range f.feeds {
		go func(feed Feed) {
			articles, err := f.fetchFeed(ctx, feed)
			ch <- result{feed: feed, articles: articles, err: err}
		}(feed)
	}

	// Collect per feed, then flatten in configuration order.
	byFeed := make(map[string][]Article, len(f.feeds))
	failed := 0
	var lastErr error
	for range f.feeds {
		res := <-ch
		if res.err != nil {
			failed++
			// A transient failure outranks a final one so the tier is retried.
			if lastErr == nil || retry.DefaultRetryable(res.err) {
				lastErr = res.err
			}
			f.logger.Warn("feed fetch failed", "feed", res.feed.Name, "error", res.err)
			continue
		}
		byFeed[res.feed.URL] = res.articles
	}
	if failed == len(f.feeds) && lastErr != nil {
		return nil, fmt.Errorf("all %d feeds failed: %w", failed, lastErr)
	}

	// Casers are stateful, so each call gets its own.
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(topic))
	var matched []Article
	for _, feed := range f.feeds {
		for _, a := range byFeed[feed.URL] {
			if matches(fold, a, needle) {
				matched = append(matched, a)
			}
		}
	}
	return matched, nil
}

func matches(fold cases.Caser, a Article, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(fold.String(a.Title), needle) ||
		strings.Contains(fold.String(a.Description), needle)
}

func (f *FeedSource) fetchFeed(ctx context.Context, feed Feed) ([]Article, error) {
	// gofeed parsers keep per-parse state, so one per fetch.
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	parser.Client = f.client
	parsed, err := parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feed.Name, feedStatusError(feed, err))
	}

	articles := make([]Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		var published time.Time
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}

		a := Article{
			Title:       strings.TrimSpace(item.Title),
			Description: StripHTML(summary),
			URL:         item.Link,
			Content:     StripHTML(item.Content),
			Source:      feed.Name,
			PublishedAt: published,
		}
		if item.Image != nil {
			a.ImageURL = item.Image.URL
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// feedStatusError turns a gofeed HTTP failure into a StatusError so the
// retry policy sees the status code.
func feedStatusError(feed Feed, err error) error {
	var he gofeed.HTTPError
	if errors.As(err, &he) {
		return &StatusError{Provider: feed.Name, Code: he.StatusCode, Body: he.Status}
	}
	var hp *gofeed.HTTPError
	if errors.As(err, &hp) && hp != nil {
		return &StatusError{Provider: feed.Name, Code: hp.StatusCode, Body: hp.Status}
	}
	return err
}

// StripHTML returns the visible text of an HTML fragment with whitespace collapsed.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
