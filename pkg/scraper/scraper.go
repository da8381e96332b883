// Package scraper fetches article pages and extracts their readable text.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Options configures a Fetcher.
type Options struct {
	UserAgent string        `yaml:"user_agent" toml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" toml:"timeout"`
	// MaxBytes limits how much of a page is read.
	MaxBytes int64 `yaml:"max_bytes" toml:"max_bytes"`
	// MinChars is the shortest readability result accepted before falling
	// back to plain text extraction.
	MinChars int `yaml:"min_chars" toml:"min_chars"`
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() Options {
	return Options{
		UserAgent: "Mozilla/5.0 (compatible; newsdesk/1.0; +https://github.com/RobinCoderZhao/newsdesk)",
		Timeout:   15 * time.Second,
		MaxBytes:  4 << 20,
		MinChars:  200,
	}
}

// Page is the result of fetching one URL.
type Page struct {
	URL        string        `json:"url"`
	StatusCode int           `json:"status_code"`
	Title      string        `json:"title"`
	Text       string        `json:"text"`
	Duration   time.Duration `json:"duration"`
}

// Fetcher downloads pages over HTTP.
type Fetcher struct {
	client *http.Client
	opts   Options
}

// NewFetcher creates a Fetcher. Zero option fields take their defaults.
func NewFetcher(opts Options) *Fetcher {
	def := DefaultOptions()
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = def.MaxBytes
	}
	if opts.MinChars <= 0 {
		opts.MinChars = def.MinChars
	}
	return &Fetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
}

// FetchText returns the main text of the page at pageURL.
func (f *Fetcher) FetchText(ctx context.Context, pageURL string) (string, error) {
	page, err := f.Fetch(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return page.Text, nil
}

// Fetch downloads pageURL and extracts its article text, preferring the
// readability algorithm and falling back to a plain text walk.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	start := time.Now()

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	page := &Page{URL: pageURL, StatusCode: resp.StatusCode}
	article, rerr := readability.FromReader(bytes.NewReader(body), parsed)
	if rerr == nil {
		page.Title = strings.TrimSpace(article.Title)
		page.Text = collapse(article.TextContent)
	}
	if len(page.Text) < f.opts.MinChars {
		raw := string(body)
		if plain := collapse(ExtractText(raw)); len(plain) > len(page.Text) {
			page.Text = plain
		}
		if page.Title == "" {
			page.Title = extractTitle(raw)
		}
	}
	page.Duration = time.Since(start)
	return page, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ExtractText converts HTML to clean text, skipping navigation, footers and scripts.
func ExtractText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return htmlContent
	}

	var sb strings.Builder
	walkText(doc, &sb)
	return strings.TrimSpace(sb.String())
}

var skipTags = map[string]bool{
	"script": true, "style": true, "nav": true, "footer": true, "aside": true,
	"header": true, "noscript": true, "svg": true, "iframe": true, "form": true,
}

func walkText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode && skipTags[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, sb)
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "h1", "h2", "h3", "h4", "p", "li", "tr", "br", "div":
			sb.WriteString("\n")
		}
	}
}

func extractTitle(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}
	return findTitle(doc)
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		if n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := findTitle(c); title != "" {
			return title
		}
	}
	return ""
}
