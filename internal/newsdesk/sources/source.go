// Package sources defines the canonical article shape and the news providers
// that produce it. Each provider normalizes its own response format into
// Article so the rest of the pipeline never sees provider-specific fields.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Article is the canonical news article shared by every provider.
type Article struct {
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Content     string    `json:"content,omitempty"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at,omitzero"`

	// Summary and Topics are filled in by enrichment.
	Summary string  `json:"summary,omitempty"`
	Topics  *string `json:"topics,omitempty"`
}

// Text returns the text enrichment works on: content when present,
// otherwise the description.
func (a Article) Text() string {
	if a.Content != "" {
		return a.Content
	}
	return a.Description
}

// Provider is one news tier. A provider without credentials is disabled and
// returns no articles and no error.
type Provider interface {
	// Name returns the human-readable name of the provider.
	Name() string

	// Fetch retrieves articles about topic.
	Fetch(ctx context.Context, topic string) ([]Article, error)
}

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.Code, e.Body)
}

// StatusCode exposes the HTTP status for retry decisions.
func (e *StatusError) StatusCode() int { return e.Code }

const (
	defaultTimeout = 20 * time.Second
	maxErrorBody   = 512
)

// getJSON issues a GET to base?params and decodes a 2xx JSON body into out.
func getJSON(ctx context.Context, client *http.Client, provider, base string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return &StatusError{Provider: provider, Code: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", provider, err)
	}
	return nil
}

func parseTime(layouts []string, v string) time.Time {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
