package sources

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// NewsDataURL is the NewsData.io latest-news endpoint.
const NewsDataURL = "https://newsdata.io/api/1/news"

// NewsDataSource is the secondary tier backed by NewsData.io.
type NewsDataSource struct {
	client  *http.Client
	apiKey  string
	baseURL string
	size    int
	lang    string
}

// NewNewsDataSource creates a NewsData.io provider. An empty apiKey disables it.
func NewNewsDataSource(apiKey string, opts ...Option) *NewsDataSource {
	o := applyOptions(NewsDataURL, opts)
	return &NewsDataSource{
		client:  &http.Client{Timeout: o.timeout},
		apiKey:  apiKey,
		baseURL: o.baseURL,
		size:    o.max,
		lang:    o.lang,
	}
}

func (n *NewsDataSource) Name() string { return "NewsData.io" }

type newsdataResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		Link        string `json:"link"`
		ImageURL    string `json:"image_url"`
		PubDate     string `json:"pubDate"`
		SourceID    string `json:"source_id"`
	} `json:"results"`
}

var newsdataTimeLayouts = []string{"2006-01-02 15:04:05", time.RFC3339}

// paidOnly blanks out the placeholder NewsData.io returns for fields its
// free plan does not include.
func paidOnly(v string) string {
	if strings.HasPrefix(v, "ONLY AVAILABLE IN PAID PLANS") {
		return ""
	}
	return v
}

func (n *NewsDataSource) Fetch(ctx context.Context, topic string) ([]Article, error) {
	if n.apiKey == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", topic)
	params.Set("apikey", n.apiKey)
	params.Set("size", strconv.Itoa(n.size))
	params.Set("language", n.lang)

	var resp newsdataResponse
	if err := getJSON(ctx, n.client, n.Name(), n.baseURL, params, &resp); err != nil {
		return nil, err
	}

	articles := make([]Article, 0, len(resp.Results))
	for _, r := range resp.Results {
		articles = append(articles, Article{
			Title:       r.Title,
			Description: r.Description,
			URL:         r.Link,
			ImageURL:    r.ImageURL,
			Content:     paidOnly(r.Content),
			Source:      r.SourceID,
			PublishedAt: parseTime(newsdataTimeLayouts, r.PubDate),
		})
	}
	return articles, nil
}
