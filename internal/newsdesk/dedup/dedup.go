// Package dedup removes articles that were already persisted, matching on
// exact URL.
package dedup

import (
	"context"

	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/sources"
)

// Index answers which of the given URLs are already known.
type Index interface {
	ExistingURLs(ctx context.Context, urls []string) ([]string, error)
}

// Rememberer is implemented by indexes that can learn new URLs directly.
type Rememberer interface {
	Remember(ctx context.Context, urls []string) error
}

// Forgetter is implemented by indexes that hold URLs outside the store and
// must drop them when the documents are deleted.
type Forgetter interface {
	Forget(ctx context.Context, urls []string) error
}

// FilterNew returns the articles whose URL is not in known, in their
// original order. Articles without a URL are always kept. An empty known
// set returns articles unchanged.
func FilterNew(articles []sources.Article, known map[string]struct{}) []sources.Article {
	if len(known) == 0 {
		return articles
	}
	out := make([]sources.Article, 0, len(articles))
	for _, a := range articles {
		if a.URL != "" {
			if _, dup := known[a.URL]; dup {
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

// URLs returns the distinct non-empty URLs of articles in order.
func URLs(articles []sources.Article) []string {
	seen := make(map[string]struct{}, len(articles))
	urls := make([]string, 0, len(articles))
	for _, a := range articles {
		if a.URL == "" {
			continue
		}
		if _, ok := seen[a.URL]; ok {
			continue
		}
		seen[a.URL] = struct{}{}
		urls = append(urls, a.URL)
	}
	return urls
}

// Set builds a lookup set from urls.
func Set(urls []string) map[string]struct{} {
	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return set
}

// Known looks up the batch's URLs in index and returns the known set.
// Batches without URLs skip the lookup.
func Known(ctx context.Context, index Index, articles []sources.Article) (map[string]struct{}, error) {
	urls := URLs(articles)
	if len(urls) == 0 || index == nil {
		return nil, nil
	}
	existing, err := index.ExistingURLs(ctx, urls)
	if err != nil {
		return nil, err
	}
	return Set(existing), nil
}
