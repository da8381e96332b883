package enrich

import "github.com/RobinCoderZhao/newsdesk/internal/newsdesk/sources"

// Split divides articles into the head selected for enrichment and the
// untouched tail. A non-positive k selects everything.
func Split(articles []sources.Article, k int) (head, tail []sources.Article) {
	if k <= 0 || k >= len(articles) {
		return articles, nil
	}
	return articles[:k], articles[k:]
}

// Assemble returns the enriched head followed by the tail, in order.
// Neither input is modified.
func Assemble(head, tail []sources.Article) []sources.Article {
	out := make([]sources.Article, 0, len(head)+len(tail))
	out = append(out, head...)
	return append(out, tail...)
}
