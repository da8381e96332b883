package enrich

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

// TopicExtractor finds candidate topics in a piece of text.
type TopicExtractor interface {
	Extract(text string) ([]string, error)
}

// NounPhrases extracts noun phrases with a part-of-speech tagger. A phrase
// is a run of adjectives and nouns that ends in a noun and either spans
// several words or is a proper noun.
type NounPhrases struct{}

// Extract returns lower-cased noun phrases in order of first appearance,
// without duplicates.
func (NounPhrases) Extract(text string) ([]string, error) {
	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		return nil, err
	}

	var (
		phrases []string
		seen    = map[string]struct{}{}
		run     []prose.Token
	)
	flush := func() {
		p := chunk(run)
		run = run[:0]
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		phrases = append(phrases, p)
	}

	for _, tok := range doc.Tokens() {
		if isAdjective(tok.Tag) || isNoun(tok.Tag) {
			run = append(run, tok)
			continue
		}
		flush()
	}
	flush()
	return phrases, nil
}

// chunk turns a run of adjective/noun tokens into a phrase, dropping
// trailing adjectives.
func chunk(run []prose.Token) string {
	end := len(run)
	for end > 0 && !isNoun(run[end-1].Tag) {
		end--
	}
	if end == 0 {
		return ""
	}
	run = run[:end]
	if len(run) == 1 && !strings.HasPrefix(run[0].Tag, "NNP") {
		return ""
	}

	words := make([]string, 0, len(run))
	for _, t := range run {
		w := strings.Trim(t.Text, `"'.,;:!?()[]`)
		if w == "" {
			continue
		}
		words = append(words, strings.ToLower(w))
	}
	return strings.Join(words, " ")
}

func isNoun(tag string) bool      { return strings.HasPrefix(tag, "NN") }
func isAdjective(tag string) bool { return strings.HasPrefix(tag, "JJ") }
