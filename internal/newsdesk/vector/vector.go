// Package vector indexes stored documents for similarity search.
package vector

import (
	"context"
	"errors"
)

// DefaultLimit is the number of matches returned when the caller passes none.
const DefaultLimit = 5

// ErrDisabled is returned by searches against the Nop index.
var ErrDisabled = errors.New("similarity search is not configured")

// Metadata is stored next to each indexed document.
type Metadata struct {
	TaskID     int64  `json:"task_id"`
	DocumentID int64  `json:"document_id"`
	Source     string `json:"source"`
	Title      string `json:"title"`
	URL        string `json:"url"`
}

// Match is one similarity search hit. Lower distances are closer.
type Match struct {
	ID       string   `json:"id"`
	Distance float64  `json:"distance"`
	Document string   `json:"document"`
	Metadata Metadata `json:"metadata"`
}

// Index stores document text for later similarity queries.
type Index interface {
	Index(ctx context.Context, documentID int64, text string, meta Metadata) error
	Search(ctx context.Context, query string, limit int) ([]Match, error)
	Delete(ctx context.Context, documentIDs []int64) error
}

// Embedder turns text into vectors. Documents and queries may be embedded
// differently by the model, so the caller says which one it has.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
}

// Nop is the index used when no vector store is configured.
type Nop struct{}

func (Nop) Index(context.Context, int64, string, Metadata) error { return nil }

func (Nop) Search(context.Context, string, int) ([]Match, error) { return nil, ErrDisabled }

func (Nop) Delete(context.Context, []int64) error { return nil }
