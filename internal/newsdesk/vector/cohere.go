package vector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/cohere-ai/cohere-go/v2/option"
)

// DefaultCohereModel is the Cohere embedding model used when none is set.
const DefaultCohereModel = "embed-english-v3.0"

// CohereConfig configures the Cohere embedder.
type CohereConfig struct {
	APIKey  string        `yaml:"api_key" toml:"api_key" env:"COHERE_API_KEY"`
	Model   string        `yaml:"model" toml:"model" env:"COHERE_EMBED_MODEL"`
	BaseURL string        `yaml:"base_url" toml:"base_url"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
}

// Cohere implements Embedder on the Cohere v2 embed API.
type Cohere struct {
	client *cohereclient.Client
	model  string
}

// NewCohere creates a Cohere embedder.
func NewCohere(cfg CohereConfig) (*Cohere, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("cohere API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultCohereModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	opts := []option.RequestOption{
		cohereclient.WithToken(cfg.APIKey),
		cohereclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, cohereclient.WithBaseURL(cfg.BaseURL))
	}
	return &Cohere{client: cohereclient.NewClient(opts...), model: cfg.Model}, nil
}

func (c *Cohere) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	return c.embed(ctx, texts, cohere.EmbedInputTypeSearchDocument)
}

func (c *Cohere) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	vecs, err := c.embed(ctx, []string{text}, cohere.EmbedInputTypeSearchQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *Cohere) embed(ctx context.Context, texts []string, inputType cohere.EmbedInputType) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	resp, err := c.client.V2.Embed(ctx, &cohere.V2EmbedRequest{
		Texts:          texts,
		Model:          c.model,
		InputType:      inputType,
		EmbeddingTypes: []cohere.EmbeddingType{cohere.EmbeddingTypeFloat},
	})
	if err != nil {
		return nil, fmt.Errorf("cohere embed: %w", err)
	}
	if resp == nil || resp.Embeddings == nil || resp.Embeddings.Float == nil {
		return nil, errors.New("cohere embed returned no float embeddings")
	}
	if len(resp.Embeddings.Float) != len(texts) {
		return nil, fmt.Errorf("cohere embed returned %d vectors for %d texts", len(resp.Embeddings.Float), len(texts))
	}
	return resp.Embeddings.Float, nil
}
