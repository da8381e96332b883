package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ChromaConfig holds configuration for the Chroma connection.
type ChromaConfig struct {
	// URL is the server root, for example http://localhost:8000.
	URL        string        `yaml:"url" toml:"url" env:"CHROMA_URL"`
	Tenant     string        `yaml:"tenant" toml:"tenant"`
	Database   string        `yaml:"database" toml:"database"`
	Collection string        `yaml:"collection" toml:"collection"`
	Timeout    time.Duration `yaml:"timeout" toml:"timeout"`
}

// Chroma is an Index on the Chroma v2 REST API. Embeddings are computed
// client-side.
type Chroma struct {
	baseURL      string
	tenant       string
	database     string
	collectionID string
	http         *http.Client
	embedder     Embedder
	logger       *slog.Logger
}

type queryResults struct {
	IDs       [][]string         `json:"ids"`
	Distances [][]float64        `json:"distances"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Documents [][]string         `json:"documents"`
}

// NewChroma connects to Chroma and resolves the collection, creating it
// when it does not exist.
func NewChroma(ctx context.Context, cfg ChromaConfig, embedder Embedder) (*Chroma, error) {
	if cfg.URL == "" {
		return nil, errors.New("chroma url is required")
	}
	if embedder == nil {
		return nil, errors.New("chroma requires an embedder")
	}
	if cfg.Tenant == "" {
		cfg.Tenant = "default_tenant"
	}
	if cfg.Database == "" {
		cfg.Database = "default_database"
	}
	if cfg.Collection == "" {
		cfg.Collection = "newsdesk_documents"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	c := &Chroma{
		baseURL:  strings.TrimRight(cfg.URL, "/") + "/api/v2",
		tenant:   cfg.Tenant,
		database: cfg.Database,
		http:     &http.Client{Timeout: cfg.Timeout},
		embedder: embedder,
		logger:   slog.Default().With("component", "chroma"),
	}
	id, err := c.getOrCreateCollection(ctx, cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("get or create collection %s: %w", cfg.Collection, err)
	}
	c.collectionID = id
	return c, nil
}

func (c *Chroma) collectionsURL() string {
	return fmt.Sprintf("%s/tenants/%s/databases/%s/collections", c.baseURL, c.tenant, c.database)
}

func (c *Chroma) collectionURL() string {
	return c.collectionsURL() + "/" + c.collectionID
}

func (c *Chroma) getOrCreateCollection(ctx context.Context, name string) (string, error) {
	var existing struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodGet, c.collectionsURL()+"/"+name, nil, &existing)
	if err == nil && existing.ID != "" {
		c.logger.Debug("using existing collection", "name", name, "id", existing.ID)
		return existing.ID, nil
	}

	payload := map[string]any{
		"name":          name,
		"metadata":      map[string]any{"description": "newsdesk research documents"},
		"get_or_create": true,
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, c.collectionsURL(), payload, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", errors.New("collection response has no id")
	}
	c.logger.Info("created collection", "name", name, "id", created.ID)
	return created.ID, nil
}

// Index embeds text and adds it under the document's id.
func (c *Chroma) Index(ctx context.Context, documentID int64, text string, meta Metadata) error {
	embs, err := c.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("embed document %d: %w", documentID, err)
	}
	payload := map[string]any{
		"ids":        []string{strconv.FormatInt(documentID, 10)},
		"documents":  []string{text},
		"metadatas":  []map[string]any{meta.toMap()},
		"embeddings": embs,
	}
	if err := c.do(ctx, http.MethodPost, c.collectionURL()+"/add", payload, nil); err != nil {
		return fmt.Errorf("add document %d: %w", documentID, err)
	}
	return nil
}

// Search returns the documents closest to query.
func (c *Chroma) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	emb, err := c.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	payload := map[string]any{
		"query_embeddings": [][]float64{emb},
		"n_results":        limit,
		"include":          []string{"metadatas", "documents", "distances"},
	}
	var res queryResults
	if err := c.do(ctx, http.MethodPost, c.collectionURL()+"/query", payload, &res); err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	matches := []Match{}
	if len(res.IDs) == 0 {
		return matches, nil
	}
	for i, id := range res.IDs[0] {
		m := Match{ID: id}
		if len(res.Distances) > 0 && i < len(res.Distances[0]) {
			m.Distance = res.Distances[0][i]
		}
		if len(res.Documents) > 0 && i < len(res.Documents[0]) {
			m.Document = res.Documents[0][i]
		}
		if len(res.Metadatas) > 0 && i < len(res.Metadatas[0]) {
			m.Metadata = metadataFromMap(res.Metadatas[0][i])
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Delete removes the given documents from the collection. Unknown ids are
// ignored by Chroma.
func (c *Chroma) Delete(ctx context.Context, documentIDs []int64) error {
	if len(documentIDs) == 0 {
		return nil
	}
	ids := make([]string, len(documentIDs))
	for i, id := range documentIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	if err := c.do(ctx, http.MethodPost, c.collectionURL()+"/delete", map[string]any{"ids": ids}, nil); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

func (c *Chroma) do(ctx context.Context, method, url string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("chroma status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (m Metadata) toMap() map[string]any {
	return map[string]any{
		"task_id":     m.TaskID,
		"document_id": m.DocumentID,
		"source":      m.Source,
		"title":       m.Title,
		"url":         m.URL,
	}
}

func metadataFromMap(raw map[string]any) Metadata {
	var m Metadata
	m.Source, _ = raw["source"].(string)
	m.Title, _ = raw["title"].(string)
	m.URL, _ = raw["url"].(string)
	// JSON numbers decode as float64.
	if v, ok := raw["task_id"].(float64); ok {
		m.TaskID = int64(v)
	}
	if v, ok := raw["document_id"].(float64); ok {
		m.DocumentID = int64(v)
	}
	return m
}
