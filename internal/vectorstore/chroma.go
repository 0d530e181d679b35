package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ChromaClient interfaces with the Chroma v2 REST API. Collection-scoped
// calls take the collection id, not its name; see CollectionManager.
type ChromaClient struct {
	baseURL    string
	tenant     string
	database   string
	httpClient *http.Client
}

func NewChromaClient(baseURL, tenant, database string) *ChromaClient {
	return &ChromaClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		tenant:   tenant,
		database: database,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *ChromaClient) scoped(path string) string {
	return fmt.Sprintf("/api/v2/tenants/%s/databases/%s%s",
		url.PathEscape(c.tenant), url.PathEscape(c.database), path)
}

// Heartbeat verifies Chroma connectivity.
func (c *ChromaClient) Heartbeat(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v2/heartbeat", nil, nil)
}

func (c *ChromaClient) ListCollections(ctx context.Context) ([]Collection, error) {
	var out []Collection
	if err := c.do(ctx, http.MethodGet, c.scoped("/collections"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCollection resolves a collection by name. A missing collection yields
// an error wrapping ErrCollectionNotFound.
func (c *ChromaClient) GetCollection(ctx context.Context, name string) (Collection, error) {
	var out Collection
	err := c.do(ctx, http.MethodGet, c.scoped("/collections/"+url.PathEscape(name)), nil, &out)
	if err != nil {
		return Collection{}, err
	}
	return out, nil
}

// CreateCollection creates name, or returns it if it already exists.
func (c *ChromaClient) CreateCollection(ctx context.Context, name string, metadata map[string]any) (Collection, error) {
	body := map[string]any{
		"name":          name,
		"metadata":      metadata,
		"get_or_create": true,
	}
	var out Collection
	if err := c.do(ctx, http.MethodPost, c.scoped("/collections"), body, &out); err != nil {
		return Collection{}, err
	}
	return out, nil
}

func (c *ChromaClient) Count(ctx context.Context, collectionID string) (int, error) {
	var n int
	if err := c.do(ctx, http.MethodGet, c.scoped("/collections/"+collectionID+"/count"), nil, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// Query finds the n nearest documents to vector.
func (c *ChromaClient) Query(ctx context.Context, collectionID string, vector []float32, n int) ([]Record, error) {
	body := map[string]any{
		"query_embeddings": [][]float32{vector},
		"n_results":        n,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	var resp struct {
		IDs       [][]string         `json:"ids"`
		Documents [][]*string        `json:"documents"`
		Metadatas [][]map[string]any `json:"metadatas"`
		Distances [][]float64        `json:"distances"`
	}
	if err := c.do(ctx, http.MethodPost, c.scoped("/collections/"+collectionID+"/query"), body, &resp); err != nil {
		return nil, err
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}

	records := make([]Record, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		records[i] = Record{
			ID:       id,
			Text:     nested(resp.Documents, i),
			Metadata: nestedMap(resp.Metadatas, i),
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			records[i].Distance = resp.Distances[0][i]
		}
	}
	return records, nil
}

// Get returns up to limit documents without ranking.
func (c *ChromaClient) Get(ctx context.Context, collectionID string, limit int) ([]Record, error) {
	body := map[string]any{
		"limit":   limit,
		"include": []string{"documents", "metadatas"},
	}
	var resp struct {
		IDs       []string         `json:"ids"`
		Documents []*string        `json:"documents"`
		Metadatas []map[string]any `json:"metadatas"`
	}
	if err := c.do(ctx, http.MethodPost, c.scoped("/collections/"+collectionID+"/get"), body, &resp); err != nil {
		return nil, err
	}

	records := make([]Record, len(resp.IDs))
	for i, id := range resp.IDs {
		records[i] = Record{ID: id}
		if i < len(resp.Documents) && resp.Documents[i] != nil {
			records[i].Text = *resp.Documents[i]
		}
		if i < len(resp.Metadatas) {
			records[i].Metadata = resp.Metadatas[i]
		}
	}
	return records, nil
}

// Upsert inserts or replaces documents by id.
func (c *ChromaClient) Upsert(ctx context.Context, collectionID string, docs []Document) error {
	ids := make([]string, len(docs))
	embeddings := make([][]float32, len(docs))
	texts := make([]string, len(docs))
	metadatas := make([]map[string]any, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		embeddings[i] = d.Embedding
		texts[i] = d.Text
		metadatas[i] = d.Metadata
	}
	body := map[string]any{
		"ids":        ids,
		"embeddings": embeddings,
		"documents":  texts,
		"metadatas":  metadatas,
	}
	return c.do(ctx, http.MethodPost, c.scoped("/collections/"+collectionID+"/upsert"), body, nil)
}

func (c *ChromaClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chroma %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(respBody))
		if resp.StatusCode == http.StatusNotFound || strings.Contains(msg, "does not exist") {
			return fmt.Errorf("chroma %s %s: %w: %s", method, path, ErrCollectionNotFound, msg)
		}
		return fmt.Errorf("chroma %s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func nested(v [][]*string, i int) string {
	if len(v) == 0 || i >= len(v[0]) || v[0][i] == nil {
		return ""
	}
	return *v[0][i]
}

func nestedMap(v [][]map[string]any, i int) map[string]any {
	if len(v) == 0 || i >= len(v[0]) {
		return nil
	}
	return v[0][i]
}
