// Package elastic adapts an Elasticsearch cluster to the full-text backend
// contract.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/veigap/austral-genai-rag/internal/search"
)

type Backend struct {
	es *elasticsearch.Client
}

// New creates a client for url. Username and password enable basic auth when
// both are set. No request is made until the first call.
func New(url, username, password string) (*Backend, error) {
	cfg := elasticsearch.Config{Addresses: []string{url}}
	if username != "" && password != "" {
		cfg.Username = username
		cfg.Password = password
	}
	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Backend{es: es}, nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string         `json:"_id"`
			Score  float64        `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a lenient multi_match over every field of index.
func (b *Backend) Search(ctx context.Context, index, query string, size int) ([]search.Row, int, error) {
	body, err := json.Marshal(map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":   query,
				"fields":  []string{"*"},
				"lenient": true,
			},
		},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("marshal query: %w", err)
	}

	res, err := b.es.Search(
		b.es.Search.WithContext(ctx),
		b.es.Search.WithIndex(index),
		b.es.Search.WithBody(bytes.NewReader(body)),
		b.es.Search.WithSize(size),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search %s: %w", index, err)
	}

	var out searchResponse
	if err := decode(res, &out); err != nil {
		return nil, 0, fmt.Errorf("search %s: %w", index, err)
	}

	rows := make([]search.Row, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		rows = append(rows, search.FullTextRow(h.ID, h.Score, h.Source))
	}
	return rows, out.Hits.Total.Value, nil
}

// Index writes doc with refresh=true so it is searchable on return. An empty
// id lets Elasticsearch generate one.
func (b *Backend) Index(ctx context.Context, index, id string, doc map[string]any) (search.IndexResult, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return search.IndexResult{}, fmt.Errorf("marshal document: %w", err)
	}

	opts := []func(*esapi.IndexRequest){
		b.es.Index.WithContext(ctx),
		b.es.Index.WithRefresh("true"),
	}
	if id != "" {
		opts = append(opts, b.es.Index.WithDocumentID(id))
	}
	res, err := b.es.Index(index, bytes.NewReader(body), opts...)
	if err != nil {
		return search.IndexResult{}, fmt.Errorf("index into %s: %w", index, err)
	}

	var out struct {
		Index  string `json:"_index"`
		ID     string `json:"_id"`
		Result string `json:"result"`
	}
	if err := decode(res, &out); err != nil {
		return search.IndexResult{}, fmt.Errorf("index into %s: %w", index, err)
	}
	return search.IndexResult{Index: out.Index, ID: out.ID, Result: out.Result}, nil
}

// Indices lists user indices from _cat/indices.
func (b *Backend) Indices(ctx context.Context) ([]search.IndexInfo, error) {
	res, err := b.es.Cat.Indices(
		b.es.Cat.Indices.WithContext(ctx),
		b.es.Cat.Indices.WithFormat("json"),
	)
	if err != nil {
		return nil, fmt.Errorf("list indices: %w", err)
	}

	var raw []map[string]string
	if err := decode(res, &raw); err != nil {
		return nil, fmt.Errorf("list indices: %w", err)
	}

	infos := make([]search.IndexInfo, 0, len(raw))
	for _, r := range raw {
		if strings.HasPrefix(r["index"], ".") {
			continue
		}
		infos = append(infos, search.IndexInfo{
			Index:     r["index"],
			Health:    r["health"],
			Status:    r["status"],
			DocsCount: r["docs.count"],
			StoreSize: r["store.size"],
		})
	}
	return infos, nil
}

// Info returns the cluster root document (cluster_name, version, ...).
func (b *Backend) Info(ctx context.Context) (map[string]any, error) {
	res, err := b.es.Info(b.es.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("cluster info: %w", err)
	}
	var out map[string]any
	if err := decode(res, &out); err != nil {
		return nil, fmt.Errorf("cluster info: %w", err)
	}
	return out, nil
}

// decode closes res.Body and turns error responses into Go errors carrying
// Elasticsearch's reason.
func decode(res *esapi.Response, dst any) error {
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if res.IsError() {
		return responseError(res.StatusCode, data)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func responseError(status int, body []byte) error {
	var e struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Reason != "" {
		return fmt.Errorf("elasticsearch %d %s: %s", status, e.Error.Type, e.Error.Reason)
	}
	return fmt.Errorf("elasticsearch %d: %s", status, strings.TrimSpace(string(body)))
}
