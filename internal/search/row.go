package search

import (
	"context"
	"sort"
)

// Row is one search hit in the shape every tool returns. Full-text rows set
// Score and Relevance = Score (higher is better). Vector rows set Distance
// and Relevance = Distance (lower is better). The two scales are not
// comparable.
type Row struct {
	ID        string         `json:"id"`
	Relevance float64        `json:"relevance"`
	Score     *float64       `json:"score,omitempty"`
	Distance  *float64       `json:"distance,omitempty"`
	Fields    map[string]any `json:"fields"`
}

// FullTextRow builds a row from a scored full-text hit.
func FullTextRow(id string, score float64, fields map[string]any) Row {
	if fields == nil {
		fields = map[string]any{}
	}
	return Row{ID: id, Relevance: score, Score: &score, Fields: fields}
}

// VectorRow builds a row from a nearest-neighbour hit.
func VectorRow(id string, distance float64, fields map[string]any) Row {
	if fields == nil {
		fields = map[string]any{}
	}
	return Row{ID: id, Relevance: distance, Distance: &distance, Fields: fields}
}

// SortByDistance orders vector rows nearest first. Ties keep input order.
func SortByDistance(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Relevance < rows[j].Relevance
	})
}

// IndexResult is the outcome of writing one document.
type IndexResult struct {
	Index  string `json:"index"`
	ID     string `json:"id"`
	Result string `json:"result"`
}

// IndexInfo describes one user-visible index.
type IndexInfo struct {
	Index     string `json:"index"`
	Health    string `json:"health"`
	Status    string `json:"status"`
	DocsCount string `json:"docs_count"`
	StoreSize string `json:"store_size"`
}

// FullText is a keyword search backend.
type FullText interface {
	// Search runs a multi-field match of query against index.
	Search(ctx context.Context, index, query string, size int) ([]Row, int, error)
	// Index writes doc and makes it searchable before returning. An empty id
	// lets the backend pick one.
	Index(ctx context.Context, index, id string, doc map[string]any) (IndexResult, error)
	// Indices lists user indices. System indices (leading ".") are hidden.
	Indices(ctx context.Context) ([]IndexInfo, error)
	// Info reports backend identity for health checks.
	Info(ctx context.Context) (map[string]any, error)
}
