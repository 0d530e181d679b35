package toolsets

import (
	"context"
	"fmt"

	"github.com/veigap/austral-genai-rag/internal/mcp"
	"github.com/veigap/austral-genai-rag/internal/search"
)

type esSearchInput struct {
	Index string `json:"index"`
	Query string `json:"query"`
	Size  *int   `json:"size"`
}

type esIndexInput struct {
	Index    string         `json:"index"`
	Document map[string]any `json:"document"`
	ID       string         `json:"id"`
}

type esSearchOutput struct {
	Index   string       `json:"index"`
	Query   string       `json:"query"`
	Total   int          `json:"total"`
	Results []search.Row `json:"results"`
}

// Elasticsearch is the full-text search server. defaultSize applies when a
// search omits size.
func Elasticsearch(backend search.FullText, defaultSize int) *Set {
	if defaultSize < 1 {
		defaultSize = 10
	}

	searchTool := mcp.NewTool("elasticsearch_search",
		"Search documents in an Elasticsearch index. Matches the query against every field and returns the best hits with their relevance score.",
		mcp.InputSchema{
			Properties: map[string]mcp.Property{
				"index": {Type: "string", Description: "Index to search"},
				"query": {Type: "string", Description: "Free-text query"},
				"size":  {Type: "integer", Description: "Maximum number of hits", Default: defaultSize, Minimum: mcp.Float(1), Maximum: mcp.Float(100)},
			},
			Required: []string{"index", "query"},
		},
		func(ctx context.Context, in esSearchInput) (string, error) {
			rows, total, err := backend.Search(ctx, in.Index, in.Query, intOr(in.Size, defaultSize))
			if err != nil {
				return "", err
			}
			return toJSON(esSearchOutput{Index: in.Index, Query: in.Query, Total: total, Results: rows})
		})

	indexTool := mcp.NewTool("elasticsearch_index_document",
		"Index a JSON document. The document is searchable as soon as the call returns. Supply id to overwrite an existing document.",
		mcp.InputSchema{
			Properties: map[string]mcp.Property{
				"index":    {Type: "string", Description: "Target index"},
				"document": {Type: "object", Description: "Document body"},
				"id":       {Type: "string", Description: "Optional document id"},
			},
			Required: []string{"index", "document"},
		},
		func(ctx context.Context, in esIndexInput) (string, error) {
			res, err := backend.Index(ctx, in.Index, in.ID, in.Document)
			if err != nil {
				return "", err
			}
			return toJSON(res)
		})

	indicesTool := mcp.NewTool("elasticsearch_get_indices",
		"List the available indices with health, document count and size.",
		mcp.InputSchema{},
		func(ctx context.Context, _ struct{}) (string, error) {
			infos, err := backend.Indices(ctx)
			if err != nil {
				return "", err
			}
			return toJSON(map[string]any{"indices": infos})
		})

	return &Set{
		Name:         "elasticsearch",
		Version:      version,
		Instructions: "Search the product catalogue with elasticsearch_search (index \"products\"). Call elasticsearch_get_indices first if unsure which index to use.",
		Tools:        []mcp.Tool{searchTool, indexTool, indicesTool},
		Checker:      &elasticChecker{backend: backend},
	}
}

type elasticChecker struct {
	backend search.FullText
}

func (c *elasticChecker) Name() string { return "elasticsearch" }

func (c *elasticChecker) Check(ctx context.Context) (map[string]any, error) {
	info, err := c.backend.Info(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string]any{"cluster_name": info["cluster_name"]}
	if v, ok := info["version"].(map[string]any); ok {
		out["version"] = fmt.Sprint(v["number"])
	}
	return out, nil
}
