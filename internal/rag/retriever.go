// Package rag holds the retrieval-augmented answer flows the CLI drivers
// run: direct retrieval, a retriever exposed as an agent tool, and an agent
// driving a remote MCP server.
package rag

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/veigap/austral-genai-rag/internal/embedding"
	"github.com/veigap/austral-genai-rag/internal/search"
	"github.com/veigap/austral-genai-rag/internal/vectorstore"
)

// DefaultQuestion is asked when the driver is given none.
const DefaultQuestion = "What laptops do you have for programming?"

// Retriever fetches the rows most relevant to a query.
type Retriever interface {
	Name() string
	Retrieve(ctx context.Context, query string, k int) ([]search.Row, error)
}

// FullTextRetriever searches one full-text index.
type FullTextRetriever struct {
	Backend search.FullText
	Index   string
}

func (r *FullTextRetriever) Name() string { return "elasticsearch:" + r.Index }

func (r *FullTextRetriever) Retrieve(ctx context.Context, query string, k int) ([]search.Row, error) {
	rows, _, err := r.Backend.Search(ctx, r.Index, query, k)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", r.Index, err)
	}
	return rows, nil
}

// VectorRetriever embeds the query and searches one collection.
type VectorRetriever struct {
	Store      vectorstore.Store
	Embedder   embedding.Embedder
	Collection string
}

func (r *VectorRetriever) Name() string { return "chroma:" + r.Collection }

func (r *VectorRetriever) Retrieve(ctx context.Context, query string, k int) ([]search.Row, error) {
	vec, err := r.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	recs, err := r.Store.Query(ctx, r.Collection, vec, k)
	if err != nil {
		return nil, err
	}
	rows := make([]search.Row, len(recs))
	for i, rec := range recs {
		fields := make(map[string]any, len(rec.Metadata)+1)
		maps.Copy(fields, rec.Metadata)
		fields["document"] = rec.Text
		rows[i] = search.VectorRow(rec.ID, rec.Distance, fields)
	}
	search.SortByDistance(rows)
	return rows, nil
}

// Title is the display name of a row.
func Title(row search.Row) string {
	if name, ok := row.Fields["name"].(string); ok && name != "" {
		return name
	}
	return row.ID
}

// BuildContext renders rows as numbered sources for the prompt.
func BuildContext(rows []search.Row) string {
	if len(rows) == 0 {
		return "(no matching documents)"
	}
	var b strings.Builder
	for i, row := range rows {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, Title(row))
		for _, key := range []string{"description", "document", "category", "brand", "price"} {
			v, ok := row.Fields[key]
			if !ok || v == nil || v == "" {
				continue
			}
			if key == "document" && row.Fields["description"] != nil {
				continue
			}
			fmt.Fprintf(&b, "    %s: %v\n", key, v)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
