package toolsets

import (
	"context"
	"fmt"
	"maps"

	"github.com/veigap/austral-genai-rag/internal/embedding"
	"github.com/veigap/austral-genai-rag/internal/mcp"
	"github.com/veigap/austral-genai-rag/internal/search"
	"github.com/veigap/austral-genai-rag/internal/vectorstore"
)

const sampleSize = 3

type chromaQueryInput struct {
	Collection string `json:"collection"`
	Query      string `json:"query"`
	NResults   *int   `json:"n_results"`
}

type chromaInfoInput struct {
	Collection string `json:"collection"`
}

type chromaQueryOutput struct {
	Collection string       `json:"collection"`
	Query      string       `json:"query"`
	Results    []search.Row `json:"results"`
}

type sampleDoc struct {
	ID       string         `json:"id"`
	Document string         `json:"document"`
	Metadata map[string]any `json:"metadata"`
}

type collectionInfo struct {
	vectorstore.Collection
	Count  int         `json:"count"`
	Sample []sampleDoc `json:"sample"`
}

// Chroma is the vector search server. Queries are embedded with emb, which
// must be the embedder the collection was loaded with.
func Chroma(store vectorstore.Store, emb embedding.Embedder, defaultCollection string, defaultN int) *Set {
	if defaultCollection == "" {
		defaultCollection = "products"
	}
	if defaultN < 1 {
		defaultN = 5
	}

	queryTool := mcp.NewTool("chroma_query_collection",
		"Semantic search over a Chroma collection. Returns the nearest documents with their distance (lower is more similar).",
		mcp.InputSchema{
			Properties: map[string]mcp.Property{
				"collection": {Type: "string", Description: "Collection to query", Default: defaultCollection},
				"query":      {Type: "string", Description: "Natural-language query"},
				"n_results":  {Type: "integer", Description: "Number of results", Default: defaultN, Minimum: mcp.Float(1), Maximum: mcp.Float(50)},
			},
			Required: []string{"query"},
		},
		func(ctx context.Context, in chromaQueryInput) (string, error) {
			collection := in.Collection
			if collection == "" {
				collection = defaultCollection
			}
			vec, err := emb.Embed(ctx, in.Query)
			if err != nil {
				return "", fmt.Errorf("embed query: %w", err)
			}
			recs, err := store.Query(ctx, collection, vec, intOr(in.NResults, defaultN))
			if err != nil {
				return "", err
			}
			rows := make([]search.Row, len(recs))
			for i, r := range recs {
				rows[i] = search.VectorRow(r.ID, r.Distance, recordFields(r))
			}
			search.SortByDistance(rows)
			return toJSON(chromaQueryOutput{Collection: collection, Query: in.Query, Results: rows})
		})

	listTool := mcp.NewTool("chroma_list_collections",
		"List the available Chroma collections.",
		mcp.InputSchema{},
		func(ctx context.Context, _ struct{}) (string, error) {
			colls, err := store.Collections(ctx)
			if err != nil {
				return "", err
			}
			if colls == nil {
				colls = []vectorstore.Collection{}
			}
			return toJSON(map[string]any{"collections": colls})
		})

	infoTool := mcp.NewTool("chroma_get_collection_info",
		"Describe a collection: metadata, document count and a few sample documents.",
		mcp.InputSchema{
			Properties: map[string]mcp.Property{
				"collection": {Type: "string", Description: "Collection name"},
			},
			Required: []string{"collection"},
		},
		func(ctx context.Context, in chromaInfoInput) (string, error) {
			coll, err := store.Collection(ctx, in.Collection)
			if err != nil {
				return "", err
			}
			count, err := store.Count(ctx, in.Collection)
			if err != nil {
				return "", err
			}
			recs, err := store.Get(ctx, in.Collection, sampleSize)
			if err != nil {
				return "", err
			}
			sample := make([]sampleDoc, len(recs))
			for i, r := range recs {
				sample[i] = sampleDoc{ID: r.ID, Document: r.Text, Metadata: r.Metadata}
			}
			return toJSON(collectionInfo{Collection: coll, Count: count, Sample: sample})
		})

	return &Set{
		Name:         "chroma",
		Version:      version,
		Instructions: fmt.Sprintf("Use chroma_query_collection for semantic product search (collection %q by default).", defaultCollection),
		Tools:        []mcp.Tool{queryTool, listTool, infoTool},
		Checker:      &chromaChecker{store: store, model: emb.Model()},
	}
}

// recordFields flattens a record into row fields: its metadata plus the
// document text under "document".
func recordFields(r vectorstore.Record) map[string]any {
	fields := make(map[string]any, len(r.Metadata)+1)
	maps.Copy(fields, r.Metadata)
	fields["document"] = r.Text
	return fields
}

type chromaChecker struct {
	store vectorstore.Store
	model string
}

func (c *chromaChecker) Name() string { return "chroma" }

func (c *chromaChecker) Check(ctx context.Context) (map[string]any, error) {
	if err := c.store.Heartbeat(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"embedding_model": c.model}, nil
}
