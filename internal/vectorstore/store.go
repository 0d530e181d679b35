package vectorstore

import (
	"context"
	"errors"
)

// ErrCollectionNotFound is returned when a collection name does not resolve.
var ErrCollectionNotFound = errors.New("collection not found")

// Collection is a named set of embedded documents.
type Collection struct {
	Name     string         `json:"name"`
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata"`
}

// Document is one item written to a collection.
type Document struct {
	ID        string
	Embedding []float32
	Text      string
	Metadata  map[string]any
}

// Record is one item read back. Distance is only set by Query.
type Record struct {
	ID       string
	Text     string
	Metadata map[string]any
	Distance float64
}

// Store is the vector backend used by the chroma tool set. Collections are
// addressed by name.
type Store interface {
	Heartbeat(ctx context.Context) error
	Collections(ctx context.Context) ([]Collection, error)
	Collection(ctx context.Context, name string) (Collection, error)
	Count(ctx context.Context, name string) (int, error)
	// Query returns the n nearest records to vector, nearest first.
	Query(ctx context.Context, name string, vector []float32, n int) ([]Record, error)
	// Get returns up to limit records in storage order.
	Get(ctx context.Context, name string, limit int) ([]Record, error)
	// Upsert writes docs, creating the collection if needed.
	Upsert(ctx context.Context, name string, docs []Document) error
}

// defaultMetadata is applied to collections created on upsert so distances
// are cosine distances.
func defaultMetadata() map[string]any {
	return map[string]any{"hnsw:space": "cosine"}
}

var (
	_ Store = (*CollectionManager)(nil)
	_ Store = (*MemoryStore)(nil)
)
