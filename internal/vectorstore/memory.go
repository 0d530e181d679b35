package vectorstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/veigap/austral-genai-rag/internal/search"
)

type memCollection struct {
	info  Collection
	order []string
	docs  map[string]Document
}

// MemoryStore is an in-process Store using exact cosine distance. It backs
// VECTOR_BACKEND=memory and the tool tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

func (s *MemoryStore) Heartbeat(context.Context) error { return nil }

func (s *MemoryStore) Collections(context.Context) ([]Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Collection, 0, len(s.collections))
	for _, c := range s.collections {
		out = append(out, c.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) Collection(_ context.Context, name string) (Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return Collection{}, fmt.Errorf("collection %s: %w", name, ErrCollectionNotFound)
	}
	return c.info, nil
}

func (s *MemoryStore) Count(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return 0, fmt.Errorf("collection %s: %w", name, ErrCollectionNotFound)
	}
	return len(c.order), nil
}

func (s *MemoryStore) Query(_ context.Context, name string, vector []float32, n int) ([]Record, error) {
	if n < 1 {
		return nil, fmt.Errorf("query %s: n_results must be at least 1, got %d", name, n)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", name, ErrCollectionNotFound)
	}

	records := make([]Record, 0, len(c.order))
	for _, id := range c.order {
		d := c.docs[id]
		if len(d.Embedding) != len(vector) {
			return nil, fmt.Errorf("collection %s: embedding dimension %d does not match query dimension %d",
				name, len(d.Embedding), len(vector))
		}
		records = append(records, Record{
			ID:       d.ID,
			Text:     d.Text,
			Metadata: d.Metadata,
			Distance: search.CosineDistance(vector, d.Embedding),
		})
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Distance < records[j].Distance })
	if n < len(records) {
		records = records[:n]
	}
	return records, nil
}

func (s *MemoryStore) Get(_ context.Context, name string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", name, ErrCollectionNotFound)
	}

	ids := c.order
	if limit < 0 {
		limit = 0
	}
	if limit < len(ids) {
		ids = ids[:limit]
	}
	out := make([]Record, len(ids))
	for i, id := range ids {
		d := c.docs[id]
		out[i] = Record{ID: d.ID, Text: d.Text, Metadata: d.Metadata}
	}
	return out, nil
}

func (s *MemoryStore) Upsert(_ context.Context, name string, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		c = &memCollection{
			info: Collection{Name: name, ID: uuid.New().String(), Metadata: defaultMetadata()},
			docs: make(map[string]Document),
		}
		s.collections[name] = c
	}
	for _, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("upsert into %s: document id is required", name)
		}
		if _, exists := c.docs[d.ID]; !exists {
			c.order = append(c.order, d.ID)
		}
		d.Embedding = slices.Clone(d.Embedding)
		c.docs[d.ID] = d
	}
	return nil
}
