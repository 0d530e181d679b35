package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// CollectionManager resolves collection names to Chroma ids, caching them,
// and exposes the ChromaClient as a name-addressed Store.
type CollectionManager struct {
	client *ChromaClient
	ids    map[string]string
	mu     sync.RWMutex
}

func NewCollectionManager(client *ChromaClient) *CollectionManager {
	return &CollectionManager{
		client: client,
		ids:    make(map[string]string),
	}
}

func (m *CollectionManager) cached(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.ids[name]
	return id, ok
}

// resolve returns the id for an existing collection.
func (m *CollectionManager) resolve(ctx context.Context, name string) (string, error) {
	if id, ok := m.cached(name); ok {
		return id, nil
	}
	coll, err := m.client.GetCollection(ctx, name)
	if err != nil {
		return "", fmt.Errorf("collection %s: %w", name, err)
	}
	m.mu.Lock()
	m.ids[name] = coll.ID
	m.mu.Unlock()
	return coll.ID, nil
}

// ensure returns the id for name, creating the collection on first use.
func (m *CollectionManager) ensure(ctx context.Context, name string) (string, error) {
	if id, ok := m.cached(name); ok {
		return id, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if id, ok := m.ids[name]; ok {
		return id, nil
	}

	coll, err := m.client.CreateCollection(ctx, name, defaultMetadata())
	if err != nil {
		return "", fmt.Errorf("ensure collection %s: %w", name, err)
	}
	m.ids[name] = coll.ID
	return coll.ID, nil
}

// forget drops a cached id so the next call re-resolves it. Used when a
// collection was deleted behind our back.
func (m *CollectionManager) forget(name string) {
	m.mu.Lock()
	delete(m.ids, name)
	m.mu.Unlock()
}

func (m *CollectionManager) Heartbeat(ctx context.Context) error {
	return m.client.Heartbeat(ctx)
}

func (m *CollectionManager) Collections(ctx context.Context) ([]Collection, error) {
	colls, err := m.client.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	for _, c := range colls {
		m.ids[c.Name] = c.ID
	}
	m.mu.Unlock()
	return colls, nil
}

func (m *CollectionManager) Collection(ctx context.Context, name string) (Collection, error) {
	coll, err := m.client.GetCollection(ctx, name)
	if err != nil {
		m.forget(name)
		return Collection{}, fmt.Errorf("collection %s: %w", name, err)
	}
	m.mu.Lock()
	m.ids[name] = coll.ID
	m.mu.Unlock()
	return coll, nil
}

func (m *CollectionManager) Count(ctx context.Context, name string) (int, error) {
	return withID(ctx, m, name, func(id string) (int, error) {
		return m.client.Count(ctx, id)
	})
}

func (m *CollectionManager) Query(ctx context.Context, name string, vector []float32, n int) ([]Record, error) {
	return withID(ctx, m, name, func(id string) ([]Record, error) {
		return m.client.Query(ctx, id, vector, n)
	})
}

func (m *CollectionManager) Get(ctx context.Context, name string, limit int) ([]Record, error) {
	return withID(ctx, m, name, func(id string) ([]Record, error) {
		return m.client.Get(ctx, id, limit)
	})
}

func (m *CollectionManager) Upsert(ctx context.Context, name string, docs []Document) error {
	id, err := m.ensure(ctx, name)
	if err != nil {
		return err
	}
	if err := m.client.Upsert(ctx, id, docs); err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			m.forget(name)
		}
		return fmt.Errorf("upsert into %s: %w", name, err)
	}
	return nil
}

// withID resolves name and runs fn, dropping the cached id if Chroma no
// longer knows it.
func withID[T any](ctx context.Context, m *CollectionManager, name string, fn func(id string) (T, error)) (T, error) {
	var zero T
	id, err := m.resolve(ctx, name)
	if err != nil {
		return zero, err
	}
	out, err := fn(id)
	if err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			m.forget(name)
		}
		return zero, fmt.Errorf("collection %s: %w", name, err)
	}
	return out, nil
}
