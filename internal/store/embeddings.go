package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EmbeddingCacheEntry is one cached vector, keyed by content hash and model.
type EmbeddingCacheEntry struct {
	ContentHash string
	Model       string
	Embedding   []byte
	Dimension   int
	UpdatedAt   int64
}

// EmbeddingCacheStore handles embedding cache operations in SQLite.
type EmbeddingCacheStore struct {
	db *DB
}

func NewEmbeddingCacheStore(db *DB) *EmbeddingCacheStore {
	return &EmbeddingCacheStore{db: db}
}

// Get returns a cached embedding, or nil if not found.
func (s *EmbeddingCacheStore) Get(ctx context.Context, contentHash, model string) (*EmbeddingCacheEntry, error) {
	var e EmbeddingCacheEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT content_hash, model, embedding, dimension, updated_at
		FROM embedding_cache WHERE content_hash = ? AND model = ?
	`, contentHash, model).Scan(&e.ContentHash, &e.Model, &e.Embedding, &e.Dimension, &e.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get embedding cache: %w", err)
	}
	return &e, nil
}

// Put upserts an embedding cache entry.
func (s *EmbeddingCacheStore) Put(ctx context.Context, entry *EmbeddingCacheEntry) error {
	entry.UpdatedAt = time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embedding_cache (content_hash, model, embedding, dimension, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(content_hash, model) DO UPDATE SET
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			updated_at = excluded.updated_at
	`, entry.ContentHash, entry.Model, entry.Embedding, entry.Dimension, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put embedding cache: %w", err)
	}
	return nil
}

// Count returns the number of cached vectors.
func (s *EmbeddingCacheStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embedding_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count embedding cache: %w", err)
	}
	return n, nil
}
