package embedding

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"

	"github.com/veigap/austral-genai-rag/internal/search"
	"github.com/veigap/austral-genai-rag/internal/store"
)

// CachedEmbedder wraps an Embedder with content-hash caching via SQLite.
type CachedEmbedder struct {
	inner  Embedder
	cache  *store.EmbeddingCacheStore
	logger *slog.Logger
}

func NewCachedEmbedder(inner Embedder, cache *store.EmbeddingCacheStore, logger *slog.Logger) *CachedEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedder{inner: inner, cache: cache, logger: logger}
}

func (e *CachedEmbedder) Model() string { return e.inner.Model() }

// Embed returns the embedding for text, using cache when available.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := ContentHash(text)
	model := e.inner.Model()

	entry, err := e.cache.Get(ctx, hash, model)
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	if entry != nil {
		return search.BytesToFloat32(entry.Embedding), nil
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	err = e.cache.Put(ctx, &store.EmbeddingCacheEntry{
		ContentHash: hash,
		Model:       model,
		Embedding:   search.Float32ToBytes(vec),
		Dimension:   len(vec),
	})
	if err != nil {
		e.logger.Warn("embedding cache write failed", "model", model, "error", err)
	}

	return vec, nil
}

// ContentHash computes a SHA-256 hash of text content.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h)
}
