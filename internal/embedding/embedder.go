// Package embedding turns text into vectors for the chroma tool set and the
// seed loader.
package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/veigap/austral-genai-rag/internal/config"
	"github.com/veigap/austral-genai-rag/internal/store"
)

// Embedder maps text to a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Model names the embedding space. Vectors from different models must
	// not be mixed in one collection.
	Model() string
}

// New builds the embedder selected by EMBEDDING_FUNCTION, wrapped in the
// SQLite cache when EMBEDDING_CACHE_PATH is set. The returned func releases
// the cache database.
func New(cfg *config.Config, logger *slog.Logger) (Embedder, func() error, error) {
	var base Embedder
	switch cfg.EmbeddingFunction {
	case "default":
		base = NewHashEmbedder(cfg.EmbeddingDim)
	case "ollama":
		base = NewOllamaClient(cfg.OllamaBaseURL, cfg.EmbeddingModel)
	default:
		return nil, nil, fmt.Errorf("unknown embedding function %q", cfg.EmbeddingFunction)
	}

	if cfg.EmbeddingCachePath == "" {
		return base, func() error { return nil }, nil
	}
	db, err := store.Open(cfg.EmbeddingCachePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open embedding cache: %w", err)
	}
	return NewCachedEmbedder(base, store.NewEmbeddingCacheStore(db), logger), db.Close, nil
}
