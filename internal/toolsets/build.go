package toolsets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/veigap/austral-genai-rag/internal/config"
	"github.com/veigap/austral-genai-rag/internal/embedding"
	"github.com/veigap/austral-genai-rag/internal/search"
	"github.com/veigap/austral-genai-rag/internal/search/elastic"
	"github.com/veigap/austral-genai-rag/internal/search/localindex"
	"github.com/veigap/austral-genai-rag/internal/vectorstore"
)

// Backends are the shared clients a process builds once and injects into
// tool sets and drivers.
type Backends struct {
	FullText search.FullText
	Vectors  vectorstore.Store
	Embedder embedding.Embedder
	closers  []func() error
}

// Close releases every backend that holds resources.
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewFullText builds the backend selected by SEARCH_BACKEND. Construction
// never contacts the server.
func NewFullText(cfg *config.Config) (search.FullText, func() error, error) {
	switch cfg.SearchBackend {
	case "elasticsearch":
		b, err := elastic.New(cfg.ElasticsearchURL, cfg.ElasticsearchUsername, cfg.ElasticsearchPassword)
		if err != nil {
			return nil, nil, err
		}
		return b, func() error { return nil }, nil
	case "bleve":
		b, err := localindex.New(cfg.BleveIndexDir)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown search backend %q", cfg.SearchBackend)
	}
}

// NewVectorStore builds the store selected by VECTOR_BACKEND.
func NewVectorStore(cfg *config.Config) (vectorstore.Store, error) {
	switch cfg.VectorBackend {
	case "chroma":
		client := vectorstore.NewChromaClient(cfg.ChromaURL, cfg.ChromaTenant, cfg.ChromaDatabase)
		return vectorstore.NewCollectionManager(client), nil
	case "memory":
		return vectorstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

// NewBackends builds only what server needs; an empty server builds all.
func NewBackends(cfg *config.Config, server string, logger *slog.Logger) (*Backends, error) {
	b := &Backends{}
	if server == "" || server == "elasticsearch" {
		ft, closeFn, err := NewFullText(cfg)
		if err != nil {
			return nil, err
		}
		b.FullText = ft
		b.closers = append(b.closers, closeFn)
	}
	if server == "" || server == "chroma" {
		vs, err := NewVectorStore(cfg)
		if err != nil {
			b.Close()
			return nil, err
		}
		emb, closeFn, err := embedding.New(cfg, logger)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Vectors = vs
		b.Embedder = emb
		b.closers = append(b.closers, closeFn)
	}
	return b, nil
}

// Build returns the named tool set wired to b.
func Build(name string, cfg *config.Config, b *Backends) (*Set, error) {
	switch name {
	case "math":
		return Math(), nil
	case "weather":
		return Weather(), nil
	case "elasticsearch":
		if b.FullText == nil {
			return nil, fmt.Errorf("elasticsearch server needs a full-text backend")
		}
		return Elasticsearch(b.FullText, cfg.DefaultSearchSize), nil
	case "chroma":
		if b.Vectors == nil || b.Embedder == nil {
			return nil, fmt.Errorf("chroma server needs a vector store and an embedder")
		}
		return Chroma(b.Vectors, b.Embedder, cfg.DefaultCollection, cfg.DefaultNResults), nil
	default:
		return nil, fmt.Errorf("unknown server %q (want one of math, weather, elasticsearch, chroma)", name)
	}
}

// Probe runs the set's health check once and logs the outcome. A failing
// backend is a warning: the server still starts.
func Probe(ctx context.Context, s *Set, logger *slog.Logger) {
	if s.Checker == nil {
		return
	}
	details, err := s.Checker.Check(ctx)
	if err != nil {
		logger.Warn("backend not reachable at startup", "backend", s.Checker.Name(), "error", err)
		return
	}
	logger.Info("backend connected", append([]any{"backend", s.Checker.Name()}, flatten(details)...)...)
}

func flatten(m map[string]any) []any {
	out := make([]any, 0, len(m)*2)
	for k, v := range m {
		out = append(out, k, v)
	}
	return out
}
