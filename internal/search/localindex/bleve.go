// Package localindex is an embedded full-text backend built on bleve. It
// stands in for Elasticsearch in offline demos and tests.
package localindex

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/index/scorch"
	"github.com/google/uuid"

	"github.com/veigap/austral-genai-rag/internal/search"
)

const indexSuffix = ".bleve"

// Backend holds one bleve index per index name, created on first write.
type Backend struct {
	mu      sync.RWMutex
	dir     string
	indexes map[string]bleve.Index
}

// New returns a backend. With an empty dir every index lives in memory;
// otherwise indexes are persisted under dir and reopened on start.
func New(dir string) (*Backend, error) {
	b := &Backend{dir: dir, indexes: map[string]bleve.Index{}}
	if dir == "" {
		return b, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read index directory: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasSuffix(e.Name(), indexSuffix) {
			continue
		}
		idx, err := bleve.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("open index %s: %w", e.Name(), err)
		}
		b.indexes[strings.TrimSuffix(e.Name(), indexSuffix)] = idx
	}
	return b, nil
}

func (b *Backend) lookup(name string) (bleve.Index, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	idx, ok := b.indexes[name]
	return idx, ok
}

// validName applies Elasticsearch's index naming rules, which also keep
// names from leaving the index directory.
func validName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid index name [%s]: must not be empty, '.' or '..'", name)
	case strings.ToLower(name) != name:
		return fmt.Errorf("invalid index name [%s]: must be lowercase", name)
	case strings.ContainsAny(name, `/\*?"<>|,# `):
		return fmt.Errorf("invalid index name [%s]: must not contain '/', '\\', '*', '?', '\"', '<', '>', '|', ',', '#' or ' '", name)
	case strings.ContainsAny(name[:1], "-_+"):
		return fmt.Errorf("invalid index name [%s]: must not start with '-', '_' or '+'", name)
	}
	return nil
}

func (b *Backend) getOrCreate(name string) (bleve.Index, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if idx, ok := b.lookup(name); ok {
		return idx, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if idx, ok := b.indexes[name]; ok {
		return idx, nil
	}

	var (
		idx bleve.Index
		err error
	)
	m := bleve.NewIndexMapping()
	if b.dir == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		idx, err = bleve.NewUsing(filepath.Join(b.dir, name+indexSuffix), m, scorch.Name, scorch.Name, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("create index %s: %w", name, err)
	}
	b.indexes[name] = idx
	return idx, nil
}

// Search runs a match query against every field and returns stored fields.
func (b *Backend) Search(ctx context.Context, index, query string, size int) ([]search.Row, int, error) {
	if err := validName(index); err != nil {
		return nil, 0, err
	}
	idx, ok := b.lookup(index)
	if !ok {
		return nil, 0, fmt.Errorf("no such index [%s]", index)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), size, 0, false)
	req.Fields = []string{"*"}
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("search %s: %w", index, err)
	}

	rows := make([]search.Row, 0, len(res.Hits))
	for _, hit := range res.Hits {
		rows = append(rows, search.FullTextRow(hit.ID, hit.Score, hit.Fields))
	}
	return rows, int(res.Total), nil
}

// Index writes doc under id. Writes are visible to the next search.
func (b *Backend) Index(_ context.Context, index, id string, doc map[string]any) (search.IndexResult, error) {
	idx, err := b.getOrCreate(index)
	if err != nil {
		return search.IndexResult{}, err
	}
	if id == "" {
		id = uuid.New().String()
	}

	result := "created"
	if existing, err := idx.Document(id); err == nil && existing != nil {
		result = "updated"
	}
	if err := idx.Index(id, doc); err != nil {
		return search.IndexResult{}, fmt.Errorf("index document %s: %w", id, err)
	}
	return search.IndexResult{Index: index, ID: id, Result: result}, nil
}

// Indices lists indexes sorted by name.
func (b *Backend) Indices(_ context.Context) ([]search.IndexInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	infos := make([]search.IndexInfo, 0, len(b.indexes))
	for name, idx := range b.indexes {
		if strings.HasPrefix(name, ".") {
			continue
		}
		count, err := idx.DocCount()
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		infos = append(infos, search.IndexInfo{
			Index:     name,
			Health:    "green",
			Status:    "open",
			DocsCount: strconv.FormatUint(count, 10),
			StoreSize: b.storeSize(name),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Index < infos[j].Index })
	return infos, nil
}

func (b *Backend) storeSize(name string) string {
	if b.dir == "" {
		return "0b"
	}
	var total int64
	filepath.WalkDir(filepath.Join(b.dir, name+indexSuffix), func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += fi.Size()
		}
		return nil
	})
	return humanBytes(total)
}

func humanBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1fgb", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1fmb", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fkb", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%db", n)
	}
}

// Info reports the backend identity in the shape of Elasticsearch's root
// endpoint.
func (b *Backend) Info(_ context.Context) (map[string]any, error) {
	b.mu.RLock()
	n := len(b.indexes)
	b.mu.RUnlock()

	storage := "memory"
	if b.dir != "" {
		storage = b.dir
	}
	return map[string]any{
		"cluster_name": "localindex",
		"version":      map[string]any{"number": "bleve-v2"},
		"storage":      storage,
		"indices":      n,
	}, nil
}

// Close releases every open index.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for name, idx := range b.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", name, err)
		}
	}
	b.indexes = map[string]bleve.Index{}
	return firstErr
}
