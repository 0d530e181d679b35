package seed

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/veigap/austral-genai-rag/internal/embedding"
	"github.com/veigap/austral-genai-rag/internal/search/localindex"
	"github.com/veigap/austral-genai-rag/internal/vectorstore"
)

func TestProducts(t *testing.T) {
	products, err := Products()
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if len(products) < 10 {
		t.Fatalf("expected a full catalogue, got %d products", len(products))
	}
	var dell *Product
	for i := range products {
		if products[i].Name == "Dell XPS 15" {
			dell = &products[i]
		}
	}
	if dell == nil {
		t.Fatal("catalogue is missing Dell XPS 15")
	}
	if !strings.Contains(dell.Description, "laptop") {
		t.Errorf("Dell XPS 15 description should mention laptop: %q", dell.Description)
	}
	for k, v := range dell.Metadata() {
		switch v.(type) {
		case string, float64, bool:
		default:
			t.Errorf("metadata %s has non-scalar type %T", k, v)
		}
	}
}

func TestParseRejectsBadCatalogue(t *testing.T) {
	tests := map[string]string{
		"missing id": "products:\n  - name: x\n",
		"duplicate":  "products:\n  - {id: a, name: x}\n  - {id: a, name: y}\n",
		"not yaml":   "products: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadFullTextIdempotent(t *testing.T) {
	products, _ := Products()
	b, err := localindex.New("")
	if err != nil {
		t.Fatalf("localindex: %v", err)
	}
	defer b.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		n, err := LoadFullText(ctx, b, "products", products)
		if err != nil || n != len(products) {
			t.Fatalf("LoadFullText = %d, %v", n, err)
		}
	}
	infos, _ := b.Indices(ctx)
	if len(infos) != 1 || infos[0].DocsCount != strconv.Itoa(len(products)) {
		t.Fatalf("expected %d docs after two loads, got %+v", len(products), infos)
	}
}

func TestLoadVectors(t *testing.T) {
	products, _ := Products()
	store := vectorstore.NewMemoryStore()
	ctx := context.Background()

	n, err := LoadVectors(ctx, store, embedding.NewHashEmbedder(64), "products", products)
	if err != nil || n != len(products) {
		t.Fatalf("LoadVectors = %d, %v", n, err)
	}
	count, _ := store.Count(ctx, "products")
	if count != len(products) {
		t.Errorf("Count = %d, want %d", count, len(products))
	}
}
