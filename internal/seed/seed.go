// Package seed holds the demo product catalogue and loads it into the
// full-text and vector backends.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/veigap/austral-genai-rag/internal/embedding"
	"github.com/veigap/austral-genai-rag/internal/search"
	"github.com/veigap/austral-genai-rag/internal/vectorstore"
)

//go:embed products.yaml
var productsYAML []byte

type Product struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Category    string   `yaml:"category" json:"category"`
	Brand       string   `yaml:"brand" json:"brand"`
	Price       float64  `yaml:"price" json:"price"`
	InStock     bool     `yaml:"in_stock" json:"in_stock"`
	Description string   `yaml:"description" json:"description"`
	Features    []string `yaml:"features" json:"features"`
	Tags        []string `yaml:"tags" json:"tags"`
}

// Products parses the embedded catalogue.
func Products() ([]Product, error) {
	return Parse(productsYAML)
}

// Parse decodes a catalogue document. Every product needs an id and a name.
func Parse(data []byte) ([]Product, error) {
	var doc struct {
		Products []Product `yaml:"products"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse products: %w", err)
	}
	seen := make(map[string]bool, len(doc.Products))
	for i, p := range doc.Products {
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("product %d: id and name are required", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate product id %s", p.ID)
		}
		seen[p.ID] = true
	}
	return doc.Products, nil
}

// Document is the full-text body for a product.
func (p Product) Document() map[string]any {
	return map[string]any{
		"name":        p.Name,
		"category":    p.Category,
		"brand":       p.Brand,
		"price":       p.Price,
		"in_stock":    p.InStock,
		"description": p.Description,
		"features":    p.Features,
		"tags":        p.Tags,
	}
}

// Text is what gets embedded for vector search.
func (p Product) Text() string {
	var b strings.Builder
	b.WriteString(p.Name)
	b.WriteString(". ")
	b.WriteString(p.Description)
	if len(p.Features) > 0 {
		b.WriteString(" Features: ")
		b.WriteString(strings.Join(p.Features, ", "))
		b.WriteString(".")
	}
	return b.String()
}

// Metadata is the scalar-only metadata Chroma accepts.
func (p Product) Metadata() map[string]any {
	return map[string]any{
		"name":     p.Name,
		"category": p.Category,
		"brand":    p.Brand,
		"price":    p.Price,
		"in_stock": p.InStock,
		"tags":     strings.Join(p.Tags, ","),
	}
}

// LoadFullText indexes every product under its own id, so reloading is
// idempotent.
func LoadFullText(ctx context.Context, ft search.FullText, index string, products []Product) (int, error) {
	for i, p := range products {
		if _, err := ft.Index(ctx, index, p.ID, p.Document()); err != nil {
			return i, fmt.Errorf("index %s: %w", p.ID, err)
		}
	}
	return len(products), nil
}

// LoadVectors embeds every product and upserts the batch into collection.
func LoadVectors(ctx context.Context, store vectorstore.Store, emb embedding.Embedder, collection string, products []Product) (int, error) {
	docs := make([]vectorstore.Document, len(products))
	for i, p := range products {
		text := p.Text()
		vec, err := emb.Embed(ctx, text)
		if err != nil {
			return 0, fmt.Errorf("embed %s: %w", p.ID, err)
		}
		docs[i] = vectorstore.Document{ID: p.ID, Embedding: vec, Text: text, Metadata: p.Metadata()}
	}
	if err := store.Upsert(ctx, collection, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}
