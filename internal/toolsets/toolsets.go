// Package toolsets defines the tools each demo server exposes and wires them
// to their backends.
package toolsets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/veigap/austral-genai-rag/internal/mcp"
)

// Servers lists the tool sets that can be served, in display order.
var Servers = []string{"math", "weather", "elasticsearch", "chroma"}

// Checker reports the health of a set's backend for GET /health.
type Checker interface {
	Name() string
	Check(ctx context.Context) (map[string]any, error)
}

// Set is everything one MCP server needs: identity, tools and an optional
// backend probe.
type Set struct {
	Name         string
	Version      string
	Instructions string
	Tools        []mcp.Tool
	Checker      Checker
}

// Info is the identity advertised from initialize.
func (s *Set) Info() mcp.Implementation {
	return mcp.Implementation{Name: s.Name + "-mcp-server", Version: s.Version}
}

// Registry builds the immutable tool registry for the set.
func (s *Set) Registry() (*mcp.Registry, error) {
	reg, err := mcp.NewRegistry(s.Tools...)
	if err != nil {
		return nil, fmt.Errorf("%s tools: %w", s.Name, err)
	}
	return reg, nil
}

// Dispatcher builds a dispatcher for the set.
func (s *Set) Dispatcher(opts ...mcp.Option) (*mcp.Dispatcher, error) {
	reg, err := s.Registry()
	if err != nil {
		return nil, err
	}
	opts = append([]mcp.Option{mcp.WithInstructions(s.Instructions)}, opts...)
	return mcp.NewDispatcher(s.Info(), reg, opts...), nil
}

const version = "1.0.0"

func toJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
