package toolsets

import (
	"context"
	"strconv"

	"github.com/veigap/austral-genai-rag/internal/mcp"
)

type operands struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

var operandSchema = mcp.InputSchema{
	Properties: map[string]mcp.Property{
		"a": {Type: "number", Description: "First number"},
		"b": {Type: "number", Description: "Second number"},
	},
	Required: []string{"a", "b"},
}

// Math is the arithmetic demo server.
func Math() *Set {
	return &Set{
		Name:         "math",
		Version:      version,
		Instructions: "Use add and multiply for arithmetic instead of computing results yourself.",
		Tools: []mcp.Tool{
			mcp.NewTool("add", "Add two numbers", operandSchema, func(_ context.Context, in operands) (string, error) {
				return formatNumber(in.A + in.B), nil
			}),
			mcp.NewTool("multiply", "Multiply two numbers", operandSchema, func(_ context.Context, in operands) (string, error) {
				return formatNumber(in.A * in.B), nil
			}),
		},
	}
}

// formatNumber prints integral values without a decimal point.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
