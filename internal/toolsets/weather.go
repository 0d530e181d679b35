package toolsets

import (
	"context"
	"fmt"

	"github.com/veigap/austral-genai-rag/internal/mcp"
)

type weatherInput struct {
	Location string `json:"location"`
}

// Weather is the canned weather demo server. It calls no external API.
func Weather() *Set {
	return &Set{
		Name:         "weather",
		Version:      version,
		Instructions: "Use get_weather to answer questions about the weather in a place.",
		Tools: []mcp.Tool{
			mcp.NewTool("get_weather", "Get weather for location", mcp.InputSchema{
				Properties: map[string]mcp.Property{
					"location": {Type: "string", Description: "City or place name"},
				},
				Required: []string{"location"},
			}, func(_ context.Context, in weatherInput) (string, error) {
				return fmt.Sprintf("It's always sunny in %s", in.Location), nil
			}),
		},
	}
}
