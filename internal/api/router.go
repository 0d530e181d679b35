package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/veigap/austral-genai-rag/internal/mcp"
)

// NewRouter creates the Chi router for one MCP server. checker may be nil
// for servers without a backend.
func NewRouter(d *mcp.Dispatcher, checker Checker, apiKey string, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on ALL routes including /health)
	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	healthH := NewHealthHandler(d.Info().Name, checker)
	mcpH := NewMCPHandler(d, logger)

	r.Get("/health", healthH.Health)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(apiKey))
		r.Post("/mcp", mcpH.Handle)
	})

	return r
}
