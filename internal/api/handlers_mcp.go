package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/veigap/austral-genai-rag/internal/mcp"
)

const maxBodySize = 4 << 20

// MCPHandler serves one JSON-RPC message per POST. No session state is kept
// between requests.
type MCPHandler struct {
	d      *mcp.Dispatcher
	logger *slog.Logger
}

func NewMCPHandler(d *mcp.Dispatcher, logger *slog.Logger) *MCPHandler {
	return &MCPHandler{d: d, logger: logger}
}

func (h *MCPHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		h.logger.Warn("read request body", "error", err)
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	var req mcp.Request
	if err := json.Unmarshal(body, &req); err != nil {
		// Let the dispatcher shape the error envelope.
		writeJSON(w, http.StatusInternalServerError, h.d.HandleMessage(r.Context(), body))
		return
	}

	resp := h.d.Handle(r.Context(), &req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
