package api

import (
	"context"
	"maps"
	"net/http"
	"time"
)

// Checker reports the health of the backend behind a tool set.
type Checker interface {
	Name() string
	Check(ctx context.Context) (map[string]any, error)
}

const healthTimeout = 5 * time.Second

type HealthHandler struct {
	server  string
	checker Checker
}

func NewHealthHandler(server string, checker Checker) *HealthHandler {
	return &HealthHandler{server: server, checker: checker}
}

// Health always answers 200: the process is alive even when its backend is
// not, and the body says which.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":     "ok",
		"mcp_server": h.server,
	}

	if h.checker != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		check := map[string]any{}
		details, err := h.checker.Check(ctx)
		if err != nil {
			check["status"] = "error"
			check["message"] = err.Error()
			resp["status"] = "degraded"
		} else {
			maps.Copy(check, details)
			check["status"] = "ok"
		}
		resp[h.checker.Name()] = check
	}

	writeJSON(w, http.StatusOK, resp)
}
