package handler

import (
	"net/http"

	"github.com/lydia-app/chat-engine/internal/store/remote"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	client *remote.Client
}

// NewHealthHandler creates a new health handler. client may be nil when the
// engine runs against the in-memory store.
func NewHealthHandler(client *remote.Client) *HealthHandler {
	return &HealthHandler{
		client: client,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.client != nil && !h.client.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
