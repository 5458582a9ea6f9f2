package handler

import (
	"encoding/json"
	"net/http"

	"github.com/lydia-app/chat-engine/internal/middleware"
	"github.com/lydia-app/chat-engine/internal/session"
)

// requestIdentity resolves the caller's identity from the request context.
func requestIdentity(r *http.Request) session.Identity {
	ctx := r.Context()
	return session.Identity{
		UserID:   middleware.GetUserID(ctx),
		DeviceID: middleware.GetDeviceID(ctx),
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
