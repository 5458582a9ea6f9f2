package handler

import (
	"net/http"

	"github.com/lydia-app/chat-engine/internal/scenario"
)

// ScenarioHandler serves the scenario catalogue.
type ScenarioHandler struct{}

// NewScenarioHandler creates a new scenario handler.
func NewScenarioHandler() *ScenarioHandler {
	return &ScenarioHandler{}
}

// List handles GET /api/v1/scenarios
func (h *ScenarioHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"scenarios": scenario.All(),
	})
}
