package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lydia-app/chat-engine/internal/middleware"
	"github.com/lydia-app/chat-engine/internal/model"
	"github.com/lydia-app/chat-engine/internal/session"
	"github.com/lydia-app/chat-engine/internal/store"
	"github.com/lydia-app/chat-engine/pkg/logger"
)

// MessageHandler handles session and message endpoints.
type MessageHandler struct {
	registry *session.Registry
	logger   *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(registry *session.Registry, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		registry: registry,
		logger:   log,
	}
}

// Open handles POST /api/v1/conversations/{id}/open. Opening a sentinel id
// with an authenticated identity creates the backing record; the snapshot
// carries the real conversation id to use from then on.
func (h *MessageHandler) Open(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := requestIdentity(r)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.OpenConversationRequest
	if r.Body != nil {
		// An empty body means "no initial preferences".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	ctrl, err := h.registry.Open(ctx, identity, conversationID, req.Preferences)
	if err != nil {
		h.openError(w, conversationID, err)
		return
	}

	ctrl.ResetUnread(ctx)
	writeJSON(w, http.StatusOK, snapshot(ctrl))
}

// List handles GET /api/v1/conversations/{id}/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := requestIdentity(r)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctrl, err := h.registry.Open(ctx, identity, conversationID, nil)
	if err != nil {
		h.openError(w, conversationID, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot(ctrl))
}

// Send handles POST /api/v1/conversations/{id}/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := requestIdentity(r)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctrl, err := h.registry.Open(ctx, identity, conversationID, nil)
	if err != nil {
		h.openError(w, conversationID, err)
		return
	}

	if err := ctrl.Send(ctx, req.Content); err != nil {
		switch {
		case errors.Is(err, session.ErrMessageQuota):
			// Soft paywall, not a failure: the client disables input and
			// shows the signup call-to-action.
			writeJSON(w, http.StatusPaymentRequired, map[string]any{
				"error":   "message quota reached",
				"upgrade": true,
			})
		default:
			h.logger.Error("failed to send message",
				zap.String("conversation_id", conversationID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to send message")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, snapshot(ctrl))
}

// Read handles POST /api/v1/conversations/{id}/read
func (h *MessageHandler) Read(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := requestIdentity(r)
	conversationID := chi.URLParam(r, "id")

	ctrl, ok := h.registry.Get(identity, conversationID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not open")
		return
	}
	ctrl.ResetUnread(ctx)
	w.WriteHeader(http.StatusNoContent)
}

// UpdatePreferences handles PUT /api/v1/conversations/{id}/preferences
func (h *MessageHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := requestIdentity(r)
	conversationID := chi.URLParam(r, "id")

	var prefs model.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctrl, err := h.registry.Open(ctx, identity, conversationID, nil)
	if err != nil {
		h.openError(w, conversationID, err)
		return
	}
	if err := ctrl.UpdatePreferences(ctx, prefs); err != nil {
		h.logger.Error("failed to update preferences",
			zap.String("conversation_id", conversationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "couldn't save preferences")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloseSession handles POST /api/v1/conversations/{id}/close
func (h *MessageHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	identity := requestIdentity(r)
	h.registry.Close(identity, chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) openError(w http.ResponseWriter, conversationID string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, session.ErrIdentityRequired):
		writeError(w, http.StatusUnauthorized, "authentication required")
	default:
		h.logger.Error("failed to open conversation",
			zap.String("conversation_id", conversationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to open conversation")
	}
}

func snapshot(ctrl *session.Controller) model.ConversationSnapshot {
	msgs := ctrl.Messages()
	if msgs == nil {
		msgs = []model.Message{}
	}
	return model.ConversationSnapshot{
		ConversationID: ctrl.ID(),
		Mode:           ctrl.Mode().String(),
		Messages:       msgs,
		Typing:         ctrl.Typing(),
		QuotaExceeded:  ctrl.QuotaExceeded(),
	}
}
