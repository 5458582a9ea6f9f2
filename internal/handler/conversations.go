// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lydia-app/chat-engine/internal/list"
	"github.com/lydia-app/chat-engine/internal/middleware"
	"github.com/lydia-app/chat-engine/internal/model"
	"github.com/lydia-app/chat-engine/internal/store"
	"github.com/lydia-app/chat-engine/pkg/logger"
)

// ConversationHandler handles conversation list endpoints. Managers come
// from the list registry, so each user's change feed stays live between
// requests and reads serve the cached list.
type ConversationHandler struct {
	lists  *list.Registry
	logger *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(lists *list.Registry, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		lists:  lists,
		logger: log,
	}
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := list.ParseFilter(r.URL.Query().Get("filter"))

	mgr, err := h.lists.Get(r.Context(), requestIdentity(r))
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	convs := mgr.Visible(filter)
	if convs == nil {
		convs = []model.Conversation{}
	}
	writeJSON(w, http.StatusOK, model.ListConversationsResponse{
		Conversations: convs,
		TotalUnread:   mgr.TotalUnread(),
	})
}

// UnreadBadge handles GET /api/v1/conversations/unread-badge. It serves the
// locally cached aggregate so the badge renders before any remote fetch.
func (h *ConversationHandler) UnreadBadge(w http.ResponseWriter, r *http.Request) {
	mgr, err := h.lists.Get(r.Context(), requestIdentity(r))
	if err != nil {
		h.logger.Error("failed to read unread badge", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read unread badge")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": mgr.CachedUnread()})
}

// Pin handles POST /api/v1/conversations/{id}/pin
func (h *ConversationHandler) Pin(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(mgr *list.Manager, id string) error {
		return mgr.Pin(r.Context(), id)
	}, "couldn't pin conversation")
}

// Unpin handles POST /api/v1/conversations/{id}/unpin
func (h *ConversationHandler) Unpin(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(mgr *list.Manager, id string) error {
		return mgr.Unpin(r.Context(), id)
	}, "couldn't unpin conversation")
}

// Archive handles POST /api/v1/conversations/{id}/archive
func (h *ConversationHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(mgr *list.Manager, id string) error {
		return mgr.Archive(r.Context(), id)
	}, "couldn't archive conversation")
}

// Unarchive handles POST /api/v1/conversations/{id}/unarchive
func (h *ConversationHandler) Unarchive(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(mgr *list.Manager, id string) error {
		return mgr.Unarchive(r.Context(), id)
	}, "couldn't unarchive conversation")
}

// Mute handles POST /api/v1/conversations/{id}/mute
func (h *ConversationHandler) Mute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Muted bool `json:"muted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.mutate(w, r, func(mgr *list.Manager, id string) error {
		return mgr.SetMuted(r.Context(), id, req.Muted)
	}, "couldn't update conversation")
}

// Delete handles DELETE /api/v1/conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(mgr *list.Manager, id string) error {
		return mgr.Delete(r.Context(), id)
	}, "couldn't delete conversation")
}

func (h *ConversationHandler) mutate(w http.ResponseWriter, r *http.Request, op func(*list.Manager, string) error, failMsg string) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mgr, err := h.lists.Get(r.Context(), requestIdentity(r))
	if err != nil {
		h.logger.Error("conversation mutation failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, failMsg)
		return
	}
	if err := op(mgr, conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("conversation mutation failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, failMsg)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
