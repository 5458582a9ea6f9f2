package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lydia-app/chat-engine/internal/handler"
	"github.com/lydia-app/chat-engine/internal/llm"
	"github.com/lydia-app/chat-engine/internal/middleware"
	"github.com/lydia-app/chat-engine/internal/model"
	"github.com/lydia-app/chat-engine/internal/notify"
	"github.com/lydia-app/chat-engine/internal/session"
	"github.com/lydia-app/chat-engine/internal/store/local"
	"github.com/lydia-app/chat-engine/internal/store/memory"
	"github.com/lydia-app/chat-engine/internal/timing"
	"github.com/lydia-app/chat-engine/pkg/logger"
)

func newTestRouter(t *testing.T) (*chi.Mux, *session.Registry) {
	t.Helper()

	drafts, err := local.New(t.TempDir())
	require.NoError(t, err)

	registry := session.NewRegistry(session.Deps{
		Store:    memory.New(),
		Drafts:   drafts,
		AI:       llm.NewMockClient(),
		Timing:   timing.NewEngine(timing.NewManualScheduler()),
		Notifier: notify.NewRecorder(),
		Logger:   logger.NewNop(),
	})
	t.Cleanup(registry.CloseAll)

	h := handler.NewMessageHandler(registry, logger.NewNop())
	r := chi.NewRouter()
	r.Use(middleware.Identity("test-secret"))
	r.Route("/api/v1/conversations/{id}", func(r chi.Router) {
		r.Post("/open", h.Open)
		r.Get("/messages", h.List)
		r.Post("/messages", h.Send)
		r.Post("/read", h.Read)
		r.Post("/close", h.CloseSession)
	})
	return r, registry
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestOpenDemoAnonymous(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/conversations/demo-tamara/open", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap model.ConversationSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, model.DemoConversationID, snap.ConversationID)
	assert.Equal(t, "anonymous", snap.Mode)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, model.SenderCharacter, snap.Messages[0].Sender)
	assert.False(t, snap.QuotaExceeded)
}

func TestOpenRejectsMalformedID(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/conversations/not-a-uuid/open", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpenPersistedWithoutIdentity(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/conversations/b7be0635-106c-4ce8-a0b2-6a1c7b2f0001/open", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSendAppendsUserMessage(t *testing.T) {
	r, _ := newTestRouter(t)

	require.Equal(t, http.StatusOK,
		doJSON(t, r, http.MethodPost, "/api/v1/conversations/demo-tamara/open", "").Code)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/conversations/demo-tamara/messages", `{"content":"hey tamara"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var snap model.ConversationSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Messages, 2)
	last := snap.Messages[len(snap.Messages)-1]
	assert.Equal(t, model.SenderUser, last.Sender)
	assert.Equal(t, "hey tamara", last.Content)
}

func TestSendQuotaReturns402(t *testing.T) {
	r, _ := newTestRouter(t)

	require.Equal(t, http.StatusOK,
		doJSON(t, r, http.MethodPost, "/api/v1/conversations/demo-tamara/open", "").Code)

	for i := 0; i < session.DefaultDemoQuota; i++ {
		rec := doJSON(t, r, http.MethodPost, "/api/v1/conversations/demo-tamara/messages",
			fmt.Sprintf(`{"content":"message %d"}`, i))
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec := doJSON(t, r, http.MethodPost, "/api/v1/conversations/demo-tamara/messages", `{"content":"one more"}`)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["upgrade"])
}

func TestAnonymousDevicesDoNotShareDemoHistory(t *testing.T) {
	r, _ := newTestRouter(t)

	open := func(device string) model.ConversationSnapshot {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/demo-tamara/open", strings.NewReader(""))
		req.Header.Set(middleware.DeviceIDHeader, device)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var snap model.ConversationSnapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		return snap
	}

	open("device-a")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/demo-tamara/messages", strings.NewReader(`{"content":"from device a"}`))
	req.Header.Set(middleware.DeviceIDHeader, "device-a")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	// Device B starts from a clean demo conversation.
	snap := open("device-b")
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, model.SenderCharacter, snap.Messages[0].Sender)
}

func TestCloseSessionTearsDown(t *testing.T) {
	r, registry := newTestRouter(t)

	require.Equal(t, http.StatusOK,
		doJSON(t, r, http.MethodPost, "/api/v1/conversations/demo-tamara/open", "").Code)
	_, ok := registry.Get(session.Identity{}, model.DemoConversationID)
	require.True(t, ok)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/conversations/demo-tamara/close", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, ok = registry.Get(session.Identity{}, model.DemoConversationID)
	assert.False(t, ok)
}
