package session

import (
	"context"
	"sync"

	"github.com/lydia-app/chat-engine/internal/model"
	"github.com/lydia-app/chat-engine/pkg/metrics"
)

// Registry tracks the open session controllers, one per (identity,
// conversation) pair. Opening a sentinel always creates a fresh session.
type Registry struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Controller
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:     deps,
		sessions: make(map[string]*Controller),
	}
}

// Open returns the already-open session for conversationID or opens a new
// one. The returned controller's ID may differ from conversationID when a
// sentinel was resolved into a fresh persisted record.
func (r *Registry) Open(ctx context.Context, identity Identity, conversationID string, prefs *model.Preferences) (*Controller, error) {
	if ctrl, ok := r.Get(identity, conversationID); ok {
		return ctrl, nil
	}

	ctrl, err := Open(ctx, r.deps, identity, conversationID, prefs)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	key := sessionKey(identity, ctrl.ID())
	if existing, ok := r.sessions[key]; ok {
		// Lost the race to another open of the same conversation.
		r.mu.Unlock()
		ctrl.Close()
		return existing, nil
	}
	r.sessions[key] = ctrl
	r.mu.Unlock()

	metrics.OpenSessions.Inc()
	return ctrl, nil
}

// Get returns the open session for conversationID, if any.
func (r *Registry) Get(identity Identity, conversationID string) (*Controller, bool) {
	// "new" is never registered; every open of it creates a fresh record.
	if conversationID == model.SentinelNew {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ctrl, ok := r.sessions[sessionKey(identity, conversationID)]
	return ctrl, ok
}

// Close tears down the session for conversationID, if open.
func (r *Registry) Close(identity Identity, conversationID string) {
	r.mu.Lock()
	key := sessionKey(identity, conversationID)
	ctrl, ok := r.sessions[key]
	if ok {
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	if ok {
		ctrl.Close()
		metrics.OpenSessions.Dec()
	}
}

// CloseAll tears down every open session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Controller)
	r.mu.Unlock()

	for range sessions {
		metrics.OpenSessions.Dec()
	}
	for _, ctrl := range sessions {
		ctrl.Close()
	}
}

// sessionKey scopes sessions per user, and for anonymous visitors per
// device, so one device's demo history never leaks into another's.
func sessionKey(identity Identity, conversationID string) string {
	user := identity.UserID
	if user == "" {
		user = "anon:" + identity.DeviceID
	}
	return user + "|" + conversationID
}
