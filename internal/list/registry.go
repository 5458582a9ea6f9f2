package list

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/lydia-app/chat-engine/internal/session"
	"github.com/lydia-app/chat-engine/internal/store"
	"github.com/lydia-app/chat-engine/internal/store/local"
	"github.com/lydia-app/chat-engine/pkg/logger"
)

// Registry caches one live Manager per user so the conversation change feed
// stays subscribed across requests instead of refetching on every call.
type Registry struct {
	store  store.ConversationStore
	drafts *local.Store
	logger *logger.Logger

	mu       sync.Mutex
	managers map[string]*Manager
}

// NewRegistry creates an empty manager registry.
func NewRegistry(st store.ConversationStore, drafts *local.Store, log *logger.Logger) *Registry {
	return &Registry{
		store:    st,
		drafts:   drafts,
		logger:   log,
		managers: make(map[string]*Manager),
	}
}

// Get returns the live manager for an identity, creating it on first use
// with an initial fetch and a change-feed subscription. The feed keeps the
// cached list current from then on; a failed subscription degrades to the
// fetched snapshot and is logged.
func (r *Registry) Get(ctx context.Context, identity session.Identity) (*Manager, error) {
	key := identity.UserID

	r.mu.Lock()
	if mgr, ok := r.managers[key]; ok {
		r.mu.Unlock()
		return mgr, nil
	}
	r.mu.Unlock()

	mgr := NewManager(r.store, r.drafts, identity, r.logger)
	if err := mgr.Refresh(ctx); err != nil {
		return nil, err
	}
	if err := mgr.Watch(ctx); err != nil {
		r.logger.Warn("conversation change feed unavailable",
			zap.String("user_id", identity.UserID), zap.Error(err))
	}

	r.mu.Lock()
	if existing, ok := r.managers[key]; ok {
		r.mu.Unlock()
		mgr.Close()
		return existing, nil
	}
	r.managers[key] = mgr
	r.mu.Unlock()
	return mgr, nil
}

// Close releases every cached manager's subscription.
func (r *Registry) Close() {
	r.mu.Lock()
	managers := r.managers
	r.managers = make(map[string]*Manager)
	r.mu.Unlock()

	for _, mgr := range managers {
		mgr.Close()
	}
}
