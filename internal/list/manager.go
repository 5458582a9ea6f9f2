// Package list computes the displayed, ordered conversation list and owns
// pin/archive/delete mutations and the unread badge aggregate.
package list

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/lydia-app/chat-engine/internal/model"
	"github.com/lydia-app/chat-engine/internal/session"
	"github.com/lydia-app/chat-engine/internal/store"
	"github.com/lydia-app/chat-engine/internal/store/local"
	"github.com/lydia-app/chat-engine/pkg/logger"
)

// Filter selects which conversations a view shows.
type Filter string

const (
	// FilterAll shows every non-archived conversation.
	FilterAll Filter = "all"
	// FilterUnread additionally requires an unread count above zero.
	FilterUnread Filter = "unread"
	// FilterArchived shows archived conversations only.
	FilterArchived Filter = "archived"
)

// ParseFilter maps a query value onto a Filter, defaulting to FilterAll.
func ParseFilter(s string) Filter {
	switch Filter(s) {
	case FilterUnread:
		return FilterUnread
	case FilterArchived:
		return FilterArchived
	default:
		return FilterAll
	}
}

// Manager maintains one user's conversation set. Mutations delegate to the
// store and refetch; the list reflects only confirmed state.
type Manager struct {
	store    store.ConversationStore
	drafts   *local.Store
	identity session.Identity
	logger   *logger.Logger

	mu    sync.Mutex
	convs []model.Conversation
	sub   store.Subscription
}

// NewManager creates a list manager for one identity.
func NewManager(st store.ConversationStore, drafts *local.Store, identity session.Identity, log *logger.Logger) *Manager {
	return &Manager{
		store:    st,
		drafts:   drafts,
		identity: identity,
		logger:   log,
	}
}

// Refresh refetches the conversation list and recaches the unread badge.
func (m *Manager) Refresh(ctx context.Context) error {
	convs, err := m.store.ListConversations(ctx, m.identity.UserID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.convs = convs
	m.mu.Unlock()

	m.cacheBadge()
	return nil
}

// Visible returns the conversations for a view: archived ones only under
// FilterArchived, unread ones only under FilterUnread, pinned first and then
// by last activity, conversations without a timestamp last in their group.
func (m *Manager) Visible(filter Filter) []model.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Conversation
	for _, c := range m.convs {
		switch filter {
		case FilterArchived:
			if !c.IsArchived {
				continue
			}
		case FilterUnread:
			if c.IsArchived || c.IsRead() {
				continue
			}
		default:
			if c.IsArchived {
				continue
			}
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsPinned != out[j].IsPinned {
			return out[i].IsPinned
		}
		ti, tj := out[i].LastMessageTime, out[j].LastMessageTime
		if ti.IsZero() || tj.IsZero() {
			return !ti.IsZero() && tj.IsZero()
		}
		return ti.After(tj)
	})
	return out
}

// TotalUnread sums unread counts across all non-archived conversations.
func (m *Manager) TotalUnread() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, c := range m.convs {
		if !c.IsArchived {
			total += c.UnreadCount
		}
	}
	return total
}

// CachedUnread returns the cross-session unread badge cache, so the badge
// can render before the remote fetch completes.
func (m *Manager) CachedUnread() int {
	n, err := m.drafts.LoadBadge()
	if err != nil {
		m.logger.Warn("failed to read unread badge cache", zap.Error(err))
		return 0
	}
	return n
}

// Pin marks a conversation pinned. No-op on the demo conversation.
func (m *Manager) Pin(ctx context.Context, conversationID string) error {
	return m.setFlag(ctx, conversationID, func(u *store.ConversationUpdate, v bool) { u.IsPinned = &v }, true)
}

// Unpin clears the pinned flag. No-op on the demo conversation.
func (m *Manager) Unpin(ctx context.Context, conversationID string) error {
	return m.setFlag(ctx, conversationID, func(u *store.ConversationUpdate, v bool) { u.IsPinned = &v }, false)
}

// Archive soft-deletes a conversation out of the default views. No-op on the
// demo conversation.
func (m *Manager) Archive(ctx context.Context, conversationID string) error {
	return m.setFlag(ctx, conversationID, func(u *store.ConversationUpdate, v bool) { u.IsArchived = &v }, true)
}

// Unarchive restores an archived conversation to the default views.
func (m *Manager) Unarchive(ctx context.Context, conversationID string) error {
	return m.setFlag(ctx, conversationID, func(u *store.ConversationUpdate, v bool) { u.IsArchived = &v }, false)
}

// SetMuted toggles notification dispatch for a conversation.
func (m *Manager) SetMuted(ctx context.Context, conversationID string, muted bool) error {
	return m.setFlag(ctx, conversationID, func(u *store.ConversationUpdate, v bool) { u.IsMuted = &v }, muted)
}

// Delete removes a conversation and its messages for good. No-op on the demo
// conversation.
func (m *Manager) Delete(ctx context.Context, conversationID string) error {
	if model.IsDemoID(conversationID) {
		return nil
	}
	if err := m.store.DeleteConversation(ctx, m.identity.UserID, conversationID); err != nil {
		return err
	}
	return m.Refresh(ctx)
}

// Watch subscribes to the store's conversation change feed, keeping the list
// and badge cache current. Close releases the subscription.
func (m *Manager) Watch(ctx context.Context) error {
	sub, err := m.store.SubscribeConversations(ctx, m.identity.UserID, m.applyChange)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()
	return nil
}

// Close releases the change-feed subscription.
func (m *Manager) Close() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

func (m *Manager) applyChange(change store.ConversationChange) {
	m.mu.Lock()
	if change.Deleted {
		for i, c := range m.convs {
			if c.ID == change.Conversation.ID {
				m.convs = append(m.convs[:i], m.convs[i+1:]...)
				break
			}
		}
	} else {
		found := false
		for i, c := range m.convs {
			if c.ID == change.Conversation.ID {
				m.convs[i] = change.Conversation
				found = true
				break
			}
		}
		if !found {
			m.convs = append(m.convs, change.Conversation)
		}
	}
	m.mu.Unlock()

	m.cacheBadge()
}

func (m *Manager) setFlag(ctx context.Context, conversationID string, set func(*store.ConversationUpdate, bool), value bool) error {
	if model.IsDemoID(conversationID) {
		return nil
	}
	var update store.ConversationUpdate
	set(&update, value)
	if err := m.store.UpdateConversation(ctx, m.identity.UserID, conversationID, update); err != nil {
		return err
	}
	return m.Refresh(ctx)
}

func (m *Manager) cacheBadge() {
	if err := m.drafts.SaveBadge(m.TotalUnread()); err != nil {
		m.logger.Warn("failed to cache unread badge", zap.Error(err))
	}
}
