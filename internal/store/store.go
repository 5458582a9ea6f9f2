// Package store defines the conversation persistence port shared by the
// remote (hosted) and in-memory implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/lydia-app/chat-engine/internal/model"
)

// ErrNotFound is returned when a conversation does not exist for the caller.
var ErrNotFound = errors.New("conversation not found")

// ConversationUpdate is a partial update; nil fields are left untouched.
type ConversationUpdate struct {
	LastMessage     *string
	LastMessageTime *time.Time
	IsPinned        *bool
	IsArchived      *bool
	IsMuted         *bool
	UnreadCount     *int
	Preferences     *model.Preferences
}

// Subscription is a handle on a change feed. Unsubscribe must be called when
// the owning view is torn down, or stale callbacks keep firing.
type Subscription interface {
	Unsubscribe()
}

// ConversationChange is one entry of the conversation change feed.
type ConversationChange struct {
	Conversation model.Conversation
	// Deleted marks a removal; only Conversation.ID is meaningful then.
	Deleted bool
}

// ConversationStore abstracts the hosted conversations+messages tables with
// subscribe/notify semantics. Change delivery is at-least-once and may race
// manual refetches; consumers must deduplicate by id.
type ConversationStore interface {
	// ListConversations returns the user's conversations ordered by
	// LastMessageTime descending. An empty userID yields an empty list,
	// not an error.
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)

	GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error)

	// CreateConversation persists a new record. The store assigns the id if
	// conv.ID is empty.
	CreateConversation(ctx context.Context, userID string, conv *model.Conversation) (*model.Conversation, error)

	UpdateConversation(ctx context.Context, userID, conversationID string, update ConversationUpdate) error

	DeleteConversation(ctx context.Context, userID, conversationID string) error

	// InsertMessage appends a message row and returns the created record.
	// The denormalized Conversation.LastMessage update is the caller's
	// responsibility and is not atomic with the insert.
	InsertMessage(ctx context.Context, userID, conversationID string, sender model.Sender, content string) (*model.Message, error)

	ListMessages(ctx context.Context, userID, conversationID string) ([]model.Message, error)

	SubscribeMessages(ctx context.Context, userID, conversationID string, onInsert func(model.Message)) (Subscription, error)

	SubscribeConversations(ctx context.Context, userID string, onChange func(ConversationChange)) (Subscription, error)
}
