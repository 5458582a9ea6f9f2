// Package model defines data structures for the Lydia chat engine.
package model

import (
	"strings"
	"time"
)

const (
	// SentinelNew is the placeholder id of a conversation that has not been
	// persisted yet. Persisted Mode replaces it with a real id on first open.
	SentinelNew = "new"

	// DemoPrefix marks scripted demo conversations ("demo-<slug>").
	DemoPrefix = "demo-"

	// DemoConversationID is the distinguished demo conversation offered to
	// unauthenticated visitors. It cannot be pinned, archived or deleted.
	DemoConversationID = "demo-tamara"
)

// IsSentinelID reports whether id is a placeholder rather than the id of a
// persisted conversation record.
func IsSentinelID(id string) bool {
	return id == SentinelNew || strings.HasPrefix(id, DemoPrefix)
}

// IsDemoID reports whether id names the distinguished demo conversation.
func IsDemoID(id string) bool {
	return id == DemoConversationID
}

// SessionMode determines which store is authoritative for a conversation.
// It is resolved once when a session opens and never changes afterwards.
type SessionMode int

const (
	// ModeAnonymous keeps messages in the local draft store only.
	ModeAnonymous SessionMode = iota
	// ModePersisted keeps messages in the remote conversation store.
	ModePersisted
)

func (m SessionMode) String() string {
	if m == ModeAnonymous {
		return "anonymous"
	}
	return "persisted"
}

// ResolveMode derives the session mode for a conversation: anonymous when no
// authenticated identity exists and the id is a sentinel, persisted otherwise.
func ResolveMode(authenticated bool, conversationID string) SessionMode {
	if !authenticated && IsSentinelID(conversationID) {
		return ModeAnonymous
	}
	return ModePersisted
}

// Conversation represents one chat thread with a simulated character.
type Conversation struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id,omitempty"`
	CharacterName   string      `json:"character_name"`
	CharacterAvatar string      `json:"character_avatar,omitempty"`
	ScenarioID      string      `json:"scenario_id,omitempty"`
	LastMessage     string      `json:"last_message,omitempty"`
	LastMessageTime time.Time   `json:"last_message_time,omitempty"`
	IsPinned        bool        `json:"is_pinned"`
	IsArchived      bool        `json:"is_archived"`
	IsMuted         bool        `json:"is_muted"`
	UnreadCount     int         `json:"unread_count"`
	Preferences     Preferences `json:"preferences"`
	CreatedAt       time.Time   `json:"created_at"`
}

// IsRead reports whether the conversation has no unread messages.
func (c *Conversation) IsRead() bool {
	return c.UnreadCount == 0
}
