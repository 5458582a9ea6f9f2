package model

import (
	"time"
)

// Sender identifies who authored a message. The remote store persists the
// wire values "user" and "ai".
type Sender string

const (
	SenderUser      Sender = "user"
	SenderCharacter Sender = "ai"
)

// Message represents one conversation message. Messages are immutable once
// created and strictly time-ordered within a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Sender         Sender    `json:"sender"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`

	// Read is meaningful only for locally-held messages; the remote store
	// tracks read state via Conversation.UnreadCount instead.
	Read bool `json:"read,omitempty"`
}

// SendMessageRequest is the request to send a new user message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// OpenConversationRequest carries the initial preferences for a session.
type OpenConversationRequest struct {
	Preferences *Preferences `json:"preferences,omitempty"`
}

// ConversationSnapshot is the response for reading an open session.
type ConversationSnapshot struct {
	ConversationID string    `json:"conversation_id"`
	Mode           string    `json:"mode"`
	Messages       []Message `json:"messages"`
	Typing         bool      `json:"typing"`
	QuotaExceeded  bool      `json:"quota_exceeded"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	TotalUnread   int            `json:"total_unread"`
}
