package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lydia-app/chat-engine/internal/model"
)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if len(content) > 100000 { // ~100KB limit
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation id: either a persisted
// record id or one of the sentinels ("new", "demo-<slug>").
func ValidateConversationID(id string) error {
	if model.IsSentinelID(id) {
		return nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}
