// Package notify dispatches transient notifications for character replies.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lydia-app/chat-engine/internal/store/remote"
	"github.com/lydia-app/chat-engine/pkg/logger"
)

const excerptRunes = 80

// Notification is the transient payload shown as an in-app toast.
type Notification struct {
	ConversationID  string    `json:"conversation_id"`
	CharacterName   string    `json:"character_name"`
	CharacterAvatar string    `json:"character_avatar,omitempty"`
	Excerpt         string    `json:"excerpt"`
	SentAt          time.Time `json:"sent_at"`
}

// Notifier delivers notifications. Delivery is best-effort and must never
// block or fail the send path.
type Notifier interface {
	Notify(ctx context.Context, userID string, n Notification)
}

// Excerpt truncates content for display in a notification.
func Excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptRunes {
		return content
	}
	return string(runes[:excerptRunes]) + "…"
}

// NATSNotifier publishes notifications on a per-user core NATS subject that
// connected clients listen on.
type NATSNotifier struct {
	client *remote.Client
	logger *logger.Logger
}

// NewNATSNotifier creates a notifier publishing through the given client.
func NewNATSNotifier(client *remote.Client, log *logger.Logger) *NATSNotifier {
	return &NATSNotifier{client: client, logger: log}
}

func (p *NATSNotifier) Notify(ctx context.Context, userID string, n Notification) {
	if userID == "" {
		userID = "anonymous"
	}
	data, err := json.Marshal(n)
	if err != nil {
		p.logger.Warn("failed to marshal notification", zap.Error(err))
		return
	}
	if err := p.client.Conn().Publish("lydia.notify."+userID, data); err != nil {
		p.logger.Warn("failed to publish notification", zap.Error(err))
	}
}

// Recorder collects notifications in memory for tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(ctx context.Context, userID string, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// Sent returns a snapshot of recorded notifications.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}
