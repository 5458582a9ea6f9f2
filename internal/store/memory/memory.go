// Package memory provides an in-memory ConversationStore for tests and
// NATS-less development runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lydia-app/chat-engine/internal/model"
	"github.com/lydia-app/chat-engine/internal/store"
)

// Store keeps conversations and messages in maps guarded by a mutex and
// delivers change notifications synchronously.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]map[string]*model.Conversation // userID -> convID
	messages      map[string][]model.Message                // convID
	msgSubs       map[string][]*subscription                // convID
	convSubs      map[string][]*subscription                // userID
	nextSub       int
}

type subscription struct {
	id       int
	onMsg    func(model.Message)
	onChange func(store.ConversationChange)
	cancel   func()
}

func (s *subscription) Unsubscribe() { s.cancel() }

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		conversations: make(map[string]map[string]*model.Conversation),
		messages:      make(map[string][]model.Message),
		msgSubs:       make(map[string][]*subscription),
		convSubs:      make(map[string][]*subscription),
	}
}

func (s *Store) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	if userID == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Conversation
	for _, conv := range s.conversations[userID] {
		out = append(out, *conv)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out, nil
}

func (s *Store) GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[userID][conversationID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *conv
	return &out, nil
}

func (s *Store) CreateConversation(ctx context.Context, userID string, conv *model.Conversation) (*model.Conversation, error) {
	s.mu.Lock()
	c := *conv
	if c.ID == "" {
		c.ID = uuid.Must(uuid.NewV7()).String()
	}
	c.UserID = userID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if s.conversations[userID] == nil {
		s.conversations[userID] = make(map[string]*model.Conversation)
	}
	s.conversations[userID][c.ID] = &c
	out := c
	s.mu.Unlock()

	s.notifyConversation(userID, store.ConversationChange{Conversation: out})
	return &out, nil
}

func (s *Store) UpdateConversation(ctx context.Context, userID, conversationID string, update store.ConversationUpdate) error {
	s.mu.Lock()
	conv, ok := s.conversations[userID][conversationID]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	applyUpdate(conv, update)
	out := *conv
	s.mu.Unlock()

	s.notifyConversation(userID, store.ConversationChange{Conversation: out})
	return nil
}

func (s *Store) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	s.mu.Lock()
	if _, ok := s.conversations[userID][conversationID]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.conversations[userID], conversationID)
	delete(s.messages, conversationID)
	s.mu.Unlock()

	s.notifyConversation(userID, store.ConversationChange{
		Conversation: model.Conversation{ID: conversationID},
		Deleted:      true,
	})
	return nil
}

func (s *Store) InsertMessage(ctx context.Context, userID, conversationID string, sender model.Sender, content string) (*model.Message, error) {
	msg := model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		CreatedAt:      time.Now(),
	}

	s.mu.Lock()
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	subs := append([]*subscription(nil), s.msgSubs[conversationID]...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.onMsg(msg)
	}
	return &msg, nil
}

func (s *Store) ListMessages(ctx context.Context, userID, conversationID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Message(nil), s.messages[conversationID]...), nil
}

func (s *Store) SubscribeMessages(ctx context.Context, userID, conversationID string, onInsert func(model.Message)) (store.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	sub := &subscription{id: s.nextSub, onMsg: onInsert}
	sub.cancel = func() { s.removeMsgSub(conversationID, sub.id) }
	s.msgSubs[conversationID] = append(s.msgSubs[conversationID], sub)
	return sub, nil
}

func (s *Store) SubscribeConversations(ctx context.Context, userID string, onChange func(store.ConversationChange)) (store.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	sub := &subscription{id: s.nextSub, onChange: onChange}
	sub.cancel = func() { s.removeConvSub(userID, sub.id) }
	s.convSubs[userID] = append(s.convSubs[userID], sub)
	return sub, nil
}

func (s *Store) notifyConversation(userID string, change store.ConversationChange) {
	s.mu.RLock()
	subs := append([]*subscription(nil), s.convSubs[userID]...)
	s.mu.RUnlock()
	for _, sub := range subs {
		sub.onChange(change)
	}
}

func (s *Store) removeMsgSub(conversationID string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.msgSubs[conversationID]
	for i, sub := range subs {
		if sub.id == id {
			s.msgSubs[conversationID] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (s *Store) removeConvSub(userID string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.convSubs[userID]
	for i, sub := range subs {
		if sub.id == id {
			s.convSubs[userID] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func applyUpdate(conv *model.Conversation, update store.ConversationUpdate) {
	if update.LastMessage != nil {
		conv.LastMessage = *update.LastMessage
	}
	if update.LastMessageTime != nil {
		conv.LastMessageTime = *update.LastMessageTime
	}
	if update.IsPinned != nil {
		conv.IsPinned = *update.IsPinned
	}
	if update.IsArchived != nil {
		conv.IsArchived = *update.IsArchived
	}
	if update.IsMuted != nil {
		conv.IsMuted = *update.IsMuted
	}
	if update.UnreadCount != nil {
		conv.UnreadCount = *update.UnreadCount
	}
	if update.Preferences != nil {
		conv.Preferences = *update.Preferences
	}
}
