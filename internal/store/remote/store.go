package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/lydia-app/chat-engine/internal/model"
	"github.com/lydia-app/chat-engine/internal/store"
	"github.com/lydia-app/chat-engine/pkg/logger"
)

const (
	// MessageStream is the JetStream stream holding all chat messages.
	MessageStream = "LYDIA_MSGS"

	// SubjectPrefix is the prefix for message subjects.
	SubjectPrefix = "lydia.msg"

	// ConversationBucket is the KV bucket holding conversation records,
	// keyed "<userID>.<conversationID>".
	ConversationBucket = "LYDIA_CONVS"

	fetchLimit = 500
)

// Store implements store.ConversationStore on JetStream.
type Store struct {
	client *Client
	kv     jetstream.KeyValue
	logger *logger.Logger
}

// New ensures the message stream and conversation bucket exist and returns
// the store.
func New(ctx context.Context, client *Client, log *logger.Logger) (*Store, error) {
	js := client.JetStream()

	if _, err := js.Stream(ctx, MessageStream); err != nil {
		_, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:        MessageStream,
			Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
			Retention:   jetstream.LimitsPolicy,
			MaxAge:      365 * 24 * time.Hour,
			Storage:     jetstream.FileStorage,
			Replicas:    1,
			Compression: jetstream.S2Compression,
			Description: "Lydia conversation messages",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create message stream: %w", err)
		}
	}

	kv, err := js.KeyValue(ctx, ConversationBucket)
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketNotFound) {
			return nil, fmt.Errorf("failed to open conversation bucket: %w", err)
		}
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      ConversationBucket,
			Description: "Lydia conversation records",
			History:     1,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create conversation bucket: %w", err)
		}
	}

	return &Store{client: client, kv: kv, logger: log}, nil
}

// MessageSubject returns the subject a message is published on.
func MessageSubject(userID, conversationID string, sender model.Sender) string {
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, userID, conversationID, sender)
}

func conversationFilter(userID, conversationID string) string {
	return fmt.Sprintf("%s.%s.%s.>", SubjectPrefix, userID, conversationID)
}

func convKey(userID, conversationID string) string {
	return userID + "." + conversationID
}

func (s *Store) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	if userID == "" {
		return nil, nil
	}

	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation keys: %w", err)
	}
	defer lister.Stop()

	prefix := userID + "."
	var out []model.Conversation
	for key := range lister.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to read conversation %q: %w", key, err)
		}
		var conv model.Conversation
		if err := json.Unmarshal(entry.Value(), &conv); err != nil {
			s.logger.Warn("skipping undecodable conversation record", zap.String("key", key), zap.Error(err))
			continue
		}
		out = append(out, conv)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out, nil
}

func (s *Store) GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	entry, err := s.kv.Get(ctx, convKey(userID, conversationID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}
	var conv model.Conversation
	if err := json.Unmarshal(entry.Value(), &conv); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return &conv, nil
}

func (s *Store) CreateConversation(ctx context.Context, userID string, conv *model.Conversation) (*model.Conversation, error) {
	c := *conv
	if c.ID == "" {
		c.ID = uuid.Must(uuid.NewV7()).String()
	}
	c.UserID = userID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	if err := s.putConversation(ctx, userID, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) UpdateConversation(ctx context.Context, userID, conversationID string, update store.ConversationUpdate) error {
	conv, err := s.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return err
	}

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

	return s.putConversation(ctx, userID, conv)
}

func (s *Store) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	if err := s.kv.Delete(ctx, convKey(userID, conversationID)); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	// Drop the message log for the conversation as well.
	stream, err := s.client.JetStream().Stream(ctx, MessageStream)
	if err != nil {
		return fmt.Errorf("failed to open message stream: %w", err)
	}
	subject := fmt.Sprintf("%s.%s.%s.>", SubjectPrefix, userID, conversationID)
	if err := stream.Purge(ctx, jetstream.WithPurgeSubject(subject)); err != nil {
		s.logger.Warn("failed to purge conversation messages", zap.String("conversation_id", conversationID), zap.Error(err))
	}
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

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	subject := MessageSubject(userID, conversationID, sender)
	if _, err := s.client.JetStream().Publish(ctx, subject, data); err != nil {
		return nil, fmt.Errorf("failed to publish message: %w", err)
	}
	return &msg, nil
}

func (s *Store) ListMessages(ctx context.Context, userID, conversationID string) ([]model.Message, error) {
	js := s.client.JetStream()

	consumer, err := js.CreateConsumer(ctx, MessageStream, jetstream.ConsumerConfig{
		FilterSubject: conversationFilter(userID, conversationID),
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(fetchLimit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	var messages []model.Message
	for msg := range batch.Messages() {
		var m model.Message
		if err := json.Unmarshal(msg.Data(), &m); err != nil {
			continue
		}
		messages = append(messages, m)
	}
	if batch.Error() != nil && !errors.Is(batch.Error(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("batch error: %w", batch.Error())
	}
	return messages, nil
}

func (s *Store) SubscribeMessages(ctx context.Context, userID, conversationID string, onInsert func(model.Message)) (store.Subscription, error) {
	js := s.client.JetStream()

	consumer, err := js.CreateConsumer(ctx, MessageStream, jetstream.ConsumerConfig{
		FilterSubject: conversationFilter(userID, conversationID),
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create push consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var m model.Message
		if err := json.Unmarshal(msg.Data(), &m); err != nil {
			s.logger.Warn("dropping undecodable message", zap.Error(err))
			return
		}
		onInsert(m)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}

	return subscriptionFunc(cc.Stop), nil
}

func (s *Store) SubscribeConversations(ctx context.Context, userID string, onChange func(store.ConversationChange)) (store.Subscription, error) {
	watcher, err := s.kv.Watch(ctx, userID+".*", jetstream.UpdatesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to watch conversations: %w", err)
	}

	go func() {
		for entry := range watcher.Updates() {
			if entry == nil {
				continue
			}
			switch entry.Operation() {
			case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
				id := strings.TrimPrefix(entry.Key(), userID+".")
				onChange(store.ConversationChange{
					Conversation: model.Conversation{ID: id},
					Deleted:      true,
				})
			default:
				var conv model.Conversation
				if err := json.Unmarshal(entry.Value(), &conv); err != nil {
					s.logger.Warn("dropping undecodable conversation change", zap.Error(err))
					continue
				}
				onChange(store.ConversationChange{Conversation: conv})
			}
		}
	}()

	return subscriptionFunc(func() { watcher.Stop() }), nil
}

func (s *Store) putConversation(ctx context.Context, userID string, conv *model.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if _, err := s.kv.Put(ctx, convKey(userID, conv.ID), data); err != nil {
		return fmt.Errorf("failed to store conversation: %w", err)
	}
	return nil
}

type subscriptionFunc func()

func (f subscriptionFunc) Unsubscribe() { f() }
