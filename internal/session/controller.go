// Package session implements the conversation session controller: it owns
// the authoritative message list for one open conversation and drives the
// send/reply cycle across the anonymous and persisted modes.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lydia-app/chat-engine/internal/llm"
	"github.com/lydia-app/chat-engine/internal/model"
	"github.com/lydia-app/chat-engine/internal/notify"
	"github.com/lydia-app/chat-engine/internal/scenario"
	"github.com/lydia-app/chat-engine/internal/store"
	"github.com/lydia-app/chat-engine/internal/store/local"
	"github.com/lydia-app/chat-engine/internal/timing"
	"github.com/lydia-app/chat-engine/pkg/logger"
	"github.com/lydia-app/chat-engine/pkg/metrics"
)

// FallbackReply is the fixed character message substituted when the AI
// collaborator fails, whatever the failure. The user retries implicitly by
// sending another message.
const FallbackReply = "sorry, my phone is being weird and I couldn't read that properly 😳 can you send it again in a bit?"

// DefaultDemoQuota is the soft paywall on the anonymous demo conversation.
const DefaultDemoQuota = 10

// defaultOpeningLine is the scripted first message for conversations without
// a scenario, such as ones created through the "new" sentinel.
const defaultOpeningLine = "hey 😊 so you actually texted first... I like that. tell me something about you?"

var (
	// ErrMessageQuota signals the demo paywall: a recognized state, not a
	// failure. Further sends are disabled until the user signs up.
	ErrMessageQuota = errors.New("demo message quota reached")

	// ErrIdentityRequired is returned when a persisted conversation is
	// opened without an authenticated identity.
	ErrIdentityRequired = errors.New("authenticated identity required")

	// ErrClosed is returned by operations on a torn-down session.
	ErrClosed = errors.New("session closed")
)

// Identity is the session context resolved by the auth layer and passed by
// reference into the controller at construction. DeviceID is the
// client-supplied device identifier that scopes anonymous sessions and
// drafts; visitors that send none share the single unscoped session.
type Identity struct {
	UserID   string
	DeviceID string
}

// Authenticated reports whether a signed-in user backs the session.
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

// Deps bundles the controller's collaborators.
type Deps struct {
	Store     store.ConversationStore
	Drafts    *local.Store
	AI        llm.Client
	Timing    *timing.Engine
	Notifier  notify.Notifier
	Logger    *logger.Logger
	DemoQuota int
}

func (d Deps) quota() int {
	if d.DemoQuota > 0 {
		return d.DemoQuota
	}
	return DefaultDemoQuota
}

// Controller owns one open conversation. All exported methods are safe for
// concurrent use; timer callbacks from a torn-down controller run to
// completion and their state updates are discarded.
type Controller struct {
	deps     Deps
	identity Identity
	mode     model.SessionMode
	scen     scenario.Scenario
	hasScen  bool

	mu       sync.Mutex
	id       string
	draftKey string
	prefs    model.Preferences
	messages []model.Message
	seen     map[string]struct{}
	userSent int
	replies  int
	typing   bool
	muted    bool
	closed   bool
	sub      store.Subscription
}

// Open resolves the session mode for conversationID and loads or lazily
// creates its backing state. In Persisted Mode a sentinel id
// ("new"/"demo-*") creates the conversation record and enqueues the
// scenario's opening line best-effort; in Anonymous Mode prior messages come
// from the draft store, seeded with the opening line when empty.
func Open(ctx context.Context, deps Deps, identity Identity, conversationID string, prefs *model.Preferences) (*Controller, error) {
	scen, hasScen := scenario.ForConversationID(conversationID)

	c := &Controller{
		deps:     deps,
		identity: identity,
		mode:     model.ResolveMode(identity.Authenticated(), conversationID),
		scen:     scen,
		hasScen:  hasScen,
		id:       conversationID,
		seen:     make(map[string]struct{}),
	}

	switch {
	case prefs != nil:
		c.prefs = prefs.Normalized()
	case hasScen:
		c.prefs = scen.Defaults.Normalized()
	default:
		c.prefs = model.DefaultPreferences()
	}

	if c.mode == model.ModeAnonymous {
		c.openAnonymous(conversationID)
		return c, nil
	}
	if err := c.openPersisted(ctx, conversationID); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Controller) openAnonymous(conversationID string) {
	c.draftKey = conversationID
	if c.identity.DeviceID != "" {
		c.draftKey = c.identity.DeviceID + "." + conversationID
	}

	msgs, err := c.deps.Drafts.LoadDraft(c.draftKey)
	if err != nil {
		c.deps.Logger.Warn("failed to load draft, starting empty",
			zap.String("conversation_id", conversationID), zap.Error(err))
	}
	for _, m := range msgs {
		c.upsertLocked(m)
		if m.Sender == model.SenderUser {
			c.userSent++
		}
	}

	if len(c.messages) == 0 {
		opening := model.Message{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Sender:    model.SenderCharacter,
			Content:   c.openingLine(),
			CreatedAt: time.Now(),
		}
		c.upsertLocked(opening)
		c.saveDraft(c.messages)
	}
}

func (c *Controller) openPersisted(ctx context.Context, conversationID string) error {
	if !c.identity.Authenticated() {
		return ErrIdentityRequired
	}

	if model.IsSentinelID(conversationID) {
		conv := &model.Conversation{
			CharacterName:   c.characterName(),
			CharacterAvatar: c.scen.CharacterAvatar,
			ScenarioID:      c.scen.ID,
			Preferences:     c.prefs,
		}
		created, err := c.deps.Store.CreateConversation(ctx, c.identity.UserID, conv)
		if err != nil {
			return err
		}
		c.id = created.ID
		c.enqueueOpeningLine(ctx)
	} else {
		conv, err := c.deps.Store.GetConversation(ctx, c.identity.UserID, conversationID)
		if err != nil {
			return err
		}
		c.prefs = conv.Preferences.Normalized()
		c.muted = conv.IsMuted
		if scen, ok := scenario.ByID(conv.ScenarioID); ok {
			c.scen, c.hasScen = scen, true
		}
	}

	msgs, err := c.deps.Store.ListMessages(ctx, c.identity.UserID, c.id)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		c.upsertLocked(m)
		if m.Sender == model.SenderUser {
			c.userSent++
		}
	}

	sub, err := c.deps.Store.SubscribeMessages(ctx, c.identity.UserID, c.id, c.OnRemoteMessage)
	if err != nil {
		return err
	}
	c.sub = sub
	return nil
}

// enqueueOpeningLine inserts the scripted first message of a freshly created
// conversation. Best-effort: failure is logged, never surfaced.
func (c *Controller) enqueueOpeningLine(ctx context.Context) {
	msg, err := c.deps.Store.InsertMessage(ctx, c.identity.UserID, c.id, model.SenderCharacter, c.openingLine())
	if err != nil {
		c.deps.Logger.Warn("failed to enqueue opening line",
			zap.String("conversation_id", c.id), zap.Error(err))
		return
	}
	c.mu.Lock()
	c.upsertLocked(*msg)
	c.mu.Unlock()
	c.updateLastMessage(ctx, msg.Content, msg.CreatedAt, 0)
}

// Send appends a user message and schedules the simulated reply. Empty or
// whitespace-only text is a silent no-op. On the anonymous demo conversation
// the configured quota of user messages returns ErrMessageQuota instead of
// sending.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.quotaExceededLocked() {
		c.mu.Unlock()
		metrics.QuotaRejectionsTotal.Inc()
		return ErrMessageQuota
	}
	replyIndex := c.replies
	c.replies++
	c.mu.Unlock()

	var msg model.Message
	if c.mode == model.ModePersisted {
		inserted, err := c.deps.Store.InsertMessage(ctx, c.identity.UserID, c.id, model.SenderUser, text)
		if err != nil {
			c.mu.Lock()
			c.replies--
			c.mu.Unlock()
			return err
		}
		msg = *inserted
	} else {
		msg = model.Message{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Sender:    model.SenderUser,
			Content:   text,
			CreatedAt: time.Now(),
		}
	}

	c.mu.Lock()
	c.upsertLocked(msg)
	c.userSent++
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if c.mode == model.ModePersisted {
		// Not atomic with the insert; a stale LastMessage self-heals on the
		// next successful send.
		c.updateLastMessage(ctx, msg.Content, msg.CreatedAt, 0)
	} else {
		c.saveDraft(snapshot)
	}
	metrics.MessagesTotal.WithLabelValues(c.mode.String(), string(model.SenderUser)).Inc()

	c.scheduleReply(replyIndex, msg.ID)
	return nil
}

// scheduleReply arms the three deferred events for one reply cycle: the
// read receipt, the typing indicator (same instant), and the reply itself.
// Timers are never cancelled; a closed controller discards their effects.
func (c *Controller) scheduleReply(replyIndex int, userMessageID string) {
	delay := c.deps.Timing.ReplyDelay(c.hasScen && c.scen.Demo, replyIndex)
	metrics.ReplyDelaySeconds.Observe(delay.Seconds())

	c.deps.Timing.Schedule(timing.ReadReceiptDelay(delay), func() {
		c.markReadAndTyping(userMessageID)
	})
	c.deps.Timing.Schedule(delay, func() {
		c.deliverReply(context.Background())
	})
}

func (c *Controller) markReadAndTyping(userMessageID string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	for i := range c.messages {
		if c.messages[i].ID == userMessageID {
			c.messages[i].Read = true
			break
		}
	}
	c.typing = true
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if c.mode == model.ModeAnonymous {
		c.saveDraft(snapshot)
	}
}

// deliverReply runs when the reply timer fires: it calls the AI collaborator
// with the conversation history and persona preferences, substituting the
// fixed fallback on any failure, then appends the character message through
// the normal persistence and notification path.
func (c *Controller) deliverReply(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	history := make([]llm.ChatMessage, len(c.messages))
	for i, m := range c.messages {
		role := "user"
		if m.Sender == model.SenderCharacter {
			role = "assistant"
		}
		history[i] = llm.ChatMessage{Role: role, Content: m.Content}
	}
	prefs := c.prefs
	c.mu.Unlock()

	content := FallbackReply
	resp, err := c.deps.AI.Complete(ctx, &llm.CompletionRequest{
		Messages:    history,
		Preferences: prefs,
	})
	if err != nil {
		class := llm.Classify(err)
		metrics.LLMFailuresTotal.WithLabelValues(c.deps.AI.Name(), string(class)).Inc()
		c.deps.Logger.Warn("AI completion failed, using fallback reply",
			zap.String("conversation_id", c.id),
			zap.String("failure_class", string(class)),
			zap.Error(err))
	} else {
		content = resp.Content
	}

	var msg model.Message
	if c.mode == model.ModePersisted {
		inserted, ierr := c.deps.Store.InsertMessage(ctx, c.identity.UserID, c.id, model.SenderCharacter, content)
		if ierr != nil {
			c.deps.Logger.Error("failed to persist character reply",
				zap.String("conversation_id", c.id), zap.Error(ierr))
			inserted = &model.Message{
				ID:             uuid.Must(uuid.NewV7()).String(),
				ConversationID: c.id,
				Sender:         model.SenderCharacter,
				Content:        content,
				CreatedAt:      time.Now(),
			}
		}
		msg = *inserted
	} else {
		msg = model.Message{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Sender:    model.SenderCharacter,
			Content:   content,
			CreatedAt: time.Now(),
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.upsertLocked(msg)
	c.typing = false
	muted := c.muted
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if c.mode == model.ModePersisted {
		// Unread increments on every character reply whether or not the
		// conversation is visible; ResetUnread corrects it on reopen.
		c.updateLastMessage(ctx, msg.Content, msg.CreatedAt, 1)
	} else {
		c.saveDraft(snapshot)
	}

	if !muted {
		c.deps.Notifier.Notify(ctx, c.identity.UserID, notify.Notification{
			ConversationID:  c.id,
			CharacterName:   c.characterName(),
			CharacterAvatar: c.scen.CharacterAvatar,
			Excerpt:         notify.Excerpt(msg.Content),
			SentAt:          msg.CreatedAt,
		})
		metrics.NotificationsTotal.Inc()
	}
	metrics.MessagesTotal.WithLabelValues(c.mode.String(), string(model.SenderCharacter)).Inc()
}

// OnRemoteMessage merges a change-feed message into the session. Duplicate
// deliveries (overlapping subscribe and refetch paths) are dropped by id.
func (c *Controller) OnRemoteMessage(msg model.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.upsertLocked(msg)
}

// ResetUnread zeroes the conversation's unread counter when it becomes the
// visible one. Best-effort: failures are logged only.
func (c *Controller) ResetUnread(ctx context.Context) {
	if c.mode != model.ModePersisted || model.IsSentinelID(c.id) {
		return
	}
	zero := 0
	err := c.deps.Store.UpdateConversation(ctx, c.identity.UserID, c.id, store.ConversationUpdate{
		UnreadCount: &zero,
	})
	if err != nil {
		c.deps.Logger.Warn("failed to reset unread count",
			zap.String("conversation_id", c.id), zap.Error(err))
	}
}

// UpdatePreferences replaces the persona configuration for subsequent AI
// calls and persists it in Persisted Mode.
func (c *Controller) UpdatePreferences(ctx context.Context, prefs model.Preferences) error {
	normalized := prefs.Normalized()
	c.mu.Lock()
	c.prefs = normalized
	c.mu.Unlock()

	if c.mode != model.ModePersisted {
		return nil
	}
	return c.deps.Store.UpdateConversation(ctx, c.identity.UserID, c.id, store.ConversationUpdate{
		Preferences: &normalized,
	})
}

// Close tears the session down: the message subscription is released and
// in-flight timers become no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// ID returns the conversation id, which in Persisted Mode is the real record
// id replacing the sentinel the session was opened with.
func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Mode returns the resolved session mode.
func (c *Controller) Mode() model.SessionMode {
	return c.mode
}

// Typing reports whether the typing indicator is currently visible.
func (c *Controller) Typing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}

// Messages returns a snapshot of the session's message list.
func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// QuotaExceeded reports whether the demo paywall disables further sends.
func (c *Controller) QuotaExceeded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quotaExceededLocked()
}

func (c *Controller) quotaExceededLocked() bool {
	return c.mode == model.ModeAnonymous &&
		c.hasScen && c.scen.Demo &&
		model.IsDemoID(c.id) &&
		c.userSent >= c.deps.quota()
}

func (c *Controller) upsertLocked(msg model.Message) {
	if _, ok := c.seen[msg.ID]; ok {
		return
	}
	c.seen[msg.ID] = struct{}{}
	c.messages = append(c.messages, msg)
}

func (c *Controller) snapshotLocked() []model.Message {
	return append([]model.Message(nil), c.messages...)
}

// openingLine returns the scripted first character message: the scenario's
// when one backs the conversation, the catalogue default otherwise.
func (c *Controller) openingLine() string {
	if c.hasScen && c.scen.OpeningLine != "" {
		return c.scen.OpeningLine
	}
	return defaultOpeningLine
}

func (c *Controller) characterName() string {
	if c.prefs.CharacterName != "" {
		return c.prefs.CharacterName
	}
	if c.hasScen {
		return c.scen.CharacterName
	}
	return "Lydia"
}

func (c *Controller) updateLastMessage(ctx context.Context, content string, at time.Time, unreadDelta int) {
	update := store.ConversationUpdate{
		LastMessage:     &content,
		LastMessageTime: &at,
	}
	if unreadDelta != 0 {
		conv, err := c.deps.Store.GetConversation(ctx, c.identity.UserID, c.id)
		if err != nil {
			c.deps.Logger.Warn("failed to read conversation for unread bump",
				zap.String("conversation_id", c.id), zap.Error(err))
		} else {
			n := conv.UnreadCount + unreadDelta
			update.UnreadCount = &n
		}
	}
	if err := c.deps.Store.UpdateConversation(ctx, c.identity.UserID, c.id, update); err != nil {
		c.deps.Logger.Warn("failed to update conversation summary",
			zap.String("conversation_id", c.id), zap.Error(err))
	}
}

func (c *Controller) saveDraft(msgs []model.Message) {
	if err := c.deps.Drafts.SaveDraft(c.draftKey, msgs); err != nil {
		c.deps.Logger.Warn("failed to save draft",
			zap.String("draft_key", c.draftKey), zap.Error(err))
	}
}
