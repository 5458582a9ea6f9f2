// Package local implements the draft store for anonymous sessions: per-
// conversation JSON message buffers plus the cached unread badge, kept on
// disk so they survive restarts the way browser local storage would.
package local

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lydia-app/chat-engine/internal/model"
)

const badgeFile = "unread-badge.json"

// Store is a file-backed key/value store for anonymous drafts. Single-writer
// per conversation key; concurrent processes on the same key can clobber
// each other, which is accepted.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New creates the draft store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create draft dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// draftMessage is the on-disk message shape.
type draftMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// LoadDraft reads the message buffer for a conversation key. A missing key
// yields a nil slice, not an error.
func (s *Store) LoadDraft(key string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.draftPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read draft %q: %w", key, err)
	}

	var drafts []draftMessage
	if err := json.Unmarshal(data, &drafts); err != nil {
		return nil, fmt.Errorf("failed to decode draft %q: %w", key, err)
	}

	msgs := make([]model.Message, len(drafts))
	for i, d := range drafts {
		msgs[i] = model.Message{
			ID:        d.ID,
			Sender:    model.Sender(d.Sender),
			Content:   d.Text,
			CreatedAt: d.Timestamp,
			Read:      d.Read,
		}
	}
	return msgs, nil
}

// SaveDraft writes the message buffer for a conversation key.
func (s *Store) SaveDraft(key string, msgs []model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drafts := make([]draftMessage, len(msgs))
	for i, m := range msgs {
		drafts[i] = draftMessage{
			ID:        m.ID,
			Text:      m.Content,
			Sender:    string(m.Sender),
			Timestamp: m.CreatedAt,
			Read:      m.Read,
		}
	}

	data, err := json.Marshal(drafts)
	if err != nil {
		return fmt.Errorf("failed to encode draft %q: %w", key, err)
	}
	if err := os.WriteFile(s.draftPath(key), data, 0o644); err != nil {
		return fmt.Errorf("failed to write draft %q: %w", key, err)
	}
	return nil
}

// LoadBadge reads the cached total unread count. Missing cache yields zero.
func (s *Store) LoadBadge() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, badgeFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read unread badge: %w", err)
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return 0, fmt.Errorf("failed to decode unread badge: %w", err)
	}
	return n, nil
}

// SaveBadge caches the total unread count across sessions.
func (s *Store) SaveBadge(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, _ := json.Marshal(n)
	if err := os.WriteFile(filepath.Join(s.dir, badgeFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write unread badge: %w", err)
	}
	return nil
}

func (s *Store) draftPath(key string) string {
	return filepath.Join(s.dir, "draft-"+sanitize(key)+".json")
}

func sanitize(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
}
