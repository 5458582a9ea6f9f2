package local_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lydia-app/chat-engine/internal/model"
	"github.com/lydia-app/chat-engine/internal/store/local"
)

func TestDraftRoundTrip(t *testing.T) {
	s, err := local.New(t.TempDir())
	require.NoError(t, err)

	sent := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	msgs := []model.Message{
		{ID: "m-1", Sender: model.SenderCharacter, Content: "hey you 😏", CreatedAt: sent, Read: true},
		{ID: "m-2", Sender: model.SenderUser, Content: "hi!", CreatedAt: sent.Add(time.Minute)},
	}
	require.NoError(t, s.SaveDraft("demo-tamara", msgs))

	got, err := s.LoadDraft("demo-tamara")
	require.NoError(t, err)
	assert.Equal(t, msgs, got)
}

func TestLoadDraftMissingKey(t *testing.T) {
	s, err := local.New(t.TempDir())
	require.NoError(t, err)

	got, err := s.LoadDraft("never-saved")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDraftKeysAreIsolated(t *testing.T) {
	s, err := local.New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.SaveDraft("a", []model.Message{{ID: "1", Content: "for a"}}))
	require.NoError(t, s.SaveDraft("b", []model.Message{{ID: "2", Content: "for b"}}))

	a, err := s.LoadDraft("a")
	require.NoError(t, err)
	require.Len(t, a, 1)
	assert.Equal(t, "for a", a[0].Content)
}

func TestDraftKeySanitized(t *testing.T) {
	s, err := local.New(t.TempDir())
	require.NoError(t, err)

	// Path separators in the key must not escape the store directory.
	key := "../../etc/passwd"
	require.NoError(t, s.SaveDraft(key, []model.Message{{ID: "1", Content: "x"}}))

	got, err := s.LoadDraft(key)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestBadgeRoundTrip(t *testing.T) {
	s, err := local.New(t.TempDir())
	require.NoError(t, err)

	n, err := s.LoadBadge()
	require.NoError(t, err)
	assert.Equal(t, 0, n, "missing cache reads as zero")

	require.NoError(t, s.SaveBadge(7))
	n, err = s.LoadBadge()
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
