package list_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lydia-app/chat-engine/internal/list"
	"github.com/lydia-app/chat-engine/internal/model"
	"github.com/lydia-app/chat-engine/internal/session"
	"github.com/lydia-app/chat-engine/internal/store/local"
	"github.com/lydia-app/chat-engine/internal/store/memory"
	"github.com/lydia-app/chat-engine/pkg/logger"
)

const testUser = "user-1"

func newManager(t *testing.T) (*list.Manager, *memory.Store, *local.Store) {
	t.Helper()

	drafts, err := local.New(t.TempDir())
	require.NoError(t, err)

	st := memory.New()
	m := list.NewManager(st, drafts, session.Identity{UserID: testUser}, logger.NewNop())
	return m, st, drafts
}

func seed(t *testing.T, st *memory.Store, conv model.Conversation) model.Conversation {
	t.Helper()
	created, err := st.CreateConversation(context.Background(), testUser, &conv)
	require.NoError(t, err)
	return *created
}

func at(hoursAgo int) time.Time {
	return time.Now().Add(-time.Duration(hoursAgo) * time.Hour)
}

func ids(convs []model.Conversation) []string {
	out := make([]string, len(convs))
	for i, c := range convs {
		out[i] = c.ID
	}
	return out
}

func TestVisibleOrdersPinnedFirstThenByActivity(t *testing.T) {
	m, st, _ := newManager(t)

	seed(t, st, model.Conversation{ID: "recent", LastMessageTime: at(1)})
	seed(t, st, model.Conversation{ID: "pinned-old", IsPinned: true, LastMessageTime: at(48)})
	seed(t, st, model.Conversation{ID: "stale", LastMessageTime: at(24)})
	seed(t, st, model.Conversation{ID: "never-messaged"})
	seed(t, st, model.Conversation{ID: "hidden", IsArchived: true, LastMessageTime: at(2)})

	require.NoError(t, m.Refresh(context.Background()))

	got := ids(m.Visible(list.FilterAll))
	assert.Equal(t, []string{"pinned-old", "recent", "stale", "never-messaged"}, got)
}

func TestVisibleUnreadFilter(t *testing.T) {
	m, st, _ := newManager(t)

	seed(t, st, model.Conversation{ID: "unread", UnreadCount: 2, LastMessageTime: at(1)})
	seed(t, st, model.Conversation{ID: "read", LastMessageTime: at(2)})
	seed(t, st, model.Conversation{ID: "archived-unread", UnreadCount: 5, IsArchived: true})

	require.NoError(t, m.Refresh(context.Background()))

	assert.Equal(t, []string{"unread"}, ids(m.Visible(list.FilterUnread)))
	assert.Equal(t, []string{"archived-unread"}, ids(m.Visible(list.FilterArchived)))
}

func TestArchiveAndUnarchiveMoveBetweenViews(t *testing.T) {
	m, st, _ := newManager(t)

	conv := seed(t, st, model.Conversation{LastMessageTime: at(1)})
	require.NoError(t, m.Refresh(context.Background()))

	require.NoError(t, m.Archive(context.Background(), conv.ID))
	assert.Empty(t, m.Visible(list.FilterAll))
	assert.Equal(t, []string{conv.ID}, ids(m.Visible(list.FilterArchived)))

	require.NoError(t, m.Unarchive(context.Background(), conv.ID))
	assert.Equal(t, []string{conv.ID}, ids(m.Visible(list.FilterAll)))
	assert.Empty(t, m.Visible(list.FilterArchived))
}

func TestPinReordersList(t *testing.T) {
	m, st, _ := newManager(t)

	seed(t, st, model.Conversation{ID: "a", LastMessageTime: at(1)})
	seed(t, st, model.Conversation{ID: "b", LastMessageTime: at(5)})
	require.NoError(t, m.Refresh(context.Background()))
	require.Equal(t, []string{"a", "b"}, ids(m.Visible(list.FilterAll)))

	require.NoError(t, m.Pin(context.Background(), "b"))
	assert.Equal(t, []string{"b", "a"}, ids(m.Visible(list.FilterAll)))

	require.NoError(t, m.Unpin(context.Background(), "b"))
	assert.Equal(t, []string{"a", "b"}, ids(m.Visible(list.FilterAll)))
}

func TestTotalUnreadExcludesArchived(t *testing.T) {
	m, st, drafts := newManager(t)

	seed(t, st, model.Conversation{ID: "a", UnreadCount: 2})
	seed(t, st, model.Conversation{ID: "b", UnreadCount: 3})
	seed(t, st, model.Conversation{ID: "c", UnreadCount: 7, IsArchived: true})

	require.NoError(t, m.Refresh(context.Background()))
	assert.Equal(t, 5, m.TotalUnread())

	// Refresh writes through to the badge cache read at next startup.
	cached, err := drafts.LoadBadge()
	require.NoError(t, err)
	assert.Equal(t, 5, cached)
	assert.Equal(t, 5, m.CachedUnread())
}

func TestDeleteRemovesConversation(t *testing.T) {
	m, st, _ := newManager(t)

	conv := seed(t, st, model.Conversation{LastMessageTime: at(1)})
	require.NoError(t, m.Refresh(context.Background()))

	require.NoError(t, m.Delete(context.Background(), conv.ID))
	assert.Empty(t, m.Visible(list.FilterAll))

	_, err := st.GetConversation(context.Background(), testUser, conv.ID)
	assert.Error(t, err)
}

func TestDemoConversationMutationsAreNoops(t *testing.T) {
	m, st, _ := newManager(t)
	require.NoError(t, m.Refresh(context.Background()))

	// The demo conversation has no backing record, so list mutations must
	// succeed without touching the store.
	assert.NoError(t, m.Pin(context.Background(), model.DemoConversationID))
	assert.NoError(t, m.Archive(context.Background(), model.DemoConversationID))
	assert.NoError(t, m.Delete(context.Background(), model.DemoConversationID))

	convs, err := st.ListConversations(context.Background(), testUser)
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestRegistryKeepsChangeFeedLive(t *testing.T) {
	drafts, err := local.New(t.TempDir())
	require.NoError(t, err)
	st := memory.New()
	reg := list.NewRegistry(st, drafts, logger.NewNop())
	defer reg.Close()

	identity := session.Identity{UserID: testUser}
	mgr, err := reg.Get(context.Background(), identity)
	require.NoError(t, err)

	again, err := reg.Get(context.Background(), identity)
	require.NoError(t, err)
	assert.Same(t, mgr, again, "registry must reuse the live manager")

	// The subscription set up on first Get keeps the cached list current
	// with no further Refresh calls.
	seed(t, st, model.Conversation{ID: "pushed", UnreadCount: 1, LastMessageTime: at(1)})
	assert.Equal(t, []string{"pushed"}, ids(mgr.Visible(list.FilterAll)))
	assert.Equal(t, 1, mgr.TotalUnread())

	other, err := reg.Get(context.Background(), session.Identity{UserID: "someone-else"})
	require.NoError(t, err)
	assert.Empty(t, other.Visible(list.FilterAll))
}

func TestWatchAppliesRemoteChanges(t *testing.T) {
	m, st, _ := newManager(t)
	require.NoError(t, m.Refresh(context.Background()))
	require.NoError(t, m.Watch(context.Background()))
	defer m.Close()

	conv := seed(t, st, model.Conversation{ID: "live", UnreadCount: 1, LastMessageTime: at(1)})
	assert.Equal(t, []string{"live"}, ids(m.Visible(list.FilterAll)))
	assert.Equal(t, 1, m.TotalUnread())

	require.NoError(t, st.DeleteConversation(context.Background(), testUser, conv.ID))
	assert.Empty(t, m.Visible(list.FilterAll))
}
