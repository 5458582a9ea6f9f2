package model

import "testing"

func TestResolveMode(t *testing.T) {
	cases := []struct {
		name           string
		authenticated  bool
		conversationID string
		want           SessionMode
	}{
		{"anonymous new", false, SentinelNew, ModeAnonymous},
		{"anonymous demo", false, DemoConversationID, ModeAnonymous},
		{"anonymous real id", false, "b7be0635-106c-4ce8-a0b2-6a1c7b2f0001", ModePersisted},
		{"authenticated new", true, SentinelNew, ModePersisted},
		{"authenticated demo", true, DemoConversationID, ModePersisted},
		{"authenticated real id", true, "b7be0635-106c-4ce8-a0b2-6a1c7b2f0001", ModePersisted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveMode(tc.authenticated, tc.conversationID); got != tc.want {
				t.Errorf("ResolveMode(%v, %q) = %v, want %v", tc.authenticated, tc.conversationID, got, tc.want)
			}
		})
	}
}

func TestSentinelIDs(t *testing.T) {
	cases := []struct {
		id       string
		sentinel bool
		demo     bool
	}{
		{"new", true, false},
		{"demo-tamara", true, true},
		// Only the distinguished demo conversation carries the quota and
		// the list-mutation no-ops; other demo sentinels do not.
		{"demo-lea", true, false},
		{"demo-", true, false},
		{"newer", false, false},
		{"b7be0635-106c-4ce8-a0b2-6a1c7b2f0001", false, false},
	}
	for _, tc := range cases {
		if got := IsSentinelID(tc.id); got != tc.sentinel {
			t.Errorf("IsSentinelID(%q) = %v, want %v", tc.id, got, tc.sentinel)
		}
		if got := IsDemoID(tc.id); got != tc.demo {
			t.Errorf("IsDemoID(%q) = %v, want %v", tc.id, got, tc.demo)
		}
	}
}

func TestConversationIsRead(t *testing.T) {
	c := Conversation{}
	if !c.IsRead() {
		t.Error("zero unread should read as read")
	}
	c.UnreadCount = 3
	if c.IsRead() {
		t.Error("unread > 0 should read as unread")
	}
}
