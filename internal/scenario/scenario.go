// Package scenario holds the catalogue of scripted conversation templates.
package scenario

import (
	"strings"

	"github.com/lydia-app/chat-engine/internal/model"
)

// Scenario is a conversation template: character identity, persona defaults
// and the scripted opening line seeded as the first character message.
type Scenario struct {
	ID              string            `json:"id"`
	Slug            string            `json:"slug"`
	CharacterName   string            `json:"character_name"`
	CharacterAvatar string            `json:"character_avatar"`
	OpeningLine     string            `json:"opening_line"`
	Demo            bool              `json:"demo"`
	Defaults        model.Preferences `json:"defaults"`
}

// DemoSlug is the slug of the distinguished demo scenario.
const DemoSlug = "tamara"

var catalogue = []Scenario{
	{
		ID:              "scn-tamara",
		Slug:            "tamara",
		CharacterName:   "Tamara",
		CharacterAvatar: "/avatars/tamara.webp",
		OpeningLine:     "Hey, you found me 😏 I was starting to think you'd never text. So... what should I call you?",
		Demo:            true,
		Defaults: model.Preferences{
			CharacterName: "Tamara",
			CharacterAge:  24,
			WritingStyle:  "casual",
			WritingTone:   "playful",
			Intensity:     3,
		},
	},
	{
		ID:              "scn-lea",
		Slug:            "lea",
		CharacterName:   "Léa",
		CharacterAvatar: "/avatars/lea.webp",
		OpeningLine:     "Hi! I saw we matched... I don't usually write first but your profile made me curious 🙈",
		Defaults: model.Preferences{
			CharacterName: "Léa",
			CharacterAge:  27,
			WritingStyle:  "casual",
			WritingTone:   "warm",
			Intensity:     2,
		},
	},
	{
		ID:              "scn-maya",
		Slug:            "maya",
		CharacterName:   "Maya",
		CharacterAvatar: "/avatars/maya.webp",
		OpeningLine:     "Finally, someone interesting. I'm Maya. Fair warning: I ask a lot of questions.",
		Defaults: model.Preferences{
			CharacterName: "Maya",
			CharacterAge:  31,
			WritingStyle:  "direct",
			WritingTone:   "serious",
			Intensity:     3,
		},
	},
}

// All returns the scenario catalogue.
func All() []Scenario {
	out := make([]Scenario, len(catalogue))
	copy(out, catalogue)
	return out
}

// ByID looks up a scenario by its id.
func ByID(id string) (Scenario, bool) {
	for _, s := range catalogue {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

// BySlug looks up a scenario by slug.
func BySlug(slug string) (Scenario, bool) {
	for _, s := range catalogue {
		if s.Slug == slug {
			return s, true
		}
	}
	return Scenario{}, false
}

// ForConversationID resolves the scenario behind a demo sentinel id such as
// "demo-tamara". Non-demo ids resolve to nothing.
func ForConversationID(conversationID string) (Scenario, bool) {
	if !strings.HasPrefix(conversationID, model.DemoPrefix) {
		return Scenario{}, false
	}
	return BySlug(strings.TrimPrefix(conversationID, model.DemoPrefix))
}
