package llm

import (
	"fmt"
	"strings"

	"github.com/lydia-app/chat-engine/internal/model"
)

const basePrompt = `You are roleplaying a person in a casual one-on-one texting conversation.
Stay fully in character at all times. Never mention being an AI, a language
model, or a simulation. Never break the fourth wall.

Texting rules:
- Write the way people actually text: short messages, lowercase is fine,
  occasional typos are fine.
- One to three short sentences per reply. Never write paragraphs.
- React to what was just said before steering the conversation.
- Ask questions back, but not in every single message.`

var intensityNotes = map[int]string{
	1: "Keep the conversation strictly friendly and reserved.",
	2: "Keep things friendly with light, occasional flirting.",
	3: "Flirt naturally when the conversation invites it.",
	4: "Be openly flirtatious and forward.",
	5: "Be very forward and uninhibited within the conversation's direction.",
}

// BuildPrompt renders the persona system prompt from the conversation
// preferences.
func BuildPrompt(prefs model.Preferences) string {
	p := prefs.Normalized()

	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nYour character:\n")

	name := p.CharacterName
	if name == "" {
		name = "Lydia"
	}
	fmt.Fprintf(&b, "- Your name is %s.\n", name)
	if p.CharacterAge > 0 {
		fmt.Fprintf(&b, "- You are %d years old.\n", p.CharacterAge)
	}
	if p.CharacterGender != "" {
		fmt.Fprintf(&b, "- You are %s.\n", p.CharacterGender)
	}
	if p.UserPreferredName != "" {
		fmt.Fprintf(&b, "- The person you are texting is called %s.\n", p.UserPreferredName)
	}

	b.WriteString("\nStyle:\n")
	fmt.Fprintf(&b, "- Writing style: %s.\n", p.WritingStyle)
	fmt.Fprintf(&b, "- Tone: %s.\n", p.WritingTone)
	if note, ok := intensityNotes[p.Intensity]; ok {
		fmt.Fprintf(&b, "- %s\n", note)
	}
	if p.EmojisEnabled() {
		b.WriteString("- Use emojis sparingly, like a real person would.\n")
	} else {
		b.WriteString("- Do not use emojis.\n")
	}

	return b.String()
}
