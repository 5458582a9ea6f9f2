package llm

import (
	"strings"
	"testing"

	"github.com/lydia-app/chat-engine/internal/model"
)

func TestBuildPromptRendersPersona(t *testing.T) {
	emojis := false
	prompt := BuildPrompt(model.Preferences{
		CharacterName:     "Léa",
		CharacterAge:      27,
		CharacterGender:   "a woman",
		UserPreferredName: "Sam",
		WritingStyle:      "direct",
		WritingTone:       "serious",
		Intensity:         1,
		UseEmojis:         &emojis,
	})

	for _, want := range []string{
		"Your name is Léa.",
		"You are 27 years old.",
		"You are a woman.",
		"is called Sam.",
		"Writing style: direct.",
		"Tone: serious.",
		"strictly friendly and reserved",
		"Do not use emojis.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "Use emojis sparingly") {
		t.Error("emoji instruction should be suppressed when disabled")
	}
}

func TestBuildPromptDefaults(t *testing.T) {
	prompt := BuildPrompt(model.Preferences{})

	for _, want := range []string{
		"Your name is Lydia.",
		"Writing style: casual.",
		"Tone: warm.",
		"Use emojis sparingly",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "years old") {
		t.Error("unset age must not be rendered")
	}
}

func TestBuildPromptIntensityNotes(t *testing.T) {
	cases := []struct {
		intensity int
		want      string
	}{
		{1, "strictly friendly"},
		{3, "Flirt naturally"},
		{5, "very forward"},
		{0, "Flirt naturally"}, // unset falls back to the default
		{9, "very forward"},    // clamped to 5
	}
	for _, tc := range cases {
		prompt := BuildPrompt(model.Preferences{Intensity: tc.intensity})
		if !strings.Contains(prompt, tc.want) {
			t.Errorf("intensity %d: prompt missing %q", tc.intensity, tc.want)
		}
	}
}
