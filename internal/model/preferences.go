package model

// Preferences parameterizes the character persona for a conversation. The
// settings panel mutates it, the store persists it with the conversation, and
// every AI call reads it.
type Preferences struct {
	CharacterName     string `json:"character_name,omitempty"`
	CharacterAge      int    `json:"character_age,omitempty"`
	CharacterGender   string `json:"character_gender,omitempty"`
	UserPreferredName string `json:"user_preferred_name,omitempty"`

	// WritingStyle is one of "casual", "literary", "direct". Default "casual".
	WritingStyle string `json:"writing_style,omitempty"`
	// WritingTone is one of "warm", "playful", "serious". Default "warm".
	WritingTone string `json:"writing_tone,omitempty"`
	// Intensity ranges 1 (reserved) to 5 (unfiltered). Default 3.
	Intensity int `json:"intensity,omitempty"`
	// ResponseRhythm is one of "instant", "realistic", "slow". Default
	// "realistic".
	ResponseRhythm string `json:"response_rhythm,omitempty"`
	// UseEmojis defaults to true.
	UseEmojis *bool `json:"use_emojis,omitempty"`
}

// DefaultPreferences returns the documented persona defaults.
func DefaultPreferences() Preferences {
	emojis := true
	return Preferences{
		WritingStyle:   "casual",
		WritingTone:    "warm",
		Intensity:      3,
		ResponseRhythm: "realistic",
		UseEmojis:      &emojis,
	}
}

// Normalized fills unset fields with defaults and clamps Intensity to 1..5.
func (p Preferences) Normalized() Preferences {
	def := DefaultPreferences()
	if p.WritingStyle == "" {
		p.WritingStyle = def.WritingStyle
	}
	if p.WritingTone == "" {
		p.WritingTone = def.WritingTone
	}
	if p.ResponseRhythm == "" {
		p.ResponseRhythm = def.ResponseRhythm
	}
	if p.Intensity < 1 {
		p.Intensity = def.Intensity
	}
	if p.Intensity > 5 {
		p.Intensity = 5
	}
	if p.UseEmojis == nil {
		p.UseEmojis = def.UseEmojis
	}
	return p
}

// EmojisEnabled reports the effective emoji setting.
func (p Preferences) EmojisEnabled() bool {
	return p.UseEmojis == nil || *p.UseEmojis
}
