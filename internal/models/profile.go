package models

// UserProfile carries the prompt-shaping preferences a user picked during
// onboarding. Each value is mapped through a fixed lookup table to a prose
// instruction fragment by the prompt builder.
type UserProfile struct {
	SpoilerTolerance string `json:"spoiler_tolerance,omitempty"` // "none", "minimal", "full"
	HintStyle        string `json:"hint_style,omitempty"`        // "nudge", "guided", "direct"
	PlayerFocus      string `json:"player_focus,omitempty"`      // "story", "completionist", "competitive", "casual"
	PreferredTone    string `json:"preferred_tone,omitempty"`    // "casual", "professional", "hype"
}

// InteractionContext frames how the current message arrived, so the prompt
// can acknowledge first messages, returning users and suggested-prompt
// clicks appropriately.
type InteractionContext struct {
	IsFirstMessage     bool `json:"is_first_message"`
	IsReturningUser    bool `json:"is_returning_user"`
	DaysSinceLastChat  int  `json:"days_since_last_chat,omitempty"`
	IsSuggestedPrompt  bool `json:"is_suggested_prompt"`
	HasScreenshot      bool `json:"has_screenshot"`
	MessageCount       int  `json:"message_count"`
}

// BehaviorContext is the slice of BehaviorData relevant to one prompt:
// previously discussed topics for the active scope plus the corrections
// that should influence the response.
type BehaviorContext struct {
	PreviousTopics    []string     `json:"previous_topics,omitempty"`
	ActiveCorrections []Correction `json:"active_corrections,omitempty"`
}
