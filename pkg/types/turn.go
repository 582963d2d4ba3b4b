package types

import "time"

// ChatTurn is the unit of work produced by one user message: the message
// plus the ordered character responses it produced. A turn is immutable
// once delivered.
type ChatTurn struct {
	ID          string              `json:"id"`
	SessionID   string              `json:"session_id"`
	UserID      string              `json:"user_id"`
	UserMessage string              `json:"user_message"`
	Responses   []CharacterResponse `json:"responses"`
	CreatedAt   time.Time           `json:"created_at"`
}

// CharacterResponse is one character's slot in a turn. DelayMs is the
// assigned pacing value that fixes delivery order; it is independent of how
// long the underlying generation call actually took. Errored slots carry
// fallback content instead of generated text.
type CharacterResponse struct {
	CharacterID   string  `json:"character_id"`
	CharacterName string  `json:"character_name"`
	Content       string  `json:"content"`
	DelayMs       int     `json:"delay_ms"`
	Mood          string  `json:"mood"`
	MoodIntensity float64 `json:"mood_intensity"`
	Errored       bool    `json:"errored,omitempty"`
}
