// Package types defines the core data structures for the Troupe chat system:
// characters, personas, scenes, memories, relationship state, and turns.
package types

import "time"

// Behavioral config bounds and defaults for a character.
const (
	MinAge = 18

	MinPersonalityLen = 20
	MaxPersonalityLen = 1000

	MinTemperature = 0.0
	MaxTemperature = 2.0

	MinMaxTokens = 50
	MaxMaxTokens = 1000

	MinContextWindow = 1000
	MaxContextWindow = 32000

	DefaultTemperature   = 0.7
	DefaultMaxTokens     = 300
	DefaultContextWindow = 8000
	DefaultAvatar        = "✨"
	DefaultColor         = "slate"
)

// Character is a character record: either a stock catalog entry
// (IsDefault=true, no owner) or a user-owned record. A user-owned record
// created by editing a stock entry carries the stock id in OriginalID and
// shadows it in that user's visible set.
type Character struct {
	ID         string `json:"id"`
	IsDefault  bool   `json:"is_default"`
	OriginalID string `json:"original_id,omitempty"` // set only on an override of a default
	UserID     string `json:"user_id,omitempty"`     // empty for defaults

	// Profile
	Name        string `json:"name"`
	Age         int    `json:"age"`
	Sex         string `json:"sex,omitempty"`
	Personality string `json:"personality"`
	Appearance  string `json:"appearance,omitempty"`
	Background  string `json:"background,omitempty"`

	// Presentation
	Avatar string `json:"avatar,omitempty"` // emoji or image reference
	Color  string `json:"color,omitempty"`

	// Behavioral config for the generation collaborator
	Temperature   float64 `json:"temperature"`
	MaxTokens     int     `json:"max_tokens"`
	ContextWindow int     `json:"context_window"`
	MemoryEnabled bool    `json:"memory_enabled"`

	ChatExamples  []ChatExample           `json:"chat_examples,omitempty"`
	Relationships []CharacterRelationship `json:"relationships,omitempty"`
	Tags          []string                `json:"tags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatExample is one user/character exchange used for style priming.
type ChatExample struct {
	User      string `json:"user"`
	Character string `json:"character"`
}

// CharacterRelationship is a declared relationship to another character.
type CharacterRelationship struct {
	TargetCharacterID string `json:"target_character_id"`
	TargetName        string `json:"target_name"`
	Description       string `json:"description"`
}

// CharacterDraft carries incoming character fields for creation or editing.
// Optional numeric fields are pointers so "absent" and "zero" stay distinct;
// validation bounds apply only when the field is present.
type CharacterDraft struct {
	Name        string `json:"name"`
	Age         *int   `json:"age,omitempty"`
	Sex         string `json:"sex,omitempty"`
	Personality string `json:"personality"`
	Appearance  string `json:"appearance,omitempty"`
	Background  string `json:"background,omitempty"`

	Avatar string `json:"avatar,omitempty"`
	Color  string `json:"color,omitempty"`

	Temperature   *float64 `json:"temperature,omitempty"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`
	ContextWindow *int     `json:"context_window,omitempty"`
	MemoryEnabled *bool    `json:"memory_enabled,omitempty"`

	ChatExamples  []ChatExample           `json:"chat_examples,omitempty"`
	Relationships []CharacterRelationship `json:"relationships,omitempty"`
	Tags          []string                `json:"tags,omitempty"`
}

// Apply copies the draft onto a character record. Absent optional fields
// leave the record's current values in place.
func (d *CharacterDraft) Apply(c *Character) {
	c.Name = d.Name
	c.Personality = d.Personality
	if d.Age != nil {
		c.Age = *d.Age
	}
	if d.Sex != "" {
		c.Sex = d.Sex
	}
	if d.Appearance != "" {
		c.Appearance = d.Appearance
	}
	if d.Background != "" {
		c.Background = d.Background
	}
	if d.Avatar != "" {
		c.Avatar = d.Avatar
	}
	if d.Color != "" {
		c.Color = d.Color
	}
	if d.Temperature != nil {
		c.Temperature = *d.Temperature
	}
	if d.MaxTokens != nil {
		c.MaxTokens = *d.MaxTokens
	}
	if d.ContextWindow != nil {
		c.ContextWindow = *d.ContextWindow
	}
	if d.MemoryEnabled != nil {
		c.MemoryEnabled = *d.MemoryEnabled
	}
	if d.ChatExamples != nil {
		c.ChatExamples = d.ChatExamples
	}
	if d.Relationships != nil {
		c.Relationships = d.Relationships
	}
	if d.Tags != nil {
		c.Tags = d.Tags
	}
}
