package types

import "time"

// Persona is the user's self-description shown to characters during a
// conversation. Exactly one persona per user is active at a time; creating
// a new one deactivates the previous record (soft history, never deleted).
type Persona struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Personality string    `json:"personality,omitempty"`
	Interests   []string  `json:"interests,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}
