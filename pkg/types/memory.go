package types

import "time"

// Memory type constants. How memories are extracted is outside this core;
// these label what the extractor stored.
const (
	MemoryTypeFact       = "fact"
	MemoryTypeEvent      = "event"
	MemoryTypePreference = "preference"
	MemoryTypeEmotion    = "emotion"
)

// ValidMemoryTypes lists all recognized memory types for validation.
var ValidMemoryTypes = []string{
	MemoryTypeFact,
	MemoryTypeEvent,
	MemoryTypePreference,
	MemoryTypeEmotion,
}

// IsValidMemoryType reports whether the given type is recognized.
func IsValidMemoryType(memoryType string) bool {
	for _, t := range ValidMemoryTypes {
		if t == memoryType {
			return true
		}
	}
	return false
}

// MemoryEntry is a remembered fact about the user, owned by a
// (user, character) pair. Read-only to this core: context assembly consumes
// entries in whatever order the store returned them.
type MemoryEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CharacterID string    `json:"character_id"`
	Content     string    `json:"content"`
	Type        string    `json:"type"`
	Importance  float64   `json:"importance_score"` // [0,1]
	Embedding   []float32 `json:"-"`                // optional, semantic ordering only
	CreatedAt   time.Time `json:"created_at"`
}
