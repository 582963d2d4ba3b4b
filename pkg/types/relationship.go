package types

import "time"

// Relationship type constants describing how a character relates to the user.
const (
	RelationshipStranger     = "stranger"
	RelationshipAcquaintance = "acquaintance"
	RelationshipFriend       = "friend"
	RelationshipCloseFriend  = "close_friend"
	RelationshipConfidant    = "confidant"
	RelationshipRomantic     = "romantic"
)

// ValidRelationshipTypes lists all recognized relationship types.
var ValidRelationshipTypes = []string{
	RelationshipStranger,
	RelationshipAcquaintance,
	RelationshipFriend,
	RelationshipCloseFriend,
	RelationshipConfidant,
	RelationshipRomantic,
}

// IsValidRelationshipType reports whether the given type is recognized.
func IsValidRelationshipType(relType string) bool {
	for _, t := range ValidRelationshipTypes {
		if t == relType {
			return true
		}
	}
	return false
}

// RelationshipState tracks how a character's relationship with the user has
// evolved. Update formulas live outside this core; context assembly only
// reads these values.
type RelationshipState struct {
	UserID           string    `json:"user_id"`
	CharacterID      string    `json:"character_id"`
	RelationshipType string    `json:"relationship_type"`
	Familiarity      float64   `json:"familiarity_level"` // [0,1]
	Trust            float64   `json:"trust_level"`       // [0,1]
	EmotionalBond    float64   `json:"emotional_bond"`    // [-1,1]
	InteractionCount int       `json:"interaction_count"`
	UpdatedAt        time.Time `json:"updated_at"`
}
