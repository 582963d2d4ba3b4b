// Package prompt assembles the instruction text handed to the generation
// collaborator for one character on one turn.
//
// The context is an ordered list of independently-computable sections. Each
// section is a pure function of a narrow slice of the inputs and returns ""
// when its source data is absent, in which case it is omitted entirely —
// never emitted as an empty header. The section order below is the single
// source of truth for the context format, and BuildContext is deterministic:
// identical inputs always yield byte-identical text.
package prompt

import (
	"strings"

	"github.com/scrypster/troupe/pkg/types"
)

// PeerMessage is a response another active character produced in the same
// turn window.
type PeerMessage struct {
	CharacterName string
	Content       string
}

// Inputs carries everything a character's context is assembled from. Only
// Character is required.
type Inputs struct {
	Character    *types.Character
	Persona      *types.Persona
	Relationship *types.RelationshipState
	Memories     []types.MemoryEntry
	Scene        *types.Scene
	PeerMessages []PeerMessage
}

// section renders one optional block of the context.
type section func(in Inputs) string

// sections lists every block in delivery order.
var sections = []section{
	identitySection,
	appearanceSection,
	personalitySection,
	backgroundSection,
	sceneSection,
	personaSection,
	declaredRelationshipsSection,
	chatExamplesSection,
	memoriesSection,
	relationshipMetricsSection,
	peerAwarenessSection,
	closingSection,
}

// BuildContext renders the full instruction text for one character. Long
// fields are passed through untruncated; display truncation is a
// presentation concern that lives elsewhere.
func BuildContext(in Inputs) string {
	if in.Character == nil {
		return ""
	}

	var parts []string
	for _, s := range sections {
		if text := s(in); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}
