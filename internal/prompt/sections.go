package prompt

import (
	"fmt"
	"math"
	"strings"
)

// peerWindow is how many of the most recent peer messages a character gets
// to see.
const peerWindow = 3

func identitySection(in Inputs) string {
	c := in.Character
	if c.Sex != "" {
		return fmt.Sprintf("You are %s, a %d-year-old %s.", c.Name, c.Age, c.Sex)
	}
	return fmt.Sprintf("You are %s, %d years old.", c.Name, c.Age)
}

func appearanceSection(in Inputs) string {
	if in.Character.Appearance == "" {
		return ""
	}
	return "Appearance: " + in.Character.Appearance
}

func personalitySection(in Inputs) string {
	return "Personality: " + in.Character.Personality
}

func backgroundSection(in Inputs) string {
	if in.Character.Background == "" {
		return ""
	}
	return "Background: " + in.Character.Background
}

func sceneSection(in Inputs) string {
	s := in.Scene
	if s == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Current scene: %s — %s", s.Name, s.Description)
	if s.Context != "" {
		b.WriteString("\n")
		b.WriteString(s.Context)
	}
	if s.Atmosphere != "" {
		fmt.Fprintf(&b, "\nAtmosphere: %s", s.Atmosphere)
	}
	return b.String()
}

func personaSection(in Inputs) string {
	p := in.Persona
	if p == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are talking to %s.", p.Name)
	if p.Personality != "" {
		fmt.Fprintf(&b, " About them: %s.", p.Personality)
	}
	if len(p.Interests) > 0 {
		fmt.Fprintf(&b, " Their interests: %s.", strings.Join(p.Interests, ", "))
	}
	return b.String()
}

func declaredRelationshipsSection(in Inputs) string {
	rels := in.Character.Relationships
	if len(rels) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Your relationships with other characters:")
	for _, r := range rels {
		fmt.Fprintf(&b, "\n- %s: %s", r.TargetName, r.Description)
	}
	return b.String()
}

func chatExamplesSection(in Inputs) string {
	examples := in.Character.ChatExamples
	if len(examples) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Example exchanges showing how you speak:")
	for _, ex := range examples {
		fmt.Fprintf(&b, "\nUser: %s\n%s: %s", ex.User, in.Character.Name, ex.Character)
	}
	return b.String()
}

func memoriesSection(in Inputs) string {
	if len(in.Memories) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Things you remember about this user:")
	for _, m := range in.Memories {
		fmt.Fprintf(&b, "\n- %s", m.Content)
	}
	return b.String()
}

func relationshipMetricsSection(in Inputs) string {
	r := in.Relationship
	if r == nil {
		return ""
	}
	return fmt.Sprintf("Your relationship with this user: %s (familiarity %d%%, trust %d%%).",
		r.RelationshipType, percent(r.Familiarity), percent(r.Trust))
}

func peerAwarenessSection(in Inputs) string {
	peers := in.PeerMessages
	if len(peers) == 0 {
		return ""
	}
	if len(peers) > peerWindow {
		peers = peers[len(peers)-peerWindow:]
	}
	var b strings.Builder
	b.WriteString("Other characters in the scene have just said:")
	for _, p := range peers {
		fmt.Fprintf(&b, "\n%s: %s", p.CharacterName, p.Content)
	}
	b.WriteString("\nYou may react to or reference what they said.")
	return b.String()
}

func closingSection(in Inputs) string {
	return fmt.Sprintf("Stay in character as %s. Respond based on your personality, background, and the current context.",
		in.Character.Name)
}

// percent renders a [0,1] value as an integer percentage, rounded to the
// nearest whole number.
func percent(v float64) int {
	return int(math.Round(v * 100))
}
