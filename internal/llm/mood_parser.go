package llm

import (
	"encoding/json"
	"strings"

	"github.com/scrypster/troupe/pkg/types"
)

// moodInstruction is appended to every generation prompt so the model
// reports its character's emotional read alongside the reply.
const moodInstruction = `After your reply, on a new line, append exactly one JSON object of the form {"mood": "<mood>", "intensity": <0..1>} and nothing after it.`

// moodBlock is the trailing JSON object models are instructed to emit.
type moodBlock struct {
	Mood      string   `json:"mood"`
	Intensity *float64 `json:"intensity"`
}

// ParseResult splits raw model output into response content and a mood
// reading. Models do not always follow the trailing-JSON instruction, so
// everything degrades gracefully: a missing or malformed block yields the
// whole output as content with a neutral mood, an unknown mood name is
// mapped to neutral, and intensity is clamped to [0,1].
func ParseResult(raw string) *Result {
	content := strings.TrimSpace(raw)
	res := &Result{
		Content:       content,
		Mood:          types.MoodNeutral,
		MoodIntensity: types.DefaultMoodIntensity,
	}

	start := strings.LastIndex(content, "{")
	if start == -1 || !strings.HasSuffix(content, "}") {
		return res
	}

	var block moodBlock
	if err := json.Unmarshal([]byte(content[start:]), &block); err != nil || block.Mood == "" {
		return res
	}

	res.Content = strings.TrimSpace(content[:start])
	if types.IsValidMood(block.Mood) {
		res.Mood = block.Mood
	}
	if block.Intensity != nil {
		res.MoodIntensity = clamp01(*block.Intensity)
	}

	// A reply that was nothing but the mood block is useless; keep the raw
	// text so the user sees something.
	if res.Content == "" {
		res.Content = content
	}
	return res
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
