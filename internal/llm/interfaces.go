// Package llm talks to the generation collaborator: given assembled context
// text and a character's model config, it produces one response with an
// accompanying mood reading. All HTTP providers are wrapped in a circuit
// breaker so a struggling backend degrades into fast per-character failures
// instead of hanging whole turns.
package llm

import "context"

// ModelConfig carries the per-character generation parameters.
type ModelConfig struct {
	Temperature float64
	MaxTokens   int
}

// Result is one generated character response. Mood and MoodIntensity are
// extracted from the model output when present, otherwise defaulted.
type Result struct {
	Content       string
	Mood          string
	MoodIntensity float64
}

// Generator is the interface for character response generation.
type Generator interface {
	Generate(ctx context.Context, contextText string, cfg ModelConfig) (*Result, error)
	GetModel() string
}
