package types

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationError aggregates every field-level problem found in a submission.
// All checks run before returning so the caller gets the complete list in
// one pass, not just the first violation.
type ValidationError struct {
	Errors []string `json:"errors"`
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// ValidateCharacterDraft checks a character submission against the
// structural invariants. Returns nil when the draft is valid, otherwise a
// *ValidationError listing every violation.
func ValidateCharacterDraft(d *CharacterDraft) error {
	var errs []string

	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, "name must not be empty")
	}
	if d.Age == nil {
		errs = append(errs, "age is required")
	} else if *d.Age < MinAge {
		errs = append(errs, fmt.Sprintf("age must be at least %d", MinAge))
	}

	personality := strings.TrimSpace(d.Personality)
	if personality == "" {
		errs = append(errs, "personality must not be empty")
	} else if n := utf8.RuneCountInString(personality); n < MinPersonalityLen {
		errs = append(errs, fmt.Sprintf("personality must be at least %d characters, got %d", MinPersonalityLen, n))
	} else if n > MaxPersonalityLen {
		errs = append(errs, fmt.Sprintf("personality must be at most %d characters, got %d", MaxPersonalityLen, n))
	}

	if d.Temperature != nil && (*d.Temperature < MinTemperature || *d.Temperature > MaxTemperature) {
		errs = append(errs, fmt.Sprintf("temperature must be between %g and %g", MinTemperature, MaxTemperature))
	}
	if d.MaxTokens != nil && (*d.MaxTokens < MinMaxTokens || *d.MaxTokens > MaxMaxTokens) {
		errs = append(errs, fmt.Sprintf("max_tokens must be between %d and %d", MinMaxTokens, MaxMaxTokens))
	}
	if d.ContextWindow != nil && (*d.ContextWindow < MinContextWindow || *d.ContextWindow > MaxContextWindow) {
		errs = append(errs, fmt.Sprintf("context_window must be between %d and %d", MinContextWindow, MaxContextWindow))
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// Normalize fills defaulted scene fields. Call before validation so the
// stored record never carries an empty atmosphere.
func (d *SceneDraft) Normalize() {
	if strings.TrimSpace(d.Atmosphere) == "" {
		d.Atmosphere = DefaultAtmosphere
	}
}

// ValidateSceneDraft checks a scene submission. All fields except
// atmosphere are required; every field has a length ceiling.
func ValidateSceneDraft(d *SceneDraft) error {
	var errs []string

	errs = appendRequiredMax(errs, "name", d.Name, MaxSceneNameLen)
	errs = appendRequiredMax(errs, "description", d.Description, MaxSceneDescriptionLen)
	errs = appendRequiredMax(errs, "context", d.Context, MaxSceneContextLen)
	if n := utf8.RuneCountInString(d.Atmosphere); n > MaxSceneAtmosphereLen {
		errs = append(errs, fmt.Sprintf("atmosphere must be at most %d characters, got %d", MaxSceneAtmosphereLen, n))
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func appendRequiredMax(errs []string, field, value string, max int) []string {
	if strings.TrimSpace(value) == "" {
		return append(errs, field+" must not be empty")
	}
	if n := utf8.RuneCountInString(value); n > max {
		return append(errs, fmt.Sprintf("%s must be at most %d characters, got %d", field, max, n))
	}
	return errs
}
