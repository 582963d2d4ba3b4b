package handlers

import (
	"github.com/scrypster/troupe/internal/config"
	"github.com/scrypster/troupe/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ValidationResponse is the response format for POST /api/characters/validate
// and for rejected character or scene submissions. Errors lists every failed
// check, not just the first.
type ValidationResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// DeleteCharacterResponse reports what deleting a character actually did:
// "deleted" for an owned record, "hidden" for a stock catalog entry.
type DeleteCharacterResponse struct {
	Outcome string `json:"outcome"`
}

// TurnSubmission is the request format for POST /api/sessions/{session}/turns.
type TurnSubmission struct {
	UserMessage        string   `json:"user_message"`
	ActiveCharacterIDs []string `json:"active_character_ids"`
	SceneID            string   `json:"scene_id,omitempty"`
}

// TurnAccepted is the response format for an accepted turn submission. The
// completed turn is delivered over the session's WebSocket once every
// character has responded.
type TurnAccepted struct {
	TurnID string `json:"turn_id"`
	Status string `json:"status"`
}

// CancelTurnResponse reports whether an in-flight turn existed to cancel.
type CancelTurnResponse struct {
	Cancelled bool `json:"cancelled"`
}

// PersonaSubmission is the request format for POST /api/personas.
type PersonaSubmission struct {
	Name        string   `json:"name"`
	Personality string   `json:"personality,omitempty"`
	Interests   []string `json:"interests,omitempty"`
}

// ConfigResponse is the response format for GET /api/config.
// API keys are masked for security.
type ConfigResponse struct {
	LLM     LLMConfigResponse `json:"llm"`
	Storage StorageResponse   `json:"storage"`
	Catalog CatalogResponse   `json:"catalog"`
}

// LLMConfigResponse contains generation configuration with masked API keys.
type LLMConfigResponse struct {
	Provider     string `json:"provider"`
	OllamaURL    string `json:"ollama_url"`
	OllamaModel  string `json:"ollama_model"`
	OpenAIAPIKey string `json:"openai_api_key"` // Masked
	OpenAIModel  string `json:"openai_model"`
}

// StorageResponse contains storage settings.
type StorageResponse struct {
	Engine string `json:"engine"`
}

// CatalogResponse contains stock catalog settings.
type CatalogResponse struct {
	Path      string `json:"path"`
	HotReload bool   `json:"hot_reload"`
	Size      int    `json:"size"`
}

// TurnEvent is the envelope broadcast over a session's WebSocket when a
// turn completes.
type TurnEvent struct {
	Type string          `json:"type"`
	Turn *types.ChatTurn `json:"turn"`
}

// MaskAPIKey masks an API key for safe display.
// Shows first 7 chars and last 4 chars, hides the middle.
func MaskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) < 8 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}

// ToConfigResponse converts a config.Config to ConfigResponse with masked
// keys. catalogSize is the number of stock characters currently loaded.
func ToConfigResponse(cfg *config.Config, catalogSize int) ConfigResponse {
	return ConfigResponse{
		LLM: LLMConfigResponse{
			Provider:     cfg.LLM.Provider,
			OllamaURL:    cfg.LLM.OllamaURL,
			OllamaModel:  cfg.LLM.OllamaModel,
			OpenAIAPIKey: MaskAPIKey(cfg.LLM.OpenAIAPIKey),
			OpenAIModel:  cfg.LLM.OpenAIModel,
		},
		Storage: StorageResponse{
			Engine: cfg.Storage.Engine,
		},
		Catalog: CatalogResponse{
			Path:      cfg.Catalog.Path,
			HotReload: cfg.Catalog.HotReload,
			Size:      catalogSize,
		},
	}
}
