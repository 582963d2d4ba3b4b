package llm

import (
	"fmt"
	"strings"
	"time"
)

// ProviderConfig selects and configures a generation backend.
type ProviderConfig struct {
	Provider string // "ollama" or "openai"
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

// NewGenerator creates a Generator for the configured provider.
func NewGenerator(cfg ProviderConfig) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "ollama", "":
		return NewOllamaClient(OllamaConfig{
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: openai provider requires an API key")
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("llm: unsupported provider: %q", cfg.Provider)
	}
}
