package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaClient generates character responses through a local Ollama server.
type OllamaClient struct {
	baseURL        string
	client         *http.Client
	circuitBreaker *CircuitBreaker
	model          string
}

// OllamaConfig holds Ollama client configuration.
type OllamaConfig struct {
	// BaseURL is the base URL for the Ollama API (default: http://localhost:11434)
	BaseURL string

	// Model is the model name to use for generation (default: qwen2.5:7b)
	Model string

	// Timeout is the request timeout (default: 60s; character replies are
	// slower than the short extraction calls a 5s budget suits).
	Timeout time.Duration
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaClient creates a new Ollama client.
func NewOllamaClient(config OllamaConfig) *OllamaClient {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Model == "" {
		config.Model = "qwen2.5:7b"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	return &OllamaClient{
		baseURL:        config.BaseURL,
		client:         &http.Client{Timeout: config.Timeout},
		circuitBreaker: NewCircuitBreaker(),
		model:          config.Model,
	}
}

// Generate sends the assembled context to Ollama and returns the parsed
// response. The call is wrapped with circuit breaker protection.
func (c *OllamaClient) Generate(ctx context.Context, contextText string, cfg ModelConfig) (*Result, error) {
	return c.circuitBreaker.Execute(ctx, func() (*Result, error) {
		reqBody := ollamaGenerateRequest{
			Model:  c.model,
			Prompt: contextText + "\n\n" + moodInstruction,
			Stream: false,
			Options: map[string]any{
				"temperature": cfg.Temperature,
				"num_predict": cfg.MaxTokens,
			},
		}

		data, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("ollama: failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/api/generate", bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("ollama: failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("ollama: request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("ollama: unexpected status %d: %s", resp.StatusCode, body)
		}

		var genResp ollamaGenerateResponse
		if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
			return nil, fmt.Errorf("ollama: failed to decode response: %w", err)
		}
		if genResp.Response == "" {
			return nil, fmt.Errorf("ollama: empty response from model %s", c.model)
		}

		return ParseResult(genResp.Response), nil
	})
}

// GetModel returns the configured model name.
func (c *OllamaClient) GetModel() string {
	return c.model
}
