package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/troupe/pkg/types"
)

func TestOllamaClient_Generate(t *testing.T) {
	t.Run("sends prompt with mood instruction and parses response", func(t *testing.T) {
		var gotReq ollamaGenerateRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/generate", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

			json.NewEncoder(w).Encode(ollamaGenerateResponse{
				Response: "Hi there!\n{\"mood\": \"happy\", \"intensity\": 0.7}",
				Done:     true,
			})
		}))
		defer server.Close()

		client := NewOllamaClient(OllamaConfig{BaseURL: server.URL, Model: "test-model"})

		res, err := client.Generate(context.Background(), "You are Zoe.", ModelConfig{
			Temperature: 0.9,
			MaxTokens:   250,
		})

		require.NoError(t, err)
		assert.Equal(t, "Hi there!", res.Content)
		assert.Equal(t, types.MoodHappy, res.Mood)
		assert.Equal(t, 0.7, res.MoodIntensity)

		assert.Equal(t, "test-model", gotReq.Model)
		assert.Contains(t, gotReq.Prompt, "You are Zoe.")
		assert.Contains(t, gotReq.Prompt, "intensity")
		assert.False(t, gotReq.Stream)
		assert.Equal(t, 0.9, gotReq.Options["temperature"])
		assert.Equal(t, float64(250), gotReq.Options["num_predict"])
	})

	t.Run("non-200 status returns an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer server.Close()

		client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})

		_, err := client.Generate(context.Background(), "context", ModelConfig{})
		assert.Error(t, err)
	})

	t.Run("repeated failures trip the circuit breaker", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})

		for i := 0; i < 3; i++ {
			_, err := client.Generate(context.Background(), "context", ModelConfig{})
			require.Error(t, err)
		}

		_, err := client.Generate(context.Background(), "context", ModelConfig{})
		assert.ErrorIs(t, err, ErrCircuitOpen)
	})
}

func TestOpenAIClient_Generate(t *testing.T) {
	t.Run("sends chat completion and parses response", func(t *testing.T) {
		var gotReq openAIChatRequest
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/chat/completions", r.URL.Path)
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

			w.Write([]byte(`{"choices":[{"message":{"content":"Hello!\n{\"mood\": \"curious\", \"intensity\": 0.4}"}}]}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{
			APIKey:  "sk-test",
			BaseURL: server.URL,
			Model:   "gpt-4o-mini",
		})

		res, err := client.Generate(context.Background(), "You are Max.", ModelConfig{
			Temperature: 0.7,
			MaxTokens:   300,
		})

		require.NoError(t, err)
		assert.Equal(t, "Hello!", res.Content)
		assert.Equal(t, types.MoodCurious, res.Mood)

		assert.Equal(t, "Bearer sk-test", gotAuth)
		require.Len(t, gotReq.Messages, 1)
		assert.Equal(t, "system", gotReq.Messages[0].Role)
		assert.Contains(t, gotReq.Messages[0].Content, "You are Max.")
		assert.Equal(t, 300, gotReq.MaxTokens)
	})

	t.Run("empty choices returns an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL})

		_, err := client.Generate(context.Background(), "context", ModelConfig{})
		assert.Error(t, err)
	})
}

func TestNewGenerator(t *testing.T) {
	t.Run("defaults to ollama", func(t *testing.T) {
		gen, err := NewGenerator(ProviderConfig{})
		require.NoError(t, err)
		assert.IsType(t, &OllamaClient{}, gen)
	})

	t.Run("openai requires an API key", func(t *testing.T) {
		_, err := NewGenerator(ProviderConfig{Provider: "openai"})
		assert.Error(t, err)

		gen, err := NewGenerator(ProviderConfig{Provider: "openai", APIKey: "sk-test"})
		require.NoError(t, err)
		assert.IsType(t, &OpenAIClient{}, gen)
	})

	t.Run("unknown provider errors", func(t *testing.T) {
		_, err := NewGenerator(ProviderConfig{Provider: "carrier-pigeon"})
		assert.Error(t, err)
	})
}
