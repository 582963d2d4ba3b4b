// Package config provides configuration management for Troupe.
// It loads settings from environment variables with the TROUPE_ prefix
// and provides sensible defaults for all configuration options.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration settings for the Troupe application.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Catalog  CatalogConfig
	LLM      LLMConfig
	Security SecurityConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 7373)
	Host string // Server host (default: 127.0.0.1)
}

// StorageConfig contains record-store configuration.
type StorageConfig struct {
	Engine      string // Storage engine: sqlite, postgres (default: sqlite)
	DataPath    string // Path to data directory for sqlite (default: ./data)
	PostgresDSN string // Postgres connection string (required when Engine is postgres)
}

// CatalogConfig contains stock character catalog configuration.
type CatalogConfig struct {
	Path      string // Path to the stock character YAML file (default: ./catalog/characters.yaml)
	HotReload bool   // Reload the catalog when the file changes (default: true)
}

// LLMConfig contains generation provider configuration.
type LLMConfig struct {
	Provider     string        // Generation provider: ollama, openai (default: ollama)
	OllamaURL    string        // Ollama API URL (default: http://localhost:11434)
	OllamaModel  string        // Ollama model name (default: qwen2.5:7b)
	OpenAIAPIKey string        // OpenAI API key
	OpenAIModel  string        // OpenAI model name (default: gpt-4o-mini)
	OpenAIURL    string        // OpenAI-compatible base URL (default: https://api.openai.com)
	Timeout      time.Duration // Per-request generation timeout (default: 60s)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string // Security mode: development, production (default: development)
	APIToken     string // API authentication token
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the TROUPE_ prefix.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("TROUPE_PORT", 7373),
			Host: getEnv("TROUPE_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			Engine:      getEnv("TROUPE_STORAGE_ENGINE", "sqlite"),
			DataPath:    getEnv("TROUPE_DATA_PATH", "./data"),
			PostgresDSN: getEnv("TROUPE_POSTGRES_DSN", ""),
		},
		Catalog: CatalogConfig{
			Path:      getEnv("TROUPE_CATALOG_PATH", "./catalog/characters.yaml"),
			HotReload: getEnvBool("TROUPE_CATALOG_HOT_RELOAD", true),
		},
		LLM: LLMConfig{
			Provider:     getEnv("TROUPE_LLM_PROVIDER", "ollama"),
			OllamaURL:    getEnv("TROUPE_OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:  getEnv("TROUPE_OLLAMA_MODEL", "qwen2.5:7b"),
			OpenAIAPIKey: getEnv("TROUPE_OPENAI_API_KEY", ""),
			OpenAIModel:  getEnv("TROUPE_OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIURL:    getEnv("TROUPE_OPENAI_URL", "https://api.openai.com"),
			Timeout:      time.Duration(getEnvInt("TROUPE_LLM_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("TROUPE_SECURITY_MODE", "development"),
			APIToken:     getEnv("TROUPE_API_TOKEN", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration values that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("config: TROUPE_POSTGRES_DSN is required when storage engine is postgres")
		}
	default:
		return fmt.Errorf("config: unsupported storage engine: %q", c.Storage.Engine)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port: %d", c.Server.Port)
	}

	if c.Security.SecurityMode == "production" && c.Security.APIToken == "" {
		return fmt.Errorf("config: TROUPE_API_TOKEN is required in production mode")
	}

	return nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false.
// If the environment variable exists but cannot be parsed as a boolean,
// it returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
