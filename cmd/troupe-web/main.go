package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scrypster/troupe/internal/catalog"
	"github.com/scrypster/troupe/internal/config"
	"github.com/scrypster/troupe/internal/llm"
	"github.com/scrypster/troupe/internal/roster"
	"github.com/scrypster/troupe/internal/server"
	"github.com/scrypster/troupe/internal/storage"
	"github.com/scrypster/troupe/internal/storage/postgres"
	"github.com/scrypster/troupe/internal/storage/sqlite"
	"github.com/scrypster/troupe/internal/turns"
	"github.com/scrypster/troupe/web/handlers"
)

func main() {
	catalogPath := flag.String("catalog", "", "Path to the stock character catalog (overrides TROUPE_CATALOG_PATH)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *catalogPath != "" {
		cfg.Catalog.Path = *catalogPath
	}

	// Initialize storage
	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Load the stock character catalog
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		log.Fatalf("Failed to load character catalog: %v", err)
	}
	log.Printf("Loaded %d stock characters from %s", cat.Len(), cfg.Catalog.Path)
	if cfg.Catalog.HotReload {
		if err := cat.Watch(); err != nil {
			log.Printf("Warning: catalog hot reload unavailable: %v", err)
		}
	}
	defer cat.Stop()

	// Generation provider
	generator, err := llm.NewGenerator(llm.ProviderConfig{
		Provider: cfg.LLM.Provider,
		Model:    providerModel(cfg),
		BaseURL:  providerURL(cfg),
		APIKey:   cfg.LLM.OpenAIAPIKey,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		log.Fatalf("Failed to initialize generation provider: %v", err)
	}
	log.Printf("Generation provider: %s (model %s)", cfg.LLM.Provider, generator.GetModel())

	// Identity resolution, delivery hub, and turn scheduling
	resolver := roster.NewResolver(cat, store)
	hub := handlers.NewSessionHub(cfg.Server.Port)
	scheduler := turns.NewScheduler(resolver, store, generator, hub, nil)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := server.Start(ctx, cfg, server.Deps{
		Store:     store,
		Roster:    resolver,
		Scheduler: scheduler,
		Catalog:   cat,
		Hub:       hub,
	})
	log.Printf("Troupe API running at http://%s", addr)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}

// openStore builds the record store for the configured engine.
func openStore(cfg *config.Config) (storage.RecordStore, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		return postgres.New(cfg.Storage.PostgresDSN)
	default:
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, err
		}
		return sqlite.New(cfg.Storage.DataPath + "/troupe.db")
	}
}

func providerModel(cfg *config.Config) string {
	if cfg.LLM.Provider == "openai" {
		return cfg.LLM.OpenAIModel
	}
	return cfg.LLM.OllamaModel
}

func providerURL(cfg *config.Config) string {
	if cfg.LLM.Provider == "openai" {
		return cfg.LLM.OpenAIURL
	}
	return cfg.LLM.OllamaURL
}
