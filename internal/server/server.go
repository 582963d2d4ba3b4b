// Package server provides HTTP server initialization and lifecycle
// management for the Troupe chat API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/scrypster/troupe/internal/config"
	"github.com/scrypster/troupe/internal/storage"
	"github.com/scrypster/troupe/internal/turns"
	"github.com/scrypster/troupe/web/handlers"
)

// Deps carries the collaborators the HTTP layer exposes. The caller owns
// their construction and shutdown ordering; the WebSocket hub must already
// be wired as the scheduler's delivery sink.
type Deps struct {
	Store     storage.RecordStore
	Roster    handlers.CharacterRoster
	Scheduler *turns.Scheduler
	Catalog   handlers.CatalogInfo
	Hub       *handlers.SessionHub
}

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start initializes and starts the HTTP server.
// Returns the actual address being listened on (useful for testing with
// port 0).
func Start(ctx context.Context, cfg *config.Config, deps Deps) string {
	mux := http.NewServeMux()

	apiHandlers := handlers.NewAPIHandlers(deps.Roster, deps.Store, deps.Scheduler, deps.Catalog, cfg)

	// Create rate limiter (10 req/sec, burst of 20)
	rateLimiter := handlers.NewRateLimiter(10.0, 20)

	// API routes (require auth in production mode)
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/characters", apiHandlers.ListCharacters)
	apiMux.HandleFunc("POST /api/characters", apiHandlers.CreateCharacter)
	apiMux.HandleFunc("POST /api/characters/validate", apiHandlers.ValidateCharacter)
	apiMux.HandleFunc("GET /api/characters/{id}", apiHandlers.GetCharacter)
	apiMux.HandleFunc("PUT /api/characters/{id}", apiHandlers.UpdateCharacter)
	apiMux.HandleFunc("DELETE /api/characters/{id}", apiHandlers.DeleteCharacter)

	apiMux.HandleFunc("GET /api/personas/active", apiHandlers.GetActivePersona)
	apiMux.HandleFunc("POST /api/personas", apiHandlers.CreatePersona)

	apiMux.HandleFunc("GET /api/scenes", apiHandlers.ListScenes)
	apiMux.HandleFunc("POST /api/scenes", apiHandlers.CreateScene)
	apiMux.HandleFunc("GET /api/scenes/{id}", apiHandlers.GetScene)
	apiMux.HandleFunc("PUT /api/scenes/{id}", apiHandlers.UpdateScene)

	apiMux.HandleFunc("POST /api/sessions/{session}/turns", apiHandlers.SubmitTurn)
	apiMux.HandleFunc("DELETE /api/sessions/{session}/turns", apiHandlers.CancelTurn)

	apiMux.HandleFunc("GET /api/config", apiHandlers.GetConfig)

	// Health endpoint — no auth required, used by monitoring
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","version":"1.0.0"}`))
	})

	// Wrap API routes with auth middleware
	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	// WebSocket endpoint (no auth required - origin validation handles security)
	mux.Handle("GET /ws/sessions/{session}", deps.Hub)

	// Wrap entire server with rate limiting, then security headers
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = securityHeadersMiddleware(handler)

	// Create server with security timeouts
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", addr, err)
	}

	actualAddr := listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		deps.Hub.Stop()
	}()

	return actualAddr
}
