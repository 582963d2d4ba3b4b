// Package storage provides composable record-store interfaces for the
// Troupe system.
//
// The storage layer is split into small, focused interfaces that can be
// implemented independently and composed as needed. Stock characters are
// not stored here: they live in the immutable catalog (internal/catalog)
// and this layer only tracks per-user overrides and hidden-default markers.
package storage

import (
	"context"

	"github.com/scrypster/troupe/pkg/types"
)

// CharacterStore persists user-owned character records and the
// hidden-default join table.
type CharacterStore interface {
	// ListOwned returns all characters owned by the user,
	// most-recently-created first.
	ListOwned(ctx context.Context, userID string) ([]types.Character, error)

	// GetOwned retrieves one owned character.
	// Returns ErrNotFound if the user owns no such record.
	GetOwned(ctx context.Context, userID, id string) (*types.Character, error)

	// GetOwnedByOriginal retrieves the user's override of a stock character,
	// if one exists. Returns ErrNotFound otherwise. At most one override per
	// (user, original) pair can exist.
	GetOwnedByOriginal(ctx context.Context, userID, originalID string) (*types.Character, error)

	// UpsertOwned creates or replaces an owned character record.
	UpsertOwned(ctx context.Context, c *types.Character) error

	// DeleteOwned removes an owned character record.
	// Returns ErrNotFound if the user owns no such record.
	DeleteOwned(ctx context.Context, userID, id string) error

	// HideDefault records that a stock character is suppressed from the
	// user's visible set. Idempotent: hiding an already-hidden default is
	// not an error.
	HideDefault(ctx context.Context, userID, characterID string) error

	// HiddenDefaults returns the ids of all stock characters the user has
	// hidden (whether by explicit delete or by shadowing).
	HiddenDefaults(ctx context.Context, userID string) ([]string, error)
}

// PersonaStore persists user personas. Exactly one persona per user is
// active at any time.
type PersonaStore interface {
	// GetActivePersona returns the user's active persona.
	// Returns ErrNotFound when the user has none.
	GetActivePersona(ctx context.Context, userID string) (*types.Persona, error)

	// CreatePersona stores a new active persona, flipping any previously
	// active persona for the same user to inactive in the same transaction.
	// Old personas are never deleted.
	CreatePersona(ctx context.Context, p *types.Persona) error
}

// SceneStore persists scenes.
type SceneStore interface {
	// GetScene retrieves a scene by id. Returns ErrNotFound if absent.
	GetScene(ctx context.Context, id string) (*types.Scene, error)

	// PutScene creates or replaces a scene.
	PutScene(ctx context.Context, s *types.Scene) error

	// ListScenes returns all scenes, most-recently-created first.
	ListScenes(ctx context.Context) ([]types.Scene, error)
}

// MemoryStore reads and writes per-(user, character) memory entries.
// Extraction of memories from conversations happens outside this core; the
// scheduler only reads them back for context assembly.
type MemoryStore interface {
	// ListMemories returns up to limit entries for the pair, ordered most
	// important first. limit <= 0 means no limit.
	ListMemories(ctx context.Context, userID, characterID string, limit int) ([]types.MemoryEntry, error)

	// AddMemory stores a new memory entry.
	AddMemory(ctx context.Context, m *types.MemoryEntry) error
}

// SemanticMemorySearcher is an optional extension of MemoryStore for
// backends with vector support: entries are ordered by similarity to a
// query embedding instead of raw importance.
type SemanticMemorySearcher interface {
	// SearchMemories returns up to limit entries for the pair, nearest to
	// the query embedding first.
	SearchMemories(ctx context.Context, userID, characterID string, query []float32, limit int) ([]types.MemoryEntry, error)
}

// RelationshipStore reads and writes per-(user, character) relationship
// state. Score update formulas live outside this core.
type RelationshipStore interface {
	// GetRelationship returns the pair's relationship state.
	// Returns ErrNotFound when no interaction has been recorded yet.
	GetRelationship(ctx context.Context, userID, characterID string) (*types.RelationshipState, error)

	// PutRelationship creates or replaces the pair's relationship state.
	PutRelationship(ctx context.Context, r *types.RelationshipState) error
}

// RecordStore is the full record-store contract consumed by the turn
// pipeline.
type RecordStore interface {
	CharacterStore
	PersonaStore
	SceneStore
	MemoryStore
	RelationshipStore

	// Close releases any resources held by the store.
	Close() error
}
