// Package roster resolves character references to their effective records.
//
// Stock characters live in an immutable shared catalog; user edits never
// touch them. Editing a stock character creates a user-owned copy that
// shadows the stock entry in that user's visible set (copy-on-write), and
// deleting a stock character only hides it for that user. Owned records are
// edited and deleted directly.
package roster

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/scrypster/troupe/internal/storage"
	"github.com/scrypster/troupe/pkg/types"
)

// StockCatalog is the read side of the stock character catalog.
type StockCatalog interface {
	// All returns stock characters in fixed catalog order.
	All() []types.Character
	// Get returns the stock character with the given id.
	Get(id string) (*types.Character, bool)
}

// DeleteOutcome reports what Delete actually did.
type DeleteOutcome string

const (
	// DeleteHidden means the target was a stock character; the shared
	// catalog entry is intact and a hidden-default marker was recorded.
	DeleteHidden DeleteOutcome = "hidden"

	// DeleteDeleted means an owned record was removed.
	DeleteDeleted DeleteOutcome = "deleted"
)

// Resolver computes per-user visible character sets and performs the
// copy-on-write shadowing of stock characters.
type Resolver struct {
	catalog StockCatalog
	store   storage.CharacterStore

	// Serialises the copy-on-write path per user so two concurrent edits
	// of the same stock character cannot produce two overrides.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewResolver creates a Resolver over the given catalog and store.
func NewResolver(cat StockCatalog, store storage.CharacterStore) *Resolver {
	return &Resolver{
		catalog: cat,
		store:   store,
		locks:   make(map[string]*sync.Mutex),
	}
}

// ListVisible returns the user's visible characters: owned records first
// (most-recently-created first), then the stock characters the user has
// neither hidden nor overridden, in catalog order. No two results share an
// id.
func (r *Resolver) ListVisible(ctx context.Context, userID string) ([]types.Character, error) {
	owned, err := r.store.ListOwned(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("roster: failed to list owned characters: %w", err)
	}

	hidden, err := r.store.HiddenDefaults(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("roster: failed to list hidden defaults: %w", err)
	}

	suppressed := make(map[string]bool, len(hidden)+len(owned))
	for _, id := range hidden {
		suppressed[id] = true
	}
	// Overrides always hide their original, even if the marker is missing.
	seen := make(map[string]bool, len(owned))
	for _, c := range owned {
		seen[c.ID] = true
		if c.OriginalID != "" {
			suppressed[c.OriginalID] = true
		}
	}

	out := owned
	for _, c := range r.catalog.All() {
		if suppressed[c.ID] || seen[c.ID] {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Resolve returns the effective record for a character reference: the owned
// record when the user owns it (or owns an override of the referenced stock
// character), otherwise the visible stock entry. Returns
// storage.ErrNotFound when nothing visible matches.
func (r *Resolver) Resolve(ctx context.Context, userID, characterID string) (*types.Character, error) {
	c, err := r.store.GetOwned(ctx, userID, characterID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("roster: failed to resolve character: %w", err)
	}

	stock, ok := r.catalog.Get(characterID)
	if !ok {
		return nil, storage.ErrNotFound
	}

	// A session may still hold the stock id after the user created an
	// override; the override is the effective record.
	if override, err := r.store.GetOwnedByOriginal(ctx, userID, characterID); err == nil {
		return override, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("roster: failed to look up override: %w", err)
	}

	hidden, err := r.isHidden(ctx, userID, characterID)
	if err != nil {
		return nil, err
	}
	if hidden {
		return nil, storage.ErrNotFound
	}
	return stock, nil
}

// Create makes a brand-new owned character from a draft. The draft is
// validated first; omitted optional fields take the standard defaults.
func (r *Resolver) Create(ctx context.Context, userID string, draft *types.CharacterDraft) (*types.Character, error) {
	if draft == nil {
		return nil, fmt.Errorf("%w: draft is required", storage.ErrInvalidInput)
	}
	if err := types.ValidateCharacterDraft(draft); err != nil {
		return nil, err
	}

	c := types.Character{
		ID:            uuid.NewString(),
		UserID:        userID,
		Avatar:        types.DefaultAvatar,
		Color:         types.DefaultColor,
		Temperature:   types.DefaultTemperature,
		MaxTokens:     types.DefaultMaxTokens,
		ContextWindow: types.DefaultContextWindow,
		MemoryEnabled: true,
	}
	draft.Apply(&c)

	if err := r.store.UpsertOwned(ctx, &c); err != nil {
		return nil, fmt.Errorf("roster: failed to create character: %w", err)
	}
	return &c, nil
}

// ResolveForEditing applies edits to the character the reference names.
// Editing a stock character creates an owned override via copy-on-write and
// hides the original; editing an owned record updates it in place. The
// edits are validated before anything is written.
func (r *Resolver) ResolveForEditing(ctx context.Context, userID, characterID string, edits *types.CharacterDraft) (*types.Character, error) {
	if edits == nil {
		return nil, fmt.Errorf("%w: edits are required", storage.ErrInvalidInput)
	}
	if err := types.ValidateCharacterDraft(edits); err != nil {
		return nil, err
	}

	lock := r.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	// Owned record referenced directly: in-place update.
	if c, err := r.store.GetOwned(ctx, userID, characterID); err == nil {
		edits.Apply(c)
		if err := r.store.UpsertOwned(ctx, c); err != nil {
			return nil, fmt.Errorf("roster: failed to update character: %w", err)
		}
		return c, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("roster: failed to load character: %w", err)
	}

	stock, ok := r.catalog.Get(characterID)
	if !ok {
		return nil, storage.ErrNotFound
	}

	// Second edit of the same stock character operates on the existing
	// override; a (user, original) pair never grows a second one.
	if override, err := r.store.GetOwnedByOriginal(ctx, userID, characterID); err == nil {
		edits.Apply(override)
		if err := r.store.UpsertOwned(ctx, override); err != nil {
			return nil, fmt.Errorf("roster: failed to update override: %w", err)
		}
		return override, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("roster: failed to look up override: %w", err)
	}

	// A default the user deleted is invisible to them; editing it must not
	// bring it back.
	hidden, err := r.isHidden(ctx, userID, characterID)
	if err != nil {
		return nil, err
	}
	if hidden {
		return nil, storage.ErrNotFound
	}

	// Copy-on-write: the owned record starts from the stock values, takes
	// the edits on top, and shadows the stock entry from here on.
	c := *stock
	c.ID = uuid.NewString()
	c.IsDefault = false
	c.OriginalID = stock.ID
	c.UserID = userID
	edits.Apply(&c)

	if err := r.store.UpsertOwned(ctx, &c); err != nil {
		return nil, fmt.Errorf("roster: failed to create override: %w", err)
	}
	if err := r.store.HideDefault(ctx, userID, stock.ID); err != nil {
		return nil, fmt.Errorf("roster: failed to hide shadowed default: %w", err)
	}
	return &c, nil
}

// Delete removes an owned character, or hides a stock character for this
// user while leaving the shared catalog entry intact for everyone else.
func (r *Resolver) Delete(ctx context.Context, userID, characterID string) (DeleteOutcome, error) {
	err := r.store.DeleteOwned(ctx, userID, characterID)
	if err == nil {
		return DeleteDeleted, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("roster: failed to delete character: %w", err)
	}

	if _, ok := r.catalog.Get(characterID); !ok {
		return "", storage.ErrNotFound
	}
	if err := r.store.HideDefault(ctx, userID, characterID); err != nil {
		return "", fmt.Errorf("roster: failed to hide default: %w", err)
	}
	return DeleteHidden, nil
}

func (r *Resolver) isHidden(ctx context.Context, userID, characterID string) (bool, error) {
	hidden, err := r.store.HiddenDefaults(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("roster: failed to list hidden defaults: %w", err)
	}
	for _, id := range hidden {
		if id == characterID {
			return true, nil
		}
	}
	return false, nil
}

func (r *Resolver) userLock(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[userID] = lock
	}
	return lock
}
