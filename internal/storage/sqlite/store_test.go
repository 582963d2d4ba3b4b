package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/troupe/internal/storage"
	"github.com/scrypster/troupe/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func ownedCharacter(userID, name string) *types.Character {
	return &types.Character{
		ID:            uuid.NewString(),
		UserID:        userID,
		Name:          name,
		Age:           25,
		Personality:   "curious, warm, endlessly patient with strangers",
		Temperature:   types.DefaultTemperature,
		MaxTokens:     types.DefaultMaxTokens,
		ContextWindow: types.DefaultContextWindow,
		MemoryEnabled: true,
	}
}

func TestCharacterRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	c := ownedCharacter("user-1", "Zoe")
	c.ChatExamples = []types.ChatExample{{User: "hi", Character: "hey yourself"}}
	c.Relationships = []types.CharacterRelationship{{TargetCharacterID: "c2", TargetName: "Max", Description: "old rival"}}
	c.Tags = []string{"tech", "sarcasm"}

	require.NoError(t, store.UpsertOwned(ctx, c))

	got, err := store.GetOwned(ctx, "user-1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.ChatExamples, got.ChatExamples)
	assert.Equal(t, c.Relationships, got.Relationships)
	assert.Equal(t, c.Tags, got.Tags)
	assert.True(t, got.MemoryEnabled)
	assert.Empty(t, got.OriginalID)
}

func TestGetOwned_WrongUserIsNotFound(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	c := ownedCharacter("user-1", "Zoe")
	require.NoError(t, store.UpsertOwned(ctx, c))

	_, err := store.GetOwned(ctx, "user-2", c.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListOwned_MostRecentFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	older := ownedCharacter("user-1", "First")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.UpsertOwned(ctx, older))

	newer := ownedCharacter("user-1", "Second")
	require.NoError(t, store.UpsertOwned(ctx, newer))

	list, err := store.ListOwned(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Second", list[0].Name)
	assert.Equal(t, "First", list[1].Name)
}

func TestGetOwnedByOriginal(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	override := ownedCharacter("user-1", "My Zoe")
	override.OriginalID = "default-zoe"
	require.NoError(t, store.UpsertOwned(ctx, override))

	got, err := store.GetOwnedByOriginal(ctx, "user-1", "default-zoe")
	require.NoError(t, err)
	assert.Equal(t, override.ID, got.ID)
	assert.Equal(t, "default-zoe", got.OriginalID)

	_, err = store.GetOwnedByOriginal(ctx, "user-2", "default-zoe")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpsertOwned_DuplicateOverrideRejected(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := ownedCharacter("user-1", "Override A")
	first.OriginalID = "default-zoe"
	require.NoError(t, store.UpsertOwned(ctx, first))

	// A second record for the same (user, original) pair must hit the
	// unique index: one active override per default per user.
	second := ownedCharacter("user-1", "Override B")
	second.OriginalID = "default-zoe"
	assert.Error(t, store.UpsertOwned(ctx, second))
}

func TestDeleteOwned(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	c := ownedCharacter("user-1", "Zoe")
	require.NoError(t, store.UpsertOwned(ctx, c))
	require.NoError(t, store.DeleteOwned(ctx, "user-1", c.ID))

	_, err := store.GetOwned(ctx, "user-1", c.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.DeleteOwned(ctx, "user-1", c.ID), storage.ErrNotFound)
}

func TestHideDefault_Idempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.HideDefault(ctx, "user-1", "default-zoe"))
	require.NoError(t, store.HideDefault(ctx, "user-1", "default-zoe"))

	hidden, err := store.HiddenDefaults(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"default-zoe"}, hidden)

	other, err := store.HiddenDefaults(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, other, "markers are per-user")
}

func TestCreatePersona_FlipsPreviousActive(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := &types.Persona{ID: uuid.NewString(), UserID: "user-1", Name: "Avery", Interests: []string{"music", "code"}}
	require.NoError(t, store.CreatePersona(ctx, first))

	active, err := store.GetActivePersona(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Avery", active.Name)
	assert.Equal(t, []string{"music", "code"}, active.Interests)

	second := &types.Persona{ID: uuid.NewString(), UserID: "user-1", Name: "Sam"}
	require.NoError(t, store.CreatePersona(ctx, second))

	active, err = store.GetActivePersona(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Sam", active.Name, "newest persona must be the active one")
}

func TestGetActivePersona_NoneIsNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetActivePersona(context.Background(), "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSceneRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sc := &types.Scene{
		ID:          uuid.NewString(),
		Name:        "Coffee Shop",
		Description: "A cozy corner cafe",
		Context:     "Late afternoon, rain tapping the windows",
		Atmosphere:  "relaxed and friendly",
	}
	require.NoError(t, store.PutScene(ctx, sc))

	got, err := store.GetScene(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Coffee Shop", got.Name)
	assert.Equal(t, "relaxed and friendly", got.Atmosphere)

	_, err = store.GetScene(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	scenes, err := store.ListScenes(ctx)
	require.NoError(t, err)
	assert.Len(t, scenes, 1)
}

func TestListMemories_MostImportantFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, m := range []struct {
		content    string
		importance float64
	}{
		{"likes flat whites", 0.3},
		{"works on compilers", 0.9},
		{"afraid of pigeons", 0.6},
	} {
		require.NoError(t, store.AddMemory(ctx, &types.MemoryEntry{
			ID:          uuid.NewString(),
			UserID:      "user-1",
			CharacterID: "char-1",
			Content:     m.content,
			Type:        types.MemoryTypeFact,
			Importance:  m.importance,
		}))
	}

	got, err := store.ListMemories(ctx, "user-1", "char-1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "works on compilers", got[0].Content)
	assert.Equal(t, "afraid of pigeons", got[1].Content)
}

func TestRelationshipRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	r := &types.RelationshipState{
		UserID:           "user-1",
		CharacterID:      "char-1",
		RelationshipType: types.RelationshipFriend,
		Familiarity:      0.42,
		Trust:            0.77,
		EmotionalBond:    0.1,
		InteractionCount: 12,
	}
	require.NoError(t, store.PutRelationship(ctx, r))

	got, err := store.GetRelationship(ctx, "user-1", "char-1")
	require.NoError(t, err)
	assert.Equal(t, types.RelationshipFriend, got.RelationshipType)
	assert.InDelta(t, 0.42, got.Familiarity, 1e-9)
	assert.Equal(t, 12, got.InteractionCount)

	_, err = store.GetRelationship(ctx, "user-1", "char-2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
