package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/troupe/internal/storage"
	"github.com/scrypster/troupe/pkg/types"
)

// openTestStore connects to the database named by TROUPE_TEST_POSTGRES_DSN.
// Tests are skipped when the variable is unset so the suite passes without a
// running PostgreSQL instance.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TROUPE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TROUPE_TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}
	store, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostgres_CharacterRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	userID := uuid.NewString()

	c := &types.Character{
		ID:            uuid.NewString(),
		UserID:        userID,
		Name:          "Zoe",
		Age:           25,
		Personality:   "curious, warm, endlessly patient with strangers",
		Temperature:   types.DefaultTemperature,
		MaxTokens:     types.DefaultMaxTokens,
		ContextWindow: types.DefaultContextWindow,
		MemoryEnabled: true,
		Tags:          []string{"tech"},
	}
	require.NoError(t, store.UpsertOwned(ctx, c))

	got, err := store.GetOwned(ctx, userID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Zoe", got.Name)
	assert.Equal(t, []string{"tech"}, got.Tags)

	require.NoError(t, store.DeleteOwned(ctx, userID, c.ID))
	_, err = store.GetOwned(ctx, userID, c.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostgres_SearchMemoriesFallsBackWithoutQuery(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	userID := uuid.NewString()

	require.NoError(t, store.AddMemory(ctx, &types.MemoryEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		CharacterID: "char-1",
		Content:     "prefers window seats",
		Type:        types.MemoryTypePreference,
		Importance:  0.8,
	}))

	// No query embedding: must degrade to importance ordering, never error.
	got, err := store.SearchMemories(ctx, userID, "char-1", nil, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "prefers window seats", got[0].Content)
}
