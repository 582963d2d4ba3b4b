package turns

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/troupe/internal/llm"
	"github.com/scrypster/troupe/internal/storage"
	"github.com/scrypster/troupe/pkg/types"
)

// --- mocks ---

type mockResolver struct {
	chars map[string]*types.Character
}

func (r *mockResolver) Resolve(_ context.Context, _, characterID string) (*types.Character, error) {
	c, ok := r.chars[characterID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

type mockTurnStore struct {
	persona       *types.Persona
	scene         *types.Scene
	memories      map[string][]types.MemoryEntry
	relationships map[string]*types.RelationshipState
	personaErr    error
}

func (s *mockTurnStore) GetActivePersona(_ context.Context, _ string) (*types.Persona, error) {
	if s.personaErr != nil {
		return nil, s.personaErr
	}
	if s.persona == nil {
		return nil, storage.ErrNotFound
	}
	return s.persona, nil
}

func (s *mockTurnStore) GetScene(_ context.Context, id string) (*types.Scene, error) {
	if s.scene != nil && s.scene.ID == id {
		return s.scene, nil
	}
	return nil, storage.ErrNotFound
}

func (s *mockTurnStore) ListMemories(_ context.Context, _, characterID string, _ int) ([]types.MemoryEntry, error) {
	return s.memories[characterID], nil
}

func (s *mockTurnStore) GetRelationship(_ context.Context, _, characterID string) (*types.RelationshipState, error) {
	r, ok := s.relationships[characterID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return r, nil
}

// mockGenerator answers by matching the character name in the assembled
// context. When block is non-nil, calls wait until it is closed or the
// context is cancelled.
type mockGenerator struct {
	mu       sync.Mutex
	contexts []string
	respond  func(contextText string) (*llm.Result, error)
	block    chan struct{}
}

func (g *mockGenerator) Generate(ctx context.Context, contextText string, _ llm.ModelConfig) (*llm.Result, error) {
	g.mu.Lock()
	g.contexts = append(g.contexts, contextText)
	g.mu.Unlock()

	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.respond(contextText)
}

func (g *mockGenerator) GetModel() string { return "mock" }

func (g *mockGenerator) seenContexts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.contexts...)
}

type mockSink struct {
	ch chan *types.ChatTurn
}

func newMockSink() *mockSink {
	return &mockSink{ch: make(chan *types.ChatTurn, 4)}
}

func (s *mockSink) Deliver(turn *types.ChatTurn) { s.ch <- turn }

func (s *mockSink) wait(t *testing.T) *types.ChatTurn {
	t.Helper()
	select {
	case turn := <-s.ch:
		return turn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for turn delivery")
		return nil
	}
}

func (s *mockSink) assertNoDelivery(t *testing.T) {
	t.Helper()
	select {
	case turn := <-s.ch:
		t.Fatalf("unexpected delivery of turn %s", turn.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

// --- fixtures ---

func testCharacter(id, name string) *types.Character {
	return &types.Character{
		ID:            id,
		Name:          name,
		Age:           25,
		Sex:           "female",
		Personality:   "sharp-tongued but warm underneath it all",
		Temperature:   types.DefaultTemperature,
		MaxTokens:     types.DefaultMaxTokens,
		ContextWindow: types.DefaultContextWindow,
	}
}

func respondByName(contextText string) (*llm.Result, error) {
	for _, name := range []string{"Alice", "Bruno", "Cleo"} {
		if strings.Contains(contextText, "You are "+name+",") {
			return &llm.Result{
				Content:       "reply from " + name,
				Mood:          types.MoodHappy,
				MoodIntensity: 0.6,
			}, nil
		}
	}
	return nil, errors.New("unknown character in context")
}

func newTestScheduler(gen *mockGenerator, delay DelayPolicy) (*Scheduler, *mockSink) {
	resolver := &mockResolver{chars: map[string]*types.Character{
		"char-a": testCharacter("char-a", "Alice"),
		"char-b": testCharacter("char-b", "Bruno"),
		"char-c": testCharacter("char-c", "Cleo"),
	}}
	store := &mockTurnStore{
		memories:      map[string][]types.MemoryEntry{},
		relationships: map[string]*types.RelationshipState{},
	}
	sink := newMockSink()
	return NewScheduler(resolver, store, gen, sink, delay), sink
}

// --- tests ---

func TestScheduler_DeliveryOrderedByDelay(t *testing.T) {
	// Alice finishes first but carries the largest pacing value; Bruno
	// finishes last with the smallest. Delivery must follow pacing, not
	// completion.
	gen := &mockGenerator{respond: func(contextText string) (*llm.Result, error) {
		if strings.Contains(contextText, "You are Bruno,") {
			time.Sleep(60 * time.Millisecond)
		}
		if strings.Contains(contextText, "You are Cleo,") {
			time.Sleep(30 * time.Millisecond)
		}
		return respondByName(contextText)
	}}
	delays := map[int]int{0: 800, 1: 100, 2: 500}
	sched, sink := newTestScheduler(gen, func(index int, _ string) int {
		return delays[index]
	})

	turnID, err := sched.SubmitTurn(context.Background(), SubmitRequest{
		SessionID:          "session-1",
		UserID:             "user-1",
		UserMessage:        "hey everyone",
		ActiveCharacterIDs: []string{"char-a", "char-b", "char-c"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, turnID)

	turn := sink.wait(t)
	require.Len(t, turn.Responses, 3)
	assert.Equal(t, turnID, turn.ID)
	assert.Equal(t, "hey everyone", turn.UserMessage)
	assert.Equal(t, "Bruno", turn.Responses[0].CharacterName)
	assert.Equal(t, "Cleo", turn.Responses[1].CharacterName)
	assert.Equal(t, "Alice", turn.Responses[2].CharacterName)
	assert.Equal(t, []int{100, 500, 800}, []int{
		turn.Responses[0].DelayMs,
		turn.Responses[1].DelayMs,
		turn.Responses[2].DelayMs,
	})
}

func TestScheduler_EqualDelaysKeepFanOutOrder(t *testing.T) {
	gen := &mockGenerator{respond: respondByName}
	sched, sink := newTestScheduler(gen, func(int, string) int { return 300 })

	_, err := sched.SubmitTurn(context.Background(), SubmitRequest{
		SessionID:          "session-1",
		UserID:             "user-1",
		UserMessage:        "hi",
		ActiveCharacterIDs: []string{"char-c", "char-a", "char-b"},
	})
	require.NoError(t, err)

	turn := sink.wait(t)
	require.Len(t, turn.Responses, 3)
	assert.Equal(t, "Cleo", turn.Responses[0].CharacterName)
	assert.Equal(t, "Alice", turn.Responses[1].CharacterName)
	assert.Equal(t, "Bruno", turn.Responses[2].CharacterName)
}

func TestScheduler_PartialFailure(t *testing.T) {
	gen := &mockGenerator{respond: func(contextText string) (*llm.Result, error) {
		if strings.Contains(contextText, "You are Bruno,") {
			return nil, errors.New("backend exploded")
		}
		return respondByName(contextText)
	}}
	sched, sink := newTestScheduler(gen, func(index int, _ string) int { return index })

	_, err := sched.SubmitTurn(context.Background(), SubmitRequest{
		SessionID:          "session-1",
		UserID:             "user-1",
		UserMessage:        "hello",
		ActiveCharacterIDs: []string{"char-a", "char-b", "char-c"},
	})
	require.NoError(t, err)

	turn := sink.wait(t)
	require.Len(t, turn.Responses, 3)

	var errored, ok []types.CharacterResponse
	for _, r := range turn.Responses {
		if r.Errored {
			errored = append(errored, r)
		} else {
			ok = append(ok, r)
		}
	}
	require.Len(t, errored, 1)
	require.Len(t, ok, 2)
	assert.Equal(t, "Bruno", errored[0].CharacterName)
	assert.Equal(t, "*Bruno seems lost in thought*", errored[0].Content)
	assert.Equal(t, types.MoodNeutral, errored[0].Mood)
	for _, r := range ok {
		assert.Contains(t, r.Content, "reply from")
	}
}

func TestScheduler_ConflictInFlight(t *testing.T) {
	gen := &mockGenerator{respond: respondByName, block: make(chan struct{})}
	sched, sink := newTestScheduler(gen, nil)

	_, err := sched.SubmitTurn(context.Background(), SubmitRequest{
		SessionID:          "session-1",
		UserID:             "user-1",
		UserMessage:        "first",
		ActiveCharacterIDs: []string{"char-a"},
	})
	require.NoError(t, err)
	require.True(t, sched.InFlight("session-1"))

	_, err = sched.SubmitTurn(context.Background(), SubmitRequest{
		SessionID:          "session-1",
		UserID:             "user-1",
		UserMessage:        "second",
		ActiveCharacterIDs: []string{"char-b"},
	})
	assert.ErrorIs(t, err, ErrConflictInFlight)

	// A different session is unaffected.
	_, err = sched.SubmitTurn(context.Background(), SubmitRequest{
		SessionID:          "session-2",
		UserID:             "user-1",
		UserMessage:        "elsewhere",
		ActiveCharacterIDs: []string{"char-c"},
	})
	require.NoError(t, err)

	close(gen.block)
	sink.wait(t)
	sink.wait(t)
	assert.False(t, sched.InFlight("session-1"))
}

func TestScheduler_CancelDiscardsPendingDelivery(t *testing.T) {
	gen := &mockGenerator{respond: respondByName, block: make(chan struct{})}
	sched, sink := newTestScheduler(gen, nil)

	_, err := sched.SubmitTurn(context.Background(), SubmitRequest{
		SessionID:          "session-1",
		UserID:             "user-1",
		UserMessage:        "hello?",
		ActiveCharacterIDs: []string{"char-a", "char-b"},
	})
	require.NoError(t, err)

	require.True(t, sched.CancelBatch("session-1"))
	assert.False(t, sched.InFlight("session-1"))

	close(gen.block)
	sink.assertNoDelivery(t)

	// Cancelling again reports nothing in flight.
	assert.False(t, sched.CancelBatch("session-1"))
}

func TestScheduler_SubmitAfterCancelStartsFresh(t *testing.T) {
	gen := &mockGenerator{respond: respondByName, block: make(chan struct{})}
	sched, sink := newTestScheduler(gen, nil)

	_, err := sched.SubmitTurn(context.Background(), SubmitRequest{
		SessionID:          "session-1",
		UserID:             "user-1",
		UserMessage:        "first",
		ActiveCharacterIDs: []string{"char-a"},
	})
	require.NoError(t, err)
	require.True(t, sched.CancelBatch("session-1"))
	close(gen.block)

	secondID, err := sched.SubmitTurn(context.Background(), SubmitRequest{
		SessionID:          "session-1",
		UserID:             "user-1",
		UserMessage:        "second",
		ActiveCharacterIDs: []string{"char-b"},
	})
	require.NoError(t, err)

	turn := sink.wait(t)
	assert.Equal(t, secondID, turn.ID)
	assert.Equal(t, "second", turn.UserMessage)
	sink.assertNoDelivery(t)
}

func TestScheduler_InputValidation(t *testing.T) {
	gen := &mockGenerator{respond: respondByName}
	sched, _ := newTestScheduler(gen, nil)

	t.Run("empty active set", func(t *testing.T) {
		_, err := sched.SubmitTurn(context.Background(), SubmitRequest{
			SessionID: "session-1",
			UserID:    "user-1",
		})
		assert.ErrorIs(t, err, ErrNoActiveCharacters)
	})

	t.Run("unknown character", func(t *testing.T) {
		_, err := sched.SubmitTurn(context.Background(), SubmitRequest{
			SessionID:          "session-1",
			UserID:             "user-1",
			ActiveCharacterIDs: []string{"char-nope"},
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.False(t, sched.InFlight("session-1"))
	})

	t.Run("unknown scene", func(t *testing.T) {
		_, err := sched.SubmitTurn(context.Background(), SubmitRequest{
			SessionID:          "session-1",
			UserID:             "user-1",
			ActiveCharacterIDs: []string{"char-a"},
			SceneID:            "scene-nope",
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestScheduler_StoreFailureAbortsTurn(t *testing.T) {
	resolver := &mockResolver{chars: map[string]*types.Character{
		"char-a": testCharacter("char-a", "Alice"),
	}}
	store := &mockTurnStore{personaErr: errors.New("connection refused")}
	sink := newMockSink()
	sched := NewScheduler(resolver, store, &mockGenerator{respond: respondByName}, sink, nil)

	_, err := sched.SubmitTurn(context.Background(), SubmitRequest{
		SessionID:          "session-1",
		UserID:             "user-1",
		UserMessage:        "hi",
		ActiveCharacterIDs: []string{"char-a"},
	})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.False(t, sched.InFlight("session-1"))
	sink.assertNoDelivery(t)
}

func TestScheduler_PeerAwarenessAcrossTurns(t *testing.T) {
	gen := &mockGenerator{respond: respondByName}
	sched, sink := newTestScheduler(gen, func(index int, _ string) int { return index })

	_, err := sched.SubmitTurn(context.Background(), SubmitRequest{
		SessionID:          "session-1",
		UserID:             "user-1",
		UserMessage:        "round one",
		ActiveCharacterIDs: []string{"char-a", "char-b"},
	})
	require.NoError(t, err)
	sink.wait(t)

	_, err = sched.SubmitTurn(context.Background(), SubmitRequest{
		SessionID:          "session-1",
		UserID:             "user-1",
		UserMessage:        "round two",
		ActiveCharacterIDs: []string{"char-a"},
	})
	require.NoError(t, err)
	sink.wait(t)

	contexts := gen.seenContexts()
	require.Len(t, contexts, 3)
	// Alice's second context carries Bruno's reply from round one but never
	// her own.
	second := contexts[2]
	assert.Contains(t, second, "reply from Bruno")
	assert.NotContains(t, second, "reply from Alice")

	// Tearing the session down drops the peer memory too.
	sched.EndSession("session-1")
	_, err = sched.SubmitTurn(context.Background(), SubmitRequest{
		SessionID:          "session-1",
		UserID:             "user-1",
		UserMessage:        "round three",
		ActiveCharacterIDs: []string{"char-a"},
	})
	require.NoError(t, err)
	sink.wait(t)
	contexts = gen.seenContexts()
	assert.NotContains(t, contexts[len(contexts)-1], "reply from Bruno")
}

func TestDefaultDelayPolicy(t *testing.T) {
	assert.Equal(t, DefaultDelayPolicy(0, "hi"), DefaultDelayPolicy(0, "hi"))
	assert.Greater(t, DefaultDelayPolicy(1, "hi"), DefaultDelayPolicy(0, "hi"))
	assert.Greater(t, DefaultDelayPolicy(0, strings.Repeat("a", 100)), DefaultDelayPolicy(0, "hi"))
	assert.LessOrEqual(t, DefaultDelayPolicy(9, strings.Repeat("a", 10000)), maxDelayMs)
}
