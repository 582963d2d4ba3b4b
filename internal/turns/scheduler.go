// Package turns schedules multi-character chat turns.
//
// A turn is one user message fanned out to every active character: each
// character's context is assembled synchronously from already-fetched data,
// generation calls run concurrently, and the collected responses are
// delivered in one batch ordered by their assigned pacing values — never by
// completion order. Each session has at most one turn in flight; submitting
// while one is outstanding is rejected, and cancelling a session's batch
// discards its pending delivery.
package turns

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/troupe/internal/llm"
	"github.com/scrypster/troupe/internal/prompt"
	"github.com/scrypster/troupe/internal/storage"
	"github.com/scrypster/troupe/pkg/types"
)

var (
	// ErrNoActiveCharacters is returned when a turn is submitted with an
	// empty active-character set.
	ErrNoActiveCharacters = errors.New("turns: no active characters")

	// ErrConflictInFlight is returned when a turn is submitted while a
	// prior turn is still awaiting responses for the same session.
	ErrConflictInFlight = errors.New("turns: a turn is already in flight for this session")

	// ErrStoreUnavailable is returned when the record store fails while
	// gathering turn inputs. No partial turn is produced in this case.
	ErrStoreUnavailable = errors.New("turns: record store unavailable")
)

// memoryLimit caps how many remembered facts are pulled into one context.
// Stores return entries most-relevant-first, so the cap keeps the memories
// section bounded without losing the top entries.
const memoryLimit = 10

// CharacterResolver resolves a character reference to the effective record
// for a user (owned record, override, or visible stock entry).
type CharacterResolver interface {
	Resolve(ctx context.Context, userID, characterID string) (*types.Character, error)
}

// TurnStore is the slice of the record store a turn reads from.
type TurnStore interface {
	GetActivePersona(ctx context.Context, userID string) (*types.Persona, error)
	GetScene(ctx context.Context, id string) (*types.Scene, error)
	ListMemories(ctx context.Context, userID, characterID string, limit int) ([]types.MemoryEntry, error)
	GetRelationship(ctx context.Context, userID, characterID string) (*types.RelationshipState, error)
}

// Sink receives completed turns for delivery to the conversation view.
type Sink interface {
	Deliver(turn *types.ChatTurn)
}

// SubmitRequest carries one user message and the set of characters that
// should respond to it.
type SubmitRequest struct {
	SessionID          string
	UserID             string
	UserMessage        string
	ActiveCharacterIDs []string
	SceneID            string
}

// batch owns one in-flight turn. Cancelling it invalidates the pending
// delivery and best-effort cancels any outstanding generation calls.
type batch struct {
	sessionID string
	cancel    context.CancelFunc
}

// slot pairs a resolved character with its pre-assembled context text.
type slot struct {
	character   *types.Character
	contextText string
}

// Scheduler runs the per-session turn state machine.
type Scheduler struct {
	resolver  CharacterResolver
	store     TurnStore
	generator llm.Generator
	sink      Sink
	delay     DelayPolicy

	mu      sync.Mutex
	batches map[string]*batch
	// recent holds the last delivered responses per session, feeding peer
	// awareness on the next turn.
	recent map[string][]types.CharacterResponse
}

// NewScheduler creates a Scheduler. A nil delay policy falls back to
// DefaultDelayPolicy.
func NewScheduler(resolver CharacterResolver, store TurnStore, generator llm.Generator, sink Sink, delay DelayPolicy) *Scheduler {
	if delay == nil {
		delay = DefaultDelayPolicy
	}
	return &Scheduler{
		resolver:  resolver,
		store:     store,
		generator: generator,
		sink:      sink,
		delay:     delay,
		batches:   make(map[string]*batch),
		recent:    make(map[string][]types.CharacterResponse),
	}
}

// SubmitTurn starts a turn for the session and returns its id. Input
// gathering and context assembly happen synchronously, so store failures
// and unresolved references surface here; generation then runs in the
// background and the completed turn is handed to the sink.
func (s *Scheduler) SubmitTurn(ctx context.Context, req SubmitRequest) (string, error) {
	if len(req.ActiveCharacterIDs) == 0 {
		return "", ErrNoActiveCharacters
	}

	batchCtx, cancel := context.WithCancel(context.Background())
	b := &batch{sessionID: req.SessionID, cancel: cancel}

	s.mu.Lock()
	if _, inFlight := s.batches[req.SessionID]; inFlight {
		s.mu.Unlock()
		cancel()
		return "", ErrConflictInFlight
	}
	s.batches[req.SessionID] = b
	peers := append([]types.CharacterResponse(nil), s.recent[req.SessionID]...)
	s.mu.Unlock()

	slots, err := s.gather(ctx, req, peers)
	if err != nil {
		s.release(req.SessionID, b)
		cancel()
		return "", err
	}

	turnID := uuid.NewString()
	go s.run(batchCtx, b, turnID, req, slots)
	return turnID, nil
}

// CancelBatch discards the session's pending turn, if any, and best-effort
// cancels its outstanding generation calls. It reports whether a batch was
// in flight.
func (s *Scheduler) CancelBatch(sessionID string) bool {
	s.mu.Lock()
	b, ok := s.batches[sessionID]
	if ok {
		delete(s.batches, sessionID)
	}
	s.mu.Unlock()

	if ok {
		b.cancel()
		log.Printf("turns: cancelled in-flight turn for session %s", sessionID)
	}
	return ok
}

// InFlight reports whether the session currently has a turn awaiting
// responses.
func (s *Scheduler) InFlight(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.batches[sessionID]
	return ok
}

// EndSession tears down the session: any in-flight batch is cancelled and
// the peer-awareness memory for the session is dropped.
func (s *Scheduler) EndSession(sessionID string) {
	s.CancelBatch(sessionID)
	s.mu.Lock()
	delete(s.recent, sessionID)
	s.mu.Unlock()
}

// gather resolves every active character and assembles its context. All
// record-store reads happen here, before any generation call: a store
// failure aborts the whole turn since every character's context depends on
// it.
func (s *Scheduler) gather(ctx context.Context, req SubmitRequest, peers []types.CharacterResponse) ([]slot, error) {
	persona, err := s.store.GetActivePersona(ctx, req.UserID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: active persona: %v", ErrStoreUnavailable, err)
	}

	var scene *types.Scene
	if req.SceneID != "" {
		scene, err = s.store.GetScene(ctx, req.SceneID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("turns: scene %s: %w", req.SceneID, storage.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: scene %s: %v", ErrStoreUnavailable, req.SceneID, err)
		}
	}

	slots := make([]slot, 0, len(req.ActiveCharacterIDs))
	for _, id := range req.ActiveCharacterIDs {
		c, err := s.resolver.Resolve(ctx, req.UserID, id)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("turns: character %s: %w", id, storage.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: character %s: %v", ErrStoreUnavailable, id, err)
		}

		var memories []types.MemoryEntry
		if c.MemoryEnabled {
			memories, err = s.store.ListMemories(ctx, req.UserID, c.ID, memoryLimit)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%w: memories for %s: %v", ErrStoreUnavailable, c.ID, err)
			}
		}

		rel, err := s.store.GetRelationship(ctx, req.UserID, c.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: relationship for %s: %v", ErrStoreUnavailable, c.ID, err)
		}

		text := prompt.BuildContext(prompt.Inputs{
			Character:    c,
			Persona:      persona,
			Relationship: rel,
			Memories:     memories,
			Scene:        scene,
			PeerMessages: peerMessages(peers, c.ID),
		})
		slots = append(slots, slot{character: c, contextText: text})
	}
	return slots, nil
}

// peerMessages converts the previous turn's responses into peer-awareness
// input for one character, excluding its own slot and any errored slots.
func peerMessages(recent []types.CharacterResponse, characterID string) []prompt.PeerMessage {
	var peers []prompt.PeerMessage
	for _, r := range recent {
		if r.CharacterID == characterID || r.Errored {
			continue
		}
		peers = append(peers, prompt.PeerMessage{
			CharacterName: r.CharacterName,
			Content:       r.Content,
		})
	}
	return peers
}

// run fans out the generation calls, joins them, and delivers the ordered
// batch. Responses are buffered and reordered by pacing value before
// delivery; completion order of the underlying calls is irrelevant.
func (s *Scheduler) run(ctx context.Context, b *batch, turnID string, req SubmitRequest, slots []slot) {
	responses := make([]types.CharacterResponse, len(slots))

	var wg sync.WaitGroup
	for i, sl := range slots {
		wg.Add(1)
		go func(i int, sl slot) {
			defer wg.Done()
			responses[i] = s.generateSlot(ctx, i, sl)
		}(i, sl)
	}
	wg.Wait()

	// Pacing value is authoritative for delivery order; ties keep fan-out
	// order.
	sort.SliceStable(responses, func(i, j int) bool {
		return responses[i].DelayMs < responses[j].DelayMs
	})

	s.mu.Lock()
	if s.batches[req.SessionID] != b {
		// Superseded while generating: the batch was cancelled or replaced.
		// Drop the results rather than deliver stale responses.
		s.mu.Unlock()
		log.Printf("turns: discarding superseded turn %s for session %s", turnID, req.SessionID)
		return
	}
	delete(s.batches, req.SessionID)
	s.recent[req.SessionID] = responses
	s.mu.Unlock()

	s.sink.Deliver(&types.ChatTurn{
		ID:          turnID,
		SessionID:   req.SessionID,
		UserID:      req.UserID,
		UserMessage: req.UserMessage,
		Responses:   responses,
		CreatedAt:   time.Now().UTC(),
	})
}

// generateSlot obtains one character's response. A failed generation call
// never fails the turn: the slot is flagged and filled with in-character
// fallback content instead.
func (s *Scheduler) generateSlot(ctx context.Context, index int, sl slot) types.CharacterResponse {
	resp := types.CharacterResponse{
		CharacterID:   sl.character.ID,
		CharacterName: sl.character.Name,
	}

	result, err := s.generator.Generate(ctx, sl.contextText, llm.ModelConfig{
		Temperature: sl.character.Temperature,
		MaxTokens:   sl.character.MaxTokens,
	})
	if err != nil {
		log.Printf("turns: generation failed for character %s: %v", sl.character.Name, err)
		resp.Content = fmt.Sprintf("*%s seems lost in thought*", sl.character.Name)
		resp.Mood = types.MoodNeutral
		resp.MoodIntensity = types.DefaultMoodIntensity
		resp.Errored = true
	} else {
		resp.Content = result.Content
		resp.Mood = result.Mood
		resp.MoodIntensity = result.MoodIntensity
	}

	resp.DelayMs = s.delay(index, resp.Content)
	return resp
}

// release removes the batch from the in-flight table if it is still the
// current one for its session.
func (s *Scheduler) release(sessionID string, b *batch) {
	s.mu.Lock()
	if s.batches[sessionID] == b {
		delete(s.batches, sessionID)
	}
	s.mu.Unlock()
}
