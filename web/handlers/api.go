package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/troupe/internal/config"
	"github.com/scrypster/troupe/internal/roster"
	"github.com/scrypster/troupe/internal/storage"
	"github.com/scrypster/troupe/internal/turns"
	"github.com/scrypster/troupe/pkg/types"
)

// defaultUserID identifies requests that carry no X-User-ID header. The
// teacher deployment is single-user; multi-user setups put a real id in the
// header.
const defaultUserID = "local"

// CharacterRoster is the identity-resolution surface the API exposes.
type CharacterRoster interface {
	ListVisible(ctx context.Context, userID string) ([]types.Character, error)
	Resolve(ctx context.Context, userID, characterID string) (*types.Character, error)
	Create(ctx context.Context, userID string, draft *types.CharacterDraft) (*types.Character, error)
	ResolveForEditing(ctx context.Context, userID, characterID string, edits *types.CharacterDraft) (*types.Character, error)
	Delete(ctx context.Context, userID, characterID string) (roster.DeleteOutcome, error)
}

// TurnSubmitter is the scheduling surface the API exposes.
type TurnSubmitter interface {
	SubmitTurn(ctx context.Context, req turns.SubmitRequest) (string, error)
	CancelBatch(sessionID string) bool
}

// CatalogInfo reports the current stock catalog size for GET /api/config.
type CatalogInfo interface {
	Len() int
}

// APIHandlers contains HTTP handlers for the REST API.
type APIHandlers struct {
	roster    CharacterRoster
	store     storage.RecordStore
	scheduler TurnSubmitter
	catalog   CatalogInfo
	config    *config.Config
}

// NewAPIHandlers creates a new APIHandlers instance.
func NewAPIHandlers(r CharacterRoster, store storage.RecordStore, scheduler TurnSubmitter, catalog CatalogInfo, cfg *config.Config) *APIHandlers {
	return &APIHandlers{
		roster:    r,
		store:     store,
		scheduler: scheduler,
		catalog:   catalog,
		config:    cfg,
	}
}

// userID extracts the requesting user's id from the X-User-ID header.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return defaultUserID
}

// ListCharacters handles GET /api/characters - the user's visible set:
// owned characters first, then unhidden stock entries in catalog order.
func (h *APIHandlers) ListCharacters(w http.ResponseWriter, r *http.Request) {
	chars, err := h.roster.ListVisible(r.Context(), userID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list characters", err)
		return
	}
	respondJSON(w, http.StatusOK, chars)
}

// GetCharacter handles GET /api/characters/{id}.
func (h *APIHandlers) GetCharacter(w http.ResponseWriter, r *http.Request) {
	c, err := h.roster.Resolve(r.Context(), userID(r), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "character not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to resolve character", err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// CreateCharacter handles POST /api/characters - create a new owned
// character from a draft.
func (h *APIHandlers) CreateCharacter(w http.ResponseWriter, r *http.Request) {
	var draft types.CharacterDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	c, err := h.roster.Create(r.Context(), userID(r), &draft)
	if respondIfValidationFailed(w, err) {
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create character", err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// UpdateCharacter handles PUT /api/characters/{id} - edit a character.
// Editing a stock character creates an owned override (copy-on-write) and
// hides the original from this user; editing an owned record updates it in
// place.
func (h *APIHandlers) UpdateCharacter(w http.ResponseWriter, r *http.Request) {
	var edits types.CharacterDraft
	if err := json.NewDecoder(r.Body).Decode(&edits); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	c, err := h.roster.ResolveForEditing(r.Context(), userID(r), r.PathValue("id"), &edits)
	if respondIfValidationFailed(w, err) {
		return
	}
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "character not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update character", err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// DeleteCharacter handles DELETE /api/characters/{id}. Owned records are
// deleted; stock entries are hidden for this user and stay in the shared
// catalog for everyone else.
func (h *APIHandlers) DeleteCharacter(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.roster.Delete(r.Context(), userID(r), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "character not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete character", err)
		return
	}
	respondJSON(w, http.StatusOK, DeleteCharacterResponse{Outcome: string(outcome)})
}

// ValidateCharacter handles POST /api/characters/validate - dry-run
// validation of a character draft. Always returns 200 with the full list of
// violations so clients can show them all at once.
func (h *APIHandlers) ValidateCharacter(w http.ResponseWriter, r *http.Request) {
	var draft types.CharacterDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := types.ValidateCharacterDraft(&draft); err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			respondJSON(w, http.StatusOK, ValidationResponse{Valid: false, Errors: verr.Errors})
			return
		}
		respondError(w, http.StatusInternalServerError, "validation failed", err)
		return
	}
	respondJSON(w, http.StatusOK, ValidationResponse{Valid: true})
}

// GetActivePersona handles GET /api/personas/active.
func (h *APIHandlers) GetActivePersona(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetActivePersona(r.Context(), userID(r))
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no active persona", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load persona", err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// CreatePersona handles POST /api/personas. The new persona becomes active
// and the previous active one is kept as inactive history.
func (h *APIHandlers) CreatePersona(w http.ResponseWriter, r *http.Request) {
	var sub PersonaSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if sub.Name == "" {
		respondJSON(w, http.StatusUnprocessableEntity, ValidationResponse{
			Valid:  false,
			Errors: []string{"name must not be empty"},
		})
		return
	}

	p := &types.Persona{
		ID:          uuid.NewString(),
		UserID:      userID(r),
		Name:        sub.Name,
		Personality: sub.Personality,
		Interests:   sub.Interests,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.store.CreatePersona(r.Context(), p); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create persona", err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// ListScenes handles GET /api/scenes.
func (h *APIHandlers) ListScenes(w http.ResponseWriter, r *http.Request) {
	scenes, err := h.store.ListScenes(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list scenes", err)
		return
	}
	respondJSON(w, http.StatusOK, scenes)
}

// GetScene handles GET /api/scenes/{id}.
func (h *APIHandlers) GetScene(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.GetScene(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "scene not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load scene", err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

// CreateScene handles POST /api/scenes.
func (h *APIHandlers) CreateScene(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sceneFromBody(w, r)
	if !ok {
		return
	}
	s.ID = uuid.NewString()
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt

	if err := h.store.PutScene(r.Context(), s); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create scene", err)
		return
	}
	respondJSON(w, http.StatusCreated, s)
}

// UpdateScene handles PUT /api/scenes/{id}.
func (h *APIHandlers) UpdateScene(w http.ResponseWriter, r *http.Request) {
	existing, err := h.store.GetScene(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "scene not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load scene", err)
		return
	}

	s, ok := h.sceneFromBody(w, r)
	if !ok {
		return
	}
	s.ID = existing.ID
	s.CreatedAt = existing.CreatedAt
	s.UpdatedAt = time.Now().UTC()

	if err := h.store.PutScene(r.Context(), s); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update scene", err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

// sceneFromBody decodes, normalizes, and validates a scene submission. On
// failure the response has already been written and ok is false.
func (h *APIHandlers) sceneFromBody(w http.ResponseWriter, r *http.Request) (*types.Scene, bool) {
	var draft types.SceneDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return nil, false
	}
	draft.Normalize()
	if err := types.ValidateSceneDraft(&draft); respondIfValidationFailed(w, err) {
		return nil, false
	}
	return &types.Scene{
		Name:            draft.Name,
		Description:     draft.Description,
		Context:         draft.Context,
		Atmosphere:      draft.Atmosphere,
		BackgroundImage: draft.BackgroundImage,
	}, true
}

// SubmitTurn handles POST /api/sessions/{session}/turns. The turn is
// accepted asynchronously: generation runs in the background and the
// completed turn is delivered over the session's WebSocket.
func (h *APIHandlers) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	var sub TurnSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	turnID, err := h.scheduler.SubmitTurn(r.Context(), turns.SubmitRequest{
		SessionID:          r.PathValue("session"),
		UserID:             userID(r),
		UserMessage:        sub.UserMessage,
		ActiveCharacterIDs: sub.ActiveCharacterIDs,
		SceneID:            sub.SceneID,
	})
	switch {
	case errors.Is(err, turns.ErrNoActiveCharacters):
		respondError(w, http.StatusBadRequest, "no active characters", nil)
	case errors.Is(err, turns.ErrConflictInFlight):
		respondError(w, http.StatusConflict, "a turn is already in flight for this session", nil)
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, "referenced character or scene not found", err)
	case errors.Is(err, turns.ErrStoreUnavailable):
		respondError(w, http.StatusServiceUnavailable, "record store unavailable", err)
	case err != nil:
		respondError(w, http.StatusInternalServerError, "failed to submit turn", err)
	default:
		respondJSON(w, http.StatusAccepted, TurnAccepted{TurnID: turnID, Status: "awaiting_responses"})
	}
}

// CancelTurn handles DELETE /api/sessions/{session}/turns - discard the
// session's in-flight turn, if any.
func (h *APIHandlers) CancelTurn(w http.ResponseWriter, r *http.Request) {
	cancelled := h.scheduler.CancelBatch(r.PathValue("session"))
	respondJSON(w, http.StatusOK, CancelTurnResponse{Cancelled: cancelled})
}

// GetConfig handles GET /api/config - current configuration with masked
// secrets.
func (h *APIHandlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	size := 0
	if h.catalog != nil {
		size = h.catalog.Len()
	}
	respondJSON(w, http.StatusOK, ToConfigResponse(h.config, size))
}

// respondIfValidationFailed writes a 422 with the full violation list when
// err is a ValidationError. Reports whether it handled the error.
func respondIfValidationFailed(w http.ResponseWriter, err error) bool {
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusUnprocessableEntity, ValidationResponse{
			Valid:  false,
			Errors: verr.Errors,
		})
		return true
	}
	return false
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent; log instead of writing a second response.
		log.Printf("failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}

	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}

	respondJSON(w, statusCode, errResp)
}
