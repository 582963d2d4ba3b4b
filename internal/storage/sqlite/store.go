// Package sqlite implements the record-store contract on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/troupe/internal/storage"
	"github.com/scrypster/troupe/pkg/types"
)

// Store implements storage.RecordStore using SQLite.
type Store struct {
	db *sql.DB
}

var _ storage.RecordStore = (*Store)(nil)

// New opens a SQLite database, configures WAL mode, and creates the schema.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY under concurrent turns. WAL
	// mode keeps readers from blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %q failed: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for wiring (settings, diagnostics).
func (s *Store) DB() *sql.DB {
	return s.db
}

const characterColumns = `id, user_id, original_id, name, age, sex, personality, appearance,
	background, avatar, color, temperature, max_tokens, context_window,
	memory_enabled, chat_examples, relationships, tags, created_at, updated_at`

// ListOwned returns all characters owned by the user, most-recently-created first.
func (s *Store) ListOwned(ctx context.Context, userID string) ([]types.Character, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+characterColumns+`
		FROM characters
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list owned characters: %w", err)
	}
	defer rows.Close()

	var out []types.Character
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetOwned retrieves one owned character.
func (s *Store) GetOwned(ctx context.Context, userID, id string) (*types.Character, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+characterColumns+`
		FROM characters
		WHERE user_id = ? AND id = ?`, userID, id)
	return scanCharacterRow(row, "get owned character")
}

// GetOwnedByOriginal retrieves the user's override of a stock character.
func (s *Store) GetOwnedByOriginal(ctx context.Context, userID, originalID string) (*types.Character, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+characterColumns+`
		FROM characters
		WHERE user_id = ? AND original_id = ?`, userID, originalID)
	return scanCharacterRow(row, "get override")
}

// UpsertOwned creates or replaces an owned character record.
func (s *Store) UpsertOwned(ctx context.Context, c *types.Character) error {
	if c == nil || c.ID == "" || c.UserID == "" {
		return fmt.Errorf("%w: character id and user_id are required", storage.ErrInvalidInput)
	}

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	examplesJSON, err := marshalJSON(c.ChatExamples)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal chat examples: %w", err)
	}
	relationshipsJSON, err := marshalJSON(c.Relationships)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal relationships: %w", err)
	}
	tagsJSON, err := marshalJSON(c.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO characters (`+characterColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			age = excluded.age,
			sex = excluded.sex,
			personality = excluded.personality,
			appearance = excluded.appearance,
			background = excluded.background,
			avatar = excluded.avatar,
			color = excluded.color,
			temperature = excluded.temperature,
			max_tokens = excluded.max_tokens,
			context_window = excluded.context_window,
			memory_enabled = excluded.memory_enabled,
			chat_examples = excluded.chat_examples,
			relationships = excluded.relationships,
			tags = excluded.tags,
			updated_at = excluded.updated_at`,
		c.ID, c.UserID, nullString(c.OriginalID), c.Name, c.Age, c.Sex, c.Personality,
		c.Appearance, c.Background, c.Avatar, c.Color, c.Temperature, c.MaxTokens,
		c.ContextWindow, boolToInt(c.MemoryEnabled), examplesJSON, relationshipsJSON,
		tagsJSON, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to upsert character: %w", err)
	}
	return nil
}

// DeleteOwned removes an owned character record.
func (s *Store) DeleteOwned(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM characters WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete character: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to read rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// HideDefault records a hidden-default marker. Idempotent.
func (s *Store) HideDefault(ctx context.Context, userID, characterID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hidden_defaults (user_id, character_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, character_id) DO NOTHING`,
		userID, characterID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to hide default: %w", err)
	}
	return nil
}

// HiddenDefaults returns the ids of all stock characters the user has hidden.
func (s *Store) HiddenDefaults(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT character_id FROM hidden_defaults WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list hidden defaults: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan hidden default: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetActivePersona returns the user's active persona.
func (s *Store) GetActivePersona(ctx context.Context, userID string) (*types.Persona, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, personality, interests, is_active, created_at
		FROM personas
		WHERE user_id = ? AND is_active = 1`, userID)

	var p types.Persona
	var interestsJSON sql.NullString
	var active int
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Personality, &interestsJSON, &active, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get active persona: %w", err)
	}
	p.IsActive = active != 0
	if err := unmarshalJSON(interestsJSON, &p.Interests); err != nil {
		return nil, fmt.Errorf("sqlite: failed to unmarshal interests: %w", err)
	}
	return &p, nil
}

// CreatePersona stores a new active persona, deactivating the previous one
// in the same transaction. Old personas stay as soft history.
func (s *Store) CreatePersona(ctx context.Context, p *types.Persona) error {
	if p == nil || p.ID == "" || p.UserID == "" {
		return fmt.Errorf("%w: persona id and user_id are required", storage.ErrInvalidInput)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.IsActive = true

	interestsJSON, err := marshalJSON(p.Interests)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal interests: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE personas SET is_active = 0 WHERE user_id = ? AND is_active = 1`, p.UserID); err != nil {
		return fmt.Errorf("sqlite: failed to deactivate previous persona: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO personas (id, user_id, name, personality, interests, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)`,
		p.ID, p.UserID, p.Name, p.Personality, interestsJSON, p.CreatedAt); err != nil {
		return fmt.Errorf("sqlite: failed to insert persona: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit persona: %w", err)
	}
	return nil
}

// GetScene retrieves a scene by id.
func (s *Store) GetScene(ctx context.Context, id string) (*types.Scene, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, context, atmosphere, background_image, created_at, updated_at
		FROM scenes WHERE id = ?`, id)

	var sc types.Scene
	err := row.Scan(&sc.ID, &sc.Name, &sc.Description, &sc.Context, &sc.Atmosphere,
		&sc.BackgroundImage, &sc.CreatedAt, &sc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get scene: %w", err)
	}
	return &sc, nil
}

// PutScene creates or replaces a scene.
func (s *Store) PutScene(ctx context.Context, sc *types.Scene) error {
	if sc == nil || sc.ID == "" {
		return fmt.Errorf("%w: scene id is required", storage.ErrInvalidInput)
	}
	now := time.Now().UTC()
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = now
	}
	sc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scenes (id, name, description, context, atmosphere, background_image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			context = excluded.context,
			atmosphere = excluded.atmosphere,
			background_image = excluded.background_image,
			updated_at = excluded.updated_at`,
		sc.ID, sc.Name, sc.Description, sc.Context, sc.Atmosphere,
		sc.BackgroundImage, sc.CreatedAt, sc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to put scene: %w", err)
	}
	return nil
}

// ListScenes returns all scenes, most-recently-created first.
func (s *Store) ListScenes(ctx context.Context) ([]types.Scene, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, context, atmosphere, background_image, created_at, updated_at
		FROM scenes ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list scenes: %w", err)
	}
	defer rows.Close()

	var out []types.Scene
	for rows.Next() {
		var sc types.Scene
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.Description, &sc.Context, &sc.Atmosphere,
			&sc.BackgroundImage, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan scene: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ListMemories returns up to limit entries for the pair, most important first.
func (s *Store) ListMemories(ctx context.Context, userID, characterID string, limit int) ([]types.MemoryEntry, error) {
	query := `
		SELECT id, user_id, character_id, content, type, importance_score, created_at
		FROM memories
		WHERE user_id = ? AND character_id = ?
		ORDER BY importance_score DESC, created_at DESC`
	args := []any{userID, characterID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list memories: %w", err)
	}
	defer rows.Close()

	var out []types.MemoryEntry
	for rows.Next() {
		var m types.MemoryEntry
		if err := rows.Scan(&m.ID, &m.UserID, &m.CharacterID, &m.Content, &m.Type,
			&m.Importance, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan memory: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddMemory stores a new memory entry.
func (s *Store) AddMemory(ctx context.Context, m *types.MemoryEntry) error {
	if m == nil || m.ID == "" || m.Content == "" {
		return fmt.Errorf("%w: memory id and content are required", storage.ErrInvalidInput)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (id, user_id, character_id, content, type, importance_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.CharacterID, m.Content, m.Type, m.Importance, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to add memory: %w", err)
	}
	return nil
}

// GetRelationship returns the pair's relationship state.
func (s *Store) GetRelationship(ctx context.Context, userID, characterID string) (*types.RelationshipState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, character_id, relationship_type, familiarity, trust,
		       emotional_bond, interaction_count, updated_at
		FROM relationships
		WHERE user_id = ? AND character_id = ?`, userID, characterID)

	var r types.RelationshipState
	err := row.Scan(&r.UserID, &r.CharacterID, &r.RelationshipType, &r.Familiarity,
		&r.Trust, &r.EmotionalBond, &r.InteractionCount, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get relationship: %w", err)
	}
	return &r, nil
}

// PutRelationship creates or replaces the pair's relationship state.
func (s *Store) PutRelationship(ctx context.Context, r *types.RelationshipState) error {
	if r == nil || r.UserID == "" || r.CharacterID == "" {
		return fmt.Errorf("%w: relationship user_id and character_id are required", storage.ErrInvalidInput)
	}
	r.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relationships (user_id, character_id, relationship_type, familiarity,
			trust, emotional_bond, interaction_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, character_id) DO UPDATE SET
			relationship_type = excluded.relationship_type,
			familiarity = excluded.familiarity,
			trust = excluded.trust,
			emotional_bond = excluded.emotional_bond,
			interaction_count = excluded.interaction_count,
			updated_at = excluded.updated_at`,
		r.UserID, r.CharacterID, r.RelationshipType, r.Familiarity, r.Trust,
		r.EmotionalBond, r.InteractionCount, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to put relationship: %w", err)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for character scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharacter(row rowScanner) (*types.Character, error) {
	var c types.Character
	var originalID sql.NullString
	var memoryEnabled int
	var examplesJSON, relationshipsJSON, tagsJSON sql.NullString

	err := row.Scan(&c.ID, &c.UserID, &originalID, &c.Name, &c.Age, &c.Sex,
		&c.Personality, &c.Appearance, &c.Background, &c.Avatar, &c.Color,
		&c.Temperature, &c.MaxTokens, &c.ContextWindow, &memoryEnabled,
		&examplesJSON, &relationshipsJSON, &tagsJSON, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.OriginalID = originalID.String
	c.MemoryEnabled = memoryEnabled != 0
	if err := unmarshalJSON(examplesJSON, &c.ChatExamples); err != nil {
		return nil, fmt.Errorf("sqlite: failed to unmarshal chat examples: %w", err)
	}
	if err := unmarshalJSON(relationshipsJSON, &c.Relationships); err != nil {
		return nil, fmt.Errorf("sqlite: failed to unmarshal relationships: %w", err)
	}
	if err := unmarshalJSON(tagsJSON, &c.Tags); err != nil {
		return nil, fmt.Errorf("sqlite: failed to unmarshal tags: %w", err)
	}
	return &c, nil
}

func scanCharacterRow(row *sql.Row, op string) (*types.Character, error) {
	c, err := scanCharacter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to %s: %w", op, err)
	}
	return c, nil
}

func marshalJSON(v any) (sql.NullString, error) {
	switch vv := v.(type) {
	case []types.ChatExample:
		if len(vv) == 0 {
			return sql.NullString{}, nil
		}
	case []types.CharacterRelationship:
		if len(vv) == 0 {
			return sql.NullString{}, nil
		}
	case []string:
		if len(vv) == 0 {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalJSON(src sql.NullString, dst any) error {
	if !src.Valid || src.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(src.String), dst)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
