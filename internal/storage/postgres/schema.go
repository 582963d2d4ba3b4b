// Package postgres implements the record-store contract on PostgreSQL,
// with optional pgvector-backed semantic memory ordering.
package postgres

// Schema creates all tables used by the PostgreSQL record store. All
// statements are idempotent. The embedding column is added separately by
// MigrationPgvector once the extension is confirmed available.
const Schema = `
CREATE TABLE IF NOT EXISTS characters (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	original_id     TEXT,
	name            TEXT NOT NULL,
	age             INTEGER NOT NULL,
	sex             TEXT NOT NULL DEFAULT '',
	personality     TEXT NOT NULL,
	appearance      TEXT NOT NULL DEFAULT '',
	background      TEXT NOT NULL DEFAULT '',
	avatar          TEXT NOT NULL DEFAULT '',
	color           TEXT NOT NULL DEFAULT '',
	temperature     REAL NOT NULL,
	max_tokens      INTEGER NOT NULL,
	context_window  INTEGER NOT NULL,
	memory_enabled  BOOLEAN NOT NULL DEFAULT TRUE,
	chat_examples   JSONB,
	relationships   JSONB,
	tags            JSONB,
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_characters_user_original
	ON characters(user_id, original_id) WHERE original_id IS NOT NULL;

CREATE INDEX IF NOT EXISTS idx_characters_user_created
	ON characters(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS hidden_defaults (
	user_id      TEXT NOT NULL,
	character_id TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, character_id)
);

CREATE TABLE IF NOT EXISTS personas (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	name        TEXT NOT NULL,
	personality TEXT NOT NULL DEFAULT '',
	interests   JSONB,
	is_active   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_personas_user_active
	ON personas(user_id) WHERE is_active;

CREATE TABLE IF NOT EXISTS scenes (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	description      TEXT NOT NULL,
	context          TEXT NOT NULL,
	atmosphere       TEXT NOT NULL,
	background_image TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMP NOT NULL,
	updated_at       TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS memories (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	character_id     TEXT NOT NULL,
	content          TEXT NOT NULL,
	type             TEXT NOT NULL,
	importance_score REAL NOT NULL DEFAULT 0,
	created_at       TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_pair
	ON memories(user_id, character_id, importance_score DESC);

CREATE TABLE IF NOT EXISTS relationships (
	user_id           TEXT NOT NULL,
	character_id      TEXT NOT NULL,
	relationship_type TEXT NOT NULL,
	familiarity       REAL NOT NULL DEFAULT 0,
	trust             REAL NOT NULL DEFAULT 0,
	emotional_bond    REAL NOT NULL DEFAULT 0,
	interaction_count INTEGER NOT NULL DEFAULT 0,
	updated_at        TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, character_id)
);
`

// MigrationPgvector adds the memory embedding column and its cosine index.
// Applied only when the vector extension is available.
const MigrationPgvector = `
ALTER TABLE memories ADD COLUMN IF NOT EXISTS embedding vector(768);

CREATE INDEX IF NOT EXISTS idx_memories_embedding_cosine
	ON memories USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`
