package store

// SchemaVersion is the current compiled schema version. A database whose
// kv["schema_version"] exceeds this is refused with icmerr.SchemaMismatch —
// it was written by a newer binary.
const SchemaVersion = 2

// CoreSchema defines the scalar tables: memories, memoirs, concepts,
// relations, and a generic kv table for schema bookkeeping. Modeled on the
// teacher's CoreSchema string (internal/database/schema.go) — one big
// idempotent DDL block run inside a single transaction.
const CoreSchema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

-- =============================================================================
-- MEMORIES TABLE
-- =============================================================================
CREATE TABLE IF NOT EXISTS memories (
	id              TEXT PRIMARY KEY,
	created_at      DATETIME NOT NULL,
	last_accessed   DATETIME NOT NULL,
	last_decayed_at DATETIME NOT NULL,
	access_count    INTEGER NOT NULL DEFAULT 0,
	weight          REAL NOT NULL DEFAULT 1.0 CHECK (weight >= 0.0 AND weight <= 1.0),
	topic           TEXT NOT NULL,
	summary         TEXT NOT NULL,
	raw_excerpt     TEXT,
	keywords        TEXT NOT NULL DEFAULT '[]',
	embedding       BLOB,
	importance      TEXT NOT NULL DEFAULT 'medium' CHECK (importance IN ('critical','high','medium','low')),
	source          TEXT NOT NULL DEFAULT 'manual' CHECK (source IN ('agent-session','conversation','manual')),
	related_ids     TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_memories_topic ON memories(topic);
CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at);
CREATE INDEX IF NOT EXISTS idx_memories_weight ON memories(weight);
CREATE INDEX IF NOT EXISTS idx_memories_importance ON memories(importance);
CREATE INDEX IF NOT EXISTS idx_memories_last_accessed ON memories(last_accessed);

-- =============================================================================
-- MEMOIRS / CONCEPTS / RELATIONS
-- =============================================================================
CREATE TABLE IF NOT EXISTS memoirs (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS concepts (
	id         TEXT PRIMARY KEY,
	memoir_id  TEXT NOT NULL REFERENCES memoirs(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	summary    TEXT,
	labels     TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE (memoir_id, name)
);

CREATE INDEX IF NOT EXISTS idx_concepts_memoir ON concepts(memoir_id);

CREATE TABLE IF NOT EXISTS relations (
	id         TEXT PRIMARY KEY,
	memoir_id  TEXT NOT NULL REFERENCES memoirs(id) ON DELETE CASCADE,
	from_id    TEXT NOT NULL REFERENCES concepts(id) ON DELETE CASCADE,
	to_id      TEXT NOT NULL REFERENCES concepts(id) ON DELETE CASCADE,
	kind       TEXT NOT NULL CHECK (kind IN (
		'part_of','depends_on','related_to','contradicts','refines',
		'alternative_to','caused_by','instance_of','superseded_by'
	)),
	confidence REAL NOT NULL DEFAULT 1.0 CHECK (confidence >= 0.0 AND confidence <= 1.0),
	created_at DATETIME NOT NULL,
	UNIQUE (memoir_id, from_id, to_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_relations_from ON relations(from_id);
CREATE INDEX IF NOT EXISTS idx_relations_to ON relations(to_id);
CREATE INDEX IF NOT EXISTS idx_relations_kind ON relations(kind);
`

// FTS5Schema defines the memories_fts virtual table and its three sync
// triggers. Mirrors the teacher's FTS5Schema (internal/database/schema.go)
// almost exactly — content-less external-content FTS5 table kept coherent
// by insert/update/delete triggers rather than application-level dual
// writes.
const FTS5Schema = `
CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
	id UNINDEXED,
	topic,
	summary,
	raw_excerpt,
	keywords,
	content='memories',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS memories_fts_insert AFTER INSERT ON memories BEGIN
	INSERT INTO memories_fts(rowid, id, topic, summary, raw_excerpt, keywords)
	VALUES (new.rowid, new.id, new.topic, new.summary, new.raw_excerpt, new.keywords);
END;

CREATE TRIGGER IF NOT EXISTS memories_fts_delete AFTER DELETE ON memories BEGIN
	INSERT INTO memories_fts(memories_fts, rowid, id, topic, summary, raw_excerpt, keywords)
	VALUES ('delete', old.rowid, old.id, old.topic, old.summary, old.raw_excerpt, old.keywords);
END;

CREATE TRIGGER IF NOT EXISTS memories_fts_update AFTER UPDATE ON memories BEGIN
	INSERT INTO memories_fts(memories_fts, rowid, id, topic, summary, raw_excerpt, keywords)
	VALUES ('delete', old.rowid, old.id, old.topic, old.summary, old.raw_excerpt, old.keywords);
	INSERT INTO memories_fts(rowid, id, topic, summary, raw_excerpt, keywords)
	VALUES (new.rowid, new.id, new.topic, new.summary, new.raw_excerpt, new.keywords);
END;
`
