package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/logging"
)

var log = logging.GetLogger("store")

// RunMigrations brings the database forward to SchemaVersion, applying
// numbered steps in order. Modeled on the teacher's (*Database).RunMigrations
// ladder (internal/database/migrations.go): read the current version, then
// `if version < N { applyN(); version = N }` for every step above it. Every
// step must be safe to re-run (IF NOT EXISTS / tolerant of "already exists").
func (s *Store) RunMigrations() error {
	version, err := s.schemaVersion()
	if err != nil {
		return icmerr.Wrap(icmerr.StorageFailure, "read schema version", err)
	}

	if version > SchemaVersion {
		return icmerr.Newf(icmerr.SchemaMismatch,
			"database schema version %d is newer than supported version %d", version, SchemaVersion)
	}

	if version < 2 {
		if err := migrateV1ToV2(s.db); err != nil {
			return err
		}
		version = 2
	}

	return s.setSchemaVersion(SchemaVersion)
}

// migrateV1ToV2 adds last_decayed_at, the per-memory anchor lifecycle.Decay
// needs to compute elapsed days since a memory's own last decay tick rather
// than since it was last accessed. Tolerant of "duplicate column" since a
// fresh database already has the column via InitSchema's CoreSchema.
func migrateV1ToV2(db *sql.DB) error {
	_, err := db.Exec(`ALTER TABLE memories ADD COLUMN last_decayed_at DATETIME`)
	if err != nil && !isDuplicateColumn(err) {
		return icmerr.Wrap(icmerr.StorageFailure, "add last_decayed_at column", err)
	}
	if _, err := db.Exec(`UPDATE memories SET last_decayed_at = last_accessed WHERE last_decayed_at IS NULL`); err != nil {
		return icmerr.Wrap(icmerr.StorageFailure, "backfill last_decayed_at", err)
	}
	return nil
}

func isDuplicateColumn(err error) bool {
	return strings.Contains(err.Error(), "duplicate column name")
}

func (s *Store) schemaVersion() (int, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = 'schema_version'`).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil {
		return 0, err
	}
	return v, nil
}

func (s *Store) setSchemaVersion(v int) error {
	_, err := s.db.Exec(
		`INSERT INTO kv(key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fmt.Sprintf("%d", v),
	)
	return err
}
