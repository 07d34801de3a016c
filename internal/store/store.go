package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/icm-memory/icm/internal/icmerr"
)

// Store wraps the SQLite connection backing one ICM database file. One
// writer connection, WAL mode, matching the teacher's Database type
// (internal/database/database.go) and its SetMaxOpenConns(1) writer-path
// discipline.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// OpenBackend is Open preceded by a backend check. "turso" is accepted by
// pkg/config's validation (spec.md §6 names store.url/auth_token as
// supported config surface) but no libsql/Turso driver is part of ICM's
// dependency stack, so it's rejected here with a clear Unavailable rather
// than silently falling through to a local sqlite file.
func OpenBackend(backend, path string) (*Store, error) {
	if backend != "sqlite" {
		return nil, icmerr.Newf(icmerr.Unavailable, "store backend %q is not supported by this build (only sqlite)", backend)
	}
	return Open(path)
}

// Open creates the parent directory if needed, opens the database with
// foreign keys and WAL mode enabled, and verifies connectivity.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, icmerr.Wrap(icmerr.StorageFailure, "create database directory", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, icmerr.Wrap(icmerr.StorageFailure, "open database", err)
	}

	// A single connection avoids SQLITE_BUSY under WAL. It serves reads as
	// well as writes: there is no separate reader pool, so queries run one
	// at a time on it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, icmerr.Wrap(icmerr.StorageFailure, "ping database", err)
	}

	return &Store{db: db, path: path}, nil
}

// InitSchema creates the core tables, the FTS5 virtual table, and seeds the
// embedding dimension if this is a fresh database. Mirrors the teacher's
// InitSchema: one transaction, FTS5 failures only logged (some sqlite3
// builds omit FTS5), then RunMigrations stamps the schema version.
func (s *Store) InitSchema(embeddingDim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return icmerr.Wrap(icmerr.StorageFailure, "begin schema transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(CoreSchema); err != nil {
		return icmerr.Wrap(icmerr.StorageFailure, "create core schema", err)
	}

	if _, err := tx.Exec(FTS5Schema); err != nil {
		log.Warn("fts5 schema unavailable, falling back to substring search", "error", err)
	}

	var existing string
	err = tx.QueryRow(`SELECT value FROM kv WHERE key = 'embedding_dimension'`).Scan(&existing)
	if err == sql.ErrNoRows {
		if _, err := tx.Exec(
			`INSERT INTO kv(key, value) VALUES ('embedding_dimension', ?)`,
			fmt.Sprintf("%d", embeddingDim),
		); err != nil {
			return icmerr.Wrap(icmerr.StorageFailure, "seed embedding dimension", err)
		}
	} else if err != nil {
		return icmerr.Wrap(icmerr.StorageFailure, "read embedding dimension", err)
	}

	if err := tx.Commit(); err != nil {
		return icmerr.Wrap(icmerr.StorageFailure, "commit schema transaction", err)
	}

	return s.RunMigrations()
}

// EmbeddingDimension returns the dimension fixed for this database at
// InitSchema time. Embeddings of a different length are rejected by
// PutMemory/UpdateMemory — spec.md requires a single fixed dimension per
// database.
func (s *Store) EmbeddingDimension() (int, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = 'embedding_dimension'`).Scan(&raw)
	if err != nil {
		return 0, icmerr.Wrap(icmerr.StorageFailure, "read embedding dimension", err)
	}
	var dim int
	if _, err := fmt.Sscanf(raw, "%d", &dim); err != nil {
		return 0, icmerr.Wrap(icmerr.StorageFailure, "parse embedding dimension", err)
	}
	return dim, nil
}

// LastDecayAt returns the last time the lifecycle manager ran a sweep,
// zero time if it never has.
func (s *Store) LastDecayAt() (time.Time, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = 'last_decay_at'`).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, icmerr.Wrap(icmerr.StorageFailure, "read last decay time", err)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, icmerr.Wrap(icmerr.StorageFailure, "parse last decay time", err)
	}
	return t, nil
}

// SetLastDecayAt records the instant a decay sweep completed.
func (s *Store) SetLastDecayAt(t time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO kv(key, value) VALUES ('last_decay_at', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		t.Format(time.RFC3339Nano),
	)
	if err != nil {
		return icmerr.Wrap(icmerr.StorageFailure, "write last decay time", err)
	}
	return nil
}

// DB exposes the underlying connection for packages (retrieval, lifecycle,
// graph) that need direct query access beyond the CRUD methods here.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the filesystem path this store was opened against.
func (s *Store) Path() string { return s.path }

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}
