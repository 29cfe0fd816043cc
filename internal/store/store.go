// Package store implements the persistent entity/relationship store (C2):
// an embedded SQLite database with a migration-versioned schema, CRUD and
// bulk transactional writes, and typed row-to-entity decoding.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ummon-dev/ummon/internal/entity"
	"github.com/ummon-dev/ummon/internal/logging"

	_ "github.com/mattn/go-sqlite3"
)

// Direction constrains a find_paths traversal to outbound edges, inbound
// edges, or both.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
	DirectionBoth     Direction = "both"
)

// Reached is one destination found by FindPaths: the id reached and the
// minimum number of hops needed to reach it.
type Reached struct {
	ID    entity.ID
	Depth int
}

// Store is the SQLite-backed persistent store. A single write connection is
// held for the process lifetime; reads take a short-lived RLock around the
// same *sql.DB (database/sql already pools read connections internally).
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open opens or creates the database at path, running any pending
// migrations. Returns a *entity.StorageError (op "open") wrapping the
// migration's "unsupported schema version" error if the file exists but
// carries a schema version newer than this binary supports (never
// auto-downgrades).
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &entity.StorageError{Op: "open", Err: fmt.Errorf("create directory: %w", err)}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &entity.StorageError{Op: "open", Err: err}
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, &entity.StorageError{Op: "open", Err: err}
	}

	logging.Store("store opened at %s", path)
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			file_path TEXT,
			location TEXT,
			documentation TEXT,
			containing_entity TEXT,
			data TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_entity_name ON entities(name);
		CREATE INDEX IF NOT EXISTS idx_entity_kind ON entities(kind);
		CREATE INDEX IF NOT EXISTS idx_entity_file_path ON entities(file_path);

		CREATE TABLE IF NOT EXISTS relationships (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			weight REAL NOT NULL DEFAULT 1.0,
			metadata TEXT,
			FOREIGN KEY(source_id) REFERENCES entities(id),
			FOREIGN KEY(target_id) REFERENCES entities(id)
		);
		CREATE INDEX IF NOT EXISTS idx_rel_source ON relationships(source_id);
		CREATE INDEX IF NOT EXISTS idx_rel_target ON relationships(target_id);
		CREATE INDEX IF NOT EXISTS idx_rel_kind ON relationships(kind);
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return RunMigrations(s.db)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	logging.Store("closing store")
	return s.db.Close()
}

// DB returns the underlying *sql.DB, for callers (migrate command, tests)
// that need direct access.
func (s *Store) DB() *sql.DB { return s.db }
