package store

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ummon-dev/ummon/internal/entity"
	"github.com/ummon-dev/ummon/internal/logging"
)

// CurrentSchemaVersion is the highest schema version this binary knows how
// to read and write. Open refuses to touch a database whose stored version
// is higher than this (no auto-downgrade).
const CurrentSchemaVersion = 1

// MigrationResult summarizes a migration run.
type MigrationResult struct {
	FromVersion int
	ToVersion   int
	Applied     []int
}

// tableExists reports whether table exists in the sqlite_master catalogue.
func tableExists(db *sql.DB, table string) bool {
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
	return err == nil
}

// columnExists reports whether column exists on table, via PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

// GetSchemaVersion reads the current schema_version row, returning 0 if the
// table does not yet exist (a brand-new database).
func GetSchemaVersion(db *sql.DB) int {
	if !tableExists(db, "schema_version") {
		return 0
	}
	var version int
	if err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return 0
	}
	return version
}

// SetSchemaVersion replaces the single schema_version row.
func SetSchemaVersion(db *sql.DB, version int) error {
	if _, err := db.Exec("CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return err
	}
	if _, err := db.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// RunMigrations brings the database schema up to CurrentSchemaVersion. A
// stored version higher than CurrentSchemaVersion is refused outright: this
// binary never auto-downgrades a newer schema.
func RunMigrations(db *sql.DB) error {
	found := GetSchemaVersion(db)
	if found > CurrentSchemaVersion {
		return &entity.StorageError{
			Op:  "migrate",
			Err: fmt.Errorf("unsupported schema version: found %d, max supported %d", found, CurrentSchemaVersion),
		}
	}
	if found == CurrentSchemaVersion {
		return nil
	}

	logging.Store("migrating schema from version %d to %d", found, CurrentSchemaVersion)
	for v := found; v < CurrentSchemaVersion; v++ {
		migrate, ok := migrations[v+1]
		if !ok {
			continue
		}
		if err := migrate(db); err != nil {
			return fmt.Errorf("migration to v%d failed: %w", v+1, err)
		}
	}
	return SetSchemaVersion(db, CurrentSchemaVersion)
}

// migrations maps target version -> the function that migrates a database
// one version up to it. v1 is the baseline schema created directly by
// Store.initSchema, so there is nothing registered for it; future schema
// changes add an entry here, following the same table/column-existence
// guards as the teacher's own migration pattern.
var migrations = map[int]func(*sql.DB) error{}

// CreateBackup copies the database file to a sibling path before a risky
// migration, returning the backup's path.
func CreateBackup(dbPath string) (string, error) {
	backupPath := fmt.Sprintf("%s.bak.%d", dbPath, time.Now().UnixNano())
	src, err := os.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("open source for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("copy database to backup: %w", err)
	}
	return backupPath, nil
}

// RestoreBackup overwrites dbPath with the contents of backupPath, used to
// roll back a migration that failed partway.
func RestoreBackup(dbPath, backupPath string) error {
	src, err := os.Open(backupPath)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dbPath)
	if err != nil {
		return fmt.Errorf("recreate database file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("restore backup contents: %w", err)
	}
	return nil
}

// RunAllMigrations runs RunMigrations with an automatic backup-and-restore
// if the migration fails partway, for callers that migrate a database file
// directly outside of Open.
func RunAllMigrations(dbPath string) (*MigrationResult, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	from := GetSchemaVersion(db)
	if from >= CurrentSchemaVersion {
		return &MigrationResult{FromVersion: from, ToVersion: from}, nil
	}

	backupPath, err := CreateBackup(dbPath)
	if err != nil {
		return nil, fmt.Errorf("backup before migration: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		if restoreErr := RestoreBackup(dbPath, backupPath); restoreErr != nil {
			return nil, fmt.Errorf("migration failed (%v) and restore failed (%w)", err, restoreErr)
		}
		return nil, fmt.Errorf("migration failed, restored from backup: %w", err)
	}

	applied := make([]int, 0, CurrentSchemaVersion-from)
	for v := from + 1; v <= CurrentSchemaVersion; v++ {
		applied = append(applied, v)
	}
	return &MigrationResult{FromVersion: from, ToVersion: CurrentSchemaVersion, Applied: applied}, nil
}
