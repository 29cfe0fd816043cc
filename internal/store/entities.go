package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ummon-dev/ummon/internal/entity"
	"github.com/ummon-dev/ummon/internal/logging"
)

// entityPayload is the JSON-encoded "data" column: everything about an
// Entity not already broken out into its own indexed column.
type entityPayload struct {
	Visibility  entity.Visibility   `json:"visibility,omitempty"`
	Signature   string              `json:"signature,omitempty"`
	Parameters  []entity.Parameter  `json:"parameters,omitempty"`
	ReturnType  string              `json:"return_type,omitempty"`
	Placeholder bool                `json:"placeholder,omitempty"`
	Location    *entity.Location    `json:"location,omitempty"`
	Metadata    map[string]string   `json:"metadata,omitempty"`
}

func encodeEntity(e entity.Entity) (data string, locationStr, filePath string, err error) {
	payload := entityPayload{
		Visibility:  e.Visibility,
		Signature:   e.Signature,
		Parameters:  e.Parameters,
		ReturnType:  e.ReturnType,
		Placeholder: e.Placeholder,
		Location:    e.Location,
		Metadata:    e.Metadata,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal entity payload: %w", err)
	}
	if e.Location != nil {
		filePath = e.Location.FilePath
		locationStr = e.Location.String()
	}
	return string(raw), locationStr, filePath, nil
}

func decodeEntityRow(id entity.ID, name, kind string, filePath, location, documentation, containing sql.NullString, data string) (entity.Entity, error) {
	var payload entityPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return entity.Entity{}, fmt.Errorf("unmarshal entity payload for %s: %w", id, err)
	}
	e := entity.Entity{
		ID:          id,
		Name:        name,
		Kind:        entity.Kind(kind),
		Visibility:  payload.Visibility,
		Signature:   payload.Signature,
		Parameters:  payload.Parameters,
		ReturnType:  payload.ReturnType,
		Placeholder: payload.Placeholder,
		Location:    payload.Location,
		Metadata:    payload.Metadata,
	}
	if documentation.Valid {
		e.Documentation = documentation.String
	}
	if containing.Valid {
		e.ContainingEntity = entity.ID(containing.String)
	}
	if e.Location == nil && filePath.Valid && filePath.String != "" {
		e.Location = &entity.Location{FilePath: filePath.String}
	}
	return e, nil
}

// SaveEntity upserts an entity by id. Idempotent.
func (s *Store) SaveEntity(e entity.Entity) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrInvalid, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveEntityLocked(s.db, e)
}

func (s *Store) saveEntityLocked(exec execer, e entity.Entity) error {
	data, location, filePath, err := encodeEntity(e)
	if err != nil {
		return err
	}
	_, err = exec.Exec(
		`INSERT OR REPLACE INTO entities (id, name, kind, file_path, location, documentation, containing_entity, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.ID), e.Name, string(e.Kind), nullableString(filePath), nullableString(location),
		nullableString(e.Documentation), nullableString(string(e.ContainingEntity)), data,
	)
	if err != nil {
		return &entity.StorageError{Op: "save_entity", Err: err}
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// LoadEntity loads a single entity by id.
func (s *Store) LoadEntity(id entity.ID) (entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT id, name, kind, file_path, location, documentation, containing_entity, data
		 FROM entities WHERE id = ?`, string(id))
	var rid, name, kind, data string
	var filePath, location, documentation, containing sql.NullString
	if err := row.Scan(&rid, &name, &kind, &filePath, &location, &documentation, &containing, &data); err != nil {
		if err == sql.ErrNoRows {
			return entity.Entity{}, entity.ErrNotFound
		}
		return entity.Entity{}, &entity.StorageError{Op: "load_entity", Err: err}
	}
	return decodeEntityRow(entity.ID(rid), name, kind, filePath, location, documentation, containing, data)
}

// LoadEntities returns a full snapshot of all entities. Ordering is not
// guaranteed to be stable.
func (s *Store) LoadEntities() ([]entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadEntitiesLocked("SELECT id, name, kind, file_path, location, documentation, containing_entity, data FROM entities")
}

func (s *Store) loadEntitiesLocked(query string, args ...interface{}) ([]entity.Entity, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &entity.StorageError{Op: "load_entities", Err: err}
	}
	defer rows.Close()

	var out []entity.Entity
	for rows.Next() {
		var rid, name, kind, data string
		var filePath, location, documentation, containing sql.NullString
		if err := rows.Scan(&rid, &name, &kind, &filePath, &location, &documentation, &containing, &data); err != nil {
			logging.Get(logging.CategoryStore).Warn("entity row scan failed: %v", err)
			continue
		}
		e, err := decodeEntityRow(entity.ID(rid), name, kind, filePath, location, documentation, containing, data)
		if err != nil {
			logging.Get(logging.CategoryStore).Warn("entity decode failed: %v", err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// QueryEntitiesByKind returns entities of the given kind, optionally
// filtered by a parameterised SQL condition appended with AND.
func (s *Store) QueryEntitiesByKind(kind entity.Kind, conditionSQL string, params []interface{}) ([]entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, name, kind, file_path, location, documentation, containing_entity, data FROM entities WHERE kind = ?"
	args := append([]interface{}{string(kind)}, params...)
	if conditionSQL != "" {
		query += " AND " + conditionSQL
	}
	return s.loadEntitiesLocked(query, args...)
}

// QueryEntitiesByFile returns every entity whose file_path matches exactly,
// regardless of kind.
func (s *Store) QueryEntitiesByFile(filePath string) ([]entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadEntitiesLocked(
		"SELECT id, name, kind, file_path, location, documentation, containing_entity, data FROM entities WHERE file_path = ?",
		filePath,
	)
}

// RemoveByFiles deletes every entity whose file_path matches one of paths,
// then cascade-deletes any relationship whose source or target is among
// the removed entities. Runs as one transaction.
func (s *Store) RemoveByFiles(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return &entity.StorageError{Op: "remove_by_files", Err: err}
	}
	defer tx.Rollback()

	placeholders := make([]string, len(paths))
	args := make([]interface{}, len(paths))
	for i, p := range paths {
		placeholders[i] = "?"
		args[i] = p
	}
	inClause := "(" + joinPlaceholders(placeholders) + ")"

	idRows, err := tx.Query("SELECT id FROM entities WHERE file_path IN "+inClause, args...)
	if err != nil {
		return &entity.StorageError{Op: "remove_by_files", Err: err}
	}
	var ids []string
	for idRows.Next() {
		var id string
		if err := idRows.Scan(&id); err == nil {
			ids = append(ids, id)
		}
	}
	idRows.Close()

	if _, err := tx.Exec("DELETE FROM entities WHERE file_path IN "+inClause, args...); err != nil {
		return &entity.StorageError{Op: "remove_by_files", Err: err}
	}

	if len(ids) > 0 {
		idPlaceholders := make([]string, len(ids))
		idArgs := make([]interface{}, len(ids))
		for i, id := range ids {
			idPlaceholders[i] = "?"
			idArgs[i] = id
		}
		idIn := "(" + joinPlaceholders(idPlaceholders) + ")"
		relArgs := append(append([]interface{}{}, idArgs...), idArgs...)
		if _, err := tx.Exec(
			"DELETE FROM relationships WHERE source_id IN "+idIn+" OR target_id IN "+idIn, relArgs...,
		); err != nil {
			return &entity.StorageError{Op: "remove_by_files", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &entity.StorageError{Op: "remove_by_files", Err: err}
	}
	logging.Store("removed entities for %d files", len(paths))
	return nil
}

// Purge empties both tables, leaving the schema intact.
func (s *Store) Purge() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return &entity.StorageError{Op: "purge", Err: err}
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM relationships"); err != nil {
		return &entity.StorageError{Op: "purge", Err: err}
	}
	if _, err := tx.Exec("DELETE FROM entities"); err != nil {
		return &entity.StorageError{Op: "purge", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &entity.StorageError{Op: "purge", Err: err}
	}
	logging.Store("store purged")
	return nil
}

func joinPlaceholders(ph []string) string {
	out := ""
	for i, p := range ph {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}
