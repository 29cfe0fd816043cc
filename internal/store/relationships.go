package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ummon-dev/ummon/internal/entity"
	"github.com/ummon-dev/ummon/internal/logging"
)

func decodeRelationshipRow(id, sourceID, targetID, kind string, weight float64, metadataJSON sql.NullString) (entity.Relationship, error) {
	r := entity.Relationship{
		ID:       entity.ID(id),
		SourceID: entity.ID(sourceID),
		TargetID: entity.ID(targetID),
		Kind:     entity.RelationshipKind(kind),
		Weight:   weight,
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &r.Metadata); err != nil {
			return r, fmt.Errorf("unmarshal relationship metadata for %s: %w", id, err)
		}
	}
	return r, nil
}

// SaveRelationship upserts a relationship by id. Does not verify that
// source/target exist: foreign keys are advisory so writes stay idempotent
// across re-indexing orders.
func (s *Store) SaveRelationship(r entity.Relationship) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrInvalid, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveRelationshipLocked(s.db, r)
}

func (s *Store) saveRelationshipLocked(exec execer, r entity.Relationship) error {
	var metaJSON string
	if len(r.Metadata) > 0 {
		raw, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal relationship metadata: %w", err)
		}
		metaJSON = string(raw)
	}
	_, err := exec.Exec(
		`INSERT OR REPLACE INTO relationships (id, source_id, target_id, kind, weight, metadata)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(r.ID), string(r.SourceID), string(r.TargetID), string(r.Kind), r.Weight, nullableString(metaJSON),
	)
	if err != nil {
		return &entity.StorageError{Op: "save_relationship", Err: err}
	}
	return nil
}

// SaveBatch writes entities then relationships in a single transaction,
// all-or-nothing. A subsequent reader observes either the full batch or
// none of it.
func (s *Store) SaveBatch(entities []entity.Entity, relationships []entity.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryStore, "SaveBatch")
	defer timer.Stop()

	tx, err := s.db.Begin()
	if err != nil {
		return &entity.StorageError{Op: "save_batch", Err: err}
	}
	defer tx.Rollback()

	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("%w: %v", entity.ErrInvalid, err)
		}
		if err := s.saveEntityLocked(tx, e); err != nil {
			return err
		}
	}
	for _, r := range relationships {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%w: %v", entity.ErrInvalid, err)
		}
		if err := s.saveRelationshipLocked(tx, r); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return &entity.StorageError{Op: "save_batch", Err: err}
	}
	logging.Store("save_batch committed: %d entities, %d relationships", len(entities), len(relationships))
	return nil
}

// LoadRelationships returns a full snapshot of all relationships.
func (s *Store) LoadRelationships() ([]entity.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadRelationshipsLocked("SELECT id, source_id, target_id, kind, weight, metadata FROM relationships")
}

func (s *Store) loadRelationshipsLocked(query string, args ...interface{}) ([]entity.Relationship, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &entity.StorageError{Op: "load_relationships", Err: err}
	}
	defer rows.Close()

	var out []entity.Relationship
	for rows.Next() {
		var id, sourceID, targetID, kind string
		var weight float64
		var metadata sql.NullString
		if err := rows.Scan(&id, &sourceID, &targetID, &kind, &weight, &metadata); err != nil {
			logging.Get(logging.CategoryStore).Warn("relationship row scan failed: %v", err)
			continue
		}
		r, err := decodeRelationshipRow(id, sourceID, targetID, kind, weight, metadata)
		if err != nil {
			logging.Get(logging.CategoryStore).Warn("relationship decode failed: %v", err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// queryEdgesLocked fetches the relationship rows leaving or entering id,
// assuming the caller already holds at least s.mu.RLock(). Exists to avoid
// nested RLock acquisition from FindPaths, which can deadlock against a
// pending writer.
func (s *Store) queryEdgesLocked(id entity.ID, relKind entity.RelationshipKind, direction Direction) ([]entity.Relationship, error) {
	var clauses []string
	var args []interface{}

	switch direction {
	case DirectionOutbound:
		clauses = append(clauses, "source_id = ?")
		args = append(args, string(id))
	case DirectionInbound:
		clauses = append(clauses, "target_id = ?")
		args = append(args, string(id))
	default:
		clauses = append(clauses, "(source_id = ? OR target_id = ?)")
		args = append(args, string(id), string(id))
	}
	if relKind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(relKind))
	}

	query := "SELECT id, source_id, target_id, kind, weight, metadata FROM relationships WHERE " + joinAnd(clauses)
	return s.loadRelationshipsLocked(query, args...)
}

func joinAnd(clauses []string) string {
	out := ""
	for i, c := range clauses {
		if i > 0 {
			out += " AND "
		}
		out += c
	}
	return out
}

// FindPaths performs a breadth-first search from `from`, following only
// edges of relKind (or all kinds, if unset), constrained by direction, and
// stopping at maxDepth. Returns every reached id together with its minimum
// depth. When to is set, only that destination is reported (if reached).
// When targetKind is set, reported vertices are additionally filtered to
// that kind via a lookup against the entities table.
//
// from itself is never reported: depth 0 means "the starting vertex",
// which FindPaths treats as already visited before the search begins,
// matching the zero-length-path convention used by the in-memory graph's
// DFS (see internal/graph).
func (s *Store) FindPaths(from entity.ID, to *entity.ID, targetKind *entity.Kind, relKind entity.RelationshipKind, maxDepth int, direction Direction) ([]Reached, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	timer := logging.StartTimer(logging.CategoryStore, "FindPaths")
	defer timer.Stop()

	if maxDepth <= 0 {
		maxDepth = 1
	}

	type queueItem struct {
		id    entity.ID
		depth int
	}

	visited := map[entity.ID]int{from: 0}
	queue := []queueItem{{id: from, depth: 0}}
	var reached []Reached

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth > 0 {
			reached = append(reached, Reached{ID: cur.id, Depth: cur.depth})
		}
		if cur.depth >= maxDepth {
			continue
		}

		edges, err := s.queryEdgesLocked(cur.id, relKind, direction)
		if err != nil {
			continue
		}
		for _, e := range edges {
			var next entity.ID
			switch {
			case e.SourceID == cur.id && (direction == DirectionOutbound || direction == DirectionBoth):
				next = e.TargetID
			case e.TargetID == cur.id && (direction == DirectionInbound || direction == DirectionBoth):
				next = e.SourceID
			default:
				continue
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = cur.depth + 1
			queue = append(queue, queueItem{id: next, depth: cur.depth + 1})
		}
	}

	if to != nil {
		filtered := reached[:0]
		for _, r := range reached {
			if r.ID == *to {
				filtered = append(filtered, r)
			}
		}
		reached = filtered
	}
	if targetKind != nil {
		filtered := make([]Reached, 0, len(reached))
		for _, r := range reached {
			e, err := s.loadEntityUnlocked(r.ID)
			if err == nil && e.Kind == *targetKind {
				filtered = append(filtered, r)
			}
		}
		reached = filtered
	}

	logging.StoreDebug("find_paths from=%s reached=%d nodes", from, len(reached))
	return reached, nil
}

func (s *Store) loadEntityUnlocked(id entity.ID) (entity.Entity, error) {
	row := s.db.QueryRow(
		`SELECT id, name, kind, file_path, location, documentation, containing_entity, data
		 FROM entities WHERE id = ?`, string(id))
	var rid, name, kind, data string
	var filePath, location, documentation, containing sql.NullString
	if err := row.Scan(&rid, &name, &kind, &filePath, &location, &documentation, &containing, &data); err != nil {
		if err == sql.ErrNoRows {
			return entity.Entity{}, entity.ErrNotFound
		}
		return entity.Entity{}, err
	}
	return decodeEntityRow(entity.ID(rid), name, kind, filePath, location, documentation, containing, data)
}
