// Package graph implements the in-memory indexed view over the persistent
// store (C3): by-id, by-kind, and search-token indices over entities, plus
// adjacency indices over relationships, and bounded path search.
package graph

import (
	"sort"
	"strings"
	"sync"

	"github.com/ummon-dev/ummon/internal/entity"
	"github.com/ummon-dev/ummon/internal/logging"
)

// Graph is a read-only-during-queries in-memory index. When the underlying
// store is re-indexed, callers build a new Graph and swap it in behind a
// reference-counted handle rather than mutating this one in place.
type Graph struct {
	mu sync.RWMutex

	byID         map[entity.ID]entity.Entity
	byKind       map[entity.Kind]map[entity.ID]struct{}
	searchTokens map[string]map[entity.ID]struct{}

	relsByID  map[entity.ID]entity.Relationship
	outgoing  map[entity.ID][]entity.ID // entity.ID -> relationship ids
	incoming  map[entity.ID][]entity.ID
	byRelKind map[entity.RelationshipKind][]entity.ID
}

// New returns an empty graph, ready for AddEntity/AddRelationship calls.
func New() *Graph {
	return &Graph{
		byID:         make(map[entity.ID]entity.Entity),
		byKind:       make(map[entity.Kind]map[entity.ID]struct{}),
		searchTokens: make(map[string]map[entity.ID]struct{}),
		relsByID:     make(map[entity.ID]entity.Relationship),
		outgoing:     make(map[entity.ID][]entity.ID),
		incoming:     make(map[entity.ID][]entity.ID),
		byRelKind:    make(map[entity.RelationshipKind][]entity.ID),
	}
}

// Hydrate builds a fresh Graph from a full entity/relationship snapshot,
// typically loaded from the store at query time.
func Hydrate(entities []entity.Entity, relationships []entity.Relationship) *Graph {
	g := New()
	for _, e := range entities {
		g.AddEntity(e)
	}
	for _, r := range relationships {
		g.AddRelationship(r)
	}
	logging.Graph("hydrated in-memory graph: %d entities, %d relationships", len(entities), len(relationships))
	return g
}

func tokensFor(e entity.Entity) []string {
	tokens := []string{strings.ToLower(e.Name), strings.ToLower(string(e.Kind))}
	if e.Location != nil && e.Location.FilePath != "" {
		tokens = append(tokens, strings.ToLower(e.Location.FilePath))
	}
	if e.Documentation != "" {
		tokens = append(tokens, strings.ToLower(e.Documentation))
	}
	for _, v := range e.Metadata {
		if v != "" {
			tokens = append(tokens, strings.ToLower(v))
		}
	}
	return tokens
}

// AddEntity inserts or replaces an entity by id, updating all four indices.
// Replacing re-indexes tokens from the new value (stale tokens from the old
// value are removed first).
func (g *Graph) AddEntity(e entity.Entity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addEntityLocked(e)
}

func (g *Graph) addEntityLocked(e entity.Entity) {
	if old, ok := g.byID[e.ID]; ok {
		if set, ok := g.byKind[old.Kind]; ok {
			delete(set, e.ID)
		}
		for _, tok := range tokensFor(old) {
			if set, ok := g.searchTokens[tok]; ok {
				delete(set, e.ID)
			}
		}
	}

	g.byID[e.ID] = e

	if g.byKind[e.Kind] == nil {
		g.byKind[e.Kind] = make(map[entity.ID]struct{})
	}
	g.byKind[e.Kind][e.ID] = struct{}{}

	for _, tok := range tokensFor(e) {
		if g.searchTokens[tok] == nil {
			g.searchTokens[tok] = make(map[entity.ID]struct{})
		}
		g.searchTokens[tok][e.ID] = struct{}{}
	}
}

// AddRelationship inserts a relationship, updating the outgoing, incoming,
// and by-kind relationship indices.
func (g *Graph) AddRelationship(r entity.Relationship) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addRelationshipLocked(r)
}

func (g *Graph) addRelationshipLocked(r entity.Relationship) {
	g.relsByID[r.ID] = r
	g.outgoing[r.SourceID] = append(g.outgoing[r.SourceID], r.ID)
	g.incoming[r.TargetID] = append(g.incoming[r.TargetID], r.ID)
	g.byRelKind[r.Kind] = append(g.byRelKind[r.Kind], r.ID)
}

// CreateRelationship requires source to already be present. If target is
// absent, a placeholder Function entity is materialized first, named after
// the tail of the target id (the portion after the last ':' or '/'), so the
// relationship never dangles.
func (g *Graph) CreateRelationship(relID entity.ID, sourceID, targetID entity.ID, kind entity.RelationshipKind) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.byID[sourceID]; !ok {
		return entity.ErrNotFound
	}
	if _, ok := g.byID[targetID]; !ok {
		g.addEntityLocked(entity.Entity{
			ID:          targetID,
			Name:        placeholderName(targetID),
			Kind:        entity.KindFunction,
			Placeholder: true,
		})
	}
	g.addRelationshipLocked(entity.Relationship{ID: relID, SourceID: sourceID, TargetID: targetID, Kind: kind, Weight: 1.0})
	return nil
}

func placeholderName(id entity.ID) string {
	s := string(id)
	if i := strings.LastIndexAny(s, ":/"); i >= 0 && i+1 < len(s) {
		return s[i+1:]
	}
	return s
}

// GetEntity returns the entity stored under id.
func (g *Graph) GetEntity(id entity.ID) (entity.Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.byID[id]
	return e, ok
}

// EntitiesByKind returns all entities of the given kind.
func (g *Graph) EntitiesByKind(kind entity.Kind) []entity.Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.byKind[kind]
	out := make([]entity.Entity, 0, len(ids))
	for id := range ids {
		out = append(out, g.byID[id])
	}
	return out
}

// Search returns every entity whose token set contains a token with query as
// a substring (case-insensitive).
func (g *Graph) Search(query string) []entity.Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()

	q := strings.ToLower(query)
	seen := make(map[entity.ID]struct{})
	var out []entity.Entity
	for tok, ids := range g.searchTokens {
		if !strings.Contains(tok, q) {
			continue
		}
		for id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, g.byID[id])
		}
	}
	return out
}

// GetRelated returns the entities reachable in exactly one hop from src,
// optionally filtered to relationships of the given kind. Matches only
// outgoing edges.
func (g *Graph) GetRelated(src entity.ID, kind entity.RelationshipKind) []entity.Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []entity.Entity
	for _, relID := range g.outgoing[src] {
		r := g.relsByID[relID]
		if kind != "" && r.Kind != kind {
			continue
		}
		if e, ok := g.byID[r.TargetID]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Relationship returns a relationship by id.
func (g *Graph) Relationship(id entity.ID) (entity.Relationship, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.relsByID[id]
	return r, ok
}

// OutgoingIDs returns the relationship ids leaving src, newest-first.
func (g *Graph) OutgoingIDs(src entity.ID) []entity.ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.outgoing[src]
	out := make([]entity.ID, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}

// IncomingIDs returns the relationship ids entering dst, newest-first.
func (g *Graph) IncomingIDs(dst entity.ID) []entity.ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.incoming[dst]
	out := make([]entity.ID, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}

// AllEntities returns every indexed entity, ordered by id for deterministic
// callers (debug/status tooling; not on any query hot path).
func (g *Graph) AllEntities() []entity.Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]entity.Entity, 0, len(g.byID))
	for _, e := range g.byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of entities and relationships currently indexed.
func (g *Graph) Len() (entities, relationships int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byID), len(g.relsByID)
}
