package graph

import "github.com/ummon-dev/ummon/internal/entity"

// Path is a sequence of relationship ids forming one simple walk from a
// search's start vertex. A Path with no relationship ids and the single
// vertex from represents the zero-length path returned when from == to.
type Path struct {
	RelationshipIDs []entity.ID
	Vertices        []entity.ID // vertices visited, including from and the final vertex
}

// FindPaths performs an iterative depth-first search over outgoing edges
// from `from`, yielding every simple path (no vertex repeated) of length at
// most maxDepth. When to is non-empty, only paths ending at to are returned.
// When from == to, FindPaths returns a single path with zero relationships
// and a single vertex, per the zero-length-path convention: the start
// vertex is always trivially reachable from itself.
func (g *Graph) FindPaths(from, to entity.ID, maxDepth int) []Path {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if from == to {
		return []Path{{Vertices: []entity.ID{from}}}
	}
	if maxDepth <= 0 {
		return nil
	}

	var results []Path
	onStack := map[entity.ID]bool{from: true}
	vertices := []entity.ID{from}
	var relIDs []entity.ID

	var walk func(cur entity.ID, depth int)
	walk = func(cur entity.ID, depth int) {
		if depth >= maxDepth {
			return
		}
		for _, relID := range g.outgoing[cur] {
			r := g.relsByID[relID]
			next := r.TargetID
			if onStack[next] {
				continue
			}

			vertices = append(vertices, next)
			relIDs = append(relIDs, relID)
			onStack[next] = true

			if to == "" || next == to {
				pathVerts := make([]entity.ID, len(vertices))
				copy(pathVerts, vertices)
				pathRels := make([]entity.ID, len(relIDs))
				copy(pathRels, relIDs)
				results = append(results, Path{RelationshipIDs: pathRels, Vertices: pathVerts})
			}
			if to == "" || next != to {
				walk(next, depth+1)
			}

			onStack[next] = false
			vertices = vertices[:len(vertices)-1]
			relIDs = relIDs[:len(relIDs)-1]
		}
	}

	walk(from, 0)
	return results
}
