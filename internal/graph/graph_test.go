package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ummon-dev/ummon/internal/entity"
)

func chainEntities() ([]entity.Entity, []entity.Relationship) {
	entities := []entity.Entity{
		{ID: "fn:a", Name: "a", Kind: entity.KindFunction},
		{ID: "fn:b", Name: "b", Kind: entity.KindFunction},
		{ID: "fn:c", Name: "c", Kind: entity.KindFunction},
	}
	rels := []entity.Relationship{
		{ID: "r1", SourceID: "fn:a", TargetID: "fn:b", Kind: entity.RelCalls, Weight: 1.0},
		{ID: "r2", SourceID: "fn:b", TargetID: "fn:c", Kind: entity.RelCalls, Weight: 1.0},
	}
	return entities, rels
}

func TestHydrateBuildsIndices(t *testing.T) {
	entities, rels := chainEntities()
	g := Hydrate(entities, rels)

	n, m := g.Len()
	require.Equal(t, 3, n)
	require.Equal(t, 2, m)

	e, ok := g.GetEntity("fn:b")
	require.True(t, ok)
	require.Equal(t, "b", e.Name)
}

func TestInvariantAdjacencyIndicesContainEachRelationshipExactlyOnce(t *testing.T) {
	entities, rels := chainEntities()
	g := Hydrate(entities, rels)

	for _, r := range rels {
		require.Contains(t, g.outgoing[r.SourceID], r.ID)
		require.Contains(t, g.incoming[r.TargetID], r.ID)

		outCount, inCount := 0, 0
		for _, id := range g.outgoing[r.SourceID] {
			if id == r.ID {
				outCount++
			}
		}
		for _, id := range g.incoming[r.TargetID] {
			if id == r.ID {
				inCount++
			}
		}
		require.Equal(t, 1, outCount)
		require.Equal(t, 1, inCount)
	}
}

func TestCreateRelationshipMaterializesPlaceholder(t *testing.T) {
	g := New()
	g.AddEntity(entity.Entity{ID: "fn:a", Name: "a", Kind: entity.KindFunction})

	err := g.CreateRelationship("r1", "fn:a", "fn:ghost", entity.RelCalls)
	require.NoError(t, err)

	ghost, ok := g.GetEntity("fn:ghost")
	require.True(t, ok)
	require.True(t, ghost.Placeholder)
	require.Equal(t, entity.KindFunction, ghost.Kind)
	require.Equal(t, "ghost", ghost.Name)
}

func TestCreateRelationshipRequiresExistingSource(t *testing.T) {
	g := New()
	err := g.CreateRelationship("r1", "fn:missing", "fn:b", entity.RelCalls)
	require.ErrorIs(t, err, entity.ErrNotFound)
}

func TestGetRelatedOneHopOnly(t *testing.T) {
	entities, rels := chainEntities()
	g := Hydrate(entities, rels)

	related := g.GetRelated("fn:a", entity.RelCalls)
	require.Len(t, related, 1)
	require.Equal(t, entity.ID("fn:b"), related[0].ID)
}

func TestFindPathsZeroLengthWhenFromEqualsTo(t *testing.T) {
	entities, rels := chainEntities()
	g := Hydrate(entities, rels)

	paths := g.FindPaths("fn:a", "fn:a", 5)
	require.Len(t, paths, 1)
	require.Empty(t, paths[0].RelationshipIDs)
	require.Equal(t, []entity.ID{"fn:a"}, paths[0].Vertices)
}

func TestFindPathsSimplePathNoVertexRepeated(t *testing.T) {
	entities, rels := chainEntities()
	// add a cycle back to fn:a to ensure the walk doesn't loop forever or revisit.
	rels = append(rels, entity.Relationship{ID: "r3", SourceID: "fn:c", TargetID: "fn:a", Kind: entity.RelCalls, Weight: 1.0})
	g := Hydrate(entities, rels)

	paths := g.FindPaths("fn:a", "fn:c", 5)
	require.Len(t, paths, 1)
	require.Equal(t, []entity.ID{"fn:a", "fn:b", "fn:c"}, paths[0].Vertices)
}

func TestFindPathsRespectsMaxDepth(t *testing.T) {
	entities, rels := chainEntities()
	g := Hydrate(entities, rels)

	paths := g.FindPaths("fn:a", "fn:c", 1)
	require.Empty(t, paths, "fn:c is two hops away, depth 1 must not reach it")
}

func TestFindPathsUnboundedToYieldsEveryReachableSimplePath(t *testing.T) {
	entities, rels := chainEntities()
	g := Hydrate(entities, rels)

	paths := g.FindPaths("fn:a", "", 5)
	// fn:a -> fn:b, and fn:a -> fn:b -> fn:c
	require.Len(t, paths, 2)
}

func TestSearchIsCaseInsensitiveSubstring(t *testing.T) {
	g := New()
	g.AddEntity(entity.Entity{ID: "fn:a", Name: "HandleRequest", Kind: entity.KindFunction})

	results := g.Search("request")
	require.Len(t, results, 1)
	require.Equal(t, entity.ID("fn:a"), results[0].ID)
}

func TestAddEntityReplacingClearsStaleTokens(t *testing.T) {
	g := New()
	g.AddEntity(entity.Entity{ID: "fn:a", Name: "Foo", Kind: entity.KindFunction})
	g.AddEntity(entity.Entity{ID: "fn:a", Name: "Bar", Kind: entity.KindFunction})

	require.Empty(t, g.Search("foo"))
	require.Len(t, g.Search("bar"), 1)
}
