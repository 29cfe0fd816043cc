package store

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ummon-dev/ummon/internal/entity"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ummon.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEntity(id, name string, kind entity.Kind) entity.Entity {
	return entity.Entity{ID: entity.ID(id), Name: name, Kind: kind, Location: &entity.Location{FilePath: "pkg/" + name + ".go"}}
}

func TestSaveAndLoadEntityRoundTrip(t *testing.T) {
	s := newTestStore(t)
	e := sampleEntity("fn:main", "main", entity.KindFunction)
	require.NoError(t, s.SaveEntity(e))

	loaded, err := s.LoadEntity(e.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(e, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveEntityIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	e := sampleEntity("fn:main", "main", entity.KindFunction)
	require.NoError(t, s.SaveEntity(e))
	require.NoError(t, s.SaveEntity(e))

	all, err := s.LoadEntities()
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestLoadEntityNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadEntity("missing")
	require.ErrorIs(t, err, entity.ErrNotFound)
}

func TestSaveBatchAtomic(t *testing.T) {
	s := newTestStore(t)
	entities := []entity.Entity{
		sampleEntity("fn:a", "a", entity.KindFunction),
		sampleEntity("fn:b", "b", entity.KindFunction),
	}
	rels := []entity.Relationship{
		{ID: "r1", SourceID: "fn:a", TargetID: "fn:b", Kind: entity.RelCalls, Weight: 1.0},
	}
	require.NoError(t, s.SaveBatch(entities, rels))

	loadedEntities, err := s.LoadEntities()
	require.NoError(t, err)
	require.Len(t, loadedEntities, 2)

	loadedRels, err := s.LoadRelationships()
	require.NoError(t, err)
	require.Len(t, loadedRels, 1)
}

func TestSaveBatchRollsBackOnInvalidRow(t *testing.T) {
	s := newTestStore(t)
	entities := []entity.Entity{sampleEntity("fn:a", "a", entity.KindFunction)}
	rels := []entity.Relationship{
		{ID: "bad", SourceID: "fn:a", TargetID: "fn:a", Kind: entity.RelCalls, Weight: 1.0}, // self-loop: invalid
	}
	err := s.SaveBatch(entities, rels)
	require.Error(t, err)

	loaded, err := s.LoadEntities()
	require.NoError(t, err)
	require.Empty(t, loaded, "partial batch must not be visible after rollback")
}

func TestRemoveByFilesCascadesRelationships(t *testing.T) {
	s := newTestStore(t)
	a := entity.Entity{ID: "fn:a", Name: "a", Kind: entity.KindFunction, Location: &entity.Location{FilePath: "x.go"}}
	b := entity.Entity{ID: "fn:b", Name: "b", Kind: entity.KindFunction, Location: &entity.Location{FilePath: "y.go"}}
	require.NoError(t, s.SaveBatch([]entity.Entity{a, b}, []entity.Relationship{
		{ID: "r1", SourceID: "fn:a", TargetID: "fn:b", Kind: entity.RelCalls, Weight: 1.0},
	}))

	require.NoError(t, s.RemoveByFiles([]string{"x.go"}))

	entities, err := s.LoadEntities()
	require.NoError(t, err)
	require.Len(t, entities, 1)
	require.Equal(t, entity.ID("fn:b"), entities[0].ID)

	rels, err := s.LoadRelationships()
	require.NoError(t, err)
	require.Empty(t, rels)
}

func TestPurgeEmptiesBothTables(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveBatch(
		[]entity.Entity{sampleEntity("fn:a", "a", entity.KindFunction)},
		nil,
	))
	require.NoError(t, s.Purge())

	entities, err := s.LoadEntities()
	require.NoError(t, err)
	require.Empty(t, entities)
}

func TestFindPathsZeroLengthPathWhenFromEqualsTo(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveEntity(sampleEntity("fn:a", "a", entity.KindFunction)))

	to := entity.ID("fn:a")
	reached, err := s.FindPaths("fn:a", &to, nil, "", 3, DirectionOutbound)
	require.NoError(t, err)
	require.Empty(t, reached, "from==to reports the start vertex implicitly, not as a depth>0 hit")
}

func TestFindPathsBFSMinimumDepth(t *testing.T) {
	s := newTestStore(t)
	entities := []entity.Entity{
		sampleEntity("fn:a", "a", entity.KindFunction),
		sampleEntity("fn:b", "b", entity.KindFunction),
		sampleEntity("fn:c", "c", entity.KindFunction),
	}
	rels := []entity.Relationship{
		{ID: "r1", SourceID: "fn:a", TargetID: "fn:b", Kind: entity.RelCalls, Weight: 1.0},
		{ID: "r2", SourceID: "fn:b", TargetID: "fn:c", Kind: entity.RelCalls, Weight: 1.0},
		{ID: "r3", SourceID: "fn:a", TargetID: "fn:c", Kind: entity.RelCalls, Weight: 1.0},
	}
	require.NoError(t, s.SaveBatch(entities, rels))

	reached, err := s.FindPaths("fn:a", nil, nil, entity.RelCalls, 5, DirectionOutbound)
	require.NoError(t, err)

	depths := map[entity.ID]int{}
	for _, r := range reached {
		depths[r.ID] = r.Depth
	}
	require.Equal(t, 1, depths["fn:b"])
	require.Equal(t, 1, depths["fn:c"], "fn:c is reachable directly at depth 1, BFS must report the minimum")
}

func TestRunMigrationsRefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, SetSchemaVersion(s.DB(), CurrentSchemaVersion+1))
	s.Close()

	_, err = Open(path)
	require.Error(t, err)
}
