package impact

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ummon-dev/ummon/internal/entity"
	"github.com/ummon-dev/ummon/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ummon.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// chain: fn:a (core.go) <-calls- fn:b (caller.go) <-calls- fn:c (caller2.go)
// plus a DomainConcept represented_by fn:a.
func seedChain(t *testing.T, s *store.Store) {
	t.Helper()
	entities := []entity.Entity{
		{ID: "fn:a", Name: "a", Kind: entity.KindFunction, Location: &entity.Location{FilePath: "core.go"}},
		{ID: "fn:b", Name: "b", Kind: entity.KindFunction, Location: &entity.Location{FilePath: "caller.go"}},
		{ID: "fn:c", Name: "c", Kind: entity.KindFunction, Location: &entity.Location{FilePath: "caller2.go"}},
		{ID: "dc:auth", Name: "Authentication", Kind: entity.KindDomainConcept, Metadata: map[string]string{"confidence": "0.9"}},
	}
	rels := []entity.Relationship{
		{ID: "r1", SourceID: "fn:b", TargetID: "fn:a", Kind: entity.RelCalls, Weight: 1},
		{ID: "r2", SourceID: "fn:c", TargetID: "fn:b", Kind: entity.RelCalls, Weight: 1},
		{ID: "r3", SourceID: "fn:a", TargetID: "dc:auth", Kind: entity.RelRepresentedBy, Weight: 1},
	}
	require.NoError(t, s.SaveBatch(entities, rels))
}

func TestAnalyzeFailsWhenFileNotFound(t *testing.T) {
	s := newTestStore(t)
	a := Analyzer{Store: s}
	_, err := a.Analyze("missing.go", 2)
	require.ErrorIs(t, err, entity.ErrNotFound)
}

func TestAnalyzeComputesDepthWeightedFileImpact(t *testing.T) {
	s := newTestStore(t)
	seedChain(t, s)
	a := Analyzer{Store: s}

	report, err := a.Analyze("core.go", 2)
	require.NoError(t, err)
	require.Len(t, report.Files, 2)

	require.Equal(t, "caller.go", report.Files[0].FilePath)
	require.InDelta(t, 0.5, report.Files[0].Score, 1e-9)
	require.Equal(t, "caller2.go", report.Files[1].FilePath)
	require.InDelta(t, 1.0/3.0, report.Files[1].Score, 1e-9)
}

func TestAnalyzeRespectsDepthBound(t *testing.T) {
	s := newTestStore(t)
	seedChain(t, s)
	a := Analyzer{Store: s}

	report, err := a.Analyze("core.go", 1)
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	require.Equal(t, "caller.go", report.Files[0].FilePath)
}

func TestAnalyzeProjectsDomainConcepts(t *testing.T) {
	s := newTestStore(t)
	seedChain(t, s)
	a := Analyzer{Store: s}

	report, err := a.Analyze("core.go", 2)
	require.NoError(t, err)
	require.Len(t, report.DomainConcepts, 1)
	require.Equal(t, entity.ID("dc:auth"), report.DomainConcepts[0].Entity.ID)
	require.InDelta(t, 0.5, report.DomainConcepts[0].Score, 1e-9)
}
