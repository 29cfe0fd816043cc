package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ummon-dev/ummon/internal/entity"
	"github.com/ummon-dev/ummon/internal/graph"
)

func sampleGraph() *graph.Graph {
	entities := []entity.Entity{
		{ID: "fn:main", Name: "main", Kind: entity.KindFunction, Location: &entity.Location{FilePath: "main.go"}, Documentation: "entry point"},
		{ID: "fn:helper", Name: "helper", Kind: entity.KindFunction, Location: &entity.Location{FilePath: "helper.go"}},
		{ID: "fn:handleRequest", Name: "handleRequest", Kind: entity.KindFunction, Location: &entity.Location{FilePath: "server.go"}},
		{ID: "m:Serve", Name: "Serve", Kind: entity.KindMethod, Location: &entity.Location{FilePath: "server.go"}},
		{ID: "dc:auth", Name: "Authentication", Kind: entity.KindDomainConcept, Metadata: map[string]string{"confidence": "0.8"}},
	}
	rels := []entity.Relationship{
		{ID: "r1", SourceID: "fn:main", TargetID: "fn:helper", Kind: entity.RelCalls, Weight: 1.0},
		{ID: "r2", SourceID: "fn:handleRequest", TargetID: "m:Serve", Kind: entity.RelCalls, Weight: 1.0},
	}
	return graph.Hydrate(entities, rels)
}

func TestMemoryExecutorSelectWithEquality(t *testing.T) {
	g := sampleGraph()
	ast, err := Parse("select functions where name = 'main'")
	require.NoError(t, err)

	results, err := MemoryExecutor{Graph: g}.Execute(ast)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, entity.ID("fn:main"), results[0].ID)
}

func TestMemoryExecutorSelectWithLike(t *testing.T) {
	g := sampleGraph()
	ast, err := Parse("select functions where name like 'handle%'")
	require.NoError(t, err)

	results, err := MemoryExecutor{Graph: g}.Execute(ast)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, entity.ID("fn:handleRequest"), results[0].ID)
}

func TestMemoryExecutorSelectWithHas(t *testing.T) {
	g := sampleGraph()
	ast, err := Parse("select functions where has documentation")
	require.NoError(t, err)

	results, err := MemoryExecutor{Graph: g}.Execute(ast)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, entity.ID("fn:main"), results[0].ID)
}

func TestMemoryExecutorConfidenceOnlyMeaningfulForDomainConcept(t *testing.T) {
	g := sampleGraph()
	ast, err := Parse("select domain_concepts where confidence >= 0.5")
	require.NoError(t, err)

	results, err := MemoryExecutor{Graph: g}.Execute(ast)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, entity.ID("dc:auth"), results[0].ID)
}

func TestMemoryExecutorTraversal(t *testing.T) {
	g := sampleGraph()
	ast, err := Parse("functions calling functions")
	require.NoError(t, err)

	results, err := MemoryExecutor{Graph: g}.Execute(ast)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, entity.ID("fn:main"), results[0].ID)
}

func TestMemoryExecutorTraversalWithCondition(t *testing.T) {
	g := sampleGraph()
	ast, err := Parse("functions calling methods where name = 'Serve'")
	require.NoError(t, err)

	results, err := MemoryExecutor{Graph: g}.Execute(ast)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, entity.ID("fn:handleRequest"), results[0].ID)
}

func TestMemoryExecutorNotNegatesRightOperand(t *testing.T) {
	g := sampleGraph()
	ast, err := Parse("select functions where has documentation not name = 'main'")
	require.NoError(t, err)

	// The left operand is dropped: the query is NOT(name = 'main'), so every
	// function except main matches, whether or not it has documentation.
	results, err := MemoryExecutor{Graph: g}.Execute(ast)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.NotEqual(t, entity.ID("fn:main"), r.ID)
	}
}
