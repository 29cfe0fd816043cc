package query

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ummon-dev/ummon/internal/entity"
	"github.com/ummon-dev/ummon/internal/store"
)

func newTestSQLStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "query.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLExecutorSelectWhitelistedAttribute(t *testing.T) {
	s := newTestSQLStore(t)
	require.NoError(t, s.SaveBatch([]entity.Entity{
		{ID: "fn:a", Name: "a", Kind: entity.KindFunction},
		{ID: "fn:b", Name: "b", Kind: entity.KindFunction},
	}, nil))

	ast, err := Parse("select functions where name = 'a'")
	require.NoError(t, err)

	results, err := SQLExecutor{Store: s}.Execute(ast)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, entity.ID("fn:a"), results[0].ID)
}

func TestSQLExecutorRejectsUnwhitelistedAttribute(t *testing.T) {
	s := newTestSQLStore(t)
	ast, err := Parse("select functions where custom_field = 'x'")
	require.NoError(t, err)

	_, err = SQLExecutor{Store: s}.Execute(ast)
	require.Error(t, err)
	var qerr *entity.QueryError
	require.ErrorAs(t, err, &qerr)
}

func TestSQLExecutorParameterizesSingleQuoteValue(t *testing.T) {
	ast, err := Parse("select functions where name = 'O''Reilly'")
	require.NoError(t, err)
	sel := ast.(Select)

	sql, params, err := translateCondition(sel.Condition)
	require.NoError(t, err)
	require.Equal(t, "name = ?", sql)
	require.Equal(t, []interface{}{"O'Reilly"}, params)
}

func TestSQLExecutorTraversal(t *testing.T) {
	s := newTestSQLStore(t)
	require.NoError(t, s.SaveBatch(
		[]entity.Entity{
			{ID: "fn:main", Name: "main", Kind: entity.KindFunction},
			{ID: "fn:helper", Name: "helper", Kind: entity.KindFunction},
		},
		[]entity.Relationship{
			{ID: "r1", SourceID: "fn:main", TargetID: "fn:helper", Kind: entity.RelCalls, Weight: 1.0},
		},
	))

	ast, err := Parse("functions calling functions")
	require.NoError(t, err)

	results, err := SQLExecutor{Store: s}.Execute(ast)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, entity.ID("fn:main"), results[0].ID)
}

func TestSQLExecutorHasTranslatesToNotNullAndNotEmpty(t *testing.T) {
	sql, params, err := translateCondition(Has{Attribute: "documentation"})
	require.NoError(t, err)
	require.Equal(t, "(documentation IS NOT NULL AND documentation != '')", sql)
	require.Empty(t, params)
}

func TestSQLExecutorNotTranslatesToSQLNot(t *testing.T) {
	sql, _, err := translateCondition(Not{X: Cmp{Attribute: "name", Op: "=", Value: "x"}})
	require.NoError(t, err)
	require.Equal(t, "NOT (name = ?)", sql)
}
