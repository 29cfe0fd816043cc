package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ummon-dev/ummon/internal/entity"
)

func TestParseSimpleSelect(t *testing.T) {
	ast, err := Parse("select functions where name = 'main'")
	require.NoError(t, err)

	sel, ok := ast.(Select)
	require.True(t, ok)
	require.Equal(t, entity.KindFunction, sel.Kind)

	cmp, ok := sel.Condition.(Cmp)
	require.True(t, ok)
	require.Equal(t, "name", cmp.Attribute)
	require.Equal(t, "=", cmp.Op)
	require.Equal(t, "main", cmp.Value)
}

func TestParseSelectWithoutWhere(t *testing.T) {
	ast, err := Parse("select classes")
	require.NoError(t, err)
	sel, ok := ast.(Select)
	require.True(t, ok)
	require.Equal(t, entity.KindClass, sel.Kind)
	require.Nil(t, sel.Condition)
}

func TestParseTraversal(t *testing.T) {
	ast, err := Parse("functions calling methods where name like 'handle%'")
	require.NoError(t, err)

	tr, ok := ast.(Traversal)
	require.True(t, ok)
	require.Equal(t, entity.KindFunction, tr.SourceKind)
	require.Equal(t, entity.RelCalls, tr.RelKind)
	require.Equal(t, entity.KindMethod, tr.DestKind)

	cmp, ok := tr.Condition.(Cmp)
	require.True(t, ok)
	require.Equal(t, "like", cmp.Op)
}

func TestParseNotIsRightOperandNegation(t *testing.T) {
	ast, err := Parse("select functions where has documentation not name = 'skip'")
	require.NoError(t, err)
	sel := ast.(Select)

	not, ok := sel.Condition.(Not)
	require.True(t, ok)
	cmp, ok := not.X.(Cmp)
	require.True(t, ok)
	require.Equal(t, "skip", cmp.Value)
}

func TestParseLogicalChainIsRightAssociative(t *testing.T) {
	ast, err := Parse("select functions where name = 'a' and name = 'b' or name = 'c'")
	require.NoError(t, err)
	sel := ast.(Select)

	and, ok := sel.Condition.(And)
	require.True(t, ok)
	_, ok = and.Right.(Or)
	require.True(t, ok, "chain must nest right-associatively: And{a, Or{b, c}}")
}

func TestParseParenthesizedCondition(t *testing.T) {
	ast, err := Parse("select functions where (name = 'a' or name = 'b') and has documentation")
	require.NoError(t, err)
	sel := ast.(Select)

	and, ok := sel.Condition.(And)
	require.True(t, ok)
	_, ok = and.Left.(Or)
	require.True(t, ok)
}

func TestParseQuotedStringWithEscapedQuote(t *testing.T) {
	ast, err := Parse("select functions where name = 'O''Reilly'")
	require.NoError(t, err)
	sel := ast.(Select)
	cmp := sel.Condition.(Cmp)
	require.Equal(t, "O'Reilly", cmp.Value)
}

func TestParseUnknownEntityTypeFails(t *testing.T) {
	_, err := Parse("select widgets")
	require.Error(t, err)
	var qerr *entity.QueryError
	require.ErrorAs(t, err, &qerr)
}

func TestParseUnterminatedStringFails(t *testing.T) {
	_, err := Parse("select functions where name = 'oops")
	require.Error(t, err)
}

func TestParseNumericComparison(t *testing.T) {
	ast, err := Parse("select domain_concepts where confidence >= 0.5")
	require.NoError(t, err)
	sel := ast.(Select)
	cmp := sel.Condition.(Cmp)
	require.Equal(t, ">=", cmp.Op)
	require.Equal(t, "0.5", cmp.Value)
}
