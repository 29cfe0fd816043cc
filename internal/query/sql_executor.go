package query

import (
	"fmt"

	"github.com/ummon-dev/ummon/internal/entity"
	"github.com/ummon-dev/ummon/internal/store"
)

// sqlAttributeWhitelist is the only set of attribute names the SQL executor
// will translate into a column reference; anything else fails with
// QueryError::UnsupportedAttribute rather than risking an arbitrary column
// name reaching SQL text.
var sqlAttributeWhitelist = map[string]string{
	"name":          "name",
	"file_path":     "file_path",
	"path":          "file_path",
	"documentation": "documentation",
	"id":            "id",
}

// SQLExecutor evaluates a query AST against the persistent store (C2),
// translating conditions into parameterised SQL.
type SQLExecutor struct {
	Store *store.Store
}

// Execute dispatches a Select or Traversal AST.
func (ex SQLExecutor) Execute(ast AST) ([]entity.Entity, error) {
	switch q := ast.(type) {
	case Select:
		return ex.execSelect(q)
	case Traversal:
		return ex.execTraversal(q)
	default:
		return nil, &entity.QueryError{Stage: "sql-exec", Err: errUnknownAST}
	}
}

func (ex SQLExecutor) execSelect(q Select) ([]entity.Entity, error) {
	if q.Condition == nil {
		return ex.Store.QueryEntitiesByKind(q.Kind, "", nil)
	}
	sql, params, err := translateCondition(q.Condition)
	if err != nil {
		return nil, err
	}
	return ex.Store.QueryEntitiesByKind(q.Kind, sql, params)
}

// execTraversal selects entities by source kind, then for each one calls
// find_paths(src, nil, &dstKind, &relKind, 10, direction) per spec §4.4.
// Direction is derived from relKind: RelatesTo and unknown/forwards-
// compatible kinds are bidirectional, everything else is outbound. If a
// condition is present, each reached target is re-queried with the
// condition appended as `id = ? AND (...)` to verify it still matches; the
// source survives iff at least one target matches.
func (ex SQLExecutor) execTraversal(q Traversal) ([]entity.Entity, error) {
	const maxTraversalDepth = 10

	direction := store.DirectionOutbound
	if BidirectionalRelationship(q.RelKind) {
		direction = store.DirectionBoth
	}

	sources, err := ex.Store.QueryEntitiesByKind(q.SourceKind, "", nil)
	if err != nil {
		return nil, err
	}

	var out []entity.Entity
	for _, src := range sources {
		dstKind := q.DestKind
		reached, err := ex.Store.FindPaths(src.ID, nil, &dstKind, q.RelKind, maxTraversalDepth, direction)
		if err != nil {
			return nil, err
		}
		if len(reached) == 0 {
			continue
		}
		if q.Condition == nil {
			out = append(out, src)
			continue
		}

		condSQL, condParams, err := translateCondition(q.Condition)
		if err != nil {
			return nil, err
		}
		matched := false
		for _, r := range reached {
			sql := "id = ? AND (" + condSQL + ")"
			params := append([]interface{}{string(r.ID)}, condParams...)
			targets, err := ex.Store.QueryEntitiesByKind(dstKind, sql, params)
			if err != nil {
				return nil, err
			}
			if len(targets) > 0 {
				matched = true
				break
			}
		}
		if matched {
			out = append(out, src)
		}
	}
	return out, nil
}

// translateCondition compiles a Condition tree to parameterised SQL text
// plus its positional parameter values, per the rules in spec §4.4: And/Or
// produce `(L) AND/OR (R)`, Not produces `NOT (X)`, Has maps to an
// IS NOT NULL (and non-empty) test, and every scalar value is passed as a
// parameter — never interpolated into the SQL text.
func translateCondition(c Condition) (string, []interface{}, error) {
	switch n := c.(type) {
	case And:
		lsql, lparams, err := translateCondition(n.Left)
		if err != nil {
			return "", nil, err
		}
		rsql, rparams, err := translateCondition(n.Right)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("(%s) AND (%s)", lsql, rsql), append(lparams, rparams...), nil
	case Or:
		lsql, lparams, err := translateCondition(n.Left)
		if err != nil {
			return "", nil, err
		}
		rsql, rparams, err := translateCondition(n.Right)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("(%s) OR (%s)", lsql, rsql), append(lparams, rparams...), nil
	case Not:
		xsql, xparams, err := translateCondition(n.X)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("NOT (%s)", xsql), xparams, nil
	case Has:
		col, ok := sqlAttributeWhitelist[n.Attribute]
		if !ok {
			return "", nil, unsupportedAttribute(n.Attribute)
		}
		return fmt.Sprintf("(%s IS NOT NULL AND %s != '')", col, col), nil, nil
	case Cmp:
		col, ok := sqlAttributeWhitelist[n.Attribute]
		if !ok {
			return "", nil, unsupportedAttribute(n.Attribute)
		}
		op, err := sqlOperator(n.Op)
		if err != nil {
			return "", nil, err
		}
		if n.Op == "like" {
			return fmt.Sprintf("%s LIKE ?", col), []interface{}{n.Value}, nil
		}
		return fmt.Sprintf("%s %s ?", col, op), []interface{}{n.Value}, nil
	default:
		return "", nil, &entity.QueryError{Stage: "sql-exec", Err: errUnknownCondition}
	}
}

func sqlOperator(op string) (string, error) {
	switch op {
	case "=", "!=", ">", "<", ">=", "<=", "like":
		if op == "!=" {
			return "<>", nil
		}
		return op, nil
	default:
		return "", &entity.QueryError{Stage: "sql-exec", Err: errUnsupportedOp}
	}
}

func unsupportedAttribute(attr string) error {
	return &entity.QueryError{Stage: "sql-exec", Err: fmt.Errorf("attribute %q is not in the SQL whitelist", attr)}
}
