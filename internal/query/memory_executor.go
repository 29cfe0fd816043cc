package query

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/ummon-dev/ummon/internal/entity"
	"github.com/ummon-dev/ummon/internal/graph"
)

var (
	errUnknownAST       = errors.New("unknown AST node")
	errUnknownCondition = errors.New("unknown condition node")
	errUnsupportedOp    = errors.New("unsupported comparison operator")
)

// MemoryExecutor evaluates a query AST against an in-memory graph (C3).
type MemoryExecutor struct {
	Graph *graph.Graph
}

// Execute dispatches a Select or Traversal AST and returns the matching
// entities.
func (ex MemoryExecutor) Execute(ast AST) ([]entity.Entity, error) {
	switch q := ast.(type) {
	case Select:
		return ex.execSelect(q)
	case Traversal:
		return ex.execTraversal(q)
	default:
		return nil, &entity.QueryError{Stage: "in-memory-exec", Err: errUnknownAST}
	}
}

func (ex MemoryExecutor) execSelect(q Select) ([]entity.Entity, error) {
	candidates := ex.Graph.EntitiesByKind(q.Kind)
	if q.Condition == nil {
		return candidates, nil
	}
	var out []entity.Entity
	for _, e := range candidates {
		ok, err := evalCondition(q.Condition, e)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (ex MemoryExecutor) execTraversal(q Traversal) ([]entity.Entity, error) {
	sources := ex.Graph.EntitiesByKind(q.SourceKind)
	var out []entity.Entity
	for _, src := range sources {
		related := ex.Graph.GetRelated(src.ID, q.RelKind)
		for _, dst := range related {
			if dst.Kind != q.DestKind {
				continue
			}
			if q.Condition == nil {
				out = append(out, src)
				break
			}
			ok, err := evalCondition(q.Condition, dst)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, src)
				break
			}
		}
	}
	return out, nil
}

// attributeValue resolves attr against e per spec §4.4: name/file_path|path
// are dedicated fields, confidence is meaningful only for DomainConcept
// (read from metadata), everything else reads metadata[attr].
func attributeValue(e entity.Entity, attr string) (string, bool) {
	switch attr {
	case "name":
		return e.Name, true
	case "file_path", "path":
		if e.Location == nil {
			return "", false
		}
		return e.Location.FilePath, e.Location.FilePath != ""
	case "documentation":
		return e.Documentation, e.Documentation != ""
	case "confidence":
		if e.Kind != entity.KindDomainConcept {
			return "", false
		}
		v, ok := e.Metadata["confidence"]
		return v, ok
	default:
		v, ok := e.Metadata[attr]
		return v, ok
	}
}

func evalCondition(c Condition, e entity.Entity) (bool, error) {
	switch n := c.(type) {
	case And:
		l, err := evalCondition(n.Left, e)
		if err != nil || !l {
			return false, err
		}
		return evalCondition(n.Right, e)
	case Or:
		l, err := evalCondition(n.Left, e)
		if err != nil {
			return false, err
		}
		if l {
			return true, nil
		}
		return evalCondition(n.Right, e)
	case Not:
		v, err := evalCondition(n.X, e)
		return !v, err
	case Has:
		v, ok := attributeValue(e, n.Attribute)
		return ok && v != "", nil
	case Cmp:
		return evalCmp(n, e)
	default:
		return false, &entity.QueryError{Stage: "in-memory-exec", Err: errUnknownCondition}
	}
}

func evalCmp(c Cmp, e entity.Entity) (bool, error) {
	actual, ok := attributeValue(e, c.Attribute)
	if !ok {
		actual = ""
	}

	if c.Op == "like" {
		re, err := likeToRegexp(c.Value)
		if err != nil {
			return false, &entity.QueryError{Stage: "in-memory-exec", Err: err}
		}
		return re.MatchString(actual), nil
	}

	switch c.Op {
	case "=":
		return actual == c.Value, nil
	case "!=":
		return actual != c.Value, nil
	case ">", "<", ">=", "<=":
		af, aok := strconv.ParseFloat(actual, 64)
		bf, bok := strconv.ParseFloat(c.Value, 64)
		if aok != nil || bok != nil {
			return false, nil
		}
		switch c.Op {
		case ">":
			return af > bf, nil
		case "<":
			return af < bf, nil
		case ">=":
			return af >= bf, nil
		case "<=":
			return af <= bf, nil
		}
	}
	return false, &entity.QueryError{Stage: "in-memory-exec", Err: errUnsupportedOp}
}

// likeToRegexp compiles a SQL LIKE pattern ('%' = any run, '_' = one char)
// into an anchored, case-sensitive regular expression.
func likeToRegexp(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteByte('^')
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteByte('.')
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteByte('$')
	return regexp.Compile(sb.String())
}
