package query

import (
	"fmt"

	"github.com/ummon-dev/ummon/internal/entity"
)

func syntaxErr(pos int, msg string) error {
	return &entity.QueryError{Stage: "parse", Err: fmt.Errorf("syntax error at byte %d: %s", pos, msg)}
}

type parser struct {
	toks []token
	pos  int
}

// Parse compiles source text into a QueryAST per the grammar in spec §4.3.
func Parse(source string) (AST, error) {
	toks, err := lex(source)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	ast, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, syntaxErr(p.cur().pos, fmt.Sprintf("unexpected trailing token %q", p.cur().text))
	}
	return ast, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) parseQuery() (AST, error) {
	if p.cur().kind == tokIdent && p.cur().text == "select" {
		p.advance()
		kind, err := p.parseEntityType()
		if err != nil {
			return nil, err
		}
		cond, err := p.parseOptionalWhere()
		if err != nil {
			return nil, err
		}
		return Select{Kind: kind, Condition: cond}, nil
	}

	srcKind, err := p.parseEntityType()
	if err != nil {
		return nil, err
	}
	relKind, err := p.parseRelationship()
	if err != nil {
		return nil, err
	}
	dstKind, err := p.parseEntityType()
	if err != nil {
		return nil, err
	}
	cond, err := p.parseOptionalWhere()
	if err != nil {
		return nil, err
	}
	return Traversal{SourceKind: srcKind, RelKind: relKind, DestKind: dstKind, Condition: cond}, nil
}

func (p *parser) parseEntityType() (entity.Kind, error) {
	t := p.cur()
	if t.kind != tokIdent {
		return "", syntaxErr(t.pos, fmt.Sprintf("expected entity type, got %q", t.text))
	}
	kind, ok := entityTypeKeywords[t.text]
	if !ok {
		return "", syntaxErr(t.pos, fmt.Sprintf("unknown entity type %q", t.text))
	}
	p.advance()
	return kind, nil
}

func (p *parser) parseRelationship() (entity.RelationshipKind, error) {
	t := p.cur()
	if t.kind != tokIdent {
		return "", syntaxErr(t.pos, fmt.Sprintf("expected relationship keyword, got %q", t.text))
	}
	kind, ok := relationshipKeywords[t.text]
	if !ok {
		return "", syntaxErr(t.pos, fmt.Sprintf("unknown relationship %q", t.text))
	}
	p.advance()
	return kind, nil
}

func (p *parser) parseOptionalWhere() (Condition, error) {
	if p.cur().kind == tokIdent && p.cur().text == "where" {
		p.advance()
		return p.parseCondition()
	}
	return nil, nil
}

// parseCondition parses a right-associative chain of logical operators:
// condition := unit ( logical condition )?
// "not" discards the left operand entirely: "a not b" compiles to Not{b},
// matching the original parser's right-operand negation.
func (p *parser) parseCondition() (Condition, error) {
	left, err := p.parseConditionUnit()
	if err != nil {
		return nil, err
	}

	if p.cur().kind == tokIdent {
		switch p.cur().text {
		case "and":
			p.advance()
			right, err := p.parseCondition()
			if err != nil {
				return nil, err
			}
			return And{Left: left, Right: right}, nil
		case "or":
			p.advance()
			right, err := p.parseCondition()
			if err != nil {
				return nil, err
			}
			return Or{Left: left, Right: right}, nil
		case "not":
			p.advance()
			right, err := p.parseCondition()
			if err != nil {
				return nil, err
			}
			return Not{X: right}, nil
		}
	}
	return left, nil
}

func (p *parser) parseConditionUnit() (Condition, error) {
	t := p.cur()
	switch {
	case t.kind == tokLParen:
		p.advance()
		c, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		if p.cur().kind != tokRParen {
			return nil, syntaxErr(p.cur().pos, "expected ')'")
		}
		p.advance()
		return c, nil
	case t.kind == tokIdent && t.text == "has":
		p.advance()
		attr, err := p.parseAttribute()
		if err != nil {
			return nil, err
		}
		return Has{Attribute: attr}, nil
	default:
		return p.parseSimple()
	}
}

func (p *parser) parseSimple() (Condition, error) {
	attr, err := p.parseAttribute()
	if err != nil {
		return nil, err
	}
	op, err := p.parseOperator()
	if err != nil {
		return nil, err
	}
	val, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return Cmp{Attribute: attr, Op: op, Value: val}, nil
}

func (p *parser) parseAttribute() (string, error) {
	t := p.cur()
	if t.kind != tokIdent {
		return "", syntaxErr(t.pos, fmt.Sprintf("expected attribute name, got %q", t.text))
	}
	p.advance()
	return t.text, nil
}

func (p *parser) parseOperator() (string, error) {
	t := p.cur()
	if t.kind == tokOp {
		p.advance()
		return t.text, nil
	}
	if t.kind == tokIdent && t.text == "like" {
		p.advance()
		return "like", nil
	}
	return "", syntaxErr(t.pos, fmt.Sprintf("expected comparison operator, got %q", t.text))
}

func (p *parser) parseValue() (string, error) {
	t := p.cur()
	switch t.kind {
	case tokString, tokNumber:
		p.advance()
		return t.text, nil
	}
	return "", syntaxErr(t.pos, fmt.Sprintf("expected value, got %q", t.text))
}
