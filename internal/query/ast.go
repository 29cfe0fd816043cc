// Package query implements the structured query language (C4): a small
// grammar of select and traversal queries over a condition tree, a
// recursive-descent parser producing an AST, and two executors — one
// evaluating against the in-memory graph, one compiling conditions to
// parameterised SQL against the persistent store.
package query

import "github.com/ummon-dev/ummon/internal/entity"

// AST is either a Select or a Traversal query.
type AST interface {
	isAST()
}

// Select fetches every entity of Kind, optionally filtered by Condition.
type Select struct {
	Kind      entity.Kind
	Condition Condition
}

func (Select) isAST() {}

// Traversal fetches SourceKind entities that have at least one RelKind edge
// to a DestKind entity, the destination optionally filtered by Condition.
type Traversal struct {
	SourceKind entity.Kind
	RelKind    entity.RelationshipKind
	DestKind   entity.Kind
	Condition  Condition
}

func (Traversal) isAST() {}

// Condition is one node of the boolean filter tree: And, Or, Not, Has, or
// Cmp.
type Condition interface {
	isCondition()
}

// And is satisfied when both Left and Right are.
type And struct{ Left, Right Condition }

func (And) isCondition() {}

// Or is satisfied when either Left or Right is.
type Or struct{ Left, Right Condition }

func (Or) isCondition() {}

// Not negates X.
type Not struct{ X Condition }

func (Not) isCondition() {}

// Has is satisfied when Attribute is present and non-empty on the entity.
type Has struct{ Attribute string }

func (Has) isCondition() {}

// Cmp compares Attribute against Value using Op.
type Cmp struct {
	Attribute string
	Op        string // "=", "!=", ">", "<", ">=", "<=", "like"
	Value     string
}

func (Cmp) isCondition() {}

// entityTypeKeywords maps the grammar's entity_type tokens to entity.Kind.
var entityTypeKeywords = map[string]entity.Kind{
	"functions":       entity.KindFunction,
	"methods":         entity.KindMethod,
	"classes":         entity.KindClass,
	"interfaces":      entity.KindInterface,
	"traits":          entity.KindTrait,
	"structs":         entity.KindStruct,
	"enums":           entity.KindEnum,
	"modules":         entity.KindModule,
	"files":           entity.KindFile,
	"variables":       entity.KindVariable,
	"fields":          entity.KindField,
	"constants":       entity.KindConstant,
	"domain_concepts": entity.KindDomainConcept,
	"types":           entity.KindType,
}

// relationshipKeywords maps the grammar's relationship tokens (and their
// "-ing" aliases) to entity.RelationshipKind.
var relationshipKeywords = map[string]entity.RelationshipKind{
	"calls": entity.RelCalls, "calling": entity.RelCalls,
	"contains": entity.RelContains, "containing": entity.RelContains,
	"imports": entity.RelImports, "importing": entity.RelImports,
	"inherits": entity.RelInherits, "inheriting": entity.RelInherits,
	"implements": entity.RelImplements, "implementing": entity.RelImplements,
	"references": entity.RelReferences, "referencing": entity.RelReferences,
	"uses": entity.RelUses, "using": entity.RelUses,
	"depends_on": entity.RelDependsOn, "depending": entity.RelDependsOn,
	"represented_by": entity.RelRepresentedBy,
	"relates_to":     entity.RelRelatesTo,
}

// BidirectionalRelationship reports whether a traversal over kind should
// search both directions rather than outbound-only, per spec §4.4: RelatesTo
// and unknown/forwards-compatible kinds are bidirectional.
func BidirectionalRelationship(kind entity.RelationshipKind) bool {
	return kind == entity.RelRelatesTo || !entity.IsKnownRelationshipKind(kind)
}
