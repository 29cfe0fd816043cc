// Package entity defines the heterogeneous entity/relationship data model
// that the knowledge graph store, query engine, and relevance pipeline all
// operate on.
package entity

import "fmt"

// Position is a 1-indexed line/column location within a source file.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Location pins an entity to a file and an optional span within it.
type Location struct {
	FilePath string    `json:"file_path"`
	Start    *Position `json:"start,omitempty"`
	End      *Position `json:"end,omitempty"`
}

func (l Location) String() string {
	if l.Start == nil {
		return l.FilePath
	}
	if l.End == nil {
		return fmt.Sprintf("%s:%d:%d", l.FilePath, l.Start.Line, l.Start.Column)
	}
	return fmt.Sprintf("%s:%d:%d-%d:%d", l.FilePath, l.Start.Line, l.Start.Column, l.End.Line, l.End.Column)
}

// ID uniquely identifies an entity. IDs are opaque, stable strings assigned
// at creation time; callers must not infer structure from their contents.
type ID string

// Kind is the closed set of entity variants this system understands. It is
// intentionally a small, sealed tag set rather than an open interface{} or
// type-switch-over-any scheme: adding a kind is a deliberate, reviewed change
// everywhere a Kind is handled, not an accidental one.
type Kind string

const (
	KindFunction      Kind = "Function"
	KindMethod        Kind = "Method"
	KindClass         Kind = "Class"
	KindStruct        Kind = "Struct"
	KindInterface     Kind = "Interface"
	KindTrait         Kind = "Trait"
	KindEnum          Kind = "Enum"
	KindType          Kind = "Type"
	KindModule        Kind = "Module"
	KindFile          Kind = "File"
	KindVariable      Kind = "Variable"
	KindField         Kind = "Field"
	KindConstant      Kind = "Constant"
	KindDomainConcept Kind = "DomainConcept"
	KindPlaceholder   Kind = "Placeholder"
)

// knownKinds is the named set; any other non-empty string is accepted as a
// forwards-compatible "Other" kind (see Validate) rather than rejected, so a
// store written by a newer binary still loads under an older one.
var knownKinds = map[Kind]bool{
	KindFunction: true, KindMethod: true, KindClass: true, KindStruct: true,
	KindInterface: true, KindTrait: true, KindEnum: true, KindType: true,
	KindModule: true, KindFile: true, KindVariable: true, KindField: true,
	KindConstant: true, KindDomainConcept: true, KindPlaceholder: true,
}

// Visibility mirrors the access modifiers most statically typed languages
// expose; VisibilityUnknown covers languages (or partial parses) where it
// cannot be determined.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityPrivate   Visibility = "private"
	VisibilityProtected Visibility = "protected"
	VisibilityInternal  Visibility = "internal"
	VisibilityUnknown   Visibility = "unknown"
)

// Parameter describes one formal parameter of a function or method.
type Parameter struct {
	Name     string `json:"name"`
	TypeName string `json:"type_name,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

// Entity is a single node in the knowledge graph: a function, type, module,
// file, or other indexed code element. It is modeled as a sealed struct with
// a Kind tag plus kind-specific fields left empty where irrelevant, not as a
// trait/interface{} union — this keeps (de)serialization, SQL storage, and
// exhaustive kind-switches simple and keeps storage/query code from needing
// type assertions on every access.
type Entity struct {
	ID               ID         `json:"id"`
	Name             string     `json:"name"`
	Kind             Kind       `json:"kind"`
	Location         *Location  `json:"location,omitempty"`
	Documentation    string     `json:"documentation,omitempty"`
	ContainingEntity ID         `json:"containing_entity,omitempty"`
	Visibility       Visibility `json:"visibility,omitempty"`
	Signature        string     `json:"signature,omitempty"`
	Parameters       []Parameter `json:"parameters,omitempty"`
	ReturnType       string     `json:"return_type,omitempty"`
	// Placeholder marks an entity that was referenced (e.g. as a call target
	// or relationship endpoint) before it was ever observed as a definition.
	// Placeholders are materialized eagerly so relationships never dangle,
	// and are promoted to full entities in place once the real definition
	// is indexed.
	Placeholder bool `json:"placeholder,omitempty"`
	// Metadata carries kind-specific attributes that don't warrant a
	// dedicated struct field: DomainConcept's attributes/description/
	// confidence, a type's supertype/field/method id lists (joined), a
	// module's import strings, and similar. Query conditions (C4) resolve
	// any attribute name other than name/file_path/documentation against
	// this map.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RelationshipKind is the closed set of edge types between entities.
type RelationshipKind string

const (
	RelCalls         RelationshipKind = "Calls"
	RelContains      RelationshipKind = "Contains"
	RelImports       RelationshipKind = "Imports"
	RelInherits      RelationshipKind = "Inherits"
	RelImplements    RelationshipKind = "Implements"
	RelReferences    RelationshipKind = "References"
	RelDefines       RelationshipKind = "Defines"
	RelUses          RelationshipKind = "Uses"
	RelDependsOn     RelationshipKind = "DependsOn"
	RelRepresentedBy RelationshipKind = "RepresentedBy"
	RelRelatesTo     RelationshipKind = "RelatesTo"
	// RelExtends is kept as an alias some older parsers may emit; the query
	// grammar's "inherits"/"inheriting" keyword maps to RelInherits.
	RelExtends RelationshipKind = "Extends"
)

var knownRelationshipKinds = map[RelationshipKind]bool{
	RelCalls: true, RelContains: true, RelImports: true, RelInherits: true,
	RelImplements: true, RelReferences: true, RelDefines: true, RelUses: true,
	RelDependsOn: true, RelRepresentedBy: true, RelRelatesTo: true, RelExtends: true,
}

// Relationship is a directed, weighted edge between two entities.
type Relationship struct {
	ID       ID               `json:"id"`
	SourceID ID               `json:"source_id"`
	TargetID ID               `json:"target_id"`
	Kind     RelationshipKind  `json:"kind"`
	Weight   float64           `json:"weight"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate enforces the data-model invariants: non-empty id/name and (for
// relationships) distinct, non-empty endpoints with a non-negative weight.
// A Kind or RelationshipKind outside the named constants is accepted rather
// than rejected: it round-trips as a forwards-compatible "Other" token (see
// spec §4.8) so a store written by a newer binary still loads here.
func (e Entity) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("entity: id must not be empty")
	}
	if e.Name == "" {
		return fmt.Errorf("entity %s: name must not be empty", e.ID)
	}
	if e.Kind == "" {
		return fmt.Errorf("entity %s: kind must not be empty", e.ID)
	}
	if e.Kind == KindDomainConcept && e.Metadata != nil {
		clampConfidence(e.Metadata)
	}
	return nil
}

// clampConfidence clamps metadata["confidence"] to [0, 1] in place, per the
// DomainConcept invariant in spec §3.5. Unparseable or absent values are
// left untouched.
func clampConfidence(metadata map[string]string) {
	raw, ok := metadata["confidence"]
	if !ok {
		return
	}
	var c float64
	if _, err := fmt.Sscanf(raw, "%g", &c); err != nil {
		return
	}
	if c < 0 {
		c = 0
	} else if c > 1 {
		c = 1
	}
	metadata["confidence"] = fmt.Sprintf("%g", c)
}

// Validate enforces relationship invariants: non-empty id, non-empty and
// distinct endpoints, a non-empty kind, and a non-negative weight.
func (r Relationship) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("relationship: id must not be empty")
	}
	if r.Kind == "" {
		return fmt.Errorf("relationship %s: kind must not be empty", r.ID)
	}
	if r.SourceID == "" || r.TargetID == "" {
		return fmt.Errorf("relationship %s: source_id and target_id must not be empty", r.ID)
	}
	if r.SourceID == r.TargetID {
		return fmt.Errorf("relationship %s: source_id and target_id must differ (self-loops are not modeled)", r.ID)
	}
	if r.Weight < 0 {
		return fmt.Errorf("relationship %s: weight must be non-negative, got %v", r.ID, r.Weight)
	}
	return nil
}

// IsKnownKind reports whether k is one of the named Kind constants, as
// opposed to a forwards-compatible token from a newer schema version.
func IsKnownKind(k Kind) bool { return knownKinds[k] }

// IsKnownRelationshipKind reports whether k is one of the named
// RelationshipKind constants, as opposed to a forwards-compatible token.
func IsKnownRelationshipKind(k RelationshipKind) bool { return knownRelationshipKinds[k] }

// DefaultRelationshipID builds the deterministic default id for a
// relationship from its endpoints and kind, per spec §3: collisions are
// treated as idempotent upserts rather than distinct rows.
func DefaultRelationshipID(sourceID, targetID ID, kind RelationshipKind) ID {
	return ID(fmt.Sprintf("%s->%s::%s", sourceID, targetID, kind))
}
