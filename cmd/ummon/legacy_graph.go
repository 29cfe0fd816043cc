package main

import (
	"encoding/json"
	"fmt"

	"github.com/ummon-dev/ummon/internal/entity"
)

// This file decodes the legacy JSON knowledge-graph serialization the
// original ummon wrote (graph/knowledge_graph.rs, graph/entity.rs,
// graph/relationship.rs): a map of entity id to an externally-tagged Rust
// enum ({"Function": {...}}, {"Type": {...}}, ..., {"Base": {...}}) plus a
// flat relationship list. Decoding is pragmatic rather than byte-exact:
// every variant's shared `base` record is preserved in full (id, name,
// entity_type, location, file_path, documentation, metadata), since that is
// what entity.Entity and Entity.Validate actually need; variant-specific
// fields (parameters, supertypes, ...) that this system's Entity model
// doesn't carry are intentionally dropped rather than forced into Metadata.

type legacyGraph struct {
	Entities         map[string]json.RawMessage `json:"entities"`
	RelationshipData []legacyRelationship       `json:"relationship_data"`
}

type legacyPosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"`
}

type legacyLocation struct {
	Start legacyPosition `json:"start"`
	End   legacyPosition `json:"end"`
}

type legacyBase struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	EntityType       json.RawMessage   `json:"entity_type"`
	Location         *legacyLocation   `json:"location"`
	FilePath         *string           `json:"file_path"`
	ContainingEntity *string           `json:"containing_entity"`
	Documentation    *string           `json:"documentation"`
	Metadata         map[string]string `json:"metadata"`
}

// legacyEntityBody is the shape of every non-Base variant: a `base` record
// plus variant-specific fields this decoder ignores.
type legacyEntityBody struct {
	Base legacyBase `json:"base"`
}

// legacyKindByName maps the original's unit EntityType variants to this
// system's Kind constants; anything else (including an Other(String)
// variant) round-trips verbatim as a forwards-compatible token, per
// entity.IsKnownKind's own tolerance for unrecognized kinds.
var legacyKindByName = map[string]entity.Kind{
	"Function":      entity.KindFunction,
	"Method":        entity.KindMethod,
	"Class":         entity.KindClass,
	"Interface":     entity.KindInterface,
	"Trait":         entity.KindTrait,
	"Struct":        entity.KindStruct,
	"Enum":          entity.KindEnum,
	"Module":        entity.KindModule,
	"File":          entity.KindFile,
	"Variable":      entity.KindVariable,
	"Field":         entity.KindField,
	"Constant":      entity.KindConstant,
	"DomainConcept": entity.KindDomainConcept,
	"Type":          entity.KindType,
}

// decodeLegacyKind decodes an EntityType value, which serializes as a plain
// string for unit variants ("Function") or as {"Other": "x"} for the
// catch-all variant.
func decodeLegacyKind(raw json.RawMessage) entity.Kind {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		if k, ok := legacyKindByName[name]; ok {
			return k
		}
		return entity.Kind(name)
	}
	var other map[string]string
	if err := json.Unmarshal(raw, &other); err == nil {
		if v, ok := other["Other"]; ok {
			return entity.Kind(v)
		}
	}
	return entity.KindPlaceholder
}

// legacyRelationshipKindByName maps the original's unit RelationshipType
// variants to this system's RelationshipKind constants. "Depends" and
// "DependsOn" are distinct variants in the original (a generic technical
// dependency vs. a domain-concept dependency); this system models only one
// dependency kind, so both collapse onto RelDependsOn.
var legacyRelationshipKindByName = map[string]entity.RelationshipKind{
	"Calls":         entity.RelCalls,
	"Contains":      entity.RelContains,
	"Imports":       entity.RelImports,
	"Inherits":      entity.RelInherits,
	"Implements":    entity.RelImplements,
	"References":    entity.RelReferences,
	"Defines":       entity.RelDefines,
	"Uses":          entity.RelUses,
	"Depends":       entity.RelDependsOn,
	"DependsOn":     entity.RelDependsOn,
	"RepresentedBy": entity.RelRepresentedBy,
	"RelatesTo":     entity.RelRelatesTo,
}

func decodeLegacyRelationshipKind(raw json.RawMessage) entity.RelationshipKind {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		if k, ok := legacyRelationshipKindByName[name]; ok {
			return k
		}
		return entity.RelationshipKind(name)
	}
	var other map[string]string
	if err := json.Unmarshal(raw, &other); err == nil {
		if v, ok := other["Other"]; ok {
			return entity.RelationshipKind(v)
		}
	}
	return entity.RelRelatesTo
}

type legacyRelationship struct {
	ID               string            `json:"id"`
	SourceID         string            `json:"source_id"`
	TargetID         string            `json:"target_id"`
	RelationshipType json.RawMessage   `json:"relationship_type"`
	Weight           float64           `json:"weight"`
	Metadata         map[string]string `json:"metadata"`
}

func legacyBaseToEntity(base legacyBase) entity.Entity {
	e := entity.Entity{
		ID:       entity.ID(base.ID),
		Name:     base.Name,
		Kind:     decodeLegacyKind(base.EntityType),
		Metadata: base.Metadata,
	}
	if base.Documentation != nil {
		e.Documentation = *base.Documentation
	}
	if base.ContainingEntity != nil {
		e.ContainingEntity = entity.ID(*base.ContainingEntity)
	}
	filePath := ""
	if base.FilePath != nil {
		filePath = *base.FilePath
	}
	if filePath != "" || base.Location != nil {
		loc := &entity.Location{FilePath: filePath}
		if base.Location != nil {
			loc.Start = &entity.Position{Line: base.Location.Start.Line, Column: base.Location.Start.Column}
			loc.End = &entity.Position{Line: base.Location.End.Line, Column: base.Location.End.Column}
		}
		e.Location = loc
	}
	return e
}

func legacyRelationshipToRelationship(r legacyRelationship) entity.Relationship {
	return entity.Relationship{
		ID:       entity.ID(r.ID),
		SourceID: entity.ID(r.SourceID),
		TargetID: entity.ID(r.TargetID),
		Kind:     decodeLegacyRelationshipKind(r.RelationshipType),
		Weight:   r.Weight,
		Metadata: r.Metadata,
	}
}

// decodeLegacyGraph parses the legacy JSON payload into this system's
// entity/relationship records, returning an error for any entity whose
// outer enum wrapper isn't a single-key object.
func decodeLegacyGraph(data []byte) ([]entity.Entity, []entity.Relationship, error) {
	var g legacyGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, nil, fmt.Errorf("parse legacy graph json: %w", err)
	}

	entities := make([]entity.Entity, 0, len(g.Entities))
	for id, raw := range g.Entities {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, nil, fmt.Errorf("entity %s: %w", id, err)
		}
		if len(wrapper) != 1 {
			return nil, nil, fmt.Errorf("entity %s: expected a single-key variant wrapper, got %d keys", id, len(wrapper))
		}
		for variant, body := range wrapper {
			var base legacyBase
			if variant == "Base" {
				if err := json.Unmarshal(body, &base); err != nil {
					return nil, nil, fmt.Errorf("entity %s (Base): %w", id, err)
				}
			} else {
				var wrapped legacyEntityBody
				if err := json.Unmarshal(body, &wrapped); err != nil {
					return nil, nil, fmt.Errorf("entity %s (%s): %w", id, variant, err)
				}
				base = wrapped.Base
			}
			entities = append(entities, legacyBaseToEntity(base))
		}
	}

	relationships := make([]entity.Relationship, 0, len(g.RelationshipData))
	for _, r := range g.RelationshipData {
		relationships = append(relationships, legacyRelationshipToRelationship(r))
	}

	return entities, relationships, nil
}
