package parseradapter

import (
	"strconv"
	"strings"

	"github.com/ummon-dev/ummon/internal/entity"
)

// Entity converts a FunctionDef into the §3 Entity record an adapter's
// output feeds directly into the store.
func (f FunctionDef) Entity() entity.Entity {
	kind := entity.KindFunction
	if f.IsMethod {
		kind = entity.KindMethod
	}
	e := entity.Entity{
		ID:               f.ID,
		Name:             f.Name,
		Kind:             kind,
		Location:         &f.Location,
		Documentation:    f.Documentation,
		ContainingEntity: f.ContainingEntity,
		Visibility:       f.Visibility,
		Parameters:       f.Parameters,
		ReturnType:       f.ReturnType,
	}
	if f.ReceiverType != "" {
		e.Metadata = map[string]string{"receiver_type": f.ReceiverType}
	}
	return e
}

// Entity converts a TypeDef into the §3 Entity record.
func (t TypeDef) Entity() entity.Entity {
	metadata := map[string]string{}
	if len(t.FieldIDs) > 0 {
		metadata["field_ids"] = joinIDs(t.FieldIDs)
	}
	if len(t.MethodIDs) > 0 {
		metadata["method_ids"] = joinIDs(t.MethodIDs)
	}
	if len(t.SupertypeIDs) > 0 {
		metadata["supertype_ids"] = joinIDs(t.SupertypeIDs)
	}
	if t.IsAbstract {
		metadata["is_abstract"] = strconv.FormatBool(true)
	}
	if len(metadata) == 0 {
		metadata = nil
	}
	return entity.Entity{
		ID:            t.ID,
		Name:          t.Name,
		Kind:          t.Kind,
		Location:      &t.Location,
		Documentation: t.Documentation,
		Visibility:    t.Visibility,
		Metadata:      metadata,
	}
}

// Entity converts a ModuleDef into the §3 Entity record.
func (m ModuleDef) Entity() entity.Entity {
	metadata := map[string]string{}
	if len(m.ChildIDs) > 0 {
		metadata["child_ids"] = joinIDs(m.ChildIDs)
	}
	if len(m.ImportPaths) > 0 {
		metadata["imports"] = strings.Join(m.ImportPaths, ",")
	}
	if len(metadata) == 0 {
		metadata = nil
	}
	return entity.Entity{
		ID:       m.ID,
		Name:     m.Path,
		Kind:     entity.KindModule,
		Location: &entity.Location{FilePath: m.Path},
		Metadata: metadata,
	}
}

// Relationship converts a CallRef into the §3 Relationship record, using
// the deterministic default id.
func (c CallRef) Relationship() entity.Relationship {
	return entity.Relationship{
		ID:       entity.DefaultRelationshipID(c.CallerID, c.CalleeID, entity.RelCalls),
		SourceID: c.CallerID,
		TargetID: c.CalleeID,
		Kind:     entity.RelCalls,
		Weight:   1.0,
	}
}

func joinIDs(ids []entity.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}
