package dbexec

import (
	"context"
	"strings"

	"github.com/go-hierarchy/provider/internal/hierarchy"
	"github.com/go-hierarchy/provider/internal/metadata"
)

// ClassRelation declares one level of a hierarchy in terms of a relational
// class and the SQL query that produces its rows, the way the teacher's
// config.Relation declares a table and the nested tables that depend on
// it. A root relation's Query needs no placeholder; a nested relation's
// Query carries a single "?" placeholder that is expanded to one "?" per
// deduplicated parent instance id when the level is bound (spec.md ยง4.3
// "the full set of parent instance ids, as a deduplicated list") — e.g.
// "SELECT * FROM bis_element WHERE model_id IN (?)".
type ClassRelation struct {
	ClassName string
	Query     string
	Relations []ClassRelation
}

// DeclarativeDefinition is a HierarchyDefinition built from a static tree
// of ClassRelations instead of Go code, so cmd/hiertree can point at an
// arbitrary MySQL schema purely through configuration. It implements the
// custom per-class factory rule of spec.md ยง4.3 via
// hierarchy.SelectForParent: every nested relation is flattened into an
// InstanceQuery definition tagged with its declaring parent's class name
// as ParentNodeClassName, so a relation declared under Bis.Model is also
// selected for a parent whose instance class derives from Bis.Model.
type DeclarativeDefinition struct {
	roots  hierarchy.LevelDefinition
	nested []hierarchy.NodeDefinition
	md     metadata.Provider
}

// NewDeclarativeDefinition flattens the ClassRelation tree into root-level
// and nested NodeDefinitions. md resolves base-class derivation for the
// per-class factory selection (spec.md ยง4.3).
func NewDeclarativeDefinition(roots []ClassRelation, md metadata.Provider) *DeclarativeDefinition {
	d := &DeclarativeDefinition{md: md}
	for _, r := range roots {
		d.roots = append(d.roots, hierarchy.NewInstanceQueryDefinition(r.ClassName, hierarchy.Query{SQL: r.Query}))
		d.indexChildren(r)
	}
	return d
}

// indexChildren flattens relation's nested Relations into d.nested, each
// tagged with relation's own class name as its ParentNodeClassName, in
// declared order (spec.md ยง4.3 "the union, in declared order").
func (d *DeclarativeDefinition) indexChildren(relation ClassRelation) {
	for _, child := range relation.Relations {
		def := hierarchy.NewInstanceQueryDefinition(child.ClassName, hierarchy.Query{SQL: child.Query})
		def.ParentNodeClassName = hierarchy.NormalizeClassName(relation.ClassName)
		d.nested = append(d.nested, def)
		d.indexChildren(child)
	}
}

// DefineLevel implements hierarchy.HierarchyDefinition. The root level is
// the declared root relations; any other level is selected from the
// flattened nested definitions via hierarchy.SelectForParent and bound to
// the parent's deduplicated instance ids.
func (d *DeclarativeDefinition) DefineLevel(ctx context.Context, parent *hierarchy.ProcessedNode, filter *hierarchy.InstanceFilter) (hierarchy.LevelDefinition, error) {
	if parent == nil {
		return d.roots, nil
	}

	selected, instanceFilter, err := hierarchy.SelectForParent(ctx, d.nested, parent, d.md)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, nil
	}
	return bindParentIDs(selected, instanceFilter), nil
}

// bindParentIDs expands each selected definition's single "?" placeholder
// into one "?" per deduplicated parent instance id (spec.md ยง4.3).
func bindParentIDs(defs []hierarchy.NodeDefinition, filter *hierarchy.InstanceFilter) hierarchy.LevelDefinition {
	placeholders := "?"
	var ids []interface{}
	if filter != nil && len(filter.ParentInstanceIDs) > 0 {
		ids = make([]interface{}, len(filter.ParentInstanceIDs))
		for i, id := range filter.ParentInstanceIDs {
			ids[i] = id
		}
		placeholders = strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	}

	level := make(hierarchy.LevelDefinition, len(defs))
	for i, def := range defs {
		q := *def.InstanceQuery
		q.SQL = strings.Replace(q.SQL, "?", placeholders, 1)
		q.Bindings = ids
		def.InstanceQuery = &q
		level[i] = def
	}
	return level
}
