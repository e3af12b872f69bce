package hierarchy

import (
	"context"

	"github.com/go-hierarchy/provider/internal/metadata"
)

// FilterPaths is the caller-supplied set of identifier paths a filtering
// Provider restricts its output to (spec.md ยง4.6, ยง6.2 "filtering?").
type FilterPaths []IdentifierPath

// suffixMatch is what the filtering wrapper records for one NodeDefinition
// that survived rewriting at the current level: the remaining path
// suffixes it should propagate to its children, plus whether this
// definition is itself a filter target.
type suffixMatch struct {
	suffixes      []IdentifierPath
	isTarget      bool
	targetOptions *FilterTargetOptions
}

// filteringDefinition wraps a HierarchyDefinition so every level it
// produces is restricted to nodes on the caller's filter paths
// (spec.md ยง4.6). It also implements NodeParser so the row reader can
// reconstruct FilteringInfo from the synthetic filter columns an
// instance-query definition is rewritten to emit.
type filteringDefinition struct {
	inner HierarchyDefinition
	md    metadata.Provider
	paths FilterPaths
}

// NewFilteringDefinition decorates inner with filter-path restriction. An
// empty (non-nil) paths list makes every level produce no nodes at all
// (spec.md ยง4.6 "empty paths list -> return no nodes"); a nil paths value
// passes every level through unchanged ("paths absent -> pass-through").
func NewFilteringDefinition(inner HierarchyDefinition, md metadata.Provider, paths FilterPaths) HierarchyDefinition {
	if paths == nil {
		return inner
	}
	return &filteringDefinition{inner: inner, md: md, paths: paths}
}

// DefineLevel implements LevelDefinitionsFactory, rewriting the inner
// definition's level per spec.md ยง4.6.
func (f *filteringDefinition) DefineLevel(ctx context.Context, parent *ProcessedNode, filter *InstanceFilter) (LevelDefinition, error) {
	activePaths, parentIsTarget := pathsForParent(f.paths, parent)
	if len(activePaths) == 0 && !parentIsTarget {
		return LevelDefinition{}, nil
	}

	defs, err := f.inner.DefineLevel(ctx, parent, filter)
	if err != nil {
		return nil, err
	}

	if parentIsTarget {
		// Every definition of a filter target's child level is returned.
		// Generic definitions are marked has_filter_target_ancestor=true;
		// instance-query definitions are returned unchanged, so their rows
		// carry the mark only if the query selects the
		// ColHasFilterTargetAncestor column (spec.md ยง4.6
		// "If a parent node is a filter target... all of its source child
		// definitions are returned").
		out := make(LevelDefinition, len(defs))
		for i, d := range defs {
			out[i] = markAncestorTarget(d)
		}
		return out, nil
	}

	var out LevelDefinition
	for _, d := range defs {
		switch d.Kind {
		case DefinitionGeneric:
			match, ok := matchGenericAtPaths(activePaths, d.GenericNode.Key)
			if !ok {
				continue
			}
			out = append(out, applyGenericMatch(d, match))
		case DefinitionInstanceQuery:
			matches := matchInstancePathsForClass(ctx, activePaths, d.FullClassName, f.md)
			if len(matches) == 0 {
				continue
			}
			out = append(out, rewriteInstanceQuery(d, matches))
		}
	}
	return out, nil
}

// ParseNode implements NodeParser when the inner definition does not
// supply its own, building filtering-aware Source nodes from the synthetic
// columns a rewritten instance query emits (spec.md ยง4.6).
func (f *filteringDefinition) ParseNode(row Row) (*SourceNode, error) {
	if custom, ok := f.inner.(NodeParser); ok {
		return custom.ParseNode(row)
	}
	lookup := func(filterID, filterClassName string) ([]IdentifierPath, bool, *FilterTargetOptions) {
		return resolveFilterLookup(row, filterID, filterClassName)
	}
	return DefaultRowParser(lookup).ParseRow(row)
}

func markAncestorTarget(d NodeDefinition) NodeDefinition {
	if d.Kind == DefinitionGeneric && d.GenericNode != nil {
		clone := *d.GenericNode
		if clone.Filtering == nil {
			clone.Filtering = &FilteringInfo{}
		}
		clone.Filtering.HasFilterTargetAncestor = true
		d.GenericNode = &clone
	}
	return d
}

// pathsForParent narrows the caller's full path set to those whose prefix
// matches the parent the current level is being resolved for, and reports
// whether the parent itself was marked a filter target (in which case the
// entire subtree passes through, per spec.md ยง4.6).
func pathsForParent(paths FilterPaths, parent *ProcessedNode) (FilterPaths, bool) {
	if parent == nil {
		return paths, false
	}
	if parent.Filtering != nil && parent.Filtering.IsFilterTarget && !hasDeeperAncestor(parent) {
		return nil, true
	}
	if parent.Filtering != nil {
		return parent.Filtering.FilteredChildrenIdentifierPaths, false
	}
	return nil, false
}

func hasDeeperAncestor(parent *ProcessedNode) bool {
	return parent.Filtering != nil && parent.Filtering.HasFilterTargetAncestor
}

func matchGenericAtPaths(paths FilterPaths, key NodeKey) (suffixMatch, bool) {
	var m suffixMatch
	found := false
	for _, p := range paths {
		if len(p.Identifiers) == 0 {
			continue
		}
		id := p.Identifiers[0]
		if id.Kind != IdentifierGeneric {
			continue
		}
		if id.Generic.ID != key.Generic.ID {
			continue
		}
		found = true
		rest := p.Identifiers[1:]
		if len(rest) == 0 {
			m.isTarget = true
			m.targetOptions = &FilterTargetOptions{AutoExpand: p.AutoExpand, AutoExpandGrouping: p.AutoExpandGrouping}
		} else {
			m.suffixes = append(m.suffixes, IdentifierPath{Identifiers: rest, AutoExpand: p.AutoExpand, AutoExpandGrouping: p.AutoExpandGrouping})
		}
	}
	return m, found
}

func applyGenericMatch(d NodeDefinition, m suffixMatch) NodeDefinition {
	clone := *d.GenericNode
	filtering := &FilteringInfo{
		FilteredChildrenIdentifierPaths: m.suffixes,
		IsFilterTarget:                  m.isTarget,
		FilterTargetOptions:             m.targetOptions,
	}
	clone.Filtering = filtering
	if pathsDeclareAutoExpand(m.suffixes) {
		clone.AutoExpand = true
	}
	d.GenericNode = &clone
	return d
}

// pathsDeclareAutoExpand reports whether any path suffix surviving to a
// node's children declares auto_expand=true, in which case the node itself
// is marked auto-expanding (spec.md ยง4.6).
func pathsDeclareAutoExpand(suffixes []IdentifierPath) bool {
	for _, s := range suffixes {
		if s.AutoExpand {
			return true
		}
	}
	return false
}

// instancePathMatch pairs one matching NodeIdentifier with its suffix, for
// emission as filter-rewrite CTE rows (spec.md ยง4.6).
type instancePathMatch struct {
	id     NodeIdentifier
	suffix suffixMatch
}

// matchInstancePathsForClass finds every path whose identifier, at the
// current depth, names an instance of queryClassName or a class in a
// derivation relationship with it (spec.md ยง4.6 "equal to or in a
// subclass/superclass relation with the query's declared class").
func matchInstancePathsForClass(ctx context.Context, paths FilterPaths, queryClassName string, md metadata.Provider) []instancePathMatch {
	byID := make(map[InstanceKey]*instancePathMatch)
	var order []InstanceKey
	for _, p := range paths {
		if len(p.Identifiers) == 0 {
			continue
		}
		id := p.Identifiers[0]
		if id.Kind != IdentifierInstance {
			continue
		}
		related, err := classesRelated(ctx, id.Instance.ClassName, queryClassName, md)
		if err != nil || !related {
			continue
		}
		rest := p.Identifiers[1:]
		m, ok := byID[id.Instance]
		if !ok {
			order = append(order, id.Instance)
			m = &instancePathMatch{id: id}
			byID[id.Instance] = m
		}
		if len(rest) == 0 {
			m.suffix.isTarget = true
			m.suffix.targetOptions = &FilterTargetOptions{AutoExpand: p.AutoExpand, AutoExpandGrouping: p.AutoExpandGrouping}
		} else {
			m.suffix.suffixes = append(m.suffix.suffixes, IdentifierPath{Identifiers: rest, AutoExpand: p.AutoExpand, AutoExpandGrouping: p.AutoExpandGrouping})
		}
	}
	out := make([]instancePathMatch, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

func classesRelated(ctx context.Context, a, b string, md metadata.Provider) (bool, error) {
	if NormalizeClassName(a) == NormalizeClassName(b) {
		return true, nil
	}
	if ok, err := md.IsDerivedFrom(ctx, a, b); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	return md.IsDerivedFrom(ctx, b, a)
}

// rewriteInstanceQuery tags an InstanceQuery definition with its filter
// matches (spec.md ยง4.6). It appends
// the CTE name "FilterTargetIds" to CTEs, appends the matching instance
// ids to Bindings and stores the matches as FilterContext. The SQL text is
// not changed: no CTE is generated, the rows are not restricted to the
// matching ids and no synthetic filter columns are added, so rows carry
// those columns only if the query text itself selects them.
func rewriteInstanceQuery(d NodeDefinition, matches []instancePathMatch) NodeDefinition {
	bindings := make([]interface{}, 0, len(matches))
	for _, m := range matches {
		bindings = append(bindings, m.id.Instance.ID)
	}

	q := *d.InstanceQuery
	q.CTEs = append(append([]string(nil), q.CTEs...), "FilterTargetIds")
	q.Bindings = append(append([]interface{}(nil), q.Bindings...), bindings...)
	q.FilterContext = matches
	d.InstanceQuery = &q

	return d
}

// resolveFilterLookup looks up the suffix/target info previously computed
// for (filterID, filterClassName) by rewriteInstanceQuery, stashed on the
// row by the executor under the row's "__filterMatches" key so the default
// parser can reconstruct FilteringInfo purely from row data (spec.md ยง4.6
// "The parser, upon seeing these synthetic columns, looks up the path
// suffix by (FilterECInstanceId, FilterClassName)").
func resolveFilterLookup(row Row, filterID, filterClassName string) ([]IdentifierPath, bool, *FilterTargetOptions) {
	raw, ok := row["__filterMatches"]
	if !ok {
		return nil, false, nil
	}
	matches, ok := raw.([]instancePathMatch)
	if !ok {
		return nil, false, nil
	}
	for _, m := range matches {
		if m.id.Instance.ID != filterID {
			continue
		}
		if filterClassName != "" && NormalizeClassName(m.id.Instance.ClassName) != NormalizeClassName(filterClassName) {
			continue
		}
		return m.suffix.suffixes, m.suffix.isTarget, m.suffix.targetOptions
	}
	return nil, false, nil
}
