package hierarchy

// AutoExpandMode is the declared auto-expand behavior of a grouping
// handler's params (spec.md ยง3.2).
type AutoExpandMode int

const (
	AutoExpandNone AutoExpandMode = iota
	AutoExpandAlways
	AutoExpandSingleChild
)

// LabelGroupingAction is the explicit tagged variant that replaces the
// ambiguous `by_label: bool | "merge" | "group"` shape described in
// spec.md ยง9's Open Questions. There is deliberately no boolean
// constructor — see DESIGN.md.
type LabelGroupingAction int

const (
	LabelGroupingMerge LabelGroupingAction = iota
	LabelGroupingGroup
)

// ByBaseClassesParams is the by_base_classes grouping instruction
// (spec.md ยง3.2).
type ByBaseClassesParams struct {
	FullClassNames       []string
	HideIfNoSiblings     bool
	HideIfOneGroupedNode bool
	AutoExpand           AutoExpandMode
}

// ByClassParams is the by_class grouping instruction.
type ByClassParams struct {
	HideIfNoSiblings     bool
	HideIfOneGroupedNode bool
	AutoExpand           AutoExpandMode
}

// ByLabelParams is the by_label grouping instruction.
type ByLabelParams struct {
	Action               LabelGroupingAction
	GroupID              string
	HideIfNoSiblings     bool
	HideIfOneGroupedNode bool
	AutoExpand           AutoExpandMode
}

// PropertyRange is a declared (from, to) range for by_properties grouping.
type PropertyRange struct {
	From  float64
	To    float64
	Label string // optional; defaults to "<from> - <to>"
}

// PropertyGroup declares grouping behavior for a single property.
type PropertyGroup struct {
	PropertyName  string
	PropertyValue interface{}
	Ranges        []PropertyRange
}

// ByPropertiesParams is the by_properties grouping instruction.
type ByPropertiesParams struct {
	PropertyClassName    string
	PropertyGroups       []PropertyGroup
	HideIfNoSiblings     bool
	HideIfOneGroupedNode bool
	AutoExpand           AutoExpandMode
}

// GroupingInstructions is processing_params.grouping (spec.md ยง3.2): any
// combination of the four grouping instruction kinds may be present on a
// single node.
type GroupingInstructions struct {
	ByBaseClasses *ByBaseClassesParams
	ByClass       *ByClassParams
	ByLabel       *ByLabelParams
	ByProperties  *ByPropertiesParams
}

// ProcessingParams carries pipeline instructions attached to a node by its
// definition or parser; stripped before a node is finalized (spec.md ยง3.2).
type ProcessingParams struct {
	HideInHierarchy  bool
	HideIfNoChildren bool
	Grouping         *GroupingInstructions
}

// GroupingAutoExpandMarker ties a filter target's auto-expand request to a
// specific grouping node identified by key and depth (spec.md ยง4.7).
type GroupingAutoExpandMarker struct {
	GroupingKey GroupingKey
	Depth       int
}

// FilterTargetOptions carries the options a filter path attaches to its
// terminal node (spec.md ยง3.2, ยง4.7).
type FilterTargetOptions struct {
	AutoExpand         bool
	AutoExpandGrouping *GroupingAutoExpandMarker
}

// FilteringInfo carries the state the filtering wrapper attaches to a node
// (spec.md ยง3.2).
type FilteringInfo struct {
	FilteredChildrenIdentifierPaths []IdentifierPath
	IsFilterTarget                  bool
	FilterTargetOptions             *FilterTargetOptions
	HasFilterTargetAncestor         bool
}

// SourceNode is the shape produced by a level definition or the row reader,
// before any pipeline processing (spec.md ยง3.2).
type SourceNode struct {
	Label            Label
	Key              NodeKey
	ExtendedData     map[string]interface{}
	ProcessingParams *ProcessingParams
	Filtering        *FilteringInfo

	// AutoExpand is set when the node itself (not a grouping ancestor) was
	// declared auto-expanding — either by the row's own AutoExpand column
	// or by a filter path suffix matched at this node that declared
	// auto_expand=true (spec.md ยง4.6 "If any matching suffix declares
	// auto_expand=true, set auto_expand=true on the node").
	AutoExpand bool

	// ChildrenKnown is nil when children are unknown (the common case);
	// when non-nil it can only be false (spec.md ยง3.2: "undefined | false").
	ChildrenKnown *bool
}

func falseP() *bool { f := false; return &f }

// MarkNoChildren records that this source node is statically known to have
// no children (used by some generic node definitions).
func (n *SourceNode) MarkNoChildren() {
	n.ChildrenKnown = falseP()
}

// ProcessedNode is the in-pipeline node shape: formatted label,
// parent-keys assigned, grouping/filtering metadata still attached
// (spec.md ยง3.2).
type ProcessedNode struct {
	Label            string
	Key              NodeKey
	ParentKeys       []NodeKey
	ExtendedData     map[string]interface{}
	ProcessingParams *ProcessingParams
	Filtering        *FilteringInfo
	AutoExpand       bool

	// Children is nil until determine-children resolves it.
	Children *bool

	// GroupedChildren holds the materialized children of a grouping node.
	// Always non-nil (though possibly empty) when Key.IsGrouping() is
	// true (spec.md ยง3.3).
	GroupedChildren []*FinalNode

	// rawGroupedChildren holds the pre-finalization processed children of a
	// grouping node while the grouping stage still may dissolve it
	// (hide-if-no-siblings, hide-if-one-grouped-node) or nest it under a
	// less-derived base-class group (spec.md ยง4.5). finalizeNode
	// reads it to build GroupedChildren once the level's grouping pass is
	// done (it does not clear it); GroupedChildren is the only field
	// visible outside this package.
	rawGroupedChildren []*ProcessedNode
}

// leaves returns the non-grouping descendants of a (possibly nested)
// grouping node, recursing through rawGroupedChildren. A plain node is its
// own single leaf.
func (p *ProcessedNode) leaves() []*ProcessedNode {
	if p.Key.Kind != NodeKeyGrouping {
		return []*ProcessedNode{p}
	}
	var out []*ProcessedNode
	for _, c := range p.rawGroupedChildren {
		out = append(out, c.leaves()...)
	}
	return out
}

// FinalNode is the node shape yielded to callers of get_nodes: Processed
// minus ProcessingParams, with Children resolved to a concrete bool
// (spec.md ยง3.2).
type FinalNode struct {
	Label                   string
	Key                     NodeKey
	ParentKeys              []NodeKey
	ExtendedData            map[string]interface{}
	IsFilterTarget          bool
	FilterTargetOptions     *FilterTargetOptions
	HasFilterTargetAncestor bool
	AutoExpand              bool
	Children                bool
	GroupedChildren         []*FinalNode
}

// finalize strips processing params and copies the remaining fields,
// implementing pipeline step 10 (spec.md ยง4.4).
func finalize(p *ProcessedNode) *FinalNode {
	f := &FinalNode{
		Label:           p.Label,
		Key:             p.Key,
		ParentKeys:      p.ParentKeys,
		ExtendedData:    p.ExtendedData,
		AutoExpand:      p.AutoExpand,
		GroupedChildren: p.GroupedChildren,
	}
	if p.Children != nil {
		f.Children = *p.Children
	}
	if p.Filtering != nil {
		f.IsFilterTarget = p.Filtering.IsFilterTarget
		f.FilterTargetOptions = p.Filtering.FilterTargetOptions
		f.HasFilterTargetAncestor = p.Filtering.HasFilterTargetAncestor
	}
	return f
}

// childParentKeys computes the parent_keys a child of `p` must carry
// (spec.md ยง3.3).
func childParentKeys(p *ProcessedNode) []NodeKey {
	out := make([]NodeKey, len(p.ParentKeys)+1)
	copy(out, p.ParentKeys)
	out[len(p.ParentKeys)] = p.Key
	return out
}
