package hierarchy

import "context"

// Row is a single row returned by the query executor, keyed by column name
// (spec.md ยง4.2 "pass the raw row object to the parser unchanged").
type Row map[string]interface{}

// Query is a relational query the executor is asked to run
// (spec.md ยง6.1).
type Query struct {
	SQL      string
	Bindings []interface{}
	CTEs     []string

	// FilterContext is an opaque value the filtering wrapper attaches to a
	// rewritten instance query; a filtering-aware QueryExecutor copies it,
	// unexamined, onto every row it returns under the "__filterMatches"
	// key so the row parser can reconstruct FilteringInfo without the
	// executor needing to understand identifier paths itself
	// (spec.md ยง4.6).
	FilterContext interface{}
}

// NodeDefinitionKind distinguishes generic from instance-query definitions.
type NodeDefinitionKind int

const (
	DefinitionGeneric NodeDefinitionKind = iota
	DefinitionInstanceQuery
)

// NodeDefinition is one element of a LevelDefinition: either an embedded
// Generic node, or an InstanceQuery that the scheduler must run
// (spec.md ยง2, ยง4.3).
type NodeDefinition struct {
	Kind NodeDefinitionKind

	// Generic
	GenericNode *SourceNode

	// InstanceQuery
	FullClassName string
	InstanceQuery *Query

	// ParentNodeClassName and CustomParentNodeKey support the per-class
	// factory union rule of spec.md ยง4.3: a definition participates in a
	// parent's child level if ParentNodeClassName equals or is a base of
	// any of the parent's instance classes, or if CustomParentNodeKey
	// equals a Generic parent's key id.
	ParentNodeClassName string
	CustomParentNodeKey string
}

// NewGenericDefinition wraps a statically declared source node.
func NewGenericDefinition(node *SourceNode) NodeDefinition {
	return NodeDefinition{Kind: DefinitionGeneric, GenericNode: node}
}

// NewInstanceQueryDefinition declares a query-backed level definition.
func NewInstanceQueryDefinition(fullClassName string, q Query) NodeDefinition {
	return NodeDefinition{Kind: DefinitionInstanceQuery, FullClassName: NormalizeClassName(fullClassName), InstanceQuery: &q}
}

// LevelDefinition is an ordered sequence of node definitions producing one
// hierarchy level (spec.md ยง2).
type LevelDefinition []NodeDefinition

// InstanceFilter narrows an InstanceQuery definition's results — e.g. to a
// specific set of parent instance ids for a custom per-class factory
// (spec.md ยง4.3), or an opaque caller-supplied filter echoed through
// get_nodes (spec.md ยง6.2). It is treated as an opaque, comparable value by
// the cache and pipeline; HierarchyDefinition implementations interpret it.
type InstanceFilter struct {
	// ParentInstanceIDs is the deduplicated list of parent instance ids a
	// per-class factory passes to the definitions it selects
	// (spec.md ยง4.3).
	ParentInstanceIDs []string
	// Expression is an opaque caller-supplied filter string (e.g. an ECSQL
	// WHERE fragment) forwarded unchanged to DefineLevel.
	Expression string
}

// key renders a stable cache-key fragment for an InstanceFilter.
func (f *InstanceFilter) key() string {
	if f == nil {
		return ""
	}
	s := f.Expression + "|"
	for _, id := range f.ParentInstanceIDs {
		s += id + ","
	}
	return s
}

// LevelDefinitionsFactory produces the node definitions for one hierarchy
// level, given an optional parent and instance filter (spec.md ยง4.3).
type LevelDefinitionsFactory interface {
	DefineLevel(ctx context.Context, parent *ProcessedNode, filter *InstanceFilter) (LevelDefinition, error)
}

// HierarchyDefinition is the full collaborator contract of spec.md ยง6.1.
// Only DefineLevel is required; ParseNode, PreProcessNode, and
// PostProcessNode are optional hooks expressed as separate interfaces so a
// definition can implement only the ones it needs, the way io.Closer-style
// optional capabilities are expressed in idiomatic Go.
type HierarchyDefinition interface {
	LevelDefinitionsFactory
}

// NodeParser is an optional HierarchyDefinition capability: a custom row
// parser, installed in place of the default one (spec.md ยง4.2).
type NodeParser interface {
	ParseNode(row Row) (*SourceNode, error)
}

// PreProcessor is an optional HierarchyDefinition capability: a hook that
// may transform or drop a node before it continues through the pipeline
// (spec.md ยง4.4 step 3). Returning ok=false drops the node.
type PreProcessor interface {
	PreProcessNode(ctx context.Context, node *ProcessedNode) (result *ProcessedNode, ok bool, err error)
}

// PostProcessor is an optional HierarchyDefinition capability: a hook
// applied to every node just before it is finalized (spec.md ยง4.4 step 9).
type PostProcessor interface {
	PostProcessNode(ctx context.Context, node *ProcessedNode) (*ProcessedNode, error)
}
