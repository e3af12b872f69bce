package hierarchy

import (
	"context"
	"sync"

	"github.com/go-hierarchy/provider/internal/logger"
	"github.com/go-hierarchy/provider/internal/metadata"
)

// LocalizedStrings supplies the two label fallback strings spec.md ยง6.2
// recognizes under the `localized_strings` provider option.
type LocalizedStrings struct {
	Other       string
	Unspecified string
}

// DefaultLocalizedStrings returns the en-US fallback strings used when a
// caller does not supply its own.
func DefaultLocalizedStrings() LocalizedStrings {
	return LocalizedStrings{Other: "Other", Unspecified: "Not Specified"}
}

// formatterBox lets Provider.SetFormatter swap the active formatter
// without invalidating the cache (spec.md ยง6.2 "swaps the formatter
// without clearing the cache").
type formatterBox struct {
	mu sync.RWMutex
	f  Formatter
}

func (b *formatterBox) get() Formatter {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.f
}

func (b *formatterBox) set(f Formatter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.f = f
}

// pipeline holds the collaborators the processing pipeline needs to
// resolve one hierarchy level at a time (spec.md ยง4.4).
type pipeline struct {
	definition HierarchyDefinition
	scheduler  *Scheduler
	cache      *Cache
	metadata   metadata.Provider
	formatter  *formatterBox
	localized  LocalizedStrings
	log        *logger.Logger
}

// level resolves one fully-processed hierarchy level: the children of
// parent (nil for the root), restricted by filter and limit, applying the
// full ten-step pipeline of spec.md ยง4.4.
func (pl *pipeline) level(ctx context.Context, parent *ProcessedNode, filter *InstanceFilter, limit int) ([]*FinalNode, error) {
	var parentKeys []NodeKey
	if parent != nil {
		parentKeys = childParentKeys(parent)
	}
	key := makeCacheKey(parentKeys, filter, limit)

	if parent != nil && parent.Key.Kind == NodeKeyGrouping {
		// A grouping node's children are never re-derived from the
		// HierarchyDefinition; they were materialized once, when the
		// grouping stage created the node, and installed under this same
		// key (spec.md ยง4.9). If that entry was since evicted for
		// capacity, re-request the grouping node's own owning level once
		// and retry before giving up (spec.md ยง4.9).
		if children, ok := pl.cache.getGroupedChildren(key); ok {
			return children, nil
		}
		owner, ok := pl.cache.groupingOwner(key)
		if !ok {
			return nil, &MissingGroupingNodeChildrenError{GroupingNodeKey: parent.Key.String()}
		}
		if _, err := pl.level(ctx, owner, filter, limit); err != nil {
			return nil, err
		}
		if children, ok := pl.cache.getGroupedChildren(key); ok {
			return children, nil
		}
		return nil, &MissingGroupingNodeChildrenError{GroupingNodeKey: parent.Key.String()}
	}

	sourceNodes, err := pl.cache.getPreprocessEntry(key, func() ([]*SourceNode, error) {
		return pl.resolveSource(ctx, parent, filter, limit)
	})
	if err != nil {
		return nil, err
	}

	// Step 1 + 2: assign parent_keys, format labels.
	processed := make([]*ProcessedNode, 0, len(sourceNodes))
	for _, sn := range sourceNodes {
		pn, err := pl.toProcessed(ctx, sn, parentKeys)
		if err != nil {
			return nil, err
		}
		processed = append(processed, pn)
	}

	// Step 3: hierarchy-definition pre_process hook.
	if pp, ok := pl.definition.(PreProcessor); ok {
		kept := make([]*ProcessedNode, 0, len(processed))
		for _, n := range processed {
			result, ok, err := pp.PreProcessNode(ctx, n)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, result)
			}
		}
		processed = kept
	}

	// Step 4: hide-if-no-children.
	processed, err = pl.hideIfNoChildren(ctx, processed, parentKeys, filter, limit)
	if err != nil {
		return nil, err
	}

	// Step 5: hide-in-hierarchy.
	processed, err = pl.hideInHierarchy(ctx, processed, parentKeys, filter, limit)
	if err != nil {
		return nil, err
	}

	// Step 6: sort.
	sortNodesByLabel(processed)

	// Step 7: group.
	processed, err = groupLevel(ctx, processed, pl.metadata, pl.localized)
	if err != nil {
		return nil, err
	}
	sortNodesByLabel(processed)

	// Steps 8-10: determine-children, post-process, strip, per node
	// (recursing into grouping nodes' materialized children).
	final := make([]*FinalNode, 0, len(processed))
	for _, n := range processed {
		f, err := pl.finalizeNode(ctx, n, filter, limit, parent)
		if err != nil {
			return nil, err
		}
		final = append(final, f)
	}
	return final, nil
}

// resolveSource runs the level-definition resolver of spec.md ยง4.3: it
// iterates the definitions the HierarchyDefinition declares for this
// parent/filter, emitting Generic nodes directly and scheduling
// InstanceQuery definitions through the query scheduler.
func (pl *pipeline) resolveSource(ctx context.Context, parent *ProcessedNode, filter *InstanceFilter, limit int) ([]*SourceNode, error) {
	defs, err := pl.definition.DefineLevel(ctx, parent, filter)
	if err != nil {
		return nil, err
	}

	parser, _ := pl.definition.(NodeParser)

	var out []*SourceNode
	for _, d := range defs {
		switch d.Kind {
		case DefinitionGeneric:
			if d.GenericNode == nil {
				return nil, &InvalidDefinitionError{Reason: "generic node definition missing its node"}
			}
			out = append(out, d.GenericNode)
		case DefinitionInstanceQuery:
			if d.FullClassName == "" || d.InstanceQuery == nil {
				return nil, &InvalidDefinitionError{Reason: "instance query definition missing class name or query"}
			}
			rows, err := pl.runQuery(ctx, *d.InstanceQuery, limit)
			if err != nil {
				return nil, err
			}
			for _, row := range rows {
				var sn *SourceNode
				var perr error
				if parser != nil {
					sn, perr = parser.ParseNode(row)
				} else {
					sn, perr = DefaultRowParser(nil).ParseRow(row)
				}
				if perr != nil {
					return nil, perr
				}
				out = append(out, sn)
			}
		default:
			return nil, &InvalidDefinitionError{Reason: "unknown node definition kind"}
		}
	}
	return out, nil
}

// runQuery schedules q through the scheduler and waits for its shared
// result, translating executor failures per spec.md ยง7.
func (pl *pipeline) runQuery(ctx context.Context, q Query, limit int) ([]Row, error) {
	result, unsubscribe := pl.scheduler.Schedule(q, limit)
	defer unsubscribe()

	rows, err := result.Wait(ctx)
	if err != nil {
		if _, ok := err.(*RowsLimitExceededError); ok {
			return nil, err
		}
		if err == context.Canceled || err == ctx.Err() {
			return nil, err
		}
		return nil, &ExecutorFailureError{Err: err}
	}
	if limit > 0 && len(rows) > limit {
		return nil, &RowsLimitExceededError{Limit: limit}
	}
	return rows, nil
}

// toProcessed implements pipeline steps 1-2: assigning parent_keys and
// formatting the node's label (spec.md ยง4.4).
func (pl *pipeline) toProcessed(ctx context.Context, sn *SourceNode, parentKeys []NodeKey) (*ProcessedNode, error) {
	label, err := formatLabel(ctx, sn.Label, pl.metadata, pl.formatter.get())
	if err != nil {
		return nil, err
	}
	return &ProcessedNode{
		Label:            label,
		Key:              sn.Key,
		ParentKeys:       parentKeys,
		ExtendedData:     sn.ExtendedData,
		ProcessingParams: sn.ProcessingParams,
		Filtering:        sn.Filtering,
		AutoExpand:       sn.AutoExpand,
		Children:         sn.ChildrenKnown,
	}, nil
}

// hideIfNoChildren implements pipeline step 4: a node carrying
// hide_if_no_children=true is replaced by its own processed children when
// it has at least one, or dropped when it has none (spec.md ยง4.4 step 4,
// ยง8 "Hide-if-no-children").
func (pl *pipeline) hideIfNoChildren(ctx context.Context, level []*ProcessedNode, parentKeys []NodeKey, filter *InstanceFilter, limit int) ([]*ProcessedNode, error) {
	out := make([]*ProcessedNode, 0, len(level))
	for _, n := range level {
		if n.ProcessingParams == nil || !n.ProcessingParams.HideIfNoChildren {
			out = append(out, n)
			continue
		}
		children, err := pl.level(ctx, n, filter, limit)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			continue
		}
		for _, c := range children {
			out = append(out, finalToProcessed(c, parentKeys))
		}
	}
	return out, nil
}

// hideInHierarchy implements pipeline step 5 and the filter-target
// interaction of spec.md ยง4.6's edge case (a hidden filter target with no
// ancestor target is dropped entirely rather than replaced).
func (pl *pipeline) hideInHierarchy(ctx context.Context, level []*ProcessedNode, parentKeys []NodeKey, filter *InstanceFilter, limit int) ([]*ProcessedNode, error) {
	out := make([]*ProcessedNode, 0, len(level))
	for _, n := range level {
		if n.ProcessingParams == nil || !n.ProcessingParams.HideInHierarchy {
			out = append(out, n)
			continue
		}
		if isUnanchoredFilterTarget(n) {
			continue
		}
		children, err := pl.level(ctx, n, filter, limit)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			out = append(out, finalToProcessed(c, parentKeys))
		}
	}
	return out, nil
}

func isUnanchoredFilterTarget(n *ProcessedNode) bool {
	return n.Filtering != nil && n.Filtering.IsFilterTarget && !n.Filtering.HasFilterTargetAncestor
}

// finalToProcessed re-admits an already fully-processed child (returned by
// a recursive pl.level call) as a sibling at parentKeys' depth, for
// hide-if-no-children / hide-in-hierarchy's "replace the node with its
// children" behavior. The child's own processing_params were already
// consumed producing it, so it passes through ungrouped at this level.
func finalToProcessed(f *FinalNode, parentKeys []NodeKey) *ProcessedNode {
	children := f.Children
	var filtering *FilteringInfo
	if f.IsFilterTarget || f.FilterTargetOptions != nil || f.HasFilterTargetAncestor {
		filtering = &FilteringInfo{
			IsFilterTarget:          f.IsFilterTarget,
			FilterTargetOptions:     f.FilterTargetOptions,
			HasFilterTargetAncestor: f.HasFilterTargetAncestor,
		}
	}
	return &ProcessedNode{
		Label:           f.Label,
		Key:             f.Key,
		ParentKeys:      parentKeys,
		ExtendedData:    f.ExtendedData,
		Filtering:       filtering,
		AutoExpand:      f.AutoExpand,
		Children:        &children,
		GroupedChildren: f.GroupedChildren,
	}
}

// finalizeNode applies pipeline steps 8-10 to a single node, recursing into
// a grouping node's materialized children (spec.md ยง4.4, ยง4.8). owner is
// the node whose re-derivation recreates n: the parent of the enclosing
// pl.level call for a root-of-this-call node, or the enclosing grouping
// node for one of its rawGroupedChildren. It is recorded alongside a
// grouping node's materialized children so a later cache eviction can be
// regenerated-and-retried instead of failing (spec.md ยง4.9).
func (pl *pipeline) finalizeNode(ctx context.Context, n *ProcessedNode, filter *InstanceFilter, limit int, owner *ProcessedNode) (*FinalNode, error) {
	if n.Key.Kind == NodeKeyGrouping {
		known := len(n.rawGroupedChildren) > 0
		n.Children = &known

		groupParentKeys := childParentKeys(n)
		finalChildren := make([]*FinalNode, 0, len(n.rawGroupedChildren))
		for _, child := range n.rawGroupedChildren {
			child.ParentKeys = groupParentKeys
			fc, err := pl.finalizeNode(ctx, child, filter, limit, n)
			if err != nil {
				return nil, err
			}
			finalChildren = append(finalChildren, fc)
		}
		n.GroupedChildren = finalChildren
		pl.cache.putGroupedChildren(makeCacheKey(groupParentKeys, filter, limit), finalChildren, owner)
	} else if n.Children == nil {
		hasChildren, err := pl.probeHasChildren(ctx, n, filter, limit)
		if err != nil {
			return nil, err
		}
		n.Children = &hasChildren
	}

	if pp, ok := pl.definition.(PostProcessor); ok {
		updated, err := pp.PostProcessNode(ctx, n)
		if err != nil {
			return nil, err
		}
		n = updated
	}

	return finalize(n), nil
}

// probeHasChildren implements the determine-children probe of spec.md
// ยง4.8: RowsLimitExceeded is mapped to true, any other error propagates.
func (pl *pipeline) probeHasChildren(ctx context.Context, n *ProcessedNode, filter *InstanceFilter, limit int) (bool, error) {
	children, err := pl.level(ctx, n, filter, limit)
	if err != nil {
		if _, ok := err.(*RowsLimitExceededError); ok {
			return true, nil
		}
		return false, err
	}
	return len(children) > 0, nil
}
