package hierarchy

import (
	"context"
	"fmt"
	"sort"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/go-hierarchy/provider/internal/metadata"
)

// propertyPairKey identifies one (property_class_name, property_name) by
// handler, used as the orderedmap key that gives the by-property handlers
// their declared first-appearance order (spec.md ยง4.5 step 3).
type propertyPairKey struct {
	ClassName string
	Name      string
}

// groupLevel runs the full grouping subsystem over one materialized,
// already-sorted level (spec.md ยง4.5). md and localized are used to
// resolve class labels and the declared "other"/"unspecified" fallback
// strings. It returns the new level (ungrouped nodes plus newly created,
// dissolution-resolved grouping nodes), re-sorted by label.
func groupLevel(ctx context.Context, nodes []*ProcessedNode, md metadata.Provider, localized LocalizedStrings) ([]*ProcessedNode, error) {
	level := nodes

	baseClassNames, err := collectBaseClassNames(ctx, level, md)
	if err != nil {
		return nil, err
	}
	derivedFirst, err := metadata.SortDerivedFirst(ctx, md, baseClassNames)
	if err != nil {
		return nil, err
	}
	for _, className := range derivedFirst {
		level, err = groupByBaseClass(ctx, level, className, md)
		if err != nil {
			return nil, err
		}
		level = resolveDissolution(level, groupingMembershipByBaseClass(className))
	}

	level, err = groupByClass(ctx, level, md)
	if err != nil {
		return nil, err
	}
	level = resolveDissolution(level, groupingMembershipByClass)

	for _, pair := range collectPropertyPairs(level) {
		level, err = groupByOnePropertyPair(level, pair, localized)
		if err != nil {
			return nil, err
		}
		level = resolveDissolution(level, groupingMembershipByProperties)
	}

	level = groupByLabel(level)
	level = resolveDissolution(level, groupingMembershipByLabel)

	applyAutoExpand(level, 0)

	sortNodesByLabel(level)
	return level, nil
}

func sortNodesByLabel(level []*ProcessedNode) {
	sort.SliceStable(level, func(i, j int) bool {
		return naturalLess(level[i].Label, level[j].Label)
	})
}

// collectBaseClassNames gathers every distinct base class name referenced
// by any node's (possibly nested, via an existing grouping node's leaves)
// by_base_classes.full_class_names.
func collectBaseClassNames(ctx context.Context, level []*ProcessedNode, md metadata.Provider) ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	for _, n := range level {
		for _, leaf := range n.leaves() {
			if leaf.ProcessingParams == nil || leaf.ProcessingParams.Grouping == nil {
				continue
			}
			bbc := leaf.ProcessingParams.Grouping.ByBaseClasses
			if bbc == nil {
				continue
			}
			for _, cn := range bbc.FullClassNames {
				cn = NormalizeClassName(cn)
				if seen[cn] {
					continue
				}
				seen[cn] = true
				names = append(names, cn)
			}
		}
	}
	_ = ctx
	return names, nil
}

// groupByBaseClass wraps every item of level whose leaves unanimously
// request grouping under className into one BaseClassGrouping node. An item
// that is already a grouping node is treated atomically: it participates
// only if every one of its leaves requests className (spec.md ยง4.5 step 1
// "so that B's grouping nodes end up nested within A's" — achieved here by
// lifting an already-created, fully-qualifying grouping node wholesale
// under the new, less-derived group).
func groupByBaseClass(ctx context.Context, level []*ProcessedNode, className string, md metadata.Provider) ([]*ProcessedNode, error) {
	var matched []*ProcessedNode
	var rest []*ProcessedNode

	for _, n := range level {
		leaves := n.leaves()
		if len(leaves) == 0 {
			rest = append(rest, n)
			continue
		}
		qualifies := true
		for _, leaf := range leaves {
			ok, err := leafWantsBaseClass(ctx, leaf, className, md)
			if err != nil {
				return nil, err
			}
			if !ok {
				qualifies = false
				break
			}
		}
		if qualifies {
			matched = append(matched, n)
		} else {
			rest = append(rest, n)
		}
	}

	if len(matched) == 0 {
		return level, nil
	}

	class, err := md.GetClass(ctx, className)
	if err != nil {
		return nil, err
	}
	if class.Kind != metadata.ClassKindEntity && class.Kind != metadata.ClassKindRelationship {
		// Only entity and relationship classes participate; the candidate
		// set is left ungrouped for this className (spec.md ยง4.5 step 1).
		return level, nil
	}

	key := NewGroupingNodeKey(GroupingKey{Kind: GroupingKindBaseClass, ClassName: class.FullName})
	group := &ProcessedNode{
		Label:              class.Label,
		Key:                key,
		rawGroupedChildren: matched,
	}
	rest = append(rest, group)
	return rest, nil
}

func leafWantsBaseClass(ctx context.Context, leaf *ProcessedNode, className string, md metadata.Provider) (bool, error) {
	if leaf.ProcessingParams == nil || leaf.ProcessingParams.Grouping == nil || leaf.ProcessingParams.Grouping.ByBaseClasses == nil {
		return false, nil
	}
	wants := false
	for _, cn := range leaf.ProcessingParams.Grouping.ByBaseClasses.FullClassNames {
		if NormalizeClassName(cn) == className {
			wants = true
			break
		}
	}
	if !wants {
		return false, nil
	}
	if leaf.Key.Kind != NodeKeyInstances {
		return false, nil
	}
	for _, ik := range leaf.Key.InstanceKeys {
		derived, err := md.IsDerivedFrom(ctx, ik.ClassName, className)
		if err != nil {
			return false, err
		}
		if !derived {
			return false, nil
		}
	}
	return true, nil
}

// groupByClass is the single by_class handler (spec.md ยง4.5 step 2).
func groupByClass(ctx context.Context, level []*ProcessedNode, md metadata.Provider) ([]*ProcessedNode, error) {
	groups := orderedmap.NewOrderedMap[string, []*ProcessedNode]()
	var rest []*ProcessedNode

	for _, n := range level {
		if n.ProcessingParams == nil || n.ProcessingParams.Grouping == nil || n.ProcessingParams.Grouping.ByClass == nil {
			rest = append(rest, n)
			continue
		}
		if n.Key.Kind != NodeKeyInstances || len(n.Key.InstanceKeys) == 0 {
			rest = append(rest, n)
			continue
		}
		className := n.Key.InstanceKeys[0].ClassName
		existing, _ := groups.Get(className)
		groups.Set(className, append(existing, n))
	}

	for el := groups.Front(); el != nil; el = el.Next() {
		class, err := md.GetClass(ctx, el.Key)
		if err != nil {
			return nil, err
		}
		key := NewGroupingNodeKey(GroupingKey{Kind: GroupingKindClass, ClassName: class.FullName})
		rest = append(rest, &ProcessedNode{
			Label:              class.Label,
			Key:                key,
			rawGroupedChildren: el.Value,
		})
	}
	return rest, nil
}

// collectPropertyPairs gathers every distinct (property_class_name,
// property_name) pair declared by any plain (not yet grouped) node's
// by_properties.property_groups, in first-appearance order (spec.md ยง4.5
// step 3 "one handler per declared pair in first-appearance order").
func collectPropertyPairs(level []*ProcessedNode) []propertyPairKey {
	seen := orderedmap.NewOrderedMap[propertyPairKey, bool]()
	for _, n := range level {
		if n.Key.Kind == NodeKeyGrouping {
			continue
		}
		if n.ProcessingParams == nil || n.ProcessingParams.Grouping == nil || n.ProcessingParams.Grouping.ByProperties == nil {
			continue
		}
		bp := n.ProcessingParams.Grouping.ByProperties
		for _, pg := range bp.PropertyGroups {
			k := propertyPairKey{ClassName: NormalizeClassName(bp.PropertyClassName), Name: pg.PropertyName}
			if _, ok := seen.Get(k); !ok {
				seen.Set(k, true)
			}
		}
	}
	var out []propertyPairKey
	for el := seen.Front(); el != nil; el = el.Next() {
		out = append(out, el.Key)
	}
	return out
}

// groupByOnePropertyPair runs a single by-property handler over the current
// level: already-grouped items pass through untouched (a node claimed by an
// earlier pair's handler is no longer a candidate), and plain nodes
// declaring this pair are bucketed into value/range/other grouping nodes.
func groupByOnePropertyPair(level []*ProcessedNode, pair propertyPairKey, localized LocalizedStrings) ([]*ProcessedNode, error) {
	var candidates []*ProcessedNode
	var rest []*ProcessedNode
	for _, n := range level {
		if n.Key.Kind != NodeKeyGrouping && findPropertyGroup(n, pair) != nil {
			candidates = append(candidates, n)
		} else {
			rest = append(rest, n)
		}
	}
	if len(candidates) == 0 {
		return level, nil
	}
	grouped, err := groupByOneProperty(pair, candidates, localized)
	if err != nil {
		return nil, err
	}
	return append(rest, grouped...), nil
}

func groupByOneProperty(pair propertyPairKey, nodes []*ProcessedNode, localized LocalizedStrings) ([]*ProcessedNode, error) {
	values := orderedmap.NewOrderedMap[string, []*ProcessedNode]()
	ranges := orderedmap.NewOrderedMap[string, *rangeBucket]()
	var other []*ProcessedNode

	for _, n := range nodes {
		pg := findPropertyGroup(n, pair)
		if pg == nil {
			continue
		}
		if len(pg.Ranges) == 0 {
			formatted := fmt.Sprintf("%v", pg.PropertyValue)
			existing, _ := values.Get(formatted)
			values.Set(formatted, append(existing, n))
			continue
		}
		bucket, matched := matchRange(pg)
		if matched {
			key := bucket.label
			rb, ok := ranges.Get(key)
			if !ok {
				rb = &rangeBucket{from: bucket.from, to: bucket.to, label: bucket.label}
				ranges.Set(key, rb)
			}
			rb.members = append(rb.members, n)
			continue
		}
		other = append(other, n)
	}

	var out []*ProcessedNode
	for el := values.Front(); el != nil; el = el.Next() {
		out = append(out, &ProcessedNode{
			Label: el.Key,
			Key: NewGroupingNodeKey(GroupingKey{
				Kind:              GroupingKindPropertyValue,
				PropertyClassName: pair.ClassName,
				PropertyName:      pair.Name,
				FormattedValue:    el.Key,
			}),
			rawGroupedChildren: el.Value,
		})
	}
	for el := ranges.Front(); el != nil; el = el.Next() {
		rb := el.Value
		out = append(out, &ProcessedNode{
			Label: rb.label,
			Key: NewGroupingNodeKey(GroupingKey{
				Kind:              GroupingKindPropertyRange,
				PropertyClassName: pair.ClassName,
				PropertyName:      pair.Name,
				FromValue:         fmt.Sprintf("%g", rb.from),
				ToValue:           fmt.Sprintf("%g", rb.to),
			}),
			rawGroupedChildren: rb.members,
		})
	}
	if len(other) > 0 {
		out = append(out, &ProcessedNode{
			Label: localized.Other,
			Key: NewGroupingNodeKey(GroupingKey{
				Kind:              GroupingKindPropertyOther,
				PropertyClassName: pair.ClassName,
				PropertyName:      pair.Name,
				OtherProperties:   []PropertyRef{{ClassName: pair.ClassName, PropertyName: pair.Name}},
			}),
			rawGroupedChildren: other,
		})
	}
	return out, nil
}

type rangeBucket struct {
	from, to float64
	label    string
	members  []*ProcessedNode
}

func findPropertyGroup(n *ProcessedNode, pair propertyPairKey) *PropertyGroup {
	if n.ProcessingParams == nil || n.ProcessingParams.Grouping == nil || n.ProcessingParams.Grouping.ByProperties == nil {
		return nil
	}
	bp := n.ProcessingParams.Grouping.ByProperties
	if NormalizeClassName(bp.PropertyClassName) != NormalizeClassName(pair.ClassName) {
		return nil
	}
	for i := range bp.PropertyGroups {
		if bp.PropertyGroups[i].PropertyName == pair.Name {
			return &bp.PropertyGroups[i]
		}
	}
	return nil
}

func matchRange(pg *PropertyGroup) (struct{ from, to float64; label string }, bool) {
	val, ok := numericValue(pg.PropertyValue)
	if !ok {
		return struct{ from, to float64; label string }{}, false
	}
	for _, r := range pg.Ranges {
		if val >= r.From && val <= r.To {
			label := r.Label
			if label == "" {
				label = fmt.Sprintf("%g - %g", r.From, r.To)
			}
			return struct{ from, to float64; label string }{r.From, r.To, label}, true
		}
	}
	return struct{ from, to float64; label string }{}, false
}

func numericValue(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		return parseLeadingNumber(x)
	default:
		return 0, false
	}
}

// groupByLabel implements the merge/group by_label handler (spec.md ยง4.5
// step 4). Nodes lacking by_label pass through unchanged.
func groupByLabel(level []*ProcessedNode) []*ProcessedNode {
	type bucketKey struct{ label, groupID string }
	merges := orderedmap.NewOrderedMap[bucketKey, []*ProcessedNode]()
	groups := orderedmap.NewOrderedMap[bucketKey, []*ProcessedNode]()
	var rest []*ProcessedNode

	for _, n := range level {
		if n.ProcessingParams == nil || n.ProcessingParams.Grouping == nil || n.ProcessingParams.Grouping.ByLabel == nil {
			rest = append(rest, n)
			continue
		}
		bl := n.ProcessingParams.Grouping.ByLabel
		key := bucketKey{label: n.Label, groupID: bl.GroupID}
		if bl.Action == LabelGroupingGroup {
			existing, _ := groups.Get(key)
			groups.Set(key, append(existing, n))
		} else {
			existing, _ := merges.Get(key)
			merges.Set(key, append(existing, n))
		}
	}

	var out []*ProcessedNode
	for el := merges.Front(); el != nil; el = el.Next() {
		if len(el.Value) == 1 {
			out = append(out, el.Value[0])
			continue
		}
		var merged []InstanceKey
		for _, n := range el.Value {
			if n.Key.Kind == NodeKeyInstances {
				merged = append(merged, n.Key.InstanceKeys...)
			}
		}
		merged = DedupeInstanceKeys(merged)
		first := el.Value[0]
		out = append(out, &ProcessedNode{
			Label:            first.Label,
			Key:              NewInstancesNodeKey(merged),
			ExtendedData:     first.ExtendedData,
			ProcessingParams: nil,
			Filtering:        first.Filtering,
		})
	}
	for el := groups.Front(); el != nil; el = el.Next() {
		first := el.Value[0]
		bl := first.ProcessingParams.Grouping.ByLabel
		out = append(out, &ProcessedNode{
			Label:              first.Label,
			Key:                NewGroupingNodeKey(GroupingKey{Kind: GroupingKindLabel, Label: first.Label, GroupID: bl.GroupID}),
			rawGroupedChildren: el.Value,
		})
	}
	return append(rest, out...)
}

// groupingMembership reports, for a node that was just wrapped into a
// grouping node by the handler that produced it, whether hide_if_no_siblings
// / hide_if_one_grouped_node apply for that grouping kind — looked up on
// each of its leaves' original processing params.
type groupingMembership func(leaf *ProcessedNode) (hideIfNoSiblings, hideIfOneGroupedNode bool)

func groupingMembershipByBaseClass(className string) groupingMembership {
	return func(leaf *ProcessedNode) (bool, bool) {
		if leaf.ProcessingParams == nil || leaf.ProcessingParams.Grouping == nil || leaf.ProcessingParams.Grouping.ByBaseClasses == nil {
			return false, false
		}
		p := leaf.ProcessingParams.Grouping.ByBaseClasses
		return p.HideIfNoSiblings, p.HideIfOneGroupedNode
	}
}

func groupingMembershipByClass(leaf *ProcessedNode) (bool, bool) {
	if leaf.ProcessingParams == nil || leaf.ProcessingParams.Grouping == nil || leaf.ProcessingParams.Grouping.ByClass == nil {
		return false, false
	}
	p := leaf.ProcessingParams.Grouping.ByClass
	return p.HideIfNoSiblings, p.HideIfOneGroupedNode
}

func groupingMembershipByProperties(leaf *ProcessedNode) (bool, bool) {
	if leaf.ProcessingParams == nil || leaf.ProcessingParams.Grouping == nil || leaf.ProcessingParams.Grouping.ByProperties == nil {
		return false, false
	}
	p := leaf.ProcessingParams.Grouping.ByProperties
	return p.HideIfNoSiblings, p.HideIfOneGroupedNode
}

func groupingMembershipByLabel(leaf *ProcessedNode) (bool, bool) {
	if leaf.ProcessingParams == nil || leaf.ProcessingParams.Grouping == nil || leaf.ProcessingParams.Grouping.ByLabel == nil {
		return false, false
	}
	p := leaf.ProcessingParams.Grouping.ByLabel
	return p.HideIfNoSiblings, p.HideIfOneGroupedNode
}

// resolveDissolution applies hide-if-no-siblings and hide-if-one-grouped-node
// to every grouping node this handler pass just created (spec.md ยง4.5
// "After every handler"). A grouping node that is the level's sole entry
// and whose children all opt into hide-if-no-siblings dissolves into its
// children; one with exactly one child opting into hide-if-one-grouped-node
// dissolves into that child.
func resolveDissolution(level []*ProcessedNode, membership groupingMembership) []*ProcessedNode {
	if len(level) == 1 && level[0].Key.Kind == NodeKeyGrouping {
		g := level[0]
		if allLeavesWant(g, membership, true) {
			return g.rawGroupedChildren
		}
	}
	out := make([]*ProcessedNode, 0, len(level))
	for _, n := range level {
		if n.Key.Kind == NodeKeyGrouping && len(n.rawGroupedChildren) == 1 {
			if allLeavesWant(n, membership, false) {
				out = append(out, n.rawGroupedChildren[0])
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

func allLeavesWant(g *ProcessedNode, membership groupingMembership, noSiblings bool) bool {
	leaves := g.leaves()
	if len(leaves) == 0 {
		return false
	}
	for _, leaf := range leaves {
		hideNoSib, hideOneGrouped := membership(leaf)
		if noSiblings {
			if !hideNoSib {
				return false
			}
		} else if !hideOneGrouped {
			return false
		}
	}
	return true
}

// applyAutoExpand implements spec.md ยง4.5's auto-expand rule and the
// grouping-aware filter-target extension of ยง4.7, recursing through nested
// grouping nodes. depth counts grouping nesting within this level's pass,
// starting at 0 for top-level grouping nodes created here.
func applyAutoExpand(level []*ProcessedNode, depth int) {
	for _, n := range level {
		if n.Key.Kind != NodeKeyGrouping {
			continue
		}
		applyAutoExpand(n.rawGroupedChildren, depth+1)

		expand := false
		for _, leaf := range n.leaves() {
			mode := leafAutoExpandMode(leaf)
			if mode == AutoExpandAlways {
				expand = true
			}
			if mode == AutoExpandSingleChild && len(n.rawGroupedChildren) == 1 {
				expand = true
			}
			if leaf.Filtering != nil && leaf.Filtering.FilterTargetOptions != nil {
				marker := leaf.Filtering.FilterTargetOptions.AutoExpandGrouping
				if marker != nil {
					if depth < marker.Depth {
						expand = true
					} else if depth == marker.Depth && !marker.GroupingKey.Equal(n.Key.Grouping) {
						expand = true
					}
				}
			}
		}
		n.AutoExpand = expand
	}
}

func leafAutoExpandMode(leaf *ProcessedNode) AutoExpandMode {
	if leaf.ProcessingParams == nil || leaf.ProcessingParams.Grouping == nil {
		return AutoExpandNone
	}
	g := leaf.ProcessingParams.Grouping
	switch {
	case g.ByBaseClasses != nil && g.ByBaseClasses.AutoExpand != AutoExpandNone:
		return g.ByBaseClasses.AutoExpand
	case g.ByClass != nil && g.ByClass.AutoExpand != AutoExpandNone:
		return g.ByClass.AutoExpand
	case g.ByLabel != nil && g.ByLabel.AutoExpand != AutoExpandNone:
		return g.ByLabel.AutoExpand
	case g.ByProperties != nil && g.ByProperties.AutoExpand != AutoExpandNone:
		return g.ByProperties.AutoExpand
	default:
		return AutoExpandNone
	}
}
