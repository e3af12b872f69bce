package hierarchy

import (
	"context"

	"github.com/go-hierarchy/provider/internal/metadata"
)

// SelectForParent implements the custom per-class factory union rule of
// spec.md ยง4.3: a parent-instances node's child level is the union, in
// declared order, of every definition whose ParentNodeClassName is equal
// to, or a base of, any of the parent's instance classes; a Generic
// parent instead selects every definition whose CustomParentNodeKey
// equals the parent's key id. The returned InstanceFilter carries the
// deduplicated list of parent instance ids the factory passes to the
// selected definitions (nil for a Generic parent, which has no instance
// ids to pass).
//
// A HierarchyDefinition that wants the per-class factory behavior calls
// this against its own full, statically declared definition set; one that
// defines levels procedurally (e.g. per-row) has no use for it and never
// calls it, the same way NodeParser/PreProcessor/PostProcessor are
// capabilities a definition opts into rather than a pipeline-enforced
// contract.
func SelectForParent(ctx context.Context, defs []NodeDefinition, parent *ProcessedNode, md metadata.Provider) ([]NodeDefinition, *InstanceFilter, error) {
	if parent == nil {
		return nil, nil, nil
	}

	switch parent.Key.Kind {
	case NodeKeyGeneric:
		var out []NodeDefinition
		for _, d := range defs {
			if d.CustomParentNodeKey != "" && d.CustomParentNodeKey == parent.Key.Generic.ID {
				out = append(out, d)
			}
		}
		return out, nil, nil

	case NodeKeyInstances:
		classNames := dedupClassNames(parent.Key.InstanceKeys)
		ids := dedupInstanceIDs(parent.Key.InstanceKeys)

		var out []NodeDefinition
		for _, d := range defs {
			if d.ParentNodeClassName == "" {
				continue
			}
			matched := false
			for _, className := range classNames {
				related, err := classIsBaseOf(ctx, d.ParentNodeClassName, className, md)
				if err != nil {
					return nil, nil, err
				}
				if related {
					matched = true
					break
				}
			}
			if matched {
				out = append(out, d)
			}
		}
		return out, &InstanceFilter{ParentInstanceIDs: ids}, nil

	default:
		return nil, nil, nil
	}
}

// classIsBaseOf reports whether base is derived-class-equal-to-or an
// ancestor of derived (spec.md ยง4.3 "equal to, or a base of").
func classIsBaseOf(ctx context.Context, base, derived string, md metadata.Provider) (bool, error) {
	if NormalizeClassName(base) == NormalizeClassName(derived) {
		return true, nil
	}
	return md.IsDerivedFrom(ctx, derived, base)
}

func dedupClassNames(keys []InstanceKey) []string {
	seen := make(map[string]bool, len(keys))
	var out []string
	for _, ik := range keys {
		cn := NormalizeClassName(ik.ClassName)
		if seen[cn] {
			continue
		}
		seen[cn] = true
		out = append(out, cn)
	}
	return out
}

func dedupInstanceIDs(keys []InstanceKey) []string {
	seen := make(map[string]bool, len(keys))
	var out []string
	for _, ik := range keys {
		if seen[ik.ID] {
			continue
		}
		seen[ik.ID] = true
		out = append(out, ik.ID)
	}
	return out
}
