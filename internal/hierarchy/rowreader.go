package hierarchy

import (
	"fmt"
)

// Fixed row column names the default parser expects (spec.md ยง4.2, ยง6.3).
const (
	ColFullClassName        = "FullClassName"
	ColECInstanceID         = "ECInstanceId"
	ColDisplayLabel         = "DisplayLabel"
	ColHasChildren          = "HasChildren"
	ColHideIfNoChildren     = "HideIfNoChildren"
	ColHideNodeInHierarchy  = "HideNodeInHierarchy"
	ColGrouping             = "Grouping"
	ColExtendedData         = "ExtendedData"
	ColAutoExpand           = "AutoExpand"
	ColSupportsFiltering    = "SupportsFiltering"
	ColHasFilterTargetAncestor = "HasFilterTargetAncestor"
	ColFilterECInstanceID   = "FilterECInstanceId"
	ColFilterClassName      = "FilterClassName"
)

// RowParser turns a raw executor row into a Source node. The default
// implementation reads the fixed columns of spec.md ยง4.2; a
// HierarchyDefinition may install its own via the NodeParser capability.
type RowParser interface {
	ParseRow(row Row) (*SourceNode, error)
}

// RowParserFunc adapts a plain function to RowParser.
type RowParserFunc func(row Row) (*SourceNode, error)

// ParseRow implements RowParser.
func (f RowParserFunc) ParseRow(row Row) (*SourceNode, error) {
	return f(row)
}

// filterSuffixLookup resolves the identifier-path suffixes a filter-rewritten
// row's (FilterECInstanceId, FilterClassName) pair should carry forward, per
// spec.md ยง4.6 "The parser, upon seeing these synthetic columns, looks up the
// path suffix by (FilterECInstanceId, FilterClassName)". Supplied by the
// filtering wrapper; nil for an unfiltered level.
type filterSuffixLookup func(filterID, filterClassName string) (suffixes []IdentifierPath, isTarget bool, targetOptions *FilterTargetOptions)

// DefaultRowParser builds the default row parser described in spec.md ยง4.2.
// lookup may be nil when the level is not filter-rewritten.
func DefaultRowParser(lookup filterSuffixLookup) RowParser {
	return RowParserFunc(func(row Row) (*SourceNode, error) {
		className, ok := row[ColFullClassName].(string)
		if !ok || className == "" {
			return nil, &InvalidDefinitionError{Reason: "row missing FullClassName"}
		}
		id, ok := row[ColECInstanceID].(string)
		if !ok || id == "" {
			return nil, &InvalidDefinitionError{Reason: "row missing ECInstanceId"}
		}

		key := NewInstancesNodeKey([]InstanceKey{NewInstanceKey(className, id, "")})

		label := PlainLabel(stringField(row, ColDisplayLabel))

		params := &ProcessingParams{
			HideInHierarchy:  boolField(row, ColHideNodeInHierarchy),
			HideIfNoChildren: boolField(row, ColHideIfNoChildren),
			Grouping:         parseGroupingField(row[ColGrouping]),
		}

		node := &SourceNode{
			Label:            label,
			Key:              key,
			ExtendedData:     mapField(row, ColExtendedData),
			ProcessingParams: params,
		}

		if v, present := row[ColHasChildren]; present {
			if b, ok := v.(bool); ok {
				node.ChildrenKnown = &b
			}
		}

		if boolField(row, ColAutoExpand) {
			node.AutoExpand = true
		}

		if boolField(row, ColSupportsFiltering) || lookup != nil {
			filtering := &FilteringInfo{
				HasFilterTargetAncestor: boolField(row, ColHasFilterTargetAncestor),
			}
			if lookup != nil {
				filterID := stringField(row, ColFilterECInstanceID)
				filterClass := stringField(row, ColFilterClassName)
				if filterID != "" {
					suffixes, isTarget, opts := lookup(filterID, filterClass)
					filtering.FilteredChildrenIdentifierPaths = suffixes
					filtering.IsFilterTarget = isTarget
					filtering.FilterTargetOptions = opts
					if pathsDeclareAutoExpand(suffixes) {
						node.AutoExpand = true
					}
				}
			}
			node.Filtering = filtering
		}

		return node, nil
	})
}

func stringField(row Row, col string) string {
	v, ok := row[col]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	return s
}

func boolField(row Row, col string) bool {
	v, ok := row[col]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func mapField(row Row, col string) map[string]interface{} {
	v, ok := row[col]
	if !ok || v == nil {
		return nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	return m
}

// parseGroupingField decodes the row's Grouping column, a
// map[string]interface{} shaped the way a filtering-aware executor would
// serialize processing_params.grouping (spec.md ยง3.2). A nil or
// unrecognized value yields no grouping instructions.
func parseGroupingField(v interface{}) *GroupingInstructions {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	instr := &GroupingInstructions{}
	any := false

	if bbc, ok := m["by_base_classes"].(map[string]interface{}); ok {
		p := &ByBaseClassesParams{}
		if names, ok := bbc["full_class_names"].([]string); ok {
			p.FullClassNames = names
		}
		p.HideIfNoSiblings, _ = bbc["hide_if_no_siblings"].(bool)
		p.HideIfOneGroupedNode, _ = bbc["hide_if_one_grouped_node"].(bool)
		p.AutoExpand = parseAutoExpand(bbc["auto_expand"])
		instr.ByBaseClasses = p
		any = true
	}
	if bc, ok := m["by_class"].(map[string]interface{}); ok {
		p := &ByClassParams{}
		p.HideIfNoSiblings, _ = bc["hide_if_no_siblings"].(bool)
		p.HideIfOneGroupedNode, _ = bc["hide_if_one_grouped_node"].(bool)
		p.AutoExpand = parseAutoExpand(bc["auto_expand"])
		instr.ByClass = p
		any = true
	} else if asBool, ok := m["by_class"].(bool); ok && asBool {
		instr.ByClass = &ByClassParams{}
		any = true
	}
	if bl, ok := m["by_label"].(map[string]interface{}); ok {
		p := &ByLabelParams{Action: LabelGroupingMerge}
		if action, _ := bl["action"].(string); action == "group" {
			p.Action = LabelGroupingGroup
		}
		p.GroupID, _ = bl["group_id"].(string)
		p.HideIfNoSiblings, _ = bl["hide_if_no_siblings"].(bool)
		p.HideIfOneGroupedNode, _ = bl["hide_if_one_grouped_node"].(bool)
		p.AutoExpand = parseAutoExpand(bl["auto_expand"])
		instr.ByLabel = p
		any = true
	}
	if bp, ok := m["by_properties"].(map[string]interface{}); ok {
		p := &ByPropertiesParams{}
		p.PropertyClassName, _ = bp["property_class_name"].(string)
		p.HideIfNoSiblings, _ = bp["hide_if_no_siblings"].(bool)
		p.HideIfOneGroupedNode, _ = bp["hide_if_one_grouped_node"].(bool)
		p.AutoExpand = parseAutoExpand(bp["auto_expand"])
		if groups, ok := bp["property_groups"].([]PropertyGroup); ok {
			p.PropertyGroups = groups
		}
		instr.ByProperties = p
		any = true
	}

	if !any {
		return nil
	}
	return instr
}

func parseAutoExpand(v interface{}) AutoExpandMode {
	s, _ := v.(string)
	switch s {
	case "always":
		return AutoExpandAlways
	case "single-child":
		return AutoExpandSingleChild
	default:
		return AutoExpandNone
	}
}
