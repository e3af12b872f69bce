package hierarchy

import "fmt"

// RowsLimitExceededError signals that a query produced more rows than the
// caller's hierarchy_level_size_limit allows (spec.md ยง7). It is surfaced
// to get_nodes callers, but is mapped to "has children = true" inside
// determine-children probes.
type RowsLimitExceededError struct {
	Limit int
}

func (e *RowsLimitExceededError) Error() string {
	return fmt.Sprintf("hierarchy level exceeds the row limit of %d", e.Limit)
}

// InvalidDefinitionError signals that a HierarchyDefinition produced
// malformed level data (spec.md ยง7).
type InvalidDefinitionError struct {
	Reason string
}

func (e *InvalidDefinitionError) Error() string {
	return fmt.Sprintf("invalid hierarchy level definition: %s", e.Reason)
}

// UnsupportedPrimitiveTypeError signals that label concatenation
// encountered a primitive type that cannot be formatted into a label
// (IGeometry, Binary — spec.md ยง4.4 step 2).
type UnsupportedPrimitiveTypeError struct {
	ClassName    string
	PropertyName string
	Type         string
}

func (e *UnsupportedPrimitiveTypeError) Error() string {
	return fmt.Sprintf("property %s.%s has unsupported primitive type %s for label formatting",
		e.ClassName, e.PropertyName, e.Type)
}

// MissingPropertyError signals that a label concatenation part referenced a
// property the metadata provider does not know about.
type MissingPropertyError struct {
	ClassName    string
	PropertyName string
}

func (e *MissingPropertyError) Error() string {
	return fmt.Sprintf("property %s.%s not found in metadata", e.ClassName, e.PropertyName)
}

// MissingGroupingNodeChildrenError signals that a grouping node's cached
// children were evicted and could not be regenerated (spec.md ยง4.9).
type MissingGroupingNodeChildrenError struct {
	GroupingNodeKey string
}

func (e *MissingGroupingNodeChildrenError) Error() string {
	return fmt.Sprintf("grouping node %s has no cached children and its level could not be regenerated", e.GroupingNodeKey)
}

// ExecutorFailureError wraps an underlying query executor failure unchanged
// (spec.md ยง7).
type ExecutorFailureError struct {
	Err error
}

func (e *ExecutorFailureError) Error() string {
	return fmt.Sprintf("query executor failure: %v", e.Err)
}

func (e *ExecutorFailureError) Unwrap() error {
	return e.Err
}
