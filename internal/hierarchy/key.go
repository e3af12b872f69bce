package hierarchy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// NormalizeClassName converts a "Schema:Class" name to "Schema.Class" form.
// Inputs already using "." pass through unchanged (spec.md ยง3.1).
func NormalizeClassName(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i] + "." + name[i+1:]
	}
	return name
}

// InstanceKey identifies a single instance row by class and id, optionally
// scoped to a data source.
type InstanceKey struct {
	ClassName string
	ID        string
	Source    string
}

// NewInstanceKey builds a normalized InstanceKey.
func NewInstanceKey(className, id, source string) InstanceKey {
	return InstanceKey{ClassName: NormalizeClassName(className), ID: id, Source: source}
}

// Equal reports whether two instance keys are identical: class, id, and
// source all match (spec.md ยง3.1).
func (k InstanceKey) Equal(other InstanceKey) bool {
	return k.ClassName == other.ClassName && k.ID == other.ID && k.Source == other.Source
}

func (k InstanceKey) String() string {
	if k.Source != "" {
		return fmt.Sprintf("%s:%s@%s", k.ClassName, k.ID, k.Source)
	}
	return fmt.Sprintf("%s:%s", k.ClassName, k.ID)
}

// CompareInstanceKeys imposes a deterministic total order over InstanceKey,
// required for deduplication and stable cache keys (spec.md ยง3.1).
func CompareInstanceKeys(a, b InstanceKey) int {
	if a.ClassName != b.ClassName {
		return strings.Compare(a.ClassName, b.ClassName)
	}
	if a.ID != b.ID {
		return strings.Compare(a.ID, b.ID)
	}
	return strings.Compare(a.Source, b.Source)
}

// SortInstanceKeys sorts a slice of instance keys in place using the
// deterministic total order.
func SortInstanceKeys(keys []InstanceKey) {
	sort.Slice(keys, func(i, j int) bool {
		return CompareInstanceKeys(keys[i], keys[j]) < 0
	})
}

// DedupeInstanceKeys returns a new slice containing the first occurrence of
// each distinct InstanceKey, preserving input order.
func DedupeInstanceKeys(keys []InstanceKey) []InstanceKey {
	seen := make(map[InstanceKey]bool, len(keys))
	out := make([]InstanceKey, 0, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// GenericKey identifies a statically declared node by an opaque id.
type GenericKey struct {
	ID     string
	Source string
}

// Equal reports whether two generic keys are identical.
func (k GenericKey) Equal(other GenericKey) bool {
	return k.ID == other.ID && k.Source == other.Source
}

// GroupingKeyKind distinguishes the grouping node flavors of spec.md ยง3.1.
type GroupingKeyKind int

const (
	GroupingKindClass GroupingKeyKind = iota
	GroupingKindBaseClass
	GroupingKindLabel
	GroupingKindPropertyValue
	GroupingKindPropertyRange
	GroupingKindPropertyOther
)

// PropertyRef names a (class, property) pair, used by PropertyOtherGrouping.
type PropertyRef struct {
	ClassName    string
	PropertyName string
}

// GroupingKey is the sum type of the six grouping-node key flavors.
// Only the fields relevant to Kind are meaningful.
type GroupingKey struct {
	Kind GroupingKeyKind

	// ClassGrouping / BaseClassGrouping
	ClassName  string
	ClassLabel string

	// LabelGrouping
	Label   string
	GroupID string

	// PropertyValueGrouping / PropertyRangeGrouping
	PropertyClassName string
	PropertyName      string
	FormattedValue    string
	FromValue         string
	ToValue           string

	// PropertyOtherGrouping
	OtherProperties []PropertyRef
}

// Equal reports whether two grouping keys describe the same grouping node.
func (k GroupingKey) Equal(other GroupingKey) bool {
	if k.Kind != other.Kind {
		return false
	}
	switch k.Kind {
	case GroupingKindClass, GroupingKindBaseClass:
		return k.ClassName == other.ClassName
	case GroupingKindLabel:
		return k.Label == other.Label && k.GroupID == other.GroupID
	case GroupingKindPropertyValue:
		return k.PropertyClassName == other.PropertyClassName &&
			k.PropertyName == other.PropertyName &&
			k.FormattedValue == other.FormattedValue
	case GroupingKindPropertyRange:
		return k.PropertyClassName == other.PropertyClassName &&
			k.PropertyName == other.PropertyName &&
			k.FromValue == other.FromValue &&
			k.ToValue == other.ToValue
	case GroupingKindPropertyOther:
		if k.PropertyClassName != other.PropertyClassName || k.PropertyName != other.PropertyName {
			return false
		}
		if len(k.OtherProperties) != len(other.OtherProperties) {
			return false
		}
		for i := range k.OtherProperties {
			if k.OtherProperties[i] != other.OtherProperties[i] {
				return false
			}
		}
		return true
	}
	return false
}

func (k GroupingKey) String() string {
	switch k.Kind {
	case GroupingKindClass:
		return "class-grouping:" + k.ClassName
	case GroupingKindBaseClass:
		return "base-class-grouping:" + k.ClassName
	case GroupingKindLabel:
		return "label-grouping:" + k.Label + "/" + k.GroupID
	case GroupingKindPropertyValue:
		return "property-value-grouping:" + k.PropertyClassName + "." + k.PropertyName + "=" + k.FormattedValue
	case GroupingKindPropertyRange:
		return "property-range-grouping:" + k.PropertyClassName + "." + k.PropertyName + "=" + k.FromValue + ".." + k.ToValue
	case GroupingKindPropertyOther:
		return "property-other-grouping:" + k.PropertyClassName + "." + k.PropertyName
	default:
		return "grouping:unknown"
	}
}

// NodeKeyKind distinguishes the three NodeKey flavors.
type NodeKeyKind int

const (
	NodeKeyGeneric NodeKeyKind = iota
	NodeKeyInstances
	NodeKeyGrouping
)

// NodeKey is the identity sum type for a hierarchy node (spec.md ยง3.1).
type NodeKey struct {
	Kind         NodeKeyKind
	Generic      GenericKey
	InstanceKeys []InstanceKey
	Grouping     GroupingKey
}

// NewGenericNodeKey builds a Generic node key.
func NewGenericNodeKey(id, source string) NodeKey {
	return NodeKey{Kind: NodeKeyGeneric, Generic: GenericKey{ID: id, Source: source}}
}

// NewInstancesNodeKey builds an Instances node key. instanceKeys must be
// non-empty and free of duplicates (spec.md ยง3.3); callers should dedupe
// beforehand (see DedupeInstanceKeys).
func NewInstancesNodeKey(instanceKeys []InstanceKey) NodeKey {
	return NodeKey{Kind: NodeKeyInstances, InstanceKeys: instanceKeys}
}

// NewGroupingNodeKey builds a Grouping node key.
func NewGroupingNodeKey(key GroupingKey) NodeKey {
	return NodeKey{Kind: NodeKeyGrouping, Grouping: key}
}

// Equal reports whether two node keys identify the same node.
func (k NodeKey) Equal(other NodeKey) bool {
	if k.Kind != other.Kind {
		return false
	}
	switch k.Kind {
	case NodeKeyGeneric:
		return k.Generic.Equal(other.Generic)
	case NodeKeyInstances:
		if len(k.InstanceKeys) != len(other.InstanceKeys) {
			return false
		}
		a := append([]InstanceKey(nil), k.InstanceKeys...)
		b := append([]InstanceKey(nil), other.InstanceKeys...)
		SortInstanceKeys(a)
		SortInstanceKeys(b)
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case NodeKeyGrouping:
		return k.Grouping.Equal(other.Grouping)
	}
	return false
}

// IsGrouping reports whether the key identifies a grouping node.
func (k NodeKey) IsGrouping() bool {
	return k.Kind == NodeKeyGrouping
}

// String renders a stable textual form of the key, suitable as a cache key
// component and for debugging/logging.
func (k NodeKey) String() string {
	switch k.Kind {
	case NodeKeyGeneric:
		if k.Generic.Source != "" {
			return "generic:" + k.Generic.ID + "@" + k.Generic.Source
		}
		return "generic:" + k.Generic.ID
	case NodeKeyInstances:
		keys := append([]InstanceKey(nil), k.InstanceKeys...)
		SortInstanceKeys(keys)
		parts := make([]string, len(keys))
		for i, ik := range keys {
			parts[i] = ik.String()
		}
		return "instances:[" + strings.Join(parts, ",") + "]"
	case NodeKeyGrouping:
		return "grouping:" + k.Grouping.String()
	}
	return "unknown"
}

// NodeKeyPathString renders a parent-key path (root to parent) as a single
// stable string, used as the parent component of a cache key.
func NodeKeyPathString(path []NodeKey) string {
	parts := make([]string, len(path))
	for i, k := range path {
		parts[i] = k.String()
	}
	return strings.Join(parts, ">")
}

// naturalLess implements case-insensitive natural ordering: runs of digits
// compare numerically rather than lexically, so "2" < "10" < "alpha".
// Grounded on the natural sort requirement of spec.md ยง3.3.
func naturalLess(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	i, j := 0, 0
	for i < len(la) && j < len(lb) {
		ca, cb := la[i], lb[j]
		if isDigit(ca) && isDigit(cb) {
			starti, startj := i, j
			for i < len(la) && isDigit(la[i]) {
				i++
			}
			for j < len(lb) && isDigit(lb[j]) {
				j++
			}
			numA := strings.TrimLeft(la[starti:i], "0")
			numB := strings.TrimLeft(lb[startj:j], "0")
			if len(numA) != len(numB) {
				return len(numA) < len(numB)
			}
			if numA != numB {
				return numA < numB
			}
			continue
		}
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	return len(la)-i < len(lb)-j
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// parseLeadingNumber is a small helper used by property range grouping to
// coerce a formatted numeric label fragment. Surrounding whitespace is
// trimmed; any other non-numeric character makes the parse fail.
func parseLeadingNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
