package hierarchy

// NodeIdentifierKind distinguishes the two NodeIdentifier flavors used in
// filter paths (spec.md ยง4.6).
type NodeIdentifierKind int

const (
	IdentifierInstance NodeIdentifierKind = iota
	IdentifierGeneric
)

// NodeIdentifier is one element of a filter path: either an instance key or
// a generic key (spec.md ยง4.6).
type NodeIdentifier struct {
	Kind     NodeIdentifierKind
	Instance InstanceKey
	Generic  GenericKey
}

// NewInstanceIdentifier builds an instance NodeIdentifier.
func NewInstanceIdentifier(className, id, source string) NodeIdentifier {
	return NodeIdentifier{Kind: IdentifierInstance, Instance: NewInstanceKey(className, id, source)}
}

// NewGenericIdentifier builds a generic NodeIdentifier.
func NewGenericIdentifier(id, source string) NodeIdentifier {
	return NodeIdentifier{Kind: IdentifierGeneric, Generic: GenericKey{ID: id, Source: source}}
}

// IdentifierPath is a sequence of NodeIdentifiers from the hierarchy root
// down to (and including) a filter target (spec.md ยง4.6).
type IdentifierPath struct {
	Identifiers []NodeIdentifier
	AutoExpand  bool
	// AutoExpandGrouping optionally names the grouping node the path's
	// terminal auto-expand request targets (spec.md ยง4.7).
	AutoExpandGrouping *GroupingAutoExpandMarker
}
