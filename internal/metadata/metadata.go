// Package metadata provides the schema metadata collaborator used by the
// hierarchy provider to resolve class derivation and property information.
//
// The hierarchy pipeline never talks to a real ECSchema or information_schema
// directly; it depends on the small Provider interface below so that the
// core stays a pure in-memory transform (spec.md ยง1, "treated as
// collaborators"). InMemoryProvider is a reference implementation suitable
// for tests and for small, statically-known schemas.
package metadata

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// PrimitiveType mirrors the primitive type kinds a property can have.
type PrimitiveType int

const (
	PrimitiveString PrimitiveType = iota
	PrimitiveInt
	PrimitiveLong
	PrimitiveDouble
	PrimitiveBoolean
	PrimitiveDateTime
	PrimitivePoint2d
	PrimitivePoint3d
	PrimitiveIGeometry
	PrimitiveBinary
)

func (t PrimitiveType) String() string {
	switch t {
	case PrimitiveString:
		return "string"
	case PrimitiveInt:
		return "int"
	case PrimitiveLong:
		return "long"
	case PrimitiveDouble:
		return "double"
	case PrimitiveBoolean:
		return "boolean"
	case PrimitiveDateTime:
		return "dateTime"
	case PrimitivePoint2d:
		return "point2d"
	case PrimitivePoint3d:
		return "point3d"
	case PrimitiveIGeometry:
		return "IGeometry"
	case PrimitiveBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// ClassKind distinguishes the EC-style class kinds relevant to grouping.
// Only Entity and Relationship classes participate in base-class grouping
// (spec.md ยง4.5 "only entity and relationship classes participate").
type ClassKind int

const (
	ClassKindEntity ClassKind = iota
	ClassKindRelationship
	ClassKindStruct
	ClassKindMixin
	ClassKindCustomAttribute
)

// Property describes a single class property as needed by label formatting.
type Property struct {
	Name           string
	PrimitiveType  PrimitiveType
	ExtendedType   string
	KindOfQuantity string
}

// Class describes a schema class: its label, kind, and direct base classes.
// FullName is always normalized to "Schema.Class" form (see
// hierarchy.NormalizeClassName).
type Class struct {
	FullName    string
	Label       string
	Kind        ClassKind
	BaseClasses []string // direct bases only, full names
	properties  map[string]*Property
}

// GetProperty looks up a property declared directly on this class.
// It does not walk base classes; the provider is expected to register
// inherited properties directly on the class that queries reference them
// through, mirroring how a flattened ECClass property cache would behave.
func (c *Class) GetProperty(name string) *Property {
	return c.properties[name]
}

// Provider is the schema metadata collaborator contract (spec.md ยง6.1).
type Provider interface {
	// GetClass resolves a full class name ("Schema.Class" or "Schema:Class")
	// to its Class description.
	GetClass(ctx context.Context, fullClassName string) (*Class, error)
	// IsDerivedFrom reports whether `className` is equal to, or derives
	// (possibly transitively) from, `baseClassName`. The relation is
	// reflexive: a class is always derived from itself.
	IsDerivedFrom(ctx context.Context, className, baseClassName string) (bool, error)
}

// ErrClassNotFound is returned by InMemoryProvider when a class was never
// registered.
type ErrClassNotFound struct {
	FullName string
}

func (e *ErrClassNotFound) Error() string {
	return fmt.Sprintf("metadata: class not found: %s", e.FullName)
}

// InMemoryProvider is a reference Provider implementation backed by a
// statically registered class map. It is adequate for tests and for small
// embedded schemas; production deployments typically back Provider with a
// real schema catalog instead.
type InMemoryProvider struct {
	classes map[string]*Class
}

// NewInMemoryProvider creates an empty provider; use RegisterClass to
// populate it before use.
func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{classes: make(map[string]*Class)}
}

// normalize converts a "Schema:Class" name to "Schema.Class" form.
func normalize(name string) string {
	return strings.Replace(name, ":", ".", 1)
}

// RegisterClass declares a class and its direct base classes. Base class
// names are normalized the same way full class names are.
func (p *InMemoryProvider) RegisterClass(fullName, label string, kind ClassKind, baseClasses ...string) *Class {
	normalizedBases := make([]string, len(baseClasses))
	for i, b := range baseClasses {
		normalizedBases[i] = normalize(b)
	}
	c := &Class{
		FullName:    normalize(fullName),
		Label:       label,
		Kind:        kind,
		BaseClasses: normalizedBases,
		properties:  make(map[string]*Property),
	}
	p.classes[c.FullName] = c
	return c
}

// RegisterProperty attaches a property to an already-registered class.
func (p *InMemoryProvider) RegisterProperty(fullClassName string, prop Property) error {
	c, ok := p.classes[normalize(fullClassName)]
	if !ok {
		return &ErrClassNotFound{FullName: fullClassName}
	}
	c.properties[prop.Name] = &prop
	return nil
}

// GetClass implements Provider.
func (p *InMemoryProvider) GetClass(_ context.Context, fullClassName string) (*Class, error) {
	c, ok := p.classes[normalize(fullClassName)]
	if !ok {
		return nil, &ErrClassNotFound{FullName: fullClassName}
	}
	return c, nil
}

// IsDerivedFrom implements Provider via a breadth-first walk up the base
// class chain.
func (p *InMemoryProvider) IsDerivedFrom(_ context.Context, className, baseClassName string) (bool, error) {
	className = normalize(className)
	baseClassName = normalize(baseClassName)
	if className == baseClassName {
		return true, nil
	}

	visited := map[string]bool{className: true}
	queue := []string{className}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		c, ok := p.classes[current]
		if !ok {
			continue
		}
		for _, base := range c.BaseClasses {
			if base == baseClassName {
				return true, nil
			}
			if !visited[base] {
				visited[base] = true
				queue = append(queue, base)
			}
		}
	}
	return false, nil
}

// SortDerivedFirst orders a set of class names so that a more-derived class
// always precedes any of its ancestors in the result, using Kahn's
// algorithm over the ancestor relation and then reversing the ancestors-
// first topological order. The walk breaks ties by name, so after the
// reversal unrelated classes come out in stable, descending name order.
func SortDerivedFirst(ctx context.Context, p Provider, classNames []string) ([]string, error) {
	names := append([]string(nil), classNames...)
	sort.Strings(names)

	inDegree := make(map[string]int, len(names))
	children := make(map[string][]string, len(names))
	nameSet := make(map[string]bool, len(names))
	for _, n := range names {
		nameSet[normalize(n)] = true
	}
	for _, n := range names {
		inDegree[normalize(n)] = 0
	}

	// Edge base -> derived for every pair within the candidate set.
	for _, a := range names {
		for _, b := range names {
			a, b := normalize(a), normalize(b)
			if a == b {
				continue
			}
			derived, err := p.IsDerivedFrom(ctx, b, a)
			if err != nil {
				return nil, err
			}
			if derived {
				children[a] = append(children[a], b)
				inDegree[b]++
			}
		}
	}

	var queue []string
	for _, n := range names {
		n = normalize(n)
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	sort.Strings(queue)

	var ancestorsFirst []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		ancestorsFirst = append(ancestorsFirst, node)

		var freed []string
		for _, child := range children[node] {
			inDegree[child]--
			if inDegree[child] == 0 {
				freed = append(freed, child)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
		sort.Strings(queue)
	}

	// A cycle in the derivation graph is impossible for real class
	// hierarchies; fall back to the stable name order for any leftover
	// names rather than failing the whole grouping pass.
	seen := make(map[string]bool, len(ancestorsFirst))
	for _, n := range ancestorsFirst {
		seen[n] = true
	}
	for _, n := range names {
		n = normalize(n)
		if !seen[n] {
			ancestorsFirst = append(ancestorsFirst, n)
			seen[n] = true
		}
	}

	derivedFirst := make([]string, len(ancestorsFirst))
	for i, n := range ancestorsFirst {
		derivedFirst[len(ancestorsFirst)-1-i] = n
	}
	return derivedFirst, nil
}
