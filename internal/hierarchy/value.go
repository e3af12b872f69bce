package hierarchy

import (
	"context"
	"fmt"

	"github.com/go-hierarchy/provider/internal/metadata"
)

// TypedPrimitiveValue is a primitive value tagged with the metadata needed
// to format it (spec.md ยง2 "typed primitive values").
type TypedPrimitiveValue struct {
	Type           metadata.PrimitiveType
	Value          interface{}
	ExtendedType   string
	KindOfQuantity string
}

// PropertyValueRef is one "property reference" part of a concatenated
// value: a class/property pair and the raw value read off a row for it.
// Its primitive type is resolved against the metadata provider when the
// label is formatted (spec.md ยง4.4 step 2).
type PropertyValueRef struct {
	ClassName    string
	PropertyName string
	Value        interface{}
}

// ConcatenatedValuePart is one element of a ConcatenatedValue: exactly one
// of Literal, Primitive, or Property is set.
type ConcatenatedValuePart struct {
	Literal   *string
	Primitive *TypedPrimitiveValue
	Property  *PropertyValueRef
}

// LiteralPart builds a literal-string concatenated value part.
func LiteralPart(s string) ConcatenatedValuePart {
	return ConcatenatedValuePart{Literal: &s}
}

// PrimitivePart builds a typed-primitive concatenated value part.
func PrimitivePart(v TypedPrimitiveValue) ConcatenatedValuePart {
	return ConcatenatedValuePart{Primitive: &v}
}

// PropertyPart builds a property-reference concatenated value part.
func PropertyPart(ref PropertyValueRef) ConcatenatedValuePart {
	return ConcatenatedValuePart{Property: &ref}
}

// ConcatenatedValue is a label expressed as an ordered sequence of literal
// strings, typed primitives, and property references (spec.md ยง2, GLOSSARY).
type ConcatenatedValue struct {
	Parts []ConcatenatedValuePart
}

// Label is the tagged union of the two label shapes a Source node may
// carry: a plain string, or a ConcatenatedValue that must be resolved
// against metadata and formatted (spec.md ยง3.2).
type Label struct {
	Plain        *string
	Concatenated *ConcatenatedValue
}

// PlainLabel builds a Label from an already-known string.
func PlainLabel(s string) Label {
	return Label{Plain: &s}
}

// ConcatenatedLabel builds a Label from a ConcatenatedValue.
func ConcatenatedLabel(v ConcatenatedValue) Label {
	return Label{Concatenated: &v}
}

// Formatter formats a typed primitive value into display text
// (spec.md ยง6.1 "Primitive Value Formatter").
type Formatter interface {
	Format(ctx context.Context, v TypedPrimitiveValue) (string, error)
}

// FormatterFunc adapts a plain function to the Formatter interface.
type FormatterFunc func(ctx context.Context, v TypedPrimitiveValue) (string, error)

// Format implements Formatter.
func (f FormatterFunc) Format(ctx context.Context, v TypedPrimitiveValue) (string, error) {
	return f(ctx, v)
}

// DefaultFormatter renders primitive values with unremarkable, locale-free
// formatting: the stdlib's default stringification for each Go kind. It is
// meant as a safe fallback, not a substitute for a real localized
// formatter supplied by the caller via Provider's Formatter option.
func DefaultFormatter() Formatter {
	return FormatterFunc(func(_ context.Context, v TypedPrimitiveValue) (string, error) {
		switch v.Type {
		case metadata.PrimitiveIGeometry, metadata.PrimitiveBinary:
			return "", fmt.Errorf("default formatter cannot format %s values", v.Type)
		case metadata.PrimitiveBoolean:
			b, _ := v.Value.(bool)
			if b {
				return "True", nil
			}
			return "False", nil
		case metadata.PrimitiveDouble:
			f, ok := v.Value.(float64)
			if !ok {
				return fmt.Sprintf("%v", v.Value), nil
			}
			return fmt.Sprintf("%g", f), nil
		default:
			if v.Value == nil {
				return "", nil
			}
			return fmt.Sprintf("%v", v.Value), nil
		}
	})
}

// formatConcatenatedValue resolves every part of a concatenated value
// against the metadata provider and formatter, then joins the results.
// IGeometry and Binary properties are rejected (spec.md ยง4.4 step 2).
func formatConcatenatedValue(ctx context.Context, cv *ConcatenatedValue, md metadata.Provider, formatter Formatter) (string, error) {
	var out string
	for _, part := range cv.Parts {
		switch {
		case part.Literal != nil:
			out += *part.Literal
		case part.Primitive != nil:
			s, err := formatter.Format(ctx, *part.Primitive)
			if err != nil {
				return "", err
			}
			out += s
		case part.Property != nil:
			ref := part.Property
			class, err := md.GetClass(ctx, ref.ClassName)
			if err != nil {
				return "", &MissingPropertyError{ClassName: ref.ClassName, PropertyName: ref.PropertyName}
			}
			prop := class.GetProperty(ref.PropertyName)
			if prop == nil {
				return "", &MissingPropertyError{ClassName: ref.ClassName, PropertyName: ref.PropertyName}
			}
			if prop.PrimitiveType == metadata.PrimitiveIGeometry || prop.PrimitiveType == metadata.PrimitiveBinary {
				return "", &UnsupportedPrimitiveTypeError{
					ClassName:    ref.ClassName,
					PropertyName: ref.PropertyName,
					Type:         prop.PrimitiveType.String(),
				}
			}
			s, err := formatter.Format(ctx, TypedPrimitiveValue{
				Type:           prop.PrimitiveType,
				Value:          ref.Value,
				ExtendedType:   prop.ExtendedType,
				KindOfQuantity: prop.KindOfQuantity,
			})
			if err != nil {
				return "", err
			}
			out += s
		}
	}
	return out, nil
}

// formatLabel resolves a Label (plain or concatenated) into a display
// string (spec.md ยง4.4 step 2).
func formatLabel(ctx context.Context, l Label, md metadata.Provider, formatter Formatter) (string, error) {
	if l.Plain != nil {
		return formatter.Format(ctx, TypedPrimitiveValue{Type: metadata.PrimitiveString, Value: *l.Plain})
	}
	if l.Concatenated != nil {
		return formatConcatenatedValue(ctx, l.Concatenated, md, formatter)
	}
	return "", nil
}
