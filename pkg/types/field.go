// Package types defines the event data model: field types, records, event
// types and categories, facets and the target table schema.
package types

// FieldType is the semantic type of an indexed event field.
type FieldType int

const (
	// FieldNone marks a field name the schema does not know. Such fields are ignored.
	FieldNone FieldType = iota
	FieldString
	FieldInt
	FieldFloat
	// FieldMultiString fields may occur more than once in a single document.
	FieldMultiString
)

// String returns the lower-case name of the field type.
func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "string"
	case FieldInt:
		return "int"
	case FieldFloat:
		return "float"
	case FieldMultiString:
		return "multistring"
	default:
		return "none"
	}
}

// Numeric reports whether values of this type are indexed as numbers.
func (t FieldType) Numeric() bool {
	return t == FieldInt || t == FieldFloat
}

// Well-known field names used by the retrieval engine and the projector.
const (
	FieldTimeStamp = "TimeStamp"
	FieldSessionID = "SessionID"
	FieldEventType = "EventType"
	FieldHash      = "Hash"
	FieldFacet     = "Facet"
)
