package types

import (
	"errors"
	"fmt"

	"github.com/valyala/fastjson"
)

// ErrMalformedFacet is returned when a Facet value is not a serialized name/value pair.
var ErrMalformedFacet = errors.New("malformed facet value")

// Facet is the decoded form of a composite Facet field: a nested name/value pair.
// In the index it is stored as the JSON object {"Key": name, "Value": value}.
type Facet struct {
	Name  string
	Value string
}

// ParseFacet decodes a stored Facet value.
func ParseFacet(raw string) (Facet, error) {
	var p fastjson.Parser
	v, err := p.Parse(raw)
	if err != nil {
		return Facet{}, fmt.Errorf("%w: %v", ErrMalformedFacet, err)
	}
	if v.Type() != fastjson.TypeObject {
		return Facet{}, fmt.Errorf("%w: expected object, got %s", ErrMalformedFacet, v.Type())
	}

	name, err := facetMember(v, "Key")
	if err != nil {
		return Facet{}, err
	}
	value, err := facetMember(v, "Value")
	if err != nil {
		return Facet{}, err
	}
	return Facet{Name: name, Value: value}, nil
}

// facetMember reads a string member. A missing or null member decodes as empty,
// the same as a default key/value pair.
func facetMember(v *fastjson.Value, key string) (string, error) {
	m := v.Get(key)
	if m == nil || m.Type() == fastjson.TypeNull {
		return "", nil
	}
	b, err := m.StringBytes()
	if err != nil {
		return "", fmt.Errorf("%w: member %s: %v", ErrMalformedFacet, key, err)
	}
	return string(b), nil
}

// Encode returns the stored form of the facet.
func (f Facet) Encode() string {
	var a fastjson.Arena
	obj := a.NewObject()
	obj.Set("Key", a.NewString(f.Name))
	obj.Set("Value", a.NewString(f.Value))
	return string(obj.MarshalTo(nil))
}
