// Package schema provides the field type registry shared by the index, the
// retrieval engine and the row projector.
package schema

import (
	"fmt"
	"strings"

	"github.com/arkilian/trackport/pkg/types"
)

// Entry maps one field name to its semantic type.
type Entry struct {
	Name string
	Type types.FieldType
}

// Registry is an immutable, ordered field name -> type table.
// Fields missing from the registry are ignored by every consumer.
type Registry struct {
	entries []Entry
	byName  map[string]types.FieldType
}

// NewRegistry builds a registry from entries. Duplicate names and entries of
// type FieldNone are rejected.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{
		entries: make([]Entry, 0, len(entries)),
		byName:  make(map[string]types.FieldType, len(entries)),
	}
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("schema: empty field name")
		}
		if e.Type == types.FieldNone {
			return nil, fmt.Errorf("schema: field %s has no type", e.Name)
		}
		if _, dup := r.byName[e.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate field %s", e.Name)
		}
		r.entries = append(r.entries, e)
		r.byName[e.Name] = e.Type
	}
	return r, nil
}

// MustNewRegistry is NewRegistry that panics on error. Intended for static tables.
func MustNewRegistry(entries ...Entry) *Registry {
	r, err := NewRegistry(entries...)
	if err != nil {
		panic(err)
	}
	return r
}

// TypeOf returns the semantic type of the named field, or types.FieldNone.
func (r *Registry) TypeOf(name string) types.FieldType {
	return r.byName[name]
}

// Has reports whether the field is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Entries returns a copy of the table in declaration order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of registered fields.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Default returns the tracked event field table.
func Default() *Registry {
	return MustNewRegistry(
		Entry{"TimeStamp", types.FieldInt},
		Entry{"Hash", types.FieldString},
		Entry{"UserIP", types.FieldString},
		Entry{"UserAgent", types.FieldString},
		Entry{"UserID", types.FieldString},
		Entry{"SessionID", types.FieldString},
		Entry{"EventType", types.FieldString},

		Entry{"UserSearchPhrase", types.FieldString},
		Entry{"CorrectedSearchPhrase", types.FieldString},
		Entry{"Prefilter", types.FieldString},
		Entry{"HiddenString", types.FieldString},
		Entry{"SearchResultState", types.FieldString},
		Entry{"GroupField", types.FieldString},
		Entry{"SortType", types.FieldInt},
		Entry{"ViewType", types.FieldInt},
		Entry{"PageNumber", types.FieldInt},
		Entry{"ResultsCount", types.FieldInt},

		Entry{"ColorValue0", types.FieldString},
		Entry{"ColorValue1", types.FieldString},
		Entry{"ColorValue2", types.FieldString},
		Entry{"ColorValue3", types.FieldString},
		Entry{"ColorValue4", types.FieldString},
		Entry{"ColorWeight0", types.FieldFloat},
		Entry{"ColorWeight1", types.FieldFloat},
		Entry{"ColorWeight2", types.FieldFloat},
		Entry{"ColorWeight3", types.FieldFloat},
		Entry{"ColorWeight4", types.FieldFloat},

		Entry{"Facet", types.FieldMultiString},
		Entry{"FacetName", types.FieldString},
		Entry{"FacetValue", types.FieldString},
		Entry{"Trigger", types.FieldMultiString},

		Entry{"ElapsedTime", types.FieldInt},
		Entry{"SearchFeatures", types.FieldString},
		Entry{"ShopUserID", types.FieldString},
		Entry{"ShopUserName", types.FieldString},

		Entry{"ProductId", types.FieldString},
		Entry{"ProductUrl", types.FieldString},
		Entry{"Position", types.FieldInt},
		Entry{"Total", types.FieldInt},
	)
}

// ColumnSet is a case-insensitive set of output column names.
type ColumnSet map[string]struct{}

// NewColumnSet builds a set from names; names are lower-cased.
func NewColumnSet(names ...string) ColumnSet {
	s := make(ColumnSet, len(names))
	for _, n := range names {
		s[strings.ToLower(n)] = struct{}{}
	}
	return s
}

// Contains reports whether name, compared lower-cased, is in the set.
func (s ColumnSet) Contains(name string) bool {
	_, ok := s[strings.ToLower(name)]
	return ok
}

// DefaultNumericColumns returns the columns whose values are written unquoted.
func DefaultNumericColumns() ColumnSet {
	return NewColumnSet(
		"resultscount",
		"elapsedtime",
		"position",
		"total",
		"colorweight0",
		"colorweight1",
		"colorweight2",
		"colorweight3",
		"colorweight4",
		"sorttype",
		"viewtype",
		"pagenumber",
	)
}
