package schema

import (
	"testing"

	"github.com/arkilian/trackport/pkg/types"
)

func TestRegistry_TypeOf(t *testing.T) {
	reg := Default()

	tests := map[string]types.FieldType{
		"TimeStamp":    types.FieldInt,
		"Hash":         types.FieldString,
		"ColorWeight3": types.FieldFloat,
		"Facet":        types.FieldMultiString,
		"Trigger":      types.FieldMultiString,
		"Position":     types.FieldInt,
		"NotAField":    types.FieldNone,
		"timestamp":    types.FieldNone,
	}
	for name, want := range tests {
		if got := reg.TypeOf(name); got != want {
			t.Errorf("TypeOf(%s) = %s, want %s", name, got, want)
		}
	}
}

func TestRegistry_EntriesKeepOrder(t *testing.T) {
	reg := Default()
	entries := reg.Entries()
	if len(entries) != reg.Len() {
		t.Fatalf("expected %d entries, got %d", reg.Len(), len(entries))
	}
	if entries[0].Name != "TimeStamp" || entries[len(entries)-1].Name != "Total" {
		t.Errorf("unexpected order: first=%s last=%s", entries[0].Name, entries[len(entries)-1].Name)
	}

	// Entries returns a copy.
	entries[0].Name = "Changed"
	if reg.Entries()[0].Name != "TimeStamp" {
		t.Error("Entries exposed internal state")
	}
}

func TestNewRegistry_Rejects(t *testing.T) {
	if _, err := NewRegistry(Entry{"A", types.FieldString}, Entry{"A", types.FieldInt}); err == nil {
		t.Error("expected duplicate error")
	}
	if _, err := NewRegistry(Entry{"A", types.FieldNone}); err == nil {
		t.Error("expected missing type error")
	}
	if _, err := NewRegistry(Entry{"", types.FieldString}); err == nil {
		t.Error("expected empty name error")
	}
}

func TestRegistry_AddingFieldIsDeclarative(t *testing.T) {
	reg, err := NewRegistry(append(Default().Entries(), Entry{"Referrer", types.FieldString})...)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	if reg.TypeOf("Referrer") != types.FieldString {
		t.Error("expected Referrer to be registered")
	}
}

func TestColumnSet_Contains(t *testing.T) {
	s := DefaultNumericColumns()
	for _, name := range []string{"Position", "position", "ResultsCount", "ColorWeight4", "PageNumber"} {
		if !s.Contains(name) {
			t.Errorf("expected %s to be numeric", name)
		}
	}
	for _, name := range []string{"ProductId", "TimeStamp", "datetime", "ColorValue0"} {
		if s.Contains(name) {
			t.Errorf("expected %s not to be numeric", name)
		}
	}
}
