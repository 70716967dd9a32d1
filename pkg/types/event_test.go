package types

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCategory_EventTypes(t *testing.T) {
	tests := []struct {
		category Category
		want     []EventType
	}{
		{CategorySearch, []EventType{EventSearch}},
		{CategoryReindex, []EventType{EventReindex}},
		{CategoryPageTrackingEvents, []EventType{
			EventNone, EventOpenPage, EventClosePage, EventUserActive, EventUserIdle,
			EventClickOnSearchResult, EventProductView, EventAddToCart, EventConfirmOrder,
			EventSuggestionSelection,
		}},
		{CategoryAllEvents, []EventType{
			EventNone, EventOpenPage, EventClosePage, EventUserActive, EventUserIdle,
			EventClickOnSearchResult, EventProductView, EventAddToCart, EventConfirmOrder,
			EventSearch, EventSuggestionSelection,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.category.String(), func(t *testing.T) {
			got := tt.category.EventTypes()
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d event types, got %d: %v", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event type %d: expected %s, got %s", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestCategory_DefaultIsAllEvents(t *testing.T) {
	var c Category
	if c != CategoryAllEvents {
		t.Fatalf("expected zero Category to be AllEvents, got %s", c)
	}
}

func TestParseCategory(t *testing.T) {
	for in, want := range map[string]Category{
		"":             CategoryAllEvents,
		"all":          CategoryAllEvents,
		"Search":       CategorySearch,
		"pagetracking": CategoryPageTrackingEvents,
		"REINDEX":      CategoryReindex,
	} {
		got, err := ParseCategory(in)
		if err != nil {
			t.Fatalf("ParseCategory(%q) failed: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseCategory(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := ParseCategory("clicks"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestEventType_RoundTripName(t *testing.T) {
	for _, e := range AllEventTypes() {
		got, ok := ParseEventType(e.String())
		if !ok || got != e {
			t.Errorf("ParseEventType(%q) = %v, %v", e.String(), got, ok)
		}
	}
	if _, ok := ParseEventType("Unknown"); ok {
		t.Error("expected unknown name to fail")
	}
}

// Reindex is only ever selected by the Reindex category, and Search never by
// the page tracking category.
func TestProperty_CategoryMembership(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	categories := gen.OneConstOf(CategoryAllEvents, CategorySearch, CategoryPageTrackingEvents, CategoryReindex)
	events := gen.IntRange(0, int(EventReindex))

	properties.Property("event type membership follows the category rules", prop.ForAll(
		func(c Category, ei int) bool {
			e := EventType(ei)
			member := false
			for _, candidate := range c.EventTypes() {
				if candidate == e {
					member = true
					break
				}
			}

			switch c {
			case CategorySearch:
				return member == (e == EventSearch)
			case CategoryReindex:
				return member == (e == EventReindex)
			case CategoryPageTrackingEvents:
				return member == (e != EventSearch && e != EventReindex)
			default:
				return member == (e != EventReindex)
			}
		},
		categories,
		events,
	))

	properties.TestingRun(t)
}
