package types

import (
	"fmt"
	"strings"
)

// EventType enumerates the tracked user event kinds stored in the EventType field.
type EventType int

const (
	EventNone EventType = iota
	EventOpenPage
	EventClosePage
	EventUserActive
	EventUserIdle
	EventClickOnSearchResult
	EventProductView
	EventAddToCart
	EventConfirmOrder
	EventSearch
	EventSuggestionSelection
	EventReindex
)

var eventTypeNames = [...]string{
	EventNone:                "None",
	EventOpenPage:            "OpenPage",
	EventClosePage:           "ClosePage",
	EventUserActive:          "UserActive",
	EventUserIdle:            "UserIdle",
	EventClickOnSearchResult: "ClickOnSearchResult",
	EventProductView:         "ProductView",
	EventAddToCart:           "AddToCart",
	EventConfirmOrder:        "ConfirmOrder",
	EventSearch:              "Search",
	EventSuggestionSelection: "SuggestionSelection",
	EventReindex:             "Reindex",
}

// String returns the name stored in the index for this event type.
func (e EventType) String() string {
	if e < 0 || int(e) >= len(eventTypeNames) {
		return fmt.Sprintf("EventType(%d)", int(e))
	}
	return eventTypeNames[e]
}

// AllEventTypes returns every defined event type in declaration order.
func AllEventTypes() []EventType {
	out := make([]EventType, 0, len(eventTypeNames))
	for i := range eventTypeNames {
		out = append(out, EventType(i))
	}
	return out
}

// ParseEventType maps a stored event type name back to its value.
func ParseEventType(name string) (EventType, bool) {
	for i, n := range eventTypeNames {
		if n == name {
			return EventType(i), true
		}
	}
	return EventNone, false
}

// Category selects a predefined subset of event types for retrieval.
// The zero value is CategoryAllEvents.
type Category int

const (
	CategoryAllEvents Category = iota
	CategorySearch
	CategoryPageTrackingEvents
	CategoryReindex
)

// String returns the configuration name of the category.
func (c Category) String() string {
	switch c {
	case CategorySearch:
		return "search"
	case CategoryPageTrackingEvents:
		return "pagetracking"
	case CategoryReindex:
		return "reindex"
	default:
		return "all"
	}
}

// ParseCategory parses a category name as accepted on the command line.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "allevents":
		return CategoryAllEvents, nil
	case "search":
		return CategorySearch, nil
	case "pagetracking", "pagetrackingevents":
		return CategoryPageTrackingEvents, nil
	case "reindex":
		return CategoryReindex, nil
	default:
		return CategoryAllEvents, fmt.Errorf("unknown event category %q (must be all, search, pagetracking or reindex)", s)
	}
}

// EventTypes resolves the category into its candidate event type set:
//
//	Search             -> {Search}
//	Reindex            -> {Reindex}
//	PageTrackingEvents -> all event types except Search and Reindex
//	AllEvents          -> all event types except Reindex
func (c Category) EventTypes() []EventType {
	switch c {
	case CategorySearch:
		return []EventType{EventSearch}
	case CategoryReindex:
		return []EventType{EventReindex}
	case CategoryPageTrackingEvents:
		return filterEventTypes(func(e EventType) bool { return e != EventSearch && e != EventReindex })
	default:
		return filterEventTypes(func(e EventType) bool { return e != EventReindex })
	}
}

// EventTypeNames is EventTypes rendered as stored names.
func (c Category) EventTypeNames() []string {
	types := c.EventTypes()
	names := make([]string, len(types))
	for i, e := range types {
		names[i] = e.String()
	}
	return names
}

func filterEventTypes(keep func(EventType) bool) []EventType {
	var out []EventType
	for _, e := range AllEventTypes() {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
