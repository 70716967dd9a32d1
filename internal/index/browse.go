package index

import (
	"fmt"
	"strings"
)

// Query is the mandatory predicate of a browse request.
type Query interface {
	// clause renders the predicate as a doc_id membership condition.
	clause() (string, []any)
	field() string
}

// RangeQuery matches documents whose numeric field value lies in [Min, Max].
type RangeQuery struct {
	Field string
	Min   int64
	Max   int64
}

func (q RangeQuery) clause() (string, []any) {
	return "doc_id IN (SELECT doc_id FROM terms WHERE field = ? AND num BETWEEN ? AND ?)",
		[]any{q.Field, q.Min, q.Max}
}

func (q RangeQuery) field() string { return q.Field }

// TermQuery matches documents holding Field = Value.
type TermQuery struct {
	Field string
	Value string
}

func (q TermQuery) clause() (string, []any) {
	return "doc_id IN (SELECT doc_id FROM terms WHERE field = ? AND value = ?)",
		[]any{q.Field, q.Value}
}

func (q TermQuery) field() string { return q.Field }

// Selection restricts hits to documents holding at least one of Values in
// Field. Selections are combined with AND. A selection with no values matches
// nothing.
type Selection struct {
	Field  string
	Values []string
}

func (s Selection) clause() (string, []any) {
	if len(s.Values) == 0 {
		return "0", nil
	}
	args := make([]any, 0, len(s.Values)+1)
	args = append(args, s.Field)
	for _, v := range s.Values {
		args = append(args, v)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(s.Values)), ",")
	return fmt.Sprintf("doc_id IN (SELECT doc_id FROM terms WHERE field = ? AND value IN (%s))", placeholders), args
}

// BrowseRequest describes one faceted browse call. Count 0 only reports NumHits.
type BrowseRequest struct {
	Query      Query
	Selections []Selection
	Offset     int
	Count      int

	// Facets lists fields whose value counts over all hits are reported.
	Facets []string
}

// Hit is one matching document.
type Hit struct {
	DocID int
}

// BrowseResult is the answer to a BrowseRequest. Hits are ordered by doc id.
type BrowseResult struct {
	NumHits int
	Hits    []Hit
	Facets  map[string]map[string]int
}

func (r BrowseRequest) selects(field string) bool {
	for _, s := range r.Selections {
		if s.Field == field {
			return true
		}
	}
	return false
}

// where renders the conjunction of the query and all selections.
func (r BrowseRequest) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if r.Query != nil {
		c, a := r.Query.clause()
		clauses = append(clauses, c)
		args = append(args, a...)
	}
	for _, s := range r.Selections {
		c, a := s.clause()
		clauses = append(clauses, c)
		args = append(args, a...)
	}
	if len(clauses) == 0 {
		return "1", nil
	}
	return strings.Join(clauses, " AND "), args
}
