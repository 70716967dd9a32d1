// Package projector flattens event records into column/value rows ready to be
// rendered as SQL inserts.
package projector

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/arkilian/trackport/internal/errors"
	"github.com/arkilian/trackport/internal/schema"
	"github.com/arkilian/trackport/pkg/types"
)

// Column names produced by projection.
const (
	ColumnDateTime   = "datetime"
	ColumnDocID      = "_docid"
	FacetNamePrefix  = "FacetName"
	FacetValuePrefix = "FacetValue"
)

// DateTimeLayout is the layout of the datetime column.
const DateTimeLayout = "2006-01-02 15:04:05"

// Row is a projected record. Columns and Values are parallel; values are
// already SQL literals (quoted and escaped where needed).
type Row struct {
	Columns []string
	Values  []string
}

// Len returns the number of columns.
func (r *Row) Len() int {
	return len(r.Columns)
}

func (r *Row) add(column, value string) {
	r.Columns = append(r.Columns, column)
	r.Values = append(r.Values, value)
}

// Projector maps records to rows. It holds no mutable state and is safe for
// concurrent use.
type Projector struct {
	registry *schema.Registry
	numeric  schema.ColumnSet
	location *time.Location
}

// Option configures a Projector.
type Option func(*Projector)

// WithLocation sets the zone TimeStamp values are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(p *Projector) {
		if loc != nil {
			p.location = loc
		}
	}
}

// New creates a projector. Columns in numeric are emitted unquoted.
func New(reg *schema.Registry, numeric schema.ColumnSet, opts ...Option) *Projector {
	p := &Projector{
		registry: reg,
		numeric:  numeric,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Project flattens rec. Fields are visited in stored order; empty values and
// unregistered names are skipped, TimeStamp becomes the datetime column and
// every Facet occurrence becomes a FacetName{i}/FacetValue{i} pair. The
// document id is appended last as _docid.
func (p *Projector) Project(rec *types.Record) (*Row, error) {
	row := &Row{
		Columns: make([]string, 0, len(rec.Fields)+1),
		Values:  make([]string, 0, len(rec.Fields)+1),
	}
	facets := 0

	for _, f := range rec.Fields {
		if f.Value == "" || !p.registry.Has(f.Name) {
			continue
		}

		switch f.Name {
		case types.FieldTimeStamp:
			secs, err := strconv.ParseInt(strings.TrimSpace(f.Value), 10, 64)
			if err != nil {
				return nil, apperrors.NewProjectionError(apperrors.CodeMalformedTimestamp,
					fmt.Sprintf("document %d: timestamp %q", rec.DocID, f.Value), err)
			}
			row.add(ColumnDateTime, Quote(time.Unix(secs, 0).In(p.location).Format(DateTimeLayout)))

		case types.FieldFacet:
			facet, err := types.ParseFacet(f.Value)
			if err != nil {
				return nil, apperrors.NewProjectionError(apperrors.CodeMalformedFacet,
					fmt.Sprintf("document %d: facet %d", rec.DocID, facets), err)
			}
			idx := strconv.Itoa(facets)
			row.add(FacetNamePrefix+idx, Quote(facet.Name))
			row.add(FacetValuePrefix+idx, Quote(facet.Value))
			facets++

		default:
			if p.numeric.Contains(f.Name) && isNumber(f.Value) {
				row.add(f.Name, f.Value)
			} else {
				row.add(f.Name, Quote(f.Value))
			}
		}
	}

	row.add(ColumnDocID, strconv.Itoa(rec.DocID))
	return row, nil
}

// Escape prepares a value for a single-quoted SQL literal: an already escaped
// quote (\') is unescaped first, then every quote is doubled.
func Escape(s string) string {
	s = strings.ReplaceAll(s, `\'`, `'`)
	return strings.ReplaceAll(s, `'`, `''`)
}

// Quote escapes s and wraps it in single quotes.
func Quote(s string) string {
	return "'" + Escape(s) + "'"
}

// isNumber keeps non-numeric text in a numeric column from reaching the
// statement unquoted.
func isNumber(s string) bool {
	if strings.Trim(s, "0123456789+-.eE") != "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
