package projector

import (
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/arkilian/trackport/internal/errors"
	"github.com/arkilian/trackport/internal/schema"
	"github.com/arkilian/trackport/pkg/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUTC() *Projector {
	return New(schema.Default(), schema.DefaultNumericColumns(), WithLocation(time.UTC))
}

func record(docID int, fields ...string) *types.Record {
	rec := &types.Record{DocID: docID}
	for i := 0; i+1 < len(fields); i += 2 {
		rec.Fields = append(rec.Fields, types.Field{Name: fields[i], Value: fields[i+1]})
	}
	return rec
}

func TestProject_TimeStampEpoch(t *testing.T) {
	row, err := newUTC().Project(record(7, "TimeStamp", "0"))
	require.NoError(t, err)

	assert.Equal(t, []string{"datetime", "_docid"}, row.Columns)
	assert.Equal(t, []string{"'1970-01-01 00:00:00'", "7"}, row.Values)
}

func TestProject_TimeStampLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	p := New(schema.Default(), schema.DefaultNumericColumns(), WithLocation(loc))

	row, err := p.Project(record(1, "TimeStamp", "3600"))
	require.NoError(t, err)
	assert.Equal(t, "'1970-01-01 03:00:00'", row.Values[0])
}

func TestProject_MalformedTimeStamp(t *testing.T) {
	_, err := newUTC().Project(record(1, "TimeStamp", "yesterday"))
	assert.True(t, errors.Is(err, apperrors.ErrMalformedTimestamp))
	assert.True(t, apperrors.IsRecordLevel(err))
}

func TestProject_Escaping(t *testing.T) {
	row, err := newUTC().Project(record(1,
		"UserSearchPhrase", "O'Brien's",
		"CorrectedSearchPhrase", `\'quoted\'`,
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"'O''Brien''s'", "'''quoted'''", "1"}, row.Values)
}

func TestProject_FacetsInEncounterOrder(t *testing.T) {
	row, err := newUTC().Project(record(3,
		"Facet", `{"Key":"color","Value":"red"}`,
		"Hash", "abc",
		"Facet", `{"Key":"brand","Value":"O'Neil"}`,
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"FacetName0", "FacetValue0", "Hash", "FacetName1", "FacetValue1", "_docid"}, row.Columns)
	assert.Equal(t, []string{"'color'", "'red'", "'abc'", "'brand'", "'O''Neil'", "3"}, row.Values)
}

func TestProject_MalformedFacet(t *testing.T) {
	for _, raw := range []string{"not json", `["color","red"]`, `{"Key":1,"Value":"x"}`} {
		_, err := newUTC().Project(record(1, "Facet", raw))
		assert.True(t, errors.Is(err, apperrors.ErrMalformedFacet), "facet %q: %v", raw, err)
	}
}

func TestProject_NumericPassthrough(t *testing.T) {
	row, err := newUTC().Project(record(1,
		"Position", "3",
		"ProductId", "42",
		"ColorWeight2", "0.25",
		"ResultsCount", "12",
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"Position", "ProductId", "ColorWeight2", "ResultsCount", "_docid"}, row.Columns)
	assert.Equal(t, []string{"3", "'42'", "0.25", "12", "1"}, row.Values)
}

func TestProject_NonNumericTextInNumericColumnIsQuoted(t *testing.T) {
	row, err := newUTC().Project(record(1, "Total", "1); DROP TABLE trackedevents; --"))
	require.NoError(t, err)
	assert.Equal(t, "'1); DROP TABLE trackedevents; --'", row.Values[0])

	row, err = newUTC().Project(record(1, "Total", "NaN"))
	require.NoError(t, err)
	assert.Equal(t, "'NaN'", row.Values[0])
}

func TestProject_SkipsEmptyAndUnknown(t *testing.T) {
	row, err := newUTC().Project(record(9,
		"UserIP", "",
		"Unregistered", "value",
		"UserAgent", "curl",
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"UserAgent", "_docid"}, row.Columns)
	assert.Equal(t, 2, row.Len())
}

func TestProject_EmptyRecord(t *testing.T) {
	row, err := newUTC().Project(&types.Record{DocID: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"_docid"}, row.Columns)
	assert.Equal(t, []string{"5"}, row.Values)
}

func TestProject_CustomNumericSet(t *testing.T) {
	p := New(schema.Default(), schema.NewColumnSet("ProductId"), WithLocation(time.UTC))
	row, err := p.Project(record(1, "ProductId", "42", "Position", "3"))
	require.NoError(t, err)
	assert.Equal(t, []string{"42", "'3'", "1"}, row.Values)
}

func TestProperty_QuoteProducesBalancedLiteral(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("quoted literal has no lone quote inside", prop.ForAll(
		func(s string) bool {
			q := Quote(s)
			if !strings.HasPrefix(q, "'") || !strings.HasSuffix(q, "'") || len(q) < 2 {
				return false
			}
			inner := q[1 : len(q)-1]
			// Every quote inside must be part of a doubled pair.
			return !strings.Contains(strings.ReplaceAll(inner, "''", ""), "'")
		},
		gen.AnyString(),
	))

	properties.Property("values without quotes or backslashes are unchanged", prop.ForAll(
		func(s string) bool {
			return Escape(s) == s
		},
		gen.AlphaString(),
	))

	properties.Property("projection always ends with the document id", prop.ForAll(
		func(docID int, phrase string) bool {
			row, err := newUTC().Project(record(docID, "UserSearchPhrase", phrase))
			if err != nil {
				return false
			}
			last := row.Len() - 1
			return len(row.Columns) == len(row.Values) &&
				row.Columns[last] == ColumnDocID
		},
		gen.IntRange(0, 1<<30),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
