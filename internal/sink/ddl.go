package sink

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/arkilian/trackport/internal/errors"
	"github.com/arkilian/trackport/internal/projector"
	"github.com/arkilian/trackport/internal/schema"
	"github.com/arkilian/trackport/pkg/types"
)

// DefaultMaxFacets is the number of FacetName/FacetValue column pairs created
// by EnsureTable when none is configured.
const DefaultMaxFacets = 16

// SQL column types used in the generated table.
const (
	sqlTimestamp = "TIMESTAMP"
	sqlBigint    = "BIGINT"
	sqlDouble    = "DOUBLE PRECISION"
	sqlText      = "TEXT"
)

// TableSchema derives the target table layout from the registry, in registry
// order: TimeStamp becomes datetime, Facet expands into maxFacets column pairs
// and _docid comes last.
func TableSchema(table string, reg *schema.Registry, maxFacets int) types.Schema {
	s := types.Schema{Table: table}
	for _, e := range reg.Entries() {
		switch {
		case e.Name == types.FieldTimeStamp:
			s.Columns = append(s.Columns, types.ColumnDef{Name: projector.ColumnDateTime, Type: sqlTimestamp})
		case e.Name == types.FieldFacet:
			for i := 0; i < maxFacets; i++ {
				idx := strconv.Itoa(i)
				s.Columns = append(s.Columns,
					types.ColumnDef{Name: projector.FacetNamePrefix + idx, Type: sqlText},
					types.ColumnDef{Name: projector.FacetValuePrefix + idx, Type: sqlText},
				)
			}
		case e.Type == types.FieldInt:
			s.Columns = append(s.Columns, types.ColumnDef{Name: e.Name, Type: sqlBigint})
		case e.Type == types.FieldFloat:
			s.Columns = append(s.Columns, types.ColumnDef{Name: e.Name, Type: sqlDouble})
		default:
			s.Columns = append(s.Columns, types.ColumnDef{Name: e.Name, Type: sqlText})
		}
	}
	s.Columns = append(s.Columns, types.ColumnDef{Name: projector.ColumnDocID, Type: sqlBigint})
	return s
}

// CreateTableStatement renders a CREATE TABLE IF NOT EXISTS for s.
func CreateTableStatement(s types.Schema) string {
	defs := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		defs[i] = c.Name + " " + c.Type
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.Table, strings.Join(defs, ", "))
}

// EnsureTable creates the target table if it does not exist.
func (s *SQLSink) EnsureTable(ctx context.Context, reg *schema.Registry, maxFacets int) error {
	if maxFacets < 0 {
		return apperrors.NewConfigError(fmt.Sprintf("negative facet column count %d", maxFacets), nil)
	}
	stmt := CreateTableStatement(TableSchema(s.table, reg, maxFacets))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return apperrors.NewSinkError(fmt.Sprintf("failed to create table %s", s.table), err)
	}
	return nil
}
