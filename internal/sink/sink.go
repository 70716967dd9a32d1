// Package sink delivers projected rows to the analytical database as one
// INSERT statement per row.
package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/arkilian/trackport/internal/errors"
	"github.com/arkilian/trackport/internal/projector"
)

// DefaultTable is the table rows are inserted into unless configured otherwise.
const DefaultTable = "trackedevents"

// Sink accepts rendered INSERT statements.
type Sink interface {
	// Insert executes one statement. A refused statement is reported as
	// SINK_REJECTED.
	Insert(ctx context.Context, stmt string) error

	Close() error
}

// InsertStatement renders row as INSERT INTO table(c1,c2) VALUES(v1,v2).
// Row values are expected to be SQL literals already.
func InsertStatement(table string, row *projector.Row) string {
	var b strings.Builder
	b.Grow(32 + len(table) + 16*row.Len())
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteByte('(')
	b.WriteString(strings.Join(row.Columns, ","))
	b.WriteString(") VALUES(")
	b.WriteString(strings.Join(row.Values, ","))
	b.WriteByte(')')
	return b.String()
}

// WriterSink writes statements to an io.Writer, one per line terminated by a
// semicolon. Used for dry runs and SQL dumps.
type WriterSink struct {
	w *bufio.Writer
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: bufio.NewWriter(w)}
}

func (s *WriterSink) Insert(ctx context.Context, stmt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.w.WriteString(stmt); err != nil {
		return apperrors.NewSinkError("failed to write statement", err)
	}
	if _, err := s.w.WriteString(";\n"); err != nil {
		return apperrors.NewSinkError("failed to write statement", err)
	}
	return nil
}

// Close flushes buffered statements.
func (s *WriterSink) Close() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("sink: failed to flush: %w", err)
	}
	return nil
}
