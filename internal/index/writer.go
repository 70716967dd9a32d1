package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/arkilian/trackport/internal/schema"
	"github.com/arkilian/trackport/pkg/types"
	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"
)

// Writer appends event documents to an index. Documents become visible to
// readers opened (or reopened) after Commit.
type Writer struct {
	db       *sql.DB
	tx       *sql.Tx
	registry *schema.Registry
	pending  int
}

// Create opens the index in dir for writing, creating the directory and the
// index tables if needed.
func Create(ctx context.Context, dir string, reg *schema.Registry) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("index: failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", Path(dir))
	if err != nil {
		return nil, fmt.Errorf("index: failed to open index: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, indexDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: failed to create tables: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", metaFormat, formatVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: failed to write format: %w", err)
	}

	return &Writer{db: db, registry: reg}, nil
}

// Add stores one document and indexes its terms. Fields the registry does not
// know are dropped. Returns the new document id.
func (w *Writer) Add(ctx context.Context, fields []types.Field) (int, error) {
	if w.tx == nil {
		tx, err := w.db.BeginTx(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("index: failed to begin transaction: %w", err)
		}
		w.tx = tx
	}

	kept := make([][2]string, 0, len(fields))
	for _, f := range fields {
		if w.registry.Has(f.Name) {
			kept = append(kept, [2]string{f.Name, f.Value})
		}
	}

	raw, err := json.Marshal(kept)
	if err != nil {
		return 0, fmt.Errorf("index: failed to marshal stored fields: %w", err)
	}

	res, err := w.tx.ExecContext(ctx, "INSERT INTO documents (stored) VALUES (?)", snappy.Encode(nil, raw))
	if err != nil {
		return 0, fmt.Errorf("index: failed to insert document: %w", err)
	}
	docID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("index: failed to read document id: %w", err)
	}

	for _, f := range kept {
		var num any
		if w.registry.TypeOf(f[0]).Numeric() {
			if n, err := strconv.ParseFloat(f[1], 64); err == nil {
				num = n
			}
		}
		if _, err := w.tx.ExecContext(ctx,
			"INSERT INTO terms (field, value, num, doc_id) VALUES (?, ?, ?, ?)",
			f[0], f[1], num, docID); err != nil {
			return 0, fmt.Errorf("index: failed to insert term %s: %w", f[0], err)
		}
	}

	w.pending++
	return int(docID), nil
}

// Commit makes pending documents durable. The Hash bloom filter is rebuilt
// in the same transaction, so a reader never sees documents without their
// hashes in the filter.
func (w *Writer) Commit(ctx context.Context) error {
	tx := w.tx
	if tx == nil {
		var err error
		if tx, err = w.db.BeginTx(ctx, nil); err != nil {
			return fmt.Errorf("index: failed to begin transaction: %w", err)
		}
	}
	w.tx = nil
	w.pending = 0

	if err := writeHashFilter(ctx, tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: failed to commit: %w", err)
	}
	return nil
}

func writeHashFilter(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, "SELECT DISTINCT value FROM terms WHERE field = ?", types.FieldHash)
	if err != nil {
		return fmt.Errorf("index: failed to scan hashes: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return fmt.Errorf("index: failed to scan hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("index: error iterating hashes: %w", err)
	}
	rows.Close()

	f := newHashFilter(len(hashes))
	for _, h := range hashes {
		f.add(h)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", metaHashBloom, f.marshal()); err != nil {
		return fmt.Errorf("index: failed to write hash filter: %w", err)
	}
	return nil
}

// Close commits pending documents and closes the index.
func (w *Writer) Close() error {
	var commitErr error
	if w.tx != nil || w.pending > 0 {
		commitErr = w.Commit(context.Background())
	}
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("index: failed to close: %w", err)
	}
	return commitErr
}
