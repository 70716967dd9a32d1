package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	apperrors "github.com/arkilian/trackport/internal/errors"
	"github.com/arkilian/trackport/internal/schema"
	"github.com/arkilian/trackport/pkg/types"
	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"
)

// Reader is a read-only handle on an index. It is meant to be owned by a single
// retrieval engine; the mutex only keeps Reopen from racing a browse.
type Reader struct {
	dir      string
	registry *schema.Registry

	mu sync.RWMutex
	db *sql.DB
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens the index in dir. Failure to open is reported as STORE_UNAVAILABLE.
func Open(ctx context.Context, dir string, reg *schema.Registry) (*Reader, error) {
	r := &Reader{dir: dir, registry: reg}
	db, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	r.db = db
	return r, nil
}

// Dir returns the source directory the index lives in.
func (r *Reader) Dir() string {
	return r.dir
}

func (r *Reader) open(ctx context.Context) (*sql.DB, error) {
	path := Path(r.dir)
	if _, err := os.Stat(path); err != nil {
		return nil, apperrors.NewStoreError(apperrors.CodeStoreUnavailable,
			fmt.Sprintf("index %s not found", path), err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, apperrors.NewStoreError(apperrors.CodeStoreUnavailable, "failed to open index", err)
	}

	var format string
	if err := db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaFormat).Scan(&format); err != nil {
		db.Close()
		return nil, apperrors.NewStoreError(apperrors.CodeStoreUnavailable,
			fmt.Sprintf("%s is not a readable index", path), err)
	}
	if format != formatVersion {
		db.Close()
		return nil, apperrors.NewStoreError(apperrors.CodeStoreUnavailable,
			fmt.Sprintf("unsupported index format %q", format), nil)
	}
	return db, nil
}

// loadHashFilter reads the Hash bloom filter. It returns nil when the index
// was never committed with one.
func loadHashFilter(ctx context.Context, q querier) (*hashFilter, error) {
	var raw []byte
	err := q.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaHashBloom).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreError(apperrors.CodeStoreUnavailable, "failed to read hash filter", err)
	}
	f, err := unmarshalHashFilter(raw)
	if err != nil {
		return nil, apperrors.NewStoreError(apperrors.CodeStoreUnavailable, "failed to load hash filter", err)
	}
	return f, nil
}

// Reopen closes the current handle and opens a fresh one.
func (r *Reader) Reopen(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		r.db.Close()
		r.db = nil
	}
	db, err := r.open(ctx)
	if err != nil {
		return err
	}
	r.db = db
	return nil
}

// Close releases the handle.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Reader) handle() (*sql.DB, error) {
	if r.db == nil {
		return nil, apperrors.NewStoreError(apperrors.CodeStoreUnavailable, "index is closed", nil)
	}
	return r.db, nil
}

// Browse runs a faceted browse: counts all hits, returns the page
// [Offset, Offset+Count) ordered by doc id and the requested facet counts.
// All reads, the Hash filter included, share one transaction and so see the
// same commit.
func (r *Reader) Browse(ctx context.Context, req BrowseRequest) (*BrowseResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	db, err := r.handle()
	if err != nil {
		return nil, err
	}
	if err := r.validate(req); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewStoreError(apperrors.CodeStoreUnavailable, "failed to begin read", err)
	}
	defer tx.Rollback()

	if req.selects(types.FieldHash) {
		hashes, err := loadHashFilter(ctx, tx)
		if err != nil {
			return nil, err
		}
		req = r.pruneHashSelections(req, hashes)
	}
	result := &BrowseResult{}
	where, args := req.where()

	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE "+where, args...).Scan(&result.NumHits); err != nil {
		return nil, fmt.Errorf("index: failed to count hits: %w", err)
	}

	if req.Count > 0 && req.Offset < result.NumHits {
		pageArgs := append(append([]any{}, args...), req.Count, req.Offset)
		rows, err := tx.QueryContext(ctx,
			"SELECT doc_id FROM documents WHERE "+where+" ORDER BY doc_id LIMIT ? OFFSET ?", pageArgs...)
		if err != nil {
			return nil, fmt.Errorf("index: failed to browse: %w", err)
		}
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("index: failed to scan hit: %w", err)
			}
			result.Hits = append(result.Hits, Hit{DocID: id})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("index: error iterating hits: %w", err)
		}
		rows.Close()
	}

	if len(req.Facets) > 0 {
		result.Facets = make(map[string]map[string]int, len(req.Facets))
		for _, field := range req.Facets {
			counts, err := facetCounts(ctx, tx, field, where, args)
			if err != nil {
				return nil, err
			}
			result.Facets[field] = counts
		}
	}

	return result, nil
}

func (r *Reader) validate(req BrowseRequest) error {
	if req.Offset < 0 || req.Count < 0 {
		return fmt.Errorf("index: negative offset or count")
	}
	if req.Query != nil && !r.registry.Has(req.Query.field()) {
		return fmt.Errorf("index: query field %s is not registered", req.Query.field())
	}
	if q, ok := req.Query.(RangeQuery); ok && !r.registry.TypeOf(q.Field).Numeric() {
		return fmt.Errorf("index: range query on non-numeric field %s", q.Field)
	}
	for _, s := range req.Selections {
		if !r.registry.Has(s.Field) {
			return fmt.Errorf("index: selection field %s is not registered", s.Field)
		}
	}
	for _, f := range req.Facets {
		if !r.registry.Has(f) {
			return fmt.Errorf("index: facet field %s is not registered", f)
		}
	}
	return nil
}

// pruneHashSelections drops Hash selection values the bloom filter rules out.
// A selection left with no values matches nothing.
func (r *Reader) pruneHashSelections(req BrowseRequest, hashes *hashFilter) BrowseRequest {
	if hashes == nil {
		return req
	}
	selections := make([]Selection, len(req.Selections))
	for i, s := range req.Selections {
		if s.Field != types.FieldHash {
			selections[i] = s
			continue
		}
		kept := make([]string, 0, len(s.Values))
		for _, v := range s.Values {
			if hashes.mightContain(v) {
				kept = append(kept, v)
			}
		}
		selections[i] = Selection{Field: s.Field, Values: kept}
	}
	req.Selections = selections
	return req
}

func facetCounts(ctx context.Context, q querier, field, where string, args []any) (map[string]int, error) {
	facetArgs := append([]any{field}, args...)
	rows, err := q.QueryContext(ctx,
		"SELECT value, COUNT(*) FROM terms WHERE field = ? AND doc_id IN (SELECT doc_id FROM documents WHERE "+where+") GROUP BY value",
		facetArgs...)
	if err != nil {
		return nil, fmt.Errorf("index: failed to count facet %s: %w", field, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			value string
			n     int
		)
		if err := rows.Scan(&value, &n); err != nil {
			return nil, fmt.Errorf("index: failed to scan facet %s: %w", field, err)
		}
		counts[value] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: error iterating facet %s: %w", field, err)
	}
	return counts, nil
}

// Document loads the stored fields of one document. Fields the registry does
// not know are omitted.
func (r *Reader) Document(ctx context.Context, docID int) (*types.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	db, err := r.handle()
	if err != nil {
		return nil, err
	}

	var compressed []byte
	err = db.QueryRowContext(ctx, "SELECT stored FROM documents WHERE doc_id = ?", docID).Scan(&compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewStoreError(apperrors.CodeDocumentNotFound, fmt.Sprintf("document %d not found", docID), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("index: failed to load document %d: %w", docID, err)
	}

	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, apperrors.NewStoreError(apperrors.CodeCorruptDocument, fmt.Sprintf("document %d", docID), err)
	}
	var pairs [][2]string
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, apperrors.NewStoreError(apperrors.CodeCorruptDocument, fmt.Sprintf("document %d", docID), err)
	}

	rec := &types.Record{DocID: docID, Fields: make([]types.Field, 0, len(pairs))}
	for _, p := range pairs {
		if r.registry.Has(p[0]) {
			rec.Fields = append(rec.Fields, types.Field{Name: p[0], Value: p[1]})
		}
	}
	return rec, nil
}

// NumDocs returns the number of stored documents.
func (r *Reader) NumDocs(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	db, err := r.handle()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("index: failed to count documents: %w", err)
	}
	return n, nil
}
