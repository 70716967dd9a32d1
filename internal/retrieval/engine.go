// Package retrieval walks a faceted event index page by page and resolves the
// stored fields of every matching event.
package retrieval

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/arkilian/trackport/internal/errors"
	"github.com/arkilian/trackport/internal/index"
	"github.com/arkilian/trackport/internal/observability"
	"github.com/arkilian/trackport/internal/schema"
	"github.com/arkilian/trackport/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultPageSize is the number of hits requested per browse.
const DefaultPageSize = 10000

// Index is the store the engine browses. *index.Reader implements it.
type Index interface {
	Reopen(ctx context.Context) error
	Browse(ctx context.Context, req index.BrowseRequest) (*index.BrowseResult, error)
	Document(ctx context.Context, docID int) (*types.Record, error)
}

// Config holds engine settings.
type Config struct {
	// PageSize caps the hits fetched per browse. Zero means DefaultPageSize.
	PageSize int

	// Source labels log lines and metrics.
	Source string

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Page is one resolved page of a retrieval.
type Page struct {
	// Total is the hit count of the whole retrieval, as reported by the probe.
	Total   int
	Offset  int
	Records []*types.Record
}

// Engine runs retrievals against one index. It is not safe for concurrent use.
type Engine struct {
	idx      Index
	registry *schema.Registry
	pageSize int
	source   string
	log      zerolog.Logger
	metrics  *observability.Metrics
}

// NewEngine creates an engine over idx.
func NewEngine(idx Index, reg *schema.Registry, cfg Config) *Engine {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Engine{
		idx:      idx,
		registry: reg,
		pageSize: pageSize,
		source:   cfg.Source,
		log:      cfg.Logger.With().Str("component", "retrieval").Str("source", cfg.Source).Logger(),
		metrics:  cfg.Metrics,
	}
}

// PageSize returns the effective page size.
func (e *Engine) PageSize() int {
	return e.pageSize
}

// ByDateRange retrieves events with start <= TimeStamp <= end. The index is
// reopened first so recently committed events are included.
func (e *Engine) ByDateRange(ctx context.Context, start, end time.Time, hashes []string, cat types.Category) ([]*types.Record, error) {
	r := NewTimeRange(start, end)
	return e.Retrieve(ctx, FilterCriteria{Range: &r, Hashes: hashes, Category: cat})
}

// BySessionID retrieves the events of one session using the open handle.
func (e *Engine) BySessionID(ctx context.Context, sessionID string, cat types.Category) ([]*types.Record, error) {
	return e.Retrieve(ctx, FilterCriteria{SessionID: sessionID, Category: cat})
}

// Retrieve returns every record matching c, in index order.
func (e *Engine) Retrieve(ctx context.Context, c FilterCriteria) ([]*types.Record, error) {
	var records []*types.Record
	err := e.WalkPages(ctx, c, func(p Page) error {
		if records == nil {
			records = make([]*types.Record, 0, p.Total)
		}
		records = append(records, p.Records...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Walk calls fn for every record matching c. Records are handed over one page
// at a time, after the whole page has been resolved.
func (e *Engine) Walk(ctx context.Context, c FilterCriteria, fn func(*types.Record) error) error {
	return e.WalkPages(ctx, c, func(p Page) error {
		for _, rec := range p.Records {
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// WalkPages runs the browse protocol: a zero-count probe for the hit total,
// then pages of PageSize at offsets 0, P, 2P... while the offset is below the
// total. fn is called once per non-empty page. An error from fn stops the walk
// and is returned unchanged.
func (e *Engine) WalkPages(ctx context.Context, c FilterCriteria, fn func(Page) error) error {
	if err := c.Validate(); err != nil {
		return err
	}
	req, err := e.request(c)
	if err != nil {
		return err
	}

	if c.Range != nil {
		if err := e.idx.Reopen(ctx); err != nil {
			return storeUnavailable("failed to reopen index", err)
		}
	}

	probe := req
	probe.Count = 0
	probe.Facets = e.probeFacets()
	res, err := e.idx.Browse(ctx, probe)
	if err != nil {
		return fmt.Errorf("retrieval: failed to probe index: %w", err)
	}
	total := res.NumHits
	e.log.Debug().
		Int("hits", total).
		Int("sessions", len(res.Facets[types.FieldSessionID])).
		Int("hashes", len(res.Facets[types.FieldHash])).
		Msg("Probed index")

	for offset := 0; offset < total; offset += e.pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		page := req
		page.Offset = offset
		page.Count = e.pageSize
		res, err := e.idx.Browse(ctx, page)
		if err != nil {
			return fmt.Errorf("retrieval: failed to browse page at offset %d: %w", offset, err)
		}
		e.metrics.RecordPage()

		records := make([]*types.Record, 0, len(res.Hits))
		for _, hit := range res.Hits {
			rec, err := e.idx.Document(ctx, hit.DocID)
			if err != nil {
				return fmt.Errorf("retrieval: failed to resolve document %d: %w", hit.DocID, err)
			}
			records = append(records, rec)
		}
		e.metrics.RecordRetrieved(e.source, len(records))
		e.log.Debug().Int("offset", offset).Int("records", len(records)).Msg("Fetched page")

		if len(records) == 0 {
			// The index shrank under us; nothing further to read.
			break
		}
		if err := fn(Page{Total: total, Offset: offset, Records: records}); err != nil {
			return err
		}
	}
	return nil
}

// request builds the browse predicate and selections for c.
func (e *Engine) request(c FilterCriteria) (index.BrowseRequest, error) {
	var req index.BrowseRequest

	if c.Range != nil {
		if !e.registry.TypeOf(types.FieldTimeStamp).Numeric() {
			return req, apperrors.NewValidationError(apperrors.CodeInvalidCriteria,
				fmt.Sprintf("field %s is not numeric", types.FieldTimeStamp))
		}
		req.Query = index.RangeQuery{Field: types.FieldTimeStamp, Min: c.Range.Start, Max: c.Range.End}
	} else {
		if !e.registry.Has(types.FieldSessionID) {
			return req, apperrors.NewValidationError(apperrors.CodeInvalidCriteria,
				fmt.Sprintf("field %s is not registered", types.FieldSessionID))
		}
		req.Query = index.TermQuery{Field: types.FieldSessionID, Value: c.SessionID}
	}

	if !e.registry.Has(types.FieldEventType) {
		return req, apperrors.NewValidationError(apperrors.CodeInvalidCriteria,
			fmt.Sprintf("field %s is not registered", types.FieldEventType))
	}
	req.Selections = append(req.Selections, index.Selection{
		Field:  types.FieldEventType,
		Values: c.Category.EventTypeNames(),
	})

	if len(c.Hashes) > 0 {
		if !e.registry.Has(types.FieldHash) {
			return req, apperrors.NewValidationError(apperrors.CodeInvalidCriteria,
				fmt.Sprintf("field %s is not registered", types.FieldHash))
		}
		req.Selections = append(req.Selections, index.Selection{
			Field:  types.FieldHash,
			Values: append([]string(nil), c.Hashes...),
		})
	}
	return req, nil
}

func (e *Engine) probeFacets() []string {
	var facets []string
	for _, f := range []string{types.FieldSessionID, types.FieldHash} {
		if e.registry.Has(f) {
			facets = append(facets, f)
		}
	}
	return facets
}

func storeUnavailable(msg string, err error) error {
	if apperrors.GetCategory(err) == apperrors.ErrCategoryStore {
		return err
	}
	return apperrors.NewStoreError(apperrors.CodeStoreUnavailable, msg, err)
}
