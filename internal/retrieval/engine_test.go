package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	apperrors "github.com/arkilian/trackport/internal/errors"
	"github.com/arkilian/trackport/internal/index"
	"github.com/arkilian/trackport/internal/schema"
	"github.com/arkilian/trackport/pkg/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIndex matches every document it holds and records each call.
type fakeIndex struct {
	docs      int
	reopenErr error
	browseErr error

	reopens  int
	requests []index.BrowseRequest
	lookups  []int
}

func (f *fakeIndex) Reopen(ctx context.Context) error {
	f.reopens++
	return f.reopenErr
}

func (f *fakeIndex) Browse(ctx context.Context, req index.BrowseRequest) (*index.BrowseResult, error) {
	f.requests = append(f.requests, req)
	if f.browseErr != nil {
		return nil, f.browseErr
	}
	res := &index.BrowseResult{NumHits: f.docs}
	for id := req.Offset + 1; id <= f.docs && id <= req.Offset+req.Count; id++ {
		res.Hits = append(res.Hits, index.Hit{DocID: id})
	}
	return res, nil
}

func (f *fakeIndex) Document(ctx context.Context, docID int) (*types.Record, error) {
	f.lookups = append(f.lookups, docID)
	return &types.Record{DocID: docID, Fields: []types.Field{{Name: "TimeStamp", Value: strconv.Itoa(docID)}}}, nil
}

func newTestEngine(idx Index, pageSize int) *Engine {
	return NewEngine(idx, schema.Default(), Config{PageSize: pageSize, Source: "test", Logger: zerolog.Nop()})
}

func rangeCriteria(start, end int64) FilterCriteria {
	return FilterCriteria{Range: &TimeRange{Start: start, End: end}}
}

func TestRetrieve_PageBoundaries(t *testing.T) {
	const pageSize = 4

	tests := []struct {
		name    string
		docs    int
		browses int
	}{
		{"empty", 0, 1},
		{"single", 1, 2},
		{"exactly one page", pageSize, 2},
		{"one past a page", pageSize + 1, 3},
		{"several pages", 3*pageSize + 2, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &fakeIndex{docs: tt.docs}
			records, err := newTestEngine(idx, pageSize).Retrieve(context.Background(), rangeCriteria(0, 100))
			require.NoError(t, err)

			assert.Len(t, records, tt.docs)
			assert.Len(t, idx.requests, tt.browses)
			assert.Equal(t, 0, idx.requests[0].Count, "first browse is a zero-count probe")
			for i, req := range idx.requests[1:] {
				assert.Equal(t, i*pageSize, req.Offset)
				assert.Equal(t, pageSize, req.Count)
			}
			for i, rec := range records {
				assert.Equal(t, i+1, rec.DocID)
			}
		})
	}
}

func TestRetrieve_DefaultPageSize(t *testing.T) {
	idx := &fakeIndex{docs: DefaultPageSize + 1}
	e := newTestEngine(idx, 0)
	assert.Equal(t, DefaultPageSize, e.PageSize())

	records, err := e.Retrieve(context.Background(), rangeCriteria(0, 1))
	require.NoError(t, err)
	assert.Len(t, records, DefaultPageSize+1)
	assert.Len(t, idx.requests, 3)
}

func TestRetrieve_BuildsFilter(t *testing.T) {
	idx := &fakeIndex{}
	e := newTestEngine(idx, 10)

	_, err := e.Retrieve(context.Background(), FilterCriteria{
		Range:    &TimeRange{Start: 100, End: 200},
		Hashes:   []string{"a", "b"},
		Category: types.CategorySearch,
	})
	require.NoError(t, err)

	probe := idx.requests[0]
	assert.Equal(t, index.RangeQuery{Field: "TimeStamp", Min: 100, Max: 200}, probe.Query)
	assert.Equal(t, []index.Selection{
		{Field: "EventType", Values: []string{"Search"}},
		{Field: "Hash", Values: []string{"a", "b"}},
	}, probe.Selections)
	assert.Equal(t, []string{"SessionID", "Hash"}, probe.Facets)
}

func TestRetrieve_NoHashSelectionWhenEmpty(t *testing.T) {
	idx := &fakeIndex{}
	_, err := newTestEngine(idx, 10).Retrieve(context.Background(), FilterCriteria{SessionID: "s1"})
	require.NoError(t, err)

	probe := idx.requests[0]
	assert.Equal(t, index.TermQuery{Field: "SessionID", Value: "s1"}, probe.Query)
	require.Len(t, probe.Selections, 1)
	assert.Equal(t, "EventType", probe.Selections[0].Field)
	assert.NotContains(t, probe.Selections[0].Values, "Reindex")
}

func TestRetrieve_ReopenOnlyForDateRange(t *testing.T) {
	idx := &fakeIndex{docs: 2}
	e := newTestEngine(idx, 10)
	ctx := context.Background()

	_, err := e.BySessionID(ctx, "s1", types.CategoryAllEvents)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.reopens)

	_, err = e.ByDateRange(ctx, time.Unix(0, 0), time.Unix(10, 0), nil, types.CategoryAllEvents)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.reopens)
}

func TestRetrieve_ReopenFailureIsStoreUnavailable(t *testing.T) {
	idx := &fakeIndex{docs: 5, reopenErr: fmt.Errorf("disk gone")}
	records, err := newTestEngine(idx, 10).Retrieve(context.Background(), rangeCriteria(0, 10))

	assert.Nil(t, records)
	assert.True(t, errors.Is(err, apperrors.ErrStoreUnavailable))
	assert.Empty(t, idx.requests)
}

func TestRetrieve_BrowseFailurePropagates(t *testing.T) {
	idx := &fakeIndex{browseErr: fmt.Errorf("boom")}
	records, err := newTestEngine(idx, 10).Retrieve(context.Background(), FilterCriteria{SessionID: "s"})
	assert.Nil(t, records)
	assert.ErrorContains(t, err, "boom")
}

func TestRetrieve_InvalidCriteria(t *testing.T) {
	e := newTestEngine(&fakeIndex{}, 10)
	ctx := context.Background()

	tests := []struct {
		name string
		c    FilterCriteria
	}{
		{"neither", FilterCriteria{}},
		{"both", FilterCriteria{Range: &TimeRange{Start: 0, End: 1}, SessionID: "s"}},
		{"inverted range", FilterCriteria{Range: &TimeRange{Start: 2, End: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Retrieve(ctx, tt.c)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidCriteria), "got %v", err)
		})
	}
}

func TestRetrieve_UnregisteredFilterField(t *testing.T) {
	reg := schema.MustNewRegistry(schema.Entry{Name: "TimeStamp", Type: types.FieldString})
	e := NewEngine(&fakeIndex{}, reg, Config{Logger: zerolog.Nop()})

	_, err := e.Retrieve(context.Background(), rangeCriteria(0, 1))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCriteria))
}

func TestWalk_StopsOnCallbackError(t *testing.T) {
	idx := &fakeIndex{docs: 10}
	stop := errors.New("stop")

	var seen int
	err := newTestEngine(idx, 3).Walk(context.Background(), rangeCriteria(0, 1), func(*types.Record) error {
		seen++
		if seen == 4 {
			return stop
		}
		return nil
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 4, seen)
	// The second page was resolved before the callback saw any of it.
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, idx.lookups)
}

func TestWalkPages_ReportsTotal(t *testing.T) {
	idx := &fakeIndex{docs: 7}
	var pages []Page
	err := newTestEngine(idx, 5).WalkPages(context.Background(), rangeCriteria(0, 1), func(p Page) error {
		pages = append(pages, p)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 7, pages[0].Total)
	assert.Equal(t, 5, pages[1].Offset)
	assert.Len(t, pages[1].Records, 2)
}

func TestWalk_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestEngine(&fakeIndex{docs: 3}, 1).Walk(ctx, rangeCriteria(0, 1), func(*types.Record) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProperty_RetrieveVisitsEveryHitOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("records come back once each, in order, in 1+ceil(N/P) browses", prop.ForAll(
		func(n, pageSize int) bool {
			idx := &fakeIndex{docs: n}
			records, err := newTestEngine(idx, pageSize).Retrieve(context.Background(), rangeCriteria(0, 1))
			if err != nil || len(records) != n {
				return false
			}
			for i, rec := range records {
				if rec.DocID != i+1 {
					return false
				}
			}
			return len(idx.requests) == 1+(n+pageSize-1)/pageSize
		},
		gen.IntRange(0, 500),
		gen.IntRange(1, 64),
	))

	properties.TestingRun(t)
}
