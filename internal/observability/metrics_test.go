package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordRetrieved("acme_RawData", 3)
	m.RecordInserted("acme_RawData")
	m.RecordInserted("acme_RawData")
	m.RecordSkipped("acme_RawData", "MALFORMED_FACET")
	m.RecordPage()
	m.RecordPage()

	if got := testutil.ToFloat64(m.RecordsRetrieved.WithLabelValues("acme_RawData")); got != 3 {
		t.Errorf("expected 3 retrieved, got %v", got)
	}
	if got := testutil.ToFloat64(m.RowsInserted.WithLabelValues("acme_RawData")); got != 2 {
		t.Errorf("expected 2 inserted, got %v", got)
	}
	if got := testutil.ToFloat64(m.RowsSkipped.WithLabelValues("acme_RawData", "MALFORMED_FACET")); got != 1 {
		t.Errorf("expected 1 skipped, got %v", got)
	}
	if got := testutil.ToFloat64(m.PagesFetched); got != 2 {
		t.Errorf("expected 2 pages, got %v", got)
	}
}

func TestMetrics_ObserveSource(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveSource("a", time.Second, nil)
	m.ObserveSource("a", time.Second, errors.New("boom"))

	if got := testutil.CollectAndCount(m.SourceDuration); got != 2 {
		t.Errorf("expected 2 series, got %d", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRetrieved("a", 1)
	m.RecordInserted("a")
	m.RecordSkipped("a", "x")
	m.RecordPage()
	m.ObserveSource("a", time.Second, nil)
}
