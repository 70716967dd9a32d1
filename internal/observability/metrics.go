// Package observability provides Prometheus metrics for export runs.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the export counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RecordsRetrieved *prometheus.CounterVec
	RowsInserted     *prometheus.CounterVec
	RowsSkipped      *prometheus.CounterVec
	PagesFetched     prometheus.Counter
	SourceDuration   *prometheus.HistogramVec
}

// NewMetrics creates the export metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RecordsRetrieved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackport_records_retrieved_total",
				Help: "Total number of event records read from the index",
			},
			[]string{"source"},
		),
		RowsInserted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackport_rows_inserted_total",
				Help: "Total number of rows accepted by the sink",
			},
			[]string{"source"},
		),
		RowsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackport_rows_skipped_total",
				Help: "Total number of records skipped under the skip error policy",
			},
			[]string{"source", "reason"},
		),
		PagesFetched: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "trackport_pages_fetched_total",
				Help: "Total number of result pages browsed in the index",
			},
		),
		SourceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trackport_source_duration_seconds",
				Help:    "Duration of a full source export in seconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			},
			[]string{"source", "status"},
		),
	}
}

// RecordRetrieved adds n retrieved records for source.
func (m *Metrics) RecordRetrieved(source string, n int) {
	if m == nil {
		return
	}
	m.RecordsRetrieved.WithLabelValues(source).Add(float64(n))
}

// RecordInserted counts one inserted row for source.
func (m *Metrics) RecordInserted(source string) {
	if m == nil {
		return
	}
	m.RowsInserted.WithLabelValues(source).Inc()
}

// RecordSkipped counts one skipped record for source; reason is an error code.
func (m *Metrics) RecordSkipped(source, reason string) {
	if m == nil {
		return
	}
	m.RowsSkipped.WithLabelValues(source, reason).Inc()
}

// RecordPage counts one browsed page.
func (m *Metrics) RecordPage() {
	if m == nil {
		return
	}
	m.PagesFetched.Inc()
}

// ObserveSource records how long a source export took.
func (m *Metrics) ObserveSource(source string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SourceDuration.WithLabelValues(source, status).Observe(d.Seconds())
}
