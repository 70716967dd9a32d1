// Package loader exports every event of a source index into the relational
// sink, one INSERT per event.
package loader

import (
	"context"
	"fmt"
	"math"
	"time"

	apperrors "github.com/arkilian/trackport/internal/errors"
	"github.com/arkilian/trackport/internal/observability"
	"github.com/arkilian/trackport/internal/projector"
	"github.com/arkilian/trackport/internal/retrieval"
	"github.com/arkilian/trackport/internal/sink"
	"github.com/arkilian/trackport/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Retriever is the part of the retrieval engine the loader needs.
type Retriever interface {
	Retrieve(ctx context.Context, c retrieval.FilterCriteria) ([]*types.Record, error)
	WalkPages(ctx context.Context, c retrieval.FilterCriteria, fn func(retrieval.Page) error) error
}

// FullSpan covers every representable event: 1970-01-01 00:00:00 UTC up to
// 2^31-1 seconds, all non-reindex event types.
func FullSpan() retrieval.FilterCriteria {
	return retrieval.FilterCriteria{
		Range:    &retrieval.TimeRange{Start: 0, End: math.MaxInt32},
		Category: types.CategoryAllEvents,
	}
}

// Config holds loader settings.
type Config struct {
	// Source labels the run in the report, logs and metrics.
	Source string

	// Table is the target table. Empty means sink.DefaultTable.
	Table string

	Policy ErrorPolicy

	// Criteria narrows the export. Nil means FullSpan.
	Criteria *retrieval.FilterCriteria

	// Streaming inserts page by page instead of retrieving everything first.
	// Projection then starts before retrieval has finished, so a failed page
	// fetch leaves the earlier pages in the sink. The default mode retrieves
	// the whole result set in a single call before the first insert.
	Streaming bool

	// OnProgress, if set, is called with each 5% step.
	OnProgress func(source string, percent int)

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Report summarizes one run.
type Report struct {
	RunID    string
	Source   string
	Total    int
	Inserted int
	Skipped  int
	Duration time.Duration
}

// Loader runs exports. It processes records sequentially.
type Loader struct {
	retriever Retriever
	projector *projector.Projector
	sink      sink.Sink
	cfg       Config
	log       zerolog.Logger
}

// New creates a loader.
func New(r Retriever, p *projector.Projector, s sink.Sink, cfg Config) *Loader {
	if cfg.Table == "" {
		cfg.Table = sink.DefaultTable
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyAbort
	}
	return &Loader{
		retriever: r,
		projector: p,
		sink:      s,
		cfg:       cfg,
		log:       cfg.Logger.With().Str("component", "loader").Str("source", cfg.Source).Logger(),
	}
}

// Run exports the configured criteria. The report is returned even when the
// run fails, covering the records handled so far.
func (l *Loader) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString(), Source: l.cfg.Source}
	log := l.log.With().Str("run_id", report.RunID).Logger()

	criteria := FullSpan()
	if l.cfg.Criteria != nil {
		criteria = *l.cfg.Criteria
	}

	log.Info().Str("policy", string(l.cfg.Policy)).Msg("Starting export")

	var err error
	if l.cfg.Streaming {
		err = l.runStreaming(ctx, log, criteria, report)
	} else {
		err = l.runBuffered(ctx, log, criteria, report)
	}

	report.Duration = time.Since(start)
	l.cfg.Metrics.ObserveSource(l.cfg.Source, report.Duration, err)
	if err != nil {
		log.Error().Err(err).
			Int("inserted", report.Inserted).
			Int("skipped", report.Skipped).
			Msg("Export failed")
		return report, err
	}

	log.Info().
		Int("total", report.Total).
		Int("inserted", report.Inserted).
		Int("skipped", report.Skipped).
		Dur("duration", report.Duration).
		Msg("Export finished")
	return report, nil
}

// runBuffered retrieves the whole result set in one call, then inserts.
func (l *Loader) runBuffered(ctx context.Context, log zerolog.Logger, c retrieval.FilterCriteria, report *Report) error {
	records, err := l.retriever.Retrieve(ctx, c)
	if err != nil {
		return err
	}
	report.Total = len(records)
	log.Info().Int("total", report.Total).Msg("Copy in progress")

	progress := l.newProgress(log, report.Total)
	progress.Start()
	for _, rec := range records {
		if err := l.load(ctx, log, rec, report); err != nil {
			return err
		}
		progress.Advance(1)
	}
	progress.Finish()
	return nil
}

func (l *Loader) runStreaming(ctx context.Context, log zerolog.Logger, c retrieval.FilterCriteria, report *Report) error {
	var progress *Progress
	err := l.retriever.WalkPages(ctx, c, func(p retrieval.Page) error {
		if progress == nil {
			report.Total = p.Total
			log.Info().Int("total", report.Total).Msg("Copy in progress")
			progress = l.newProgress(log, p.Total)
			progress.Start()
		}
		for _, rec := range p.Records {
			if err := l.load(ctx, log, rec, report); err != nil {
				return err
			}
			progress.Advance(1)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if progress == nil {
		progress = l.newProgress(log, 0)
	}
	progress.Finish()
	return nil
}

// load projects and inserts one record, applying the error policy.
func (l *Loader) load(ctx context.Context, log zerolog.Logger, rec *types.Record, report *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	row, err := l.projector.Project(rec)
	if err == nil {
		err = l.sink.Insert(ctx, sink.InsertStatement(l.cfg.Table, row))
	}
	if err == nil {
		report.Inserted++
		l.cfg.Metrics.RecordInserted(l.cfg.Source)
		return nil
	}

	if l.cfg.Policy != PolicySkip || !apperrors.IsRecordLevel(err) {
		return fmt.Errorf("loader: document %d: %w", rec.DocID, err)
	}
	report.Skipped++
	l.cfg.Metrics.RecordSkipped(l.cfg.Source, apperrors.GetCode(err))
	log.Warn().Err(err).Int("doc_id", rec.DocID).Msg("Skipping record")
	return nil
}

func (l *Loader) newProgress(log zerolog.Logger, total int) *Progress {
	return NewProgress(total, func(percent int) {
		log.Info().Int("percent", percent).Msg("Progress")
		if l.cfg.OnProgress != nil {
			l.cfg.OnProgress(l.cfg.Source, percent)
		}
	})
}
