// Package app wires configuration, storage, the index, the sink and the
// loader into one export run over every discovered source.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/arkilian/trackport/internal/config"
	apperrors "github.com/arkilian/trackport/internal/errors"
	"github.com/arkilian/trackport/internal/index"
	"github.com/arkilian/trackport/internal/loader"
	"github.com/arkilian/trackport/internal/observability"
	"github.com/arkilian/trackport/internal/projector"
	"github.com/arkilian/trackport/internal/retrieval"
	"github.com/arkilian/trackport/internal/schema"
	"github.com/arkilian/trackport/internal/sink"
	"github.com/arkilian/trackport/internal/storage"
	"github.com/arkilian/trackport/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Options carries run inputs that do not belong in the config file.
type Options struct {
	// SessionID exports a single session instead of the full span.
	SessionID string

	// From and To narrow the exported time range. Either may be zero.
	From time.Time
	To   time.Time

	// Storage replaces the store built from the configuration.
	Storage storage.ObjectStorage

	// Stdout receives dry-run statements. Defaults to os.Stdout.
	Stdout io.Writer

	// Registry is the field table. Defaults to schema.Default().
	Registry *schema.Registry
}

// App runs exports.
type App struct {
	cfg  *config.Config
	opts Options
	log  zerolog.Logger

	// base is the caller's logger; components add their own tag to it.
	base zerolog.Logger

	registry  *schema.Registry
	projector *projector.Projector
	criteria  retrieval.FilterCriteria
	policy    loader.ErrorPolicy

	promRegistry *prometheus.Registry
	metrics      *observability.Metrics

	storage       storage.ObjectStorage
	sink          sink.Sink
	metricsServer *http.Server
}

// New validates cfg and prepares an App.
func New(cfg *config.Config, log zerolog.Logger, opts Options) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Registry == nil {
		opts.Registry = schema.Default()
	}

	loc, _ := cfg.TimeLocation()
	policy, _ := loader.ParseErrorPolicy(cfg.Loader.ErrorPolicy)
	criteria, err := buildCriteria(cfg, opts)
	if err != nil {
		return nil, err
	}

	promRegistry := prometheus.NewRegistry()
	return &App{
		cfg:          cfg,
		opts:         opts,
		log:          log.With().Str("component", "app").Logger(),
		base:         log,
		registry:     opts.Registry,
		projector:    projector.New(opts.Registry, schema.DefaultNumericColumns(), projector.WithLocation(loc)),
		criteria:     criteria,
		policy:       policy,
		promRegistry: promRegistry,
		metrics:      observability.NewMetrics(promRegistry),
	}, nil
}

// buildCriteria turns the category and the optional session or time bounds
// into the criteria every source is exported with.
func buildCriteria(cfg *config.Config, opts Options) (retrieval.FilterCriteria, error) {
	category, _ := types.ParseCategory(cfg.Retrieval.Category)

	if opts.SessionID != "" {
		if !opts.From.IsZero() || !opts.To.IsZero() {
			return retrieval.FilterCriteria{}, apperrors.NewValidationError(apperrors.CodeInvalidCriteria,
				"a session export cannot also be limited by time")
		}
		return retrieval.FilterCriteria{SessionID: opts.SessionID, Category: category}, nil
	}

	c := loader.FullSpan()
	c.Category = category
	if !opts.From.IsZero() {
		c.Range.Start = opts.From.Unix()
	}
	if !opts.To.IsZero() {
		c.Range.End = opts.To.Unix()
	}
	if err := c.Validate(); err != nil {
		return retrieval.FilterCriteria{}, err
	}
	return c, nil
}

// Criteria returns the criteria each source is exported with.
func (a *App) Criteria() retrieval.FilterCriteria {
	return a.criteria
}

// Start opens storage and the sink and starts the metrics endpoint.
func (a *App) Start(ctx context.Context) error {
	if err := a.initStorage(ctx); err != nil {
		return err
	}
	if err := a.initSink(ctx); err != nil {
		return err
	}
	if a.cfg.Metrics.Addr != "" {
		a.startMetricsServer()
	}
	return nil
}

func (a *App) initStorage(ctx context.Context) error {
	if a.opts.Storage != nil {
		a.storage = a.opts.Storage
		return nil
	}

	var err error
	switch a.cfg.Storage.Type {
	case "local":
		a.storage, err = storage.NewLocalStorage(a.cfg.Storage.Path)
	case "s3":
		a.storage, err = storage.NewS3Storage(ctx, a.cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       a.cfg.Storage.S3.Region,
			Endpoint:     a.cfg.Storage.S3.Endpoint,
			UsePathStyle: a.cfg.Storage.S3.UsePathStyle,
			Prefix:       a.cfg.Storage.S3.Prefix,
		})
	default:
		return fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
	if err != nil {
		return apperrors.NewStoreError(apperrors.CodeStoreUnavailable, "failed to initialize storage", err)
	}

	a.log.Info().Str("type", a.cfg.Storage.Type).Msg("Storage initialized")
	return nil
}

func (a *App) initSink(ctx context.Context) error {
	if a.cfg.Sink.DryRun {
		a.sink = sink.NewWriterSink(a.opts.Stdout)
		a.log.Info().Msg("Dry run: statements go to stdout")
		return nil
	}

	s, err := sink.Open(ctx, a.cfg.Sink.DSN, a.cfg.Sink.Table)
	if err != nil {
		return err
	}
	if a.cfg.Sink.EnsureTable {
		if err := s.EnsureTable(ctx, a.registry, a.cfg.Sink.MaxFacets); err != nil {
			s.Close()
			return err
		}
	}
	a.sink = s
	a.log.Info().Str("driver", s.Driver()).Str("table", s.Table()).Msg("Sink connected")
	return nil
}

func (a *App) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.promRegistry, promhttp.HandlerOpts{}))

	a.metricsServer = &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Msg("Metrics server error")
		}
	}()
	a.log.Info().Str("addr", a.cfg.Metrics.Addr).Msg("Serving metrics")
}

// Run discovers the sources and exports them one after another. With
// ContinueOnSourceError unset, the first failing source ends the run.
func (a *App) Run(ctx context.Context) ([]*loader.Report, error) {
	if a.storage == nil || a.sink == nil {
		return nil, fmt.Errorf("app is not started")
	}

	sources, err := loader.Discover(ctx, a.storage, a.cfg.SourceMarker)
	if err != nil {
		return nil, err
	}
	a.log.Info().Int("sources", len(sources)).Str("marker", a.cfg.SourceMarker).Msg("Discovered sources")

	var (
		reports []*loader.Report
		errs    []error
	)
	for _, src := range sources {
		report, err := a.RunSource(ctx, src)
		if report != nil {
			reports = append(reports, report)
		}
		if err == nil {
			continue
		}

		err = fmt.Errorf("source %s: %w", src.Name, err)
		if !a.cfg.Loader.ContinueOnSourceError || ctx.Err() != nil {
			return reports, err
		}
		a.log.Error().Err(err).Msg("Source failed, continuing")
		errs = append(errs, err)
	}
	return reports, errors.Join(errs...)
}

// RunSource exports one source.
func (a *App) RunSource(ctx context.Context, src loader.Source) (*loader.Report, error) {
	dir, err := loader.Materialize(ctx, a.storage, src, a.cfg.WorkDir, a.cfg.Loader.DownloadConcurrency)
	if err != nil {
		return nil, err
	}

	reader, err := index.Open(ctx, dir, a.registry)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	engine := retrieval.NewEngine(reader, a.registry, retrieval.Config{
		PageSize: a.cfg.Retrieval.PageSize,
		Source:   src.Name,
		Logger:   a.base,
		Metrics:  a.metrics,
	})

	criteria := a.criteria
	l := loader.New(engine, a.projector, a.sink, loader.Config{
		Source:    src.Name,
		Table:     a.cfg.Sink.Table,
		Policy:    a.policy,
		Criteria:  &criteria,
		Streaming: a.cfg.Loader.Streaming,
		Logger:    a.base,
		Metrics:   a.metrics,
	})
	return l.Run(ctx)
}

// Stop closes the sink and the metrics endpoint.
func (a *App) Stop(ctx context.Context) error {
	var errs []error
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink: %w", err))
		}
		a.sink = nil
	}
	if a.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
		a.metricsServer = nil
	}
	return errors.Join(errs...)
}

// Gatherer exposes the metrics registry.
func (a *App) Gatherer() prometheus.Gatherer {
	return a.promRegistry
}
