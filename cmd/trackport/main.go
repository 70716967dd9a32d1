// Package main implements the trackport binary. It exports the tracked
// events of every source index under the storage root into a relational
// table, one INSERT per event.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/arkilian/trackport/internal/app"
	"github.com/arkilian/trackport/internal/config"
	"github.com/arkilian/trackport/internal/logger"
	"github.com/rs/zerolog"
)

var (
	version = "dev"
	commit  = "unknown"
)

// cliFlags holds the command line overrides. Empty values leave the
// configuration alone.
type cliFlags struct {
	configFile  string
	dataDir     string
	storageType string
	dsn         string
	table       string
	category    string
	policy      string
	logLevel    string
	metricsAddr string
	pageSize    int
	dryRun      bool
	ensureTable bool
	streaming   bool
	cont        bool
	pretty      bool
}

func main() {
	var (
		f           cliFlags
		sessionID   string
		from        string
		to          string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&f.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&f.dataDir, "data-dir", "", "Base directory for sources and work files")
	flag.StringVar(&f.storageType, "storage", "", "Storage type: local, s3")
	flag.StringVar(&f.dsn, "dsn", "", "Sink DSN: postgres://..., mysql://..., sqlite3://... or a file path")
	flag.StringVar(&f.table, "table", "", "Target table (default trackedevents)")
	flag.StringVar(&f.category, "category", "", "Event category: all, search, pagetracking, reindex")
	flag.StringVar(&f.policy, "policy", "", "Record error policy: abort, skip")
	flag.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flag.IntVar(&f.pageSize, "page-size", 0, "Documents per retrieval page")
	flag.BoolVar(&f.dryRun, "dry-run", false, "Print statements instead of executing them")
	flag.BoolVar(&f.ensureTable, "ensure-table", false, "Create the target table if it does not exist")
	flag.BoolVar(&f.streaming, "streaming", false, "Insert page by page instead of after a full retrieval")
	flag.BoolVar(&f.cont, "continue", false, "Keep going when a source fails")
	flag.BoolVar(&f.pretty, "pretty", false, "Human readable log output")
	flag.StringVar(&sessionID, "session", "", "Export a single session")
	flag.StringVar(&from, "from", "", "Start of the time range (RFC 3339, YYYY-MM-DD or unix seconds)")
	flag.StringVar(&to, "to", "", "End of the time range, inclusive (RFC 3339, YYYY-MM-DD for the whole day, or unix seconds)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "trackport - export tracked event indexes into a relational table\n\n")
		fmt.Fprintf(os.Stderr, "Usage: trackport [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  trackport --data-dir /data/tracking --dsn postgres://etl@db/analytics\n")
		fmt.Fprintf(os.Stderr, "  trackport --config /etc/trackport/config.yaml --category search\n")
		fmt.Fprintf(os.Stderr, "  trackport --data-dir /data/tracking --dry-run --session 4f1c\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  TRACKPORT_DATA_DIR                 Base directory for derived paths\n")
		fmt.Fprintf(os.Stderr, "  TRACKPORT_SOURCE_MARKER            Substring selecting source directories\n")
		fmt.Fprintf(os.Stderr, "  TRACKPORT_LOCATION                 Time zone for datetime columns\n")
		fmt.Fprintf(os.Stderr, "  TRACKPORT_STORAGE_TYPE             Storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  TRACKPORT_STORAGE_S3_BUCKET        S3 bucket holding the sources\n")
		fmt.Fprintf(os.Stderr, "  TRACKPORT_SINK_DSN                 Sink DSN\n")
		fmt.Fprintf(os.Stderr, "  TRACKPORT_SINK_TABLE               Target table\n")
		fmt.Fprintf(os.Stderr, "  TRACKPORT_RETRIEVAL_CATEGORY       Event category\n")
		fmt.Fprintf(os.Stderr, "  TRACKPORT_LOADER_ERROR_POLICY      Record error policy (abort, skip)\n")
		fmt.Fprintf(os.Stderr, "  TRACKPORT_LOG_LEVEL                Log level\n")
		fmt.Fprintf(os.Stderr, "  TRACKPORT_METRICS_ADDR             Metrics listen address\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("trackport version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	opts := app.Options{SessionID: sessionID}
	if opts.From, err = parseTime(from, false); err != nil {
		log.Fatal().Err(err).Msg("Invalid --from")
	}
	if opts.To, err = parseTime(to, true); err != nil {
		log.Fatal().Err(err).Msg("Invalid --to")
	}

	printSummary(log, cfg)

	application, err := app.New(cfg, log, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := application.Start(ctx); err != nil {
		application.Stop(context.Background())
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	reports, runErr := application.Run(ctx)
	if err := application.Stop(context.Background()); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}

	var inserted, skipped int
	for _, r := range reports {
		inserted += r.Inserted
		skipped += r.Skipped
	}
	log.Info().
		Int("sources", len(reports)).
		Int("inserted", inserted).
		Int("skipped", skipped).
		Msg("Run finished")

	if runErr != nil {
		log.Error().Err(runErr).Msg("Export failed")
		os.Exit(1)
	}
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(f cliFlags) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if f.configFile != "" {
		cfg, err = config.LoadFromFile(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	// Command line flags have the highest priority.
	if f.dataDir != "" {
		cfg.DataDir = f.dataDir
	}
	if f.storageType != "" {
		cfg.Storage.Type = f.storageType
	}
	if f.dsn != "" {
		cfg.Sink.DSN = f.dsn
	}
	if f.table != "" {
		cfg.Sink.Table = f.table
	}
	if f.category != "" {
		cfg.Retrieval.Category = f.category
	}
	if f.policy != "" {
		cfg.Loader.ErrorPolicy = f.policy
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.metricsAddr != "" {
		cfg.Metrics.Addr = f.metricsAddr
	}
	if f.pageSize > 0 {
		cfg.Retrieval.PageSize = f.pageSize
	}
	if f.dryRun {
		cfg.Sink.DryRun = true
	}
	if f.ensureTable {
		cfg.Sink.EnsureTable = true
	}
	if f.streaming {
		cfg.Loader.Streaming = true
	}
	if f.cont {
		cfg.Loader.ContinueOnSourceError = true
	}
	if f.pretty {
		cfg.Log.Pretty = true
	}

	return cfg, nil
}

// parseTime accepts RFC 3339, a bare date, or unix seconds. Empty input
// yields the zero time. With endOfDay set, a bare date means its last second,
// since range ends are inclusive.
func parseTime(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time %q", s)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Second)
	}
	return t, nil
}

func printSummary(log zerolog.Logger, cfg *config.Config) {
	sinkTarget := "stdout (dry run)"
	if !cfg.Sink.DryRun {
		sinkTarget = cfg.Sink.Table
	}
	log.Info().
		Str("version", version).
		Str("data_dir", cfg.DataDir).
		Str("storage", cfg.Storage.Type).
		Str("marker", cfg.SourceMarker).
		Str("sink", sinkTarget).
		Str("category", cfg.Retrieval.Category).
		Str("policy", cfg.Loader.ErrorPolicy).
		Msg("Starting trackport")
}
