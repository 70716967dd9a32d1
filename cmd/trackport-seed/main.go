// Package main implements trackport-seed, which builds a source index from
// newline-delimited JSON events and places it in the configured storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/arkilian/trackport/internal/config"
	"github.com/arkilian/trackport/internal/index"
	"github.com/arkilian/trackport/internal/logger"
	"github.com/arkilian/trackport/internal/schema"
	"github.com/arkilian/trackport/internal/seed"
	"github.com/arkilian/trackport/internal/storage"
)

func main() {
	var (
		configFile  string
		dataDir     string
		storageType string
		input       string
		source      string
		commitEvery int
		replace     bool
		logLevel    string
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for sources and work files")
	flag.StringVar(&storageType, "storage", "", "Storage type: local, s3")
	flag.StringVar(&input, "in", "-", "NDJSON input file, - for stdin")
	flag.StringVar(&source, "source", "", "Source directory name, e.g. shopRawData")
	flag.IntVar(&commitEvery, "commit-every", seed.DefaultCommitEvery, "Events per index transaction")
	flag.BoolVar(&replace, "replace", false, "Overwrite an existing index for the source")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "trackport-seed - build a source index from NDJSON events\n\n")
		fmt.Fprintf(os.Stderr, "Usage: trackport-seed --source NAME [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  trackport-seed --data-dir /data/tracking --source shopRawData --in events.ndjson\n")
	}
	flag.Parse()

	if source == "" || strings.ContainsAny(source, `/\`) {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if storageType != "" {
		cfg.Storage.Type = storageType
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	cfg.Resolve()

	log := logger.Component(logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}), "seed")
	if !strings.Contains(source, cfg.SourceMarker) {
		log.Warn().Str("source", source).Str("marker", cfg.SourceMarker).
			Msg("Source name does not contain the marker and will not be discovered")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatal().Err(err).Msg("Failed to create directories")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	var in io.Reader = os.Stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open input")
		}
		defer f.Close()
		in = f
	}

	buildDir, err := os.MkdirTemp(cfg.WorkDir, "seed-")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create build directory")
	}
	defer os.RemoveAll(buildDir)

	w, err := index.Create(ctx, buildDir, schema.Default())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create index")
	}
	n, err := seed.Load(ctx, in, w, commitEvery)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		log.Error().Err(err).Int("added", n).Msg("Seeding failed")
		os.RemoveAll(buildDir)
		os.Exit(1)
	}

	objectPath, err := seed.Publish(ctx, store, buildDir, source, replace)
	if err != nil {
		log.Error().Err(err).Str("object", objectPath).Msg("Upload failed")
		os.RemoveAll(buildDir)
		os.Exit(1)
	}

	log.Info().Int("events", n).Str("object", objectPath).Str("storage", cfg.Storage.Type).Msg("Source seeded")
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, error) {
	switch cfg.Storage.Type {
	case "local":
		return storage.NewLocalStorage(cfg.Storage.Path)
	case "s3":
		return storage.NewS3Storage(ctx, cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
			Prefix:       cfg.Storage.S3.Prefix,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}
