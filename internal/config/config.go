// Package config provides the layered configuration for trackport:
// defaults, then a YAML or JSON file, then TRACKPORT_* environment variables,
// then command-line flags applied by the binaries.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/arkilian/trackport/internal/errors"
	"github.com/arkilian/trackport/internal/loader"
	"github.com/arkilian/trackport/internal/retrieval"
	"github.com/arkilian/trackport/internal/sink"
	"github.com/arkilian/trackport/pkg/types"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "TRACKPORT_"

// Config holds the trackport configuration.
type Config struct {
	// DataDir is the base directory for derived paths
	DataDir string `json:"data_dir" yaml:"data_dir" env:"DATA_DIR"`

	// SourceMarker selects source directories by name
	SourceMarker string `json:"source_marker" yaml:"source_marker" env:"SOURCE_MARKER"`

	// WorkDir receives copies of remote sources
	WorkDir string `json:"work_dir" yaml:"work_dir" env:"WORK_DIR"`

	// Location is the IANA zone datetime columns are rendered in; empty means local time
	Location string `json:"location" yaml:"location" env:"LOCATION"`

	Storage   StorageConfig   `json:"storage" yaml:"storage" envPrefix:"STORAGE_"`
	Sink      SinkConfig      `json:"sink" yaml:"sink" envPrefix:"SINK_"`
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval" envPrefix:"RETRIEVAL_"`
	Loader    LoaderConfig    `json:"loader" yaml:"loader" envPrefix:"LOADER_"`
	Log       LogConfig       `json:"log" yaml:"log" envPrefix:"LOG_"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics" envPrefix:"METRICS_"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type" env:"TYPE"`

	// Path is the root holding the source directories (for local type)
	Path string `json:"path" yaml:"path" env:"PATH"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3" envPrefix:"S3_"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	Bucket       string `json:"bucket" yaml:"bucket" env:"BUCKET"`
	Region       string `json:"region" yaml:"region" env:"REGION"`
	Endpoint     string `json:"endpoint" yaml:"endpoint" env:"ENDPOINT"`
	UsePathStyle bool   `json:"use_path_style" yaml:"use_path_style" env:"USE_PATH_STYLE"`
	Prefix       string `json:"prefix" yaml:"prefix" env:"PREFIX"`
}

// SinkConfig holds the relational sink configuration.
type SinkConfig struct {
	// DSN selects the driver by scheme: postgres://, mysql://, sqlite3:// or a file path
	DSN string `json:"dsn" yaml:"dsn" env:"DSN"`

	// Table is the target table
	Table string `json:"table" yaml:"table" env:"TABLE"`

	// EnsureTable creates the table from the field registry before loading
	EnsureTable bool `json:"ensure_table" yaml:"ensure_table" env:"ENSURE_TABLE"`

	// MaxFacets is the number of FacetName/FacetValue pairs EnsureTable creates
	MaxFacets int `json:"max_facets" yaml:"max_facets" env:"MAX_FACETS"`

	// DryRun writes statements to stdout instead of executing them
	DryRun bool `json:"dry_run" yaml:"dry_run" env:"DRY_RUN"`
}

// RetrievalConfig holds retrieval engine configuration.
type RetrievalConfig struct {
	PageSize int `json:"page_size" yaml:"page_size" env:"PAGE_SIZE"`

	// Category is all, search, pagetracking or reindex
	Category string `json:"category" yaml:"category" env:"CATEGORY"`
}

// LoaderConfig holds batch loader configuration.
type LoaderConfig struct {
	// ErrorPolicy is abort or skip
	ErrorPolicy string `json:"error_policy" yaml:"error_policy" env:"ERROR_POLICY"`

	// ContinueOnSourceError keeps processing sibling sources after a failure
	ContinueOnSourceError bool `json:"continue_on_source_error" yaml:"continue_on_source_error" env:"CONTINUE_ON_SOURCE_ERROR"`

	// Streaming inserts page by page instead of after a full retrieval
	Streaming bool `json:"streaming" yaml:"streaming" env:"STREAMING"`

	// DownloadConcurrency bounds parallel downloads when mirroring a remote source
	DownloadConcurrency int `json:"download_concurrency" yaml:"download_concurrency" env:"DOWNLOAD_CONCURRENCY"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" env:"LEVEL"`
	Pretty bool   `json:"pretty" yaml:"pretty" env:"PRETTY"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Addr serves /metrics when set
	Addr string `json:"addr" yaml:"addr" env:"ADDR"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir:      "./data/trackport",
		SourceMarker: loader.DefaultSourceMarker,
		Storage: StorageConfig{
			Type: "local",
		},
		Sink: SinkConfig{
			Table:     sink.DefaultTable,
			MaxFacets: sink.DefaultMaxFacets,
		},
		Retrieval: RetrievalConfig{
			PageSize: retrieval.DefaultPageSize,
			Category: "all",
		},
		Loader: LoaderConfig{
			ErrorPolicy:         string(loader.PolicyAbort),
			DownloadConcurrency: 4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Resolve fills paths derived from DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/trackport"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "sources")
	}
	if c.WorkDir == "" {
		c.WorkDir = filepath.Join(c.DataDir, "work")
	}
	if c.SourceMarker == "" {
		c.SourceMarker = loader.DefaultSourceMarker
	}
	if c.Sink.Table == "" {
		c.Sink.Table = sink.DefaultTable
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return invalid("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return invalid("s3.bucket is required when storage type is s3")
	}

	if c.Sink.DSN == "" && !c.Sink.DryRun {
		return invalid("sink.dsn is required unless sink.dry_run is set")
	}
	if c.Sink.MaxFacets < 0 {
		return invalid("sink.max_facets must not be negative, got %d", c.Sink.MaxFacets)
	}

	if c.Retrieval.PageSize <= 0 {
		return invalid("retrieval.page_size must be positive, got %d", c.Retrieval.PageSize)
	}
	if _, err := types.ParseCategory(c.Retrieval.Category); err != nil {
		return apperrors.NewConfigError("invalid retrieval.category", err)
	}

	if _, err := loader.ParseErrorPolicy(c.Loader.ErrorPolicy); err != nil {
		return apperrors.NewConfigError("invalid loader.error_policy", err)
	}
	if c.Loader.DownloadConcurrency < 1 {
		return invalid("loader.download_concurrency must be at least 1, got %d", c.Loader.DownloadConcurrency)
	}

	if _, err := c.TimeLocation(); err != nil {
		return apperrors.NewConfigError("invalid location", err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return apperrors.NewConfigError(fmt.Sprintf(format, args...), nil)
}

// TimeLocation returns the zone datetime columns are rendered in.
func (c *Config) TimeLocation() (*time.Location, error) {
	if c.Location == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Location)
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv overrides cfg with any TRACKPORT_* variables that are set.
// Unset variables leave the current values alone.
func LoadFromEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// EnsureDirectories creates the local directories the run needs.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir, c.WorkDir}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
