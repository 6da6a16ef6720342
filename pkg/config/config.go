package config

import (
	"github.com/ajitpratap0/columnforge/pkg/compression"
	"github.com/ajitpratap0/columnforge/pkg/errors"
	"github.com/ajitpratap0/columnforge/pkg/formats/columnar"
	"github.com/ajitpratap0/columnforge/pkg/ingest"
	"github.com/ajitpratap0/columnforge/pkg/series"
)

// Input document framings.
const (
	InputLines = string(ingest.FormatLines)
	InputArray = string(ingest.FormatArray)
	InputAuto  = string(ingest.FormatAuto)
)

// Config is the configuration of one run.
type Config struct {
	// Name identifies the run in logs and metrics
	Name string `yaml:"name" json:"name"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	// Builder settings for the series builder
	Builder BuilderConfig `yaml:"builder" json:"builder"`

	// Input settings for document ingestion
	Input InputConfig `yaml:"input" json:"input"`

	// Output settings for the columnar output
	Output OutputConfig `yaml:"output" json:"output"`

	// Observability settings for logging and metrics
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// BuilderConfig configures the series builder.
type BuilderConfig struct {
	// UnionMode is "sparse" or "dense"
	UnionMode string `yaml:"union_mode" json:"union_mode"`
}

// InputConfig configures document ingestion.
type InputConfig struct {
	// Path of the input; "-" or empty reads stdin
	Path string `yaml:"path" json:"path"`
	// Format is lines (NDJSON), array (one top-level JSON array) or auto
	Format string `yaml:"format" json:"format"`
	// BatchSize is the number of documents per batch; 0 builds one batch
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// BufferSize sets the read buffer size in bytes
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
	// MaxDepth bounds document nesting
	MaxDepth int `yaml:"max_depth" json:"max_depth"`
	// Compression of the input stream (auto, none, gzip, zstd, ...)
	Compression string `yaml:"compression" json:"compression"`
	// SkipInvalid drops documents that are not JSON objects
	SkipInvalid bool `yaml:"skip_invalid" json:"skip_invalid"`
}

// OutputConfig configures the columnar output.
type OutputConfig struct {
	// Path of the output; "-" or empty writes stdout
	Path string `yaml:"path" json:"path"`
	// Format is file or stream (Arrow IPC), parquet or avro
	Format string `yaml:"format" json:"format"`
	// Compression codec of the format: none, lz4 or zstd for Arrow IPC;
	// snappy, gzip, zstd, lz4 or brotli for Parquet; deflate or snappy for Avro
	Compression string `yaml:"compression" json:"compression"`
	// RowGroupSize caps the rows of a Parquet row group; 0 keeps one per batch
	RowGroupSize int64 `yaml:"row_group_size" json:"row_group_size"`
	// StreamCompression wraps the whole output stream (none, gzip, zstd, ...)
	StreamCompression string `yaml:"stream_compression" json:"stream_compression"`
	// StreamLevel is fastest, default, better or best
	StreamLevel string `yaml:"stream_level" json:"stream_level"`
	// Split starts a new part file when a batch changes the schema
	Split bool `yaml:"split" json:"split"`
}

// ObservabilityConfig contains logging, metrics and tracing settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogEncoding is json or console
	LogEncoding string `yaml:"log_encoding" json:"log_encoding"`
	// Development enables development logging
	Development bool `yaml:"development" json:"development"`
	// EnableMetrics serves Prometheus metrics on MetricsAddr
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// MetricsAddr is the listen address of the metrics endpoint
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	// EnableTracing exports OpenTelemetry spans as JSON
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// TraceFile receives the spans; empty writes them to stderr
	TraceFile string `yaml:"trace_file" json:"trace_file"`
	// TraceSampleRate is the fraction of traces kept
	TraceSampleRate float64 `yaml:"trace_sample_rate" json:"trace_sample_rate"`
}

// NewConfig creates a Config with defaults.
func NewConfig(name string) *Config {
	return &Config{
		Name:    name,
		Version: "1.0.0",
		Builder: BuilderConfig{
			UnionMode: series.UnionSparse.String(),
		},
		Input: InputConfig{
			Path:        "-",
			Format:      InputAuto,
			BatchSize:   10000,
			BufferSize:  64 * 1024,
			MaxDepth:    128,
			Compression: string(compression.Auto),
		},
		Output: OutputConfig{
			Path:              "-",
			Format:            string(columnar.File),
			Compression:       columnar.CompressionNone,
			StreamCompression: string(compression.None),
			StreamLevel:       "default",
		},
		Observability: ObservabilityConfig{
			LogLevel:        "info",
			LogEncoding:     "json",
			MetricsAddr:     ":9090",
			TraceSampleRate: 1.0,
		},
	}
}

// Validate validates the configuration for correctness.
// Every failure is an ErrorTypeConfig error.
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "name is required")
	}
	if _, err := series.ParseUnionMode(c.Builder.UnionMode); err != nil {
		return err
	}

	if _, err := ingest.ParseFormat(c.Input.Format); err != nil {
		return err
	}
	if c.Input.BatchSize < 0 {
		return errors.New(errors.ErrorTypeConfig, "batch_size cannot be negative")
	}
	if c.Input.BufferSize < 0 {
		return errors.New(errors.ErrorTypeConfig, "buffer_size cannot be negative")
	}
	if c.Input.MaxDepth < 0 {
		return errors.New(errors.ErrorTypeConfig, "max_depth cannot be negative")
	}
	if _, err := compression.ParseAlgorithm(c.Input.Compression); err != nil {
		return err
	}

	if err := c.Output.WriterConfig().Validate(); err != nil {
		return err
	}
	a, err := compression.ParseAlgorithm(c.Output.StreamCompression)
	if err != nil {
		return err
	}
	if a == compression.Auto {
		return errors.New(errors.ErrorTypeConfig, "stream_compression cannot be auto")
	}
	if _, err := compression.ParseLevel(c.Output.StreamLevel); err != nil {
		return err
	}
	if c.Output.Split && isStdio(c.Output.Path) {
		return errors.New(errors.ErrorTypeConfig, "split needs an output path")
	}

	if c.Observability.EnableMetrics && c.Observability.MetricsAddr == "" {
		return errors.New(errors.ErrorTypeConfig, "metrics_addr is required when metrics are enabled")
	}
	if r := c.Observability.TraceSampleRate; r < 0 || r > 1 {
		return errors.New(errors.ErrorTypeConfig, "trace_sample_rate must be between 0 and 1")
	}
	return nil
}

// ReaderConfig returns the ingest settings of the input section.
func (i *InputConfig) ReaderConfig() ingest.ReaderConfig {
	f, err := ingest.ParseFormat(i.Format)
	if err != nil {
		f = ingest.FormatAuto
	}
	return ingest.ReaderConfig{
		Format:      f,
		BatchSize:   i.BatchSize,
		BufferSize:  i.BufferSize,
		MaxDepth:    i.MaxDepth,
		SkipInvalid: i.SkipInvalid,
	}
}

// WriterConfig returns the writer settings of the output section.
func (o *OutputConfig) WriterConfig() *columnar.WriterConfig {
	return &columnar.WriterConfig{
		Format:       columnar.Format(o.Format),
		Compression:  o.Compression,
		RowGroupSize: o.RowGroupSize,
	}
}

// CompressionConfig returns the settings of the output stream compression.
func (o *OutputConfig) CompressionConfig() *compression.Config {
	a, err := compression.ParseAlgorithm(o.StreamCompression)
	if err != nil {
		a = compression.None
	}
	level, err := compression.ParseLevel(o.StreamLevel)
	if err != nil {
		level = compression.Default
	}
	return &compression.Config{
		Algorithm:  a,
		Level:      level,
		BufferSize: 64 * 1024,
	}
}

// Mode returns the parsed builder union mode.
func (b *BuilderConfig) Mode() series.UnionMode {
	m, err := series.ParseUnionMode(b.UnionMode)
	if err != nil {
		return series.UnionSparse
	}
	return m
}

// IsStdin reports whether the input is standard input.
func (i *InputConfig) IsStdin() bool {
	return isStdio(i.Path)
}

// IsStdout reports whether the output is standard output.
func (o *OutputConfig) IsStdout() bool {
	return isStdio(o.Path)
}

func isStdio(path string) bool {
	return path == "" || path == "-"
}
