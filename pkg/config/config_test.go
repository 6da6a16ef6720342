package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/columnforge/pkg/errors"
	"github.com/ajitpratap0/columnforge/pkg/formats/columnar"
	"github.com/ajitpratap0/columnforge/pkg/ingest"
	"github.com/ajitpratap0/columnforge/pkg/series"
)

func TestNewConfigIsValid(t *testing.T) {
	cfg := NewConfig("test")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, series.UnionSparse, cfg.Builder.Mode())
	assert.True(t, cfg.Input.IsStdin())
	assert.True(t, cfg.Output.IsStdout())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"missing name", func(c *Config) { c.Name = "" }},
		{"union mode", func(c *Config) { c.Builder.UnionMode = "tagged" }},
		{"input format", func(c *Config) { c.Input.Format = "csv" }},
		{"negative batch", func(c *Config) { c.Input.BatchSize = -1 }},
		{"negative buffer", func(c *Config) { c.Input.BufferSize = -1 }},
		{"negative depth", func(c *Config) { c.Input.MaxDepth = -1 }},
		{"input compression", func(c *Config) { c.Input.Compression = "brotli" }},
		{"output format", func(c *Config) { c.Output.Format = "feather" }},
		{"ipc compression", func(c *Config) { c.Output.Compression = "gzip" }},
		{"avro compression", func(c *Config) {
			c.Output.Format = "avro"
			c.Output.Compression = "zstd"
		}},
		{"negative row group", func(c *Config) {
			c.Output.Format = "parquet"
			c.Output.RowGroupSize = -1
		}},
		{"stream compression", func(c *Config) { c.Output.StreamCompression = "rar" }},
		{"auto stream compression", func(c *Config) { c.Output.StreamCompression = "auto" }},
		{"stream level", func(c *Config) { c.Output.StreamLevel = "max" }},
		{"split to stdout", func(c *Config) { c.Output.Split = true }},
		{"metrics addr", func(c *Config) {
			c.Observability.EnableMetrics = true
			c.Observability.MetricsAddr = ""
		}},
		{"trace sample rate", func(c *Config) { c.Observability.TraceSampleRate = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("test")
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), "got %v", err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("CF_TEST_DIR", "/data")

	path := filepath.Join(t.TempDir(), "columnforge.yaml")
	content := `
name: events
builder:
  union_mode: dense
input:
  path: ${CF_TEST_DIR}/events.ndjson
  format: lines
  batch_size: 500
output:
  path: ${CF_TEST_DIR}/events.arrow
  compression: zstd
  split: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "events", cfg.Name)
	assert.Equal(t, series.UnionDense, cfg.Builder.Mode())
	assert.Equal(t, "/data/events.ndjson", cfg.Input.Path)
	assert.Equal(t, 500, cfg.Input.BatchSize)
	assert.Equal(t, 128, cfg.Input.MaxDepth, "unset fields keep defaults")
	assert.Equal(t, "/data/events.arrow", cfg.Output.Path)
	assert.True(t, cfg.Output.Split)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("builder: [unclosed"), 0600))
	_, err = LoadConfig(path)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	require.NoError(t, os.WriteFile(path, []byte("builder:\n  union_mode: packed\n"), 0600))
	_, err = LoadConfig(path)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := NewConfig("roundtrip")
	cfg.Output.Format = "stream"
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSectionConversions(t *testing.T) {
	cfg := NewConfig("test")
	cfg.Input.Format = "ndjson"
	cfg.Input.SkipInvalid = true
	cfg.Output.Format = "stream"
	cfg.Output.Compression = "lz4"

	rc := cfg.Input.ReaderConfig()
	assert.Equal(t, ingest.FormatLines, rc.Format)
	assert.Equal(t, 10000, rc.BatchSize)
	assert.True(t, rc.SkipInvalid)

	wc := cfg.Output.WriterConfig()
	assert.Equal(t, columnar.Stream, wc.Format)
	assert.Equal(t, columnar.CompressionLZ4, wc.Compression)

	cfg.Output.Format = "parquet"
	cfg.Output.Compression = "brotli"
	cfg.Output.RowGroupSize = 5000
	require.NoError(t, cfg.Validate())
	wc = cfg.Output.WriterConfig()
	assert.Equal(t, columnar.Parquet, wc.Format)
	assert.Equal(t, int64(5000), wc.RowGroupSize)
}
