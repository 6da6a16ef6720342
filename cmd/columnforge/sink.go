package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/columnforge/pkg/compression"
	"github.com/ajitpratap0/columnforge/pkg/config"
	"github.com/ajitpratap0/columnforge/pkg/errors"
	"github.com/ajitpratap0/columnforge/pkg/formats/columnar"
	"github.com/ajitpratap0/columnforge/pkg/metrics"
	"github.com/ajitpratap0/columnforge/pkg/series"
	"github.com/ajitpratap0/columnforge/pkg/tracing"
)

// sink writes batches to one output, or to a sequence of part files
// when split is enabled and a batch changes the schema.
type sink struct {
	cfg     config.OutputConfig
	stdout  io.Writer
	metrics *metrics.Collector
	log     *zap.Logger

	file   *os.File
	stream io.WriteCloser
	writer columnar.Writer
	parts  int
}

func newSink(cfg config.OutputConfig, stdout io.Writer, c *metrics.Collector, log *zap.Logger) *sink {
	return &sink{cfg: cfg, stdout: stdout, metrics: c, log: log}
}

// partPath returns the path of part n: the configured path for the first
// part, then name-0001.ext, name-0002.ext and so on.
func partPath(path string, n int) string {
	if n == 0 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%04d%s", strings.TrimSuffix(path, ext), n, ext)
}

func (s *sink) open() error {
	var dst io.Writer = s.stdout
	if !s.cfg.IsStdout() {
		path := partPath(s.cfg.Path, s.parts)
		f, err := os.Create(path) //nolint:gosec // output path is chosen by the user
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output").
				WithDetail("path", path)
		}
		s.file, dst = f, f
		s.log.Info("writing output part", zap.String("path", path), zap.Int("part", s.parts))
	}

	stream, err := compression.NewWriter(dst, s.cfg.CompressionConfig())
	if err != nil {
		s.closeFile()
		return err
	}
	w, err := columnar.NewWriter(stream, s.cfg.WriterConfig())
	if err != nil {
		_ = stream.Close()
		s.closeFile()
		return err
	}
	s.stream, s.writer = stream, w
	s.parts++
	return nil
}

// Write writes one batch, opening the output on first use.
func (s *sink) Write(ctx context.Context, batch *series.Batch) (err error) {
	_, span := tracing.Start(ctx, "output.write_batch",
		attribute.Int("rows", batch.Rows),
		attribute.String("format", s.cfg.Format))
	defer func() {
		span.SetAttributes(attribute.Int("part", s.parts))
		tracing.End(span, err)
	}()

	if s.writer != nil && s.cfg.Split {
		if schema := s.writer.Schema(); schema != nil && !schema.Equal(batch.Schema()) {
			s.log.Info("schema changed, starting a new part",
				zap.Int("columns", len(batch.Columns)),
				zap.Int64("rows_in_part", s.writer.RecordsWritten()))
			if err := s.closePart(); err != nil {
				return err
			}
		}
	}
	if s.writer == nil {
		if err := s.open(); err != nil {
			return err
		}
	}
	err = s.writer.WriteBatch(batch)
	if err != nil && !s.cfg.Split && errors.IsType(err, errors.ErrorTypeData) {
		return errors.Wrap(err, errors.ErrorTypeData, "schema drifted between batches (use --split or --batch-size 0)")
	}
	return err
}

func (s *sink) closePart() error {
	if s.writer == nil {
		return nil
	}
	err := s.writer.Close()
	s.metrics.AddBytesWritten(s.writer.BytesWritten())
	if cerr := s.stream.Close(); err == nil {
		err = cerr
	}
	if ferr := s.closeFile(); err == nil {
		err = ferr
	}
	s.writer, s.stream = nil, nil
	return err
}

func (s *sink) closeFile() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close output")
	}
	return nil
}

// Close finishes the output. An input without documents still produces a
// valid, empty output.
func (s *sink) Close() error {
	if s.writer == nil && s.parts == 0 {
		if err := s.open(); err != nil {
			return err
		}
	}
	return s.closePart()
}

// Parts returns the number of outputs opened so far.
func (s *sink) Parts() int {
	return s.parts
}
