// Package ingest reads JSON documents and builds them into series batches.
package ingest

import (
	"bufio"
	"context"
	"io"
	"strings"

	gojson "github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/columnforge/pkg/errors"
	cfjson "github.com/ajitpratap0/columnforge/pkg/json"
	"github.com/ajitpratap0/columnforge/pkg/metrics"
	"github.com/ajitpratap0/columnforge/pkg/series"
	"github.com/ajitpratap0/columnforge/pkg/tracing"
)

// Format represents the framing of the JSON input
type Format string

const (
	// FormatLines is a sequence of JSON documents (JSONL/NDJSON)
	FormatLines Format = "lines"
	// FormatArray is one top-level JSON array of documents
	FormatArray Format = "array"
	// FormatAuto picks array when the input starts with '[' and lines otherwise
	FormatAuto Format = "auto"
)

// ParseFormat parses lines, array or auto. The empty string is auto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatAuto, nil
	case FormatLines, FormatArray, FormatAuto:
		return f, nil
	case "ndjson", "jsonl":
		return FormatLines, nil
	default:
		return "", errors.New(errors.ErrorTypeConfig, "unsupported input format: "+s)
	}
}

// ReaderConfig configures a JSONReader
type ReaderConfig struct {
	Format Format
	// BatchSize is the number of documents per batch; 0 reads the whole
	// input into one batch
	BatchSize int
	// BufferSize sets the read buffer size in bytes
	BufferSize int
	// MaxDepth bounds document nesting; 0 is cfjson.DefaultMaxDepth
	MaxDepth int
	// SkipInvalid drops documents that are valid JSON but cannot be built
	// (not an object, duplicate keys, numbers beyond float64) instead of
	// failing the read
	SkipInvalid bool
}

// DefaultReaderConfig returns default reader configuration
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		Format:     FormatAuto,
		BatchSize:  10000,
		BufferSize: 64 * 1024,
		MaxDepth:   cfjson.DefaultMaxDepth,
	}
}

// Option configures a JSONReader
type Option func(*JSONReader)

// WithSeriesOptions passes options to every series builder the reader creates.
func WithSeriesOptions(opts ...series.Option) Option {
	return func(r *JSONReader) {
		r.seriesOpts = append(r.seriesOpts, opts...)
	}
}

// WithMetrics records document, batch and builder metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *JSONReader) {
		r.metrics = c
		r.throughput = metrics.NewThroughputTracker(c)
	}
}

// ReaderStats summarizes what a reader has consumed so far.
type ReaderStats struct {
	Documents int64
	Rejected  int64
	Batches   int64
}

// JSONReader turns a stream of JSON objects into series batches, one
// column per top-level field. Every document is decoded and validated
// completely before it is written into the builder.
type JSONReader struct {
	config     ReaderConfig
	src        *bufio.Reader
	decoder    *gojson.Decoder
	logger     *zap.Logger
	seriesOpts []series.Option
	metrics    *metrics.Collector
	throughput *metrics.ThroughputTracker

	format       Format
	arrayStarted bool
	done         bool
	stats        ReaderStats
}

// NewJSONReader creates a reader of JSON documents from r.
func NewJSONReader(r io.Reader, config ReaderConfig, logger *zap.Logger, opts ...Option) *JSONReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 64 * 1024
	}
	if config.MaxDepth <= 0 {
		config.MaxDepth = cfjson.DefaultMaxDepth
	}
	if config.Format == "" {
		config.Format = FormatAuto
	}

	jr := &JSONReader{
		config: config,
		src:    bufio.NewReaderSize(r, config.BufferSize),
		logger: logger,
		format: config.Format,
	}
	jr.decoder = cfjson.NewDecoder(jr.src)
	for _, opt := range opts {
		opt(jr)
	}
	jr.seriesOpts = append([]series.Option{series.WithLogger(logger)}, jr.seriesOpts...)
	return jr
}

// Format returns the input framing; FormatAuto until the first read.
func (r *JSONReader) Format() Format {
	return r.format
}

// Stats returns the reader statistics. It must not be called while a
// Stream is running.
func (r *JSONReader) Stats() ReaderStats {
	return r.stats
}

// ReadBatch builds the next batch of documents. It returns io.EOF once the
// input is exhausted and no document is left. The caller releases the batch.
// Cancellation is checked between documents; the partial batch is discarded.
func (r *JSONReader) ReadBatch(ctx context.Context) (batch *series.Batch, err error) {
	ctx, span := tracing.Start(ctx, "ingest.read_batch")
	defer func() {
		span.SetAttributes(attribute.String("format", string(r.format)))
		if batch != nil {
			span.SetAttributes(
				attribute.Int("rows", batch.Rows),
				attribute.Int("columns", len(batch.Columns)),
			)
		}
		span.SetAttributes(attribute.Int64("documents", r.stats.Documents))
		tracing.End(span, err)
	}()
	return r.readBatch(ctx)
}

func (r *JSONReader) readBatch(ctx context.Context) (*series.Batch, error) {
	if r.done {
		return nil, io.EOF
	}
	if err := r.start(); err != nil {
		return nil, err
	}

	timer := metrics.NewTimer("read_batch")
	b := series.New(r.seriesOpts...)
	for r.config.BatchSize <= 0 || b.Length() < r.config.BatchSize {
		if err := ctx.Err(); err != nil {
			b.Release()
			return nil, err
		}

		doc, err := r.next()
		if err == io.EOF {
			r.done = true
			break
		}
		if err != nil {
			b.Release()
			return nil, err
		}
		if doc == nil {
			continue
		}
		b.Data(doc)
	}

	if b.Length() == 0 && r.done {
		b.Release()
		return nil, io.EOF
	}

	stats := b.Stats()
	batch := b.FinishAsBatch()
	elapsed := timer.Stop()
	r.stats.Batches++

	if r.metrics != nil {
		r.metrics.RecordBuilderEvents(metrics.EventFieldCreated, stats.FieldsCreated)
		r.metrics.RecordBuilderEvents(metrics.EventUnionCreated, stats.UnionsCreated)
		r.metrics.RecordBuilderEvents(metrics.EventVariantAdded, stats.VariantsAdded)
		r.metrics.ObserveBatch(batch.Rows, elapsed)
		r.throughput.Increment(int64(batch.Rows))
	}
	r.logger.Debug("batch built",
		zap.Int("rows", batch.Rows),
		zap.Int("columns", len(batch.Columns)),
		zap.Int("fields_created", stats.FieldsCreated),
		zap.Int("unions_created", stats.UnionsCreated),
		zap.Duration("elapsed", elapsed))
	return batch, nil
}

// start resolves FormatAuto and consumes the opening bracket of an array.
func (r *JSONReader) start() error {
	if r.format == FormatAuto {
		c, err := r.peekNonSpace()
		if err != nil && err != io.EOF {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to read input")
		}
		r.format = FormatLines
		if c == '[' {
			r.format = FormatArray
		}
		r.logger.Debug("detected input format", zap.String("format", string(r.format)))
	}

	if r.format == FormatArray && !r.arrayStarted {
		tok, err := r.decoder.Token()
		if err == io.EOF {
			r.done = true
			return io.EOF
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to read JSON array start")
		}
		if delim, ok := tok.(gojson.Delim); !ok || delim != '[' {
			return errors.Newf(errors.ErrorTypeData, "expected JSON array, got %v", tok)
		}
		r.arrayStarted = true
	}
	return nil
}

func (r *JSONReader) peekNonSpace() (byte, error) {
	for n := 1; ; n++ {
		buf, err := r.src.Peek(n)
		if len(buf) < n {
			return 0, err
		}
		if c := buf[n-1]; !isSpace(c) {
			return c, nil
		}
		if n == r.src.Size() {
			// a buffer full of whitespace; skip it and keep looking
			if _, err := r.src.Discard(n); err != nil {
				return 0, err
			}
			n = 0
		}
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// next returns the next document, nil for a skipped one, or io.EOF.
func (r *JSONReader) next() (series.Object, error) {
	index := r.stats.Documents + r.stats.Rejected + 1
	if r.format == FormatArray && !r.decoder.More() {
		tok, err := r.decoder.Token()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read JSON array end")
		}
		if delim, ok := tok.(gojson.Delim); !ok || delim != ']' {
			return nil, errors.Newf(errors.ErrorTypeData, "expected end of JSON array, got %v", tok)
		}
		if _, err := r.decoder.Token(); err != io.EOF {
			return nil, errors.New(errors.ErrorTypeData, "unexpected data after JSON array")
		}
		return nil, io.EOF
	}

	v, err := cfjson.ReadValue(r.decoder, r.config.MaxDepth)
	if err == io.EOF {
		if r.format == FormatArray {
			return nil, errors.New(errors.ErrorTypeData, "unexpected end of JSON array")
		}
		return nil, io.EOF
	}
	if err != nil {
		r.reject()
		var e *errors.Error
		if errors.As(err, &e) {
			err = e.WithDetail("document", index)
		}
		// the decoder consumed the whole document, so the stream can go on
		if r.config.SkipInvalid && errors.Is(err, cfjson.ErrInvalidValue) {
			r.logger.Warn("skipping document", zap.Error(err))
			return nil, nil
		}
		return nil, err
	}

	doc, ok := v.(series.Object)
	if !ok {
		r.reject()
		err := errors.Newf(errors.ErrorTypeData, "document is not a JSON object: %T", v).
			WithDetail("document", index)
		if r.config.SkipInvalid {
			r.logger.Warn("skipping document", zap.Error(err))
			return nil, nil
		}
		return nil, err
	}

	r.stats.Documents++
	if r.metrics != nil {
		r.metrics.RecordDocument(metrics.StatusAccepted)
	}
	return doc, nil
}

func (r *JSONReader) reject() {
	r.stats.Rejected++
	if r.metrics != nil {
		r.metrics.RecordDocument(metrics.StatusRejected)
	}
}

// Throughput returns documents per second since the previous call and
// publishes it on the metrics gauge. Zero without metrics.
func (r *JSONReader) Throughput() float64 {
	if r.throughput == nil {
		return 0
	}
	return r.throughput.GetAndReset()
}

// BatchStream carries batches read in the background
type BatchStream struct {
	Batches <-chan *series.Batch
	Errors  <-chan error
}

// Stream reads batches on a separate goroutine so that building the next
// batch overlaps with writing the previous one. Batches is closed at the
// end of the input, on the first error, or when ctx is cancelled; Errors
// receives at most one error. The receiver releases every batch.
func (r *JSONReader) Stream(ctx context.Context, buffer int) *BatchStream {
	batchChan := make(chan *series.Batch, buffer)
	errorChan := make(chan error, 1)

	go func() {
		defer close(batchChan)
		defer close(errorChan)

		for {
			batch, err := r.ReadBatch(ctx)
			if err == io.EOF {
				return
			}
			if err != nil {
				errorChan <- err
				return
			}
			select {
			case batchChan <- batch:
			case <-ctx.Done():
				batch.Release()
				errorChan <- ctx.Err()
				return
			}
		}
	}()

	return &BatchStream{
		Batches: batchChan,
		Errors:  errorChan,
	}
}
