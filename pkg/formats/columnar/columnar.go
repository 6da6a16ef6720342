// Package columnar writes finished series batches as Apache Arrow IPC,
// Parquet or Avro, and reads Arrow IPC and Parquet back.
package columnar

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/columnforge/pkg/errors"
	"github.com/ajitpratap0/columnforge/pkg/series"
)

// Format represents an output format
type Format string

const (
	// File is the Arrow IPC file format (random access, footer)
	File Format = "file"
	// Stream is the Arrow IPC streaming format
	Stream Format = "stream"
	// Parquet is Apache Parquet; unions are stored as structs of variants
	Parquet Format = "parquet"
	// Avro is an Avro object container file; unions map to Avro unions
	Avro Format = "avro"
)

// Compression codec names. Which ones apply depends on the format.
const (
	CompressionNone    = "none"
	CompressionLZ4     = "lz4"
	CompressionZstd    = "zstd"
	CompressionSnappy  = "snappy"
	CompressionGzip    = "gzip"
	CompressionBrotli  = "brotli"
	CompressionDeflate = "deflate"
)

var codecsByFormat = map[Format][]string{
	File:    {CompressionNone, CompressionLZ4, CompressionZstd},
	Stream:  {CompressionNone, CompressionLZ4, CompressionZstd},
	Parquet: {CompressionNone, CompressionSnappy, CompressionGzip, CompressionZstd, CompressionLZ4, CompressionBrotli},
	Avro:    {CompressionNone, CompressionDeflate, CompressionSnappy},
}

// magic bytes at the start of a file
var (
	fileMagic    = []byte("ARROW1")
	parquetMagic = []byte("PAR1")
)

// Writer writes batches of one schema.
type Writer interface {
	// WriteBatch writes a batch built by a series.Builder
	WriteBatch(batch *series.Batch) error
	// WriteRecord writes an Arrow record
	WriteRecord(rec arrow.Record) error
	// Schema returns the schema fixed by the first batch, or nil
	Schema() *arrow.Schema
	// Close finishes the output; it does not close the underlying writer
	Close() error
	// Format returns the output format
	Format() Format
	// BytesWritten returns bytes written
	BytesWritten() int64
	// RecordsWritten returns rows written
	RecordsWritten() int64
	// BatchesWritten returns batches written
	BatchesWritten() int64
}

// Reader iterates over the record batches of an input.
type Reader interface {
	// Schema returns the schema of the input
	Schema() *arrow.Schema
	// Next returns the next record batch or io.EOF. The caller releases it.
	Next() (arrow.Record, error)
	// Close closes the reader
	Close() error
	// Format returns the input format
	Format() Format
}

// WriterConfig configures writers
type WriterConfig struct {
	Format      Format
	Compression string
	Allocator   memory.Allocator
	// RowGroupSize caps the rows of a Parquet row group; 0 keeps one row
	// group per batch.
	RowGroupSize int64
}

// DefaultWriterConfig returns default writer configuration
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		Format:      File,
		Compression: CompressionNone,
	}
}

// Validate checks the configuration.
func (c *WriterConfig) Validate() error {
	format, err := ParseFormat(string(c.Format))
	if err != nil {
		return err
	}
	if c.RowGroupSize < 0 {
		return errors.New(errors.ErrorTypeConfig, "row group size must not be negative")
	}
	codec := strings.ToLower(c.Compression)
	if codec == "" {
		return nil
	}
	for _, name := range codecsByFormat[format] {
		if codec == name {
			return nil
		}
	}
	return errors.Newf(errors.ErrorTypeConfig, "unsupported %s compression: %s", format, c.Compression).
		WithDetail("supported", codecsByFormat[format])
}

// ReaderConfig configures readers
type ReaderConfig struct {
	// Format is File, Stream, Parquet, or empty to detect it
	Format    Format
	Allocator memory.Allocator
	// BatchSize is the number of rows per record read from Parquet
	BatchSize int64
}

// ParseFormat parses an output format name. The empty string is File.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", File:
		return File, nil
	case Stream, Parquet, Avro:
		return f, nil
	default:
		return "", errors.New(errors.ErrorTypeConfig, "unsupported output format: "+s)
	}
}

// FormatInfo provides information about a format
type FormatInfo struct {
	Format        Format
	Name          string
	FileExtension string
	MIMEType      string
	RandomAccess  bool
	Readable      bool
}

// GetFormatInfo returns information about a format
func GetFormatInfo(format Format) *FormatInfo {
	switch format {
	case File:
		return &FormatInfo{
			Format:        File,
			Name:          "Apache Arrow IPC file",
			FileExtension: ".arrow",
			MIMEType:      "application/vnd.apache.arrow.file",
			RandomAccess:  true,
			Readable:      true,
		}
	case Stream:
		return &FormatInfo{
			Format:        Stream,
			Name:          "Apache Arrow IPC stream",
			FileExtension: ".arrows",
			MIMEType:      "application/vnd.apache.arrow.stream",
			RandomAccess:  false,
			Readable:      true,
		}
	case Parquet:
		return &FormatInfo{
			Format:        Parquet,
			Name:          "Apache Parquet",
			FileExtension: ".parquet",
			MIMEType:      "application/vnd.apache.parquet",
			RandomAccess:  true,
			Readable:      true,
		}
	case Avro:
		return &FormatInfo{
			Format:        Avro,
			Name:          "Apache Avro object container",
			FileExtension: ".avro",
			MIMEType:      "application/avro",
			RandomAccess:  false,
			Readable:      false,
		}
	default:
		return nil
	}
}

// NewWriter creates a writer for the configured format.
func NewWriter(w io.Writer, config *WriterConfig) (Writer, error) {
	if config == nil {
		config = DefaultWriterConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch format, _ := ParseFormat(string(config.Format)); format {
	case Parquet:
		return newParquetWriter(w, config)
	case Avro:
		return newAvroWriter(w, config)
	default:
		return NewArrowWriter(w, config)
	}
}

// NewReader opens an Arrow IPC or Parquet input, detecting the format from
// its leading bytes unless config names one.
func NewReader(r io.Reader, config *ReaderConfig) (Reader, error) {
	if config == nil {
		config = &ReaderConfig{}
	}
	format := config.Format
	if format == "" {
		br := bufio.NewReader(r)
		head, err := br.Peek(len(fileMagic))
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read input")
		}
		switch {
		case bytes.HasPrefix(head, fileMagic):
			format = File
		case bytes.HasPrefix(head, parquetMagic):
			format = Parquet
		default:
			format = Stream
		}
		r = br
	}

	cfg := *config
	cfg.Format = format
	switch format {
	case File, Stream:
		return NewArrowReader(r, &cfg)
	case Parquet:
		return newParquetReader(r, &cfg)
	default:
		return nil, errors.New(errors.ErrorTypeConfig, "format cannot be read: "+string(format))
	}
}

// SchemaChangedError reports a batch whose schema differs from the one the
// writer was opened with.
func SchemaChangedError(want, got *arrow.Schema) *errors.Error {
	return errors.New(errors.ErrorTypeData, "batch schema differs from output schema").
		WithDetail("want", want.String()).
		WithDetail("got", got.String())
}

// readAtSeeker returns r as random access input, buffering it in memory
// when it is a plain stream.
func readAtSeeker(r io.Reader) (interface {
	io.ReaderAt
	io.Seeker
	io.Reader
}, error) {
	if ras, ok := r.(interface {
		io.ReaderAt
		io.Seeker
		io.Reader
	}); ok {
		return ras, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read input")
	}
	return bytes.NewReader(data), nil
}
