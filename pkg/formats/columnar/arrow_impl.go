package columnar

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/columnforge/pkg/errors"
	"github.com/ajitpratap0/columnforge/pkg/series"
)

type ipcWriter interface {
	Write(rec arrow.Record) error
	Close() error
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// arrowWriter implements Writer. The IPC writer is opened on the first
// batch because the schema is only known once a batch is finished.
type arrowWriter struct {
	out            *countingWriter
	config         *WriterConfig
	mem            memory.Allocator
	schema         *arrow.Schema
	ipc            ipcWriter
	recordsWritten int64
	batchesWritten int64
	closed         bool
	mu             sync.Mutex
}

// NewArrowWriter creates a writer of Arrow IPC to w.
func NewArrowWriter(w io.Writer, config *WriterConfig) (Writer, error) {
	if config == nil {
		config = DefaultWriterConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	format, _ := ParseFormat(string(config.Format))
	cfg := *config
	cfg.Format = format

	mem := cfg.Allocator
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &arrowWriter{
		out:    &countingWriter{w: w},
		config: &cfg,
		mem:    mem,
	}, nil
}

func (aw *arrowWriter) open(schema *arrow.Schema) error {
	opts := []ipc.Option{ipc.WithSchema(schema), ipc.WithAllocator(aw.mem)}
	switch strings.ToLower(aw.config.Compression) {
	case CompressionLZ4:
		opts = append(opts, ipc.WithLZ4())
	case CompressionZstd:
		opts = append(opts, ipc.WithZstd())
	}

	if aw.config.Format == Stream {
		aw.ipc = ipc.NewWriter(aw.out, opts...)
	} else {
		fw, err := ipc.NewFileWriter(aw.out, opts...)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to create Arrow writer")
		}
		aw.ipc = fw
	}
	aw.schema = schema
	return nil
}

func (aw *arrowWriter) WriteBatch(batch *series.Batch) error {
	if batch == nil {
		return nil
	}
	rec := batch.Record()
	defer rec.Release()
	return aw.WriteRecord(rec)
}

func (aw *arrowWriter) WriteRecord(rec arrow.Record) error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	if aw.closed {
		return errors.New(errors.ErrorTypeInternal, "write to closed Arrow writer")
	}
	if aw.ipc == nil {
		if err := aw.open(rec.Schema()); err != nil {
			return err
		}
	} else if !aw.schema.Equal(rec.Schema()) {
		return SchemaChangedError(aw.schema, rec.Schema())
	}

	if err := aw.ipc.Write(rec); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write record batch")
	}
	aw.recordsWritten += rec.NumRows()
	aw.batchesWritten++
	return nil
}

func (aw *arrowWriter) Schema() *arrow.Schema {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.schema
}

// Close writes the footer. An output that never saw a batch gets an empty
// schema so that it is still a valid IPC file or stream.
func (aw *arrowWriter) Close() error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	if aw.closed {
		return nil
	}
	aw.closed = true
	if aw.ipc == nil {
		if err := aw.open(arrow.NewSchema(nil, nil)); err != nil {
			return err
		}
	}
	if err := aw.ipc.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close Arrow writer")
	}
	return nil
}

func (aw *arrowWriter) Format() Format {
	return aw.config.Format
}

func (aw *arrowWriter) BytesWritten() int64 {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.out.n
}

func (aw *arrowWriter) RecordsWritten() int64 {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.recordsWritten
}

func (aw *arrowWriter) BatchesWritten() int64 {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.batchesWritten
}

// arrowFileReader implements Reader for the IPC file format
type arrowFileReader struct {
	fileReader *ipc.FileReader
	index      int
}

func (ar *arrowFileReader) Schema() *arrow.Schema { return ar.fileReader.Schema() }

func (ar *arrowFileReader) Next() (arrow.Record, error) {
	if ar.index >= ar.fileReader.NumRecords() {
		return nil, io.EOF
	}
	rec, err := ar.fileReader.RecordAt(ar.index)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read record batch")
	}
	ar.index++
	return rec, nil
}

func (ar *arrowFileReader) Close() error { return ar.fileReader.Close() }

func (ar *arrowFileReader) Format() Format { return File }

// arrowStreamReader implements Reader for the IPC stream format
type arrowStreamReader struct {
	reader *ipc.Reader
}

func (ar *arrowStreamReader) Schema() *arrow.Schema { return ar.reader.Schema() }

func (ar *arrowStreamReader) Next() (arrow.Record, error) {
	if !ar.reader.Next() {
		if err := ar.reader.Err(); err != nil && err != io.EOF {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read record batch")
		}
		return nil, io.EOF
	}
	rec := ar.reader.Record()
	rec.Retain()
	return rec, nil
}

func (ar *arrowStreamReader) Close() error {
	ar.reader.Release()
	return nil
}

func (ar *arrowStreamReader) Format() Format { return Stream }

// NewArrowReader opens an Arrow IPC input. The file format needs random
// access; inputs that are not seekable are read into memory first. An empty
// config format detects file or stream framing.
func NewArrowReader(r io.Reader, config *ReaderConfig) (Reader, error) {
	if config == nil {
		config = &ReaderConfig{}
	}
	mem := config.Allocator
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	format := config.Format
	if format == "" {
		br := bufio.NewReader(r)
		head, err := br.Peek(len(fileMagic))
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read Arrow data")
		}
		format = Stream
		if bytes.Equal(head, fileMagic) {
			format = File
		}
		r = br
	}

	switch format {
	case File:
		ras, err := readAtSeeker(r)
		if err != nil {
			return nil, err
		}
		fr, err := ipc.NewFileReader(ras, ipc.WithAllocator(mem))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to create Arrow reader")
		}
		return &arrowFileReader{fileReader: fr}, nil
	case Stream:
		sr, err := ipc.NewReader(r, ipc.WithAllocator(mem))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to create Arrow reader")
		}
		return &arrowStreamReader{reader: sr}, nil
	default:
		return nil, errors.New(errors.ErrorTypeConfig, "unsupported Arrow IPC format: "+string(format))
	}
}

// ReadAll reads every batch of an Arrow IPC or Parquet input and
// concatenates them into one table. The caller releases the table.
func ReadAll(r io.Reader, config *ReaderConfig) (arrow.Table, error) {
	reader, err := NewReader(r, config)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var recs []arrow.Record
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return array.NewTableFromRecords(reader.Schema(), recs), nil
}
