package columnar

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/columnforge/pkg/errors"
	"github.com/ajitpratap0/columnforge/pkg/series"
)

const defaultParquetBatchSize = 64 * 1024

// parquetWriter implements Writer for Parquet. Parquet has no union type:
// a union column is stored as a struct with one nullable field per variant,
// and only the field of the active variant is set in a row. Durations are
// stored as int64 nanoseconds and records without fields as nulls.
type parquetWriter struct {
	out            *countingWriter
	config         *WriterConfig
	mem            memory.Allocator
	schema         *arrow.Schema
	stored         *arrow.Schema
	fw             *pqarrow.FileWriter
	recordsWritten int64
	batchesWritten int64
	closed         bool
	mu             sync.Mutex
}

func newParquetWriter(w io.Writer, config *WriterConfig) (*parquetWriter, error) {
	mem := config.Allocator
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &parquetWriter{
		out:    &countingWriter{w: w},
		config: config,
		mem:    mem,
	}, nil
}

func parquetCodec(name string) compress.Compression {
	switch strings.ToLower(name) {
	case CompressionSnappy:
		return compress.Codecs.Snappy
	case CompressionGzip:
		return compress.Codecs.Gzip
	case CompressionZstd:
		return compress.Codecs.Zstd
	case CompressionLZ4:
		return compress.Codecs.Lz4Raw
	case CompressionBrotli:
		return compress.Codecs.Brotli
	default:
		return compress.Codecs.Uncompressed
	}
}

func (pw *parquetWriter) open(schema *arrow.Schema) error {
	stored, err := parquetSchema(schema)
	if err != nil {
		return err
	}
	opts := []parquet.WriterProperty{
		parquet.WithCompression(parquetCodec(pw.config.Compression)),
		parquet.WithAllocator(pw.mem),
	}
	if pw.config.RowGroupSize > 0 {
		opts = append(opts, parquet.WithMaxRowGroupLength(pw.config.RowGroupSize))
	}
	fw, err := pqarrow.NewFileWriter(stored, pw.out, parquet.NewWriterProperties(opts...),
		pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema(), pqarrow.WithAllocator(pw.mem)))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create Parquet writer")
	}
	pw.fw, pw.schema, pw.stored = fw, schema, stored
	return nil
}

func (pw *parquetWriter) WriteBatch(batch *series.Batch) error {
	if batch == nil {
		return nil
	}
	rec := batch.Record()
	defer rec.Release()
	return pw.WriteRecord(rec)
}

func (pw *parquetWriter) WriteRecord(rec arrow.Record) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.closed {
		return errors.New(errors.ErrorTypeInternal, "write to closed Parquet writer")
	}
	if pw.fw == nil {
		if err := pw.open(rec.Schema()); err != nil {
			return err
		}
	} else if !pw.schema.Equal(rec.Schema()) {
		return SchemaChangedError(pw.schema, rec.Schema())
	}

	stored := rec
	if !pw.stored.Equal(pw.schema) {
		var err error
		if stored, err = storeRecord(pw.mem, pw.stored, rec); err != nil {
			return err
		}
		defer stored.Release()
	}
	if err := pw.fw.Write(stored); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write row group")
	}
	pw.recordsWritten += rec.NumRows()
	pw.batchesWritten++
	return nil
}

func (pw *parquetWriter) Schema() *arrow.Schema {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return pw.schema
}

// Close writes the footer. An output that never saw a batch gets an empty
// schema.
func (pw *parquetWriter) Close() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.closed {
		return nil
	}
	pw.closed = true
	if pw.fw == nil {
		if err := pw.open(arrow.NewSchema(nil, nil)); err != nil {
			return err
		}
	}
	if err := pw.fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close Parquet writer")
	}
	return nil
}

func (pw *parquetWriter) Format() Format {
	return Parquet
}

func (pw *parquetWriter) BytesWritten() int64 {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return pw.out.n
}

func (pw *parquetWriter) RecordsWritten() int64 {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return pw.recordsWritten
}

func (pw *parquetWriter) BatchesWritten() int64 {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return pw.batchesWritten
}

// parquetSchema returns the schema a batch is stored with in Parquet.
func parquetSchema(schema *arrow.Schema) (*arrow.Schema, error) {
	fields := make([]arrow.Field, schema.NumFields())
	for i, f := range schema.Fields() {
		dt, err := storedType(f.Type)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "column cannot be stored in Parquet").
				WithDetail("column", f.Name)
		}
		fields[i] = arrow.Field{Name: f.Name, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

func storedType(dt arrow.DataType) (arrow.DataType, error) {
	switch t := dt.(type) {
	case arrow.UnionType:
		fields := make([]arrow.Field, len(t.Fields()))
		for i, f := range t.Fields() {
			ft, err := storedType(f.Type)
			if err != nil {
				return nil, err
			}
			fields[i] = arrow.Field{Name: f.Name, Type: ft, Nullable: true}
		}
		return arrow.StructOf(fields...), nil
	case *arrow.StructType:
		if t.NumFields() == 0 {
			return arrow.Null, nil
		}
		fields := make([]arrow.Field, t.NumFields())
		for i, f := range t.Fields() {
			ft, err := storedType(f.Type)
			if err != nil {
				return nil, err
			}
			fields[i] = arrow.Field{Name: f.Name, Type: ft, Nullable: true}
		}
		return arrow.StructOf(fields...), nil
	case *arrow.ListType:
		et, err := storedType(t.Elem())
		if err != nil {
			return nil, err
		}
		return arrow.ListOf(et), nil
	case *arrow.DurationType:
		return arrow.PrimitiveTypes.Int64, nil
	case *arrow.NullType, *arrow.BooleanType, *arrow.Int64Type, *arrow.Uint64Type,
		*arrow.Float64Type, *arrow.StringType, *arrow.BinaryType, *arrow.TimestampType:
		return dt, nil
	default:
		return nil, errors.New(errors.ErrorTypeCapability, "unsupported type: "+dt.String())
	}
}

// storeRecord copies rec into the stored schema row by row.
func storeRecord(mem memory.Allocator, stored *arrow.Schema, rec arrow.Record) (arrow.Record, error) {
	rb := array.NewRecordBuilder(mem, stored)
	defer rb.Release()

	for c, col := range rec.Columns() {
		fb := rb.Field(c)
		fb.Reserve(col.Len())
		for i := 0; i < col.Len(); i++ {
			if err := appendStored(fb, col, i); err != nil {
				return nil, err
			}
		}
	}
	return rb.NewRecord(), nil
}

func appendStored(b array.Builder, arr arrow.Array, i int) error {
	if u, ok := arr.(array.Union); ok {
		sb := b.(*array.StructBuilder)
		child := u.ChildID(i)
		idx := i
		if d, ok := u.(*array.DenseUnion); ok {
			idx = int(d.ValueOffset(i))
		}
		if u.Field(child).IsNull(idx) {
			sb.AppendNull()
			return nil
		}
		sb.Append(true)
		for j := 0; j < sb.NumField(); j++ {
			if j != child {
				sb.FieldBuilder(j).AppendNull()
				continue
			}
			if err := appendStored(sb.FieldBuilder(j), u.Field(child), idx); err != nil {
				return err
			}
		}
		return nil
	}

	if arr.IsNull(i) {
		b.AppendNull()
		return nil
	}
	switch a := arr.(type) {
	case *array.Null:
		b.AppendNull()
	case *array.Boolean:
		b.(*array.BooleanBuilder).Append(a.Value(i))
	case *array.Int64:
		b.(*array.Int64Builder).Append(a.Value(i))
	case *array.Uint64:
		b.(*array.Uint64Builder).Append(a.Value(i))
	case *array.Float64:
		b.(*array.Float64Builder).Append(a.Value(i))
	case *array.String:
		b.(*array.StringBuilder).Append(a.Value(i))
	case *array.Binary:
		b.(*array.BinaryBuilder).Append(a.Value(i))
	case *array.Timestamp:
		b.(*array.TimestampBuilder).Append(a.Value(i))
	case *array.Duration:
		b.(*array.Int64Builder).Append(int64(a.Value(i)))
	case *array.Struct:
		if a.NumField() == 0 {
			b.AppendNull()
			return nil
		}
		sb := b.(*array.StructBuilder)
		sb.Append(true)
		for j := 0; j < a.NumField(); j++ {
			if err := appendStored(sb.FieldBuilder(j), a.Field(j), i); err != nil {
				return err
			}
		}
	case *array.List:
		lb := b.(*array.ListBuilder)
		lb.Append(true)
		start, end := a.ValueOffsets(i)
		for j := start; j < end; j++ {
			if err := appendStored(lb.ValueBuilder(), a.ListValues(), int(j)); err != nil {
				return err
			}
		}
	default:
		return errors.New(errors.ErrorTypeCapability, "unsupported type: "+arr.DataType().String())
	}
	return nil
}

// parquetReader implements Reader for Parquet files
type parquetReader struct {
	pf *file.Reader
	rr pqarrow.RecordReader
}

func newParquetReader(r io.Reader, config *ReaderConfig) (*parquetReader, error) {
	ras, err := readAtSeeker(r)
	if err != nil {
		return nil, err
	}
	mem := config.Allocator
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = defaultParquetBatchSize
	}

	pf, err := file.NewParquetReader(ras)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open Parquet file")
	}
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: batchSize}, mem)
	if err != nil {
		_ = pf.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to create Parquet reader")
	}
	rr, err := fr.GetRecordReader(context.Background(), nil, nil)
	if err != nil {
		_ = pf.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to create Parquet reader")
	}
	return &parquetReader{pf: pf, rr: rr}, nil
}

func (pr *parquetReader) Schema() *arrow.Schema { return pr.rr.Schema() }

func (pr *parquetReader) Next() (arrow.Record, error) {
	if !pr.rr.Next() {
		if err := pr.rr.Err(); err != nil && err != io.EOF {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read row group")
		}
		return nil, io.EOF
	}
	rec := pr.rr.Record()
	rec.Retain()
	return rec, nil
}

func (pr *parquetReader) Close() error {
	pr.rr.Release()
	return pr.pf.Close()
}

func (pr *parquetReader) Format() Format { return Parquet }
