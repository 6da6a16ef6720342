package columnar

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/columnforge/pkg/errors"
	"github.com/ajitpratap0/columnforge/pkg/series"
)

func writeParquet(t *testing.T, codec string, batches ...*series.Batch) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, &WriterConfig{Format: Parquet, Compression: codec})
	require.NoError(t, err)
	for _, b := range batches {
		require.NoError(t, w.WriteBatch(b))
	}
	require.NoError(t, w.Close())
	assert.Equal(t, Parquet, w.Format())
	assert.Equal(t, int64(buf.Len()), w.BytesWritten())
	assert.Equal(t, int64(len(batches)), w.BatchesWritten())
	return buf.Bytes()
}

func TestParquetUnionsAsStructs(t *testing.T) {
	for _, codec := range []string{CompressionNone, CompressionSnappy, CompressionZstd} {
		t.Run(codec, func(t *testing.T) {
			batch := heterogeneous(t)
			defer batch.Release()
			data := writeParquet(t, codec, batch, batch)

			r, err := NewReader(bytes.NewReader(data), nil)
			require.NoError(t, err)
			defer r.Close()
			assert.Equal(t, Parquet, r.Format())

			schema := r.Schema()
			require.Equal(t, 3, schema.NumFields())
			a := schema.Field(0).Type.(*arrow.StructType)
			require.Equal(t, 3, a.NumFields())
			assert.Equal(t, "string", a.Field(0).Name)
			assert.Equal(t, "int64", a.Field(1).Name)
			assert.Equal(t, "record", a.Field(2).Name)
			assert.Equal(t, arrow.LIST, schema.Field(1).Type.ID())
			assert.Equal(t, arrow.NULL, schema.Field(2).Type.ID())

			rows := int64(0)
			var first arrow.Record
			for {
				rec, err := r.Next()
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				rows += rec.NumRows()
				if first == nil {
					first = rec
				} else {
					rec.Release()
				}
			}
			assert.Equal(t, int64(6), rows)
			require.NotNil(t, first)
			defer first.Release()

			col := first.Column(0).(*array.Struct)
			assert.Equal(t, "hello", col.Field(0).(*array.String).Value(0))
			assert.True(t, col.Field(1).IsNull(0))
			assert.True(t, col.Field(0).IsNull(1))
			assert.Equal(t, int64(42), col.Field(1).(*array.Int64).Value(1))
			nested := col.Field(2).(*array.Struct)
			assert.True(t, nested.IsNull(0))
			assert.Equal(t, int64(43), nested.Field(0).(*array.Int64).Value(2))

			tags := first.Column(1).(*array.List)
			assert.False(t, tags.IsNull(0))
			assert.True(t, tags.IsNull(1))
			start, end := tags.ValueOffsets(0)
			assert.Equal(t, int64(2), end-start)
		})
	}
}

func TestParquetReadAll(t *testing.T) {
	batch := heterogeneous(t)
	defer batch.Release()
	data := writeParquet(t, CompressionGzip, batch, batch)

	table, err := ReadAll(bytes.NewReader(data), nil)
	require.NoError(t, err)
	defer table.Release()
	assert.Equal(t, int64(6), table.NumRows())
	assert.Equal(t, int64(3), table.NumCols())
}

func TestParquetDenseUnion(t *testing.T) {
	b := series.New(series.WithUnionMode(series.UnionDense))
	b.Data(series.Object{{Key: "v", Value: int64(1)}})
	b.Data(series.Object{{Key: "v", Value: "two"}})
	b.Data(series.Object{{Key: "v", Value: int64(3)}})
	b.Data(series.Object{{Key: "v", Value: nil}})
	batch := b.FinishAsBatch()
	defer batch.Release()
	require.Equal(t, arrow.DENSE_UNION, batch.Columns[0].Type.ID())

	table, err := ReadAll(bytes.NewReader(writeParquet(t, CompressionNone, batch)), nil)
	require.NoError(t, err)
	defer table.Release()

	col := table.Column(0).Data().Chunk(0).(*array.Struct)
	ints := col.Field(0).(*array.Int64)
	strs := col.Field(1).(*array.String)
	assert.Equal(t, int64(1), ints.Value(0))
	assert.Equal(t, "two", strs.Value(1))
	assert.True(t, ints.IsNull(1))
	assert.Equal(t, int64(3), ints.Value(2))
	assert.True(t, col.IsNull(3))
}

func TestParquetSchemaChange(t *testing.T) {
	first := buildBatch(t, series.Object{{Key: "a", Value: int64(1)}})
	defer first.Release()
	second := buildBatch(t, series.Object{{Key: "b", Value: int64(1)}})
	defer second.Release()

	w, err := NewWriter(&bytes.Buffer{}, &WriterConfig{Format: Parquet})
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch(first))
	err = w.WriteBatch(second)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	require.NoError(t, w.Close())
}

func TestStoredType(t *testing.T) {
	dt, err := storedType(arrow.FixedWidthTypes.Duration_ns)
	require.NoError(t, err)
	assert.Equal(t, arrow.INT64, dt.ID())

	dt, err = storedType(arrow.StructOf())
	require.NoError(t, err)
	assert.Equal(t, arrow.NULL, dt.ID())

	dt, err = storedType(arrow.ListOf(arrow.SparseUnionOf([]arrow.Field{
		{Name: "int64", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "time", Type: arrow.FixedWidthTypes.Timestamp_ns, Nullable: true},
	}, []arrow.UnionTypeCode{0, 1})))
	require.NoError(t, err)
	elem := dt.(*arrow.ListType).Elem().(*arrow.StructType)
	assert.Equal(t, 2, elem.NumFields())
	assert.Equal(t, arrow.TIMESTAMP, elem.Field(1).Type.ID())

	_, err = storedType(arrow.PrimitiveTypes.Int32)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
}

func TestParquetDurationStoredAsInt(t *testing.T) {
	b := series.New()
	b.Record(func(r *series.RecordGuard) {
		r.Field("took").Atom(1500 * time.Millisecond)
	})
	batch := b.FinishAsBatch()
	defer batch.Release()

	table, err := ReadAll(bytes.NewReader(writeParquet(t, CompressionLZ4, batch)), nil)
	require.NoError(t, err)
	defer table.Release()
	col := table.Column(0).Data().Chunk(0).(*array.Int64)
	assert.Equal(t, int64(1500*time.Millisecond), col.Value(0))
}
