package columnar

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/columnforge/pkg/errors"
	"github.com/ajitpratap0/columnforge/pkg/series"
)

func readAvro(t *testing.T, data []byte) (*goavro.Codec, []map[string]interface{}) {
	t.Helper()
	ocf, err := goavro.NewOCFReader(bytes.NewReader(data))
	require.NoError(t, err)
	var rows []map[string]interface{}
	for ocf.Scan() {
		datum, err := ocf.Read()
		require.NoError(t, err)
		rows = append(rows, datum.(map[string]interface{}))
	}
	require.NoError(t, ocf.Err())
	return ocf.Codec(), rows
}

func TestAvroUnions(t *testing.T) {
	for _, codec := range []string{CompressionNone, CompressionDeflate, CompressionSnappy} {
		t.Run(codec, func(t *testing.T) {
			batch := heterogeneous(t)
			defer batch.Release()

			var buf bytes.Buffer
			w, err := NewWriter(&buf, &WriterConfig{Format: Avro, Compression: codec})
			require.NoError(t, err)
			require.NoError(t, w.WriteBatch(batch))
			require.NoError(t, w.Close())
			assert.Equal(t, Avro, w.Format())
			assert.Equal(t, int64(3), w.RecordsWritten())
			assert.Equal(t, int64(buf.Len()), w.BytesWritten())

			_, rows := readAvro(t, buf.Bytes())
			require.Len(t, rows, 3)

			assert.Equal(t, map[string]interface{}{"string": "hello"}, rows[0]["a"])
			assert.Equal(t, map[string]interface{}{"long": int64(42)}, rows[1]["a"])
			assert.Equal(t, map[string]interface{}{
				"record_1": map[string]interface{}{"b": map[string]interface{}{"long": int64(43)}},
			}, rows[2]["a"])

			assert.Equal(t, map[string]interface{}{"array": []interface{}{
				map[string]interface{}{"long": int64(1)},
				map[string]interface{}{"long": int64(2)},
			}}, rows[0]["tags"])
			assert.Nil(t, rows[1]["tags"])
			assert.Nil(t, rows[0]["gone"])
		})
	}
}

func TestAvroAtoms(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 123456000, time.UTC)
	b := series.New()
	b.Record(func(r *series.RecordGuard) {
		r.Field("at").Atom(at)
		r.Field("took").Atom(1500 * time.Microsecond)
		r.Field("big").Atom(uint64(math.MaxUint64))
		r.Field("raw").Atom([]byte{1, 2})
		r.Field("my field").Atom(2.5)
		r.Field("1st").Atom(true)
	})
	batch := b.FinishAsBatch()
	defer batch.Release()

	var buf bytes.Buffer
	w, err := NewWriter(&buf, &WriterConfig{Format: Avro})
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch(batch))
	require.NoError(t, w.Close())

	codec, rows := readAvro(t, buf.Bytes())
	require.Len(t, rows, 1)
	row := rows[0]

	got := row["at"].(map[string]interface{})["long.timestamp-micros"].(time.Time)
	assert.True(t, at.Equal(got), "got %s", got)
	assert.Equal(t, map[string]interface{}{"long.time-micros": 1500 * time.Microsecond}, row["took"])
	assert.Equal(t, map[string]interface{}{"uint64": bytes.Repeat([]byte{0xff}, 8)}, row["big"])
	assert.Equal(t, map[string]interface{}{"bytes": []byte{1, 2}}, row["raw"])
	assert.Equal(t, map[string]interface{}{"double": 2.5}, row["my_field"])
	assert.Equal(t, map[string]interface{}{"boolean": true}, row["_1st"])
	assert.Contains(t, codec.Schema(), `"doc":"my field"`)
}

func TestAvroEmptyOutput(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, &WriterConfig{Format: Avro})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, rows := readAvro(t, buf.Bytes())
	assert.Empty(t, rows)
}

func TestAvroSchemaChange(t *testing.T) {
	first := buildBatch(t, series.Object{{Key: "a", Value: int64(1)}})
	defer first.Release()
	second := buildBatch(t, series.Object{{Key: "a", Value: "x"}})
	defer second.Release()

	w, err := NewWriter(&bytes.Buffer{}, &WriterConfig{Format: Avro})
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch(first))
	err = w.WriteBatch(second)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestAvroNames(t *testing.T) {
	taken := map[string]bool{}
	assert.Equal(t, "a_b", uniqueAvroName(avroName("a b"), taken))
	assert.Equal(t, "a_b_2", uniqueAvroName(avroName("a_b"), taken))
	assert.Equal(t, "_9lives", avroName("9lives"))
	assert.Equal(t, "_", avroName(""))
	assert.Equal(t, "caf_", avroName("café"))
}
