package ingest

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/columnforge/pkg/errors"
	"github.com/ajitpratap0/columnforge/pkg/metrics"
	"github.com/ajitpratap0/columnforge/pkg/series"
	cftest "github.com/ajitpratap0/columnforge/pkg/testutil"
)

func readAll(t *testing.T, r *JSONReader) []*series.Batch {
	t.Helper()
	var batches []*series.Batch
	for {
		batch, err := r.ReadBatch(context.Background())
		if err == io.EOF {
			return batches
		}
		require.NoError(t, err)
		batches = append(batches, batch)
	}
}

func release(batches []*series.Batch) {
	for _, b := range batches {
		b.Release()
	}
}

func TestReadLines(t *testing.T) {
	mem := cftest.Allocator(t)

	input := `{"id": 1, "name": "a"}
{"id": 2}

{"id": "three", "tags": [1, 2]}
`
	r := NewJSONReader(strings.NewReader(input), ReaderConfig{Format: FormatLines}, zaptest.NewLogger(t),
		WithSeriesOptions(series.WithAllocator(mem)))
	batches := readAll(t, r)
	defer release(batches)

	require.Len(t, batches, 1)
	batch := batches[0]
	assert.Equal(t, 3, batch.Rows)
	require.Len(t, batch.Columns, 3)
	assert.Equal(t, "id", batch.Columns[0].Name)
	assert.Equal(t, arrow.SPARSE_UNION, batch.Columns[0].Type.ID())
	assert.Equal(t, arrow.STRING, batch.Columns[1].Type.ID())
	assert.Equal(t, 2, batch.Columns[1].Array.NullN())
	assert.Equal(t, arrow.LIST, batch.Columns[2].Type.ID())

	assert.Equal(t, ReaderStats{Documents: 3, Batches: 1}, r.Stats())
}

func TestReadArrayBatches(t *testing.T) {
	input := ` [ {"v": 1}, {"v": 2}, {"v": 3}, {"v": 4}, {"v": 5} ] `
	r := NewJSONReader(strings.NewReader(input), ReaderConfig{BatchSize: 2}, zaptest.NewLogger(t))
	batches := readAll(t, r)
	defer release(batches)

	assert.Equal(t, FormatArray, r.Format())
	require.Len(t, batches, 3)
	assert.Equal(t, 2, batches[0].Rows)
	assert.Equal(t, 2, batches[1].Rows)
	assert.Equal(t, 1, batches[2].Rows)

	last := batches[2].Column("v").Array.(*array.Int64)
	assert.Equal(t, int64(5), last.Value(0))
}

func TestReadAutoDetectsLines(t *testing.T) {
	r := NewJSONReader(strings.NewReader("\n\n  {\"a\": true}"), ReaderConfig{}, nil)
	batches := readAll(t, r)
	defer release(batches)

	assert.Equal(t, FormatLines, r.Format())
	require.Len(t, batches, 1)
	assert.Equal(t, arrow.BOOL, batches[0].Columns[0].Type.ID())
}

func TestReadEmptyInput(t *testing.T) {
	for _, input := range []string{"", "   \n", "[]", " [ ] "} {
		r := NewJSONReader(strings.NewReader(input), ReaderConfig{}, nil)
		_, err := r.ReadBatch(context.Background())
		assert.Equal(t, io.EOF, err, "input %q", input)
	}
}

func TestReadRejects(t *testing.T) {
	cases := map[string]struct {
		input  string
		format Format
	}{
		"not an object":   {`{"a": 1} 42`, FormatLines},
		"duplicate key":   {`{"a": 1, "a": 2}`, FormatLines},
		"malformed":       {`{"a": }`, FormatLines},
		"not an array":    {`{"a": 1}`, FormatArray},
		"unclosed array":  {`[{"a": 1}`, FormatArray},
		"trailing data":   {`[{"a": 1}] {"b": 2}`, FormatArray},
		"array of arrays": {`[[1]]`, FormatArray},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := NewJSONReader(strings.NewReader(tc.input), ReaderConfig{Format: tc.format}, zaptest.NewLogger(t))
			_, err := r.ReadBatch(context.Background())
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeData), "got %v", err)
		})
	}
}

func TestReadNumberOutOfRange(t *testing.T) {
	for _, input := range []string{`{"a": 1e400}`, `{"a": [1, -1e400]}`, `[{"a": {"b": 2e999}}]`} {
		r := NewJSONReader(strings.NewReader(input+"\n"), ReaderConfig{}, zaptest.NewLogger(t))
		var err error
		require.NotPanics(t, func() { _, err = r.ReadBatch(context.Background()) }, "input %s", input)
		require.Error(t, err, "input %s", input)
		assert.True(t, errors.IsType(err, errors.ErrorTypeData), "got %v", err)
		assert.Equal(t, int64(1), r.Stats().Rejected)
	}

	input := `{"a": 1}
{"a": 1e400, "b": "x"}
{"a": 2, "c": {"a": 1, "a": 2}}
{"a": 3.5}`
	r := NewJSONReader(strings.NewReader(input), ReaderConfig{SkipInvalid: true}, zaptest.NewLogger(t))
	batches := readAll(t, r)
	defer release(batches)

	require.Len(t, batches, 1)
	assert.Equal(t, 2, batches[0].Rows)
	assert.Equal(t, ReaderStats{Documents: 2, Rejected: 2, Batches: 1}, r.Stats())
	require.Len(t, batches[0].Columns, 1)
	assert.Equal(t, arrow.SPARSE_UNION, batches[0].Columns[0].Type.ID())
}

func TestReadSkipInvalid(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("test", reg)

	input := `{"a": 1} "x" {"a": 2} [3]`
	r := NewJSONReader(strings.NewReader(input), ReaderConfig{SkipInvalid: true}, zaptest.NewLogger(t),
		WithMetrics(collector))
	batches := readAll(t, r)
	defer release(batches)

	require.Len(t, batches, 1)
	assert.Equal(t, 2, batches[0].Rows)
	assert.Equal(t, ReaderStats{Documents: 2, Rejected: 2, Batches: 1}, r.Stats())

	all := collector.GetAll()
	assert.Equal(t, float64(2), all["documents_accepted"])
	assert.Equal(t, float64(2), all["documents_rejected"])
	assert.Equal(t, float64(2), all["rows"])
	assert.Equal(t, float64(1), all[metrics.EventFieldCreated])
}

func TestReadMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("events", reg)

	input := `{"a": 1} {"a": "x", "b": null} {"a": true}`
	r := NewJSONReader(strings.NewReader(input), ReaderConfig{}, zaptest.NewLogger(t), WithMetrics(collector))
	batches := readAll(t, r)
	defer release(batches)

	all := collector.GetAll()
	assert.Equal(t, float64(2), all[metrics.EventFieldCreated])
	assert.Equal(t, float64(1), all[metrics.EventUnionCreated])
	assert.Equal(t, float64(2), all[metrics.EventVariantAdded])
	assert.Equal(t, float64(1), all["batches"])

	n, err := testutil.GatherAndCount(reg, "columnforge_documents_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Greater(t, r.Throughput(), float64(0))
}

func TestReadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewJSONReader(strings.NewReader(`{"a": 1}`), ReaderConfig{}, nil)
	_, err := r.ReadBatch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStream(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		sb.WriteString(`{"n": 1}` + "\n")
	}
	r := NewJSONReader(strings.NewReader(sb.String()), ReaderConfig{BatchSize: 3}, cftest.TestLogger(t))
	stream := r.Stream(cftest.TestContext(t), 1)

	rows := 0
	batches := 0
	for batch := range stream.Batches {
		rows += batch.Rows
		batches++
		batch.Release()
	}
	assert.NoError(t, <-stream.Errors)
	assert.Equal(t, 10, rows)
	assert.Equal(t, 4, batches)
}

func TestStreamError(t *testing.T) {
	r := NewJSONReader(strings.NewReader(`{"n": 1} {"n": `), ReaderConfig{BatchSize: 1}, nil)
	stream := r.Stream(context.Background(), 0)

	for batch := range stream.Batches {
		batch.Release()
	}
	err := <-stream.Errors
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("NDJSON")
	require.NoError(t, err)
	assert.Equal(t, FormatLines, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatAuto, f)

	_, err = ParseFormat("xml")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
