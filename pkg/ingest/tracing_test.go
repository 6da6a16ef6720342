package ingest

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
)

func TestReadBatchSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	exporter := tracetest.NewInMemoryExporter()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)))

	input := `{"v": 1}
{"v": "x"}
{"v": 3}`
	r := NewJSONReader(strings.NewReader(input), ReaderConfig{BatchSize: 2}, zaptest.NewLogger(t))
	batches := readAll(t, r)
	defer release(batches)
	require.Len(t, batches, 2)

	bad := NewJSONReader(strings.NewReader(`42`), ReaderConfig{}, zaptest.NewLogger(t))
	_, err := bad.ReadBatch(context.Background())
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)

	spans := exporter.GetSpans()
	// two batches, the final io.EOF, and the failed read
	require.Len(t, spans, 4)
	for _, s := range spans {
		assert.Equal(t, "ingest.read_batch", s.Name)
	}

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "lines", attrs["format"].AsString())
	assert.Equal(t, int64(2), attrs["rows"].AsInt64())
	assert.Equal(t, int64(2), attrs["documents"].AsInt64())
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, codes.Ok, spans[2].Status.Code)
	assert.Equal(t, codes.Error, spans[3].Status.Code)
}
