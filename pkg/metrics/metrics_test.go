package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("events.ndjson", reg)

	c.RecordDocument(StatusAccepted)
	c.RecordDocument(StatusAccepted)
	c.RecordDocument(StatusRejected)
	c.ObserveBatch(2, 3*time.Millisecond)
	c.RecordBuilderEvents(EventUnionCreated, 1)
	c.RecordBuilderEvents(EventVariantAdded, 0)
	c.AddBytesWritten(512)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.documents.WithLabelValues("events.ndjson", StatusAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.documents.WithLabelValues("events.ndjson", StatusRejected)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.rows.WithLabelValues("events.ndjson")))
	assert.Equal(t, 512.0, testutil.ToFloat64(c.bytesWritten.WithLabelValues("events.ndjson")))

	expected := `
# HELP columnforge_builder_events_total Structural events of the series builder
# TYPE columnforge_builder_events_total counter
columnforge_builder_events_total{event="batch_finished",input="events.ndjson"} 1
columnforge_builder_events_total{event="union_created",input="events.ndjson"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "columnforge_builder_events_total"))

	all := c.GetAll()
	assert.Equal(t, "events.ndjson", all["input"])
	assert.Equal(t, 2.0, all["documents_accepted"])
	assert.Equal(t, 1.0, all["batches"])
	_, ok := all[EventVariantAdded]
	assert.False(t, ok)
}

func TestCollectorsDoNotClash(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollector("a", nil)
		NewCollector("b", nil)
	})
}

func TestThroughputTracker(t *testing.T) {
	c := NewCollector("in", nil)
	tr := NewThroughputTracker(c)
	tr.Increment(10)
	time.Sleep(5 * time.Millisecond)

	rate := tr.GetAndReset()
	assert.Greater(t, rate, 0.0)
	assert.Equal(t, rate, testutil.ToFloat64(c.throughput.WithLabelValues("in")))
	assert.Equal(t, int64(0), tr.count)
}

func TestTimer(t *testing.T) {
	timer := NewTimer("build")
	time.Sleep(time.Millisecond)
	assert.Equal(t, "build", timer.Name())
	assert.GreaterOrEqual(t, timer.Stop(), time.Millisecond)
}
