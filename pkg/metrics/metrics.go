// Package metrics provides Prometheus metrics for columnforge ingest runs.
//
// # Overview
//
// The metrics package provides:
//   - A Collector owning the ingest metrics on a caller supplied registry
//   - Counters for documents, batches, rows and builder structure events
//   - A histogram of batch build latency
//   - Throughput tracking in documents per second
//
// # Basic Usage
//
//	reg := prometheus.NewRegistry()
//	collector := metrics.NewCollector("events.ndjson", reg)
//
//	timer := metrics.NewTimer("build_batch")
//	batch, err := reader.ReadBatch(ctx)
//	collector.ObserveBatch(batch.Rows, timer.Stop())
//
// Each Collector registers its metrics on its own registry, so several
// collectors can coexist in one process and in tests.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "columnforge"

// Document outcomes.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Builder structure events.
const (
	EventFieldCreated  = "field_created"
	EventUnionCreated  = "union_created"
	EventVariantAdded  = "variant_added"
	EventBatchFinished = "batch_finished"
)

// Collector records the metrics of one input. It is safe for concurrent use.
type Collector struct {
	input string

	documents     *prometheus.CounterVec
	batches       *prometheus.CounterVec
	rows          *prometheus.CounterVec
	builderEvents *prometheus.CounterVec
	buildLatency  *prometheus.HistogramVec
	bytesWritten  *prometheus.CounterVec
	throughput    *prometheus.GaugeVec

	startTime time.Time
	mu        sync.RWMutex
	totals    map[string]float64
}

// NewCollector creates the ingest metrics on reg. A nil reg gets a fresh
// private registry.
//
// Example:
//
//	collector := metrics.NewCollector("events.ndjson", reg)
//	collector.RecordDocument(metrics.StatusAccepted)
func NewCollector(input string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Collector{
		input: input,
		documents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "documents_total",
				Help:      "Total number of input documents read",
			},
			[]string{"input", "status"},
		),
		batches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "batches_total",
				Help:      "Total number of batches built",
			},
			[]string{"input"},
		),
		rows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "rows_total",
				Help:      "Total number of rows committed to batches",
			},
			[]string{"input"},
		),
		builderEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "builder_events_total",
				Help:      "Structural events of the series builder",
			},
			[]string{"input", "event"},
		),
		buildLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "batch_build_seconds",
				Help:      "Time spent reading and building one batch",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{"input"},
		),
		bytesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "output_bytes_total",
				Help:      "Total number of bytes written to the output",
			},
			[]string{"input"},
		),
		throughput: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "throughput_documents_per_second",
				Help:      "Current throughput in documents per second",
			},
			[]string{"input"},
		),
		startTime: time.Now(),
		totals:    make(map[string]float64),
	}
}

func (c *Collector) add(key string, v float64) {
	c.mu.Lock()
	c.totals[key] += v
	c.mu.Unlock()
}

// RecordDocument counts one input document with the given status.
func (c *Collector) RecordDocument(status string) {
	c.documents.WithLabelValues(c.input, status).Inc()
	c.add("documents_"+status, 1)
}

// ObserveBatch counts one finished batch of rows built in d.
func (c *Collector) ObserveBatch(rows int, d time.Duration) {
	c.batches.WithLabelValues(c.input).Inc()
	c.rows.WithLabelValues(c.input).Add(float64(rows))
	c.buildLatency.WithLabelValues(c.input).Observe(d.Seconds())
	c.builderEvents.WithLabelValues(c.input, EventBatchFinished).Inc()
	c.add("batches", 1)
	c.add("rows", float64(rows))
}

// RecordBuilderEvents counts n structural events of one kind. Zero is
// ignored.
func (c *Collector) RecordBuilderEvents(event string, n int) {
	if n <= 0 {
		return
	}
	c.builderEvents.WithLabelValues(c.input, event).Add(float64(n))
	c.add(event, float64(n))
}

// AddBytesWritten counts output bytes.
func (c *Collector) AddBytesWritten(n int64) {
	if n <= 0 {
		return
	}
	c.bytesWritten.WithLabelValues(c.input).Add(float64(n))
	c.add("output_bytes", float64(n))
}

// GetAll returns all current metric values
func (c *Collector) GetAll() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all := map[string]interface{}{
		"input":      c.input,
		"start_time": c.startTime,
		"uptime":     time.Since(c.startTime).Seconds(),
	}
	for k, v := range c.totals {
		all[k] = v
	}
	return all
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the name the timer was created with.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It may be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks throughput (documents per second) over time
// windows and publishes it on the collector's gauge.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64     // Documents seen since last reset
	lastReset time.Time // Time of last reset
	collector *Collector
}

// NewThroughputTracker creates a tracker publishing to c.
func NewThroughputTracker(c *Collector) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		collector: c,
	}
}

// Increment adds n to the document count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput (documents/second),
// updates the Prometheus gauge, resets the counter, and returns the
// calculated throughput. Safe for concurrent use.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	// Reset for next period
	t.count = 0
	t.lastReset = time.Now()

	t.collector.throughput.WithLabelValues(t.collector.input).Set(throughput)

	return throughput
}
