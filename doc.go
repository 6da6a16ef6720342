// Package columnforge converts streams of heterogeneous JSON documents into
// Apache Arrow columnar data without a schema declared up front.
//
// # Architecture
//
// The heart of columnforge is an adaptive series builder (pkg/series). Values
// are appended one at a time; the builder infers the type of every column as
// it goes:
//
//  1. A column starts untyped and takes the kind of its first non-null value.
//  2. New fields of a record become new columns, back-filled with nulls.
//  3. A column that sees a second kind is promoted to an Arrow union whose
//     variants hold the values of each kind. Sparse unions are the default;
//     dense unions are an option.
//
// Around the builder sit:
//   - pkg/json: an ordered, validating JSON decoder (goccy/go-json)
//   - pkg/ingest: batching of NDJSON or JSON array input into series batches
//   - pkg/formats/columnar: Arrow IPC, Parquet and Avro writers; IPC and Parquet readers
//   - pkg/compression: gzip, zstd, lz4, snappy, s2 and deflate streams
//   - pkg/config, pkg/logger, pkg/metrics, pkg/errors: the ambient stack
//
// # Quick Start
//
// Building a column by hand:
//
//	b := series.New()
//	b.Record(func(r *series.RecordGuard) {
//	    r.Field("host").Atom("a.example")
//	    r.Field("latency").Atom(12.5)
//	})
//	b.Record(func(r *series.RecordGuard) {
//	    r.Field("latency").Atom("timeout")
//	})
//	batch := b.FinishAsBatch()
//	defer batch.Release()
//
// Converting a file from the command line:
//
//	columnforge ingest events.ndjson.zst -o events.arrow --compression zstd
//	columnforge ingest events.json -o events.parquet --format parquet
//	columnforge inspect events.arrow --limit 10
//
// # Configuration
//
// The command line reads an optional YAML file (--config), then
// COLUMNFORGE_* environment variables, then flags. See pkg/config.
package columnforge
