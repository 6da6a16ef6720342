package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/columnforge/pkg/compression"
	"github.com/ajitpratap0/columnforge/pkg/config"
	"github.com/ajitpratap0/columnforge/pkg/errors"
	"github.com/ajitpratap0/columnforge/pkg/ingest"
	"github.com/ajitpratap0/columnforge/pkg/logger"
	"github.com/ajitpratap0/columnforge/pkg/metrics"
	"github.com/ajitpratap0/columnforge/pkg/series"
	"github.com/ajitpratap0/columnforge/pkg/tracing"
)

func newIngestCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [input]",
		Short: "Convert JSON documents to Arrow IPC, Parquet or Avro",
		Long: `Read JSON documents (NDJSON or one JSON array), infer a schema while building
columnar batches, and write the batches as Arrow IPC (file or stream),
Parquet or Avro. Parquet stores mixed-kind columns as structs with one field
per kind; Avro stores them as unions.

Input is read from the given path or stdin; compressed input is detected
automatically. Output goes to --output or stdout.

Examples:
  columnforge ingest events.ndjson.zst -o events.arrow --compression zstd
  columnforge ingest events.json -o events.parquet --format parquet --compression snappy`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(v)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Input.Path = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIngest(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	addInputFlags(cmd)
	addOutputFlags(cmd)
	cmd.Flags().Bool("enable-metrics", false, "Serve Prometheus metrics while ingesting")
	cmd.Flags().String("metrics-addr", "", "Listen address of the metrics endpoint")
	cmd.Flags().Bool("enable-tracing", false, "Export OpenTelemetry spans as JSON")
	cmd.Flags().String("trace-file", "", "File receiving the spans (default stderr)")
	cmd.Flags().Float64("trace-sample-rate", 1, "Fraction of traces kept")
	return cmd
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("input-format", "", "Input framing: lines, array or auto")
	cmd.Flags().Int("batch-size", 0, "Documents per batch; 0 builds one batch from the whole input")
	cmd.Flags().Int("max-depth", 0, "Maximum nesting depth of a document")
	cmd.Flags().String("input-compression", "", "Input compression: auto, none, gzip, zstd, lz4, snappy, s2, deflate")
	cmd.Flags().Bool("skip-invalid", false, "Skip documents that are not JSON objects")
	cmd.Flags().String("union-mode", "", "Layout of mixed-kind columns: sparse or dense")
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "Output path (default stdout)")
	cmd.Flags().String("format", "", "Output format: file, stream, parquet or avro")
	cmd.Flags().String("compression", "", "Codec of the output format (IPC: lz4, zstd; Parquet: snappy, gzip, zstd, lz4, brotli; Avro: deflate, snappy)")
	cmd.Flags().Int64("row-group-size", 0, "Maximum rows per Parquet row group; 0 writes one per batch")
	cmd.Flags().String("stream-compression", "", "Compression of the whole output stream")
	cmd.Flags().String("stream-level", "", "Stream compression level: fastest, default, better, best")
	cmd.Flags().Bool("split", false, "Start a new part file when the schema changes between batches")
}

// openInput opens the configured input and wraps it in a decompressor.
func openInput(cfg config.InputConfig, stdin io.Reader) (io.ReadCloser, error) {
	var src io.Reader = stdin
	var file *os.File
	if !cfg.IsStdin() {
		f, err := os.Open(cfg.Path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open input").
				WithDetail("path", cfg.Path)
		}
		src, file = f, f
	}

	a, err := compression.ParseAlgorithm(cfg.Compression)
	if err != nil {
		return nil, err
	}
	if a == compression.Auto && file != nil {
		if detected := compression.Detect(cfg.Path); detected != compression.None {
			a = detected
		}
	}
	r, err := compression.OpenReader(src, a)
	if err != nil {
		if file != nil {
			_ = file.Close()
		}
		return nil, err
	}
	return &inputCloser{ReadCloser: r, file: file}, nil
}

type inputCloser struct {
	io.ReadCloser
	file *os.File
}

func (c *inputCloser) Close() error {
	err := c.ReadCloser.Close()
	if c.file != nil {
		if ferr := c.file.Close(); err == nil {
			err = ferr
		}
	}
	return err
}

func newReader(cfg *config.Config, in io.Reader, log *zap.Logger, opts ...ingest.Option) *ingest.JSONReader {
	opts = append(opts, ingest.WithSeriesOptions(series.WithUnionMode(cfg.Builder.Mode())))
	return ingest.NewJSONReader(in, cfg.Input.ReaderConfig(), log, opts...)
}

// startTracing installs the span exporter when tracing is enabled. The
// returned function flushes it.
func startTracing(cfg *config.Config, log *zap.Logger) (func(), error) {
	obs := cfg.Observability
	if !obs.EnableTracing {
		return func() {}, nil
	}
	var out io.Writer = os.Stderr
	var file *os.File
	if obs.TraceFile != "" {
		f, err := os.Create(obs.TraceFile) //nolint:gosec // trace path is chosen by the user
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create trace file").
				WithDetail("path", obs.TraceFile)
		}
		out, file = f, f
	}
	shutdown, err := tracing.Init(tracing.Config{
		ServiceName:    cfg.Name,
		ServiceVersion: version,
		SamplingRate:   obs.TraceSampleRate,
		Output:         out,
	})
	if err != nil {
		if file != nil {
			_ = file.Close()
		}
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			log.Warn("failed to flush spans", zap.Error(err))
		}
		if file != nil {
			_ = file.Close()
		}
	}, nil
}

func runIngest(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout io.Writer) (err error) {
	ctx = logger.ContextWith(ctx, logger.RunIDKey, uuid.NewString())
	ctx = logger.ContextWith(ctx, logger.InputKey, cfg.Input.Path)
	log := logger.WithContext(ctx).With(zap.String("component", "ingest"))

	stopTracing, err := startTracing(cfg, log)
	if err != nil {
		return err
	}
	defer stopTracing()
	ctx, span := tracing.Start(ctx, "ingest.run",
		attribute.String("input", cfg.Input.Path),
		attribute.String("output", cfg.Output.Path),
		attribute.String("format", cfg.Output.Format))
	defer func() { tracing.End(span, err) }()

	in, err := openInput(cfg.Input, stdin)
	if err != nil {
		return err
	}
	defer in.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(cfg.Input.Path, reg)
	reader := newReader(cfg, in, log, ingest.WithMetrics(collector))
	out := newSink(cfg.Output, stdout, collector, log)

	log.Info("starting ingest",
		zap.String("output", cfg.Output.Path),
		zap.String("format", cfg.Output.Format),
		zap.Int("batch_size", cfg.Input.BatchSize),
		zap.String("union_mode", cfg.Builder.UnionMode))
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return pump(gctx, reader, out)
	})

	if cfg.Observability.EnableMetrics {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Observability.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info("serving metrics", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, errors.ErrorTypeConfig, "metrics endpoint failed")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("ingest failed", zap.Error(err))
		return err
	}

	stats := reader.Stats()
	span.SetAttributes(
		attribute.Int64("documents", stats.Documents),
		attribute.Int64("rejected", stats.Rejected),
		attribute.Int("parts", out.Parts()))
	duration := time.Since(start)
	log.Info("ingest completed",
		zap.Duration("duration", duration),
		zap.Int64("documents", stats.Documents),
		zap.Int64("rejected", stats.Rejected),
		zap.Int64("batches", stats.Batches),
		zap.Int("parts", out.Parts()),
		zap.Float64("documents_per_second", float64(stats.Documents)/duration.Seconds()))
	return nil
}

// pump moves batches from reader to out until the input ends. A failed
// write stops the reader; every batch is released.
func pump(ctx context.Context, reader *ingest.JSONReader, out *sink) error {
	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	stream := reader.Stream(readCtx, 1)

	var writeErr error
	index := 0
	for batch := range stream.Batches {
		if writeErr == nil {
			batchCtx := logger.ContextWith(ctx, logger.BatchKey, strconv.Itoa(index))
			logger.WithContext(batchCtx).Debug("writing batch", zap.Int("rows", batch.Rows))
			if writeErr = out.Write(batchCtx, batch); writeErr != nil {
				stopReading()
			}
		}
		batch.Release()
		index++
	}
	readErr := <-stream.Errors

	closeErr := out.Close()
	switch {
	case writeErr != nil:
		return writeErr
	case readErr != nil:
		return readErr
	default:
		return closeErr
	}
}
