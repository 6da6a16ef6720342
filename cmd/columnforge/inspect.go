package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/columnforge/pkg/compression"
	"github.com/ajitpratap0/columnforge/pkg/errors"
	"github.com/ajitpratap0/columnforge/pkg/formats/columnar"
	cfjson "github.com/ajitpratap0/columnforge/pkg/json"
)

type inspectOptions struct {
	path       string
	limit      int64
	asArray    bool
	schemaOnly bool
}

func newInspectCommand() *cobra.Command {
	opts := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "Print the rows of an Arrow IPC or Parquet file as JSON",
		Long: `Read an Arrow IPC file or stream, or a Parquet file (optionally compressed),
and print its rows as JSON lines, or as one JSON array with --array. Union
values are printed as the value of their active variant.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.path = args[0]
			}
			return runInspect(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().Int64Var(&opts.limit, "limit", 0, "Print at most this many rows; 0 prints all")
	cmd.Flags().BoolVar(&opts.asArray, "array", false, "Print one JSON array instead of JSON lines")
	cmd.Flags().BoolVar(&opts.schemaOnly, "schema", false, "Print the schema instead of the rows")
	return cmd
}

func runInspect(ctx context.Context, opts *inspectOptions, stdin io.Reader, stdout io.Writer) error {
	var src io.Reader = stdin
	if opts.path != "" && opts.path != "-" {
		f, err := os.Open(opts.path)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to open input").
				WithDetail("path", opts.path)
		}
		defer f.Close()
		src = f
	}

	in, err := compression.OpenReader(src, compression.Auto)
	if err != nil {
		return err
	}
	defer in.Close()

	reader, err := columnar.NewReader(in, nil)
	if err != nil {
		return err
	}
	defer reader.Close()

	if opts.schemaOnly {
		data, err := cfjson.MarshalIndent(describeSchema(reader.Schema(), nil, nil), "", "  ")
		if err != nil {
			return err
		}
		_, err = stdout.Write(append(data, '\n'))
		return err
	}

	enc := cfjson.NewStreamingEncoder(stdout, opts.asArray)
	var printed int64
	for opts.limit <= 0 || printed < opts.limit {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		for i := 0; i < int(rec.NumRows()) && (opts.limit <= 0 || printed < opts.limit); i++ {
			if err := enc.Encode(rowAt(rec, i)); err != nil {
				rec.Release()
				return err
			}
			printed++
		}
		rec.Release()
	}
	return enc.Close()
}
