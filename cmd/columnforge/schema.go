package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/columnforge/pkg/config"
	cfjson "github.com/ajitpratap0/columnforge/pkg/json"
	"github.com/ajitpratap0/columnforge/pkg/logger"
)

func newSchemaCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [input]",
		Short: "Print the schema inferred from JSON documents",
		Long: `Read the whole input into one batch and print the inferred Arrow schema as
JSON, with the number of rows and the null count of every column.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(v)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Input.Path = args[0]
			}
			return runSchema(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	addInputFlags(cmd)
	return cmd
}

func runSchema(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout io.Writer) error {
	log := logger.Get().With(zap.String("component", "schema"))

	in, err := openInput(cfg.Input, stdin)
	if err != nil {
		return err
	}
	defer in.Close()

	schemaCfg := *cfg
	schemaCfg.Input.BatchSize = 0
	reader := newReader(&schemaCfg, in, log)

	var zero int64
	info := schemaInfo{Rows: &zero, Fields: []fieldInfo{}}
	batch, err := reader.ReadBatch(ctx)
	switch {
	case err == io.EOF:
	case err != nil:
		return err
	default:
		defer batch.Release()
		nulls := make([]int, len(batch.Columns))
		for i, c := range batch.Columns {
			nulls[i] = c.Array.NullN()
		}
		rows := int64(batch.Rows)
		info = describeSchema(batch.Schema(), &rows, nulls)
	}

	data, err := cfjson.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	_, err = stdout.Write(append(data, '\n'))
	return err
}
