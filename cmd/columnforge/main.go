package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/columnforge/pkg/logger"
)

var version = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := newViper()

	root := &cobra.Command{
		Use:   "columnforge",
		Short: "columnforge - schema-inferring JSON to Apache Arrow converter",
		Long: `columnforge turns streams of heterogeneous JSON documents into Apache Arrow
record batches. The schema is inferred while reading: new fields become new
columns, fields seen with several kinds become union columns.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(v, cmd); err != nil {
				return err
			}
			cfg, err := loadSettings(v)
			if err != nil {
				return err
			}
			return logger.Init(logger.Config{
				Level:       cfg.Observability.LogLevel,
				Encoding:    cfg.Observability.LogEncoding,
				Development: cfg.Observability.Development,
			})
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	root.PersistentFlags().String("config", "", "Path to a YAML configuration file")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-encoding", "", "Log encoding (json, console)")

	root.AddCommand(
		newIngestCommand(v),
		newSchemaCommand(v),
		newInspectCommand(),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "columnforge v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
