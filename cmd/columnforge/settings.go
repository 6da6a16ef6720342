package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/columnforge/pkg/config"
	"github.com/ajitpratap0/columnforge/pkg/errors"
)

// envPrefix prefixes the environment variables that override settings,
// e.g. COLUMNFORGE_INPUT_BATCH_SIZE for input.batch_size.
const envPrefix = "COLUMNFORGE"

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"config":             "config",
	"log-level":          "observability.log_level",
	"log-encoding":       "observability.log_encoding",
	"union-mode":         "builder.union_mode",
	"input-format":       "input.format",
	"batch-size":         "input.batch_size",
	"max-depth":          "input.max_depth",
	"input-compression":  "input.compression",
	"skip-invalid":       "input.skip_invalid",
	"output":             "output.path",
	"format":             "output.format",
	"compression":        "output.compression",
	"row-group-size":     "output.row_group_size",
	"stream-compression": "output.stream_compression",
	"stream-level":       "output.stream_level",
	"split":              "output.split",
	"metrics-addr":       "observability.metrics_addr",
	"enable-metrics":     "observability.enable_metrics",
	"enable-tracing":     "observability.enable_tracing",
	"trace-file":         "observability.trace_file",
	"trace-sample-rate":  "observability.trace_sample_rate",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// bindFlags binds the flags of cmd, including inherited persistent flags,
// to their configuration keys.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil {
			err = errors.Wrap(bindErr, errors.ErrorTypeConfig, "failed to bind flag "+f.Name)
		}
	})
	return err
}

// loadSettings builds the run configuration: defaults, then the YAML file
// named by --config, then environment variables and flags that were set.
func loadSettings(v *viper.Viper) (*config.Config, error) {
	cfg := config.NewConfig("columnforge")
	if path := v.GetString("config"); path != "" {
		if err := config.Load(path, cfg); err != nil {
			return nil, err
		}
	}

	overrideString(v, "builder.union_mode", &cfg.Builder.UnionMode)

	overrideString(v, "input.format", &cfg.Input.Format)
	overrideInt(v, "input.batch_size", &cfg.Input.BatchSize)
	overrideInt(v, "input.max_depth", &cfg.Input.MaxDepth)
	overrideString(v, "input.compression", &cfg.Input.Compression)
	overrideBool(v, "input.skip_invalid", &cfg.Input.SkipInvalid)

	overrideString(v, "output.path", &cfg.Output.Path)
	overrideString(v, "output.format", &cfg.Output.Format)
	overrideString(v, "output.compression", &cfg.Output.Compression)
	overrideInt64(v, "output.row_group_size", &cfg.Output.RowGroupSize)
	overrideString(v, "output.stream_compression", &cfg.Output.StreamCompression)
	overrideString(v, "output.stream_level", &cfg.Output.StreamLevel)
	overrideBool(v, "output.split", &cfg.Output.Split)

	overrideString(v, "observability.log_level", &cfg.Observability.LogLevel)
	overrideString(v, "observability.log_encoding", &cfg.Observability.LogEncoding)
	overrideString(v, "observability.metrics_addr", &cfg.Observability.MetricsAddr)
	overrideBool(v, "observability.enable_metrics", &cfg.Observability.EnableMetrics)
	overrideBool(v, "observability.enable_tracing", &cfg.Observability.EnableTracing)
	overrideString(v, "observability.trace_file", &cfg.Observability.TraceFile)
	overrideFloat64(v, "observability.trace_sample_rate", &cfg.Observability.TraceSampleRate)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}
}

func overrideInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func overrideInt64(v *viper.Viper, key string, dst *int64) {
	if v.IsSet(key) {
		*dst = v.GetInt64(key)
	}
}

func overrideBool(v *viper.Viper, key string, dst *bool) {
	if v.IsSet(key) {
		*dst = v.GetBool(key)
	}
}

func overrideFloat64(v *viper.Viper, key string, dst *float64) {
	if v.IsSet(key) {
		*dst = v.GetFloat64(key)
	}
}
