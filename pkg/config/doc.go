// Package config provides configuration management for columnforge runs.
//
// A single Config structure covers the whole pipeline from JSON documents
// to Arrow IPC, Parquet or Avro.
//
// # Key Features
//
// - Config: one structure for builder, input, output and observability
// - Environment variable substitution with ${VAR_NAME} syntax
// - Defaults from NewConfig and validation with Validate
// - Every validation failure is an ErrorTypeConfig error
//
// # Usage
//
// ## Loading a Configuration File
//
//	cfg, err := config.LoadConfig("columnforge.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Fields missing from the file keep the defaults of NewConfig.
//
// ## Environment Variable Substitution
//
//	# columnforge.yaml
//	name: events
//	input:
//	  path: ${EVENTS_DIR}/events.ndjson.zst
//	  batch_size: 50000
//	output:
//	  path: ${WAREHOUSE}/events.arrow
//	  compression: zstd
//
// # Configuration Structure
//
//	type Config struct {
//		Name    string `yaml:"name" json:"name"`
//		Version string `yaml:"version" json:"version"`
//
//		Builder       BuilderConfig       `yaml:"builder" json:"builder"`
//		Input         InputConfig         `yaml:"input" json:"input"`
//		Output        OutputConfig        `yaml:"output" json:"output"`
//		Observability ObservabilityConfig `yaml:"observability" json:"observability"`
//	}
//
// - Builder: union mode of mixed-kind columns (sparse or dense)
// - Input: path, framing (lines, array, auto), batch size, nesting limit, stream compression
// - Output: path, format (file, stream, parquet, avro), codec, row group size, stream compression, split
// - Observability: log level and encoding, Prometheus endpoint, OpenTelemetry spans
//
// The command line binds the same keys through viper, so every field can
// also be set with a flag or a COLUMNFORGE_* environment variable.
package config
