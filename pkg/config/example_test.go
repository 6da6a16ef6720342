package config_test

import (
	"fmt"
	"log"

	"github.com/ajitpratap0/columnforge/pkg/config"
)

// ExampleNewConfig demonstrates creating a configuration with default values.
func ExampleNewConfig() {
	cfg := config.NewConfig("events")

	// The configuration comes with sensible defaults
	fmt.Printf("Batch Size: %d\n", cfg.Input.BatchSize)
	fmt.Printf("Union Mode: %s\n", cfg.Builder.UnionMode)
	fmt.Printf("Output Format: %s\n", cfg.Output.Format)

	// Output:
	// Batch Size: 10000
	// Union Mode: sparse
	// Output Format: file
}

// ExampleConfig_Validate shows how to validate a configuration
// before using it.
func ExampleConfig_Validate() {
	cfg := config.NewConfig("events")

	cfg.Builder.UnionMode = "dense"
	cfg.Input.Format = config.InputLines
	cfg.Output.Compression = "zstd"

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	fmt.Println("Configuration is valid!")

	cfg.Output.Format = "parquet"
	fmt.Println(cfg.Validate())

	// Avro containers only support deflate and snappy
	cfg.Output.Format = "avro"
	fmt.Println(cfg.Validate())

	// Output:
	// Configuration is valid!
	// <nil>
	// config: unsupported avro compression: zstd
}
