// Package errors provides examples of structured error handling in columnforge.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/columnforge/pkg/errors"
)

// Example demonstrates basic error creation and wrapping.
func Example() {
	// Create a new error with type
	err := errors.New(errors.ErrorTypeData, "duplicate object key")

	// Add context details
	err = err.WithDetail("key", "a").
		WithDetail("document", 3)

	fmt.Println(err.Error())

	// Output:
	// data: duplicate object key
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeFile, "failed to read input").
		WithDetail("file", "events.jsonl")

	if errors.IsType(err, errors.ErrorTypeFile) {
		fmt.Println("This is a file error")
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("Cause was an unexpected EOF")
	}

	// Output:
	// This is a file error
	// Cause was an unexpected EOF
}

// ExampleNewf demonstrates formatted messages.
func ExampleNewf() {
	err := errors.Newf(errors.ErrorTypeConfig, "batch size must be positive, got %d", -1)
	fmt.Println(err)

	// Output:
	// config: batch size must be positive, got -1
}
