package series

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/columnforge/pkg/errors"
)

// UnionMode selects the physical layout of union columns.
type UnionMode uint8

const (
	// UnionSparse pads every variant with a null in rows where it is not
	// active, so all variants have the length of the union.
	UnionSparse UnionMode = iota
	// UnionDense stores a value offset per row and only appends to the
	// active variant.
	UnionDense
)

func (m UnionMode) String() string {
	switch m {
	case UnionSparse:
		return "sparse"
	case UnionDense:
		return "dense"
	default:
		return "unknown"
	}
}

// ParseUnionMode parses "sparse" or "dense". The empty string selects
// UnionSparse.
func ParseUnionMode(s string) (UnionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sparse":
		return UnionSparse, nil
	case "dense":
		return UnionDense, nil
	default:
		return UnionSparse, errors.New(errors.ErrorTypeConfig, "unknown union mode: "+s)
	}
}

// Option configures a Builder.
type Option func(*env)

// WithAllocator sets the allocator used for leaf storage.
func WithAllocator(mem memory.Allocator) Option {
	return func(e *env) {
		if mem != nil {
			e.mem = mem
		}
	}
}

// WithUnionMode sets the layout of union columns created by the builder.
func WithUnionMode(m UnionMode) Option {
	return func(e *env) {
		e.mode = m
	}
}

// WithLogger sets the logger that receives promotion events at debug level.
func WithLogger(log *zap.Logger) Option {
	return func(e *env) {
		if log != nil {
			e.log = log
		}
	}
}

func newEnv(opts []Option) *env {
	e := &env{
		mem:  memory.NewGoAllocator(),
		mode: UnionSparse,
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
