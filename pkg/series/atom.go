package series

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// atomBuilder accumulates scalars of a single kind in an Arrow builder.
// It performs no promotion.
type atomBuilder struct {
	k     Kind
	mem   memory.Allocator
	inner array.Builder
}

func newAtomBuilder(mem memory.Allocator, k Kind) *atomBuilder {
	return &atomBuilder{k: k, mem: mem, inner: array.NewBuilder(mem, k.DataType())}
}

func (b *atomBuilder) kind() Kind { return b.k }

func (b *atomBuilder) length() int { return b.inner.Len() }

func (b *atomBuilder) resize(n int) {
	if d := n - b.inner.Len(); d > 0 {
		b.inner.AppendNulls(d)
	}
}

// append adds one normalized value; v must already be of the builder's kind.
func (b *atomBuilder) append(v interface{}) {
	ok := true
	switch inner := b.inner.(type) {
	case *array.BooleanBuilder:
		var x bool
		if x, ok = v.(bool); ok {
			inner.Append(x)
		}
	case *array.Int64Builder:
		var x int64
		if x, ok = v.(int64); ok {
			inner.Append(x)
		}
	case *array.Uint64Builder:
		var x uint64
		if x, ok = v.(uint64); ok {
			inner.Append(x)
		}
	case *array.Float64Builder:
		var x float64
		if x, ok = v.(float64); ok {
			inner.Append(x)
		}
	case *array.StringBuilder:
		var x string
		if x, ok = v.(string); ok {
			inner.Append(x)
		}
	case *array.BinaryBuilder:
		var x []byte
		if x, ok = v.([]byte); ok {
			inner.Append(x)
		}
	case *array.TimestampBuilder:
		var x time.Time
		if x, ok = v.(time.Time); ok {
			inner.Append(arrow.Timestamp(x.UnixNano()))
		}
	case *array.DurationBuilder:
		var x time.Duration
		if x, ok = v.(time.Duration); ok {
			inner.Append(arrow.Duration(x))
		}
	default:
		violation("no atom storage for kind %s", b.k)
	}
	if !ok {
		violation("cannot append %T to a %s builder", v, b.k)
	}
}

// truncate rebuilds the storage from the first n values; Arrow builders
// cannot shrink in place. It costs a copy of the kept values.
func (b *atomBuilder) truncate(n int) {
	if n >= b.inner.Len() {
		return
	}
	old := b.inner.NewArray()
	defer old.Release()
	b.inner.Release()
	b.inner = array.NewBuilder(b.mem, b.k.DataType())
	b.inner.Reserve(n)
	for i := 0; i < n; i++ {
		if old.IsNull(i) {
			b.inner.AppendNull()
			continue
		}
		switch a := old.(type) {
		case *array.Boolean:
			b.inner.(*array.BooleanBuilder).Append(a.Value(i))
		case *array.Int64:
			b.inner.(*array.Int64Builder).Append(a.Value(i))
		case *array.Uint64:
			b.inner.(*array.Uint64Builder).Append(a.Value(i))
		case *array.Float64:
			b.inner.(*array.Float64Builder).Append(a.Value(i))
		case *array.String:
			b.inner.(*array.StringBuilder).Append(a.Value(i))
		case *array.Binary:
			b.inner.(*array.BinaryBuilder).Append(a.Value(i))
		case *array.Timestamp:
			b.inner.(*array.TimestampBuilder).Append(a.Value(i))
		case *array.Duration:
			b.inner.(*array.DurationBuilder).Append(a.Value(i))
		default:
			violation("no atom storage for kind %s", b.k)
		}
	}
}

func (b *atomBuilder) dataType() arrow.DataType { return b.k.DataType() }

func (b *atomBuilder) finish() arrow.Array {
	arr := b.inner.NewArray()
	b.release()
	return arr
}

func (b *atomBuilder) release() {
	if b.inner != nil {
		b.inner.Release()
		b.inner = nil
	}
}
