package series

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/columnforge/pkg/errors"
)

// builder is a node of the builder tree. The set of implementations is
// closed: unknownBuilder, atomBuilder, recordBuilder, listBuilder and
// unionBuilder.
type builder interface {
	kind() Kind
	// length is the number of committed values at this node.
	length() int
	// resize back-fills nulls until length reaches n. It never shrinks.
	resize(n int)
	// truncate drops committed values until length is at most n. Slot
	// types are kept: a union stays a union and record fields stay.
	truncate(n int)
	dataType() arrow.DataType
	// finish converts the node into an immutable array and consumes it.
	finish() arrow.Array
	release()
}

// env is the state shared by every node of one tree.
type env struct {
	mem   memory.Allocator
	mode  UnionMode
	log   *zap.Logger
	stats Stats
}

// Stats counts structural events observed while building.
type Stats struct {
	// FieldsCreated counts record fields created on first reference
	FieldsCreated int
	// UnionsCreated counts slots promoted from a concrete kind to a union
	UnionsCreated int
	// VariantsAdded counts variants appended to unions, including the
	// second variant of a freshly created union
	VariantsAdded int
}

func newBuilder(e *env, k Kind) builder {
	switch {
	case k == KindNull:
		return &unknownBuilder{}
	case k.IsAtom():
		return newAtomBuilder(e.mem, k)
	case k == KindRecord:
		return newRecordBuilder(e)
	case k == KindList:
		return newListBuilder(e)
	default:
		violation("cannot create a builder of kind %s", k)
		return nil
	}
}

// busy reports whether a row or list entry is still open somewhere at the
// top of the subtree rooted at b. Writing into a busy slot would interleave
// two values.
func busy(b builder) bool {
	switch x := b.(type) {
	case *recordBuilder:
		return x.open
	case *listBuilder:
		return x.open
	case *unionBuilder:
		for _, v := range x.variants {
			if busy(v) {
				return true
			}
		}
	}
	return false
}

// violation aborts on a broken invariant. These are caller or core bugs and
// are never part of normal data handling.
func violation(format string, args ...interface{}) {
	panic(errors.Newf(errors.ErrorTypeInternal, format, args...))
}
