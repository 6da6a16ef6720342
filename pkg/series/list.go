package series

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// listBuilder is a list column. All entries share one element slot; starts
// holds the element offset at which each entry begins.
type listBuilder struct {
	e      *env
	elem   builder
	starts []int32
	// valid is nil while every entry is valid.
	valid []bool
	open  bool
}

func newListBuilder(e *env) *listBuilder {
	return &listBuilder{e: e, elem: &unknownBuilder{}}
}

func (l *listBuilder) kind() Kind { return KindList }

// length counts entries, including the one currently open.
func (l *listBuilder) length() int { return len(l.starts) }

func (l *listBuilder) offset() int32 {
	n := l.elem.length()
	if n > math.MaxInt32 {
		violation("list holds %d elements, more than int32 offsets can address", n)
	}
	return int32(n)
}

func (l *listBuilder) beginEntry() {
	if l.open {
		violation("list entry opened twice")
	}
	l.starts = append(l.starts, l.offset())
	if l.valid != nil {
		l.valid = append(l.valid, true)
	}
	l.open = true
}

func (l *listBuilder) endEntry() {
	if !l.open {
		violation("list entry closed without being opened")
	}
	l.open = false
}

// entryLen is the number of elements written into the open entry.
func (l *listBuilder) entryLen() int {
	if !l.open {
		return 0
	}
	return l.elem.length() - int(l.starts[len(l.starts)-1])
}

func (l *listBuilder) resize(n int) {
	if n <= len(l.starts) {
		return
	}
	if l.open {
		violation("cannot resize a list with an open entry")
	}
	if l.valid == nil {
		l.valid = make([]bool, len(l.starts), n)
		for i := range l.valid {
			l.valid[i] = true
		}
	}
	off := l.offset()
	for len(l.starts) < n {
		l.starts = append(l.starts, off)
		l.valid = append(l.valid, false)
	}
}

func (l *listBuilder) truncate(n int) {
	if n >= len(l.starts) {
		return
	}
	if l.open {
		violation("cannot truncate a list with an open entry")
	}
	l.elem.truncate(int(l.starts[n]))
	l.starts = l.starts[:n]
	if l.valid != nil {
		l.valid = l.valid[:n]
	}
}

func (l *listBuilder) dataType() arrow.DataType {
	return arrow.ListOf(l.elem.dataType())
}

func (l *listBuilder) finish() arrow.Array {
	if l.open {
		violation("cannot finish a list with an open entry")
	}
	n := len(l.starts)
	offsets := append(l.starts, l.offset())
	elems := l.elem.finish()
	defer elems.Release()
	l.elem = nil

	bitmap, nulls := validityBitmap(l.valid)
	buffers := []*memory.Buffer{bitmap, memory.NewBufferBytes(arrow.Int32Traits.CastToBytes(offsets))}
	data := array.NewData(arrow.ListOf(elems.DataType()), n, buffers, []arrow.ArrayData{elems.Data()}, nulls, 0)
	defer data.Release()
	return array.NewListData(data)
}

func (l *listBuilder) release() {
	if l.elem != nil {
		l.elem.release()
		l.elem = nil
	}
}
