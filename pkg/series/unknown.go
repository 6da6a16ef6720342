package series

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// unknownBuilder is a slot that has not seen a real value yet. It only
// counts nulls.
type unknownBuilder struct {
	n int
}

func (b *unknownBuilder) kind() Kind { return KindNull }

func (b *unknownBuilder) length() int { return b.n }

func (b *unknownBuilder) resize(n int) {
	if n > b.n {
		b.n = n
	}
}

func (b *unknownBuilder) truncate(n int) {
	if n < b.n {
		b.n = n
	}
}

func (b *unknownBuilder) dataType() arrow.DataType { return arrow.Null }

func (b *unknownBuilder) finish() arrow.Array {
	return array.NewNull(b.n)
}

func (b *unknownBuilder) release() {}
