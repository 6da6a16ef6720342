package testutil

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/assert"
)

func TestAllocatorReleased(t *testing.T) {
	mem := Allocator(t)
	b := array.NewInt64Builder(mem)
	b.Append(1)
	arr := b.NewArray()
	b.Release()
	assert.Equal(t, 1, arr.Len())
	arr.Release()
}

func TestContextDeadline(t *testing.T) {
	ctx := TestContext(t)
	_, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.NoError(t, ctx.Err())
}

func TestAssertEventually(t *testing.T) {
	var flag atomic.Bool
	go func() {
		time.Sleep(20 * time.Millisecond)
		flag.Store(true)
	}()
	AssertEventually(t, flag.Load, time.Second, "flag never set")
	TestLogger(t).Info("condition met")
}
