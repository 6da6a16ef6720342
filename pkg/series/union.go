package series

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// maxVariants is the number of distinct type codes an Arrow union can carry.
const maxVariants = math.MaxInt8

// unionBuilder holds values of several kinds at one slot. Variant i has
// type code i for the lifetime of the builder.
type unionBuilder struct {
	e        *env
	mode     UnionMode
	variants []builder
	tags     []int8
	// offsets is only maintained in dense mode.
	offsets []int32
}

// newUnionBuilder wraps first as variant 0; every existing row of first
// becomes a row of the union tagged 0.
func newUnionBuilder(e *env, first builder) *unionBuilder {
	n := first.length()
	u := &unionBuilder{
		e:        e,
		mode:     e.mode,
		variants: []builder{first},
		tags:     make([]int8, n),
	}
	if u.mode == UnionDense {
		u.offsets = make([]int32, n)
		for i := range u.offsets {
			u.offsets[i] = int32(i)
		}
	}
	return u
}

func (u *unionBuilder) kind() Kind { return KindUnion }

func (u *unionBuilder) length() int { return len(u.tags) }

// variant returns the index of the variant of kind k, or -1.
func (u *unionBuilder) variant(k Kind) int {
	for i, v := range u.variants {
		if v.kind() == k {
			return i
		}
	}
	return -1
}

func (u *unionBuilder) addVariant(k Kind) int {
	if len(u.variants) >= maxVariants {
		violation("union cannot hold more than %d variants", maxVariants)
	}
	b := newBuilder(u.e, k)
	if u.mode == UnionSparse {
		b.resize(len(u.tags))
	}
	u.variants = append(u.variants, b)
	return len(u.variants) - 1
}

// activate opens a row tagged i. The caller writes the row's value into
// variants[i] right after.
func (u *unionBuilder) activate(i int) {
	n := len(u.tags)
	switch u.mode {
	case UnionSparse:
		for j, v := range u.variants {
			if j != i {
				v.resize(n + 1)
			}
		}
	case UnionDense:
		off := u.variants[i].length()
		if off > math.MaxInt32 {
			violation("union variant holds %d values, more than int32 offsets can address", off)
		}
		u.offsets = append(u.offsets, int32(off))
	}
	u.tags = append(u.tags, int8(i))
}

// resize appends rows holding a null in variant 0.
func (u *unionBuilder) resize(n int) {
	for len(u.tags) < n {
		u.activate(0)
		v := u.variants[0]
		v.resize(v.length() + 1)
	}
}

// truncate drops rows past n. In dense mode each variant keeps the values
// still referenced by the remaining tags.
func (u *unionBuilder) truncate(n int) {
	if n >= len(u.tags) {
		return
	}
	switch u.mode {
	case UnionSparse:
		for _, v := range u.variants {
			v.truncate(n)
		}
	case UnionDense:
		counts := make([]int, len(u.variants))
		for _, t := range u.tags[:n] {
			counts[t]++
		}
		for i, v := range u.variants {
			v.truncate(counts[i])
		}
		u.offsets = u.offsets[:n]
	}
	u.tags = u.tags[:n]
}

func (u *unionBuilder) fields() ([]arrow.Field, []arrow.UnionTypeCode) {
	fields := make([]arrow.Field, len(u.variants))
	codes := make([]arrow.UnionTypeCode, len(u.variants))
	for i, v := range u.variants {
		fields[i] = arrow.Field{Name: v.kind().String(), Type: v.dataType(), Nullable: true}
		codes[i] = arrow.UnionTypeCode(i)
	}
	return fields, codes
}

func (u *unionBuilder) dataType() arrow.DataType {
	fields, codes := u.fields()
	if u.mode == UnionDense {
		return arrow.DenseUnionOf(fields, codes)
	}
	return arrow.SparseUnionOf(fields, codes)
}

func (u *unionBuilder) finish() arrow.Array {
	names := make([]string, len(u.variants))
	children := make([]arrow.Array, len(u.variants))
	for i, v := range u.variants {
		if u.mode == UnionSparse {
			v.resize(len(u.tags))
		}
		names[i] = v.kind().String()
		children[i] = v.finish()
	}
	u.variants = nil
	defer func() {
		for _, c := range children {
			c.Release()
		}
	}()

	typeIDs := int8Array(u.tags)
	defer typeIDs.Release()

	var (
		arr arrow.Array
		err error
	)
	if u.mode == UnionDense {
		offsets := int32Array(u.offsets)
		defer offsets.Release()
		arr, err = array.NewDenseUnionFromArraysWithFields(typeIDs, offsets, children, names)
	} else {
		arr, err = array.NewSparseUnionFromArraysWithFields(typeIDs, children, names)
	}
	if err != nil {
		violation("assembling union: %v", err)
	}
	return arr
}

func (u *unionBuilder) release() {
	for _, v := range u.variants {
		v.release()
	}
	u.variants = nil
}

func int8Array(vals []int8) *array.Int8 {
	buf := memory.NewBufferBytes(arrow.Int8Traits.CastToBytes(vals))
	data := array.NewData(arrow.PrimitiveTypes.Int8, len(vals), []*memory.Buffer{nil, buf}, nil, 0, 0)
	defer data.Release()
	return array.NewInt8Data(data)
}

func int32Array(vals []int32) *array.Int32 {
	buf := memory.NewBufferBytes(arrow.Int32Traits.CastToBytes(vals))
	data := array.NewData(arrow.PrimitiveTypes.Int32, len(vals), []*memory.Buffer{nil, buf}, nil, 0, 0)
	defer data.Release()
	return array.NewInt32Data(data)
}
