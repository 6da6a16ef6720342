package series

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"
)

// recordBuilder is a struct column. Fields are created on first reference
// and keep first-seen order.
type recordBuilder struct {
	e      *env
	names  []string
	index  map[string]int
	fields []builder
	// valid is nil while every row is valid.
	valid []bool
	n     int
	open  bool
}

func newRecordBuilder(e *env) *recordBuilder {
	return &recordBuilder{e: e, index: make(map[string]int)}
}

func (r *recordBuilder) kind() Kind { return KindRecord }

func (r *recordBuilder) length() int { return r.n }

// slot returns the field storage for name, creating an Unknown field
// back-filled to the committed row count. The pointer is only valid until
// the next field is created.
func (r *recordBuilder) slot(name string) *builder {
	if i, ok := r.index[name]; ok {
		return &r.fields[i]
	}
	r.index[name] = len(r.fields)
	r.names = append(r.names, name)
	r.fields = append(r.fields, &unknownBuilder{n: r.n})
	r.e.stats.FieldsCreated++
	r.e.log.Debug("record field created", zap.String("field", name), zap.Int("backfill", r.n))
	return &r.fields[len(r.fields)-1]
}

func (r *recordBuilder) beginRow() {
	if r.open {
		violation("record row opened twice")
	}
	r.open = true
}

// fillNulls pads every field to n values.
func (r *recordBuilder) fillNulls(n int) {
	for _, f := range r.fields {
		if f.length() > n {
			violation("record field holds %d values, expected at most %d", f.length(), n)
		}
		f.resize(n)
	}
}

func (r *recordBuilder) commitRow() {
	if !r.open {
		violation("record row committed without being opened")
	}
	r.fillNulls(r.n + 1)
	r.n++
	if r.valid != nil {
		r.valid = append(r.valid, true)
	}
	r.open = false
}

func (r *recordBuilder) resize(n int) {
	if n <= r.n {
		return
	}
	if r.open {
		violation("cannot resize a record with an open row")
	}
	if r.valid == nil {
		r.valid = make([]bool, r.n, n)
		for i := range r.valid {
			r.valid[i] = true
		}
	}
	for r.n < n {
		r.valid = append(r.valid, false)
		r.n++
	}
	r.fillNulls(n)
}

func (r *recordBuilder) truncate(n int) {
	if n >= r.n {
		return
	}
	if r.open {
		violation("cannot truncate a record with an open row")
	}
	for _, f := range r.fields {
		f.truncate(n)
	}
	if r.valid != nil {
		r.valid = r.valid[:n]
	}
	r.n = n
}

func (r *recordBuilder) structFields() []arrow.Field {
	fields := make([]arrow.Field, len(r.fields))
	for i, f := range r.fields {
		fields[i] = arrow.Field{Name: r.names[i], Type: f.dataType(), Nullable: true}
	}
	return fields
}

func (r *recordBuilder) dataType() arrow.DataType {
	return arrow.StructOf(r.structFields()...)
}

// finishColumns finishes every field in first-seen order.
func (r *recordBuilder) finishColumns() ([]string, []arrow.Array) {
	if r.open {
		violation("cannot finish a record with an open row")
	}
	r.fillNulls(r.n)
	cols := make([]arrow.Array, len(r.fields))
	for i, f := range r.fields {
		cols[i] = f.finish()
	}
	names := r.names
	r.fields, r.names, r.index = nil, nil, nil
	return names, cols
}

func (r *recordBuilder) finish() arrow.Array {
	names, cols := r.finishColumns()
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	fields := make([]arrow.Field, len(cols))
	children := make([]arrow.ArrayData, len(cols))
	for i, c := range cols {
		fields[i] = arrow.Field{Name: names[i], Type: c.DataType(), Nullable: true}
		children[i] = c.Data()
	}

	bitmap, nulls := validityBitmap(r.valid)
	data := array.NewData(arrow.StructOf(fields...), r.n, []*memory.Buffer{bitmap}, children, nulls, 0)
	defer data.Release()
	return array.NewStructData(data)
}

func (r *recordBuilder) release() {
	for _, f := range r.fields {
		f.release()
	}
	r.fields, r.names, r.index = nil, nil, nil
}

// validityBitmap packs valid into an Arrow validity buffer. It returns a nil
// buffer when no entry is null.
func validityBitmap(valid []bool) (*memory.Buffer, int) {
	nulls := 0
	for _, v := range valid {
		if !v {
			nulls++
		}
	}
	if nulls == 0 {
		return nil, 0
	}
	bits := make([]byte, bitutil.BytesForBits(int64(len(valid))))
	for i, v := range valid {
		if v {
			bitutil.SetBit(bits, i)
		}
	}
	return memory.NewBufferBytes(bits), nulls
}
