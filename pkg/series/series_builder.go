package series

import (
	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"
)

// Builder builds one series from values written one at a time. It owns a
// single root slot whose type is inferred from the values. A Builder is
// single use: after Finish, FinishAsBatch or Release every method panics.
type Builder struct {
	e        *env
	root     builder
	finished bool
}

// New returns an empty Builder.
func New(opts ...Option) *Builder {
	return &Builder{e: newEnv(opts), root: &unknownBuilder{}}
}

func (b *Builder) slot() *builder {
	if b.finished {
		violation("builder used after finish")
	}
	return &b.root
}

// Null appends a null.
func (b *Builder) Null() {
	writeNull(b.slot())
}

// Atom appends a scalar. See KindOf for the accepted Go types.
func (b *Builder) Atom(v interface{}) {
	writeAtom(b.e, b.slot(), v)
}

// Data appends a nested Go value: nil, Object, map[string]interface{},
// []interface{} or a scalar.
func (b *Builder) Data(v interface{}) {
	writeData(b.e, b.slot(), v)
}

// Record appends one record written through fn. Fields that fn does not
// write are null in this row.
func (b *Builder) Record(fn func(*RecordGuard)) {
	withRecord(b.e, b.slot(), fn)
}

// List appends one list written through fn.
func (b *Builder) List(fn func(*ListGuard)) {
	withList(b.e, b.slot(), fn)
}

// Resize pads the series with nulls up to n values. It never shrinks.
func (b *Builder) Resize(n int) {
	s := b.slot()
	if busy(*s) {
		violation("resize while a nested value is still open")
	}
	(*s).resize(n)
}

// RemoveLast drops the last value, with everything nested in it, and
// reports whether there was one. Types inferred so far are kept: a slot
// that became a union stays one and record fields stay in the schema.
func (b *Builder) RemoveLast() bool {
	s := b.slot()
	if busy(*s) {
		violation("remove while a nested value is still open")
	}
	n := (*s).length()
	if n == 0 {
		return false
	}
	(*s).truncate(n - 1)
	b.e.log.Debug("last value removed", zap.Int("length", n-1))
	return true
}

// Length returns the number of values appended so far.
func (b *Builder) Length() int {
	return (*b.slot()).length()
}

// Kind returns the kind of the root slot.
func (b *Builder) Kind() Kind {
	return (*b.slot()).kind()
}

// Type returns the Arrow type the series would have if finished now.
func (b *Builder) Type() arrow.DataType {
	return (*b.slot()).dataType()
}

// Stats returns counters of structural events seen so far.
func (b *Builder) Stats() Stats {
	return b.e.stats
}

func (b *Builder) take() builder {
	s := b.slot()
	if busy(*s) {
		violation("finish while a nested value is still open")
	}
	root := *s
	b.root = nil
	b.finished = true
	return root
}

// Finish consumes the builder and returns the finished series.
func (b *Builder) Finish() *Series {
	arr := b.take().finish()
	b.e.log.Debug("series finished",
		zap.Int("length", arr.Len()),
		zap.Stringer("type", arr.DataType()))
	return &Series{Array: arr, Type: arr.DataType()}
}

// FinishAsBatch consumes a record-rooted builder and returns one column per
// record field in first-seen order. A builder that only saw nulls yields a
// batch without columns. Any other root kind panics.
func (b *Builder) FinishAsBatch() *Batch {
	root := b.take()
	switch r := root.(type) {
	case *unknownBuilder:
		return &Batch{Rows: r.n}
	case *recordBuilder:
		rows := r.n
		names, arrs := r.finishColumns()
		cols := make([]Column, len(arrs))
		for i, a := range arrs {
			cols[i] = Column{Name: names[i], Array: a, Type: a.DataType()}
		}
		b.e.log.Debug("batch finished",
			zap.Int("rows", rows),
			zap.Int("columns", len(cols)))
		return &Batch{Columns: cols, Rows: rows}
	default:
		root.release()
		violation("cannot finish a %s series as a batch", root.kind())
		return nil
	}
}

// Release discards the builder and everything written to it.
func (b *Builder) Release() {
	if b.finished {
		return
	}
	b.finished = true
	if b.root != nil {
		b.root.release()
		b.root = nil
	}
}
