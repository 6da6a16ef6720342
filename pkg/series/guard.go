package series

// Member is one key/value pair of an Object.
type Member struct {
	Key   string
	Value interface{}
}

// Object is a record value that keeps the order of its members. Data writes
// it as a record with fields in member order.
type Object []Member

// RecordGuard writes the fields of one record row. It is only valid inside
// the closure it was passed to.
type RecordGuard struct {
	e    *env
	rec  *recordBuilder
	done bool
}

func (g *RecordGuard) check() {
	if g == nil || g.done {
		violation("record guard used outside of its scope")
	}
}

// Field returns a handle for writing the field name of the current row. The
// field is created if the record has not seen it before.
func (g *RecordGuard) Field(name string) FieldRef {
	g.check()
	g.rec.slot(name)
	return FieldRef{g: g, name: name}
}

// Len returns the number of rows committed to the record before this one.
func (g *RecordGuard) Len() int {
	g.check()
	return g.rec.n
}

// FieldRef writes exactly one value into one field of the current row.
type FieldRef struct {
	g    *RecordGuard
	name string
}

func (f FieldRef) slot() *builder {
	if f.g == nil {
		violation("zero FieldRef")
	}
	f.g.check()
	s := f.g.rec.slot(f.name)
	if (*s).length() > f.g.rec.n {
		violation("field %q written twice in one row", f.name)
	}
	return s
}

// Null writes a null.
func (f FieldRef) Null() {
	writeNull(f.slot())
}

// Atom writes a scalar. See KindOf for the accepted Go types.
func (f FieldRef) Atom(v interface{}) {
	s := f.slot()
	writeAtom(f.g.e, s, v)
}

// Data writes a nested Go value: nil, Object, map[string]interface{},
// []interface{} or a scalar.
func (f FieldRef) Data(v interface{}) {
	s := f.slot()
	writeData(f.g.e, s, v)
}

// Record writes a nested record through fn.
func (f FieldRef) Record(fn func(*RecordGuard)) {
	s := f.slot()
	withRecord(f.g.e, s, fn)
}

// List writes a nested list through fn.
func (f FieldRef) List(fn func(*ListGuard)) {
	s := f.slot()
	withList(f.g.e, s, fn)
}

// ListGuard appends elements to one list entry. It is only valid inside the
// closure it was passed to.
type ListGuard struct {
	e    *env
	list *listBuilder
	done bool
}

func (g *ListGuard) slot() *builder {
	if g == nil || g.done {
		violation("list guard used outside of its scope")
	}
	return &g.list.elem
}

// Len returns the number of elements appended to this entry so far.
func (g *ListGuard) Len() int {
	g.slot()
	return g.list.entryLen()
}

// Null appends a null element.
func (g *ListGuard) Null() {
	writeNull(g.slot())
}

// Atom appends a scalar element.
func (g *ListGuard) Atom(v interface{}) {
	writeAtom(g.e, g.slot(), v)
}

// Data appends a nested Go value as one element.
func (g *ListGuard) Data(v interface{}) {
	writeData(g.e, g.slot(), v)
}

// Record appends a record element written through fn.
func (g *ListGuard) Record(fn func(*RecordGuard)) {
	withRecord(g.e, g.slot(), fn)
}

// List appends a nested list element written through fn.
func (g *ListGuard) List(fn func(*ListGuard)) {
	withList(g.e, g.slot(), fn)
}
