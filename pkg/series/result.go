package series

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Series is one finished column.
type Series struct {
	Array arrow.Array
	Type  arrow.DataType
}

// Len returns the number of values in the series.
func (s *Series) Len() int {
	if s == nil || s.Array == nil {
		return 0
	}
	return s.Array.Len()
}

// Release releases the underlying array.
func (s *Series) Release() {
	if s != nil && s.Array != nil {
		s.Array.Release()
		s.Array = nil
	}
}

// Column is a named series of a batch.
type Column struct {
	Name  string
	Array arrow.Array
	Type  arrow.DataType
}

// Batch is the set of columns produced from a record-rooted builder. All
// columns have Rows values.
type Batch struct {
	Columns []Column
	Rows    int
}

// Schema returns the Arrow schema of the batch.
func (b *Batch) Schema() *arrow.Schema {
	fields := make([]arrow.Field, len(b.Columns))
	for i, c := range b.Columns {
		fields[i] = arrow.Field{Name: c.Name, Type: c.Type, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// Record assembles the batch into an Arrow record. The record holds its own
// references; the caller releases both the record and the batch.
func (b *Batch) Record() arrow.Record {
	cols := make([]arrow.Array, len(b.Columns))
	for i, c := range b.Columns {
		cols[i] = c.Array
	}
	return array.NewRecord(b.Schema(), cols, int64(b.Rows))
}

// Column returns the column called name, or nil.
func (b *Batch) Column(name string) *Column {
	for i := range b.Columns {
		if b.Columns[i].Name == name {
			return &b.Columns[i]
		}
	}
	return nil
}

// Release releases every column.
func (b *Batch) Release() {
	if b == nil {
		return
	}
	for i := range b.Columns {
		if b.Columns[i].Array != nil {
			b.Columns[i].Array.Release()
			b.Columns[i].Array = nil
		}
	}
}
