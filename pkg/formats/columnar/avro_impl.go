package columnar

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/columnforge/pkg/errors"
	cfjson "github.com/ajitpratap0/columnforge/pkg/json"
	"github.com/ajitpratap0/columnforge/pkg/series"
)

// avroRecordName names the top-level Avro record
const avroRecordName = "row"

// avroUint64Name names the fixed type holding uint64 values, big-endian
const avroUint64Name = "uint64"

// avroWriter implements Writer for Avro object container files. Every value
// slot is a union with "null"; Arrow unions become the other branches of
// that union. Timestamps and durations are stored with microsecond
// precision.
type avroWriter struct {
	out            *countingWriter
	config         *WriterConfig
	schema         *arrow.Schema
	fields         []avroField
	ocfWriter      *goavro.OCFWriter
	recordsWritten int64
	batchesWritten int64
	closed         bool
	mu             sync.Mutex
}

func newAvroWriter(w io.Writer, config *WriterConfig) (*avroWriter, error) {
	return &avroWriter{
		out:    &countingWriter{w: w},
		config: config,
	}, nil
}

func getAvroCompression(name string) string {
	switch strings.ToLower(name) {
	case CompressionDeflate:
		return goavro.CompressionDeflateLabel
	case CompressionSnappy:
		return goavro.CompressionSnappyLabel
	default:
		return goavro.CompressionNullLabel
	}
}

func (aw *avroWriter) open(schema *arrow.Schema) error {
	spec, fields, err := arrowToAvroSchema(schema)
	if err != nil {
		return err
	}
	codec, err := goavro.NewCodec(spec)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to create Avro codec").
			WithDetail("schema", spec)
	}
	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               aw.out,
		Codec:           codec,
		CompressionName: getAvroCompression(aw.config.Compression),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create Avro writer")
	}
	aw.ocfWriter, aw.schema, aw.fields = ocfWriter, schema, fields
	return nil
}

func (aw *avroWriter) WriteBatch(batch *series.Batch) error {
	if batch == nil {
		return nil
	}
	rec := batch.Record()
	defer rec.Release()
	return aw.WriteRecord(rec)
}

func (aw *avroWriter) WriteRecord(rec arrow.Record) error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	if aw.closed {
		return errors.New(errors.ErrorTypeInternal, "write to closed Avro writer")
	}
	if aw.ocfWriter == nil {
		if err := aw.open(rec.Schema()); err != nil {
			return err
		}
	} else if !aw.schema.Equal(rec.Schema()) {
		return SchemaChangedError(aw.schema, rec.Schema())
	}

	rows := make([]interface{}, rec.NumRows())
	for i := range rows {
		datum := make(map[string]interface{}, len(aw.fields))
		for c, f := range aw.fields {
			datum[f.name] = f.node.native(rec.Column(c), i)
		}
		rows[i] = datum
	}
	// one Append writes one block
	if err := aw.ocfWriter.Append(rows); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write Avro block")
	}
	aw.recordsWritten += rec.NumRows()
	aw.batchesWritten++
	return nil
}

func (aw *avroWriter) Schema() *arrow.Schema {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.schema
}

// Close writes the header of an output that never saw a batch. Blocks are
// written as they are appended, so there is nothing else to flush.
func (aw *avroWriter) Close() error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	if aw.closed {
		return nil
	}
	aw.closed = true
	if aw.ocfWriter == nil {
		return aw.open(arrow.NewSchema(nil, nil))
	}
	return nil
}

func (aw *avroWriter) Format() Format {
	return Avro
}

func (aw *avroWriter) BytesWritten() int64 {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.out.n
}

func (aw *avroWriter) RecordsWritten() int64 {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.recordsWritten
}

func (aw *avroWriter) BatchesWritten() int64 {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.batchesWritten
}

// avroNode converts the values of one Arrow type to goavro's native form.
type avroNode struct {
	// branch is the name of the union branch; empty for the null type
	branch   string
	unit     arrow.TimeUnit
	fields   []avroField
	elem     *avroNode
	variants []*avroNode
}

type avroField struct {
	name string
	node *avroNode
}

// native returns row i of arr for a slot that may be null.
func (n *avroNode) native(arr arrow.Array, i int) interface{} {
	if u, ok := arr.(array.Union); ok {
		child := u.ChildID(i)
		if d, ok := u.(*array.DenseUnion); ok {
			i = int(d.ValueOffset(i))
		}
		return n.variants[child].native(u.Field(child), i)
	}
	if n.branch == "" || arr.IsNull(i) {
		return nil
	}
	return goavro.Union(n.branch, n.value(arr, i))
}

func (n *avroNode) value(arr arrow.Array, i int) interface{} {
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Uint64:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, a.Value(i))
		return buf
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.Binary:
		return a.Value(i)
	case *array.Timestamp:
		return a.Value(i).ToTime(n.unit)
	case *array.Duration:
		return time.Duration(a.Value(i)) * n.unit.Multiplier()
	case *array.Struct:
		m := make(map[string]interface{}, len(n.fields))
		for j, f := range n.fields {
			m[f.name] = f.node.native(a.Field(j), i)
		}
		return m
	case *array.List:
		start, end := a.ValueOffsets(i)
		values := a.ListValues()
		items := make([]interface{}, 0, end-start)
		for j := start; j < end; j++ {
			items = append(items, n.elem.native(values, int(j)))
		}
		return items
	default:
		return nil
	}
}

// avroSchemaBuilder derives an Avro schema from an Arrow schema. Avro names
// are restricted to [A-Za-z_][A-Za-z0-9_]*; field names outside that set
// are rewritten and the original is kept in the field's doc.
type avroSchemaBuilder struct {
	records     int
	uint64Known bool
}

func arrowToAvroSchema(schema *arrow.Schema) (string, []avroField, error) {
	b := &avroSchemaBuilder{}
	spec, node, err := b.record(avroRecordName, schema.Fields())
	if err != nil {
		return "", nil, err
	}
	data, err := cfjson.Marshal(spec)
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode Avro schema")
	}
	return string(data), node.fields, nil
}

func (b *avroSchemaBuilder) record(name string, fields []arrow.Field) (map[string]interface{}, *avroNode, error) {
	node := &avroNode{branch: name, fields: make([]avroField, len(fields))}
	specs := make([]interface{}, len(fields))
	taken := make(map[string]bool, len(fields))
	for i, f := range fields {
		fieldName := uniqueAvroName(avroName(f.Name), taken)
		typ, child, err := b.nullable(f.Type)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrorTypeCapability, "field cannot be stored in Avro").
				WithDetail("field", f.Name)
		}
		spec := map[string]interface{}{"name": fieldName, "type": typ}
		if fieldName != f.Name {
			spec["doc"] = f.Name
		}
		specs[i] = spec
		node.fields[i] = avroField{name: fieldName, node: child}
	}
	return map[string]interface{}{"type": "record", "name": name, "fields": specs}, node, nil
}

// nullable returns the schema of a slot that may hold nulls.
func (b *avroSchemaBuilder) nullable(dt arrow.DataType) (interface{}, *avroNode, error) {
	switch t := dt.(type) {
	case *arrow.NullType:
		return "null", &avroNode{}, nil
	case arrow.UnionType:
		branches := []interface{}{"null"}
		node := &avroNode{variants: make([]*avroNode, len(t.Fields()))}
		for i, f := range t.Fields() {
			switch f.Type.(type) {
			case *arrow.NullType:
				node.variants[i] = &avroNode{}
				continue
			case arrow.UnionType:
				return nil, nil, errors.New(errors.ErrorTypeCapability, "nested union: "+dt.String())
			}
			spec, variant, err := b.branch(f.Type)
			if err != nil {
				return nil, nil, err
			}
			branches = append(branches, spec)
			node.variants[i] = variant
		}
		return branches, node, nil
	default:
		spec, node, err := b.branch(dt)
		if err != nil {
			return nil, nil, err
		}
		return []interface{}{"null", spec}, node, nil
	}
}

// branch returns the schema of one non-null branch.
func (b *avroSchemaBuilder) branch(dt arrow.DataType) (interface{}, *avroNode, error) {
	switch t := dt.(type) {
	case *arrow.BooleanType:
		return "boolean", &avroNode{branch: "boolean"}, nil
	case *arrow.Int64Type:
		return "long", &avroNode{branch: "long"}, nil
	case *arrow.Uint64Type:
		node := &avroNode{branch: avroUint64Name}
		if b.uint64Known {
			return avroUint64Name, node, nil
		}
		b.uint64Known = true
		return map[string]interface{}{"type": "fixed", "name": avroUint64Name, "size": 8}, node, nil
	case *arrow.Float64Type:
		return "double", &avroNode{branch: "double"}, nil
	case *arrow.StringType:
		return "string", &avroNode{branch: "string"}, nil
	case *arrow.BinaryType:
		return "bytes", &avroNode{branch: "bytes"}, nil
	case *arrow.TimestampType:
		return map[string]interface{}{"type": "long", "logicalType": "timestamp-micros"},
			&avroNode{branch: "long.timestamp-micros", unit: t.Unit}, nil
	case *arrow.DurationType:
		return map[string]interface{}{"type": "long", "logicalType": "time-micros"},
			&avroNode{branch: "long.time-micros", unit: t.Unit}, nil
	case *arrow.StructType:
		b.records++
		return b.record(fmt.Sprintf("record_%d", b.records), t.Fields())
	case *arrow.ListType:
		items, elem, err := b.nullable(t.Elem())
		if err != nil {
			return nil, nil, err
		}
		return map[string]interface{}{"type": "array", "items": items},
			&avroNode{branch: "array", elem: elem}, nil
	default:
		return nil, nil, errors.New(errors.ErrorTypeCapability, "unsupported type: "+dt.String())
	}
}

func avroName(s string) string {
	var sb strings.Builder
	for i, r := range s {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}

func uniqueAvroName(name string, taken map[string]bool) string {
	candidate := name
	for n := 2; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s_%d", name, n)
	}
	taken[candidate] = true
	return candidate
}
