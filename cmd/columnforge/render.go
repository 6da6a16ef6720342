package main

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	cfjson "github.com/ajitpratap0/columnforge/pkg/json"
)

// fieldInfo describes one column of an inferred schema.
type fieldInfo struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Nulls    *int        `json:"nulls,omitempty"`
	Children []fieldInfo `json:"children,omitempty"`
}

type schemaInfo struct {
	Rows   *int64      `json:"rows,omitempty"`
	Fields []fieldInfo `json:"fields"`
}

func describeType(name string, dt arrow.DataType) fieldInfo {
	info := fieldInfo{Name: name, Type: dt.Name()}
	switch t := dt.(type) {
	case *arrow.StructType:
		for _, f := range t.Fields() {
			info.Children = append(info.Children, describeType(f.Name, f.Type))
		}
	case *arrow.ListType:
		info.Children = []fieldInfo{describeType(t.ElemField().Name, t.Elem())}
	case arrow.UnionType:
		for _, f := range t.Fields() {
			info.Children = append(info.Children, describeType(f.Name, f.Type))
		}
	}
	return info
}

// describeSchema describes schema. rows and nulls are optional.
func describeSchema(schema *arrow.Schema, rows *int64, nulls []int) schemaInfo {
	info := schemaInfo{Rows: rows, Fields: []fieldInfo{}}
	for i, f := range schema.Fields() {
		fi := describeType(f.Name, f.Type)
		if i < len(nulls) {
			n := nulls[i]
			fi.Nulls = &n
		}
		info.Fields = append(info.Fields, fi)
	}
	return info
}

// orderedObject marshals as a JSON object with keys in column order.
type orderedObject struct {
	keys   []string
	values []interface{}
}

func (o orderedObject) MarshalJSON() ([]byte, error) {
	buf := cfjson.GetBuffer()
	defer cfjson.PutBuffer(buf)

	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := cfjson.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := cfjson.Marshal(o.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// valueAt returns the JSON shape of row i of arr. Union values are
// unwrapped to the value of their active variant.
func valueAt(arr arrow.Array, i int) interface{} {
	switch a := arr.(type) {
	case *array.SparseUnion:
		return valueAt(a.Field(a.ChildID(i)), i)
	case *array.DenseUnion:
		return valueAt(a.Field(a.ChildID(i)), int(a.ValueOffset(i)))
	}

	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Null:
		return nil
	case *array.Struct:
		st := a.DataType().(*arrow.StructType)
		obj := orderedObject{}
		for j := 0; j < a.NumField(); j++ {
			obj.keys = append(obj.keys, st.Field(j).Name)
			obj.values = append(obj.values, valueAt(a.Field(j), i))
		}
		return obj
	case *array.List:
		start, end := a.ValueOffsets(i)
		values := a.ListValues()
		items := make([]interface{}, 0, end-start)
		for j := start; j < end; j++ {
			items = append(items, valueAt(values, int(j)))
		}
		return items
	default:
		return arr.GetOneForMarshal(i)
	}
}

// rowAt returns row i of rec as an ordered JSON object.
func rowAt(rec arrow.Record, i int) orderedObject {
	obj := orderedObject{}
	for j, col := range rec.Columns() {
		obj.keys = append(obj.keys, rec.ColumnName(j))
		obj.values = append(obj.values, valueAt(col, i))
	}
	return obj
}
