package series

import (
	"math"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	gojson "github.com/goccy/go-json"
)

// Kind identifies the type committed at a slot of the builder tree.
type Kind uint8

const (
	// KindNull is the state of a slot that has only seen nulls so far
	KindNull Kind = iota
	// KindBool holds booleans
	KindBool
	// KindInt64 holds signed integers
	KindInt64
	// KindUint64 holds unsigned integers
	KindUint64
	// KindDouble holds floating point numbers
	KindDouble
	// KindString holds UTF-8 strings
	KindString
	// KindBlob holds raw bytes
	KindBlob
	// KindTime holds UTC timestamps with nanosecond precision, which limits
	// values to the years 1677 through 2262
	KindTime
	// KindDuration holds durations with nanosecond precision
	KindDuration
	// KindRecord holds nested records
	KindRecord
	// KindList holds nested lists
	KindList
	// KindUnion holds values of more than one kind
	KindUnion
)

// MinTime and MaxTime bound the time.Time values a KindTime slot accepts:
// int64 nanoseconds since the Unix epoch.
var (
	MinTime = time.Unix(0, math.MinInt64).UTC()
	MaxTime = time.Unix(0, math.MaxInt64).UTC()
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindInt64:    "int64",
	KindUint64:   "uint64",
	KindDouble:   "double",
	KindString:   "string",
	KindBlob:     "blob",
	KindTime:     "time",
	KindDuration: "duration",
	KindRecord:   "record",
	KindList:     "list",
	KindUnion:    "union",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsAtom reports whether k is a primitive kind.
func (k Kind) IsAtom() bool {
	return k >= KindBool && k <= KindDuration
}

// DataType returns the Arrow type used to store values of an atom kind.
// KindNull maps to arrow.Null; composite kinds have no fixed type and
// return nil.
func (k Kind) DataType() arrow.DataType {
	switch k {
	case KindNull:
		return arrow.Null
	case KindBool:
		return arrow.FixedWidthTypes.Boolean
	case KindInt64:
		return arrow.PrimitiveTypes.Int64
	case KindUint64:
		return arrow.PrimitiveTypes.Uint64
	case KindDouble:
		return arrow.PrimitiveTypes.Float64
	case KindString:
		return arrow.BinaryTypes.String
	case KindBlob:
		return arrow.BinaryTypes.Binary
	case KindTime:
		return arrow.FixedWidthTypes.Timestamp_ns
	case KindDuration:
		return arrow.FixedWidthTypes.Duration_ns
	default:
		return nil
	}
}

// KindOf returns the atom kind a Go value is stored as, and whether the value
// is a supported scalar at all. Times outside MinTime and MaxTime and JSON
// numbers beyond the float64 range are not.
func KindOf(v interface{}) (Kind, bool) {
	k, _, ok := normalize(v)
	return k, ok
}

// normalize maps a Go scalar onto its kind and canonical representation:
// int64, uint64, float64, bool, string, []byte, time.Time or time.Duration.
func normalize(v interface{}) (Kind, interface{}, bool) {
	switch x := v.(type) {
	case bool:
		return KindBool, x, true
	case int:
		return KindInt64, int64(x), true
	case int8:
		return KindInt64, int64(x), true
	case int16:
		return KindInt64, int64(x), true
	case int32:
		return KindInt64, int64(x), true
	case int64:
		return KindInt64, x, true
	case uint:
		return KindUint64, uint64(x), true
	case uint8:
		return KindUint64, uint64(x), true
	case uint16:
		return KindUint64, uint64(x), true
	case uint32:
		return KindUint64, uint64(x), true
	case uint64:
		return KindUint64, x, true
	case float32:
		return KindDouble, float64(x), true
	case float64:
		return KindDouble, x, true
	case string:
		return KindString, x, true
	case []byte:
		return KindBlob, x, true
	case time.Time:
		if x.Before(MinTime) || x.After(MaxTime) {
			return KindNull, nil, false
		}
		return KindTime, x, true
	case time.Duration:
		return KindDuration, x, true
	case gojson.Number:
		return normalizeNumber(string(x))
	default:
		return KindNull, nil, false
	}
}

// normalizeNumber prefers int64, then uint64, then double for a JSON number
// literal.
func normalizeNumber(s string) (Kind, interface{}, bool) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return KindInt64, i, true
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return KindUint64, u, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return KindNull, nil, false
	}
	return KindDouble, f, true
}
