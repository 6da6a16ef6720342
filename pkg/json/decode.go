package json

import (
	"io"
	"math"
	"strconv"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/columnforge/pkg/errors"
	"github.com/ajitpratap0/columnforge/pkg/series"
)

// DefaultMaxDepth bounds the nesting of decoded documents.
const DefaultMaxDepth = 128

// maxExactFloat is the largest magnitude below which every integer is
// exactly representable as a float64.
const maxExactFloat = 1 << 53

// ErrInvalidValue is the cause of errors for documents that are well-formed
// JSON but cannot be built: duplicate keys and numbers outside the float64
// range. ReadValue consumes such a document completely, so the caller may
// skip it and keep reading.
var ErrInvalidValue = errors.New(errors.ErrorTypeData, "invalid JSON value")

// ReadValue decodes the next JSON value from dec into the shapes the series
// builder writes: objects become series.Object with members in document
// order, arrays become []interface{}, numbers stay gojson.Number. Every
// number it returns is accepted by series.KindOf. Objects with duplicate keys,
// unrepresentable numbers and values nested deeper than maxDepth are
// rejected with an ErrorTypeData error. At the end of the input ReadValue
// returns io.EOF unwrapped.
func ReadValue(dec *gojson.Decoder, maxDepth int) (interface{}, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	tok, err := dec.Token()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "malformed JSON")
	}
	d := &decoder{dec: dec, maxDepth: maxDepth}
	v, err := d.value(tok, 1)
	if err != nil {
		return nil, err
	}
	if d.invalid != nil {
		return nil, d.invalid
	}
	return v, nil
}

// decoder reads one document. Invalid values are recorded in invalid and
// decoding continues to the end of the document.
type decoder struct {
	dec      *gojson.Decoder
	maxDepth int
	invalid  *errors.Error
}

func (d *decoder) reject(message, key string, value interface{}) {
	if d.invalid == nil {
		d.invalid = errors.Wrap(ErrInvalidValue, errors.ErrorTypeData, message).
			WithDetail(key, value)
	}
}

func (d *decoder) value(tok gojson.Token, depth int) (interface{}, error) {
	maxDepth := d.maxDepth
	switch v := tok.(type) {
	case gojson.Delim:
		if depth > maxDepth {
			return nil, errors.Newf(errors.ErrorTypeData, "document nested deeper than %d levels", maxDepth)
		}
		switch v {
		case '{':
			return d.object(depth)
		case '[':
			return d.array(depth)
		default:
			return nil, errors.Newf(errors.ErrorTypeData, "unexpected %q", rune(v))
		}
	case gojson.Number:
		if _, ok := series.KindOf(v); !ok {
			d.reject("number out of range", "number", v.String())
			return nil, nil
		}
		return v, nil
	case string, bool, nil:
		return v, nil
	case float64:
		if v == math.Trunc(v) && math.Abs(v) <= maxExactFloat {
			return int64(v), nil
		}
		return v, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeData, "unexpected token %T", tok)
	}
}

func next(dec *gojson.Decoder) (gojson.Token, error) {
	tok, err := dec.Token()
	if err == io.EOF {
		return nil, errors.New(errors.ErrorTypeData, "unexpected end of JSON input")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "malformed JSON")
	}
	return tok, nil
}

func (d *decoder) object(depth int) (series.Object, error) {
	dec := d.dec
	obj := series.Object{}
	var seen map[string]struct{}
	for dec.More() {
		tok, err := next(dec)
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeData, "object key must be a string, got %T", tok)
		}
		if seen == nil {
			seen = make(map[string]struct{})
		}
		_, dup := seen[key]
		if dup {
			d.reject("duplicate key "+strconv.Quote(key), "key", key)
		}
		seen[key] = struct{}{}

		tok, err = next(dec)
		if err != nil {
			return nil, err
		}
		val, err := d.value(tok, depth+1)
		if err != nil {
			return nil, err
		}
		if !dup {
			obj = append(obj, series.Member{Key: key, Value: val})
		}
	}
	if err := closing(dec, '}'); err != nil {
		return nil, err
	}
	return obj, nil
}

func (d *decoder) array(depth int) ([]interface{}, error) {
	dec := d.dec
	arr := []interface{}{}
	for dec.More() {
		tok, err := next(dec)
		if err != nil {
			return nil, err
		}
		val, err := d.value(tok, depth+1)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
	if err := closing(dec, ']'); err != nil {
		return nil, err
	}
	return arr, nil
}

func closing(dec *gojson.Decoder, want gojson.Delim) error {
	tok, err := next(dec)
	if err != nil {
		return err
	}
	if d, ok := tok.(gojson.Delim); !ok || d != want {
		return errors.Newf(errors.ErrorTypeData, "expected %q, got %v", rune(want), tok)
	}
	return nil
}
