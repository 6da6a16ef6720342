package json

import (
	"bytes"
	"io"
	"strings"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/columnforge/pkg/errors"
	"github.com/ajitpratap0/columnforge/pkg/series"
)

func TestReadValueKeepsOrder(t *testing.T) {
	dec := NewDecoder(strings.NewReader(`{"z": 1, "a": [true, null, "x"], "m": {"k": 2.5}}`))

	v, err := ReadValue(dec, 0)
	require.NoError(t, err)

	obj, ok := v.(series.Object)
	require.True(t, ok, "got %T", v)
	require.Len(t, obj, 3)
	assert.Equal(t, "z", obj[0].Key)
	assert.Equal(t, "a", obj[1].Key)
	assert.Equal(t, "m", obj[2].Key)
	assert.Equal(t, []interface{}{true, nil, "x"}, obj[1].Value)

	nested := obj[2].Value.(series.Object)
	assert.Equal(t, "k", nested[0].Key)

	switch n := obj[0].Value.(type) {
	case gojson.Number:
		assert.Equal(t, "1", n.String())
	case int64:
		assert.Equal(t, int64(1), n)
	default:
		t.Fatalf("unexpected number representation %T", n)
	}

	_, err = ReadValue(dec, 0)
	assert.Equal(t, io.EOF, err)
}

func TestReadValueStream(t *testing.T) {
	dec := NewDecoder(strings.NewReader("{\"a\":1}\n\n{\"a\":2}\n"))
	count := 0
	for {
		_, err := ReadValue(dec, 0)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 2, count)
}

func TestReadValueRejects(t *testing.T) {
	cases := map[string]string{
		"duplicate key": `{"a": 1, "a": 2}`,
		"truncated":     `{"a": [1, 2`,
		"too deep":      `[[[[1]]]]`,
		"huge number":   `{"a": 1e400}`,
		"tiny number":   `[-1e400]`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadValue(NewDecoder(strings.NewReader(in)), 3)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeData), "got %v", err)
		})
	}
}

func TestReadValueConsumesInvalidDocument(t *testing.T) {
	dec := NewDecoder(strings.NewReader(`{"a": 1e400, "b": [1, 2], "b": {"c": 3}} {"a": 1}`))

	_, err := ReadValue(dec, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidValue))
	assert.Contains(t, err.Error(), "number out of range")

	v, err := ReadValue(dec, 0)
	require.NoError(t, err)
	assert.Len(t, v.(series.Object), 1)
}

func TestReadValueFeedsBuilder(t *testing.T) {
	dec := NewDecoder(strings.NewReader(`{"id": 1, "tags": ["a"]} {"id": "x"}`))
	b := series.New()
	for {
		v, err := ReadValue(dec, 0)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b.Data(v)
	}
	batch := b.FinishAsBatch()
	defer batch.Release()

	require.Equal(t, 2, batch.Rows)
	require.Len(t, batch.Columns, 2)
	assert.Equal(t, "id", batch.Columns[0].Name)
	assert.Equal(t, "tags", batch.Columns[1].Name)
}

func TestStreamingEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewStreamingEncoder(&buf, true)
	require.NoError(t, enc.Encode(map[string]int{"a": 1}))
	require.NoError(t, enc.Encode(map[string]string{"b": "<x>"}))
	require.NoError(t, enc.Close())
	assert.Equal(t, "[{\"a\":1},{\"b\":\"<x>\"}]\n", buf.String())

	buf.Reset()
	enc = NewStreamingEncoder(&buf, false)
	require.NoError(t, enc.Encode([]int{1}))
	require.NoError(t, enc.Encode([]int{2}))
	require.NoError(t, enc.Close())
	assert.Equal(t, "[1]\n[2]\n", buf.String())

	buf.Reset()
	enc = NewStreamingEncoder(&buf, true)
	require.NoError(t, enc.Close())
	assert.Equal(t, "[]\n", buf.String())
}
