// Package json provides goccy/go-json backed encoding and an ordered,
// validating decoder for documents fed into the series builder.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

// NewDecoder returns a decoder that keeps number literals as gojson.Number.
func NewDecoder(r io.Reader) *gojson.Decoder {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()
	return dec
}

// Marshal is a high-performance drop-in replacement for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// MarshalIndent is a high-performance replacement for json.MarshalIndent
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Unmarshal is a high-performance drop-in replacement for json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// StreamingEncoder writes values as JSON lines or as one JSON array.
type StreamingEncoder struct {
	writer      io.Writer
	buf         *bytes.Buffer
	firstRecord bool
	isArray     bool
	err         error
}

// NewStreamingEncoder creates a new streaming encoder
func NewStreamingEncoder(w io.Writer, isArray bool) *StreamingEncoder {
	return &StreamingEncoder{
		writer:      w,
		buf:         GetBuffer(),
		firstRecord: true,
		isArray:     isArray,
	}
}

// Encode encodes a single value
func (se *StreamingEncoder) Encode(v interface{}) error {
	if se.err != nil {
		return se.err
	}
	se.buf.Reset()
	if se.isArray {
		if se.firstRecord {
			se.buf.WriteByte('[')
		} else {
			se.buf.WriteByte(',')
		}
	}
	se.firstRecord = false

	enc := gojson.NewEncoder(se.buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	if se.isArray {
		// Encode terminates with a newline; arrays are written compact
		se.buf.Truncate(se.buf.Len() - 1)
	}
	_, se.err = se.writer.Write(se.buf.Bytes())
	return se.err
}

// Close finalizes the encoding
func (se *StreamingEncoder) Close() error {
	if se.buf == nil {
		return se.err
	}
	defer func() {
		PutBuffer(se.buf)
		se.buf = nil
	}()
	if se.err != nil || !se.isArray {
		return se.err
	}
	tail := "]\n"
	if se.firstRecord {
		tail = "[]\n"
	}
	_, se.err = io.WriteString(se.writer, tail)
	return se.err
}
