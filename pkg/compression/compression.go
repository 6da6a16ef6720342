// Package compression wraps input and output streams of columnforge in a
// compression codec.
//
// # Overview
//
// The compression package provides:
//   - Multiple compression algorithms (Gzip, Snappy, LZ4, Zstd, S2, Deflate)
//   - Configurable compression levels (Fastest, Default, Better, Best)
//   - Detection of the codec from a file extension or from magic bytes
//
// # Basic Usage
//
//	r, err := compression.OpenReader(file, compression.Auto)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	w, err := compression.NewWriter(out, &compression.Config{
//	    Algorithm: compression.Zstd,
//	    Level:     compression.Better,
//	})
//
// Closing a reader or writer returned by this package never closes the
// wrapped stream.
package compression

import (
	"bufio"
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/columnforge/pkg/errors"
)

// Algorithm represents a compression algorithm.
// Each algorithm has different trade-offs between speed and compression ratio.
type Algorithm string

const (
	// Auto detects the algorithm from the stream's magic bytes
	Auto Algorithm = "auto"
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents framed snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
	// Deflate represents raw deflate compression
	Deflate Algorithm = "deflate"
)

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// Config represents compressor configuration.
type Config struct {
	Algorithm  Algorithm // Compression algorithm to use
	Level      Level     // Compression level
	BufferSize int       // Buffer size for the wrapped stream, 0 for none
}

// DefaultConfig returns a configuration that writes uncompressed output.
func DefaultConfig() *Config {
	return &Config{
		Algorithm: None,
		Level:     Default,
	}
}

// ParseAlgorithm parses an algorithm name. The empty string is None.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case "":
		return None, nil
	case Auto, None, Gzip, Snappy, LZ4, Zstd, S2, Deflate:
		return a, nil
	case "gz":
		return Gzip, nil
	case "zst":
		return Zstd, nil
	default:
		return None, errors.New(errors.ErrorTypeConfig, "unknown compression algorithm: "+s)
	}
}

// ParseLevel parses fastest, default, better or best.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fastest":
		return Fastest, nil
	case "", "default":
		return Default, nil
	case "better":
		return Better, nil
	case "best":
		return Best, nil
	default:
		return Default, errors.New(errors.ErrorTypeConfig, "unknown compression level: "+s)
	}
}

var extensions = map[string]Algorithm{
	".gz":      Gzip,
	".gzip":    Gzip,
	".sz":      Snappy,
	".snappy":  Snappy,
	".lz4":     LZ4,
	".zst":     Zstd,
	".zstd":    Zstd,
	".s2":      S2,
	".deflate": Deflate,
}

// Detect returns the algorithm implied by the extension of path, or None.
func Detect(path string) Algorithm {
	if a, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return a
	}
	return None
}

var magics = []struct {
	prefix    []byte
	algorithm Algorithm
}{
	{[]byte{0x1f, 0x8b}, Gzip},
	{[]byte{0x28, 0xb5, 0x2f, 0xfd}, Zstd},
	{[]byte{0x04, 0x22, 0x4d, 0x18}, LZ4},
	{[]byte("\xff\x06\x00\x00sNaPpY"), Snappy},
	{[]byte("\xff\x06\x00\x00S2sTwO"), S2},
}

// Sniff peeks at the start of br and returns the algorithm whose magic
// bytes it carries, or None. Raw deflate has no magic and is never sniffed.
func Sniff(br *bufio.Reader) (Algorithm, error) {
	head, err := br.Peek(10)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return None, errors.Wrap(err, errors.ErrorTypeFile, "failed to peek input")
	}
	for _, m := range magics {
		if bytes.HasPrefix(head, m.prefix) {
			return m.algorithm, nil
		}
	}
	return None, nil
}

// OpenReader returns a reader of the decompressed content of r. With Auto
// the algorithm is sniffed from the stream.
func OpenReader(r io.Reader, a Algorithm) (io.ReadCloser, error) {
	if a == Auto {
		br := bufio.NewReader(r)
		detected, err := Sniff(br)
		if err != nil {
			return nil, err
		}
		return NewReader(br, detected)
	}
	return NewReader(r, a)
}

// NewReader returns a reader of the decompressed content of r.
func NewReader(r io.Reader, a Algorithm) (io.ReadCloser, error) {
	switch a {
	case None, "":
		return io.NopCloser(r), nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid gzip stream")
		}
		return zr, nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid zstd stream")
		}
		return dec.IOReadCloser(), nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	case Deflate:
		return flate.NewReader(r), nil
	default:
		return nil, errors.New(errors.ErrorTypeCapability, "cannot decompress "+string(a))
	}
}

// NewWriter returns a writer that compresses into w. The caller must Close
// it to flush the codec's trailer.
func NewWriter(w io.Writer, cfg *Config) (io.WriteCloser, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BufferSize > 0 {
		bw := bufio.NewWriterSize(w, cfg.BufferSize)
		cw, err := newCodecWriter(bw, cfg)
		if err != nil {
			return nil, err
		}
		return &flushingWriter{WriteCloser: cw, buf: bw}, nil
	}
	return newCodecWriter(w, cfg)
}

func newCodecWriter(w io.Writer, cfg *Config) (io.WriteCloser, error) {
	switch cfg.Algorithm {
	case None, "":
		return nopWriteCloser{w}, nil
	case Gzip:
		zw, err := gzip.NewWriterLevel(w, mapGzipLevel(cfg.Level))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create gzip writer")
		}
		return zw, nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case LZ4:
		zw := lz4.NewWriter(w)
		if err := zw.Apply(lz4.CompressionLevelOption(mapLZ4Level(cfg.Level))); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to configure lz4 writer")
		}
		return zw, nil
	case Zstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(mapZstdLevel(cfg.Level)))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create zstd writer")
		}
		return enc, nil
	case S2:
		return s2.NewWriter(w), nil
	case Deflate:
		zw, err := flate.NewWriter(w, mapDeflateLevel(cfg.Level))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create deflate writer")
		}
		return zw, nil
	default:
		return nil, errors.New(errors.ErrorTypeCapability, "cannot compress with "+string(cfg.Algorithm))
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// flushingWriter flushes its buffer after the codec wrote its trailer.
type flushingWriter struct {
	io.WriteCloser
	buf *bufio.Writer
}

func (f *flushingWriter) Close() error {
	if err := f.WriteCloser.Close(); err != nil {
		return err
	}
	return f.buf.Flush()
}

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapDeflateLevel(level Level) int {
	switch level {
	case Fastest:
		return flate.BestSpeed
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}
