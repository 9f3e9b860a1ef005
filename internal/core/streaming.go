package core

// streaming.go provides the reader chain an import file flows through
// before tokenizing. Nothing here buffers more than a read-sized chunk:
//
//   - LimitedReader: fails once a file exceeds the configured size
//   - CountingReader: tracks raw bytes consumed for progress reporting
//   - NewDecodingReader: strips a BOM and replaces invalid UTF-8
//
// Use WrapForStreaming to apply all of them in the correct order.

import (
	"errors"
	"io"
	"sync/atomic"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// errFileTooLarge is returned by LimitedReader and surfaced as an InvalidFileError.
var errFileTooLarge = errors.New("file exceeds maximum size")

// LimitedReader reads at most Max bytes and then fails with errFileTooLarge,
// unlike io.LimitReader which reports a silent EOF.
type LimitedReader struct {
	reader io.Reader
	max    int64
	read   int64
}

// NewLimitedReader wraps r. A max of zero or less disables the limit.
func NewLimitedReader(r io.Reader, max int64) *LimitedReader {
	return &LimitedReader{reader: r, max: max}
}

// Read implements io.Reader.
func (r *LimitedReader) Read(p []byte) (int, error) {
	if r.max <= 0 {
		return r.reader.Read(p)
	}
	if r.read >= r.max {
		// Probe one byte so a file of exactly max bytes still succeeds.
		var probe [1]byte
		n, err := r.reader.Read(probe[:])
		if n > 0 {
			return 0, errFileTooLarge
		}
		return 0, err
	}
	if remaining := r.max - r.read; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := r.reader.Read(p)
	r.read += int64(n)
	return n, err
}

// CountingReader wraps an io.Reader to track bytes read.
// BytesRead may be observed from another goroutine while reads are in flight.
type CountingReader struct {
	reader    io.Reader
	bytesRead atomic.Int64
	Total     int64 // If known (0 if unknown)
}

// NewCountingReader creates a counting reader with optional total size.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{
		reader: r,
		Total:  total,
	}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.bytesRead.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes consumed so far.
func (r *CountingReader) BytesRead() int64 {
	return r.bytesRead.Load()
}

// Fraction returns read progress in [0, 1].
// Returns 0 if total is unknown.
func (r *CountingReader) Fraction() float64 {
	if r.Total <= 0 {
		return 0
	}
	f := float64(r.BytesRead()) / float64(r.Total)
	if f > 1 {
		return 1
	}
	return f
}

// NewDecodingReader strips a leading byte order mark and replaces invalid
// UTF-8 sequences with U+FFFD. Files carrying a UTF-16 BOM are transcoded
// to UTF-8. BOMOverride passes UTF-8 BOM input through untouched, so the
// replacement runs as a separate stage after it.
func NewDecodingReader(r io.Reader) io.Reader {
	return transform.NewReader(r, transform.Chain(
		unicode.BOMOverride(unicode.UTF8.NewDecoder()),
		runes.ReplaceIllFormed(),
	))
}

// WrapForStreaming builds the full reader chain for an import file.
//
// The order matters:
// 1. The size limit applies to raw bytes
// 2. Counting sees raw bytes so progress matches the file size
// 3. Decoding happens last, right before the tokenizer
func WrapForStreaming(r io.Reader, totalSize, maxSize int64) (io.Reader, *CountingReader) {
	counter := NewCountingReader(NewLimitedReader(r, maxSize), totalSize)
	return NewDecodingReader(counter), counter
}
