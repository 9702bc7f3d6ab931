package core

// streaming.go normalizes import streams without buffering the file:
//
//   - a leading byte order mark selects UTF-8 or UTF-16 decoding and is dropped
//   - invalid UTF-8 sequences are replaced with U+FFFD
//   - bytes consumed are counted for progress logging

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NewSourceReader wraps r so the CSV reader always sees clean UTF-8.
// Spreadsheet "Unicode text" exports arrive as UTF-16 with a BOM and are
// transcoded on the fly.
func NewSourceReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// CountingReader tracks bytes read from the underlying reader.
type CountingReader struct {
	reader io.Reader
	n      int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	c.n += int64(n)
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (c *CountingReader) BytesRead() int64 {
	return c.n
}
