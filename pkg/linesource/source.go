// Package linesource streams candidate lines from a text file with cheap
// resume to a previously committed position.
package linesource

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/mnemoscan/pkg/units"
)

// DefaultBufferSize is the read buffer used when none is configured.
const DefaultBufferSize = 1 * units.MiB

// countChunkSize is the block size CountLines reads at a time.
const countChunkSize = 64 * units.KiB

// binarySniffLength is how many leading bytes LooksBinary inspects; Git
// uses the same heuristic.
const binarySniffLength = 8000

// lz4Extension marks inputs that are decompressed on the fly.
const lz4Extension = ".lz4"

// ErrShortInput is returned when a resume position lies beyond the end of the input.
var ErrShortInput = errors.New("input ended before resume position")

// Line is one non-blank input line.
type Line struct {
	// Ordinal is the 1-based physical line number, blank lines included.
	Ordinal int64
	// Text is the line with surrounding whitespace removed.
	Text string
	// Offset is the byte offset just past this line, newline included.
	Offset int64
}

// Position identifies a point between two lines of the input.
type Position struct {
	Ordinal int64
	Offset  int64
}

// SeekMode reports how a resume position was reached.
type SeekMode string

// Seek modes.
const (
	SeekNone   SeekMode = "none"
	SeekOffset SeekMode = "offset"
	SeekStream SeekMode = "stream"
)

// Reader yields lines one at a time. It is not safe for concurrent use.
type Reader struct {
	path       string
	file       *os.File
	buf        *bufio.Reader
	compressed bool
	scratch    []byte

	ordinal int64
	offset  int64
}

// Open opens the input file. Files ending in ".lz4" are decompressed.
// A non-positive bufSize selects DefaultBufferSize.
func Open(path string, bufSize int) (*Reader, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	r := &Reader{
		path:       path,
		file:       file,
		compressed: IsCompressed(path),
	}

	r.buf = bufio.NewReaderSize(r.stream(), bufSize)

	return r, nil
}

// IsCompressed reports whether path names an lz4-compressed input.
func IsCompressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), lz4Extension)
}

func (r *Reader) stream() io.Reader {
	if r.compressed {
		return lz4.NewReader(r.file)
	}

	return r.file
}

// LooksBinary reports whether a NUL byte occurs in the first 8000 bytes of
// the input. It must be called before the first Seek or Next.
func (r *Reader) LooksBinary() bool {
	head, _ := r.buf.Peek(binarySniffLength)

	return bytes.IndexByte(head, 0) >= 0
}

// Position returns the position just past the last line read or skipped.
func (r *Reader) Position() Position {
	return Position{Ordinal: r.ordinal, Offset: r.offset}
}

// Seek moves to pos, which must come from a previous run over the same input.
// It must be called before the first Next. Plain files with a known offset are
// positioned directly; otherwise the reader streams past pos.Ordinal lines
// without retaining them.
func (r *Reader) Seek(pos Position) (SeekMode, error) {
	if pos.Ordinal <= 0 {
		return SeekNone, nil
	}

	if !r.compressed && pos.Offset > 0 && r.offsetIsLineBoundary(pos.Offset) {
		_, err := r.file.Seek(pos.Offset, io.SeekStart)
		if err != nil {
			return SeekNone, fmt.Errorf("seek input: %w", err)
		}

		r.buf.Reset(r.file)
		r.ordinal = pos.Ordinal
		r.offset = pos.Offset

		return SeekOffset, nil
	}

	err := r.Skip(pos.Ordinal)
	if err != nil {
		return SeekNone, err
	}

	return SeekStream, nil
}

// offsetIsLineBoundary checks that offset sits right after a newline or at EOF.
func (r *Reader) offsetIsLineBoundary(offset int64) bool {
	info, err := r.file.Stat()
	if err != nil || offset > info.Size() {
		return false
	}

	if offset == info.Size() {
		return true
	}

	var prev [1]byte

	_, err = r.file.ReadAt(prev[:], offset-1)
	if err != nil {
		return false
	}

	return prev[0] == '\n'
}

// Skip discards lines until n lines have been consumed in total.
func (r *Reader) Skip(n int64) error {
	for r.ordinal < n {
		raw, err := r.readLine()
		if len(raw) > 0 {
			r.ordinal++
			r.offset += int64(len(raw))
		}

		if errors.Is(err, io.EOF) {
			if r.ordinal < n {
				return fmt.Errorf("%w: want line %d, input has %d", ErrShortInput, n, r.ordinal)
			}

			return nil
		}

		if err != nil {
			return fmt.Errorf("read %s: %w", r.path, err)
		}
	}

	return nil
}

// Next returns the next non-blank line, or io.EOF when the input is exhausted.
// Blank lines advance the ordinal but are never returned.
func (r *Reader) Next() (Line, error) {
	for {
		raw, err := r.readLine()
		if len(raw) == 0 {
			if err == nil || errors.Is(err, io.EOF) {
				return Line{}, io.EOF
			}

			return Line{}, fmt.Errorf("read %s: %w", r.path, err)
		}

		r.ordinal++
		r.offset += int64(len(raw))

		if err != nil && !errors.Is(err, io.EOF) {
			return Line{}, fmt.Errorf("read %s: %w", r.path, err)
		}

		text := strings.TrimSpace(string(raw))
		if text == "" {
			continue
		}

		return Line{Ordinal: r.ordinal, Text: text, Offset: r.offset}, nil
	}
}

// readLine returns the next raw line including its newline. The slice is
// only valid until the following call.
func (r *Reader) readLine() ([]byte, error) {
	r.scratch = r.scratch[:0]

	for {
		chunk, err := r.buf.ReadSlice('\n')
		r.scratch = append(r.scratch, chunk...)

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		return r.scratch, err
	}
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// CountLines returns the number of physical lines in the input, counting a
// final line without a trailing newline.
func CountLines(path string) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	var src io.Reader = file
	if IsCompressed(path) {
		src = lz4.NewReader(file)
	}

	var (
		count int64
		last  byte
		seen  bool
	)

	chunk := make([]byte, countChunkSize)

	for {
		n, readErr := src.Read(chunk)
		if n > 0 {
			count += int64(bytes.Count(chunk[:n], []byte{'\n'}))
			last = chunk[n-1]
			seen = true
		}

		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return 0, fmt.Errorf("count lines in %s: %w", path, readErr)
		}
	}

	if seen && last != '\n' {
		count++
	}

	return count, nil
}
