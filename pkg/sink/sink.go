// Package sink appends valid lines to the output file in commit order.
package sink

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/mnemoscan/pkg/units"
)

// DefaultBufferSize is the write buffer used when none is configured.
const DefaultBufferSize = 256 * units.KiB

// Output file and directory permissions.
const (
	filePerm = 0o644
	dirPerm  = 0o755
)

// ErrShortOutput is returned by Rollback when the file is smaller than the
// size a checkpoint claims was already written.
var ErrShortOutput = errors.New("output shorter than checkpoint")

// Sink is an append-only, buffered output file. It is not safe for concurrent use.
type Sink struct {
	path string
	file *os.File
	w    *bufio.Writer
	size int64
}

// Open opens path for appending, creating it and its parent directories as needed.
// A non-positive bufSize selects DefaultBufferSize.
func Open(path string, bufSize int) (*Sink, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	err := os.MkdirAll(filepath.Dir(path), dirPerm)
	if err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, filePerm)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("stat output: %w", err)
	}

	return &Sink{
		path: path,
		file: file,
		w:    bufio.NewWriterSize(file, bufSize),
		size: info.Size(),
	}, nil
}

// Path returns the output file path.
func (s *Sink) Path() string {
	return s.path
}

// Size returns the logical file size, buffered bytes included.
func (s *Sink) Size() int64 {
	return s.size
}

// Append writes text followed by a newline.
func (s *Sink) Append(text string) error {
	n, err := s.w.WriteString(text)
	s.size += int64(n)

	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	err = s.w.WriteByte('\n')
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	s.size++

	return nil
}

// Sync flushes buffered lines and commits them to stable storage.
func (s *Sink) Sync() error {
	err := s.w.Flush()
	if err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	err = s.file.Sync()
	if err != nil {
		return fmt.Errorf("sync output: %w", err)
	}

	return nil
}

// Rollback truncates bytes written after size. It must be called before any
// Append. It reports how many bytes were discarded.
func (s *Sink) Rollback(size int64) (int64, error) {
	if size > s.size {
		return 0, fmt.Errorf("%w: have %d bytes, checkpoint covers %d", ErrShortOutput, s.size, size)
	}

	if size == s.size {
		return 0, nil
	}

	err := s.file.Truncate(size)
	if err != nil {
		return 0, fmt.Errorf("truncate output: %w", err)
	}

	dropped := s.size - size
	s.size = size

	return dropped, nil
}

// Close syncs and closes the file.
func (s *Sink) Close() error {
	syncErr := s.Sync()
	closeErr := s.file.Close()

	return errors.Join(syncErr, closeErr)
}
