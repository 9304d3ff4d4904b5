// Package checkpoint persists scan progress so an interrupted run can resume.
package checkpoint

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Sumatoshi-tech/mnemoscan/pkg/units"
)

// FormatVersion is the current checkpoint record format version.
const FormatVersion = 1

// sampleSize is how many bytes from each end of the input feed the fingerprint digest.
const sampleSize = 64 * units.KiB

// ErrInvalidRecord is returned when a record violates its counter invariants.
var ErrInvalidRecord = errors.New("invalid checkpoint record")

// InputIdentity fingerprints an input file.
type InputIdentity struct {
	Path   string `json:"path"   yaml:"path"`
	Size   int64  `json:"size"   yaml:"size"`
	Sample string `json:"sample" yaml:"sample"`
}

// Matches reports whether two identities describe the same input.
func (id InputIdentity) Matches(other InputIdentity) bool {
	return id == other
}

// Record is the persisted progress of one scan.
type Record struct {
	Version   int           `json:"version"           yaml:"version"`
	Input     InputIdentity `json:"input"             yaml:"input"`
	Language  string        `json:"language"          yaml:"language"`
	Committed int64         `json:"committed_ordinal" yaml:"committed_ordinal"`
	Offset    int64         `json:"committed_offset"  yaml:"committed_offset"`
	Processed int64         `json:"processed"         yaml:"processed"`
	Valid     int64         `json:"valid"             yaml:"valid"`

	OutputPath string `json:"output_path" yaml:"output_path"`
	OutputSize int64  `json:"output_size" yaml:"output_size"`

	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Validate checks 0 <= valid <= processed <= committed and non-negative sizes.
func (r *Record) Validate() error {
	switch {
	case r.Valid < 0 || r.Processed < 0 || r.Committed < 0:
		return fmt.Errorf("%w: negative counter", ErrInvalidRecord)
	case r.Valid > r.Processed:
		return fmt.Errorf("%w: valid %d exceeds processed %d", ErrInvalidRecord, r.Valid, r.Processed)
	case r.Processed > r.Committed:
		return fmt.Errorf("%w: processed %d exceeds committed ordinal %d", ErrInvalidRecord, r.Processed, r.Committed)
	case r.Offset < 0 || r.OutputSize < 0:
		return fmt.Errorf("%w: negative offset", ErrInvalidRecord)
	}

	return nil
}

// Fingerprint identifies the input at path by absolute path, size and an
// xxhash64 digest over its first and last 64 KiB.
func Fingerprint(path string) (InputIdentity, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return InputIdentity{}, fmt.Errorf("resolve input path: %w", err)
	}

	file, err := os.Open(abs)
	if err != nil {
		return InputIdentity{}, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return InputIdentity{}, fmt.Errorf("stat input: %w", err)
	}

	digest := xxhash.New()

	_, err = io.CopyN(digest, file, sampleSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return InputIdentity{}, fmt.Errorf("sample input head: %w", err)
	}

	if info.Size() > sampleSize {
		tail := max(info.Size()-sampleSize, sampleSize)

		_, err = io.Copy(digest, io.NewSectionReader(file, tail, info.Size()-tail))
		if err != nil {
			return InputIdentity{}, fmt.Errorf("sample input tail: %w", err)
		}
	}

	return InputIdentity{
		Path:   abs,
		Size:   info.Size(),
		Sample: hex.EncodeToString(digest.Sum(nil)),
	}, nil
}
