// Package units provides binary size multipliers and human size parsing.
package units

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/mnemoscan/pkg/safeconv"
)

// Binary size multipliers.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)

// ErrInvalidSize is returned for unparsable or out-of-range sizes.
var ErrInvalidSize = errors.New("invalid size")

// ParseSize parses a human-readable size such as "512KiB" or "4MB".
// Empty input and "0" yield 0, meaning "use the default".
func ParseSize(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == "0" {
		return 0, nil
	}

	parsed, err := humanize.ParseBytes(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, value)
	}

	size, ok := safeconv.Uint64ToInt(parsed, math.MaxInt32)
	if !ok {
		return 0, fmt.Errorf("%w: %q exceeds 2GiB", ErrInvalidSize, value)
	}

	return size, nil
}
