// Package safeconv provides integer conversions that clamp or panic instead
// of silently wrapping.
package safeconv

import "math"

// MaxInt is the maximum value for int type (platform-dependent).
const MaxInt = int(^uint(0) >> 1)

// MustIntToUint16 converts int to uint16, panics on bounds violation.
// Use only when bounds violations are logically impossible.
func MustIntToUint16(v int) uint16 {
	if v < 0 || v > math.MaxUint16 {
		panic("safeconv: int to uint16 out of bounds")
	}

	return uint16(v)
}

// MustUintptrToInt converts a file descriptor or handle to int, panics on overflow.
func MustUintptrToInt(v uintptr) int {
	if v > uintptr(MaxInt) {
		panic("safeconv: uintptr to int overflow")
	}

	return int(v)
}

// Uint64ToInt converts v to int, reporting false when it exceeds limit.
// A non-positive limit means MaxInt.
func Uint64ToInt(v uint64, limit int) (int, bool) {
	if limit <= 0 {
		limit = MaxInt
	}

	if v > uint64(limit) {
		return 0, false
	}

	return int(v), true
}

// ClampUint64 converts v to uint64, mapping negative values to zero.
func ClampUint64(v int64) uint64 {
	if v < 0 {
		return 0
	}

	return uint64(v)
}
