// Package safeconv converts between integer types without silent
// wrap-around. Out-of-range values saturate at the target's bounds.
package safeconv

import "math"

// Uint32 converts v to uint32, clamping to [0, MaxUint32].
func Uint32(v int) uint32 {
	switch {
	case v < 0:
		return 0
	case uint64(v) > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(v)
	}
}

// Uint64 converts v to uint64; negative values become zero.
func Uint64(v int64) uint64 {
	if v < 0 {
		return 0
	}

	return uint64(v)
}
