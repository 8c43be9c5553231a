package autoinc

import "math"

// RoundUp returns the smallest value strictly greater than nr of the form
// offset + N*increment, N >= 0. It saturates at math.MaxUint64.
func RoundUp(nr, increment, offset uint64) uint64 {
	if increment <= 1 {
		if nr == math.MaxUint64 {
			return math.MaxUint64
		}
		return nr + 1
	}

	if nr < offset {
		return offset
	}

	n := (nr-offset)/increment + 1
	if n > (math.MaxUint64-offset)/increment {
		return math.MaxUint64
	}

	return n*increment + offset
}

// RoundDown returns the largest value lower than or equal to nr
// of the form offset + N*increment.
// If nr < offset there is no such value and nr is returned unchanged:
// the offset exceeds what the column can store.
func RoundDown(nr, increment, offset uint64) uint64 {
	if nr < offset {
		return nr
	}

	if increment <= 1 {
		return nr
	}

	return (nr-offset)/increment*increment + offset
}
