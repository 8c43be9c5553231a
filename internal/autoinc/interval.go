package autoinc

import (
	"fmt"
	"math"
)

// An Interval is a block of candidate values [Minimum, Maximum)
// reserved in one engine round-trip. Values is the number of values
// of the block, math.MaxUint64 meaning the block is unbounded.
type Interval struct {
	Minimum uint64
	Maximum uint64
	Values  uint64
}

// NewInterval returns the interval of nb values starting at start,
// spaced by increment.
func NewInterval(start, nb, increment uint64) Interval {
	itv := Interval{
		Minimum: start,
		Values:  nb,
	}

	if nb == math.MaxUint64 || increment == 0 || nb > (math.MaxUint64-start)/increment {
		itv.Maximum = math.MaxUint64
	} else {
		itv.Maximum = start + nb*increment
	}

	return itv
}

// IsEmpty returns true if the interval holds no value.
func (i Interval) IsEmpty() bool {
	return i.Values == 0
}

func (i Interval) String() string {
	if i.Values == math.MaxUint64 {
		return fmt.Sprintf("[%d, +inf)", i.Minimum)
	}
	return fmt.Sprintf("[%d, %d)", i.Minimum, i.Maximum)
}
