// Package mrr reads rows from many ranges of an index in one operation.
//
// The caller describes the ranges with a Sequence. Engines with their own
// multi-range reader implement Native; every other engine is read by the
// default Driver, one range at a time, through the range scan of a cursor.
//
// With sorted mode, rows of a range come in index order, but the Driver
// doesn't merge ranges: rows are globally sorted only if the sequence
// yields ranges in key order.
package mrr

import (
	"github.com/maniacs-db/drizzle-sub000/internal/key"
	"github.com/maniacs-db/drizzle-sub000/internal/row"
)

// Flags of a range.
type Flags struct {
	// Unique is set when the range is an equality on every key part
	// of a unique index: it matches at most one row, unless NullRange is set.
	Unique bool
	// Eq is set when every row of the range shares the key of Start.
	Eq bool
	// NullRange is set when the range searches NULL values.
	NullRange bool
}

func (f Flags) singleRow() bool {
	return f.Unique && f.Eq && !f.NullRange
}

// A Descriptor is one range of a sequence.
type Descriptor struct {
	// Start and End are the boundaries of the range. Nil means unbounded.
	Start, End *key.Range
	Flags      Flags
	// Tag is returned alongside every row of the range.
	Tag any
}

// A Sequence yields the ranges to read.
type Sequence interface {
	// Next returns the next range, or false when there are none left.
	Next() (Descriptor, bool)
}

// SliceSequence is a Sequence over a slice of descriptors.
type SliceSequence struct {
	ranges []Descriptor
	pos    int
}

func NewSliceSequence(ranges ...Descriptor) *SliceSequence {
	return &SliceSequence{ranges: ranges}
}

func (s *SliceSequence) Next() (Descriptor, bool) {
	if s.pos >= len(s.ranges) {
		return Descriptor{}, false
	}

	s.pos++
	return s.ranges[s.pos-1], true
}

// Reset rewinds the sequence.
func (s *SliceSequence) Reset() {
	s.pos = 0
}

// Len returns the number of ranges of the sequence.
func (s *SliceSequence) Len() int {
	return len(s.ranges)
}

// Mode of a multi-range read.
type Mode struct {
	// Sorted requests rows in index order within each range.
	Sorted bool
	// IndexOnly is set when the caller only needs the columns of the index.
	IndexOnly bool
}

// A Reader returns the rows of every range of a sequence.
type Reader interface {
	// Next returns the next row and the tag of its range,
	// or engine.ErrEndOfData once every range is read.
	Next() (*row.Row, any, error)
	Close() error
}

// Native is implemented by engine handlers with their own
// multi-range reader. The index scan is already started when
// MultiRangeRead is called.
type Native interface {
	MultiRangeRead(seq Sequence, mode Mode) (Reader, error)
}
