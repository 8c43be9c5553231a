// Package key describes the boundaries of index scans.
//
// A boundary is a prefix of an encoded index key: the leading key parts
// populated by the caller, encoded back to back. Because each encoded key
// part is self-delimiting, comparing the first len(boundary) bytes of an
// index key with the boundary compares the populated key parts only.
package key

import (
	"bytes"
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/catalog"
)

// Flag defines how a boundary is treated when a key is equal to it.
type Flag uint8

const (
	// KeyOrNext is the default: the boundary is inclusive.
	// As a start boundary, positioning lands on the first key
	// greater than or equal to the boundary.
	KeyOrNext Flag = iota
	// BeforeKey excludes keys equal to an end boundary.
	BeforeKey
	// AfterKey includes keys equal to an end boundary.
	// As a start boundary, positioning skips every key equal to the boundary.
	AfterKey
	// Exact positions on a key equal to the boundary, or fails.
	// Only valid as a start boundary.
	Exact
)

func (f Flag) String() string {
	switch f {
	case KeyOrNext:
		return "KeyOrNext"
	case BeforeKey:
		return "BeforeKey"
	case AfterKey:
		return "AfterKey"
	case Exact:
		return "Exact"
	}

	return "Unknown"
}

// KeypartMap is a bitset of the key parts populated in a boundary.
// Bit i is set if the i-th key part is present.
type KeypartMap uint64

// AllKeyparts returns a map with the n first key parts set.
func AllKeyparts(n int) KeypartMap {
	if n >= 64 {
		return ^KeypartMap(0)
	}
	return KeypartMap(1)<<n - 1
}

// IsPrefix returns true if the map has no gap: only leading key parts are set.
func (m KeypartMap) IsPrefix() bool {
	return m&(m+1) == 0
}

// Count returns the number of key parts set.
func (m KeypartMap) Count() int {
	return bits.OnesCount64(uint64(m))
}

// A Range is a scan boundary.
type Range struct {
	Key        []byte
	KeypartMap KeypartMap
	Flag       Flag
}

// Len returns the length of the boundary key.
func (r *Range) Len() int {
	return len(r.Key)
}

// Validate checks that the boundary can be used on the given index.
func (r *Range) Validate(idx *catalog.IndexInfo) error {
	if !r.KeypartMap.IsPrefix() {
		return errors.Errorf("keypart map %b has gaps", r.KeypartMap)
	}
	if r.KeypartMap.Count() > idx.KeyParts() {
		return errors.Errorf("keypart map %b covers %d key parts, index %q has %d", r.KeypartMap, r.KeypartMap.Count(), idx.Name, idx.KeyParts())
	}
	if r.Len() > idx.MaxKeyLength() {
		return errors.Errorf("key length %d exceeds index %q key length %d", r.Len(), idx.Name, idx.MaxKeyLength())
	}

	return nil
}

// CompareResult is the result of the comparison of a key with a boundary.
type CompareResult int8

const (
	Before     CompareResult = -1
	AtBoundary CompareResult = 0
	After      CompareResult = 1
)

func (c CompareResult) String() string {
	switch c {
	case Before:
		return "Before"
	case AtBoundary:
		return "AtBoundary"
	case After:
		return "After"
	}

	return "Unknown"
}

// Compare the prefix of k of the length of boundary with boundary.
func Compare(k, boundary []byte) CompareResult {
	if len(k) > len(boundary) {
		k = k[:len(boundary)]
	}

	switch bytes.Compare(k, boundary) {
	case -1:
		return Before
	case 1:
		return After
	}

	return AtBoundary
}

// CompareEnd compares k with r used as an end boundary.
// A key equal to the boundary is resolved with the flag of r:
// BeforeKey places it after the boundary, AfterKey before it,
// otherwise it stays AtBoundary, which is inside the range.
// A nil boundary means there is no end: every key is Before.
func (r *Range) CompareEnd(k []byte) CompareResult {
	if r == nil {
		return Before
	}

	c := Compare(k, r.Key)
	if c != AtBoundary {
		return c
	}

	switch r.Flag {
	case BeforeKey:
		return After
	case AfterKey:
		return Before
	}

	return AtBoundary
}

// InRange returns true if the result designates a key inside the range.
func (c CompareResult) InRange() bool {
	return c != After
}
