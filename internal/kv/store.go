// Package kv defines the ordered key value stores the engines are built on.
package kv

// Store is an ordered key value store.
// Keys are ordered with bytes.Compare.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns a copy of the value associated with k.
	// If not found, returns ErrKeyNotFound.
	Get(k []byte) ([]byte, error)
	// Put stores a key value pair. If it already exists, it overrides it.
	Put(k, v []byte) error
	// Delete a key. Deleting a missing key is not an error.
	Delete(k []byte) error
	// NewBatch returns a batch of writes applied atomically on Commit.
	NewBatch() Batch
	// NewIterator returns an iterator on a consistent view of the store.
	NewIterator(opts *IterOptions) (Iterator, error)
	Close() error
}

// A Batch accumulates writes.
type Batch interface {
	Put(k, v []byte) error
	Delete(k []byte) error
	// Commit applies the writes. The batch can't be used afterwards.
	Commit() error
	// Close releases the batch. Uncommitted writes are discarded.
	Close() error
}

// IterOptions restrict the keys an iterator can see.
type IterOptions struct {
	// LowerBound is inclusive. Nil means no bound.
	LowerBound []byte
	// UpperBound is exclusive. Nil means no bound.
	UpperBound []byte
}

// Iterator walks the keys of a store in both directions.
// Positioning methods return whether the iterator is valid afterwards.
// Key and Value are only valid until the next positioning call.
type Iterator interface {
	// SeekGE moves to the first key greater than or equal to k.
	SeekGE(k []byte) bool
	// SeekLT moves to the last key lower than k.
	SeekLT(k []byte) bool
	First() bool
	Last() bool
	Next() bool
	Prev() bool
	Valid() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}
