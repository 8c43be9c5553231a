package kv

import "github.com/cockroachdb/errors"

// Common errors returned by the store implementations.
var (
	// ErrKeyNotFound is returned when the targeted key doesn't exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrStoreFull is returned when a write would exceed
	// the size limit of a store.
	ErrStoreFull = errors.New("store is full")

	// ErrClosed is returned when using a closed store.
	ErrClosed = errors.New("store closed")
)
