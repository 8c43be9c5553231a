// Package pebble implements a kv.Store on top of Pebble.
package pebble

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/maniacs-db/drizzle-sub000/internal/kv"
)

// Options of a Pebble store.
type Options struct {
	// Path of the database directory. Ignored if InMemory is true.
	Path string
	// InMemory stores the database on an in-memory filesystem.
	InMemory bool
	// Sync makes every write durable before it returns.
	Sync bool
	// Logger defaults to pebble.DefaultLogger.
	Logger pebble.Logger
}

// Store is a kv.Store backed by a Pebble database.
type Store struct {
	DB *pebble.DB

	writeOpts *pebble.WriteOptions
	owned     bool
}

// Open a Pebble database and wrap it in a store.
func Open(opts Options) (*Store, error) {
	popts := pebble.Options{
		Logger: opts.Logger,
	}
	if popts.Logger == nil {
		popts.Logger = pebble.DefaultLogger
	}

	path := opts.Path
	if opts.InMemory {
		popts.FS = vfs.NewMem()
		path = ""
	} else if path == "" {
		return nil, errors.New("missing database path")
	}

	db, err := pebble.Open(path, &popts)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open pebble database %q", path)
	}

	s := NewStore(db, opts.Sync)
	s.owned = true
	return s, nil
}

// NewStore wraps an open database. Closing the store doesn't close the database.
func NewStore(db *pebble.DB, sync bool) *Store {
	wo := pebble.NoSync
	if sync {
		wo = pebble.Sync
	}

	return &Store{
		DB:        db,
		writeOpts: wo,
	}
}

// Get returns a value associated with the given key. If not found, returns ErrKeyNotFound.
func (s *Store) Get(k []byte) ([]byte, error) {
	value, closer, err := s.DB.Get(k)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, errors.WithStack(kv.ErrKeyNotFound)
		}

		return nil, err
	}

	cp := make([]byte, len(value))
	copy(cp, value)

	err = closer.Close()
	if err != nil {
		return nil, err
	}

	return cp, nil
}

// Put stores a key value pair. If it already exists, it overrides it.
func (s *Store) Put(k, v []byte) error {
	if len(k) == 0 {
		return errors.New("cannot store empty key")
	}

	return s.DB.Set(k, v, s.writeOpts)
}

// Delete a key.
func (s *Store) Delete(k []byte) error {
	return s.DB.Delete(k, s.writeOpts)
}

func (s *Store) NewBatch() kv.Batch {
	return &batch{
		b:         s.DB.NewBatch(),
		writeOpts: s.writeOpts,
	}
}

// NewIterator returns a Pebble iterator. It reads an implicit snapshot
// of the database taken at creation.
func (s *Store) NewIterator(opts *kv.IterOptions) (kv.Iterator, error) {
	var popts pebble.IterOptions
	if opts != nil {
		popts.LowerBound = opts.LowerBound
		popts.UpperBound = opts.UpperBound
	}

	it, err := s.DB.NewIter(&popts)
	if err != nil {
		return nil, err
	}

	return it, nil
}

func (s *Store) Close() error {
	if !s.owned {
		return nil
	}

	return s.DB.Close()
}

type batch struct {
	b         *pebble.Batch
	writeOpts *pebble.WriteOptions
}

func (b *batch) Put(k, v []byte) error {
	if len(k) == 0 {
		return errors.New("cannot store empty key")
	}

	return b.b.Set(k, v, nil)
}

func (b *batch) Delete(k []byte) error {
	return b.b.Delete(k, nil)
}

func (b *batch) Commit() error {
	return b.b.Commit(b.writeOpts)
}

func (b *batch) Close() error {
	return b.b.Close()
}
