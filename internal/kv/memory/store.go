// Package memory implements a kv.Store on an in-memory B-tree.
package memory

import (
	"bytes"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/btree"
	"github.com/maniacs-db/drizzle-sub000/internal/kv"
)

const defaultDegree = 32

// Options of a memory store.
type Options struct {
	// Degree of the B-tree. Defaults to 32.
	Degree int
	// MaxSize is the maximum number of bytes of keys and values
	// the store can hold. Zero means no limit.
	MaxSize int
}

type item struct {
	key   []byte
	value []byte
}

func less(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

func (i item) size() int {
	return len(i.key) + len(i.value)
}

// Store is a kv.Store holding its keys in a B-tree.
// Iterators read a copy-on-write clone of the tree, so they
// see the store as it was when they were created.
type Store struct {
	mu      sync.RWMutex
	tree    *btree.BTreeG[item]
	size    int
	maxSize int
	closed  bool
}

// NewStore returns an empty store.
func NewStore(opts Options) *Store {
	if opts.Degree <= 1 {
		opts.Degree = defaultDegree
	}

	return &Store{
		tree:    btree.NewG(opts.Degree, less),
		maxSize: opts.MaxSize,
	}
}

func (s *Store) Get(k []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.WithStack(kv.ErrClosed)
	}

	it, ok := s.tree.Get(item{key: k})
	if !ok {
		return nil, errors.WithStack(kv.ErrKeyNotFound)
	}

	return bytes.Clone(it.value), nil
}

func (s *Store) Put(k, v []byte) error {
	if len(k) == 0 {
		return errors.New("cannot store empty key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply([]op{{key: k, value: v}})
}

func (s *Store) Delete(k []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply([]op{{key: k, delete: true}})
}

// Size returns the number of bytes of keys and values held by the store.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.size
}

type op struct {
	key    []byte
	value  []byte
	delete bool
}

// apply the operations, or none of them if the store would overflow.
// Must be called with the write lock held.
func (s *Store) apply(ops []op) error {
	if s.closed {
		return errors.WithStack(kv.ErrClosed)
	}

	if s.maxSize > 0 {
		size := s.size
		for _, o := range ops {
			if old, ok := s.tree.Get(item{key: o.key}); ok {
				size -= old.size()
			}
			if !o.delete {
				size += len(o.key) + len(o.value)
			}
		}
		if size > s.maxSize {
			return errors.Wrapf(kv.ErrStoreFull, "%d bytes exceed the limit of %d", size, s.maxSize)
		}
	}

	for _, o := range ops {
		if o.delete {
			if old, ok := s.tree.Delete(item{key: o.key}); ok {
				s.size -= old.size()
			}
			continue
		}

		it := item{key: bytes.Clone(o.key), value: bytes.Clone(o.value)}
		if old, ok := s.tree.ReplaceOrInsert(it); ok {
			s.size -= old.size()
		}
		s.size += it.size()
	}

	return nil
}

func (s *Store) NewBatch() kv.Batch {
	return &batch{s: s}
}

func (s *Store) NewIterator(opts *kv.IterOptions) (kv.Iterator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.WithStack(kv.ErrClosed)
	}

	it := iterator{
		tree: s.tree.Clone(),
	}
	if opts != nil {
		it.lower = opts.LowerBound
		it.upper = opts.UpperBound
	}

	return &it, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.tree.Clear(false)
	s.size = 0
	return nil
}

type batch struct {
	s   *Store
	ops []op
}

func (b *batch) Put(k, v []byte) error {
	if len(k) == 0 {
		return errors.New("cannot store empty key")
	}

	b.ops = append(b.ops, op{key: bytes.Clone(k), value: bytes.Clone(v)})
	return nil
}

func (b *batch) Delete(k []byte) error {
	b.ops = append(b.ops, op{key: bytes.Clone(k), delete: true})
	return nil
}

func (b *batch) Commit() error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	err := b.s.apply(b.ops)
	b.ops = nil
	return err
}

func (b *batch) Close() error {
	b.ops = nil
	return nil
}
