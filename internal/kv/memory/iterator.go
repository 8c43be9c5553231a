package memory

import (
	"bytes"

	"github.com/google/btree"
)

// iterator over a clone of the tree.
// Every move is a lookup from the current key.
type iterator struct {
	tree         *btree.BTreeG[item]
	lower, upper []byte

	cur   item
	valid bool
}

func (it *iterator) inBounds(k []byte) bool {
	if it.lower != nil && bytes.Compare(k, it.lower) < 0 {
		return false
	}
	if it.upper != nil && bytes.Compare(k, it.upper) >= 0 {
		return false
	}
	return true
}

func (it *iterator) set(i item, ok bool) bool {
	it.valid = ok && it.inBounds(i.key)
	if it.valid {
		it.cur = i
	} else {
		it.cur = item{}
	}
	return it.valid
}

// first item >= k, skipping k itself if strict.
func (it *iterator) ascendFrom(k []byte, strict bool) bool {
	var found item
	var ok bool
	it.tree.AscendGreaterOrEqual(item{key: k}, func(i item) bool {
		if strict && bytes.Equal(i.key, k) {
			return true
		}
		found, ok = i, true
		return false
	})
	return it.set(found, ok)
}

// last item < k, or <= k if inclusive.
func (it *iterator) descendFrom(k []byte, inclusive bool) bool {
	var found item
	var ok bool
	it.tree.DescendLessOrEqual(item{key: k}, func(i item) bool {
		if !inclusive && bytes.Equal(i.key, k) {
			return true
		}
		found, ok = i, true
		return false
	})
	return it.set(found, ok)
}

func (it *iterator) SeekGE(k []byte) bool {
	if it.lower != nil && bytes.Compare(k, it.lower) < 0 {
		k = it.lower
	}
	return it.ascendFrom(k, false)
}

func (it *iterator) SeekLT(k []byte) bool {
	if it.upper != nil && bytes.Compare(k, it.upper) > 0 {
		k = it.upper
	}
	return it.descendFrom(k, false)
}

func (it *iterator) First() bool {
	if it.lower != nil {
		return it.ascendFrom(it.lower, false)
	}

	i, ok := it.tree.Min()
	return it.set(i, ok)
}

func (it *iterator) Last() bool {
	if it.upper != nil {
		return it.descendFrom(it.upper, false)
	}

	i, ok := it.tree.Max()
	return it.set(i, ok)
}

func (it *iterator) Next() bool {
	if !it.valid {
		return false
	}
	return it.ascendFrom(it.cur.key, true)
}

func (it *iterator) Prev() bool {
	if !it.valid {
		return false
	}
	return it.descendFrom(it.cur.key, false)
}

func (it *iterator) Valid() bool {
	return it.valid
}

func (it *iterator) Key() []byte {
	return it.cur.key
}

func (it *iterator) Value() []byte {
	return it.cur.value
}

func (it *iterator) Error() error {
	return nil
}

func (it *iterator) Close() error {
	it.tree = nil
	it.valid = false
	return nil
}
