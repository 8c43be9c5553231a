package cursor

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/engine"
	"github.com/maniacs-db/drizzle-sub000/internal/key"
	"github.com/maniacs-db/drizzle-sub000/internal/row"
)

func (c *Cursor) resetRange() {
	c.endRange = nil
	c.eqRange = false
	c.eqKey = nil
	c.cur = nil
}

func (c *Cursor) checkRange(r *key.Range, start bool) {
	if r == nil {
		return
	}

	if err := r.Validate(&c.table.Indexes[c.index]); err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "invalid range on table %q", c.table.Name))
	}
	if start && r.Flag == key.BeforeKey {
		panic(errors.AssertionFailedf("start of range on table %q can't be %s", c.table.Name, r.Flag))
	}
	if !start && r.Flag == key.Exact {
		panic(errors.AssertionFailedf("end of range on table %q can't be %s", c.table.Name, r.Flag))
	}
}

// RangeScanStart positions the running index scan at start, or on the
// first entry of the index if start is nil, and returns the first row
// if it isn't past end. A nil end means the range is unbounded.
// If eq is true, every row of the range shares the key of start.
// It returns engine.ErrEndOfRange if the range is empty.
func (c *Cursor) RangeScanStart(start, end *key.Range, eq bool) (*row.Row, error) {
	if c.state != IndexScan {
		panic(errors.AssertionFailedf("range scan started on table %q in state %s", c.table.Name, c.state))
	}
	c.checkRange(start, true)
	c.checkRange(end, false)

	c.resetRange()
	if end != nil {
		cp := *end
		c.endRange = &cp
	}
	c.eqRange = eq && (start != nil || end != nil)
	if c.eqRange {
		if end != nil {
			c.eqKey = end.Key
		} else {
			c.eqKey = start.Key
		}
	}

	if rr, ok := c.h.(engine.RangeReader); ok {
		return c.setCurrent(rr.ReadRangeFirst(start, end, eq, c.sorted))
	}

	var r *row.Row
	var err error
	if start == nil {
		r, err = c.h.IndexFirst()
	} else {
		r, err = c.h.IndexRead(start.Key, start.Flag)
	}
	if err != nil {
		return nil, endOfRange(err)
	}
	c.cur = r

	if !c.CompareToEndBoundary(c.endRange).InRange() {
		return nil, errors.WithStack(engine.ErrEndOfRange)
	}
	return r, nil
}

// RangeScanNext returns the next row of the range scan,
// or engine.ErrEndOfRange.
func (c *Cursor) RangeScanNext() (*row.Row, error) {
	if c.state != IndexScan {
		panic(errors.AssertionFailedf("range scan read on table %q in state %s", c.table.Name, c.state))
	}

	if rr, ok := c.h.(engine.RangeReader); ok {
		return c.setCurrent(rr.ReadRangeNext())
	}

	if c.eqRange {
		// rows sharing the key are always in range
		r, err := c.indexNextSame(c.eqKey)
		if err != nil {
			return nil, endOfRange(err)
		}
		c.cur = r
		return r, nil
	}

	r, err := c.h.IndexNext()
	if err != nil {
		return nil, endOfRange(err)
	}
	c.cur = r

	if !c.CompareToEndBoundary(c.endRange).InRange() {
		return nil, errors.WithStack(engine.ErrEndOfRange)
	}
	return r, nil
}

func (c *Cursor) setCurrent(r *row.Row, err error) (*row.Row, error) {
	if err != nil {
		return nil, err
	}
	c.cur = r
	return r, nil
}

// indexNextSame returns the next entry of the index if its key starts with k.
func (c *Cursor) indexNextSame(k []byte) (*row.Row, error) {
	if s, ok := c.h.(engine.IndexNextSamer); ok {
		return s.IndexNextSame(k)
	}

	r, err := c.h.IndexNext()
	if err != nil {
		return nil, err
	}

	c.keyBuf, err = c.table.Indexes[c.index].Key(c.keyBuf[:0], r)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(c.keyBuf, k) {
		return nil, errors.WithStack(engine.ErrEndOfData)
	}
	return r, nil
}

// CompareToEndBoundary compares the key of the last row read with end.
// The row is in range if the result is not key.After.
func (c *Cursor) CompareToEndBoundary(end *key.Range) key.CompareResult {
	if end == nil {
		return key.Before
	}
	if c.cur == nil || c.index < 0 {
		panic(errors.AssertionFailedf("no current index row on table %q", c.table.Name))
	}

	var err error
	c.keyBuf, err = c.table.Indexes[c.index].Key(c.keyBuf[:0], c.cur)
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "row of table %q doesn't match index", c.table.Name))
	}

	return end.CompareEnd(c.keyBuf)
}

// positioning failures end the range.
func endOfRange(err error) error {
	if errors.Is(err, engine.ErrKeyNotFound) || errors.Is(err, engine.ErrEndOfData) {
		return errors.WithStack(engine.ErrEndOfRange)
	}
	return err
}
