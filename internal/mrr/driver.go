package mrr

import (
	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/cursor"
	"github.com/maniacs-db/drizzle-sub000/internal/engine"
	"github.com/maniacs-db/drizzle-sub000/internal/row"
)

// Driver is the default Reader. It reads the ranges one after
// the other with the range scan of the cursor.
type Driver struct {
	c   *cursor.Cursor
	seq Sequence

	cur    Descriptor
	active bool
	done   bool
}

var _ Reader = (*Driver)(nil)

// NewDriver returns a driver reading the ranges of seq on the given index.
// It starts an index scan on the cursor, ended by Close.
func NewDriver(c *cursor.Cursor, index int, seq Sequence, mode Mode) (*Driver, error) {
	if err := c.IndexScanStart(index, mode.Sorted); err != nil {
		return nil, err
	}

	return &Driver{c: c, seq: seq}, nil
}

// Next returns the next row and the tag of its range,
// or engine.ErrEndOfData once every range is read.
func (d *Driver) Next() (*row.Row, any, error) {
	if d.done {
		return nil, nil, errors.WithStack(engine.ErrEndOfData)
	}

	if d.active {
		if !d.cur.Flags.singleRow() {
			r, err := d.c.RangeScanNext()
			if err == nil {
				return r, d.cur.Tag, nil
			}
			if !errors.Is(err, engine.ErrEndOfRange) {
				return nil, nil, err
			}
		} else if d.c.WasSemiConsistentRead() {
			// the row may have changed: read the range again
			r, err := d.start(d.cur)
			if err == nil {
				return r, d.cur.Tag, nil
			}
			if !errors.Is(err, engine.ErrEndOfRange) {
				return nil, nil, err
			}
		}
		d.active = false
	}

	for {
		desc, ok := d.seq.Next()
		if !ok {
			d.done = true
			return nil, nil, errors.WithStack(engine.ErrEndOfData)
		}

		r, err := d.start(desc)
		if err == nil {
			return r, desc.Tag, nil
		}
		if !errors.Is(err, engine.ErrEndOfRange) {
			return nil, nil, err
		}
	}
}

func (d *Driver) start(desc Descriptor) (*row.Row, error) {
	d.cur = desc
	d.active = false

	r, err := d.c.RangeScanStart(desc.Start, desc.End, desc.Flags.Eq)
	if err != nil {
		return nil, err
	}

	d.active = true
	return r, nil
}

// Close ends the index scan.
func (d *Driver) Close() error {
	d.done = true
	return d.c.IndexScanEnd()
}

type nativeReader struct {
	Reader
	c *cursor.Cursor
}

func (n *nativeReader) Close() error {
	return errors.CombineErrors(n.Reader.Close(), n.c.IndexScanEnd())
}

// Open starts a multi-range read on the given index of the cursor,
// with the engine's reader if it has one, or the default driver.
// The cursor must be idle. Closing the reader ends the index scan.
func Open(c *cursor.Cursor, index int, seq Sequence, mode Mode) (Reader, error) {
	n, ok := c.Handler().(Native)
	if !ok {
		return NewDriver(c, index, seq, mode)
	}

	if err := c.IndexScanStart(index, mode.Sorted); err != nil {
		return nil, err
	}

	r, err := n.MultiRangeRead(seq, mode)
	if err != nil {
		return nil, errors.CombineErrors(err, c.IndexScanEnd())
	}

	return &nativeReader{Reader: r, c: c}, nil
}
