package cursor

import (
	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/engine"
	"github.com/maniacs-db/drizzle-sub000/internal/row"
)

func (c *Cursor) checkWritable() {
	if c.mode != engine.ReadWrite {
		panic(errors.AssertionFailedf("write on table %q opened %s", c.table.Name, c.mode))
	}
}

// InsertRow fills the auto increment column of r, writes it and
// reports it to the replication hook.
func (c *Cursor) InsertRow(r *row.Row) error {
	c.checkWritable()

	if err := c.UpdateAutoIncrement(r); err != nil {
		return err
	}

	if err := c.h.WriteRow(r); err != nil {
		return err
	}

	if id := c.autoInc.InsertIDForCurRow; id != 0 {
		c.sess.RecordInsertID(id)
	}

	_, err := c.sess.Replicate(c.table, nil, r)
	return err
}

// UpdateRow replaces old, as returned by a read, with updated and
// reports the change to the replication hook.
func (c *Cursor) UpdateRow(old, updated *row.Row) error {
	c.checkWritable()

	if err := c.h.UpdateRow(old, updated); err != nil {
		return err
	}

	_, err := c.sess.Replicate(c.table, old, updated)
	return err
}

// DeleteRow deletes r, as returned by a read, and reports
// the deletion to the replication hook.
func (c *Cursor) DeleteRow(r *row.Row) error {
	c.checkWritable()

	if err := c.h.DeleteRow(r); err != nil {
		return err
	}

	_, err := c.sess.Replicate(c.table, r, nil)
	return err
}
