package cursor

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/autoinc"
	"github.com/maniacs-db/drizzle-sub000/internal/engine"
	"github.com/maniacs-db/drizzle-sub000/internal/row"
	"github.com/maniacs-db/drizzle-sub000/internal/types"
)

// AutoIncrement returns the auto increment state of the cursor.
func (c *Cursor) AutoIncrement() *autoinc.State {
	return &c.autoInc
}

func (c *Cursor) autoIncConfig() autoinc.Config {
	vars := c.sess.Variables()
	cfg := autoinc.Config{
		Increment: vars.AutoIncrementIncrement,
		Offset:    vars.AutoIncrementOffset,
		Strict:    vars.StrictMode,
		Logger:    c.sess.Logger(),
	}
	if col := c.table.AutoIncrementColumn; col >= 0 {
		cfg.MaxValue = c.table.Columns[col].MaxValue()
	}
	return cfg
}

// NextValueForRow returns the auto increment value of the current row.
// explicit is the value given by the statement, 0 if none.
func (c *Cursor) NextValueForRow(explicit uint64) (uint64, error) {
	if forced := c.sess.TakeForcedIntervals(); len(forced) > 0 {
		c.autoInc.Force(forced...)
	}

	return c.autoInc.Next(explicit, c.autoIncConfig(), autoinc.ReserverFunc(c.reserveAutoIncrement))
}

// UpdateAutoIncrement fills the auto increment column of r.
// A NULL or zero value is replaced by a generated one. Other values are
// kept and the following generated values continue after them.
//
// A generated value that doesn't fit in the column is an error in strict
// mode. Otherwise the truncated value is stored and a warning is recorded.
func (c *Cursor) UpdateAutoIncrement(r *row.Row) error {
	col := c.table.AutoIncrementColumn
	if col < 0 {
		return nil
	}

	v, err := r.Get(col)
	if err != nil {
		return err
	}

	var explicit uint64
	if !types.IsNull(v) {
		x, ok := types.AsInt64(v)
		if !ok {
			return errors.Errorf("auto increment column %q of table %q is not an integer", c.table.Columns[col].Name, c.table.Name)
		}
		if x < 0 {
			c.autoInc.InsertIDForCurRow = 0
			return nil
		}
		explicit = uint64(x)
	}

	nr, err := c.NextValueForRow(explicit)
	if err != nil {
		if !errors.Is(err, autoinc.ErrOutOfRange) || c.sess.Variables().StrictMode {
			return err
		}
		c.sess.Warn(err)
	}
	if explicit != 0 {
		return nil
	}

	return r.Set(col, types.NewIntegralValue(c.table.Columns[col].Type, int64(min(nr, math.MaxInt64))))
}

// reserveAutoIncrement asks the engine for values, or reads the
// greatest value of the auto increment index.
func (c *Cursor) reserveAutoIncrement(offset, increment, nbDesired uint64) (uint64, uint64, error) {
	if r, ok := c.h.(engine.AutoIncrementReserver); ok {
		return r.ReserveAutoIncrement(offset, increment, nbDesired)
	}

	idx := c.table.AutoIncrementIndex
	if idx < 0 {
		return 0, 0, errors.Newf("table %q has no index on its auto increment column", c.table.Name)
	}
	if c.state != Idle {
		panic(errors.AssertionFailedf("auto increment read on table %q in state %s", c.table.Name, c.state))
	}

	if err := c.h.IndexInit(idx, true); err != nil {
		return 0, 0, err
	}
	defer c.h.IndexEnd()

	r, err := c.h.IndexLast()
	if errors.Is(err, engine.ErrEndOfData) {
		return 1, math.MaxUint64, nil
	}
	if err != nil {
		return 0, 0, err
	}

	v, err := r.Get(c.table.AutoIncrementColumn)
	if err != nil {
		return 0, 0, err
	}
	x, _ := types.AsInt64(v)
	if x < 0 {
		x = 0
	}

	// every value after the greatest one is free
	return uint64(x) + 1, math.MaxUint64, nil
}

// ReleaseAutoIncrement clears the auto increment state at the end
// of a statement.
func (c *Cursor) ReleaseAutoIncrement() {
	c.autoInc.Release()

	if r, ok := c.h.(engine.AutoIncrementReleaser); ok {
		r.ReleaseAutoIncrement()
	}
}

// StartBulkInsert tells the cursor that about rows rows will be inserted,
// 0 if unknown. The first auto increment reservation is sized after it.
func (c *Cursor) StartBulkInsert(rows uint64) {
	c.autoInc.EstimatedRowsToInsert = rows
	c.bulk = true

	if b, ok := c.h.(engine.BulkInserter); ok {
		b.StartBulkInsert(rows)
	}
}

// EndBulkInsert ends the bulk insert.
func (c *Cursor) EndBulkInsert() error {
	c.autoInc.EstimatedRowsToInsert = 0
	c.bulk = false

	if b, ok := c.h.(engine.BulkInserter); ok {
		return b.EndBulkInsert()
	}
	return nil
}
