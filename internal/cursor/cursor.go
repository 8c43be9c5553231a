// Package cursor implements the engine independent part of table access.
//
// A Cursor wraps the engine.Handler of an open table. It enforces the scan
// state machine, implements the default range scan on top of index
// positioning, generates auto increment values and reports every
// successful mutation to the replication hook of its session.
//
// A Cursor is used by one goroutine at a time. Scans follow the state
// machine Idle -> IndexScan|TableScan -> Idle. Any other sequence of calls
// is a programming error and panics.
package cursor

import (
	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/autoinc"
	"github.com/maniacs-db/drizzle-sub000/internal/catalog"
	"github.com/maniacs-db/drizzle-sub000/internal/engine"
	"github.com/maniacs-db/drizzle-sub000/internal/key"
	"github.com/maniacs-db/drizzle-sub000/internal/row"
	"github.com/maniacs-db/drizzle-sub000/internal/session"
)

// ScanState of a cursor.
type ScanState uint8

const (
	Idle ScanState = iota
	IndexScan
	TableScan
)

func (s ScanState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case IndexScan:
		return "IndexScan"
	case TableScan:
		return "TableScan"
	}
	return "Unknown"
}

// Cursor is an open table.
type Cursor struct {
	sess  *session.Session
	h     engine.Handler
	table *catalog.TableInfo
	mode  engine.OpenMode

	state  ScanState
	index  int
	sorted bool

	// single range scan
	endRange *key.Range
	eqRange  bool
	eqKey    []byte
	cur      *row.Row
	keyBuf   []byte

	autoInc autoinc.State
	bulk    bool
	closed  bool
}

var _ session.StatementResource = (*Cursor)(nil)

// Open binds h to the table and attaches the cursor to the session.
// Engine errors are returned unchanged: engine.ErrAccessDenied, after
// which the caller may retry read-only, or engine.ErrOutOfMemory.
func Open(sess *session.Session, h engine.Handler, table *catalog.TableInfo, mode engine.OpenMode) (*Cursor, error) {
	if sess == nil {
		sess = session.New(session.Options{})
	}

	if err := h.Open(table, mode); err != nil {
		return nil, err
	}

	c := Cursor{
		sess:  sess,
		h:     h,
		table: table,
		mode:  mode,
		index: -1,
	}
	sess.Attach(&c)

	return &c, nil
}

// Close the cursor. The cursor must be Idle: closing it with an open scan
// is a programming error.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	if c.state != Idle {
		panic(errors.AssertionFailedf("closing cursor on table %q in state %s", c.table.Name, c.state))
	}

	err := c.EndStatement()
	c.sess.Detach(c)
	c.closed = true
	return errors.CombineErrors(err, c.h.Close())
}

// State returns the scan state of the cursor.
func (c *Cursor) State() ScanState {
	return c.state
}

// Table returns the table the cursor is bound to.
func (c *Cursor) Table() *catalog.TableInfo {
	return c.table
}

// Handler returns the engine handler of the cursor.
func (c *Cursor) Handler() engine.Handler {
	return c.h
}

// Session returns the session of the cursor.
func (c *Cursor) Session() *session.Session {
	return c.sess
}

// ActiveIndex returns the index of the running index scan, -1 if none.
func (c *Cursor) ActiveIndex() int {
	return c.index
}

// Sorted returns true if the running index scan returns rows in index order.
func (c *Cursor) Sorted() bool {
	return c.sorted
}

// IndexScanStart starts a scan of the given index.
// If sorted is false the engine may return rows in any order.
func (c *Cursor) IndexScanStart(index int, sorted bool) error {
	if c.state != Idle {
		panic(errors.AssertionFailedf("index scan started on table %q in state %s", c.table.Name, c.state))
	}

	if err := c.h.IndexInit(index, sorted); err != nil {
		return err
	}

	c.state = IndexScan
	c.index = index
	c.sorted = sorted
	return nil
}

// IndexScanEnd ends the running index scan.
func (c *Cursor) IndexScanEnd() error {
	if c.state != IndexScan {
		panic(errors.AssertionFailedf("index scan ended on table %q in state %s", c.table.Name, c.state))
	}

	c.state = Idle
	c.index = -1
	c.sorted = false
	c.resetRange()
	return c.h.IndexEnd()
}

// TableScanStart starts a scan in table order. A running table scan
// is restarted if restart is true.
func (c *Cursor) TableScanStart(restart bool) error {
	if c.state != Idle && !(c.state == TableScan && restart) {
		panic(errors.AssertionFailedf("table scan started on table %q in state %s", c.table.Name, c.state))
	}

	if err := c.h.TableScanInit(true); err != nil {
		return err
	}

	c.state = TableScan
	return nil
}

// TableScanNext returns the next row of the table scan,
// or engine.ErrEndOfData.
func (c *Cursor) TableScanNext() (*row.Row, error) {
	if c.state != TableScan {
		panic(errors.AssertionFailedf("table scan read on table %q in state %s", c.table.Name, c.state))
	}

	r, err := c.h.TableScanNext()
	if err != nil {
		return nil, err
	}
	c.cur = r
	return r, nil
}

// TableScanEnd ends the running table scan.
func (c *Cursor) TableScanEnd() error {
	if c.state != TableScan {
		panic(errors.AssertionFailedf("table scan ended on table %q in state %s", c.table.Name, c.state))
	}

	c.state = Idle
	c.cur = nil
	return c.h.TableScanEnd()
}

// RowsInRange asks the engine for the number of rows of the index
// between start and end.
func (c *Cursor) RowsInRange(index int, start, end *key.Range) (uint64, error) {
	return c.h.RowsInRange(index, start, end)
}

// WasSemiConsistentRead returns true if the last row read was returned
// without waiting for a lock and must be read again before being updated.
func (c *Cursor) WasSemiConsistentRead() bool {
	if s, ok := c.h.(engine.SemiConsistentReader); ok {
		return s.WasSemiConsistentRead()
	}
	return false
}

// EndStatement releases the statement scoped state of the cursor:
// auto increment values and bulk inserts.
func (c *Cursor) EndStatement() error {
	var err error
	if c.bulk {
		err = c.EndBulkInsert()
	}

	c.ReleaseAutoIncrement()
	return err
}
