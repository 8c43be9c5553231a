// Package kvengine implements storage engines on top of ordered
// key value stores.
//
// Rows are stored under a rowid allocated by the engine. Every index entry
// is the encoded index key followed by the rowid of the row, which keeps
// entries of non unique indexes distinct and ordered by insertion.
package kvengine

import (
	"math"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/maniacs-db/drizzle-sub000/internal/autoinc"
	"github.com/maniacs-db/drizzle-sub000/internal/catalog"
	"github.com/maniacs-db/drizzle-sub000/internal/encoding"
	"github.com/maniacs-db/drizzle-sub000/internal/engine"
	"github.com/maniacs-db/drizzle-sub000/internal/kv"
	"github.com/maniacs-db/drizzle-sub000/internal/row"
	"github.com/maniacs-db/drizzle-sub000/internal/types"
)

// Options of an engine.
type Options struct {
	// ReadOnly engines refuse to open handlers in read-write mode.
	ReadOnly bool
	// MaxHandlers is the maximum number of open handlers.
	// Zero means no limit.
	MaxHandlers int
	// Logger defaults to pebble.DefaultLogger.
	Logger pebble.Logger
}

// Engine is an engine.Engine storing its tables in a kv.Store.
type Engine struct {
	name  string
	store kv.Store
	opts  Options

	mu       sync.Mutex
	tables   map[uint32]*tableState
	handlers int
	closed   bool
}

var _ engine.Engine = (*Engine)(nil)

// New creates an engine. The engine owns the store and closes it on Close.
func New(name string, store kv.Store, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = pebble.DefaultLogger
	}

	return &Engine{
		name:   name,
		store:  store,
		opts:   opts,
		tables: make(map[uint32]*tableState),
	}
}

func (e *Engine) Name() string {
	return e.name
}

func (e *Engine) NewHandler() (engine.Handler, error) {
	return &Handler{
		ng:    e,
		index: -1,
	}, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if e.handlers > 0 {
		e.opts.Logger.Infof("engine %s closed with %d open handlers", e.name, e.handlers)
	}

	return e.store.Close()
}

// acquire a handler slot and the state of the table.
func (e *Engine) acquire(ti *catalog.TableInfo) (*tableState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errors.WithStack(kv.ErrClosed)
	}

	if e.opts.MaxHandlers > 0 && e.handlers >= e.opts.MaxHandlers {
		return nil, errors.Wrapf(engine.ErrOutOfMemory, "engine %s: too many open handlers", e.name)
	}

	ts, ok := e.tables[ti.ID]
	if !ok {
		var err error
		ts, err = loadTableState(e.store, ti.ID)
		if err != nil {
			return nil, err
		}
		e.tables[ti.ID] = ts
	}

	e.handlers++
	return ts, nil
}

func (e *Engine) release() {
	e.mu.Lock()
	e.handlers--
	e.mu.Unlock()
}

// tableState is shared by the handlers of a table.
// Writes of a table are serialized by mu.
type tableState struct {
	mu sync.Mutex

	id        uint32
	nextRowID uint64
	records   uint64
	length    uint64

	// next auto increment value never handed out.
	nextAutoInc uint64
	// value of nextAutoInc last written to the store.
	persistedAutoInc uint64

	// unique index entries written by bulk inserts but not yet committed.
	pending map[string]struct{}
}

func loadTableState(store kv.Store, tableID uint32) (*tableState, error) {
	ts := tableState{
		id:          tableID,
		nextRowID:   1,
		nextAutoInc: 1,
		pending:     make(map[string]struct{}),
	}

	prefix := rowsPrefix(tableID)
	it, err := store.NewIterator(&kv.IterOptions{
		LowerBound: prefix,
		UpperBound: encoding.PrefixEnd(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	for ok := it.First(); ok; ok = it.Next() {
		ts.records++
		ts.length += uint64(len(it.Value()))
	}
	if err := it.Error(); err != nil {
		return nil, err
	}

	if it.Last() {
		last, err := rowIDFromKey(it.Key())
		if err != nil {
			return nil, err
		}
		ts.nextRowID = last + 1
	}

	v, err := store.Get(autoIncKey(tableID))
	if err == nil {
		ts.nextAutoInc, err = encoding.DecodeUint64(v)
		if err != nil {
			return nil, err
		}
		ts.persistedAutoInc = ts.nextAutoInc
	} else if !errors.Is(err, kv.ErrKeyNotFound) {
		return nil, err
	}

	return &ts, nil
}

// reserve nb auto increment values on the grid of offset and increment.
// Must be called with ts.mu held.
func (ts *tableState) reserve(offset, increment, nb uint64) (uint64, uint64) {
	if ts.nextAutoInc == math.MaxUint64 {
		return math.MaxUint64, 0
	}

	first := autoinc.RoundUp(ts.nextAutoInc-1, increment, offset)
	if first == math.MaxUint64 {
		return math.MaxUint64, 0
	}

	ts.nextAutoInc = autoinc.NewInterval(first, nb, increment).Maximum
	return first, nb
}

// observe a value written in the auto increment column.
// Must be called with ts.mu held.
func (ts *tableState) observe(v uint64) bool {
	if v < ts.nextAutoInc {
		return false
	}

	ts.nextAutoInc = v + 1
	if v == math.MaxUint64 {
		ts.nextAutoInc = v
	}
	return true
}

// persistAutoInc writes nextAutoInc to the store if it moved past the
// stored value. It writes outside of any batch so that a batch committed
// later can't move the stored value backwards.
// Must be called with ts.mu held.
func (ts *tableState) persistAutoInc(store kv.Store) error {
	if ts.nextAutoInc <= ts.persistedAutoInc {
		return nil
	}

	if err := store.Put(autoIncKey(ts.id), encoding.EncodeUint64(nil, ts.nextAutoInc)); err != nil {
		return storeError(err)
	}
	ts.persistedAutoInc = ts.nextAutoInc
	return nil
}

// autoIncValue returns the value of the auto increment column of r,
// if positive.
func autoIncValue(ti *catalog.TableInfo, r *row.Row) (uint64, bool) {
	if ti.AutoIncrementColumn < 0 {
		return 0, false
	}

	v, err := r.Get(ti.AutoIncrementColumn)
	if err != nil {
		return 0, false
	}

	x, ok := types.AsInt64(v)
	if !ok || x <= 0 {
		return 0, false
	}
	return uint64(x), true
}
