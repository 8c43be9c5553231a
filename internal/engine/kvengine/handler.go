package kvengine

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/catalog"
	"github.com/maniacs-db/drizzle-sub000/internal/encoding"
	"github.com/maniacs-db/drizzle-sub000/internal/engine"
	"github.com/maniacs-db/drizzle-sub000/internal/key"
	"github.com/maniacs-db/drizzle-sub000/internal/kv"
	"github.com/maniacs-db/drizzle-sub000/internal/row"
	"github.com/maniacs-db/drizzle-sub000/internal/types"
)

// Handler is the engine.Handler of a kv engine.
type Handler struct {
	ng    *Engine
	table *catalog.TableInfo
	ts    *tableState
	mode  engine.OpenMode

	// active index, -1 if none.
	index  int
	sorted bool
	// iterator of the active index or table scan.
	it kv.Iterator

	scanning bool

	// writes of a bulk insert, nil otherwise.
	bulk        kv.Batch
	bulkPending []string
}

var (
	_ engine.Handler               = (*Handler)(nil)
	_ engine.AutoIncrementReserver = (*Handler)(nil)
	_ engine.IndexNextSamer        = (*Handler)(nil)
	_ engine.StatsProvider         = (*Handler)(nil)
	_ engine.BulkInserter          = (*Handler)(nil)
)

func (h *Handler) Open(table *catalog.TableInfo, mode engine.OpenMode) error {
	if h.table != nil {
		return errors.Errorf("handler already bound to table %q", h.table.Name)
	}

	if mode == engine.ReadWrite && (h.ng.opts.ReadOnly || table.ReadOnly) {
		return errors.Wrapf(engine.ErrAccessDenied, "table %q is read-only", table.Name)
	}

	ts, err := h.ng.acquire(table)
	if err != nil {
		return err
	}

	h.table = table
	h.ts = ts
	h.mode = mode
	return nil
}

func (h *Handler) Close() error {
	if h.table == nil {
		return nil
	}

	var err error
	if h.bulk != nil {
		err = h.EndBulkInsert()
	}
	h.closeIterator()

	h.ng.release()
	h.table = nil
	h.ts = nil
	return err
}

func (h *Handler) closeIterator() {
	if h.it != nil {
		_ = h.it.Close()
		h.it = nil
	}
}

// open a fresh iterator on the given prefix.
// Pending bulk writes are committed first so reads see them.
func (h *Handler) openIterator(prefix []byte) error {
	if err := h.flush(); err != nil {
		return err
	}

	h.closeIterator()
	it, err := h.ng.store.NewIterator(&kv.IterOptions{
		LowerBound: prefix,
		UpperBound: encoding.PrefixEnd(prefix),
	})
	if err != nil {
		return engine.Abort(err)
	}

	h.it = it
	return nil
}

func (h *Handler) IndexInit(index int, sorted bool) error {
	if index < 0 || index >= len(h.table.Indexes) {
		return errors.Wrapf(catalog.ErrIndexNotFound, "index %d of table %q", index, h.table.Name)
	}

	h.index = index
	h.sorted = sorted
	return nil
}

func (h *Handler) IndexEnd() error {
	h.index = -1
	h.sorted = false
	h.closeIterator()
	return nil
}

func (h *Handler) indexPrefix() []byte {
	if h.index < 0 {
		panic(errors.AssertionFailedf("no active index on table %q", h.table.Name))
	}

	return indexEntriesPrefix(h.table.ID, h.index)
}

func (h *Handler) IndexRead(k []byte, flag key.Flag) (*row.Row, error) {
	prefix := h.indexPrefix()
	if err := h.openIterator(prefix); err != nil {
		return nil, err
	}

	target := append(append([]byte(nil), prefix...), k...)

	var ok bool
	switch flag {
	case key.AfterKey:
		ok = h.it.SeekGE(encoding.PrefixEnd(target))
	case key.BeforeKey:
		ok = h.it.SeekLT(target)
	default:
		ok = h.it.SeekGE(target)
	}
	if !ok {
		if err := h.it.Error(); err != nil {
			return nil, engine.Abort(err)
		}
		return nil, errors.WithStack(engine.ErrKeyNotFound)
	}

	if flag == key.Exact && !bytes.HasPrefix(h.it.Key(), target) {
		return nil, errors.WithStack(engine.ErrKeyNotFound)
	}

	return h.currentIndexRow()
}

func (h *Handler) IndexFirst() (*row.Row, error) {
	if err := h.openIterator(h.indexPrefix()); err != nil {
		return nil, err
	}

	return h.indexRowOrEnd(h.it.First())
}

func (h *Handler) IndexLast() (*row.Row, error) {
	if err := h.openIterator(h.indexPrefix()); err != nil {
		return nil, err
	}

	return h.indexRowOrEnd(h.it.Last())
}

func (h *Handler) IndexNext() (*row.Row, error) {
	if h.it == nil {
		panic(errors.AssertionFailedf("IndexNext called before positioning"))
	}

	return h.indexRowOrEnd(h.it.Next())
}

// IndexNextSame returns the next entry if its key starts with k.
func (h *Handler) IndexNextSame(k []byte) (*row.Row, error) {
	if h.it == nil {
		panic(errors.AssertionFailedf("IndexNextSame called before positioning"))
	}

	if !h.it.Next() {
		return h.indexRowOrEnd(false)
	}

	prefix := h.indexPrefix()
	if !bytes.HasPrefix(h.it.Key()[len(prefix):], k) {
		return nil, errors.WithStack(engine.ErrEndOfData)
	}

	return h.currentIndexRow()
}

func (h *Handler) indexRowOrEnd(ok bool) (*row.Row, error) {
	if !ok {
		if err := h.it.Error(); err != nil {
			return nil, engine.Abort(err)
		}
		return nil, errors.WithStack(engine.ErrEndOfData)
	}

	return h.currentIndexRow()
}

func (h *Handler) currentIndexRow() (*row.Row, error) {
	rowid, err := rowIDFromKey(h.it.Key())
	if err != nil {
		return nil, engine.Abort(err)
	}

	return h.getRow(rowid)
}

func (h *Handler) getRow(rowid uint64) (*row.Row, error) {
	v, err := h.ng.store.Get(rowKey(h.table.ID, rowid))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return nil, errors.Wrapf(engine.ErrAborted, "index entry of table %q points to missing row %d", h.table.Name, rowid)
		}
		return nil, engine.Abort(err)
	}

	return decodeRow(v, rowid)
}

func decodeRow(v []byte, rowid uint64) (*row.Row, error) {
	r, err := row.Decode(v)
	if err != nil {
		return nil, engine.Abort(err)
	}
	r.Ref = encodeRowID(rowid)
	return r, nil
}

func (h *Handler) TableScanInit(scan bool) error {
	if err := h.openIterator(rowsPrefix(h.table.ID)); err != nil {
		return err
	}

	h.scanning = false
	return nil
}

func (h *Handler) TableScanNext() (*row.Row, error) {
	if h.it == nil {
		panic(errors.AssertionFailedf("TableScanNext called before TableScanInit"))
	}

	var ok bool
	if h.scanning {
		ok = h.it.Next()
	} else {
		ok = h.it.First()
		h.scanning = true
	}
	if !ok {
		if err := h.it.Error(); err != nil {
			return nil, engine.Abort(err)
		}
		return nil, errors.WithStack(engine.ErrEndOfData)
	}

	rowid, err := rowIDFromKey(h.it.Key())
	if err != nil {
		return nil, engine.Abort(err)
	}
	return decodeRow(h.it.Value(), rowid)
}

func (h *Handler) TableScanEnd() error {
	h.scanning = false
	h.closeIterator()
	return nil
}

// RowsInRange counts the entries of the index between start and end.
func (h *Handler) RowsInRange(index int, start, end *key.Range) (uint64, error) {
	if index < 0 || index >= len(h.table.Indexes) {
		return 0, errors.Wrapf(catalog.ErrIndexNotFound, "index %d of table %q", index, h.table.Name)
	}
	if err := h.flush(); err != nil {
		return 0, err
	}

	prefix := indexEntriesPrefix(h.table.ID, index)
	opts := kv.IterOptions{
		LowerBound: prefix,
		UpperBound: encoding.PrefixEnd(prefix),
	}
	if start != nil {
		opts.LowerBound = append(append([]byte(nil), prefix...), start.Key...)
		if start.Flag == key.AfterKey {
			opts.LowerBound = encoding.PrefixEnd(opts.LowerBound)
		}
	}
	if end != nil {
		opts.UpperBound = append(append([]byte(nil), prefix...), end.Key...)
		if end.Flag != key.BeforeKey {
			opts.UpperBound = encoding.PrefixEnd(opts.UpperBound)
		}
	}

	it, err := h.ng.store.NewIterator(&opts)
	if err != nil {
		return 0, engine.Abort(err)
	}
	defer it.Close()

	var n uint64
	for ok := it.First(); ok; ok = it.Next() {
		n++
	}
	if err := it.Error(); err != nil {
		return 0, engine.Abort(err)
	}

	return n, nil
}

func (h *Handler) checkWritable() {
	if h.mode != engine.ReadWrite {
		panic(errors.AssertionFailedf("write on table %q opened %s", h.table.Name, h.mode))
	}
}

// index entry keys of r, without rowid, and whether they must be unique.
func (h *Handler) indexKeys(r *row.Row) ([][]byte, []bool, error) {
	keys := make([][]byte, len(h.table.Indexes))
	unique := make([]bool, len(h.table.Indexes))
	for i := range h.table.Indexes {
		idx := &h.table.Indexes[i]
		k, err := idx.Key(indexEntriesPrefix(h.table.ID, i), r)
		if err != nil {
			return nil, nil, err
		}
		keys[i] = k
		unique[i] = idx.Unique && !hasNullKeyPart(idx, r)
	}

	return keys, unique, nil
}

// NULL values never conflict.
func hasNullKeyPart(idx *catalog.IndexInfo, r *row.Row) bool {
	for _, c := range idx.Columns {
		if types.IsNull(r.Values[c]) {
			return true
		}
	}
	return false
}

// checkUnique returns ErrDuplicateKey if another row than self
// has the entry prefix k. Must be called with ts.mu held.
func (h *Handler) checkUnique(k []byte, self uint64) error {
	if _, ok := h.ts.pending[string(k)]; ok {
		return errors.Wrapf(engine.ErrDuplicateKey, "table %q", h.table.Name)
	}

	it, err := h.ng.store.NewIterator(&kv.IterOptions{
		LowerBound: k,
		UpperBound: encoding.PrefixEnd(k),
	})
	if err != nil {
		return engine.Abort(err)
	}
	defer it.Close()

	for ok := it.First(); ok; ok = it.Next() {
		rowid, err := rowIDFromKey(it.Key())
		if err != nil {
			return engine.Abort(err)
		}
		if rowid != self {
			return errors.Wrapf(engine.ErrDuplicateKey, "table %q", h.table.Name)
		}
	}

	return engine.Abort(it.Error())
}

func (h *Handler) WriteRow(r *row.Row) error {
	h.checkWritable()

	if err := h.table.Conform(r); err != nil {
		return err
	}

	keys, unique, err := h.indexKeys(r)
	if err != nil {
		return err
	}

	h.ts.mu.Lock()
	defer h.ts.mu.Unlock()

	for i := range keys {
		if !unique[i] {
			continue
		}
		if err := h.checkUnique(keys[i], 0); err != nil {
			return err
		}
	}

	rowid := h.ts.nextRowID
	value := row.Encode(nil, r)

	b := h.bulk
	if b == nil {
		b = h.ng.store.NewBatch()
		defer b.Close()
	}

	if err := b.Put(rowKey(h.table.ID, rowid), value); err != nil {
		return err
	}
	for i := range keys {
		if err := b.Put(encoding.EncodeUint64(keys[i], rowid), nil); err != nil {
			return err
		}
	}
	if v, ok := autoIncValue(h.table, r); ok && h.ts.observe(v) {
		if err := h.ts.persistAutoInc(h.ng.store); err != nil {
			return err
		}
	}

	if h.bulk != nil {
		for i := range keys {
			if unique[i] {
				h.ts.pending[string(keys[i])] = struct{}{}
				h.bulkPending = append(h.bulkPending, string(keys[i]))
			}
		}
	} else if err := b.Commit(); err != nil {
		return storeError(err)
	}

	h.ts.nextRowID++
	h.ts.records++
	h.ts.length += uint64(len(value))
	r.Ref = encodeRowID(rowid)
	return nil
}

func (h *Handler) UpdateRow(old, updated *row.Row) error {
	h.checkWritable()

	rowid, err := h.rowID(old)
	if err != nil {
		return err
	}
	if err := h.flush(); err != nil {
		return err
	}
	if err := h.table.Conform(updated); err != nil {
		return err
	}

	oldKeys, _, err := h.indexKeys(old)
	if err != nil {
		return err
	}
	newKeys, unique, err := h.indexKeys(updated)
	if err != nil {
		return err
	}

	h.ts.mu.Lock()
	defer h.ts.mu.Unlock()

	for i := range newKeys {
		if unique[i] {
			if err := h.checkUnique(newKeys[i], rowid); err != nil {
				return err
			}
		}
	}

	b := h.ng.store.NewBatch()
	defer b.Close()

	value := row.Encode(nil, updated)
	if err := b.Put(rowKey(h.table.ID, rowid), value); err != nil {
		return err
	}
	for i := range newKeys {
		if bytes.Equal(oldKeys[i], newKeys[i]) {
			continue
		}
		if err := b.Delete(encoding.EncodeUint64(oldKeys[i], rowid)); err != nil {
			return err
		}
		if err := b.Put(encoding.EncodeUint64(newKeys[i], rowid), nil); err != nil {
			return err
		}
	}
	if v, ok := autoIncValue(h.table, updated); ok && h.ts.observe(v) {
		if err := h.ts.persistAutoInc(h.ng.store); err != nil {
			return err
		}
	}

	if err := b.Commit(); err != nil {
		return storeError(err)
	}

	h.ts.length += uint64(len(value))
	h.ts.length -= min(h.ts.length, uint64(len(row.Encode(nil, old))))
	updated.Ref = old.Ref
	return nil
}

func (h *Handler) DeleteRow(r *row.Row) error {
	h.checkWritable()

	rowid, err := h.rowID(r)
	if err != nil {
		return err
	}
	if err := h.flush(); err != nil {
		return err
	}

	keys, _, err := h.indexKeys(r)
	if err != nil {
		return err
	}

	h.ts.mu.Lock()
	defer h.ts.mu.Unlock()

	b := h.ng.store.NewBatch()
	defer b.Close()

	if err := b.Delete(rowKey(h.table.ID, rowid)); err != nil {
		return err
	}
	for i := range keys {
		if err := b.Delete(encoding.EncodeUint64(keys[i], rowid)); err != nil {
			return err
		}
	}
	if err := b.Commit(); err != nil {
		return storeError(err)
	}

	h.ts.records--
	h.ts.length -= min(h.ts.length, uint64(len(row.Encode(nil, r))))
	return nil
}

func (h *Handler) rowID(r *row.Row) (uint64, error) {
	if len(r.Ref) != rowIDLength {
		return 0, errors.Errorf("row of table %q has no valid reference", h.table.Name)
	}

	return encoding.DecodeUint64(r.Ref)
}

func storeError(err error) error {
	if errors.Is(err, kv.ErrStoreFull) {
		return errors.Join(engine.ErrOutOfMemory, err)
	}

	return engine.Abort(err)
}

// ReserveAutoIncrement hands out values from the lease of the table,
// shared by every handler of the engine.
func (h *Handler) ReserveAutoIncrement(offset, increment, nbDesired uint64) (uint64, uint64, error) {
	h.ts.mu.Lock()
	defer h.ts.mu.Unlock()

	first, nb := h.ts.reserve(offset, increment, nbDesired)
	if nb == 0 {
		return first, nb, nil
	}

	if err := h.ts.persistAutoInc(h.ng.store); err != nil {
		return 0, 0, err
	}

	return first, nb, nil
}

// Stats returns the statistics of the table.
func (h *Handler) Stats() engine.Statistics {
	h.ts.mu.Lock()
	defer h.ts.mu.Unlock()

	return engine.Statistics{
		Records:    h.ts.records,
		DataLength: h.ts.length,
		BlockSize:  engine.DefaultBlockSize,
		RefLength:  rowIDLength,
	}
}

// StartBulkInsert makes the following writes go to a single batch.
// The batch is committed by EndBulkInsert, or by the first read,
// which also ends the bulk insert.
func (h *Handler) StartBulkInsert(rows uint64) {
	h.checkWritable()

	if h.bulk == nil {
		h.bulk = h.ng.store.NewBatch()
	}
}

func (h *Handler) EndBulkInsert() error {
	return h.flush()
}

// flush commits the writes of a bulk insert.
func (h *Handler) flush() error {
	if h.bulk == nil {
		return nil
	}

	b := h.bulk
	h.bulk = nil
	defer b.Close()

	err := b.Commit()

	h.ts.mu.Lock()
	for _, k := range h.bulkPending {
		delete(h.ts.pending, k)
	}
	h.ts.mu.Unlock()
	h.bulkPending = nil

	if err != nil {
		return storeError(err)
	}
	return nil
}
