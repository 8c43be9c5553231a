// Package engine defines the contract every storage engine implements.
//
// A Handler is the engine side of a cursor: it positions on rows by index
// or in table order and performs the physical mutations. The cursor layer
// builds every engine independent algorithm on top of these primitives.
// Engines may implement the optional capability interfaces of this package
// to override a default algorithm.
package engine

import (
	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/catalog"
	"github.com/maniacs-db/drizzle-sub000/internal/key"
	"github.com/maniacs-db/drizzle-sub000/internal/row"
)

// Common errors returned by engines.
var (
	// ErrAccessDenied is returned by Open when the table can't be opened
	// in the requested mode. The caller may retry read-only.
	ErrAccessDenied = errors.New("access denied")

	// ErrOutOfMemory is returned when the engine can't allocate
	// the resources of a handler or of a row.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrKeyNotFound is returned when positioning on a key finds no row.
	ErrKeyNotFound = errors.New("key not found")

	// ErrDuplicateKey is returned when a write violates a unique index.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrEndOfRange is returned when a range scan has no more rows.
	ErrEndOfRange = errors.New("end of range")

	// ErrEndOfData is returned when a scan reached the end of the table or index.
	ErrEndOfData = errors.New("end of data")

	// ErrAborted marks lower-level failures that aborted a scan.
	ErrAborted = errors.New("operation aborted")
)

// Abort marks err as a scan abort. The original error is kept
// and can still be matched with errors.Is.
func Abort(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrAborted, err)
}

// IsEndOfScan returns true if err is one of the signals
// ending a scan normally.
func IsEndOfScan(err error) bool {
	return errors.Is(err, ErrEndOfRange) || errors.Is(err, ErrEndOfData)
}

// OpenMode of a handler.
type OpenMode uint8

const (
	ReadWrite OpenMode = iota
	ReadOnly
)

func (m OpenMode) String() string {
	if m == ReadOnly {
		return "read-only"
	}
	return "read-write"
}

// Handler is the engine specific part of a cursor.
// A handler is used by one goroutine at a time.
type Handler interface {
	// Open binds the handler to a table.
	Open(table *catalog.TableInfo, mode OpenMode) error
	Close() error

	// IndexInit prepares the handler for reads on the given index.
	// If sorted is false, the engine may return rows in any order.
	IndexInit(index int, sorted bool) error
	IndexEnd() error
	// IndexRead positions on the first entry of the active index matching
	// the encoded key prefix k according to flag. It returns ErrKeyNotFound
	// if there is no such entry.
	IndexRead(k []byte, flag key.Flag) (*row.Row, error)
	// IndexFirst and IndexLast position on the first and last entries
	// of the active index. They return ErrEndOfData if the index is empty.
	IndexFirst() (*row.Row, error)
	IndexLast() (*row.Row, error)
	// IndexNext returns the row of the next index entry,
	// or ErrEndOfData.
	IndexNext() (*row.Row, error)

	// TableScanInit prepares a scan in table order. It may be called again
	// during a scan to restart it.
	TableScanInit(scan bool) error
	// TableScanNext returns the next row in table order, or ErrEndOfData.
	TableScanNext() (*row.Row, error)
	TableScanEnd() error

	WriteRow(r *row.Row) error
	// UpdateRow replaces the stored row old, as returned by a read,
	// with new.
	UpdateRow(old, new *row.Row) error
	DeleteRow(r *row.Row) error

	// RowsInRange estimates the number of rows of the given index
	// between start and end. Both may be nil.
	RowsInRange(index int, start, end *key.Range) (uint64, error)
}

// AutoIncrementReserver is implemented by engines that reserve
// auto increment values themselves, usually to coordinate the values
// generated by different handlers on the same table.
// The method has the semantics of autoinc.Reserver.
type AutoIncrementReserver interface {
	ReserveAutoIncrement(offset, increment, nbDesired uint64) (first, nbReserved uint64, err error)
}

// AutoIncrementReleaser is implemented by engines that must be told
// when a statement stopped generating values.
type AutoIncrementReleaser interface {
	ReleaseAutoIncrement()
}

// IndexNextSamer is implemented by engines able to advance
// on entries sharing the key prefix k without reading past them.
// IndexNextSame returns ErrEndOfData once the prefix changes.
type IndexNextSamer interface {
	IndexNextSame(k []byte) (*row.Row, error)
}

// RangeReader is implemented by engines with their own single range scan.
// The methods have the semantics of the cursor's RangeScanStart
// and RangeScanNext.
type RangeReader interface {
	ReadRangeFirst(start, end *key.Range, eq, sorted bool) (*row.Row, error)
	ReadRangeNext() (*row.Row, error)
}

// CostEstimator is implemented by engines overriding the default cost model.
type CostEstimator interface {
	// ScanTime is the cost of a full table scan.
	ScanTime() float64
	// ReadTime is the cost of reading rows rows found in ranges ranges.
	ReadTime(index int, ranges, rows uint64) float64
}

// Statistics of an open table.
type Statistics struct {
	Records    uint64
	DataLength uint64
	// BlockSize is the size of an index block.
	BlockSize uint64
	// RefLength is the length of a row reference.
	RefLength uint64
}

// Default statistics values.
const (
	DefaultBlockSize = 4096
	DefaultRefLength = 8
)

// StatsProvider is implemented by engines maintaining table statistics.
type StatsProvider interface {
	Stats() Statistics
}

// SemiConsistentReader is implemented by engines that can return the last
// committed version of a locked row instead of waiting for the lock.
// WasSemiConsistentRead reports whether the last row read was such a row,
// in which case the caller must read it again before updating it.
type SemiConsistentReader interface {
	WasSemiConsistentRead() bool
}

// BulkInserter is implemented by engines optimizing inserts
// of many rows. rows is 0 if unknown.
type BulkInserter interface {
	StartBulkInsert(rows uint64)
	EndBulkInsert() error
}

// An Engine creates handlers.
type Engine interface {
	Name() string
	NewHandler() (Handler, error)
	Close() error
}
