// Package autoinc generates auto increment values for the rows
// inserted through a cursor.
//
// Values are taken from intervals reserved from the storage engine.
// The first interval of a statement is sized after the estimated number
// of rows to insert, if known; the following ones grow exponentially,
// which amortizes reservations on large inserts while bounding
// the values lost by small ones.
package autoinc

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// MaxBatchSize is the largest number of values requested
// from the engine in one reservation.
const MaxBatchSize = 65535

const maxBatchBits = 16

var (
	// ErrReadFailed is returned when the engine failed to reserve values.
	// The statement must be aborted.
	ErrReadFailed = errors.New("failed to read auto increment value from storage engine")

	// ErrOutOfRange is returned when the generated value doesn't fit
	// in the auto increment column.
	ErrOutOfRange = errors.New("auto increment value out of range")
)

// A Reserver reserves auto increment values.
// It returns the first reserved value and the number of reserved values,
// math.MaxUint64 meaning every value after first is reserved.
// Engines that don't honour offset and increment are tolerated:
// the first value is rounded up to the grid.
// A first value of math.MaxUint64 denotes a failure.
type Reserver interface {
	ReserveAutoIncrement(offset, increment, nbDesired uint64) (first, nbReserved uint64, err error)
}

// The ReserverFunc type is an adapter to allow the use of ordinary functions as reservers.
type ReserverFunc func(offset, increment, nbDesired uint64) (uint64, uint64, error)

func (f ReserverFunc) ReserveAutoIncrement(offset, increment, nbDesired uint64) (uint64, uint64, error) {
	return f(offset, increment, nbDesired)
}

// Config of the generation of one value.
type Config struct {
	Increment uint64
	Offset    uint64
	// MaxValue is the largest value the column can store.
	// Zero means math.MaxUint64.
	MaxValue uint64
	// Strict turns truncation into an error.
	Strict bool
	Logger pebble.Logger
}

func (c *Config) increment() uint64 {
	if c.Increment == 0 {
		return 1
	}
	return c.Increment
}

func (c *Config) maxValue() uint64 {
	if c.MaxValue == 0 {
		return math.MaxUint64
	}
	return c.MaxValue
}

// State is the auto increment state of one cursor.
// It is not safe for concurrent use.
type State struct {
	// NextInsertID points into the reserved interval. It may go beyond it,
	// but never moves backward except on Release.
	NextInsertID uint64
	// Reserved is the interval values are currently taken from.
	Reserved Interval
	// InsertIDForCurRow is the value generated for the last row,
	// 0 if none was generated.
	InsertIDForCurRow uint64
	// EstimatedRowsToInsert is the number of rows a bulk insert expects
	// to write, 0 if unknown.
	EstimatedRowsToInsert uint64

	// intervals forced by a replication applier, consumed in order
	// before asking the engine.
	forced []Interval
	// intervals reserved during the current statement.
	reserved []Interval
}

// Next returns the value to use for the current row.
// explicit is the value given by the statement, 0 if none.
//
// If the value must be truncated to fit in the column and strict mode is
// disabled, Next returns the value rounded down to the grid. If there is no
// such value, the truncated value is returned alongside ErrOutOfRange
// and the caller decides whether the row is written.
func (s *State) Next(explicit uint64, cfg Config, r Reserver) (uint64, error) {
	inc := cfg.increment()

	if explicit != 0 {
		// later generated values of the statement must continue after
		// the explicit one
		if explicit >= s.NextInsertID {
			s.NextInsertID = RoundUp(explicit, inc, cfg.Offset)
		}
		s.InsertIDForCurRow = 0
		return explicit, nil
	}

	nr := s.NextInsertID
	var nbReserved uint64
	appendInterval := false

	if nr >= s.Reserved.Maximum {
		if len(s.forced) > 0 {
			forced := s.forced[0]
			s.forced = s.forced[1:]
			nr = forced.Minimum
			nbReserved = forced.Values
		} else {
			first, nb, err := r.ReserveAutoIncrement(cfg.Offset, inc, s.nbDesired())
			if err != nil {
				return 0, errors.Wrap(errors.Join(ErrReadFailed, err), "cannot reserve auto increment values")
			}
			if first == math.MaxUint64 {
				return 0, errors.WithStack(ErrReadFailed)
			}

			// engines may ignore offset and increment
			if first == 0 {
				first = 1
			}
			nr = RoundUp(first-1, inc, cfg.Offset)
			nbReserved = nb
		}
		appendInterval = true
	}

	var err error
	if max := cfg.maxValue(); nr > max {
		if cfg.Strict {
			return 0, errors.Wrapf(ErrOutOfRange, "value %d exceeds %d", nr, max)
		}

		// store the truncated value, rounded down to honour
		// the increment and offset if possible.
		nr = RoundDown(max, inc, cfg.Offset)
		if nr < cfg.Offset {
			err = errors.Wrapf(ErrOutOfRange, "offset %d exceeds %d", cfg.Offset, max)
		}
		if cfg.Logger != nil {
			cfg.Logger.Infof("auto increment value truncated to %d", nr)
		}
	}

	if appendInterval {
		s.Reserved = NewInterval(nr, nbReserved, inc)
		s.reserved = append(s.reserved, s.Reserved)
	}

	s.InsertIDForCurRow = nr
	s.NextInsertID = RoundUp(nr, inc, cfg.Offset)
	return nr, err
}

// number of values to ask the engine for.
func (s *State) nbDesired() uint64 {
	n := len(s.reserved)
	if n == 0 && s.EstimatedRowsToInsert > 0 {
		return s.EstimatedRowsToInsert
	}

	if n > maxBatchBits {
		return MaxBatchSize
	}

	return min(uint64(1)<<n, MaxBatchSize)
}

// Force makes the following reservations use the given intervals
// instead of asking the engine. Used when replaying a statement
// whose generated values are already known.
func (s *State) Force(intervals ...Interval) {
	s.forced = append(s.forced, intervals...)
}

// StatementIntervals returns the intervals reserved during the current statement.
func (s *State) StatementIntervals() []Interval {
	return s.reserved
}

// Release clears the state at the end of a statement.
// Calling it twice is the same as calling it once.
func (s *State) Release() {
	s.InsertIDForCurRow = 0
	s.Reserved = Interval{}
	s.reserved = nil
	if s.NextInsertID > 0 {
		s.NextInsertID = 0
		s.forced = nil
	}
}
