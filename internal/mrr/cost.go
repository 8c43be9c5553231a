package mrr

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/cursor"
)

// ErrInterrupted is returned when a cost estimation is cancelled.
var ErrInterrupted = errors.New("interrupted")

// Number of row comparisons that cost as much as reading one block.
const timeForCompare = 5

// Cost of a multi-range read.
type Cost struct {
	IOCount   float64
	AvgIOCost float64
	CPUCost   float64
}

// Total returns the cost as a single number.
func (c Cost) Total() float64 {
	return c.IOCount*c.AvgIOCost + c.CPUCost
}

// EstimateCost reads every range of seq and returns the number of rows
// they match and the cost of reading them with the default driver.
// Unique ranges count one row; others are counted by the engine.
//
// ctx is checked before each range. If it is done, EstimateCost returns
// ErrInterrupted.
func EstimateCost(ctx context.Context, c *cursor.Cursor, index int, seq Sequence, mode Mode) (uint64, Cost, error) {
	var ranges, rows uint64

	for {
		if err := ctx.Err(); err != nil {
			return 0, Cost{}, errors.Wrap(errors.Join(ErrInterrupted, err), "cost estimation")
		}

		d, ok := seq.Next()
		if !ok {
			break
		}
		ranges++

		if d.Flags.Unique && !d.Flags.NullRange {
			rows++
			continue
		}

		n, err := c.RowsInRange(index, d.Start, d.End)
		if err != nil {
			return 0, Cost{}, err
		}
		rows += n
	}

	cost := Cost{
		AvgIOCost: 1,
		CPUCost:   float64(rows)/timeForCompare + 0.01,
	}
	if mode.IndexOnly && rows > 2 {
		cost.IOCount = c.IndexOnlyReadTime(index, rows)
	} else {
		cost.IOCount = c.ReadTime(index, ranges, rows)
	}

	return rows, cost, nil
}

// EstimateCostForCounts returns the cost of reading rows rows in ranges
// ranges, when the ranges themselves are not known yet.
func EstimateCostForCounts(c *cursor.Cursor, index int, ranges, rows uint64, mode Mode) Cost {
	cost := Cost{AvgIOCost: 1}
	if mode.IndexOnly {
		cost.IOCount = c.IndexOnlyReadTime(index, rows)
	} else {
		cost.IOCount = c.ReadTime(index, ranges, rows)
	}

	return cost
}
