package cursor

import "github.com/maniacs-db/drizzle-sub000/internal/engine"

// IOSize is the unit of the cost of a table scan.
const IOSize = 4096

// Stats returns the statistics of the table,
// with defaults for what the engine doesn't provide.
func (c *Cursor) Stats() engine.Statistics {
	var st engine.Statistics
	if p, ok := c.h.(engine.StatsProvider); ok {
		st = p.Stats()
	}
	if st.BlockSize == 0 {
		st.BlockSize = engine.DefaultBlockSize
	}
	if st.RefLength == 0 {
		st.RefLength = engine.DefaultRefLength
	}
	return st
}

// ScanTime is the cost of a full table scan.
func (c *Cursor) ScanTime() float64 {
	if e, ok := c.h.(engine.CostEstimator); ok {
		return e.ScanTime()
	}

	return float64(c.Stats().DataLength)/IOSize + 2
}

// ReadTime is the cost of reading rows rows found in ranges ranges
// of the index.
func (c *Cursor) ReadTime(index int, ranges, rows uint64) float64 {
	if e, ok := c.h.(engine.CostEstimator); ok {
		return e.ReadTime(index, ranges, rows)
	}

	return float64(ranges + rows)
}

// IndexOnlyReadTime is the cost of reading rows entries of the index
// without reading the rows. Blocks are assumed half full.
func (c *Cursor) IndexOnlyReadTime(index int, rows uint64) float64 {
	st := c.Stats()
	keyLength := uint64(c.table.Indexes[index].MaxKeyLength())

	keysPerBlock := st.BlockSize/2/(keyLength+st.RefLength) + 1
	return float64(rows+keysPerBlock-1) / float64(keysPerBlock)
}
