package dbutil

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/catalog"
	"github.com/maniacs-db/drizzle-sub000/internal/cursor"
	"github.com/maniacs-db/drizzle-sub000/internal/encoding"
	"github.com/maniacs-db/drizzle-sub000/internal/engine"
	"github.com/maniacs-db/drizzle-sub000/internal/key"
	"github.com/maniacs-db/drizzle-sub000/internal/mrr"
	"github.com/maniacs-db/drizzle-sub000/internal/types"
)

type ScanOptions struct {
	Index string
	// Ranges on the first column of the index: "v", "lo..hi", "lo.." or "..hi".
	Ranges   []string
	Sorted   bool
	Estimate bool
}

// Scan reads the ranges of an index and writes the rows to w,
// each prefixed by its range.
func Scan(ctx context.Context, db *DB, opts ScanOptions, w io.Writer) error {
	index, err := db.Table.GetIndex(opts.Index)
	if err != nil {
		return err
	}

	var ranges []mrr.Descriptor
	for _, s := range opts.Ranges {
		d, err := ParseRange(s, db.Table, index)
		if err != nil {
			return err
		}
		ranges = append(ranges, d)
	}
	if len(ranges) == 0 {
		ranges = append(ranges, mrr.Descriptor{Tag: ".."})
	}
	seq := mrr.NewSliceSequence(ranges...)

	h, err := db.Engine.NewHandler()
	if err != nil {
		return err
	}
	c, err := cursor.Open(nil, h, db.Table, engine.ReadOnly)
	if err != nil {
		return err
	}
	defer c.Close()

	mode := mrr.Mode{Sorted: opts.Sorted}
	if opts.Estimate {
		rows, cost, err := mrr.EstimateCost(ctx, c, index, seq, mode)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "estimate: %d rows, cost %.2f (io %.2f, cpu %.2f)\n", rows, cost.Total(), cost.IOCount, cost.CPUCost)
		seq.Reset()
	}

	rd, err := mrr.Open(c, index, seq, mode)
	if err != nil {
		return err
	}
	defer rd.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		r, tag, err := rd.Next()
		if errors.Is(err, engine.ErrEndOfData) {
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%v\t%s\n", tag, r)
	}
}

// ParseRange parses a range on the first key part of an index.
func ParseRange(s string, ti *catalog.TableInfo, index int) (mrr.Descriptor, error) {
	d := mrr.Descriptor{Tag: s}
	idx := &ti.Indexes[index]
	col := &ti.Columns[idx.Columns[0]]

	parse := func(v string) (*key.Range, error) {
		val, err := parseValue(v, col.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "range %q", s)
		}
		return &key.Range{Key: encoding.EncodeValue(nil, val), KeypartMap: 1}, nil
	}

	lo, hi, isRange := strings.Cut(s, "..")
	if !isRange {
		start, err := parse(s)
		if err != nil {
			return d, err
		}
		end := *start
		start.Flag = key.Exact
		end.Flag = key.AfterKey

		d.Start, d.End = start, &end
		d.Flags = mrr.Flags{Eq: true, Unique: idx.Unique && idx.KeyParts() == 1}
		return d, nil
	}

	var err error
	if lo != "" {
		if d.Start, err = parse(lo); err != nil {
			return d, err
		}
	}
	if hi != "" {
		if d.End, err = parse(hi); err != nil {
			return d, err
		}
		// the upper bound includes every key starting with hi
		d.End.Flag = key.AfterKey
	}

	return d, nil
}

func parseValue(s string, t types.Type) (types.Value, error) {
	switch {
	case t.IsInteger():
		x, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", t)
		}
		if x > t.MaxInt() || x < -t.MaxInt()-1 {
			return nil, errors.Errorf("%d out of range for %s", x, t)
		}
		return types.NewIntegralValue(t, x), nil
	case t == types.TypeDouble:
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", t)
		}
		return types.NewDoubleValue(x), nil
	}

	return types.NewTextValue(s), nil
}
