package mrr_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/maniacs-db/drizzle-sub000/internal/catalog"
	"github.com/maniacs-db/drizzle-sub000/internal/cursor"
	"github.com/maniacs-db/drizzle-sub000/internal/encoding"
	"github.com/maniacs-db/drizzle-sub000/internal/engine"
	"github.com/maniacs-db/drizzle-sub000/internal/engine/kvengine"
	"github.com/maniacs-db/drizzle-sub000/internal/key"
	"github.com/maniacs-db/drizzle-sub000/internal/mrr"
	"github.com/maniacs-db/drizzle-sub000/internal/row"
	"github.com/maniacs-db/drizzle-sub000/internal/testutil"
	"github.com/maniacs-db/drizzle-sub000/internal/types"
	"github.com/stretchr/testify/require"
)

// countingHandler counts the calls to IndexNext and hides
// the optional capabilities of the engine.
type countingHandler struct {
	engine.Handler
	next int
}

func (h *countingHandler) IndexNext() (*row.Row, error) {
	h.next++
	return h.Handler.IndexNext()
}

// semiConsistentHandler reports the first read as semi consistent.
type semiConsistentHandler struct {
	engine.Handler
	calls int
}

func (h *semiConsistentHandler) WasSemiConsistentRead() bool {
	h.calls++
	return h.calls == 1
}

type hit struct {
	ID  int64
	Tag any
}

func newCursor(t *testing.T, wrap func(engine.Handler) engine.Handler) *cursor.Cursor {
	t.Helper()

	ng := testutil.NewMemoryEngine(t, kvengine.Options{})
	ti := testutil.NewTable(t, catalog.New(), "test")

	h, err := ng.NewHandler()
	require.NoError(t, err)
	if wrap != nil {
		h = wrap(h)
	}

	c, err := cursor.Open(nil, h, ti, engine.ReadWrite)
	require.NoError(t, err)
	t.Cleanup(func() {
		c.Close()
	})

	for _, r := range testutil.MakeRows(t, ti,
		`{"name": "a", "age": 10}`,
		`{"name": "b", "age": 20}`,
		`{"name": "c", "age": 20}`,
		`{"name": "d", "age": 30}`,
		`{"name": "e", "age": 40}`,
	) {
		require.NoError(t, c.InsertRow(r))
	}

	return c
}

func ageKey(age int32, flag key.Flag) *key.Range {
	return &key.Range{
		Key:        encoding.EncodeValue(nil, types.NewIntegerValue(age)),
		KeypartMap: 1,
		Flag:       flag,
	}
}

// idRange returns the range of rows whose id is id.
func idRange(id int64, flags mrr.Flags, tag any) mrr.Descriptor {
	k := encoding.EncodeValue(nil, types.NewBigintValue(id))

	return mrr.Descriptor{
		Start: &key.Range{Key: k, KeypartMap: 1, Flag: key.Exact},
		End:   &key.Range{Key: k, KeypartMap: 1, Flag: key.AfterKey},
		Flags: flags,
		Tag:   tag,
	}
}

var uniqueEq = mrr.Flags{Unique: true, Eq: true}

func readAll(t *testing.T, r mrr.Reader) []hit {
	t.Helper()

	var hits []hit
	for {
		rw, tag, err := r.Next()
		if errors.Is(err, engine.ErrEndOfData) {
			break
		}
		require.NoError(t, err)

		v, err := rw.Get(0)
		require.NoError(t, err)
		id, _ := types.AsInt64(v)
		hits = append(hits, hit{ID: id, Tag: tag})
	}

	// done is sticky
	_, _, err := r.Next()
	require.ErrorIs(t, err, engine.ErrEndOfData)
	return hits
}

func TestDriver(t *testing.T) {
	tests := []struct {
		name   string
		index  int
		ranges []mrr.Descriptor
		want   []hit
	}{
		{
			name:  "disjoint",
			index: testutil.AgeIndex,
			ranges: []mrr.Descriptor{
				{Start: ageKey(20, key.Exact), End: ageKey(20, key.AfterKey), Flags: mrr.Flags{Eq: true}, Tag: "twenty"},
				{Start: ageKey(35, key.KeyOrNext), End: nil, Tag: 35},
				{Start: nil, End: ageKey(20, key.BeforeKey), Tag: "low"},
			},
			want: []hit{{2, "twenty"}, {3, "twenty"}, {5, 35}, {1, "low"}},
		},
		{
			name:  "empty ranges",
			index: testutil.AgeIndex,
			ranges: []mrr.Descriptor{
				{Start: ageKey(11, key.KeyOrNext), End: ageKey(19, key.KeyOrNext), Tag: 1},
				{Start: ageKey(25, key.Exact), End: ageKey(25, key.AfterKey), Flags: mrr.Flags{Eq: true}, Tag: 2},
				{Start: ageKey(30, key.KeyOrNext), End: ageKey(30, key.KeyOrNext), Tag: 3},
				{Start: ageKey(50, key.KeyOrNext), Tag: 4},
			},
			want: []hit{{4, 3}},
		},
		{
			name:  "unique",
			index: testutil.PrimaryIndex,
			ranges: []mrr.Descriptor{
				idRange(4, uniqueEq, 4),
				idRange(9, uniqueEq, 9),
				idRange(1, uniqueEq, 1),
			},
			want: []hit{{4, 4}, {1, 1}},
		},
		{
			name:  "no ranges",
			index: testutil.AgeIndex,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := newCursor(t, nil)

			d, err := mrr.NewDriver(c, test.index, mrr.NewSliceSequence(test.ranges...), mrr.Mode{Sorted: true})
			require.NoError(t, err)
			require.Equal(t, cursor.IndexScan, c.State())

			got := readAll(t, d)
			require.NoError(t, d.Close())
			require.Equal(t, cursor.Idle, c.State())

			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDriverUniqueShortcut(t *testing.T) {
	var h *countingHandler
	c := newCursor(t, func(eh engine.Handler) engine.Handler {
		h = &countingHandler{Handler: eh}
		return h
	})

	seq := mrr.NewSliceSequence(
		idRange(2, uniqueEq, 2),
		idRange(3, uniqueEq, 3),
	)
	d, err := mrr.NewDriver(c, testutil.PrimaryIndex, seq, mrr.Mode{})
	require.NoError(t, err)
	require.Equal(t, []hit{{2, 2}, {3, 3}}, readAll(t, d))
	require.NoError(t, d.Close())
	require.Zero(t, h.next)

	// NULL ranges may match many rows
	h.next = 0
	seq = mrr.NewSliceSequence(
		idRange(2, mrr.Flags{Unique: true, Eq: true, NullRange: true}, 2),
	)
	d, err = mrr.NewDriver(c, testutil.PrimaryIndex, seq, mrr.Mode{})
	require.NoError(t, err)
	require.Equal(t, []hit{{2, 2}}, readAll(t, d))
	require.NoError(t, d.Close())
	require.Equal(t, 1, h.next)
}

func TestDriverSemiConsistentRead(t *testing.T) {
	c := newCursor(t, func(eh engine.Handler) engine.Handler {
		return &semiConsistentHandler{Handler: eh}
	})

	seq := mrr.NewSliceSequence(
		idRange(2, uniqueEq, "a"),
		idRange(5, uniqueEq, "b"),
	)
	d, err := mrr.NewDriver(c, testutil.PrimaryIndex, seq, mrr.Mode{})
	require.NoError(t, err)
	defer d.Close()

	// the first row is read again
	require.Equal(t, []hit{{2, "a"}, {2, "a"}, {5, "b"}}, readAll(t, d))
}

// rereadFailingHandler fails every IndexRead after the first one.
type rereadFailingHandler struct {
	semiConsistentHandler
	reads int
}

func (h *rereadFailingHandler) IndexRead(k []byte, flag key.Flag) (*row.Row, error) {
	h.reads++
	if h.reads > 1 {
		return nil, errors.New("read failed")
	}
	return h.Handler.IndexRead(k, flag)
}

func TestDriverSemiConsistentReadError(t *testing.T) {
	c := newCursor(t, func(eh engine.Handler) engine.Handler {
		return &rereadFailingHandler{semiConsistentHandler: semiConsistentHandler{Handler: eh}}
	})

	seq := mrr.NewSliceSequence(
		idRange(2, uniqueEq, "a"),
		idRange(5, uniqueEq, "b"),
	)
	d, err := mrr.NewDriver(c, testutil.PrimaryIndex, seq, mrr.Mode{})
	require.NoError(t, err)
	defer d.Close()

	r, tag, err := d.Next()
	require.NoError(t, err)
	require.NotNil(t, r)
	require.Equal(t, "a", tag)

	r, tag, err = d.Next()
	require.EqualError(t, err, "read failed")
	require.Nil(t, r)
	require.Nil(t, tag)
}

type fakeNative struct {
	engine.Handler
	seq mrr.Sequence
}

func (f *fakeNative) MultiRangeRead(seq mrr.Sequence, mode mrr.Mode) (mrr.Reader, error) {
	f.seq = seq
	return &fakeReader{}, nil
}

type fakeReader struct {
	closed bool
}

func (r *fakeReader) Next() (*row.Row, any, error) {
	return nil, nil, errors.WithStack(engine.ErrEndOfData)
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func TestOpen(t *testing.T) {
	seq := mrr.NewSliceSequence(mrr.Descriptor{Tag: 1})

	t.Run("default", func(t *testing.T) {
		c := newCursor(t, nil)
		r, err := mrr.Open(c, testutil.AgeIndex, seq, mrr.Mode{})
		require.NoError(t, err)
		require.IsType(t, &mrr.Driver{}, r)
		require.Len(t, readAll(t, r), 5)
		require.NoError(t, r.Close())
		require.Equal(t, cursor.Idle, c.State())
	})

	t.Run("native", func(t *testing.T) {
		var n *fakeNative
		c := newCursor(t, func(eh engine.Handler) engine.Handler {
			n = &fakeNative{Handler: eh}
			return n
		})

		seq.Reset()
		r, err := mrr.Open(c, testutil.AgeIndex, seq, mrr.Mode{})
		require.NoError(t, err)
		require.Equal(t, cursor.IndexScan, c.State())
		require.Same(t, seq, n.seq)
		require.Empty(t, readAll(t, r))
		require.NoError(t, r.Close())
		require.Equal(t, cursor.Idle, c.State())
	})
}

func TestEstimateCost(t *testing.T) {
	c := newCursor(t, nil)

	seq := mrr.NewSliceSequence(
		mrr.Descriptor{Start: ageKey(20, key.KeyOrNext), End: ageKey(30, key.KeyOrNext)},
		idRange(1, uniqueEq, nil),
		mrr.Descriptor{Start: ageKey(40, key.KeyOrNext)},
	)

	rows, cost, err := mrr.EstimateCost(context.Background(), c, testutil.AgeIndex, seq, mrr.Mode{})
	require.NoError(t, err)
	require.Equal(t, uint64(5), rows)
	require.Equal(t, float64(8), cost.IOCount)
	require.Equal(t, float64(1), cost.AvgIOCost)
	require.InDelta(t, 1.01, cost.CPUCost, 1e-9)
	require.InDelta(t, 9.01, cost.Total(), 1e-9)

	seq.Reset()
	rows, cost, err = mrr.EstimateCost(context.Background(), c, testutil.AgeIndex, seq, mrr.Mode{IndexOnly: true})
	require.NoError(t, err)
	require.Equal(t, uint64(5), rows)
	require.Equal(t, c.IndexOnlyReadTime(testutil.AgeIndex, 5), cost.IOCount)
}

func TestEstimateCostNullRange(t *testing.T) {
	c := newCursor(t, nil)

	// a unique NULL range is counted by the engine
	seq := mrr.NewSliceSequence(
		mrr.Descriptor{Start: ageKey(20, key.KeyOrNext), End: ageKey(20, key.KeyOrNext), Flags: mrr.Flags{Unique: true, Eq: true, NullRange: true}},
	)
	rows, _, err := mrr.EstimateCost(context.Background(), c, testutil.AgeIndex, seq, mrr.Mode{})
	require.NoError(t, err)
	require.Equal(t, uint64(2), rows)
}

// cancelSequence cancels its context after yielding n ranges.
type cancelSequence struct {
	mrr.Sequence
	n      int
	cancel context.CancelFunc
}

func (s *cancelSequence) Next() (mrr.Descriptor, bool) {
	if s.n == 0 {
		s.cancel()
	}
	s.n--
	return s.Sequence.Next()
}

func TestEstimateCostInterrupted(t *testing.T) {
	c := newCursor(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ranges []mrr.Descriptor
	for i := 0; i < 10; i++ {
		ranges = append(ranges, mrr.Descriptor{Start: ageKey(10, key.KeyOrNext)})
	}
	seq := &cancelSequence{Sequence: mrr.NewSliceSequence(ranges...), n: 3, cancel: cancel}

	_, _, err := mrr.EstimateCost(ctx, c, testutil.AgeIndex, seq, mrr.Mode{})
	require.ErrorIs(t, err, mrr.ErrInterrupted)
	require.ErrorIs(t, err, context.Canceled)
	// cancellation is noticed before the next range
	require.Equal(t, -1, seq.n)
}

func TestEstimateCostForCounts(t *testing.T) {
	c := newCursor(t, nil)

	require.Equal(t, mrr.Cost{IOCount: 12, AvgIOCost: 1}, mrr.EstimateCostForCounts(c, testutil.AgeIndex, 2, 10, mrr.Mode{}))

	cost := mrr.EstimateCostForCounts(c, testutil.AgeIndex, 2, 10, mrr.Mode{IndexOnly: true})
	require.Equal(t, c.IndexOnlyReadTime(testutil.AgeIndex, 10), cost.IOCount)
}
