package replication_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/maniacs-db/drizzle-sub000/internal/catalog"
	"github.com/maniacs-db/drizzle-sub000/internal/replication"
	"github.com/maniacs-db/drizzle-sub000/internal/row"
	"github.com/maniacs-db/drizzle-sub000/internal/types"
	"github.com/stretchr/testify/require"
)

func newRow(id int64, name string) *row.Row {
	return row.New(types.NewBigintValue(id), types.NewTextValue(name))
}

var table = &catalog.TableInfo{ID: 1, Name: "t"}

func TestClassify(t *testing.T) {
	a, b := newRow(1, "a"), newRow(1, "b")

	tests := []struct {
		kind          replication.Kind
		style         replication.ReplaceStyle
		before, after *row.Row
		want          replication.EventType
		ok            bool
	}{
		{replication.KindInsert, replication.ReplaceInferred, nil, a, replication.EventInsert, true},
		{replication.KindInsertSelect, replication.ReplaceInferred, nil, a, replication.EventInsert, true},
		{replication.KindLoad, replication.ReplaceInferred, nil, a, replication.EventInsert, true},
		{replication.KindCreateTableSelect, replication.ReplaceInferred, nil, a, replication.EventInsert, true},
		{replication.KindInsert, replication.ReplaceInferred, a, b, replication.EventUpdate, true},
		{replication.KindInsert, replication.ReplaceInferred, a, nil, 0, false},
		{replication.KindReplace, replication.ReplaceInferred, nil, a, replication.EventInsert, true},
		{replication.KindReplace, replication.ReplaceInferred, a, b, replication.EventUpdate, true},
		{replication.KindReplaceSelect, replication.ReplaceInferred, a, nil, replication.EventDelete, true},
		{replication.KindReplace, replication.ReplaceCollapsed, a, b, replication.EventUpdate, true},
		{replication.KindReplace, replication.ReplaceCollapsed, nil, a, replication.EventInsert, true},
		{replication.KindReplace, replication.ReplaceDeleteThenInsert, a, nil, replication.EventDelete, true},
		{replication.KindReplace, replication.ReplaceDeleteThenInsert, nil, a, replication.EventInsert, true},
		{replication.KindUpdate, replication.ReplaceInferred, a, b, replication.EventUpdate, true},
		{replication.KindUpdate, replication.ReplaceInferred, nil, b, 0, false},
		{replication.KindDelete, replication.ReplaceInferred, a, nil, replication.EventDelete, true},
		{replication.KindDelete, replication.ReplaceInferred, a, b, 0, false},
		{replication.KindOther, replication.ReplaceInferred, nil, a, 0, false},
	}

	for _, test := range tests {
		t.Run(test.kind.String()+" "+test.style.String(), func(t *testing.T) {
			typ, ok := replication.Classify(test.kind, test.style, test.before, test.after)
			require.Equal(t, test.ok, ok)
			require.Equal(t, test.want, typ)
		})
	}
}

func TestClassifyImpossibleShapes(t *testing.T) {
	a, b := newRow(1, "a"), newRow(1, "b")

	require.Panics(t, func() {
		replication.Classify(replication.KindReplace, replication.ReplaceDeleteThenInsert, a, b)
	})
	require.Panics(t, func() {
		replication.Classify(replication.KindReplaceSelect, replication.ReplaceCollapsed, a, nil)
	})
}

func TestHook(t *testing.T) {
	a, b, c := newRow(1, "a"), newRow(2, "b"), newRow(2, "c")

	t.Run("insert", func(t *testing.T) {
		var buf replication.Buffer
		h := replication.NewHook(&buf)

		ev, err := h.OnWrite(replication.KindInsert, replication.ReplaceInferred, table, nil, a)
		require.NoError(t, err)
		want := replication.Event{Type: replication.EventInsert, TableID: 1, Table: "t", After: a}
		if diff := cmp.Diff(&want, ev); diff != "" {
			t.Fatalf("mismatch (-want +got):\n%s", diff)
		}

		_, err = h.OnWrite(replication.KindInsert, replication.ReplaceInferred, table, nil, b)
		require.NoError(t, err)

		// nothing is sent before the statement is finalized
		require.Empty(t, buf.Statements())
		require.NoError(t, h.Finalize())

		wantStmts := []*replication.Statement{{
			Seq:     1,
			Type:    replication.EventInsert,
			TableID: 1,
			Table:   "t",
			Events: []replication.Event{
				{Type: replication.EventInsert, TableID: 1, Table: "t", After: a},
				{Type: replication.EventInsert, TableID: 1, Table: "t", After: b},
			},
		}}
		if diff := cmp.Diff(wantStmts, buf.Statements()); diff != "" {
			t.Fatalf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("update", func(t *testing.T) {
		var buf replication.Buffer
		h := replication.NewHook(&buf)

		ev, err := h.OnWrite(replication.KindUpdate, replication.ReplaceInferred, table, b, c)
		require.NoError(t, err)
		want := replication.Event{Type: replication.EventUpdate, TableID: 1, Table: "t", Before: b, After: c}
		if diff := cmp.Diff(&want, ev); diff != "" {
			t.Fatalf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("replace collapsed", func(t *testing.T) {
		var buf replication.Buffer
		h := replication.NewHook(&buf)

		ev, err := h.OnWrite(replication.KindReplace, replication.ReplaceCollapsed, table, b, c)
		require.NoError(t, err)
		require.Equal(t, replication.EventUpdate, ev.Type)
		require.NoError(t, h.Finalize())

		require.Len(t, buf.Statements(), 1)
		require.Len(t, buf.Events(), 1)
	})

	t.Run("replace delete then insert", func(t *testing.T) {
		var buf replication.Buffer
		h := replication.NewHook(&buf)

		_, err := h.OnWrite(replication.KindReplace, replication.ReplaceDeleteThenInsert, table, nil, a)
		require.NoError(t, err)
		// the insert started a fresh statement
		require.Len(t, buf.Statements(), 1)

		_, err = h.OnWrite(replication.KindReplace, replication.ReplaceDeleteThenInsert, table, b, nil)
		require.NoError(t, err)
		_, err = h.OnWrite(replication.KindReplace, replication.ReplaceDeleteThenInsert, table, nil, c)
		require.NoError(t, err)
		require.NoError(t, h.Finalize())

		want := []replication.Event{
			{Type: replication.EventInsert, TableID: 1, Table: "t", After: a},
			{Type: replication.EventDelete, TableID: 1, Table: "t", Before: b},
			{Type: replication.EventInsert, TableID: 1, Table: "t", After: c},
		}
		if diff := cmp.Diff(want, buf.Events()); diff != "" {
			t.Fatalf("mismatch (-want +got):\n%s", diff)
		}

		// never merged into a single update
		stmts := buf.Statements()
		require.Len(t, stmts, 3)
		for _, s := range stmts {
			require.Len(t, s.Events, 1)
		}
	})

	t.Run("grouping", func(t *testing.T) {
		var buf replication.Buffer
		h := replication.NewHook(&buf)
		other := &catalog.TableInfo{ID: 2, Name: "u"}

		require.NoError(t, h.Begin(1))
		_, err := h.OnWrite(replication.KindInsert, replication.ReplaceInferred, table, nil, a)
		require.NoError(t, err)
		// on duplicate key update
		_, err = h.OnWrite(replication.KindInsert, replication.ReplaceInferred, table, b, c)
		require.NoError(t, err)
		_, err = h.OnWrite(replication.KindInsert, replication.ReplaceInferred, other, b, c)
		require.NoError(t, err)

		require.NoError(t, h.Begin(2))
		_, err = h.OnWrite(replication.KindUpdate, replication.ReplaceInferred, other, b, c)
		require.NoError(t, err)
		require.NoError(t, h.Finalize())

		stmts := buf.Statements()
		require.Len(t, stmts, 4)
		require.Equal(t, replication.EventInsert, stmts[0].Type)
		require.Equal(t, replication.EventUpdate, stmts[1].Type)
		require.Equal(t, "u", stmts[2].Table)
		require.Equal(t, uint64(1), stmts[2].QueryID)
		require.Equal(t, uint64(2), stmts[3].QueryID)
	})

	t.Run("images are snapshots", func(t *testing.T) {
		var buf replication.Buffer
		h := replication.NewHook(&buf)

		r := newRow(1, "a")
		ev, err := h.OnWrite(replication.KindInsert, replication.ReplaceInferred, table, nil, r)
		require.NoError(t, err)

		r.Values[1] = types.NewTextValue("changed")
		require.True(t, ev.After.Equal(newRow(1, "a")))
	})

	t.Run("skipped", func(t *testing.T) {
		var buf replication.Buffer
		h := replication.NewHook(&buf)

		ev, err := h.OnWrite(replication.KindInsert, replication.ReplaceInferred, &catalog.TableInfo{ID: 3, Name: "tmp", Temporary: true}, nil, a)
		require.NoError(t, err)
		require.Nil(t, ev)

		ev, err = h.OnWrite(replication.KindOther, replication.ReplaceInferred, table, nil, a)
		require.NoError(t, err)
		require.Nil(t, ev)

		inactive := replication.NewHook(nil)
		require.False(t, inactive.Active())
		ev, err = inactive.OnWrite(replication.KindInsert, replication.ReplaceInferred, table, nil, a)
		require.NoError(t, err)
		require.Nil(t, ev)

		require.NoError(t, h.Finalize())
		require.Empty(t, buf.Statements())
	})

	t.Run("discard", func(t *testing.T) {
		var buf replication.Buffer
		h := replication.NewHook(&buf)

		_, err := h.OnWrite(replication.KindInsert, replication.ReplaceInferred, table, nil, a)
		require.NoError(t, err)
		h.Discard()
		require.NoError(t, h.Finalize())
		require.Empty(t, buf.Statements())
	})
}

type failingReplicator struct{}

func (failingReplicator) Append(*replication.Statement) error {
	return errors.New("disk full")
}

func TestHookLoggingFailed(t *testing.T) {
	h := replication.NewHook(failingReplicator{})

	_, err := h.OnWrite(replication.KindInsert, replication.ReplaceInferred, table, nil, newRow(1, "a"))
	require.NoError(t, err)

	err = h.Finalize()
	require.ErrorIs(t, err, replication.ErrLoggingFailed)
	require.ErrorContains(t, err, "disk full")

	// REPLACE inserts are sent right away
	_, err = h.OnWrite(replication.KindReplace, replication.ReplaceInferred, table, nil, newRow(1, "a"))
	require.ErrorIs(t, err, replication.ErrLoggingFailed)
}
