package dbutil_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/maniacs-db/drizzle-sub000/cmd/cursorctl/dbutil"
	"github.com/maniacs-db/drizzle-sub000/internal/catalog"
	"github.com/maniacs-db/drizzle-sub000/internal/key"
	"github.com/maniacs-db/drizzle-sub000/internal/mrr"
	"github.com/maniacs-db/drizzle-sub000/internal/testutil"
	"github.com/maniacs-db/drizzle-sub000/internal/types"
	"github.com/stretchr/testify/require"
)

const (
	schema = "id:bigint:autoinc, name:text, age:int"
)

var indexes = []string{"pk=id:unique", "age_idx=age", "name_age=name+age"}

func TestParseSchema(t *testing.T) {
	cols, err := dbutil.ParseSchema(schema)
	require.NoError(t, err)
	require.Equal(t, []catalog.ColumnInfo{
		{Name: "id", Type: types.TypeBigint, NotNull: true, AutoIncrement: true},
		{Name: "name", Type: types.TypeText},
		{Name: "age", Type: types.TypeInteger},
	}, cols)

	for _, s := range []string{"", "a", "a:foo", "a:int:foo", "a:null", "a:int:autoinc:x"} {
		_, err := dbutil.ParseSchema(s)
		require.Error(t, err, s)
	}
}

func TestParseIndex(t *testing.T) {
	cols, err := dbutil.ParseSchema(schema)
	require.NoError(t, err)

	tests := []struct {
		in    string
		want  catalog.IndexInfo
		fails bool
	}{
		{"pk=id:unique", catalog.IndexInfo{Name: "pk", Columns: []int{0}, Unique: true}, false},
		{"idx=name+age", catalog.IndexInfo{Name: "idx", Columns: []int{1, 2}}, false},
		{"idx=foo", catalog.IndexInfo{}, true},
		{"idx=age:primary", catalog.IndexInfo{}, true},
		{"=age", catalog.IndexInfo{}, true},
		{"age", catalog.IndexInfo{}, true},
	}

	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			idx, err := dbutil.ParseIndex(test.in, cols)
			if test.fails {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.want, idx)
		})
	}
}

func openDB(t *testing.T, opts dbutil.Options) *dbutil.DB {
	t.Helper()

	opts.Schema = schema
	opts.Indexes = indexes
	db, err := dbutil.OpenDB(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestParseRange(t *testing.T) {
	db := openDB(t, dbutil.Options{})

	d, err := dbutil.ParseRange("10", db.Table, 0)
	require.NoError(t, err)
	require.Equal(t, mrr.Flags{Eq: true, Unique: true}, d.Flags)
	require.Equal(t, key.Exact, d.Start.Flag)
	require.Equal(t, key.AfterKey, d.End.Flag)

	d, err = dbutil.ParseRange("alice", db.Table, 2)
	require.NoError(t, err)
	require.Equal(t, mrr.Flags{Eq: true}, d.Flags)

	d, err = dbutil.ParseRange("10..", db.Table, 1)
	require.NoError(t, err)
	require.NotNil(t, d.Start)
	require.Nil(t, d.End)

	d, err = dbutil.ParseRange("..10", db.Table, 1)
	require.NoError(t, err)
	require.Nil(t, d.Start)
	require.NotNil(t, d.End)

	_, err = dbutil.ParseRange("abc", db.Table, 1)
	require.Error(t, err)
	_, err = dbutil.ParseRange("3000000000", db.Table, 1)
	require.Error(t, err)
}

const data = `{"name": "a", "age": 10}
{"name": "b", "age": 20}

{"name": "c", "age": 20}
{"id": 10, "name": "d", "age": 30}
{"name": "e", "age": 40}
`

func TestLoadAndScan(t *testing.T) {
	db := openDB(t, dbutil.Options{})

	res, err := dbutil.LoadJSON(context.Background(), db, strings.NewReader(data), dbutil.LoadOptions{Rows: 5})
	require.NoError(t, err)
	require.Equal(t, 5, res.Rows)
	require.Equal(t, uint64(1), res.FirstInsertID)

	var buf bytes.Buffer
	err = dbutil.Scan(context.Background(), db, dbutil.ScanOptions{
		Index:    "age_idx",
		Ranges:   []string{"20", "35.."},
		Sorted:   true,
		Estimate: true,
	}, &buf)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	require.True(t, strings.HasPrefix(lines[0], "estimate: 3 rows"))
	require.Equal(t, `20	(2, "b", 20)`, lines[1])
	require.Equal(t, `20	(3, "c", 20)`, lines[2])
	require.Equal(t, `35..	(11, "e", 40)`, lines[3])

	_, err = dbutil.LoadJSON(context.Background(), db, strings.NewReader(`{"foo": 1}`), dbutil.LoadOptions{})
	require.ErrorContains(t, err, "line 1")

	err = dbutil.Scan(context.Background(), db, dbutil.ScanOptions{Index: "foo"}, &buf)
	require.ErrorIs(t, err, catalog.ErrIndexNotFound)
}

func TestBench(t *testing.T) {
	db := openDB(t, dbutil.Options{Path: filepath.Join(testutil.TempDir(t), "db")})

	var buf bytes.Buffer
	res, err := dbutil.Bench(context.Background(), db, dbutil.BenchOptions{Sessions: 8, Rows: 50}, &buf)
	require.NoError(t, err)
	require.Equal(t, 400, res.TotalRows)
	require.Zero(t, res.DuplicateValues)
	require.Contains(t, buf.String(), `"totalRows": 400`)
}

func TestChangelog(t *testing.T) {
	dir := testutil.TempDir(t)
	db := openDB(t, dbutil.Options{Changelog: filepath.Join(dir, "log")})

	_, err := dbutil.LoadJSON(context.Background(), db, strings.NewReader(data), dbutil.LoadOptions{})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	var buf bytes.Buffer
	err = dbutil.DumpChangelog(context.Background(), filepath.Join(dir, "log"), 1, &buf)
	require.NoError(t, err)

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "#1 query=1 INSERT t (5 rows)\n"), out)
	require.Contains(t, out, `INSERT t (10, "d", 30)`)
}
