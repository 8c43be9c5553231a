package testutil

import (
	"testing"

	"github.com/maniacs-db/drizzle-sub000/internal/catalog"
	"github.com/maniacs-db/drizzle-sub000/internal/row"
	"github.com/stretchr/testify/require"
)

// MakeRow parses a JSON object into a row of the table.
func MakeRow(t testing.TB, ti *catalog.TableInfo, s string) *row.Row {
	t.Helper()

	r, err := row.ParseJSON([]byte(s), ti.ColumnNames())
	require.NoError(t, err)
	require.NoError(t, ti.Conform(r))
	return r
}

func MakeRows(t testing.TB, ti *catalog.TableInfo, s ...string) []*row.Row {
	var rows []*row.Row
	for _, v := range s {
		rows = append(rows, MakeRow(t, ti, v))
	}
	return rows
}
