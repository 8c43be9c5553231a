package testutil

import (
	"testing"

	"github.com/maniacs-db/drizzle-sub000/internal/catalog"
	"github.com/maniacs-db/drizzle-sub000/internal/types"
	"github.com/stretchr/testify/require"
)

// Indexes of the table returned by NewTable.
const (
	PrimaryIndex = 0
	AgeIndex     = 1
	NameIndex    = 2
)

// NewTable creates the table
//
//	test(id BIGINT AUTO_INCREMENT, name TEXT, age INTEGER)
//
// with a unique index on id, an index on age and a unique index on name.
func NewTable(t testing.TB, cat *catalog.Catalog, name string) *catalog.TableInfo {
	t.Helper()

	ti, err := cat.CreateTable(&catalog.TableInfo{
		Name: name,
		Columns: []catalog.ColumnInfo{
			{Name: "id", Type: types.TypeBigint, NotNull: true, AutoIncrement: true},
			{Name: "name", Type: types.TypeText, Size: 32},
			{Name: "age", Type: types.TypeInteger},
		},
		Indexes: []catalog.IndexInfo{
			{Name: "pk", Columns: []int{0}, Unique: true},
			{Name: "age_idx", Columns: []int{2}},
			{Name: "name_idx", Columns: []int{1}, Unique: true},
		},
	})
	require.NoError(t, err)

	return ti
}
