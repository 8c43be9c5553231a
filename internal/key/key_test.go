package key_test

import (
	"testing"

	"github.com/maniacs-db/drizzle-sub000/internal/catalog"
	"github.com/maniacs-db/drizzle-sub000/internal/encoding"
	"github.com/maniacs-db/drizzle-sub000/internal/key"
	"github.com/maniacs-db/drizzle-sub000/internal/types"
	"github.com/stretchr/testify/require"
)

func TestKeypartMap(t *testing.T) {
	require.Equal(t, key.KeypartMap(0b111), key.AllKeyparts(3))
	require.Equal(t, ^key.KeypartMap(0), key.AllKeyparts(64))

	tests := []struct {
		m      key.KeypartMap
		prefix bool
		count  int
	}{
		{0, true, 0},
		{0b1, true, 1},
		{0b11, true, 2},
		{0b10, false, 1},
		{0b101, false, 2},
	}

	for _, test := range tests {
		require.Equal(t, test.prefix, test.m.IsPrefix(), "%b", test.m)
		require.Equal(t, test.count, test.m.Count(), "%b", test.m)
	}
}

func TestValidate(t *testing.T) {
	ti, err := catalog.New().CreateTable(&catalog.TableInfo{
		Name: "foo",
		Columns: []catalog.ColumnInfo{
			{Name: "a", Type: types.TypeInteger},
			{Name: "b", Type: types.TypeText, Size: 4},
		},
		Indexes: []catalog.IndexInfo{{Name: "idx", Columns: []int{0, 1}}},
	})
	require.NoError(t, err)
	idx := &ti.Indexes[0]

	a := encoding.EncodeValue(nil, types.NewIntegerValue(1))
	ab := encoding.EncodeValue(append([]byte(nil), a...), types.NewTextValue("abcd"))

	tests := []struct {
		name  string
		r     key.Range
		fails bool
	}{
		{"one part", key.Range{Key: a, KeypartMap: 1}, false},
		{"two parts", key.Range{Key: ab, KeypartMap: 3}, false},
		{"gap", key.Range{Key: a, KeypartMap: 2}, true},
		{"too many parts", key.Range{Key: ab, KeypartMap: 7}, true},
		{"too long", key.Range{Key: append(ab, 1, 2, 3, 4, 5, 6, 7, 8), KeypartMap: 3}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.r.Validate(idx)
			if test.fails {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		k, boundary string
		want        key.CompareResult
	}{
		{"abc", "abc", key.AtBoundary},
		{"abcd", "abc", key.AtBoundary},
		{"ab", "abc", key.Before},
		{"abb", "abc", key.Before},
		{"abd", "abc", key.After},
		{"b", "abc", key.After},
		{"abc", "", key.AtBoundary},
	}

	for _, test := range tests {
		require.Equal(t, test.want, key.Compare([]byte(test.k), []byte(test.boundary)), "%q %q", test.k, test.boundary)
	}
}

func TestCompareEnd(t *testing.T) {
	tests := []struct {
		k    string
		flag key.Flag
		want key.CompareResult
	}{
		{"abc", key.KeyOrNext, key.AtBoundary},
		{"abc", key.BeforeKey, key.After},
		{"abc", key.AfterKey, key.Before},
		{"abcd", key.BeforeKey, key.After},
		{"abb", key.BeforeKey, key.Before},
		{"abd", key.AfterKey, key.After},
	}

	for _, test := range tests {
		end := key.Range{Key: []byte("abc"), KeypartMap: 1, Flag: test.flag}
		got := end.CompareEnd([]byte(test.k))
		require.Equal(t, test.want, got, "%q %s", test.k, test.flag)
		require.Equal(t, test.want != key.After, got.InRange())
	}

	var end *key.Range
	require.Equal(t, key.Before, end.CompareEnd([]byte("anything")))
}
