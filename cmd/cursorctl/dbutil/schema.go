package dbutil

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/catalog"
	"github.com/maniacs-db/drizzle-sub000/internal/types"
)

// ParseSchema parses a comma separated list of column definitions
// of the form name:type[:autoinc].
func ParseSchema(s string) ([]catalog.ColumnInfo, error) {
	var cols []catalog.ColumnInfo

	for _, def := range strings.Split(s, ",") {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}

		parts := strings.Split(def, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, errors.Errorf("invalid column definition %q, expected name:type[:autoinc]", def)
		}

		typ, ok := types.ParseType(strings.ToLower(parts[1]))
		if !ok || typ == types.TypeNull {
			return nil, errors.Errorf("unknown type %q for column %q", parts[1], parts[0])
		}

		col := catalog.ColumnInfo{Name: parts[0], Type: typ}
		if len(parts) == 3 {
			if parts[2] != "autoinc" {
				return nil, errors.Errorf("unknown column option %q", parts[2])
			}
			col.AutoIncrement = true
			col.NotNull = true
		}
		cols = append(cols, col)
	}

	if len(cols) == 0 {
		return nil, errors.New("schema has no columns")
	}

	return cols, nil
}

// ParseIndex parses an index definition of the form name=col[+col][:unique].
func ParseIndex(s string, cols []catalog.ColumnInfo) (catalog.IndexInfo, error) {
	var idx catalog.IndexInfo

	name, def, ok := strings.Cut(s, "=")
	if !ok || name == "" || def == "" {
		return idx, errors.Errorf("invalid index definition %q, expected name=col[+col][:unique]", s)
	}
	idx.Name = name

	if d, opt, ok := strings.Cut(def, ":"); ok {
		if opt != "unique" {
			return idx, errors.Errorf("unknown index option %q", opt)
		}
		idx.Unique = true
		def = d
	}

	for _, c := range strings.Split(def, "+") {
		pos := -1
		for i := range cols {
			if cols[i].Name == c {
				pos = i
				break
			}
		}
		if pos == -1 {
			return idx, errors.Errorf("index %q references unknown column %q", name, c)
		}
		idx.Columns = append(idx.Columns, pos)
	}

	return idx, nil
}
