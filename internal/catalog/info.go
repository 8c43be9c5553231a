package catalog

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/encoding"
	"github.com/maniacs-db/drizzle-sub000/internal/row"
	"github.com/maniacs-db/drizzle-sub000/internal/types"
)

// DefaultTextKeySize is the number of characters of a TEXT column
// taken into account when bounding index keys, if the column has no size.
const DefaultTextKeySize = 255

// ColumnInfo describes a column of a table.
type ColumnInfo struct {
	Name string
	Type types.Type
	// Size of TEXT columns. Zero means DefaultTextKeySize.
	Size          int
	NotNull       bool
	AutoIncrement bool
}

// MaxValue returns the largest value an integer column can store.
// Values above it are truncated on store.
func (c *ColumnInfo) MaxValue() uint64 {
	return uint64(c.Type.MaxInt())
}

func (c *ColumnInfo) String() string {
	var sb strings.Builder

	sb.WriteString(c.Name)
	sb.WriteByte(' ')
	sb.WriteString(strings.ToUpper(c.Type.String()))
	if c.NotNull {
		sb.WriteString(" NOT NULL")
	}
	if c.AutoIncrement {
		sb.WriteString(" AUTO_INCREMENT")
	}

	return sb.String()
}

// IndexInfo holds the configuration of an index.
type IndexInfo struct {
	Name string
	// Positions of the indexed columns in the table, in key part order.
	Columns []int
	Unique  bool

	maxKeyLength int
}

// KeyParts returns the number of key parts of the index.
func (i *IndexInfo) KeyParts() int {
	return len(i.Columns)
}

// MaxKeyLength returns the maximum length of an encoded key of this index.
func (i *IndexInfo) MaxKeyLength() int {
	return i.maxKeyLength
}

// Key appends the encoded index key of r to dst.
func (i *IndexInfo) Key(dst []byte, r *row.Row) ([]byte, error) {
	for _, c := range i.Columns {
		v, err := r.Get(c)
		if err != nil {
			return nil, err
		}
		dst = encoding.EncodeValue(dst, v)
	}

	return dst, nil
}

// TableInfo contains information about a table.
type TableInfo struct {
	ID      uint32
	Name    string
	Columns []ColumnInfo
	Indexes []IndexInfo
	// Temporary tables are never replicated.
	Temporary bool
	ReadOnly  bool

	// Position of the auto increment column, -1 if none.
	AutoIncrementColumn int
	// Index whose first key part is the auto increment column, -1 if none.
	AutoIncrementIndex int
}

// ColumnNames returns the list of column names, in order.
func (ti *TableInfo) ColumnNames() []string {
	names := make([]string, len(ti.Columns))
	for i := range ti.Columns {
		names[i] = ti.Columns[i].Name
	}
	return names
}

// GetColumn returns the position of the column with the given name.
func (ti *TableInfo) GetColumn(name string) (int, error) {
	for i := range ti.Columns {
		if ti.Columns[i].Name == name {
			return i, nil
		}
	}

	return -1, errors.Wrapf(row.ErrColumnNotFound, "column %q of table %q", name, ti.Name)
}

// GetIndex returns the position of the index with the given name.
func (ti *TableInfo) GetIndex(name string) (int, error) {
	for i := range ti.Indexes {
		if ti.Indexes[i].Name == name {
			return i, nil
		}
	}

	return -1, errors.Wrapf(ErrIndexNotFound, "index %q of table %q", name, ti.Name)
}

// Conform converts the values of r to the types of the columns.
// Integers are converted between INTEGER and BIGINT.
func (ti *TableInfo) Conform(r *row.Row) error {
	if r.Len() != len(ti.Columns) {
		return errors.Errorf("table %q expects %d columns, got %d", ti.Name, len(ti.Columns), r.Len())
	}

	for i := range ti.Columns {
		v := r.Values[i]
		c := &ti.Columns[i]
		if types.IsNull(v) {
			if c.NotNull && !c.AutoIncrement {
				return errors.Errorf("column %q cannot be null", c.Name)
			}
			r.Values[i] = types.NewNullValue()
			continue
		}

		if x, ok := types.AsInt64(v); ok && c.Type.IsInteger() {
			if x > c.Type.MaxInt() || x < -c.Type.MaxInt()-1 {
				return errors.Errorf("value %d out of range for column %q", x, c.Name)
			}
			r.Values[i] = types.NewIntegralValue(c.Type, x)
			continue
		}

		if x, ok := types.AsInt64(v); ok && c.Type == types.TypeDouble {
			r.Values[i] = types.NewDoubleValue(float64(x))
			continue
		}

		if v.Type() != c.Type {
			return errors.Errorf("column %q expects %s, got %s", c.Name, c.Type, v.Type())
		}
	}

	return nil
}

func (ti *TableInfo) init() error {
	ti.AutoIncrementColumn = -1
	ti.AutoIncrementIndex = -1

	for i := range ti.Columns {
		c := &ti.Columns[i]
		if !c.AutoIncrement {
			continue
		}
		if ti.AutoIncrementColumn != -1 {
			return errors.Errorf("table %q: only one auto increment column is allowed", ti.Name)
		}
		if !c.Type.IsInteger() {
			return errors.Errorf("table %q: auto increment column %q must be an integer", ti.Name, c.Name)
		}
		ti.AutoIncrementColumn = i
	}

	for i := range ti.Indexes {
		idx := &ti.Indexes[i]
		if len(idx.Columns) == 0 {
			return errors.Errorf("index %q has no columns", idx.Name)
		}

		idx.maxKeyLength = 0
		for _, c := range idx.Columns {
			if c < 0 || c >= len(ti.Columns) {
				return errors.Errorf("index %q references unknown column %d", idx.Name, c)
			}
			col := &ti.Columns[c]
			size := col.Size
			if size == 0 {
				size = DefaultTextKeySize
			}
			idx.maxKeyLength += encoding.MaxValueLength(col.Type, size)
		}

		if ti.AutoIncrementIndex == -1 && ti.AutoIncrementColumn != -1 && idx.Columns[0] == ti.AutoIncrementColumn {
			ti.AutoIncrementIndex = i
		}
	}

	return nil
}
