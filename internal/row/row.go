package row

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/encoding"
	"github.com/maniacs-db/drizzle-sub000/internal/types"
)

// ErrColumnNotFound is returned when accessing a column
// that is outside of the row.
var ErrColumnNotFound = errors.New("column not found")

// A Row is an ordered list of column values.
// Ref is the engine reference of the stored row: it is set by the engine
// when the row is read or written and is used to locate the row
// on update or delete.
type Row struct {
	Values []types.Value
	Ref    []byte
}

// New creates a row with the given values.
func New(values ...types.Value) *Row {
	return &Row{Values: values}
}

// Len returns the number of columns of the row.
func (r *Row) Len() int {
	return len(r.Values)
}

// Get returns the value of the i-th column.
func (r *Row) Get(i int) (types.Value, error) {
	if i < 0 || i >= len(r.Values) {
		return nil, errors.Wrapf(ErrColumnNotFound, "column %d", i)
	}

	return r.Values[i], nil
}

// Set replaces the value of the i-th column.
func (r *Row) Set(i int, v types.Value) error {
	if i < 0 || i >= len(r.Values) {
		return errors.Wrapf(ErrColumnNotFound, "column %d", i)
	}

	r.Values[i] = v
	return nil
}

// Clone returns a deep copy of the row. The copy doesn't share
// memory with r and can be kept after r is reused.
func (r *Row) Clone() *Row {
	if r == nil {
		return nil
	}

	cp := Row{
		Values: make([]types.Value, len(r.Values)),
	}
	copy(cp.Values, r.Values)
	if r.Ref != nil {
		cp.Ref = append([]byte(nil), r.Ref...)
	}

	return &cp
}

// Equal compares the values of both rows. Refs are ignored.
func (r *Row) Equal(other *Row) bool {
	if r == nil || other == nil {
		return r == other
	}

	if len(r.Values) != len(other.Values) {
		return false
	}

	for i := range r.Values {
		if !types.Equal(r.Values[i], other.Values[i]) {
			return false
		}
	}

	return true
}

func (r *Row) String() string {
	var sb strings.Builder

	sb.WriteByte('(')
	for i, v := range r.Values {
		if i > 0 {
			sb.WriteString(", ")
		}
		if v == nil {
			v = types.NewNullValue()
		}
		sb.WriteString(v.String())
	}
	sb.WriteByte(')')

	return sb.String()
}

// Encode appends the binary representation of the row values to dst.
func Encode(dst []byte, r *Row) []byte {
	for _, v := range r.Values {
		dst = encoding.EncodeValue(dst, v)
	}

	return dst
}

// Decode the values encoded by Encode.
func Decode(b []byte) (*Row, error) {
	var r Row

	for len(b) > 0 {
		v, n, err := encoding.DecodeValue(b)
		if err != nil {
			return nil, err
		}
		r.Values = append(r.Values, v)
		b = b[n:]
	}

	return &r, nil
}
