package encoding

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/types"
)

// ErrInvalidEncoding is returned when decoding malformed data.
var ErrInvalidEncoding = errors.New("invalid encoding")

// EncodeValue appends the encoded form of v to dst.
// The encoding is self-delimiting and preserves the order of values:
// concatenating encoded values produces keys where a prefix of leading
// values is a byte prefix of the key.
func EncodeValue(dst []byte, v types.Value) []byte {
	if types.IsNull(v) {
		return append(dst, NullValue)
	}

	switch x := v.(type) {
	case types.IntegerValue:
		return write8(dst, IntegerValue, uint64(int64(x))^(1<<63))
	case types.BigintValue:
		return write8(dst, BigintValue, uint64(int64(x))^(1<<63))
	case types.DoubleValue:
		return write8(dst, DoubleValue, encodeFloat(float64(x)))
	case types.TextValue:
		return EncodeText(dst, string(x))
	}

	panic(errors.AssertionFailedf("cannot encode value of type %s", v.Type()))
}

// EncodeText appends an escaped, terminated text to dst.
func EncodeText(dst []byte, s string) []byte {
	dst = append(dst, TextValue)
	for i := 0; i < len(s); i++ {
		if s[i] == escape {
			dst = append(dst, escape, escapedZero)
			continue
		}
		dst = append(dst, s[i])
	}

	return append(dst, escape, escapedTerm)
}

// DecodeValue decodes the first value of b and returns it
// alongside the number of bytes read.
func DecodeValue(b []byte) (types.Value, int, error) {
	if len(b) == 0 {
		return nil, 0, errors.WithStack(ErrInvalidEncoding)
	}

	switch b[0] {
	case NullValue:
		return types.NewNullValue(), 1, nil
	case IntegerValue, BigintValue, DoubleValue:
		if len(b) < 9 {
			return nil, 0, errors.Wrapf(ErrInvalidEncoding, "truncated number %v", b)
		}
		n := binary.BigEndian.Uint64(b[1:9])
		switch b[0] {
		case IntegerValue:
			return types.NewIntegerValue(int32(int64(n ^ (1 << 63)))), 9, nil
		case BigintValue:
			return types.NewBigintValue(int64(n ^ (1 << 63))), 9, nil
		}
		return types.NewDoubleValue(decodeFloat(n)), 9, nil
	case TextValue:
		s, n, err := decodeText(b)
		if err != nil {
			return nil, 0, err
		}
		return types.NewTextValue(s), n, nil
	}

	return nil, 0, errors.Wrapf(ErrInvalidEncoding, "unknown type %d", b[0])
}

func decodeText(b []byte) (string, int, error) {
	var buf bytes.Buffer

	for i := 1; i < len(b); i++ {
		if b[i] != escape {
			buf.WriteByte(b[i])
			continue
		}

		if i+1 >= len(b) {
			break
		}
		i++
		switch b[i] {
		case escapedZero:
			buf.WriteByte(0)
		case escapedTerm:
			return buf.String(), i + 1, nil
		default:
			return "", 0, errors.Wrapf(ErrInvalidEncoding, "invalid escape sequence %x", b[i])
		}
	}

	return "", 0, errors.Wrap(ErrInvalidEncoding, "unterminated text")
}

// EncodeUint64 appends n as 8 big endian bytes.
func EncodeUint64(dst []byte, n uint64) []byte {
	return binary.BigEndian.AppendUint64(dst, n)
}

// DecodeUint64 decodes 8 big endian bytes.
func DecodeUint64(b []byte) (uint64, error) {
	if len(b) < 8 {
		return 0, errors.Wrapf(ErrInvalidEncoding, "expected 8 bytes, got %d", len(b))
	}

	return binary.BigEndian.Uint64(b), nil
}

// PrefixEnd returns the smallest key that is greater than
// every key starting with prefix.
// It returns nil if no such key exists (prefix is only made of 0xFF).
func PrefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}

	return nil
}

// MaxValueLength returns the maximum number of bytes an encoded value
// of type t takes. Text values of size n take at most 2n+3 bytes.
func MaxValueLength(t types.Type, size int) int {
	switch t {
	case types.TypeNull:
		return 1
	case types.TypeInteger, types.TypeBigint, types.TypeDouble:
		return 9
	case types.TypeText:
		return 1 + 2*size + textTermination
	}

	return 0
}

func write8(dst []byte, code byte, n uint64) []byte {
	dst = append(dst, code)
	return binary.BigEndian.AppendUint64(dst, n)
}

func encodeFloat(x float64) uint64 {
	n := math.Float64bits(x)
	if x < 0 || (x == 0 && math.Signbit(x)) {
		return ^n
	}

	return n | (1 << 63)
}

func decodeFloat(n uint64) float64 {
	if n&(1<<63) != 0 {
		return math.Float64frombits(n &^ (1 << 63))
	}

	return math.Float64frombits(^n)
}
