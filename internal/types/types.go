package types

import (
	"fmt"
	"math"
	"strconv"
)

// Type represents a column type supported by the storage layer.
type Type uint8

// List of supported types.
const (
	// TypeAny denotes the absence of type
	TypeAny Type = iota
	TypeNull
	TypeInteger
	TypeBigint
	TypeDouble
	TypeText
)

func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeInteger:
		return "integer"
	case TypeBigint:
		return "bigint"
	case TypeDouble:
		return "double"
	case TypeText:
		return "text"
	}

	panic(fmt.Sprintf("unsupported type %#v", t))
}

// ParseType returns the type matching the given name.
func ParseType(name string) (Type, bool) {
	switch name {
	case "null":
		return TypeNull, true
	case "int", "integer":
		return TypeInteger, true
	case "bigint":
		return TypeBigint, true
	case "double":
		return TypeDouble, true
	case "text":
		return TypeText, true
	}

	return TypeAny, false
}

// IsInteger returns true if t is INTEGER or BIGINT.
func (t Type) IsInteger() bool {
	return t == TypeInteger || t == TypeBigint
}

// MaxInt returns the largest value an integer type can hold.
// It returns 0 for non integer types.
func (t Type) MaxInt() int64 {
	switch t {
	case TypeInteger:
		return math.MaxInt32
	case TypeBigint:
		return math.MaxInt64
	}

	return 0
}

// A Value stored in a row.
type Value interface {
	Type() Type
	V() any
	String() string
}

type NullValue struct{}

// NewNullValue returns a SQL NULL value.
func NewNullValue() NullValue {
	return NullValue{}
}

func (NullValue) Type() Type     { return TypeNull }
func (NullValue) V() any         { return nil }
func (NullValue) String() string { return "NULL" }

type IntegerValue int32

// NewIntegerValue returns a SQL INTEGER value.
func NewIntegerValue(x int32) IntegerValue {
	return IntegerValue(x)
}

func (v IntegerValue) Type() Type     { return TypeInteger }
func (v IntegerValue) V() any         { return int32(v) }
func (v IntegerValue) String() string { return strconv.FormatInt(int64(v), 10) }

type BigintValue int64

// NewBigintValue returns a SQL BIGINT value.
func NewBigintValue(x int64) BigintValue {
	return BigintValue(x)
}

func (v BigintValue) Type() Type     { return TypeBigint }
func (v BigintValue) V() any         { return int64(v) }
func (v BigintValue) String() string { return strconv.FormatInt(int64(v), 10) }

type DoubleValue float64

// NewDoubleValue returns a SQL DOUBLE value.
func NewDoubleValue(x float64) DoubleValue {
	return DoubleValue(x)
}

func (v DoubleValue) Type() Type { return TypeDouble }
func (v DoubleValue) V() any     { return float64(v) }
func (v DoubleValue) String() string {
	return strconv.FormatFloat(float64(v), 'g', -1, 64)
}

type TextValue string

// NewTextValue returns a SQL TEXT value.
func NewTextValue(x string) TextValue {
	return TextValue(x)
}

func (v TextValue) Type() Type     { return TypeText }
func (v TextValue) V() any         { return string(v) }
func (v TextValue) String() string { return strconv.Quote(string(v)) }

// IsNull returns true if v is nil or NULL.
func IsNull(v Value) bool {
	return v == nil || v.Type() == TypeNull
}

// AsInt64 returns the integer held by v.
// The boolean is false if v is not an integer.
func AsInt64(v Value) (int64, bool) {
	switch x := v.(type) {
	case IntegerValue:
		return int64(x), true
	case BigintValue:
		return int64(x), true
	}

	return 0, false
}

// NewIntegralValue returns a value of type t holding x.
// It panics if t is not an integer type.
func NewIntegralValue(t Type, x int64) Value {
	switch t {
	case TypeInteger:
		return NewIntegerValue(int32(x))
	case TypeBigint:
		return NewBigintValue(x)
	}

	panic(fmt.Sprintf("type %s is not integral", t))
}

// Equal returns true if a and b have the same type and the same value.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}

	return a.Type() == b.Type() && a.V() == b.V()
}
