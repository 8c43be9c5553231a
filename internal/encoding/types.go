package encoding

// Types used to encode values in keys and rows.
// They are sorted from the smallest to largest so that comparing
// two encoded keys with bytes.Compare follows the order of the values.
// Gaps are left between each type to allow adding new types in the future.
const (
	// Null
	NullValue byte = 2

	// Integers, stored on 8 bytes with the sign bit flipped.
	IntegerValue byte = 10
	BigintValue  byte = 11

	// Floating point numbers
	DoubleValue byte = 20

	// Text, terminated by TextTerminator.
	// Zero bytes inside the text are escaped.
	TextValue byte = 30
)

const (
	escape          byte = 0x00
	escapedZero     byte = 0xFF
	escapedTerm     byte = 0x01
	textTermination      = 2
)
