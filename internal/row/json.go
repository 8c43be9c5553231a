package row

import (
	"math"

	"github.com/buger/jsonparser"
	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/types"
)

// ParseJSON creates a row from a JSON object.
// Values are ordered following columns. Missing fields are NULL,
// fields that are not listed in columns return an error.
func ParseJSON(data []byte, columns []string) (*Row, error) {
	r := Row{
		Values: make([]types.Value, len(columns)),
	}
	for i := range r.Values {
		r.Values[i] = types.NewNullValue()
	}

	err := jsonparser.ObjectEach(data, func(key []byte, value []byte, dataType jsonparser.ValueType, offset int) error {
		idx := -1
		for i, c := range columns {
			if c == string(key) {
				idx = i
				break
			}
		}
		if idx == -1 {
			return errors.Wrapf(ErrColumnNotFound, "unknown column %q", key)
		}

		v, err := parseJSONValue(dataType, value)
		if err != nil {
			return err
		}

		r.Values[idx] = v
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse JSON row")
	}

	return &r, nil
}

func parseJSONValue(dataType jsonparser.ValueType, data []byte) (v types.Value, err error) {
	switch dataType {
	case jsonparser.Null:
		return types.NewNullValue(), nil
	case jsonparser.Number:
		i, err := jsonparser.ParseInt(data)
		if err != nil {
			// if it's too big to fit in an int64, let's try parsing this as a floating point number
			f, err := jsonparser.ParseFloat(data)
			if err != nil {
				return nil, err
			}

			return types.NewDoubleValue(f), nil
		}

		if i < math.MinInt32 || i > math.MaxInt32 {
			return types.NewBigintValue(i), nil
		}

		return types.NewIntegerValue(int32(i)), nil
	case jsonparser.String:
		s, err := jsonparser.ParseString(data)
		if err != nil {
			return nil, err
		}
		return types.NewTextValue(s), nil
	default:
		return nil, errors.Errorf("unsupported JSON type: %v", dataType)
	}
}
