package crosscat

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"gendb/internal/model"
)

// errUnknownValue marks a categorical value outside the column's codemap.
// Value-probability evaluation maps it to probability 0; every other path
// treats it as an error.
var errUnknownValue = errors.New("value not in codemap")

// encodeValue converts a domain value to the engine's numeric code for one
// column. An absent value encodes to NaN; for numerical and cyclic columns
// so does non-numeric input. Data imported from CSV may carry numbers as
// strings, so numeric parsing accepts both.
func encodeValue(st model.StatType, meta *Metadata, idx int, value any) (float64, error) {
	switch st {
	case model.Categorical:
		if value == nil {
			return math.NaN(), nil
		}
		code, ok := meta.Code(idx, valueString(value))
		if !ok {
			return 0, fmt.Errorf("column %q value %v: %w", meta.Names[idx], value, errUnknownValue)
		}
		return float64(code), nil
	case model.Numerical, model.Cyclic:
		switch v := value.(type) {
		case nil:
			return math.NaN(), nil
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return math.NaN(), nil
			}
			return f, nil
		default:
			return math.NaN(), nil
		}
	default:
		return 0, fmt.Errorf("statistical type %q is not modeled", st)
	}
}

// decodeValue converts an engine code back to a domain value. NaN decodes
// to absent (nil) for every type.
func decodeValue(st model.StatType, meta *Metadata, idx int, code float64) (any, error) {
	if math.IsNaN(code) {
		return nil, nil
	}
	switch st {
	case model.Categorical:
		c := int(code)
		values := meta.Columns[idx].Values
		if c < 0 || c >= len(values) {
			return nil, fmt.Errorf("column %q has no code %d", meta.Names[idx], c)
		}
		return values[c], nil
	case model.Numerical, model.Cyclic:
		return code, nil
	default:
		return nil, fmt.Errorf("statistical type %q is not modeled", st)
	}
}

// valueString renders a domain value the way codemaps store it.
func valueString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
