package leaderboard

import "math"

// encodeScore widens a declared-type score to the float64 the store's
// sorted set represents every member score as.
func encodeScore(typ NumericType, v any) (float64, error) {
	switch typ {
	case TypeInt32:
		i, ok := v.(int32)
		if !ok {
			return 0, wrapErr(CodeUnsupportedType, "leaderboard: value is not int32", ErrUnsupportedType)
		}
		return float64(i), nil
	case TypeInt64:
		i, ok := v.(int64)
		if !ok {
			return 0, wrapErr(CodeUnsupportedType, "leaderboard: value is not int64", ErrUnsupportedType)
		}
		return float64(i), nil
	case TypeFloat64:
		f, ok := v.(float64)
		if !ok {
			return 0, wrapErr(CodeUnsupportedType, "leaderboard: value is not float64", ErrUnsupportedType)
		}
		return f, nil
	default:
		return 0, ErrUnsupportedType
	}
}

// decodeScore narrows a raw double read back from the store to the
// leaderboard's declared NumericType, rounding half-to-even and checking
// int32 range per spec.md §4.3.
func decodeScore(typ NumericType, raw float64) (any, error) {
	switch typ {
	case TypeInt32:
		r := math.RoundToEven(raw)
		if r < math.MinInt32 || r > math.MaxInt32 {
			return nil, wrapErr(CodeOverflow, "leaderboard: decoded score out of int32 range", ErrOverflow)
		}
		return int32(r), nil
	case TypeInt64:
		return int64(math.RoundToEven(raw)), nil
	case TypeFloat64:
		return raw, nil
	default:
		return nil, ErrUnsupportedType
	}
}

