package idgen

import (
	"fmt"
	"math"
	"strconv"

	"golang.org/x/exp/constraints"
)

// KeyAs converts a generated key to an integer type. Keys arrive as int64
// from the engine, but drivers may hand back other integer widths, []byte or
// numeric strings.
func KeyAs[T constraints.Integer](key any) (T, error) {
	var zero T
	var n int64
	switch v := key.(type) {
	case nil:
		return zero, fmt.Errorf("key is nil")
	case int64:
		n = v
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return zero, fmt.Errorf("key %d overflows int64", v)
		}
		n = int64(v)
	case float64:
		if v != math.Trunc(v) {
			return zero, fmt.Errorf("key %v is not integral", v)
		}
		n = int64(v)
	case []byte:
		return KeyAs[T](string(v))
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return zero, fmt.Errorf("key %q: %w", v, err)
		}
		n = parsed
	default:
		return zero, fmt.Errorf("key of type %T is not an integer", key)
	}

	out := T(n)
	if int64(out) != n || (n < 0) != (out < 0) {
		return zero, fmt.Errorf("key %d overflows %T", n, zero)
	}
	return out, nil
}
