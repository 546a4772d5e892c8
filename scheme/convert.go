package scheme

import (
	"errors"
	"math"

	"github.com/quickwritereader/PackGraph/access"
	"github.com/quickwritereader/PackGraph/schema"
	"github.com/quickwritereader/PackGraph/types"
)

var errNotScalar = errors.New("value does not fit the element type")

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), n <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float32:
		return int64(n), float64(n) == math.Trunc(float64(n))
	case float64:
		return int64(n), n == math.Trunc(n)
	case *types.Int64:
		if n == nil {
			return 0, true
		}
		return n.Int64(), true
	}
	return 0, false
}

func toUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint:
		return uint64(n), true
	case uint64:
		return n, true
	case *types.Int64:
		if n == nil {
			return 0, true
		}
		return n.Uint64(), true
	}
	i, ok := toInt64(v)
	return uint64(i), ok && i >= 0
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case *types.Int64:
		if n == nil {
			return 0, true
		}
		return n.ToFloat64(), true
	}
	i, ok := toInt64(v)
	return float64(i), ok
}

func toPair(v any) (*types.Int64, bool) {
	if p, ok := v.(*types.Int64); ok {
		if p == nil {
			return types.Int64Zero, true
		}
		return p, true
	}
	i, ok := toInt64(v)
	if !ok {
		return nil, false
	}
	return types.Int64FromInt64(i), true
}

// fits reports whether i is representable in the integer type base.
func fits(base types.BaseType, i int64) bool {
	switch base {
	case types.BaseInt8:
		return i >= math.MinInt8 && i <= math.MaxInt8
	case types.BaseUint8, types.BaseUType:
		return i >= 0 && i <= math.MaxUint8
	case types.BaseInt16:
		return i >= math.MinInt16 && i <= math.MaxInt16
	case types.BaseUint16:
		return i >= 0 && i <= math.MaxUint16
	case types.BaseInt32:
		return i >= math.MinInt32 && i <= math.MaxInt32
	case types.BaseUint32:
		return i >= 0 && i <= math.MaxUint32
	}
	return true
}

// sliceOf flattens the vector representations a record may hold.
func sliceOf(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case *types.LazyVector[any]:
		if s == nil {
			return nil, true
		}
		return s.Values(), true
	case []*types.Record:
		return convertSlice(s), true
	case []string:
		return convertSlice(s), true
	case []bool:
		return convertSlice(s), true
	case []int8:
		return convertSlice(s), true
	case []int16:
		return convertSlice(s), true
	case []int32:
		return convertSlice(s), true
	case []int64:
		return convertSlice(s), true
	case []int:
		return convertSlice(s), true
	case []uint16:
		return convertSlice(s), true
	case []uint32:
		return convertSlice(s), true
	case []uint64:
		return convertSlice(s), true
	case []float32:
		return convertSlice(s), true
	case []float64:
		return convertSlice(s), true
	case []byte:
		return convertSlice(s), true
	}
	return nil, false
}

func convertSlice[T any](s []T) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func mismatch(f *schema.Field, v any) error {
	return access.MissingArgument(access.PhaseEncode, "Encode",
		"field %s: cannot store %T as %s", f.Name, v, f.Type)
}
