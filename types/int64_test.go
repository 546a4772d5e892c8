package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewInt64_SharesZero(t *testing.T) {
	a := NewInt64(0, 0)
	b := NewInt64(0, 0)
	assert.Same(t, Int64Zero, a)
	assert.Same(t, a, b)

	c := NewInt64(1, 0)
	assert.NotSame(t, Int64Zero, c)
}

func TestInt64_Equals(t *testing.T) {
	assert.True(t, NewInt64(5, -1).Equals(&Int64{Low: 5, High: -1}))
	assert.False(t, NewInt64(5, -1).Equals(NewInt64(5, 0)))
	assert.False(t, NewInt64(5, 0).Equals(NewInt64(4, 0)))
}

func TestInt64_ToFloat64(t *testing.T) {
	cases := []struct {
		low, high int32
		want      float64
	}{
		{0, 0, 0},
		{1, 0, 1},
		{-1, 0, 4294967295},
		{0, 1, 4294967296},
		{0, -1, -4294967296},
		{-1, -1, -1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NewInt64(tc.low, tc.high).ToFloat64(), "(%d,%d)", tc.low, tc.high)
	}
}

func TestInt64FromNumber(t *testing.T) {
	v := Int64FromNumber(4294967296 + 7)
	assert.Equal(t, int32(7), v.Low)
	assert.Equal(t, int32(1), v.High)

	neg := Int64FromNumber(-1)
	assert.Equal(t, int32(-1), neg.Low)
	assert.Equal(t, int32(-1), neg.High)
	assert.Equal(t, float64(-1), neg.ToFloat64())

	assert.Same(t, Int64Zero, Int64FromNumber(0))
}

func TestInt64_ExactConversions(t *testing.T) {
	for _, v := range []int64{0, 1, -1, math.MaxInt64, math.MinInt64, 1 << 53, 1<<53 + 1} {
		assert.Equal(t, v, Int64FromInt64(v).Int64(), "round trip %d", v)
	}
	assert.Equal(t, uint64(math.MaxUint64), NewInt64(-1, -1).Uint64())
	assert.Equal(t, "-2", Int64FromInt64(-2).String())
}
