package types

import (
	"fmt"
	"math"
)

// Int64 is a 64-bit integer carried as two 32-bit halves, the form in which
// it sits on the wire (low word first). It exists for callers that exchange
// values with runtimes whose only number type is float64; Go callers that
// want exact arithmetic should use Int64FromInt64 and (*Int64).Int64.
type Int64 struct {
	Low  int32
	High int32
}

// Int64Zero is the canonical zero returned by NewInt64(0, 0).
var Int64Zero = &Int64{}

// NewInt64 returns the pair (low, high), sharing Int64Zero for zero.
func NewInt64(low, high int32) *Int64 {
	if low == 0 && high == 0 {
		return Int64Zero
	}
	return &Int64{Low: low, High: high}
}

// Int64FromNumber splits n into (n mod 2^32, floor(n / 2^32)).
// Magnitudes beyond 2^53 are not exactly representable in n to begin with,
// so the result carries the same precision loss.
func Int64FromNumber(n float64) *Int64 {
	high := math.Floor(n / 4294967296)
	low := n - high*4294967296
	return NewInt64(int32(uint32(low)), int32(high))
}

// Int64FromInt64 splits v exactly.
func Int64FromInt64(v int64) *Int64 {
	return NewInt64(int32(uint32(v)), int32(v>>32))
}

// Equals compares both halves.
func (l *Int64) Equals(other *Int64) bool {
	if l == nil || other == nil {
		return l == other
	}
	return l.Low == other.Low && l.High == other.High
}

// IsZero reports whether both halves are zero.
func (l *Int64) IsZero() bool {
	return l == nil || (l.Low == 0 && l.High == 0)
}

// ToFloat64 returns uint32(low) + high*2^32. Precision is lost above 2^53.
func (l *Int64) ToFloat64() float64 {
	return float64(uint32(l.Low)) + float64(l.High)*4294967296
}

// Int64 reassembles the exact signed value.
func (l *Int64) Int64() int64 {
	return int64(l.High)<<32 | int64(uint32(l.Low))
}

// Uint64 reassembles the exact unsigned value.
func (l *Int64) Uint64() uint64 {
	return uint64(uint32(l.High))<<32 | uint64(uint32(l.Low))
}

func (l *Int64) String() string {
	return fmt.Sprintf("%d", l.Int64())
}
