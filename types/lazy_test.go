package types

import (
	"cmp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingDecoder decodes offset → offset/4 and records every call.
type countingDecoder struct {
	calls map[int]int
}

func newCountingDecoder() *countingDecoder {
	return &countingDecoder{calls: map[int]int{}}
}

func (c *countingDecoder) decode(off int) int {
	c.calls[off/4]++
	return off / 4
}

func TestLazyVector_PreDecodeAndOnDemand(t *testing.T) {
	dec := newCountingDecoder()
	v := NewLazyVector(100, 0, 4, 2, dec.decode, false)

	require.Equal(t, 100, v.Len())
	assert.Equal(t, map[int]int{0: 1, 1: 1}, dec.calls)
	assert.Equal(t, 2, v.ResolvedCount())

	assert.Equal(t, 50, v.At(50))
	assert.Equal(t, map[int]int{0: 1, 1: 1, 50: 1}, dec.calls, "only index 50 resolved")

	assert.Equal(t, 50, v.At(50))
	assert.Equal(t, 1, dec.calls[50], "second read must not decode again")
	assert.True(t, v.Resolved(50))
	assert.False(t, v.Resolved(51))
}

func TestLazyVector_Eager(t *testing.T) {
	dec := newCountingDecoder()
	v := NewLazyVector(10, 0, 4, 2, dec.decode, true)
	assert.Equal(t, 10, v.ResolvedCount())
	assert.Len(t, dec.calls, 10)
}

func TestLazyVector_InPlaceOpsStayLazy(t *testing.T) {
	dec := newCountingDecoder()
	v := NewLazyVector(10, 0, 4, 0, dec.decode, false)

	v.Push(100, 101)
	v.Unshift(-2, -1)
	v.Insert(5, 500)
	assert.Empty(t, dec.calls)
	require.Equal(t, 15, v.Len())

	last, ok := v.Pop()
	require.True(t, ok)
	assert.Equal(t, 101, last)

	first, ok := v.Shift()
	require.True(t, ok)
	assert.Equal(t, -2, first)
	assert.Empty(t, dec.calls)

	// [-1, 0, 1, 2, 500, 3, ...]
	removed := v.Splice(1, 3, 7, 8)
	assert.Empty(t, dec.calls, "splice must not decode removed elements")
	require.Equal(t, 3, removed.Len())
	assert.Equal(t, 0, removed.ResolvedCount())
	assert.Equal(t, 1, removed.At(1))
	assert.Equal(t, map[int]int{1: 1}, dec.calls)

	assert.Equal(t, []int{-1, 7, 8, 500, 3, 4, 5, 6, 7, 8, 9, 100}, v.Values())
}

func TestLazyVector_PopDecodesOnlyReturned(t *testing.T) {
	dec := newCountingDecoder()
	v := NewLazyVector(5, 0, 4, 0, dec.decode, false)

	val, ok := v.Pop()
	require.True(t, ok)
	assert.Equal(t, 4, val)
	assert.Equal(t, map[int]int{4: 1}, dec.calls)

	empty := LazyVectorOf[int]()
	_, ok = empty.Shift()
	assert.False(t, ok)
}

func TestLazyVector_DerivedViews(t *testing.T) {
	dec := newCountingDecoder()
	v := NewLazyVector(6, 0, 4, 1, dec.decode, false)

	s := v.Slice(2, 5)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, 0, s.ResolvedCount())

	c := v.Slice(0, 2).Concat(LazyVectorOf(42), s)
	require.Equal(t, 6, c.Len())
	assert.Equal(t, 2, c.ResolvedCount(), "index 0 pre-decoded plus literal 42")

	// c = [0, 1, 42, 2, 3, 4]
	assert.Equal(t, 2, c.At(3))
	assert.False(t, v.Resolved(2), "derived view has its own slots")
	assert.Equal(t, 1, dec.calls[2])

	assert.Panics(t, func() { v.Slice(4, 2) })
}

func TestLazyVector_OtherOpsMaterialize(t *testing.T) {
	dec := newCountingDecoder()
	v := NewLazyVector(4, 0, 4, 0, dec.decode, false)

	idx := v.IndexFunc(func(x int) bool { return x == 2 })
	assert.Equal(t, 2, idx)
	assert.Equal(t, 4, v.ResolvedCount())

	v.Reverse()
	assert.Equal(t, []int{3, 2, 1, 0}, v.Values())

	v.Sort(cmp.Compare[int])
	assert.Equal(t, []int{0, 1, 2, 3}, v.Values())

	sum := 0
	for _, x := range v.All() {
		sum += x
	}
	assert.Equal(t, 6, sum)
	for k, n := range dec.calls {
		assert.Equal(t, 1, n, "element %d decoded once", k)
	}
}

func TestLazyVector_Set(t *testing.T) {
	dec := newCountingDecoder()
	v := NewLazyVector(3, 0, 4, 0, dec.decode, false)
	v.Set(1, 99)
	assert.Empty(t, dec.calls)
	assert.Equal(t, 99, v.At(1))
	assert.Empty(t, dec.calls)
}

func TestLazyVector_MarshalJSON(t *testing.T) {
	c := newCountingDecoder()
	v := NewLazyVector(3, 0, 4, 1, c.decode, false)

	out, err := v.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[0,1,2]`, string(out))
	assert.Equal(t, 3, v.ResolvedCount())
}
