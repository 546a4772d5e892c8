package types

import (
	"iter"
	"slices"

	"github.com/gammazero/deque"
	json "github.com/goccy/go-json"
)

// ElementDecoder decodes one vector element located at an absolute buffer
// offset.
type ElementDecoder[T any] func(offset int) T

// lazySlot is either a materialized value (decode == nil) or a descriptor
// naming where the element lives and how to decode it.
type lazySlot[T any] struct {
	value  T
	offset int
	decode ElementDecoder[T]
}

func (s *lazySlot[T]) resolve() T {
	if s.decode != nil {
		s.value = s.decode(s.offset)
		s.decode = nil
	}
	return s.value
}

// LazyVector is a decoded vector whose elements past a pre-decoded prefix are
// decoded on first access.
//
// Push, Pop, Shift, Unshift, Insert, Splice and Set work on the raw slots
// and never decode elements they do not return. Slice and Concat return new
// views that keep unread elements lazy. Every other operation (Values, All,
// IndexFunc, Sort, Reverse) decodes all remaining elements first.
//
// A LazyVector is not safe for concurrent use: reading an element may write
// its slot.
type LazyVector[T any] struct {
	slots deque.Deque[lazySlot[T]]
}

// NewLazyVector describes count elements of the given stride starting at
// base. Elements [0, preDecode) are decoded immediately. eager forces a full
// decode at construction.
func NewLazyVector[T any](count, base, stride, preDecode int, decode ElementDecoder[T], eager bool) *LazyVector[T] {
	v := &LazyVector[T]{}
	if eager || preDecode > count {
		preDecode = count
	}
	for i := 0; i < count; i++ {
		off := base + i*stride
		if i < preDecode {
			v.slots.PushBack(lazySlot[T]{value: decode(off)})
			continue
		}
		v.slots.PushBack(lazySlot[T]{offset: off, decode: decode})
	}
	return v
}

// LazyVectorOf wraps already decoded values.
func LazyVectorOf[T any](values ...T) *LazyVector[T] {
	v := &LazyVector[T]{}
	v.Push(values...)
	return v
}

// Len returns the number of elements.
func (v *LazyVector[T]) Len() int {
	return v.slots.Len()
}

// At returns element i, decoding it on first access.
func (v *LazyVector[T]) At(i int) T {
	s := v.slots.At(i)
	if s.decode == nil {
		return s.value
	}
	val := s.resolve()
	v.slots.Set(i, s)
	return val
}

// Resolved reports whether element i has been decoded.
func (v *LazyVector[T]) Resolved(i int) bool {
	return v.slots.At(i).decode == nil
}

// ResolvedCount counts decoded elements.
func (v *LazyVector[T]) ResolvedCount() int {
	n := 0
	for i := 0; i < v.slots.Len(); i++ {
		if v.slots.At(i).decode == nil {
			n++
		}
	}
	return n
}

// Set replaces element i without decoding the old value.
func (v *LazyVector[T]) Set(i int, val T) {
	v.slots.Set(i, lazySlot[T]{value: val})
}

// Push appends values.
func (v *LazyVector[T]) Push(values ...T) {
	for _, val := range values {
		v.slots.PushBack(lazySlot[T]{value: val})
	}
}

// Unshift prepends values, keeping their order.
func (v *LazyVector[T]) Unshift(values ...T) {
	for i := len(values) - 1; i >= 0; i-- {
		v.slots.PushFront(lazySlot[T]{value: values[i]})
	}
}

// Insert places values before index i.
func (v *LazyVector[T]) Insert(i int, values ...T) {
	for j, val := range values {
		v.slots.Insert(i+j, lazySlot[T]{value: val})
	}
}

// Pop removes and returns the last element. ok is false when empty.
func (v *LazyVector[T]) Pop() (val T, ok bool) {
	if v.slots.Len() == 0 {
		return val, false
	}
	s := v.slots.PopBack()
	return s.resolve(), true
}

// Shift removes and returns the first element. ok is false when empty.
func (v *LazyVector[T]) Shift() (val T, ok bool) {
	if v.slots.Len() == 0 {
		return val, false
	}
	s := v.slots.PopFront()
	return s.resolve(), true
}

// Splice removes deleteCount elements at start, inserts values in their place
// and returns the removed elements as a new view. Removed elements stay
// undecoded.
func (v *LazyVector[T]) Splice(start, deleteCount int, values ...T) *LazyVector[T] {
	if start < 0 {
		start = 0
	}
	if start > v.slots.Len() {
		start = v.slots.Len()
	}
	if deleteCount > v.slots.Len()-start {
		deleteCount = v.slots.Len() - start
	}
	removed := &LazyVector[T]{}
	for i := 0; i < deleteCount; i++ {
		removed.slots.PushBack(v.slots.Remove(start))
	}
	v.Insert(start, values...)
	return removed
}

// Slice returns a view of [start, end) sharing no slots with v.
func (v *LazyVector[T]) Slice(start, end int) *LazyVector[T] {
	if start < 0 || end > v.slots.Len() || start > end {
		panic("LazyVector.Slice: bounds out of range")
	}
	out := &LazyVector[T]{}
	for i := start; i < end; i++ {
		out.slots.PushBack(v.slots.At(i))
	}
	return out
}

// Concat returns a new view holding v's elements followed by others'.
func (v *LazyVector[T]) Concat(others ...*LazyVector[T]) *LazyVector[T] {
	out := v.Slice(0, v.Len())
	for _, o := range others {
		if o == nil {
			continue
		}
		for i := 0; i < o.slots.Len(); i++ {
			out.slots.PushBack(o.slots.At(i))
		}
	}
	return out
}

// materialize decodes every remaining element.
func (v *LazyVector[T]) materialize() {
	for i := 0; i < v.slots.Len(); i++ {
		s := v.slots.At(i)
		if s.decode != nil {
			s.resolve()
			v.slots.Set(i, s)
		}
	}
}

// Values decodes everything and returns a copy of the elements.
func (v *LazyVector[T]) Values() []T {
	v.materialize()
	out := make([]T, v.slots.Len())
	for i := range out {
		out[i] = v.slots.At(i).value
	}
	return out
}

// MarshalJSON encodes the fully decoded elements as a JSON array.
func (v *LazyVector[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Values())
}

// All decodes everything, then iterates index/value pairs.
func (v *LazyVector[T]) All() iter.Seq2[int, T] {
	v.materialize()
	return func(yield func(int, T) bool) {
		for i := 0; i < v.slots.Len(); i++ {
			if !yield(i, v.slots.At(i).value) {
				return
			}
		}
	}
}

// IndexFunc returns the first index whose element satisfies f, or -1.
func (v *LazyVector[T]) IndexFunc(f func(T) bool) int {
	for i, val := range v.All() {
		if f(val) {
			return i
		}
	}
	return -1
}

// Sort orders the elements in place using cmp.
func (v *LazyVector[T]) Sort(cmp func(a, b T) int) {
	vals := v.Values()
	slices.SortStableFunc(vals, cmp)
	v.reset(vals)
}

// Reverse reverses the elements in place.
func (v *LazyVector[T]) Reverse() {
	vals := v.Values()
	slices.Reverse(vals)
	v.reset(vals)
}

func (v *LazyVector[T]) reset(vals []T) {
	v.slots.Clear()
	v.Push(vals...)
}
