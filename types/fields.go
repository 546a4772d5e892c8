package types

import "iter"

// Pair is a named field value used to initialize Fields.
type Pair struct {
	Key   string
	Value any
}

// P is a helper to construct a Pair inline.
func P(k string, v any) Pair {
	return Pair{Key: k, Value: v}
}

// Fields is a string-keyed map that remembers insertion order. Records use it
// so that a decoded object lists its fields in declaration order.
type Fields struct {
	index map[string]int // key → position in keys/values
	keys  []string
	vals  []any
}

// NewFields creates Fields, optionally initialized with pairs.
func NewFields(pairs ...Pair) *Fields {
	f := &Fields{index: make(map[string]int, len(pairs))}
	for _, p := range pairs {
		f.Set(p.Key, p.Value)
	}
	return f
}

// Len returns the number of keys.
func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

// Set inserts or updates a key. Updates keep the original position.
func (f *Fields) Set(key string, value any) {
	if f.index == nil {
		f.index = make(map[string]int)
	}
	if i, ok := f.index[key]; ok {
		f.vals[i] = value
		return
	}
	f.index[key] = len(f.keys)
	f.keys = append(f.keys, key)
	f.vals = append(f.vals, value)
}

// Get retrieves a value.
func (f *Fields) Get(key string) (any, bool) {
	if f == nil {
		return nil, false
	}
	i, ok := f.index[key]
	if !ok {
		return nil, false
	}
	return f.vals[i], true
}

// Delete removes a key, preserving the order of the others.
func (f *Fields) Delete(key string) {
	i, ok := f.index[key]
	if !ok {
		return
	}
	delete(f.index, key)
	f.keys = append(f.keys[:i], f.keys[i+1:]...)
	f.vals = append(f.vals[:i], f.vals[i+1:]...)
	for j := i; j < len(f.keys); j++ {
		f.index[f.keys[j]] = j
	}
}

// Keys returns keys in insertion order.
func (f *Fields) Keys() []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.keys...)
}

// All iterates key/value pairs in insertion order.
func (f *Fields) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if f == nil {
			return
		}
		for i, k := range f.keys {
			if !yield(k, f.vals[i]) {
				return
			}
		}
	}
}

// GetAs returns the value stored under key converted to U, or U's zero value
// when the key is missing or holds another type.
func GetAs[U any](f *Fields, key string) U {
	v, ok := f.Get(key)
	if !ok {
		var zero U
		return zero
	}
	u, ok := v.(U)
	if !ok {
		var zero U
		return zero
	}
	return u
}
