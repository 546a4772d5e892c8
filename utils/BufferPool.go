package utils

import (
	"math/bits"
	"sync"
)

const (
	minClassShift = 6  // 64 bytes
	maxClassShift = 20 // 1 MiB
)

// BufferSizeClass lists the pooled capacities, powers of two from 64 B to 1 MiB.
var BufferSizeClass = func() [maxClassShift - minClassShift + 1]int {
	var c [maxClassShift - minClassShift + 1]int
	for i := range c {
		c[i] = 1 << (minClassShift + i)
	}
	return c
}()

// SizeIndex returns the smallest class that holds n bytes, or -1 when n is
// not poolable.
func SizeIndex(n int) int {
	if n <= 0 || n > BufferSizeClass[len(BufferSizeClass)-1] {
		return -1
	}
	if n <= 1<<minClassShift {
		return 0
	}
	idx := bits.Len(uint(n))
	if n&(n-1) == 0 {
		return idx - 1 - minClassShift
	}
	return idx - minClassShift
}

type BufferPool struct {
	pools [len(BufferSizeClass)]sync.Pool
}

func NewBufferPool() *BufferPool {
	var bp BufferPool
	for i, sz := range BufferSizeClass {
		size := sz
		bp.pools[i].New = func() any {
			b := make([]byte, size)
			return &b
		}
	}
	return &bp
}

// Shared is the process-wide pool byte stores draw from.
var Shared = NewBufferPool()

// Acquire returns a buffer of exactly n bytes whose capacity is a size class
// when n is poolable. Contents are unspecified.
func (bp *BufferPool) Acquire(n int) []byte {
	idx := SizeIndex(n)
	if idx < 0 {
		return make([]byte, n)
	}
	bufPtr := bp.pools[idx].Get().(*[]byte)
	return (*bufPtr)[:n]
}

// AcquireZeroed is Acquire followed by clearing the buffer.
func (bp *BufferPool) AcquireZeroed(n int) []byte {
	buf := bp.Acquire(n)
	clear(buf)
	return buf
}

// Release returns the buffer to its pool if its capacity matches a class.
// The caller must not touch buf afterwards.
func (bp *BufferPool) Release(buf []byte) {
	c := cap(buf)
	if c == 0 || c&(c-1) != 0 {
		return // not a valid class
	}
	idx := bits.Len(uint(c)) - 1 - minClassShift
	if idx < 0 || idx >= len(BufferSizeClass) {
		return
	}
	buf = buf[:c]
	bp.pools[idx].Put(&buf)
}
