package utils

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeIndex(t *testing.T) {
	cases := []struct {
		n      int
		expect int
	}{
		{1, 0}, {35, 0}, {63, 0}, {64, 0}, {65, 1}, {127, 1}, {128, 1},
		{129, 2}, {255, 2}, {256, 2}, {257, 3}, {511, 3}, {512, 3},
		{1023, 4}, {1024, 4}, {2047, 5}, {2048, 5}, {4095, 6}, {4096, 6},
		{8191, 7}, {8192, 7}, {16383, 8}, {16384, 8}, {32767, 9}, {32768, 9},
		{32769, 10}, {1 << 20, 14}, {1<<20 + 1, -1}, {0, -1},
	}

	for _, tc := range cases {
		idx := SizeIndex(tc.n)
		assert.Equal(t, tc.expect, idx, "SizeIndex(%d)", tc.n)

		if idx >= 0 {
			assert.GreaterOrEqual(t, BufferSizeClass[idx], tc.n, "BufferSizeClass[%d] too small for n=%d", idx, tc.n)
		}
	}
}

func TestBufferPool_AcquireRelease(t *testing.T) {
	bp := NewBufferPool()

	for _, size := range BufferSizeClass {
		buf := bp.Acquire(size - 1)
		assert.GreaterOrEqual(t, cap(buf), size-1)
		assert.Equal(t, len(buf), size-1)

		buf[0] = 0xAA
		buf[len(buf)-1] = 0xBB

		bp.Release(buf)

		buf2 := bp.AcquireZeroed(size - 1)
		assert.Equal(t, len(buf2), size-1)
		assert.Equal(t, byte(0), buf2[0])
		assert.Equal(t, byte(0), buf2[len(buf2)-1])
	}
}

func TestBufferPool_Oversized(t *testing.T) {
	bp := NewBufferPool()
	oversized := BufferSizeClass[len(BufferSizeClass)-1] + 1

	buf := bp.Acquire(oversized)
	assert.Equal(t, len(buf), oversized)
	assert.GreaterOrEqual(t, cap(buf), oversized)

	bp.Release(buf) // should be safely ignored
	bp.Release(make([]byte, 100))
	bp.Release(nil)
}

func TestAlignPadding(t *testing.T) {
	cases := []struct{ off, align, pad int }{
		{0, 4, 0}, {1, 4, 3}, {2, 4, 2}, {3, 4, 1}, {4, 4, 0},
		{5, 8, 3}, {9, 1, 0}, {6, 2, 0}, {7, 2, 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.pad, AlignPadding(tc.off, tc.align), "AlignPadding(%d,%d)", tc.off, tc.align)
	}
	assert.Equal(t, 16, AlignUp(13, 8))
	assert.Equal(t, []string{"a", "b"}, SortKeys(map[string]int{"b": 1, "a": 2}))
}

func BenchmarkBufferPool_AcquireVariants(b *testing.B) {
	bp := NewBufferPool()
	sizes := []int{64, 4096, 8192}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Acquire_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				buf := bp.Acquire(size)
				_ = buf[0]
				bp.Release(buf)
			}
		})

		b.Run(fmt.Sprintf("Zeroed_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				buf := bp.AcquireZeroed(size)
				_ = buf[0]
				bp.Release(buf)
			}
		})
	}
}
