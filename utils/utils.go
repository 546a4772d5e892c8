package utils

import (
	"sort"
)

// SortKeys returns the keys of m in ascending order.
func SortKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AlignPadding returns how many bytes must follow offset so that offset plus
// the padding is a multiple of align. align must be a power of two.
func AlignPadding(offset, align int) int {
	return (^offset + 1) & (align - 1)
}

// AlignUp rounds n up to a multiple of align (a power of two).
func AlignUp(n, align int) int {
	return n + AlignPadding(n, align)
}
