//go:build !unix

package mmap

// Fallback for platforms without anonymous mmap support: plain heap
// memory. The arena still works, it just loses the off-heap property.
func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	return make([]byte, size), func([]byte) error { return nil }, nil
}
