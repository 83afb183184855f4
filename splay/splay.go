// Package splay provides self-adjusting binary search trees over
// opaque byte-slice keys.
//
// Two variants share the same contract but differ in their locking
// discipline:
//
//   - Tree serializes every operation behind a single mutex.
//   - ConcurrentTree uses a reader/writer lock with ancestor threading
//     so membership tests and iteration run under a shared lock.
//
// Both uphold the splay contract: after a successful Insert or Delete
// the affected node (or the promoted successor on deletion) is the
// tree root. Keys are held by reference; callers must not mutate a key
// slice after handing it to the tree.
package splay

import "bytes"

// Comparator is a three-way compare over keys. It must define a total
// order: negative if a < b, zero if equal, positive if a > b.
type Comparator func(a, b []byte) int

// DefaultComparator orders keys bytewise.
func DefaultComparator(a, b []byte) int { return bytes.Compare(a, b) }

type side int

const (
	left side = iota
	right
)

// Options configures a splay tree.
type Options struct {
	// Comparator supplies the total order over keys.
	Comparator Comparator
}

// DefaultOptions are the options used when none are supplied.
var DefaultOptions = Options{
	Comparator: DefaultComparator,
}
