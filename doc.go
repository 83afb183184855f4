// Package memtree provides concurrent ordered key containers intended
// as the sorted in-memory write buffer of a key-value storage engine.
//
// Three interchangeable engines implement the same ordered-set
// contract over opaque byte-slice keys:
//
//   - KindSplay: a splay tree behind a single mutex. Simplest
//     discipline, no concurrent readers; useful as a correctness
//     oracle.
//   - KindConcurrentSplay: a splay tree behind a reader/writer lock
//     with cached in-order threads, so membership tests and iteration
//     run under a shared lock while restructuring is exclusive.
//   - KindZip: a randomized-rank zip tree whose nodes live in an
//     off-heap arena. Insert/query-only; node storage is reclaimed
//     when the tree is closed.
//
// # Quick Start
//
//	set, _ := memtree.New(memtree.KindConcurrentSplay)
//	_ = set.Insert([]byte("b"))
//	_ = set.Insert([]byte("a"))
//
//	it := set.NewIterator()
//	for it.SeekToFirst(); it.Valid(); it.Next() {
//	    fmt.Printf("%s\n", it.Key())
//	}
//
// Duplicate inserts are no-ops; ordering comes from a pluggable
// three-way comparator (bytewise by default). The splay engines also
// implement DeletableSet. Iterators take the tree's lock per call, so
// they are safe under concurrent inserts but observe each step against
// the then-current structure.
package memtree
