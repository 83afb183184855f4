package ziptree

// Iterator walks the tree in key order. Each call acquires the shared
// lock on its own, so iterator state is a per-call snapshot rather
// than a transaction: inserts from other goroutines may restructure
// the tree between steps, but the node a valid iterator rests on is
// never reclaimed before Close.
type Iterator struct {
	t *Tree
	n uint64
}

// NewIterator returns an iterator positioned before the first key.
func (t *Tree) NewIterator() *Iterator {
	return &Iterator{t: t}
}

// Valid reports whether the iterator is positioned at a key.
func (it *Iterator) Valid() bool {
	it.t.mu.RLock()
	defer it.t.mu.RUnlock()
	return it.n != 0
}

// Key returns the key at the current position.
// It panics if the iterator is not valid.
func (it *Iterator) Key() []byte {
	it.t.mu.RLock()
	defer it.t.mu.RUnlock()
	if it.n == 0 {
		panic("memtree/ziptree: Key on invalid iterator")
	}
	return it.t.keyOf(it.n)
}

// Next advances to the in-order successor.
// It panics if the iterator is not valid.
func (it *Iterator) Next() {
	it.t.mu.RLock()
	defer it.t.mu.RUnlock()
	if it.n == 0 {
		panic("memtree/ziptree: Next on invalid iterator")
	}
	it.n = it.t.nextLocked(it.n)
}

// Prev advances to the in-order predecessor.
// It panics if the iterator is not valid.
func (it *Iterator) Prev() {
	it.t.mu.RLock()
	defer it.t.mu.RUnlock()
	if it.n == 0 {
		panic("memtree/ziptree: Prev on invalid iterator")
	}
	it.n = it.t.prevLocked(it.n)
}

// Seek positions the iterator at the first key >= target, or
// invalidates it if no such key exists.
func (it *Iterator) Seek(target []byte) {
	it.t.mu.RLock()
	defer it.t.mu.RUnlock()

	it.n = 0
	cur := it.t.root
	for cur != 0 {
		it.n = cur
		c := it.t.cmp(target, it.t.keyOf(cur))
		if c == 0 {
			return
		}
		if c < 0 {
			cur = it.t.leftOf(cur)
		} else {
			cur = it.t.rightOf(cur)
		}
	}
	if it.n == 0 {
		return
	}
	// Landed on the nearest node; correct if it sorts before the target.
	if it.t.cmp(target, it.t.keyOf(it.n)) > 0 {
		it.n = it.t.nextLocked(it.n)
	}
}

// SeekToFirst positions the iterator at the smallest key.
func (it *Iterator) SeekToFirst() {
	it.t.mu.RLock()
	defer it.t.mu.RUnlock()

	it.n = 0
	for cur := it.t.root; cur != 0; cur = it.t.leftOf(cur) {
		it.n = cur
	}
}

// SeekToLast positions the iterator at the largest key.
func (it *Iterator) SeekToLast() {
	it.t.mu.RLock()
	defer it.t.mu.RUnlock()

	it.n = 0
	for cur := it.t.root; cur != 0; cur = it.t.rightOf(cur) {
		it.n = cur
	}
}
