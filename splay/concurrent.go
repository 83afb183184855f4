package splay

import "sync"

type cnode struct {
	key    []byte
	parent *cnode
	child  [2]*cnode

	// Nearest smaller/larger ancestor, maintained through rotations so
	// iteration never re-derives successors by a full walk.
	ancestorPrev *cnode
	ancestorNext *cnode

	// inserted gates visibility: a node that is linked but not yet
	// splayed/published is invisible to readers.
	inserted bool
}

// ConcurrentTree is a splay tree behind a reader/writer lock. Reads
// (Contains, iteration) run under the shared lock; structural mutation
// (splay, delete, publication) runs under the exclusive lock.
type ConcurrentTree struct {
	mu   sync.RWMutex
	cmp  Comparator
	root *cnode
	size int
}

// NewConcurrent creates a reader/writer-locked splay tree.
func NewConcurrent(optFns ...func(o *Options)) *ConcurrentTree {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ConcurrentTree{cmp: opts.Comparator}
}

// Insert adds key to the tree. Inserting a key that is already present
// is a no-op.
//
// The operation runs in two phases: a shared-lock descent that serves
// as a duplicate fast path and may overlap with other readers and
// inserters, then an exclusive phase that re-validates the insertion
// point, links the node, splays it to the root and publishes it. The
// re-validation closes the window in which a concurrent inserter could
// have claimed the same slot between the phases.
func (t *ConcurrentTree) Insert(key []byte) {
	t.mu.RLock()
	cur := t.root
	for cur != nil {
		c := t.cmp(key, cur.key)
		if c == 0 {
			t.mu.RUnlock()
			return
		}
		if c < 0 {
			cur = cur.child[left]
		} else {
			cur = cur.child[right]
		}
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	n := &cnode{key: key}
	slot := &t.root
	for *slot != nil {
		p := *slot
		c := t.cmp(key, p.key)
		if c == 0 {
			// A racing insert won the slot; discard the new node.
			return
		}
		n.parent = p
		if c < 0 {
			n.ancestorNext = p
			n.ancestorPrev = p.ancestorPrev
			slot = &p.child[left]
		} else {
			n.ancestorPrev = p
			n.ancestorNext = p.ancestorNext
			slot = &p.child[right]
		}
	}
	*slot = n
	t.splay(n)
	n.inserted = true
	t.size++
}

// Delete removes key from the tree, reporting whether it was present.
// The whole operation, search included, runs under the exclusive lock
// so neighbor threads can be repaired atomically.
func (t *ConcurrentTree) Delete(key []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.findLocked(key)
	if n == nil {
		return false
	}
	t.splay(n)

	// Repair the true in-order neighbors before unlinking. With n at the
	// root, the deepest right-spine node of the left subtree and the
	// deepest left-spine node of the right subtree hold threads that
	// dangle to n; they are the only nodes whose dangling thread is ever
	// consulted (nextLocked and prevLocked read a thread only when the
	// corresponding child is absent).
	var pred, succ *cnode
	if n.child[left] != nil {
		pred = subMaximumC(n.child[left])
	}
	if n.child[right] != nil {
		succ = subMinimumC(n.child[right])
	}
	if pred != nil {
		pred.ancestorNext = succ
	}
	if succ != nil {
		succ.ancestorPrev = pred
	}

	switch {
	case n.child[left] == nil:
		t.root = n.child[right]
		if t.root != nil {
			t.root.parent = nil
			t.root.ancestorPrev = nil
		}
	case n.child[right] == nil:
		t.root = n.child[left]
		t.root.parent = nil
		t.root.ancestorNext = nil
	default:
		c := subMinimumC(n.child[right])
		if c.parent == n {
			c.child[left] = n.child[left]
			c.child[left].parent = c
			c.child[left].ancestorNext = c
			c.parent = nil
			c.ancestorPrev = nil
		} else {
			c.parent.child[left] = c.child[right]
			if c.child[right] != nil {
				c.child[right].parent = c.parent
			}
			c.parent = nil

			c.child[right] = n.child[right]
			c.child[right].parent = c
			c.child[right].ancestorPrev = c

			c.child[left] = n.child[left]
			c.child[left].parent = c
			c.child[left].ancestorNext = c

			c.ancestorPrev = nil
			c.ancestorNext = nil
		}
		t.root = c
	}

	// Unpublish as a backstop: an iterator still resting on n, or a
	// thread that was not repaired above, must never step onto it.
	n.inserted = false
	n.parent, n.child[left], n.child[right] = nil, nil, nil
	n.ancestorPrev, n.ancestorNext = nil, nil
	t.size--
	return true
}

// Contains reports whether key is in the tree.
func (t *ConcurrentTree) Contains(key []byte) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.findLocked(key) != nil
}

// Size returns the number of published keys in the tree.
func (t *ConcurrentTree) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// findLocked descends by the comparator, treating unpublished nodes as
// absent. Callers hold at least the shared lock.
func (t *ConcurrentTree) findLocked(key []byte) *cnode {
	cur := t.root
	for cur != nil && cur.inserted {
		c := t.cmp(key, cur.key)
		if c == 0 {
			return cur
		}
		if c < 0 {
			cur = cur.child[left]
		} else {
			cur = cur.child[right]
		}
	}
	return nil
}

// findGreaterOrEqualLocked returns the node with the smallest key >= key.
func (t *ConcurrentTree) findGreaterOrEqualLocked(key []byte) *cnode {
	cur := t.root
	var prev *cnode
	for cur != nil && cur.inserted {
		prev = cur
		c := t.cmp(cur.key, key)
		if c == 0 {
			return cur
		}
		if c < 0 {
			cur = cur.child[right]
		} else {
			cur = cur.child[left]
		}
	}
	if prev == nil {
		return nil
	}
	if t.cmp(key, prev.key) < 0 {
		return prev
	}
	return t.nextLocked(prev)
}

// nextLocked resolves the successor through the right subtree or the
// cached ancestor thread, skipping unpublished nodes.
func (t *ConcurrentTree) nextLocked(n *cnode) *cnode {
	if n.child[right] != nil && n.child[right].inserted {
		return subMinimumC(n.child[right])
	}
	if n.ancestorNext != nil && n.ancestorNext.inserted {
		return n.ancestorNext
	}
	return nil
}

func (t *ConcurrentTree) prevLocked(n *cnode) *cnode {
	if n.child[left] != nil && n.child[left].inserted {
		return subMaximumC(n.child[left])
	}
	if n.ancestorPrev != nil && n.ancestorPrev.inserted {
		return n.ancestorPrev
	}
	return nil
}

// firstLocked walks to the structural minimum beneath the root's left
// child, bypassing the root's own possibly-unthreaded state.
func (t *ConcurrentTree) firstLocked() *cnode {
	if t.root != nil && t.root.child[left] != nil {
		return subMinimumC(t.root.child[left])
	}
	return t.root
}

func (t *ConcurrentTree) lastLocked() *cnode {
	if t.root != nil && t.root.child[right] != nil {
		return subMaximumC(t.root.child[right])
	}
	return t.root
}

func subMinimumC(n *cnode) *cnode {
	for n.child[left] != nil && n.child[left].inserted {
		n = n.child[left]
	}
	return n
}

func subMaximumC(n *cnode) *cnode {
	for n.child[right] != nil && n.child[right].inserted {
		n = n.child[right]
	}
	return n
}

func (t *ConcurrentTree) splay(n *cnode) {
	for n.parent != nil {
		p := n.parent
		g := p.parent
		switch {
		case g == nil:
			if n == p.child[left] {
				t.rotate(p, left)
			} else {
				t.rotate(p, right)
			}
		case n == p.child[left] && p == g.child[left]:
			t.rotate(g, left)
			t.rotate(p, left)
		case n == p.child[right] && p == g.child[right]:
			t.rotate(g, right)
			t.rotate(p, right)
		case n == p.child[left] && p == g.child[right]:
			t.rotate(p, left)
			t.rotate(g, right)
		default:
			t.rotate(p, right)
			t.rotate(g, left)
		}
	}
}

// rotate performs the same pointer surgery as the coarse variant plus
// thread maintenance: the promoted child inherits the demoted node's
// outward thread, and the demoted node's inward thread becomes the
// promoted child.
func (t *ConcurrentTree) rotate(n *cnode, s side) {
	os := 1 - s
	c := n.child[s]
	if c == nil {
		return
	}
	n.child[s] = c.child[os]
	if c.child[os] != nil {
		c.child[os].parent = n
	}
	c.parent = n.parent
	switch {
	case n.parent == nil:
		t.root = c
	case n.parent.child[left] == n:
		n.parent.child[left] = c
	default:
		n.parent.child[right] = c
	}
	if s == left {
		c.ancestorNext = n.ancestorNext
		n.ancestorPrev = c
	} else {
		n.ancestorNext = c
		c.ancestorPrev = n.ancestorPrev
	}
	c.child[os] = n
	n.parent = c
}

// ConcurrentIterator walks a ConcurrentTree in key order. Each step
// acquires the shared lock; steps observe the structure as of the
// latest call, and unpublished inserts are never observed.
type ConcurrentIterator struct {
	t *ConcurrentTree
	n *cnode
}

// NewIterator returns an iterator positioned before the first key.
func (t *ConcurrentTree) NewIterator() *ConcurrentIterator {
	return &ConcurrentIterator{t: t}
}

// Valid reports whether the iterator is positioned at a key.
func (it *ConcurrentIterator) Valid() bool { return it.n != nil }

// Key returns the key at the current position.
// It panics if the iterator is not valid.
func (it *ConcurrentIterator) Key() []byte {
	if it.n == nil {
		panic("memtree/splay: Key on invalid iterator")
	}
	return it.n.key
}

// Next advances to the in-order successor.
// It panics if the iterator is not valid.
func (it *ConcurrentIterator) Next() {
	if it.n == nil {
		panic("memtree/splay: Next on invalid iterator")
	}
	it.t.mu.RLock()
	defer it.t.mu.RUnlock()
	it.n = it.t.nextLocked(it.n)
}

// Prev advances to the in-order predecessor.
// It panics if the iterator is not valid.
func (it *ConcurrentIterator) Prev() {
	if it.n == nil {
		panic("memtree/splay: Prev on invalid iterator")
	}
	it.t.mu.RLock()
	defer it.t.mu.RUnlock()
	it.n = it.t.prevLocked(it.n)
}

// Seek positions the iterator at the first key >= target, or
// invalidates it if no such key exists.
func (it *ConcurrentIterator) Seek(target []byte) {
	it.t.mu.RLock()
	defer it.t.mu.RUnlock()
	it.n = it.t.findGreaterOrEqualLocked(target)
}

// SeekToFirst positions the iterator at the smallest key.
func (it *ConcurrentIterator) SeekToFirst() {
	it.t.mu.RLock()
	defer it.t.mu.RUnlock()
	it.n = it.t.firstLocked()
}

// SeekToLast positions the iterator at the largest key.
func (it *ConcurrentIterator) SeekToLast() {
	it.t.mu.RLock()
	defer it.t.mu.RUnlock()
	it.n = it.t.lastLocked()
}
