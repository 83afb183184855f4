package splay

import "sync"

type node struct {
	key    []byte
	parent *node
	child  [2]*node
}

// Tree is a coarse-locked splay tree. A single mutex serializes every
// operation, including iterator steps.
type Tree struct {
	mu   sync.Mutex
	cmp  Comparator
	root *node
	size int
}

// New creates a coarse-locked splay tree.
func New(optFns ...func(o *Options)) *Tree {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Tree{cmp: opts.Comparator}
}

// Insert adds key to the tree. Inserting a key that is already present
// is a no-op.
func (t *Tree) Insert(key []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := &node{key: key}
	slot := &t.root
	for *slot != nil {
		cur := *slot
		c := t.cmp(key, cur.key)
		if c == 0 {
			return
		}
		n.parent = cur
		if c < 0 {
			slot = &cur.child[left]
		} else {
			slot = &cur.child[right]
		}
	}
	*slot = n
	t.splay(n)
	t.size++
}

// Delete removes key from the tree, reporting whether it was present.
func (t *Tree) Delete(key []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.find(key)
	if n == nil {
		return false
	}
	t.splay(n)

	switch {
	case n.child[left] == nil:
		t.root = n.child[right]
		if t.root != nil {
			t.root.parent = nil
		}
	case n.child[right] == nil:
		t.root = n.child[left]
		t.root.parent = nil
	default:
		// Splice the in-order successor (minimum of the right subtree)
		// into the deleted root's place.
		c := subMinimum(n.child[right])
		if c.parent == n {
			c.child[left] = n.child[left]
			c.child[left].parent = c
			c.parent = nil
		} else {
			c.parent.child[left] = c.child[right]
			if c.child[right] != nil {
				c.child[right].parent = c.parent
			}
			c.child[right] = n.child[right]
			c.child[right].parent = c
			c.child[left] = n.child[left]
			c.child[left].parent = c
			c.parent = nil
		}
		t.root = c
	}

	n.parent, n.child[left], n.child[right] = nil, nil, nil
	t.size--
	return true
}

// Contains reports whether key is in the tree. It has no splay side
// effect.
func (t *Tree) Contains(key []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.find(key) != nil
}

// Size returns the number of keys in the tree.
func (t *Tree) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size
}

func (t *Tree) find(key []byte) *node {
	cur := t.root
	for cur != nil {
		c := t.cmp(key, cur.key)
		if c == 0 {
			break
		}
		if c < 0 {
			cur = cur.child[left]
		} else {
			cur = cur.child[right]
		}
	}
	return cur
}

// splay rotates n to the root via the zig, zig-zig and zig-zag cases.
func (t *Tree) splay(n *node) {
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

// rotate promotes n's side-s child into n's position. No-op if the
// child is absent.
func (t *Tree) rotate(n *node, s side) {
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
	c.child[os] = n
	n.parent = c
}

func subMinimum(n *node) *node {
	for n.child[left] != nil {
		n = n.child[left]
	}
	return n
}

func subMaximum(n *node) *node {
	for n.child[right] != nil {
		n = n.child[right]
	}
	return n
}

// next returns the in-order successor of n, walking the right subtree
// or the ancestor chain.
func (t *Tree) next(n *node) *node {
	if n.child[right] != nil {
		return subMinimum(n.child[right])
	}
	p := n.parent
	for p != nil && n == p.child[right] {
		n, p = p, p.parent
	}
	return p
}

func (t *Tree) prev(n *node) *node {
	if n.child[left] != nil {
		return subMaximum(n.child[left])
	}
	p := n.parent
	for p != nil && n == p.child[left] {
		n, p = p, p.parent
	}
	return p
}

// Iterator walks the tree in key order. Each step acquires the tree
// mutex; the iterator observes the structure as of its latest step.
type Iterator struct {
	t *Tree
	n *node
}

// NewIterator returns an iterator positioned before the first key.
func (t *Tree) NewIterator() *Iterator {
	return &Iterator{t: t}
}

// Valid reports whether the iterator is positioned at a key.
func (it *Iterator) Valid() bool { return it.n != nil }

// Key returns the key at the current position.
// It panics if the iterator is not valid.
func (it *Iterator) Key() []byte {
	if it.n == nil {
		panic("memtree/splay: Key on invalid iterator")
	}
	return it.n.key
}

// Next advances to the in-order successor.
// It panics if the iterator is not valid.
func (it *Iterator) Next() {
	if it.n == nil {
		panic("memtree/splay: Next on invalid iterator")
	}
	it.t.mu.Lock()
	defer it.t.mu.Unlock()
	it.n = it.t.next(it.n)
}

// Prev advances to the in-order predecessor.
// It panics if the iterator is not valid.
func (it *Iterator) Prev() {
	if it.n == nil {
		panic("memtree/splay: Prev on invalid iterator")
	}
	it.t.mu.Lock()
	defer it.t.mu.Unlock()
	it.n = it.t.prev(it.n)
}

// Seek positions the iterator at the first key >= target, or
// invalidates it if no such key exists.
func (it *Iterator) Seek(target []byte) {
	it.t.mu.Lock()
	defer it.t.mu.Unlock()

	var last *node
	cur := it.t.root
	for cur != nil {
		last = cur
		c := it.t.cmp(target, cur.key)
		if c == 0 {
			it.n = cur
			return
		}
		if c < 0 {
			cur = cur.child[left]
		} else {
			cur = cur.child[right]
		}
	}
	if last != nil && it.t.cmp(target, last.key) > 0 {
		last = it.t.next(last)
	}
	it.n = last
}

// SeekToFirst positions the iterator at the smallest key.
func (it *Iterator) SeekToFirst() {
	it.t.mu.Lock()
	defer it.t.mu.Unlock()
	if it.t.root == nil {
		it.n = nil
		return
	}
	it.n = subMinimum(it.t.root)
}

// SeekToLast positions the iterator at the largest key.
func (it *Iterator) SeekToLast() {
	it.t.mu.Lock()
	defer it.t.mu.Unlock()
	if it.t.root == nil {
		it.n = nil
		return
	}
	it.n = subMaximum(it.t.root)
}
