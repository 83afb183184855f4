// Package ziptree provides a randomized-rank ordered key container
// (zip tree) backed by an off-heap arena.
//
// Each node carries a rank sampled once at insertion from a capped
// geometric distribution; higher-rank nodes sit structurally above
// lower-rank nodes, which keeps the expected height logarithmic
// without explicit rebalancing.
//
// The tree is insert/query-only: there is no Delete, and node storage
// is reclaimed only when the backing arena is torn down via Close.
// That matches its write-buffer role, where buffers are dropped
// wholesale after a flush. A reader/writer lock admits unlimited
// concurrent readers and a single writer; iterators lock per step, so
// a sequence of iterator calls interleaved with inserts observes each
// step against the then-current structure.
package ziptree

import (
	"bytes"
	"context"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/hupe1980/memtree/internal/arena"
)

const (
	// kMaxRank caps the sampled rank.
	kMaxRank = 11
	// kBranching is the geometric distribution's branching factor: the
	// rank increments with probability 1/kBranching per step.
	kBranching = 6

	// defaultSeed makes structure reproducible run-to-run unless the
	// caller supplies a seed.
	defaultSeed = 0xc0debabe
)

type side int

const (
	left side = iota
	right
)

// Comparator is a three-way compare over keys. It must define a total
// order: negative if a < b, zero if equal, positive if a > b.
type Comparator func(a, b []byte) int

// DefaultComparator orders keys bytewise.
func DefaultComparator(a, b []byte) int { return bytes.Compare(a, b) }

// MemoryAcquirer is a hook for budgeting the arena memory backing the
// tree. resource.Controller implements it.
type MemoryAcquirer interface {
	AcquireMemory(ctx context.Context, amount int64) error
	ReleaseMemory(amount int64)
}

// Options configures a Tree.
type Options struct {
	// Comparator supplies the total order over keys.
	Comparator Comparator

	// RankSeed seeds the rank sampler. Fixed seeds give reproducible
	// structure; 0 selects the default seed.
	RankSeed int64

	// ArenaChunkSize is the size of the arena chunks node records are
	// placed in. 0 selects the arena default.
	ArenaChunkSize int

	// MemoryAcquirer budgets arena growth. Nil means unbudgeted.
	MemoryAcquirer MemoryAcquirer

	// Logger receives consistency diagnostics at debug level.
	// Nil disables logging.
	Logger *slog.Logger
}

// Tree is a concurrent zip tree over opaque byte-slice keys. Keys are
// copied into the arena on insert.
type Tree struct {
	mu    sync.RWMutex
	cmp   Comparator
	arena *arena.Arena
	rnd   *rand.Rand
	root  uint64
	size  int
	log   *slog.Logger
}

// New creates a zip tree.
func New(optFns ...func(o *Options)) (*Tree, error) {
	opts := Options{
		Comparator: DefaultComparator,
		RankSeed:   defaultSeed,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.RankSeed == 0 {
		opts.RankSeed = defaultSeed
	}

	var arenaOpts []arena.Option
	if opts.MemoryAcquirer != nil {
		arenaOpts = append(arenaOpts, arena.WithMemoryAcquirer(opts.MemoryAcquirer))
	}

	a, err := arena.New(opts.ArenaChunkSize, arenaOpts...)
	if err != nil {
		return nil, err
	}

	return &Tree{
		cmp:   opts.Comparator,
		arena: a,
		rnd:   rand.New(rand.NewSource(opts.RankSeed)),
		log:   opts.Logger,
	}, nil
}

// Close releases the arena. All node storage is reclaimed at once;
// iterators become invalid. Close must not run concurrently with other
// operations.
func (t *Tree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root = 0
	t.size = 0
	t.arena.Free()
	return nil
}

// randomRank samples a rank from the capped geometric distribution.
func (t *Tree) randomRank() uint32 {
	rank := uint32(0)
	for t.rnd.Intn(kBranching) == 0 && rank < kMaxRank {
		rank++
	}
	return rank
}

// Insert adds key to the tree. Inserting a key that is already present
// is a no-op. The returned error is non-nil only when arena allocation
// fails (budget exhausted or addressable space exceeded).
func (t *Tree) Insert(key []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.findLocked(key) != 0 {
		return nil
	}

	rank := t.randomRank()
	x, err := t.newNode(key, rank)
	if err != nil {
		return err
	}

	// Descend to the splice point: the topmost node the new node
	// out-ranks. Rank ties lean right: equal rank wins against a node
	// the new key sorts before, loses against one it sorts after.
	var parent uint64
	var parentSide side
	cur := t.root
	for cur != 0 {
		curRank := t.rankOf(cur)
		if t.cmp(key, t.keyOf(cur)) < 0 {
			if rank >= curRank {
				break
			}
			parent, parentSide = cur, left
			cur = t.leftOf(cur)
		} else {
			if rank > curRank {
				break
			}
			parent, parentSide = cur, right
			cur = t.rightOf(cur)
		}
	}

	// Splice x in place of cur.
	t.setParent(x, parent)
	if parent == 0 {
		t.root = x
	} else {
		t.setChild(parent, parentSide, x)
	}

	// Unzip the displaced subtree around the new key: smaller nodes hang
	// off x's left spine, larger ones off its right spine.
	lessHook, lessSide := x, left
	greaterHook, greaterSide := x, right
	for cur != 0 {
		if t.cmp(t.keyOf(cur), key) < 0 {
			t.setChild(lessHook, lessSide, cur)
			t.setParent(cur, lessHook)
			lessHook, lessSide = cur, right
			cur = t.rightOf(cur)
		} else {
			t.setChild(greaterHook, greaterSide, cur)
			t.setParent(cur, greaterHook)
			greaterHook, greaterSide = cur, left
			cur = t.leftOf(cur)
		}
	}
	t.setChild(lessHook, lessSide, 0)
	t.setChild(greaterHook, greaterSide, 0)

	t.size++
	return nil
}

// Contains reports whether key is in the tree.
func (t *Tree) Contains(key []byte) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.findLocked(key) != 0
}

// Size returns the number of keys in the tree.
func (t *Tree) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Height returns the height of the tree. Diagnostic; walks the whole
// structure.
func (t *Tree) Height() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.root == 0 {
		return 0
	}

	type frame struct {
		n     uint64
		depth int
	}
	height := 0
	stack := []frame{{t.root, 1}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth > height {
			height = f.depth
		}
		if l := t.leftOf(f.n); l != 0 {
			stack = append(stack, frame{l, f.depth + 1})
		}
		if r := t.rightOf(f.n); r != 0 {
			stack = append(stack, frame{r, f.depth + 1})
		}
	}
	return height
}

// CheckConsistency verifies parent/child symmetry and strict key
// ordering over the whole tree. Diagnostic; a false result indicates
// an internal invariant breach.
func (t *Tree) CheckConsistency() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.root == 0 {
		return true
	}

	stack := []uint64{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p := t.parentOf(n); p != 0 {
			if t.leftOf(p) != n && t.rightOf(p) != n {
				t.logBreach("parent/child asymmetry", n)
				return false
			}
		}
		if l := t.leftOf(n); l != 0 {
			if t.cmp(t.keyOf(l), t.keyOf(n)) >= 0 {
				t.logBreach("left child out of order", n)
				return false
			}
			stack = append(stack, l)
		}
		if r := t.rightOf(n); r != 0 {
			if t.cmp(t.keyOf(r), t.keyOf(n)) <= 0 {
				t.logBreach("right child out of order", n)
				return false
			}
			stack = append(stack, r)
		}
	}
	return true
}

func (t *Tree) logBreach(reason string, n uint64) {
	if t.log != nil {
		t.log.Debug("consistency check failed", "reason", reason, "node", n)
	}
}

// ArenaStats exposes the backing arena's memory statistics.
func (t *Tree) ArenaStats() arena.Stats {
	return t.arena.Stats()
}

func (t *Tree) findLocked(key []byte) uint64 {
	cur := t.root
	for cur != 0 {
		c := t.cmp(key, t.keyOf(cur))
		if c == 0 {
			break
		}
		if c < 0 {
			cur = t.leftOf(cur)
		} else {
			cur = t.rightOf(cur)
		}
	}
	return cur
}

// nextLocked returns the in-order successor via the right subtree or
// the parent chain.
func (t *Tree) nextLocked(n uint64) uint64 {
	if r := t.rightOf(n); r != 0 {
		for l := t.leftOf(r); l != 0; l = t.leftOf(r) {
			r = l
		}
		return r
	}
	p := t.parentOf(n)
	for p != 0 && n == t.rightOf(p) {
		n, p = p, t.parentOf(p)
	}
	return p
}

func (t *Tree) prevLocked(n uint64) uint64 {
	if l := t.leftOf(n); l != 0 {
		for r := t.rightOf(l); r != 0; r = t.rightOf(l) {
			l = r
		}
		return l
	}
	p := t.parentOf(n)
	for p != 0 && n == t.leftOf(p) {
		n, p = p, t.parentOf(p)
	}
	return p
}
