package memtree

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/memtree/splay"
	"github.com/hupe1980/memtree/ziptree"
)

// Comparator is a three-way compare over keys. It must define a total
// order: negative if a < b, zero if equal, positive if a > b.
type Comparator func(a, b []byte) int

// DefaultComparator orders keys bytewise.
func DefaultComparator(a, b []byte) int { return bytes.Compare(a, b) }

// Iterator provides bidirectional ordered traversal over a set.
//
// Calling Key, Next or Prev on an iterator whose Valid() is false is a
// precondition violation and panics.
type Iterator interface {
	// Valid reports whether the iterator is positioned at a key.
	Valid() bool

	// Key returns the key at the current position.
	Key() []byte

	// Next advances to the in-order successor.
	Next()

	// Prev advances to the in-order predecessor.
	Prev()

	// Seek positions the iterator at the first key >= target.
	Seek(target []byte)

	// SeekToFirst positions the iterator at the smallest key.
	SeekToFirst()

	// SeekToLast positions the iterator at the largest key.
	SeekToLast()
}

// OrderedSet is the contract shared by every engine: a concurrent
// ordered set of distinct byte-slice keys.
type OrderedSet interface {
	// Insert adds key to the set. Inserting a present key is a no-op.
	// Insert fails only on resource exhaustion (zip engine arena).
	Insert(key []byte) error

	// Contains reports whether key is in the set.
	Contains(key []byte) bool

	// Size returns the number of distinct keys.
	Size() int

	// NewIterator returns an iterator positioned before the first key.
	NewIterator() Iterator
}

// DeletableSet is an OrderedSet that supports removal. The splay
// engines implement it; the zip engine does not.
type DeletableSet interface {
	OrderedSet

	// Delete removes key, reporting whether it was present.
	Delete(key []byte) bool
}

// MemoryAcquirer budgets off-heap memory for arena-backed engines.
// resource.Controller implements it.
type MemoryAcquirer interface {
	AcquireMemory(ctx context.Context, amount int64) error
	ReleaseMemory(amount int64)
}

// Kind selects the engine behind an OrderedSet.
type Kind int

const (
	// KindSplay is the coarse-locked splay tree.
	KindSplay Kind = iota
	// KindConcurrentSplay is the reader/writer-locked splay tree.
	KindConcurrentSplay
	// KindZip is the arena-backed zip tree.
	KindZip
)

// String returns a string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindSplay:
		return "Splay"
	case KindConcurrentSplay:
		return "ConcurrentSplay"
	case KindZip:
		return "Zip"
	default:
		return "Unknown"
	}
}

// Options configures an engine created through New.
type Options struct {
	// Comparator supplies the total order over keys.
	Comparator Comparator

	// RankSeed seeds the zip engine's rank sampler; 0 selects the
	// default seed. Ignored by the splay engines.
	RankSeed int64

	// ArenaChunkSize is the chunk size of the zip engine's arena; 0
	// selects the default. Ignored by the splay engines.
	ArenaChunkSize int

	// MemoryAcquirer budgets the zip engine's arena growth. Ignored by
	// the splay engines.
	MemoryAcquirer MemoryAcquirer

	// Logger receives engine diagnostics. Nil disables logging.
	Logger *Logger
}

// DefaultOptions are the options used when none are supplied.
var DefaultOptions = Options{
	Comparator: DefaultComparator,
}

// New creates an ordered set backed by the given engine kind.
//
// The returned set also implements DeletableSet for the splay kinds
// and io.Closer for the zip kind (Close releases the arena).
func New(kind Kind, optFns ...func(o *Options)) (OrderedSet, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	log := opts.Logger
	if log == nil {
		log = NoopLogger()
	}

	var set OrderedSet
	switch kind {
	case KindSplay:
		t := splay.New(func(o *splay.Options) {
			o.Comparator = splay.Comparator(opts.Comparator)
		})
		set = &splaySet{t}
	case KindConcurrentSplay:
		t := splay.NewConcurrent(func(o *splay.Options) {
			o.Comparator = splay.Comparator(opts.Comparator)
		})
		set = &concurrentSplaySet{t}
	case KindZip:
		t, err := ziptree.New(func(o *ziptree.Options) {
			o.Comparator = ziptree.Comparator(opts.Comparator)
			o.RankSeed = opts.RankSeed
			o.ArenaChunkSize = opts.ArenaChunkSize
			o.MemoryAcquirer = opts.MemoryAcquirer
			o.Logger = log.Logger
		})
		if err != nil {
			return nil, err
		}
		set = &zipSet{t}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}

	log.WithKind(kind).Debug("engine created")

	return set, nil
}

type splaySet struct {
	tree *splay.Tree
}

func (s *splaySet) Insert(key []byte) error  { s.tree.Insert(key); return nil }
func (s *splaySet) Contains(key []byte) bool { return s.tree.Contains(key) }
func (s *splaySet) Delete(key []byte) bool   { return s.tree.Delete(key) }
func (s *splaySet) Size() int                { return s.tree.Size() }
func (s *splaySet) NewIterator() Iterator    { return s.tree.NewIterator() }

type concurrentSplaySet struct {
	tree *splay.ConcurrentTree
}

func (s *concurrentSplaySet) Insert(key []byte) error  { s.tree.Insert(key); return nil }
func (s *concurrentSplaySet) Contains(key []byte) bool { return s.tree.Contains(key) }
func (s *concurrentSplaySet) Delete(key []byte) bool   { return s.tree.Delete(key) }
func (s *concurrentSplaySet) Size() int                { return s.tree.Size() }
func (s *concurrentSplaySet) NewIterator() Iterator    { return s.tree.NewIterator() }

type zipSet struct {
	tree *ziptree.Tree
}

func (s *zipSet) Insert(key []byte) error {
	if err := s.tree.Insert(key); err != nil {
		return &ErrArenaExhausted{cause: err}
	}
	return nil
}

func (s *zipSet) Contains(key []byte) bool { return s.tree.Contains(key) }
func (s *zipSet) Size() int                { return s.tree.Size() }
func (s *zipSet) NewIterator() Iterator    { return s.tree.NewIterator() }
func (s *zipSet) Close() error             { return s.tree.Close() }

var (
	_ DeletableSet = (*splaySet)(nil)
	_ DeletableSet = (*concurrentSplaySet)(nil)
	_ OrderedSet   = (*zipSet)(nil)
	_ io.Closer    = (*zipSet)(nil)
)
