package splay

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/memtree/testutil"
)

func collectForwardC(it *ConcurrentIterator) [][]byte {
	var out [][]byte
	for it.SeekToFirst(); it.Valid(); it.Next() {
		out = append(out, it.Key())
	}
	return out
}

func collectBackwardC(it *ConcurrentIterator) [][]byte {
	var out [][]byte
	for it.SeekToLast(); it.Valid(); it.Prev() {
		out = append(out, it.Key())
	}
	return out
}

func reversed(keys [][]byte) [][]byte {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[len(keys)-1-i] = k
	}
	return out
}

func TestConcurrentTree_InsertAndIterate(t *testing.T) {
	tree := NewConcurrent()

	for _, k := range byteKeys(5, 3, 8, 1, 4, 7, 9) {
		tree.Insert(k)
	}

	assert.Equal(t, 7, tree.Size())
	assert.Equal(t, byteKeys(1, 3, 4, 5, 7, 8, 9), collectForwardC(tree.NewIterator()))
}

func TestConcurrentTree_InsertSplaysToRoot(t *testing.T) {
	tree := NewConcurrent()

	tree.Insert([]byte{1})
	tree.Insert([]byte{2})
	tree.Insert([]byte{3})

	require.NotNil(t, tree.root)
	assert.Equal(t, []byte{3}, tree.root.key)
	assert.True(t, tree.root.inserted)
}

func TestConcurrentTree_DuplicateInsertIsNoop(t *testing.T) {
	tree := NewConcurrent()

	tree.Insert([]byte("a"))
	tree.Insert([]byte("a"))

	assert.Equal(t, 1, tree.Size())
}

func TestConcurrentTree_Delete(t *testing.T) {
	tree := NewConcurrent()

	for _, k := range byteKeys(5, 3, 8, 1, 4, 7, 9) {
		tree.Insert(k)
	}

	assert.True(t, tree.Delete([]byte{5}))
	assert.False(t, tree.Delete([]byte{5}))
	assert.False(t, tree.Contains([]byte{5}))
	assert.Equal(t, byteKeys(1, 3, 4, 7, 8, 9), collectForwardC(tree.NewIterator()))
}

// Deleting a node must detach the threads its in-order neighbors hold:
// stepping past them afterwards has to skip the removed key instead of
// resting on it or cutting the walk short.
func TestConcurrentTree_DeleteRepairsNeighborThreads(t *testing.T) {
	tree := NewConcurrent()

	for _, k := range byteKeys(1, 3, 2, 5, 4) {
		tree.Insert(k)
	}

	// Removing the minimum: Prev from the new minimum must be invalid,
	// not rest on the removed key.
	require.True(t, tree.Delete([]byte{1}))

	it := tree.NewIterator()
	it.SeekToFirst()
	require.True(t, it.Valid())
	assert.Equal(t, []byte{2}, it.Key())
	it.Prev()
	assert.False(t, it.Valid())

	// Removing an interior key: both walks must bridge the gap and
	// cover the full remaining range.
	require.True(t, tree.Delete([]byte{3}))
	assert.Equal(t, byteKeys(2, 4, 5), collectForwardC(tree.NewIterator()))
	assert.Equal(t, byteKeys(5, 4, 2), collectBackwardC(tree.NewIterator()))

	// Removing the maximum: Next from the new maximum must be invalid.
	require.True(t, tree.Delete([]byte{5}))
	it = tree.NewIterator()
	it.SeekToLast()
	require.True(t, it.Valid())
	assert.Equal(t, []byte{4}, it.Key())
	it.Next()
	assert.False(t, it.Valid())
}

func TestConcurrentTree_DeleteAll(t *testing.T) {
	tree := NewConcurrent()

	keys := byteKeys(5, 3, 8, 1, 4, 7, 9)
	for _, k := range keys {
		tree.Insert(k)
	}
	for _, k := range keys {
		assert.True(t, tree.Delete(k))
	}

	assert.Equal(t, 0, tree.Size())
	it := tree.NewIterator()
	it.SeekToFirst()
	assert.False(t, it.Valid())
}

func TestConcurrentIterator_Seek(t *testing.T) {
	tree := NewConcurrent()

	for _, k := range byteKeys(5, 3, 8, 1, 4, 7, 9) {
		tree.Insert(k)
	}

	it := tree.NewIterator()

	it.Seek([]byte{6})
	require.True(t, it.Valid())
	assert.Equal(t, []byte{7}, it.Key())

	it.Seek([]byte{1})
	require.True(t, it.Valid())
	assert.Equal(t, []byte{1}, it.Key())

	it.Seek([]byte{10})
	assert.False(t, it.Valid())
}

func TestConcurrentIterator_Backward(t *testing.T) {
	tree := NewConcurrent()

	for _, k := range byteKeys(5, 3, 8, 1, 4, 7, 9) {
		tree.Insert(k)
	}

	it := tree.NewIterator()
	var out [][]byte
	for it.SeekToLast(); it.Valid(); it.Prev() {
		out = append(out, it.Key())
	}

	assert.Equal(t, byteKeys(9, 8, 7, 5, 4, 3, 1), out)
}

func TestConcurrentIterator_PanicsWhenInvalid(t *testing.T) {
	tree := NewConcurrent()
	it := tree.NewIterator()

	assert.Panics(t, func() { it.Key() })
	assert.Panics(t, func() { it.Next() })
	assert.Panics(t, func() { it.Prev() })
}

func TestConcurrentTree_RandomOracle(t *testing.T) {
	rng := testutil.NewRNG(1337)
	model := testutil.NewModel()
	tree := NewConcurrent()

	keys := rng.UniqueKeys(1000)
	for i, k := range keys {
		tree.Insert(k)
		model.Insert(k)
		if i%3 == 0 {
			victim := keys[rng.Intn(i+1)]
			assert.Equal(t, model.Delete(victim), tree.Delete(victim))
		}
	}

	assert.Equal(t, model.Size(), tree.Size())
	assert.Equal(t, model.Keys(), collectForwardC(tree.NewIterator()))
	assert.Equal(t, reversed(model.Keys()), collectBackwardC(tree.NewIterator()))
}

// Disjoint per-goroutine key ranges make the final contents
// deterministic regardless of interleaving.
func TestConcurrentTree_ParallelInsert(t *testing.T) {
	const (
		goroutines = 8
		perG       = 500
	)

	tree := NewConcurrent()

	var g errgroup.Group
	for w := 0; w < goroutines; w++ {
		base := uint64(w * perG)
		g.Go(func() error {
			for i := uint64(0); i < perG; i++ {
				k := make([]byte, 8)
				binary.BigEndian.PutUint64(k, base+i)
				tree.Insert(k)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, goroutines*perG, tree.Size())

	it := tree.NewIterator()
	count := 0
	var prev []byte
	for it.SeekToFirst(); it.Valid(); it.Next() {
		k := it.Key()
		if prev != nil {
			assert.Negative(t, DefaultComparator(prev, k))
		}
		prev = k
		count++
	}
	assert.Equal(t, goroutines*perG, count)
}

func TestConcurrentTree_ParallelInsertSameKeys(t *testing.T) {
	const goroutines = 8

	tree := NewConcurrent()
	keys := testutil.SequentialKeys(200)

	var wg sync.WaitGroup
	for w := 0; w < goroutines; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, k := range keys {
				tree.Insert(k)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, len(keys), tree.Size())
	for _, k := range keys {
		assert.True(t, tree.Contains(k))
	}
}

func TestConcurrentTree_ReadersDuringWrites(t *testing.T) {
	tree := NewConcurrent()
	keys := testutil.NewRNG(99).UniqueKeys(2000)

	var g errgroup.Group
	g.Go(func() error {
		for _, k := range keys {
			tree.Insert(k)
		}
		return nil
	})
	for r := 0; r < 4; r++ {
		g.Go(func() error {
			for i := 0; i < 50; i++ {
				it := tree.NewIterator()
				var prev []byte
				for it.SeekToFirst(); it.Valid(); it.Next() {
					k := it.Key()
					if prev != nil && DefaultComparator(prev, k) >= 0 {
						t.Errorf("iteration out of order: %x then %x", prev, k)
					}
					prev = k
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, len(keys), tree.Size())
}
