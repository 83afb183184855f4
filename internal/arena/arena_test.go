package arena

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena_Alloc(t *testing.T) {
	a, err := New(4096)
	require.NoError(t, err)
	defer a.Free()

	off, buf, err := a.Alloc(24)
	require.NoError(t, err)
	assert.NotZero(t, off, "offset 0 is reserved as the null handle")
	assert.Zero(t, off%Alignment)
	require.Len(t, buf, 24)

	// Data written through the returned slice must be visible via Get.
	copy(buf, []byte("hello"))
	assert.Equal(t, []byte("hello"), a.Get(off, 5))
}

func TestArena_AllocAlignment(t *testing.T) {
	a, err := New(4096)
	require.NoError(t, err)
	defer a.Free()

	for _, size := range []int{1, 7, 8, 9, 31} {
		off, _, err := a.Alloc(size)
		require.NoError(t, err)
		assert.Zero(t, off%Alignment, "size %d", size)
	}
}

func TestArena_GrowsChunks(t *testing.T) {
	a, err := New(1024)
	require.NoError(t, err)
	defer a.Free()

	// Force allocations across several chunks.
	for i := 0; i < 100; i++ {
		_, _, err := a.Alloc(256)
		require.NoError(t, err)
	}

	stats := a.Stats()
	assert.Greater(t, stats.ActiveChunks, uint64(1))
	assert.Equal(t, uint64(101), stats.TotalAllocs) // 100 + null reservation
}

func TestArena_SizeTooLarge(t *testing.T) {
	a, err := New(1024)
	require.NoError(t, err)
	defer a.Free()

	_, _, err = a.Alloc(2048)
	assert.ErrorIs(t, err, ErrSizeTooLarge)
}

func TestArena_ConcurrentAlloc(t *testing.T) {
	a, err := New(4096) // Small chunks to exercise chunk boundary transitions
	require.NoError(t, err)
	defer a.Free()

	const goroutines = 8
	const allocsPerGoroutine = 500

	offsets := make([][]uint64, goroutines)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()
			for i := 0; i < allocsPerGoroutine; i++ {
				off, buf, err := a.Alloc(16)
				if err != nil {
					t.Errorf("Alloc failed: %v", err)
					return
				}
				buf[0] = byte(g)
				offsets[g] = append(offsets[g], off)
			}
		}(g)
	}
	wg.Wait()

	// All offsets must be distinct and still readable.
	seen := make(map[uint64]struct{})
	for g := range offsets {
		for _, off := range offsets[g] {
			_, dup := seen[off]
			require.False(t, dup, "duplicate offset %d", off)
			seen[off] = struct{}{}
			assert.Equal(t, byte(g), a.Get(off, 1)[0])
		}
	}
}

type fakeAcquirer struct {
	mu       sync.Mutex
	acquired int64
	released int64
}

func (f *fakeAcquirer) AcquireMemory(_ context.Context, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired += amount
	return nil
}

func (f *fakeAcquirer) ReleaseMemory(amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released += amount
}

func TestArena_MemoryAcquirer(t *testing.T) {
	acq := &fakeAcquirer{}

	a, err := New(1024, WithMemoryAcquirer(acq))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, _, err := a.Alloc(512)
		require.NoError(t, err)
	}
	a.Free()

	assert.Equal(t, acq.acquired, acq.released, "all acquired memory must be released on Free")
	assert.Greater(t, acq.acquired, int64(1024))
}

func TestArena_AllocAfterFree(t *testing.T) {
	a, err := New(1024)
	require.NoError(t, err)
	a.Free()

	_, _, err = a.Alloc(8)
	assert.ErrorIs(t, err, ErrClosed)
}
