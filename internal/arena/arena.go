// Package arena provides a chunked bump allocator for tree node records.
//
// # Concurrency Model
//
// Allocations are safe from multiple goroutines (lock-free CAS fast
// path, mutex only when a new chunk is needed). Free is NOT safe to
// call concurrently with allocations; the owning tree calls it exactly
// once on Close.
//
// # Memory Management
//
// Memory is reserved in large chunks of anonymous mmap memory and
// handed out as 8-byte aligned slices. Individual allocations are
// never freed; the whole arena is released at once. Offsets returned
// by Alloc are stable for the lifetime of the arena, which lets node
// records reference each other by offset instead of by Go pointer
// (off-heap memory must not contain Go pointers).
package arena

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/memtree/internal/mmap"
)

// MemoryAcquirer is an interface for acquiring memory from a budget.
type MemoryAcquirer interface {
	AcquireMemory(ctx context.Context, amount int64) error
	ReleaseMemory(amount int64)
}

var (
	// ErrMaxChunksExceeded is returned when the arena exceeds the maximum number of chunks.
	ErrMaxChunksExceeded = errors.New("arena: max chunks exceeded")
	// ErrSizeTooLarge is returned when a single allocation does not fit in one chunk.
	ErrSizeTooLarge = errors.New("arena: allocation exceeds chunk size")
	// ErrClosed is returned when allocating from a freed arena.
	ErrClosed = errors.New("arena: closed")
)

const (
	// DefaultChunkSize is the default size of a chunk (1MB).
	DefaultChunkSize = 1024 * 1024
	// Alignment is the allocation alignment in bytes.
	Alignment = 8
	// MaxChunks limits the number of chunks to bound the addressable space.
	MaxChunks = 65536
)

// Stats tracks arena memory usage.
type Stats struct {
	BytesReserved uint64 // Total memory reserved from the OS
	BytesUsed     uint64 // Actual bytes requested by allocations
	ActiveChunks  uint64 // Number of chunks currently held
	TotalAllocs   uint64 // Cumulative allocation count
}

type atomicStats struct {
	BytesReserved atomic.Uint64
	BytesUsed     atomic.Uint64
	ActiveChunks  atomic.Uint64
	TotalAllocs   atomic.Uint64
}

type chunk struct {
	data    []byte
	mapping *mmap.Mapping
	offset  atomic.Int64 // Bump pointer, accessed concurrently without locks
	index   uint32
}

// Arena is a chunked bump allocator addressed by global uint64 offsets.
// Offset 0 is reserved as the null handle.
type Arena struct {
	chunkSize  int
	chunkBits  int    // Power of 2 exponent for chunk size
	chunkMask  uint64 // Mask for offset within chunk
	chunks     [MaxChunks]atomic.Pointer[chunk]
	chunkCount atomic.Uint32
	current    atomic.Pointer[chunk]
	mu         sync.Mutex
	stats      atomicStats
	acquirer   MemoryAcquirer
}

// Option is a configuration option for Arena.
type Option func(*Arena)

// WithMemoryAcquirer sets the memory budget for the arena.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(a *Arena) {
		a.acquirer = acquirer
	}
}

// New creates a new Arena with the given chunk size.
// chunkSize is rounded up to the next power of two.
func New(chunkSize int, opts ...Option) (*Arena, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	chunkBits := bits.Len(uint(chunkSize - 1))
	chunkSize = 1 << chunkBits

	a := &Arena{
		chunkSize: chunkSize,
		chunkBits: chunkBits,
		chunkMask: uint64(chunkSize - 1),
	}

	for _, opt := range opts {
		opt(a)
	}

	if err := a.allocateChunk(context.Background()); err != nil {
		return nil, err
	}
	// Reserve offset 0 as the null handle.
	if _, _, err := a.Alloc(Alignment); err != nil {
		return nil, err
	}
	return a, nil
}

// Alloc allocates size bytes and returns the global offset and the
// backing slice. The returned offset is always a multiple of Alignment
// and never 0.
func (a *Arena) Alloc(size int) (uint64, []byte, error) {
	return a.AllocContext(context.Background(), size)
}

// AllocContext allocates with a context governing budget acquisition.
func (a *Arena) AllocContext(ctx context.Context, size int) (uint64, []byte, error) {
	if size <= 0 {
		return 0, nil, nil
	}

	alignedSize := (size + Alignment - 1) &^ (Alignment - 1)
	if alignedSize > a.chunkSize {
		return 0, nil, fmt.Errorf("%w: %d > %d", ErrSizeTooLarge, alignedSize, a.chunkSize)
	}

	for {
		curr := a.current.Load()
		if curr == nil {
			return 0, nil, ErrClosed
		}

		if offset, data, ok := a.tryAllocInChunk(curr, size, alignedSize); ok {
			return offset, data, nil
		}

		// Current chunk is full. Check whether another goroutine already
		// installed a fresh chunk before taking the lock.
		if a.current.Load() != curr {
			continue
		}

		a.mu.Lock()
		if a.current.Load() != curr {
			a.mu.Unlock()
			continue
		}
		if err := a.allocateChunkLocked(ctx); err != nil {
			a.mu.Unlock()
			return 0, nil, err
		}
		a.mu.Unlock()
	}
}

func (a *Arena) tryAllocInChunk(curr *chunk, size, alignedSize int) (uint64, []byte, bool) {
	oldOffset := curr.offset.Load()
	newOffset := oldOffset + int64(alignedSize)

	if newOffset > int64(len(curr.data)) {
		return 0, nil, false
	}
	if !curr.offset.CompareAndSwap(oldOffset, newOffset) {
		return 0, nil, false
	}

	a.stats.BytesUsed.Add(uint64(size))
	a.stats.TotalAllocs.Add(1)

	// GlobalOffset = (ChunkIndex << ChunkBits) | ChunkOffset
	globalOffset := (uint64(curr.index) << a.chunkBits) | uint64(oldOffset)
	return globalOffset, curr.data[oldOffset:newOffset:newOffset], true
}

func (a *Arena) allocateChunk(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocateChunkLocked(ctx)
}

func (a *Arena) allocateChunkLocked(ctx context.Context) error {
	idx := a.chunkCount.Load()
	if idx >= MaxChunks {
		return ErrMaxChunksExceeded
	}

	if a.acquirer != nil {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancel()
		}
		if err := a.acquirer.AcquireMemory(ctx, int64(a.chunkSize)); err != nil {
			return err
		}
	}

	mapping, err := mmap.MapAnon(a.chunkSize)
	if err != nil {
		if a.acquirer != nil {
			a.acquirer.ReleaseMemory(int64(a.chunkSize))
		}
		return fmt.Errorf("arena: mapping chunk: %w", err)
	}

	newChunk := &chunk{
		data:    mapping.Bytes(),
		mapping: mapping,
		index:   idx,
	}

	a.chunks[idx].Store(newChunk)

	a.stats.BytesReserved.Add(uint64(a.chunkSize))
	a.stats.ActiveChunks.Add(1)

	// Count must be visible before the chunk becomes current, so that
	// Get never sees an offset pointing past chunkCount.
	a.chunkCount.Add(1)
	a.current.Store(newChunk)

	return nil
}

// Get returns size bytes starting at the given global offset.
// The offset must come from a previous Alloc on this arena.
func (a *Arena) Get(offset uint64, size int) []byte {
	chunkIdx := offset >> a.chunkBits
	chunkOffset := offset & a.chunkMask

	if chunkIdx >= uint64(a.chunkCount.Load()) {
		panic("arena: stale offset")
	}

	c := a.chunks[chunkIdx].Load()
	if c == nil {
		panic("arena: chunk is nil")
	}

	return c.data[chunkOffset : chunkOffset+uint64(size) : chunkOffset+uint64(size)]
}

// Stats returns the current arena statistics.
func (a *Arena) Stats() Stats {
	return Stats{
		BytesReserved: a.stats.BytesReserved.Load(),
		BytesUsed:     a.stats.BytesUsed.Load(),
		ActiveChunks:  a.stats.ActiveChunks.Load(),
		TotalAllocs:   a.stats.TotalAllocs.Load(),
	}
}

// Free releases all arena memory. Slices and offsets obtained from the
// arena become invalid. Free must not run concurrently with Alloc or
// Get; after Free the arena cannot be reused.
func (a *Arena) Free() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.acquirer != nil {
		if reserved := a.stats.BytesReserved.Load(); reserved > 0 {
			a.acquirer.ReleaseMemory(int64(reserved))
		}
	}

	count := int(a.chunkCount.Load())
	for i := 0; i < count; i++ {
		c := a.chunks[i].Load()
		if c != nil && c.mapping != nil {
			_ = c.mapping.Close()
		}
		a.chunks[i].Store(nil)
	}
	a.chunkCount.Store(0)
	a.current.Store(nil)

	a.stats.ActiveChunks.Store(0)
	a.stats.BytesReserved.Store(0)
	a.stats.BytesUsed.Store(0)
}
