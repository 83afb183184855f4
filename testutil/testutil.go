package testutil

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"sort"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// UniqueKeys returns n distinct 8-byte keys in random insertion order.
// The byte layout is big-endian so bytewise order matches numeric order.
func (r *RNG) UniqueKeys(n int) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	perm := r.rand.Perm(n)
	keys := make([][]byte, n)
	for i, v := range perm {
		keys[i] = encodeKey(uint64(v))
	}
	return keys
}

// Shuffle randomizes the order of keys in place.
func (r *RNG) Shuffle(keys [][]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})
}

// SequentialKeys returns n 8-byte keys in ascending order.
func SequentialKeys(n int) [][]byte {
	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = encodeKey(uint64(i))
	}
	return keys
}

// WordKeys returns short human-readable keys, useful for failure output.
func WordKeys(n int) [][]byte {
	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("key-%06d", i))
	}
	return keys
}

func encodeKey(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Model is a sorted reference set used as a ground-truth oracle. It is
// not safe for concurrent use.
type Model struct {
	keys []string
}

// NewModel creates an empty reference model.
func NewModel() *Model {
	return &Model{}
}

// Insert adds key to the model, reporting whether it was absent.
func (m *Model) Insert(key []byte) bool {
	s := string(key)
	i := sort.SearchStrings(m.keys, s)
	if i < len(m.keys) && m.keys[i] == s {
		return false
	}
	m.keys = append(m.keys, "")
	copy(m.keys[i+1:], m.keys[i:])
	m.keys[i] = s
	return true
}

// Delete removes key from the model, reporting whether it was present.
func (m *Model) Delete(key []byte) bool {
	s := string(key)
	i := sort.SearchStrings(m.keys, s)
	if i >= len(m.keys) || m.keys[i] != s {
		return false
	}
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	return true
}

// Contains reports whether key is in the model.
func (m *Model) Contains(key []byte) bool {
	s := string(key)
	i := sort.SearchStrings(m.keys, s)
	return i < len(m.keys) && m.keys[i] == s
}

// Size returns the number of keys in the model.
func (m *Model) Size() int {
	return len(m.keys)
}

// Keys returns the model's keys in ascending order.
func (m *Model) Keys() [][]byte {
	out := make([][]byte, len(m.keys))
	for i, s := range m.keys {
		out[i] = []byte(s)
	}
	return out
}

// Ceiling returns the smallest key >= target, or nil if none exists.
func (m *Model) Ceiling(target []byte) []byte {
	s := string(target)
	i := sort.SearchStrings(m.keys, s)
	if i >= len(m.keys) {
		return nil
	}
	return []byte(m.keys[i])
}
