package testutil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniqueKeys(t *testing.T) {
	rng := NewRNG(4711)

	keys := rng.UniqueKeys(100)
	require.Len(t, keys, 100)

	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		assert.False(t, seen[string(k)])
		seen[string(k)] = true
	}
}

func TestUniqueKeys_Deterministic(t *testing.T) {
	a := NewRNG(42).UniqueKeys(50)
	b := NewRNG(42).UniqueKeys(50)
	assert.Equal(t, a, b)
}

func TestSequentialKeys_Sorted(t *testing.T) {
	keys := SequentialKeys(100)
	for i := 1; i < len(keys); i++ {
		assert.Negative(t, bytes.Compare(keys[i-1], keys[i]))
	}
}

func TestModel(t *testing.T) {
	m := NewModel()

	assert.True(t, m.Insert([]byte("b")))
	assert.True(t, m.Insert([]byte("a")))
	assert.True(t, m.Insert([]byte("c")))
	assert.False(t, m.Insert([]byte("b")))

	assert.Equal(t, 3, m.Size())
	assert.True(t, m.Contains([]byte("a")))
	assert.False(t, m.Contains([]byte("z")))

	keys := m.Keys()
	require.Len(t, keys, 3)
	assert.Equal(t, []byte("a"), keys[0])
	assert.Equal(t, []byte("c"), keys[2])

	assert.Equal(t, []byte("b"), m.Ceiling([]byte("ab")))
	assert.Equal(t, []byte("b"), m.Ceiling([]byte("b")))
	assert.Nil(t, m.Ceiling([]byte("d")))

	assert.True(t, m.Delete([]byte("b")))
	assert.False(t, m.Delete([]byte("b")))
	assert.Equal(t, 2, m.Size())
}
