package ziptree

import "encoding/binary"

// Node layout constants.
//
// Nodes live as fixed-layout records in the arena and reference each
// other by global arena offsets (offset 0 is the null handle). The
// arena is off-heap memory, so records must not contain Go pointers.
//
// Record layout (8-byte aligned):
//
//	[0-7]   Left child offset (uint64)
//	[8-15]  Right child offset (uint64)
//	[16-23] Parent offset (uint64)
//	[24-27] Rank (uint32)
//	[28-31] Key length (uint32)
//	[32...] Key bytes
const (
	nodeLeftOffset   = 0
	nodeRightOffset  = 8
	nodeParentOffset = 16
	nodeRankOffset   = 24
	nodeKeyLenOffset = 28
	nodeHeaderSize   = 32
)

// childOffset maps a side to the header offset of the child link.
func childOffset(s side) int {
	if s == left {
		return nodeLeftOffset
	}
	return nodeRightOffset
}

// newNode places a node record in the arena and returns its handle.
// The key bytes are copied into the record.
func (t *Tree) newNode(key []byte, rank uint32) (uint64, error) {
	off, data, err := t.arena.Alloc(nodeHeaderSize + len(key))
	if err != nil {
		return 0, err
	}
	// Links are zero (null) from the fresh chunk.
	binary.LittleEndian.PutUint32(data[nodeRankOffset:], rank)
	binary.LittleEndian.PutUint32(data[nodeKeyLenOffset:], uint32(len(key)))
	copy(data[nodeHeaderSize:], key)
	return off, nil
}

func (t *Tree) header(n uint64) []byte {
	return t.arena.Get(n, nodeHeaderSize)
}

func (t *Tree) childOf(n uint64, s side) uint64 {
	return binary.LittleEndian.Uint64(t.header(n)[childOffset(s):])
}

func (t *Tree) setChild(n uint64, s side, c uint64) {
	binary.LittleEndian.PutUint64(t.header(n)[childOffset(s):], c)
}

func (t *Tree) leftOf(n uint64) uint64 {
	return binary.LittleEndian.Uint64(t.header(n)[nodeLeftOffset:])
}

func (t *Tree) rightOf(n uint64) uint64 {
	return binary.LittleEndian.Uint64(t.header(n)[nodeRightOffset:])
}

func (t *Tree) parentOf(n uint64) uint64 {
	return binary.LittleEndian.Uint64(t.header(n)[nodeParentOffset:])
}

func (t *Tree) setParent(n, p uint64) {
	binary.LittleEndian.PutUint64(t.header(n)[nodeParentOffset:], p)
}

func (t *Tree) rankOf(n uint64) uint32 {
	return binary.LittleEndian.Uint32(t.header(n)[nodeRankOffset:])
}

// keyOf returns the key bytes of n. The slice aliases arena memory and
// is immutable by contract.
func (t *Tree) keyOf(n uint64) []byte {
	keyLen := binary.LittleEndian.Uint32(t.header(n)[nodeKeyLenOffset:])
	if keyLen == 0 {
		return nil
	}
	return t.arena.Get(n+nodeHeaderSize, int(keyLen))
}
