package bptree

import (
	"encoding/binary"
	"fmt"

	"github.com/vfx-coder/ibfs/blockdev"
)

const keySize = 4 + 4 + 28 // ParentInodeID + NameHash + Name

// node is the in-memory form of one B+ tree block: is_leaf, num_keys,
// keys[Order], children[Order+1], next_leaf_block. The layout is sized so
// it packs into exactly one 4096-byte block (4+4+102*36+103*4+4 = 4096).
type node struct {
	isLeaf   bool
	numKeys  int
	keys     [Order]Key
	children [Order + 1]uint32
	nextLeaf uint32
}

func encodeNode(n *node) []byte {
	buf := make([]byte, blockdev.Size)
	order := binary.LittleEndian

	if n.isLeaf {
		order.PutUint32(buf[0:4], 1)
	}
	order.PutUint32(buf[4:8], uint32(n.numKeys))

	off := 8
	for i := 0; i < Order; i++ {
		order.PutUint32(buf[off:off+4], n.keys[i].ParentInodeID)
		order.PutUint32(buf[off+4:off+8], n.keys[i].NameHash)
		copy(buf[off+8:off+keySize], n.keys[i].Name[:])
		off += keySize
	}
	for i := 0; i < Order+1; i++ {
		order.PutUint32(buf[off:off+4], n.children[i])
		off += 4
	}
	order.PutUint32(buf[off:off+4], n.nextLeaf)

	return buf
}

func decodeNode(buf []byte) (*node, error) {
	if len(buf) != blockdev.Size {
		return nil, fmt.Errorf("bptree: node block must be %d bytes, got %d", blockdev.Size, len(buf))
	}
	order := binary.LittleEndian

	n := &node{}
	n.isLeaf = order.Uint32(buf[0:4]) != 0
	n.numKeys = int(order.Uint32(buf[4:8]))
	if n.numKeys > Order {
		return nil, fmt.Errorf("%w: num_keys=%d > Order=%d", ErrCorrupt, n.numKeys, Order)
	}

	off := 8
	for i := 0; i < Order; i++ {
		n.keys[i].ParentInodeID = order.Uint32(buf[off : off+4])
		n.keys[i].NameHash = order.Uint32(buf[off+4 : off+8])
		copy(n.keys[i].Name[:], buf[off+8:off+keySize])
		off += keySize
	}
	for i := 0; i < Order+1; i++ {
		n.children[i] = order.Uint32(buf[off : off+4])
		off += 4
	}
	n.nextLeaf = order.Uint32(buf[off : off+4])

	return n, nil
}

// descendIndex returns the child index to follow when searching or
// inserting key into an internal node: the first i with key < keys[i], or
// numKeys if no such i exists (descend into the rightmost child).
func (n *node) descendIndex(key Key) int {
	for i := 0; i < n.numKeys; i++ {
		if Compare(key, n.keys[i]) < 0 {
			return i
		}
	}
	return n.numKeys
}

// deleteDescendIndex is descendIndex's delete-time variant: on an exact
// match at keys[i], it descends right of the separator (children[i+1]), per
// spec.md's resolution of that tie-break ambiguity. Returns the child index
// and, if an exact match was found at this level, its key index (else -1).
func (n *node) deleteDescendIndex(key Key) (childIdx, keyIdx int) {
	for i := 0; i < n.numKeys; i++ {
		cmp := Compare(key, n.keys[i])
		if cmp == 0 {
			return i + 1, i
		}
		if cmp < 0 {
			return i, -1
		}
	}
	return n.numKeys, -1
}
