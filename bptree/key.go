// Package bptree implements the persistent B+ tree directory index described
// in spec.md §4.4: one node per block, linked leaves, ORDER = 102.
package bptree

import "errors"

// Order is the B+ tree branching factor: the maximum number of keys a node
// may hold.
const Order = 102

// maxNameLen is the longest name (excluding the NUL terminator implied by the
// original C layout) that fits in the fixed 28-byte name field.
const maxNameLen = 27

// ErrNameTooLong is returned when a name is 28 bytes or longer.
var ErrNameTooLong = errors.New("bptree: name too long")

// Key is the composite directory key from spec.md §3:
// (parent_inode_id, name_hash, name[0..28]), compared lexicographically.
type Key struct {
	ParentInodeID uint32
	NameHash      uint32
	Name          [28]byte
}

// HashName computes the djb2 hash of name exactly as spec.md's GLOSSARY
// defines it: h = 5381; h = h*33 + c per byte.
func HashName(name string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(name); i++ {
		h = h*33 + uint32(name[i])
	}
	return h
}

// NewKey builds the composite key for a name within parent. Returns
// ErrNameTooLong if name does not fit the fixed 28-byte slot.
func NewKey(parentInodeID uint32, name string) (Key, error) {
	var k Key
	if len(name) > maxNameLen {
		return k, ErrNameTooLong
	}
	k.ParentInodeID = parentInodeID
	k.NameHash = HashName(name)
	copy(k.Name[:], name)
	return k, nil
}

// NameString returns the stored name as a string, trimmed at the first NUL.
func (k Key) NameString() string {
	for i, b := range k.Name {
		if b == 0 {
			return string(k.Name[:i])
		}
	}
	return string(k.Name[:])
}

// Compare returns -1, 0, or 1 comparing a to b lexicographically across
// (ParentInodeID, NameHash, Name), per spec.md §3.
func Compare(a, b Key) int {
	switch {
	case a.ParentInodeID < b.ParentInodeID:
		return -1
	case a.ParentInodeID > b.ParentInodeID:
		return 1
	}
	switch {
	case a.NameHash < b.NameHash:
		return -1
	case a.NameHash > b.NameHash:
		return 1
	}
	for i := range a.Name {
		if a.Name[i] != b.Name[i] {
			if a.Name[i] < b.Name[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
