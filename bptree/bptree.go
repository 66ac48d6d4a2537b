package bptree

import (
	"fmt"

	"github.com/vfx-coder/ibfs/bitmap"
	"github.com/vfx-coder/ibfs/blockdev"
)

// leafMinFill and internalMinFill are the minimum key counts for non-root
// leaf and internal nodes, per spec.md §3: ⌈ORDER/2⌉ for leaves, ⌈ORDER/2⌉-1
// for internal nodes. The root is exempt from both. leafMinFill must agree
// with insertLeaf's split point: splitting Order+1 keys there leaves the new
// sibling with floor((Order+1)/2) keys, which must not fall below this
// minimum, and two underflowed leaves (leafMinFill-1 each) must still fit
// within one merged node's Order capacity.
const (
	leafMinFill     = (Order + 1) / 2
	internalMinFill = (Order+1)/2 - 1
)

// Tree is the persistent B+ tree directory index. Every node is one block;
// leaves are singly linked via next_leaf_block for range iteration.
type Tree struct {
	dev    *blockdev.Device
	blocks *bitmap.Bitmap
}

// New returns a Tree that stores its nodes as data blocks through blocks.
func New(dev *blockdev.Device, blocks *bitmap.Bitmap) *Tree {
	return &Tree{dev: dev, blocks: blocks}
}

func (t *Tree) readNode(block uint32) (*node, error) {
	buf := make([]byte, blockdev.Size)
	if err := t.dev.ReadBlock(block, buf); err != nil {
		return nil, fmt.Errorf("bptree: read node %d: %w", block, err)
	}
	return decodeNode(buf)
}

func (t *Tree) writeNode(block uint32, n *node) error {
	if err := t.dev.WriteBlock(block, encodeNode(n)); err != nil {
		return fmt.Errorf("bptree: write node %d: %w", block, err)
	}
	return nil
}

func (t *Tree) allocBlock() (uint32, error) {
	return t.blocks.Alloc()
}

func (t *Tree) freeBlock(block uint32) error {
	return t.blocks.Free(block)
}

// Search implements spec.md §4.4.1: descend from root picking the first
// child whose separator exceeds key, then scan the leaf for an exact match.
func (t *Tree) Search(root uint32, key Key) (value uint32, found bool, err error) {
	if root == 0 {
		return 0, false, nil
	}

	block := root
	for {
		n, err := t.readNode(block)
		if err != nil {
			return 0, false, err
		}
		if n.isLeaf {
			for i := 0; i < n.numKeys; i++ {
				cmp := Compare(key, n.keys[i])
				if cmp == 0 {
					return n.children[i], true, nil
				}
				if cmp < 0 {
					break
				}
			}
			return 0, false, nil
		}
		block = n.children[n.descendIndex(key)]
	}
}

type insertResult struct {
	split         bool
	promotedKey   Key
	promotedChild uint32
}

// Insert implements spec.md §4.4.2. It also rejects a key already present
// (spec.md §8's law that duplicate insert fails without structural change),
// checked up front so no blocks are touched on the duplicate path.
func (t *Tree) Insert(rootPtr *uint32, key Key, value uint32) error {
	if _, found, err := t.Search(*rootPtr, key); err != nil {
		return err
	} else if found {
		return ErrExists
	}

	if *rootPtr == 0 {
		block, err := t.allocBlock()
		if err != nil {
			return fmt.Errorf("bptree: insert: alloc root leaf: %w", err)
		}
		n := &node{isLeaf: true, numKeys: 1}
		n.keys[0] = key
		n.children[0] = value
		if err := t.writeNode(block, n); err != nil {
			_ = t.freeBlock(block)
			return err
		}
		*rootPtr = block
		return nil
	}

	res, err := t.insertRec(*rootPtr, key, value)
	if err != nil {
		return err
	}
	if !res.split {
		return nil
	}

	newRoot, err := t.allocBlock()
	if err != nil {
		return fmt.Errorf("bptree: insert: alloc new root: %w", err)
	}
	n := &node{isLeaf: false, numKeys: 1}
	n.keys[0] = res.promotedKey
	n.children[0] = *rootPtr
	n.children[1] = res.promotedChild
	if err := t.writeNode(newRoot, n); err != nil {
		_ = t.freeBlock(newRoot)
		return err
	}
	*rootPtr = newRoot
	return nil
}

func (t *Tree) insertRec(block uint32, key Key, value uint32) (*insertResult, error) {
	n, err := t.readNode(block)
	if err != nil {
		return nil, err
	}

	if n.isLeaf {
		return t.insertLeaf(block, n, key, value)
	}
	return t.insertInternal(block, n, key, value)
}

func (t *Tree) insertLeaf(block uint32, n *node, key Key, value uint32) (*insertResult, error) {
	if n.numKeys < Order {
		insertKeyChild(n.keys[:], n.children[:], n.numKeys, key, value)
		n.numKeys++
		return &insertResult{}, t.writeNode(block, n)
	}

	// Full leaf: merge into a temp array of Order+1 and split.
	var tmpKeys [Order + 1]Key
	var tmpChildren [Order + 1]uint32
	copy(tmpKeys[:Order], n.keys[:Order])
	copy(tmpChildren[:Order], n.children[:Order])
	insertKeyChild(tmpKeys[:], tmpChildren[:], Order, key, value)

	total := Order + 1
	splitPoint := (total + 1) / 2

	newBlock, err := t.allocBlock()
	if err != nil {
		return nil, fmt.Errorf("bptree: insert: alloc sibling leaf: %w", err)
	}

	sibling := &node{isLeaf: true, numKeys: total - splitPoint}
	copy(sibling.keys[:sibling.numKeys], tmpKeys[splitPoint:total])
	copy(sibling.children[:sibling.numKeys], tmpChildren[splitPoint:total])
	sibling.nextLeaf = n.nextLeaf

	*n = node{isLeaf: true, numKeys: splitPoint, nextLeaf: newBlock}
	copy(n.keys[:splitPoint], tmpKeys[:splitPoint])
	copy(n.children[:splitPoint], tmpChildren[:splitPoint])

	if err := t.writeNode(block, n); err != nil {
		return nil, err
	}
	if err := t.writeNode(newBlock, sibling); err != nil {
		return nil, err
	}

	return &insertResult{split: true, promotedKey: sibling.keys[0], promotedChild: newBlock}, nil
}

func (t *Tree) insertInternal(block uint32, n *node, key Key, value uint32) (*insertResult, error) {
	childIdx := n.descendIndex(key)
	childBlock := n.children[childIdx]

	childRes, err := t.insertRec(childBlock, key, value)
	if err != nil {
		return nil, err
	}
	if !childRes.split {
		return &insertResult{}, nil
	}

	pk, pc := childRes.promotedKey, childRes.promotedChild

	if n.numKeys < Order {
		i := 0
		for i < n.numKeys && Compare(pk, n.keys[i]) >= 0 {
			i++
		}
		copy(n.keys[i+1:n.numKeys+1], n.keys[i:n.numKeys])
		copy(n.children[i+2:n.numKeys+2], n.children[i+1:n.numKeys+1])
		n.keys[i] = pk
		n.children[i+1] = pc
		n.numKeys++
		return &insertResult{}, t.writeNode(block, n)
	}

	// Full internal node: merge into temp arrays of Order+1 keys /
	// Order+2 children and split, promoting the middle key.
	var tmpKeys [Order + 1]Key
	var tmpChildren [Order + 2]uint32
	copy(tmpKeys[:Order], n.keys[:Order])
	copy(tmpChildren[:Order+1], n.children[:Order+1])

	i := 0
	for i < Order && Compare(pk, tmpKeys[i]) >= 0 {
		i++
	}
	copy(tmpKeys[i+1:Order+1], tmpKeys[i:Order])
	copy(tmpChildren[i+2:Order+2], tmpChildren[i+1:Order+1])
	tmpKeys[i] = pk
	tmpChildren[i+1] = pc

	total := Order + 1
	splitPoint := total / 2
	promoted := tmpKeys[splitPoint]

	newBlock, err := t.allocBlock()
	if err != nil {
		return nil, fmt.Errorf("bptree: insert: alloc sibling internal: %w", err)
	}

	sibling := &node{isLeaf: false, numKeys: total - splitPoint - 1}
	copy(sibling.keys[:sibling.numKeys], tmpKeys[splitPoint+1:total])
	copy(sibling.children[:sibling.numKeys+1], tmpChildren[splitPoint+1:total+1])

	*n = node{isLeaf: false, numKeys: splitPoint}
	copy(n.keys[:splitPoint], tmpKeys[:splitPoint])
	copy(n.children[:splitPoint+1], tmpChildren[:splitPoint+1])

	if err := t.writeNode(block, n); err != nil {
		return nil, err
	}
	if err := t.writeNode(newBlock, sibling); err != nil {
		return nil, err
	}

	return &insertResult{split: true, promotedKey: promoted, promotedChild: newBlock}, nil
}

// insertKeyChild inserts (key, child) in sorted position within keys[:n]/
// children[:n], shifting the tail right by one. Callers must ensure the
// backing arrays have room for n+1 entries.
func insertKeyChild(keys []Key, children []uint32, n int, key Key, child uint32) {
	i := 0
	for i < n && Compare(key, keys[i]) >= 0 {
		i++
	}
	copy(keys[i+1:n+1], keys[i:n])
	copy(children[i+1:n+1], children[i:n])
	keys[i] = key
	children[i] = child
}

// Delete implements spec.md §4.4.3, including the full borrow-then-merge
// rebalancing the original reference left incomplete (see SPEC_FULL.md §4.4
// and DESIGN.md).
func (t *Tree) Delete(rootPtr *uint32, key Key) error {
	if rootPtr == nil || *rootPtr == 0 {
		return ErrNotFound
	}

	underflow, err := t.deleteRec(*rootPtr, key, true)
	if err != nil {
		return err
	}
	if !underflow {
		return nil
	}

	root, err := t.readNode(*rootPtr)
	if err != nil {
		return err
	}

	switch {
	case !root.isLeaf && root.numKeys == 0:
		old := *rootPtr
		*rootPtr = root.children[0]
		return t.freeBlock(old)
	case root.isLeaf && root.numKeys == 0:
		old := *rootPtr
		*rootPtr = 0
		return t.freeBlock(old)
	}
	return nil
}

func (t *Tree) deleteRec(block uint32, key Key, isRoot bool) (underflow bool, err error) {
	n, err := t.readNode(block)
	if err != nil {
		return false, err
	}

	if n.isLeaf {
		idx := -1
		for i := 0; i < n.numKeys; i++ {
			cmp := Compare(key, n.keys[i])
			if cmp == 0 {
				idx = i
				break
			}
			if cmp < 0 {
				break
			}
		}
		if idx == -1 {
			return false, ErrNotFound
		}

		copy(n.keys[idx:n.numKeys-1], n.keys[idx+1:n.numKeys])
		copy(n.children[idx:n.numKeys-1], n.children[idx+1:n.numKeys])
		n.numKeys--
		n.keys[n.numKeys] = Key{}
		n.children[n.numKeys] = 0

		if err := t.writeNode(block, n); err != nil {
			return false, err
		}

		if isRoot {
			return n.numKeys == 0, nil
		}
		return n.numKeys < leafMinFill, nil
	}

	childIdx, _ := n.deleteDescendIndex(key)
	childBlock := n.children[childIdx]

	childUnderflow, err := t.deleteRec(childBlock, key, false)
	if err != nil {
		return false, err
	}
	if !childUnderflow {
		return false, nil
	}

	merged, err := t.rebalanceChild(block, n, childIdx)
	if err != nil {
		return false, err
	}
	if !merged {
		return false, nil
	}

	if isRoot {
		return n.numKeys == 0, nil
	}
	return n.numKeys < internalMinFill, nil
}

// rebalanceChild fixes an underflowed child of n (stored at parentBlock,
// children index childIdx) by borrowing from a sibling if one has spare
// capacity, else merging with a sibling. It persists n, the child, and
// whichever sibling was touched. Returns true if a merge occurred (meaning
// n itself lost a key and may now need to propagate underflow upward).
func (t *Tree) rebalanceChild(parentBlock uint32, n *node, childIdx int) (merged bool, err error) {
	childBlock := n.children[childIdx]
	child, err := t.readNode(childBlock)
	if err != nil {
		return false, err
	}

	var leftBlock, rightBlock uint32
	var left, right *node
	if childIdx > 0 {
		leftBlock = n.children[childIdx-1]
		if left, err = t.readNode(leftBlock); err != nil {
			return false, err
		}
	}
	if childIdx < n.numKeys {
		rightBlock = n.children[childIdx+1]
		if right, err = t.readNode(rightBlock); err != nil {
			return false, err
		}
	}

	min := internalMinFill
	if child.isLeaf {
		min = leafMinFill
	}

	if left != nil && left.numKeys > min {
		t.borrowFromLeft(n, childIdx, child, left)
		if err := t.writeNode(leftBlock, left); err != nil {
			return false, err
		}
		if err := t.writeNode(childBlock, child); err != nil {
			return false, err
		}
		return false, t.writeNode(parentBlock, n)
	}

	if right != nil && right.numKeys > min {
		t.borrowFromRight(n, childIdx, child, right)
		if err := t.writeNode(rightBlock, right); err != nil {
			return false, err
		}
		if err := t.writeNode(childBlock, child); err != nil {
			return false, err
		}
		return false, t.writeNode(parentBlock, n)
	}

	if left != nil {
		t.mergeInto(n, childIdx-1, left, child)
		if err := t.writeNode(leftBlock, left); err != nil {
			return false, err
		}
		if err := t.freeBlock(childBlock); err != nil {
			return false, err
		}
		return true, t.writeNode(parentBlock, n)
	}

	// Only a right sibling is available.
	t.mergeInto(n, childIdx, child, right)
	if err := t.writeNode(childBlock, child); err != nil {
		return false, err
	}
	if err := t.freeBlock(rightBlock); err != nil {
		return false, err
	}
	return true, t.writeNode(parentBlock, n)
}

// borrowFromLeft moves left's last entry into child's front, rotating the
// parent separator at childIdx-1 through the move.
func (t *Tree) borrowFromLeft(parent *node, childIdx int, child, left *node) {
	if child.isLeaf {
		copy(child.keys[1:child.numKeys+1], child.keys[:child.numKeys])
		copy(child.children[1:child.numKeys+1], child.children[:child.numKeys])
		child.keys[0] = left.keys[left.numKeys-1]
		child.children[0] = left.children[left.numKeys-1]
		child.numKeys++

		left.keys[left.numKeys-1] = Key{}
		left.children[left.numKeys-1] = 0
		left.numKeys--

		parent.keys[childIdx-1] = child.keys[0]
		return
	}

	copy(child.keys[1:child.numKeys+1], child.keys[:child.numKeys])
	copy(child.children[1:child.numKeys+2], child.children[:child.numKeys+1])
	child.keys[0] = parent.keys[childIdx-1]
	child.children[0] = left.children[left.numKeys]
	child.numKeys++

	parent.keys[childIdx-1] = left.keys[left.numKeys-1]

	left.keys[left.numKeys-1] = Key{}
	left.children[left.numKeys] = 0
	left.numKeys--
}

// borrowFromRight moves right's first entry onto child's end, rotating the
// parent separator at childIdx through the move.
func (t *Tree) borrowFromRight(parent *node, childIdx int, child, right *node) {
	if child.isLeaf {
		child.keys[child.numKeys] = right.keys[0]
		child.children[child.numKeys] = right.children[0]
		child.numKeys++

		copy(right.keys[:right.numKeys-1], right.keys[1:right.numKeys])
		copy(right.children[:right.numKeys-1], right.children[1:right.numKeys])
		right.numKeys--
		right.keys[right.numKeys] = Key{}
		right.children[right.numKeys] = 0

		parent.keys[childIdx] = right.keys[0]
		return
	}

	child.keys[child.numKeys] = parent.keys[childIdx]
	child.children[child.numKeys+1] = right.children[0]
	child.numKeys++

	parent.keys[childIdx] = right.keys[0]

	copy(right.keys[:right.numKeys-1], right.keys[1:right.numKeys])
	copy(right.children[:right.numKeys], right.children[1:right.numKeys+1])
	right.numKeys--
	right.keys[right.numKeys] = Key{}
	right.children[right.numKeys+1] = 0
}

// mergeInto absorbs right into left (dropping the parent separator at
// sepIdx, and the parent's pointer to right), pulling the separator down
// for internal merges. The parent's own key/children arrays are compacted
// in place; the caller frees right's block afterward.
func (t *Tree) mergeInto(parent *node, sepIdx int, left, right *node) {
	if left.isLeaf {
		copy(left.keys[left.numKeys:left.numKeys+right.numKeys], right.keys[:right.numKeys])
		copy(left.children[left.numKeys:left.numKeys+right.numKeys], right.children[:right.numKeys])
		left.numKeys += right.numKeys
		left.nextLeaf = right.nextLeaf
	} else {
		left.keys[left.numKeys] = parent.keys[sepIdx]
		copy(left.keys[left.numKeys+1:left.numKeys+1+right.numKeys], right.keys[:right.numKeys])
		copy(left.children[left.numKeys+1:left.numKeys+2+right.numKeys], right.children[:right.numKeys+1])
		left.numKeys += right.numKeys + 1
	}

	copy(parent.keys[sepIdx:parent.numKeys-1], parent.keys[sepIdx+1:parent.numKeys])
	copy(parent.children[sepIdx+1:parent.numKeys], parent.children[sepIdx+2:parent.numKeys+1])
	parent.numKeys--
	parent.keys[parent.numKeys] = Key{}
	parent.children[parent.numKeys+1] = 0
}

// Iterate implements spec.md §4.4.4: a finite, non-restartable walk of
// entries whose ParentInodeID equals target, in ascending key order.
func (t *Tree) Iterate(root uint32, target uint32, visit func(Key, uint32) error) error {
	if root == 0 {
		return nil
	}

	probe := Key{ParentInodeID: target}
	block := root
	for {
		n, err := t.readNode(block)
		if err != nil {
			return err
		}
		if n.isLeaf {
			break
		}
		block = n.children[n.descendIndex(probe)]
	}

	for block != 0 {
		n, err := t.readNode(block)
		if err != nil {
			return err
		}
		if !n.isLeaf {
			return fmt.Errorf("%w: expected leaf at block %d during iterate", ErrCorrupt, block)
		}

		for i := 0; i < n.numKeys; i++ {
			if n.keys[i].ParentInodeID == target {
				if err := visit(n.keys[i], n.children[i]); err != nil {
					return err
				}
			} else if n.keys[i].ParentInodeID > target {
				return nil
			}
		}

		block = n.nextLeaf
	}
	return nil
}
