package bptree

// DebugNode is a read-only snapshot of one on-disk node, exposed for offline
// integrity checking (spec.md §8's invariants 1-3). It is not used by any
// mutating operation.
type DebugNode struct {
	IsLeaf   bool
	NumKeys  int
	Keys     [Order]Key
	Children [Order + 1]uint32
	NextLeaf uint32
}

// DebugReadNode reads and validates the node at block, returning a copy safe
// for a checker to inspect without risk of mutating tree state.
func (t *Tree) DebugReadNode(block uint32) (*DebugNode, error) {
	n, err := t.readNode(block)
	if err != nil {
		return nil, err
	}
	return &DebugNode{
		IsLeaf:   n.isLeaf,
		NumKeys:  n.numKeys,
		Keys:     n.keys,
		Children: n.children,
		NextLeaf: n.nextLeaf,
	}, nil
}

// LeafMinFill returns the minimum key count for a non-root leaf.
func (t *Tree) LeafMinFill() int { return leafMinFill }

// InternalMinFill returns the minimum key count for a non-root internal node.
func (t *Tree) InternalMinFill() int { return internalMinFill }

// IterateAll walks every leaf from the leftmost one to the end of the linked
// list, regardless of ParentInodeID, emitting every (key, value) pair in
// the tree in ascending order. Used by offline integrity checking; ordinary
// directory listing uses the parent-scoped Iterate instead.
func (t *Tree) IterateAll(root uint32, visit func(Key, uint32) error) error {
	if root == 0 {
		return nil
	}

	block := root
	for {
		n, err := t.readNode(block)
		if err != nil {
			return err
		}
		if n.isLeaf {
			break
		}
		block = n.children[0]
	}

	for block != 0 {
		n, err := t.readNode(block)
		if err != nil {
			return err
		}
		for i := 0; i < n.numKeys; i++ {
			if err := visit(n.keys[i], n.children[i]); err != nil {
				return err
			}
		}
		block = n.nextLeaf
	}
	return nil
}
