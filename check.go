package ibfs

import (
	"fmt"

	"github.com/vfx-coder/ibfs/bptree"
	"github.com/vfx-coder/ibfs/inode"
)

// Violation describes one failed invariant from spec.md §8's checklist.
type Violation struct {
	Rule   string
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Rule, v.Detail)
}

// Check walks the mounted image and reports every violation of spec.md §8's
// five invariants: num_keys bounds and fill factor (1), key ordering (2),
// leaf-link completeness (3), block-allocation accounting (4), and inode-bit
// accounting (5). A breach of invariant 1 or 2 ends the check with an error
// naming the offending block; breaches of 3, 4 and 5 are collected as
// Violations.
func Check(f *FS) ([]Violation, error) {
	var violations []Violation

	if f.sb.RootBptBlock != 0 {
		if err := checkNode(f, f.sb.RootBptBlock, true, nil, nil); err != nil {
			return violations, err
		}
		if err := checkLeafOrder(f, &violations); err != nil {
			return violations, err
		}
	}

	if err := checkBlockAccounting(f, &violations); err != nil {
		return violations, err
	}

	if err := checkInodeBitCount(f, &violations); err != nil {
		return violations, err
	}

	return violations, nil
}

// checkNode recursively validates num_keys bounds (invariant 1) and internal
// key ordering against the (low, high) bounds inherited from the parent
// (invariant 2).
func checkNode(f *FS, block uint32, isRoot bool, low, high *bptree.Key) error {
	n, err := f.tree.DebugReadNode(block)
	if err != nil {
		return err
	}

	minFill := f.tree.LeafMinFill()
	if !n.IsLeaf {
		minFill = f.tree.InternalMinFill()
	}
	if !isRoot && n.NumKeys < minFill {
		return fmt.Errorf("ibfs: check: block %d has %d keys, below minimum fill %d", block, n.NumKeys, minFill)
	}
	if n.NumKeys > bptree.Order {
		return fmt.Errorf("ibfs: check: block %d has %d keys, exceeds Order %d", block, n.NumKeys, bptree.Order)
	}

	for i := 1; i < n.NumKeys; i++ {
		if bptree.Compare(n.Keys[i-1], n.Keys[i]) >= 0 {
			return fmt.Errorf("ibfs: check: block %d keys not strictly increasing at index %d", block, i)
		}
	}
	if low != nil && n.NumKeys > 0 && bptree.Compare(*low, n.Keys[0]) > 0 {
		return fmt.Errorf("ibfs: check: block %d key 0 violates parent lower bound", block)
	}
	if high != nil && n.NumKeys > 0 && bptree.Compare(n.Keys[n.NumKeys-1], *high) >= 0 {
		return fmt.Errorf("ibfs: check: block %d last key violates parent upper bound", block)
	}

	if n.IsLeaf {
		return nil
	}

	for i := 0; i <= n.NumKeys; i++ {
		var childLow, childHigh *bptree.Key
		if i > 0 {
			childLow = &n.Keys[i-1]
		}
		if i < n.NumKeys {
			childHigh = &n.Keys[i]
		}
		if err := checkNode(f, n.Children[i], false, childLow, childHigh); err != nil {
			return err
		}
	}
	return nil
}

// checkLeafOrder walks the linked leaves from the leftmost one and confirms
// ascending order across leaf boundaries (invariant 3).
func checkLeafOrder(f *FS, violations *[]Violation) error {
	block := f.sb.RootBptBlock
	for {
		n, err := f.tree.DebugReadNode(block)
		if err != nil {
			return err
		}
		if n.IsLeaf {
			break
		}
		block = n.Children[0]
	}

	var prev *bptree.Key
	for block != 0 {
		n, err := f.tree.DebugReadNode(block)
		if err != nil {
			return err
		}
		for i := 0; i < n.NumKeys; i++ {
			if prev != nil && bptree.Compare(*prev, n.Keys[i]) >= 0 {
				*violations = append(*violations, Violation{
					Rule:   "leaf-order",
					Detail: fmt.Sprintf("block %d key %d out of order", block, i),
				})
			}
			prev = &n.Keys[i]
		}
		block = n.NextLeaf
	}
	return nil
}

// checkBlockAccounting confirms invariant 4: the set of allocated data
// blocks equals {block 0..2} ∪ {inode-table blocks} ∪ {live tree node
// blocks} ∪ {blocks referenced by allocated inodes' direct_blocks}, with no
// leaks (a set bit accounted for by none of those) and no missing blocks (a
// block one of those sets expects, but whose bit is clear).
func checkBlockAccounting(f *FS, violations *[]Violation) error {
	expected := make(map[uint32]bool)
	for b := uint32(0); b < tableEndBlock(f.sb.InodeCount); b++ {
		expected[b] = true
	}

	if f.sb.RootBptBlock != 0 {
		if err := collectTreeBlocks(f, f.sb.RootBptBlock, expected); err != nil {
			return err
		}
	}

	for i := uint32(0); i < f.sb.InodeCount; i++ {
		ok, err := f.inodeBits.IsSet(i)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		var rec inode.Inode
		if err := f.inodes.Read(i, &rec); err != nil {
			return err
		}
		for _, db := range rec.DirectBlocks {
			if db != 0 {
				expected[db] = true
			}
		}
	}

	var leaked, missing []uint32
	for b := uint32(3); b < f.sb.BlockCount; b++ {
		set, err := f.dataBits.IsSet(b)
		if err != nil {
			return err
		}
		switch {
		case set && !expected[b]:
			leaked = append(leaked, b)
		case !set && expected[b]:
			missing = append(missing, b)
		}
	}

	if len(leaked) > 0 || len(missing) > 0 {
		*violations = append(*violations, Violation{
			Rule: "block-accounting",
			Detail: fmt.Sprintf("%d block(s) allocated but unaccounted for %v, %d block(s) expected allocated but free %v",
				len(leaked), firstN(leaked, 5), len(missing), firstN(missing, 5)),
		})
	}
	return nil
}

// collectTreeBlocks adds block, and every block reachable from it, to set.
func collectTreeBlocks(f *FS, block uint32, set map[uint32]bool) error {
	if set[block] {
		return nil
	}
	n, err := f.tree.DebugReadNode(block)
	if err != nil {
		return err
	}
	set[block] = true
	if n.IsLeaf {
		return nil
	}
	for i := 0; i <= n.NumKeys; i++ {
		if err := collectTreeBlocks(f, n.Children[i], set); err != nil {
			return err
		}
	}
	return nil
}

// firstN returns at most the first n elements of s, for compact diagnostics.
func firstN(s []uint32, n int) []uint32 {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// checkInodeBitCount confirms invariant 5: set inode bits equal distinct
// values in the tree plus the reserved root inode.
func checkInodeBitCount(f *FS, violations *[]Violation) error {
	distinct := map[uint32]struct{}{f.sb.RootInode: {}}
	if f.sb.RootBptBlock != 0 {
		err := f.tree.IterateAll(f.sb.RootBptBlock, func(_ bptree.Key, v uint32) error {
			distinct[v] = struct{}{}
			return nil
		})
		if err != nil {
			return err
		}
	}

	set := 0
	for i := uint32(0); i < f.sb.InodeCount; i++ {
		ok, err := f.inodeBits.IsSet(i)
		if err != nil {
			return err
		}
		if ok {
			set++
		}
	}

	if set != len(distinct) {
		*violations = append(*violations, Violation{
			Rule:   "inode-bit-count",
			Detail: fmt.Sprintf("%d inode bits set, %d distinct inodes expected (tree values plus root)", set, len(distinct)),
		})
	}
	return nil
}
