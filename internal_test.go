package ibfs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vfx-coder/ibfs/bptree"
)

// TestRmdirNonEmptyFails exercises Rmdir's emptiness check directly: this
// facade's CLI/public API has no way to nest an entry under another
// directory (only single-segment root paths), so the child entry is
// inserted straight into the tree here, in the same package, to simulate
// what a richer facade's mkdir-under-arbitrary-parent would produce.
func TestRmdirNonEmptyFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.ibfs")
	require.NoError(t, Mkfs(path))

	fsys, err := Mount(path)
	require.NoError(t, err)
	defer fsys.Close()

	root := fsys.RootInode()
	require.NoError(t, fsys.Mkdir(root, "parent"))

	parentIno, found, err := fsys.lookup(root, "parent")
	require.NoError(t, err)
	require.True(t, found)

	childKey, err := bptree.NewKey(parentIno, "child")
	require.NoError(t, err)
	treeRoot := fsys.sb.RootBptBlock
	require.NoError(t, fsys.tree.Insert(&treeRoot, childKey, 999))
	require.NoError(t, fsys.rewriteSuperblockIfRootChanged(treeRoot))

	err = fsys.Rmdir(root, "parent")
	require.ErrorIs(t, err, ErrNotEmpty)
}
