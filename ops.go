package ibfs

import (
	"errors"
	"fmt"

	"github.com/vfx-coder/ibfs/bptree"
	"github.com/vfx-coder/ibfs/inode"
)

func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	case len(name) >= 28:
		return fmt.Errorf("%w: %q is >= 28 bytes", ErrInvalidName, name)
	case name == ".", name == "..":
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	return nil
}

// Mkdir implements spec.md §4.5's mkdir(parent_ino, name): validate the
// name, reject a conflicting key, allocate a directory inode, insert it,
// and rewrite the superblock if the tree root moved. The allocated inode is
// released if any later step fails.
func (f *FS) Mkdir(parentIno uint32, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	key, err := bptree.NewKey(parentIno, name)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidName, err)
	}

	if _, found, err := f.tree.Search(f.sb.RootBptBlock, key); err != nil {
		return err
	} else if found {
		return ErrExists
	}

	newIno, err := f.inodes.Alloc(inode.S_IFDIR)
	if err != nil {
		return fmt.Errorf("ibfs: mkdir: %w", err)
	}

	root := f.sb.RootBptBlock
	if err := f.tree.Insert(&root, key, newIno); err != nil {
		if ferr := f.inodes.Free(newIno); ferr != nil {
			return fmt.Errorf("ibfs: mkdir: insert failed (%w) and inode rollback failed: %s", err, ferr)
		}
		return fmt.Errorf("ibfs: mkdir: %w", err)
	}

	return f.rewriteSuperblockIfRootChanged(root)
}

// Rmdir implements spec.md §4.5's rmdir(parent_ino, name): confirm the
// target is a directory and empty, remove its tree entry, rewrite the
// superblock if the root moved, then free its inode.
func (f *FS) Rmdir(parentIno uint32, name string) error {
	target, key, err := f.findChild(parentIno, name)
	if err != nil {
		return err
	}

	var rec inode.Inode
	if err := f.inodes.Read(target, &rec); err != nil {
		return fmt.Errorf("ibfs: rmdir: %w", err)
	}
	if !rec.IsDir() {
		return ErrNotDirectory
	}

	errNotEmpty := errors.New("ibfs: rmdir: directory has an entry")
	err = f.tree.Iterate(f.sb.RootBptBlock, target, func(bptree.Key, uint32) error {
		return errNotEmpty
	})
	if err != nil {
		if errors.Is(err, errNotEmpty) {
			return ErrNotEmpty
		}
		return err
	}

	root := f.sb.RootBptBlock
	if err := f.tree.Delete(&root, key); err != nil {
		return fmt.Errorf("ibfs: rmdir: %w", err)
	}
	if err := f.rewriteSuperblockIfRootChanged(root); err != nil {
		return err
	}

	return f.inodes.Free(target)
}

// Remove implements spec.md §4.5's rm(parent_ino, name): as Rmdir, but
// requires a non-directory, and frees every nonzero direct block before
// freeing the inode. Single-indirect block traversal is out of scope.
func (f *FS) Remove(parentIno uint32, name string) error {
	target, key, err := f.findChild(parentIno, name)
	if err != nil {
		return err
	}

	var rec inode.Inode
	if err := f.inodes.Read(target, &rec); err != nil {
		return fmt.Errorf("ibfs: rm: %w", err)
	}
	if rec.IsDir() {
		return ErrIsDirectory
	}

	root := f.sb.RootBptBlock
	if err := f.tree.Delete(&root, key); err != nil {
		return fmt.Errorf("ibfs: rm: %w", err)
	}
	if err := f.rewriteSuperblockIfRootChanged(root); err != nil {
		return err
	}

	for _, blk := range rec.DirectBlocks {
		if blk == 0 {
			continue
		}
		if err := f.dataBits.Free(blk); err != nil {
			return fmt.Errorf("ibfs: rm: free direct block %d: %w", blk, err)
		}
	}

	return f.inodes.Free(target)
}

func (f *FS) findChild(parentIno uint32, name string) (ino uint32, key bptree.Key, err error) {
	if err := validateName(name); err != nil {
		return 0, bptree.Key{}, err
	}
	key, err = bptree.NewKey(parentIno, name)
	if err != nil {
		return 0, bptree.Key{}, fmt.Errorf("%w: %s", ErrInvalidName, err)
	}
	ino, found, err := f.tree.Search(f.sb.RootBptBlock, key)
	if err != nil {
		return 0, bptree.Key{}, err
	}
	if !found {
		return 0, bptree.Key{}, ErrNotFound
	}
	return ino, key, nil
}

// DirEntry pairs a directory entry's name with its inode record, the
// payload ls hands to its visitor.
type DirEntry struct {
	Name  string
	Inode inode.Inode
}

// Ls implements spec.md §4.5's ls(dir_ino): iterate the directory and
// surface each (name, inode_read(value)) pair to visit.
func (f *FS) Ls(dirIno uint32, visit func(DirEntry) error) error {
	var dir inode.Inode
	if err := f.inodes.Read(dirIno, &dir); err != nil {
		return fmt.Errorf("ibfs: ls: %w", err)
	}
	if !dir.IsDir() {
		return ErrNotDirectory
	}

	return f.tree.Iterate(f.sb.RootBptBlock, dirIno, func(k bptree.Key, childIno uint32) error {
		var rec inode.Inode
		if err := f.inodes.Read(childIno, &rec); err != nil {
			return err
		}
		return visit(DirEntry{Name: k.NameString(), Inode: rec})
	})
}
