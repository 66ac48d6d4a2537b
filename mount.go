package ibfs

import (
	"fmt"
	"os"

	"github.com/vfx-coder/ibfs/blockdev"
)

// Mount opens the image at path read-write and validates the superblock per
// spec.md §4.5: magic, block_size, nonzero block_count/inode_count, and
// root_inode < inode_count. Failure closes the file and reports.
func Mount(path string) (*FS, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("ibfs: mount: open %s: %w", path, err)
	}

	sb, err := readSuperblock(blockdev.New(f, 0))
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := validateSuperblock(sb); err != nil {
		f.Close()
		return nil, err
	}

	return newFS(f, sb), nil
}

func validateSuperblock(sb *Superblock) error {
	switch {
	case sb.Magic != Magic:
		return ErrInvalidImage
	case sb.Version != Version:
		return fmt.Errorf("%w: got version %d", ErrInvalidVersion, sb.Version)
	case sb.BlockSize != blockdev.Size:
		return fmt.Errorf("%w: block_size %d != %d", ErrCorruptSuperblock, sb.BlockSize, blockdev.Size)
	case sb.BlockCount == 0 || sb.InodeCount == 0:
		return fmt.Errorf("%w: zero block_count or inode_count", ErrCorruptSuperblock)
	case sb.RootInode >= sb.InodeCount:
		return fmt.Errorf("%w: root_inode %d >= inode_count %d", ErrCorruptSuperblock, sb.RootInode, sb.InodeCount)
	}
	return nil
}
