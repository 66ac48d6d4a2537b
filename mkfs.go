package ibfs

import (
	"fmt"
	"os"

	"github.com/vfx-coder/ibfs/bitmap"
	"github.com/vfx-coder/ibfs/blockdev"
	"github.com/vfx-coder/ibfs/inode"
)

// Mkfs creates or truncates the image at path and formats it per spec.md
// §4.5: zero the two bitmap blocks, mark the inode-table blocks permanently
// allocated in the data bitmap, allocate inode 0 as the root directory,
// write the superblock, then optionally seed demo entries through Mkdir,
// which rewrites the superblock whenever the tree root changes.
func Mkfs(path string, opts ...MkfsOption) error {
	cfg := mkfsConfig{blockCount: defaultBlockCount, inodeCount: defaultInodeCount}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.blockCount <= tableEndBlock(cfg.inodeCount) {
		return fmt.Errorf("ibfs: mkfs: block_count %d too small for inode_count %d", cfg.blockCount, cfg.inodeCount)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("ibfs: mkfs: create %s: %w", path, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(cfg.blockCount) * blockdev.Size); err != nil {
		return fmt.Errorf("ibfs: mkfs: truncate: %w", err)
	}

	dev := blockdev.New(f, cfg.blockCount)

	if err := bitmap.Zero(dev, 1); err != nil {
		return fmt.Errorf("ibfs: mkfs: zero inode bitmap: %w", err)
	}
	if err := bitmap.Zero(dev, 2); err != nil {
		return fmt.Errorf("ibfs: mkfs: zero data bitmap: %w", err)
	}

	inodeBits := bitmap.New(dev, 1, 0, cfg.inodeCount)
	dataBits := bitmap.New(dev, 2, 3, cfg.blockCount)

	tableEnd := tableEndBlock(cfg.inodeCount)
	for b := uint32(3); b < tableEnd; b++ {
		if _, err := dataBits.Alloc(); err != nil {
			return fmt.Errorf("ibfs: mkfs: reserve inode table block %d: %w", b, err)
		}
	}

	inodes := inode.NewTable(dev, cfg.inodeCount, inodeBits)
	rootIno, err := inodes.Alloc(inode.S_IFDIR)
	if err != nil {
		return fmt.Errorf("ibfs: mkfs: allocate root inode: %w", err)
	}
	if rootIno != 0 {
		return fmt.Errorf("ibfs: mkfs: expected root inode 0, got %d", rootIno)
	}

	sb := &Superblock{
		Magic:        Magic,
		Version:      Version,
		BlockSize:    blockdev.Size,
		InodeCount:   cfg.inodeCount,
		BlockCount:   cfg.blockCount,
		RootInode:    rootIno,
		RootBptBlock: 0,
	}
	if err := writeSuperblock(dev, sb); err != nil {
		return fmt.Errorf("ibfs: mkfs: write superblock: %w", err)
	}

	if len(cfg.seed) == 0 {
		return nil
	}

	fsys := newFS(f, sb)
	for _, name := range cfg.seed {
		if err := fsys.Mkdir(rootIno, name); err != nil {
			return fmt.Errorf("ibfs: mkfs: seed %q: %w", name, err)
		}
	}
	return nil
}
