package ibfs

import (
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/vfx-coder/ibfs/bitmap"
	"github.com/vfx-coder/ibfs/blockdev"
	"github.com/vfx-coder/ibfs/bptree"
	"github.com/vfx-coder/ibfs/inode"
)

// tableEndBlock returns the first block past the inode table for an image
// with the given inode_count, i.e. T in spec.md §6's layout diagram.
func tableEndBlock(inodeCount uint32) uint32 {
	blocks := (inodeCount + inode.PerBlock - 1) / inode.PerBlock
	return inode.TableStart + blocks
}

// FS is a mounted ibfs image. It owns the backing file exclusively for the
// lifetime of the mount, per spec.md §5's shared-resource policy, and
// implements fs.FS/fs.ReadDirFS/fs.StatFS for interop with the standard
// library, mirroring the teacher's File/FileDir/fileinfo trio.
type FS struct {
	file *os.File
	dev  *blockdev.Device

	inodeBits *bitmap.Bitmap
	dataBits  *bitmap.Bitmap
	inodes    *inode.Table
	tree      *bptree.Tree

	sb *Superblock
}

var (
	_ fs.FS        = (*FS)(nil)
	_ fs.ReadDirFS = (*FS)(nil)
	_ fs.StatFS    = (*FS)(nil)
)

func newFS(file *os.File, sb *Superblock) *FS {
	dev := blockdev.New(file, sb.BlockCount)
	inodeBits := bitmap.New(dev, 1, 0, sb.InodeCount)
	dataBits := bitmap.New(dev, 2, 3, sb.BlockCount)
	return &FS{
		file:      file,
		dev:       dev,
		inodeBits: inodeBits,
		dataBits:  dataBits,
		inodes:    inode.NewTable(dev, sb.InodeCount, inodeBits),
		tree:      bptree.New(dev, dataBits),
		sb:        sb,
	}
}

// Close releases the backing file handle.
func (f *FS) Close() error {
	return f.file.Close()
}

// RootInode returns the inode number of the filesystem root ("/"), the
// parent_ino CLI commands operate against since only single-segment paths
// under / are supported.
func (f *FS) RootInode() uint32 {
	return f.sb.RootInode
}

// rewriteSuperblockIfRootChanged compares the tree root to what's on disk
// and rewrites block 0 only when it moved, per spec.md §5's durability note.
func (f *FS) rewriteSuperblockIfRootChanged(newRoot uint32) error {
	if f.sb.RootBptBlock == newRoot {
		return nil
	}
	log.Printf("ibfs: root_bpt_block changed %d -> %d, rewriting superblock", f.sb.RootBptBlock, newRoot)
	f.sb.RootBptBlock = newRoot
	return writeSuperblock(f.dev, f.sb)
}

func (f *FS) lookup(parent uint32, name string) (uint32, bool, error) {
	key, err := bptree.NewKey(parent, name)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s", ErrInvalidName, err)
	}
	ino, found, err := f.tree.Search(f.sb.RootBptBlock, key)
	return ino, found, err
}

// resolve maps "." or "" to the root inode and a bare "name" (no leading
// slash) to that root entry's inode. Only root-level names are looked up; a
// name containing "/" is searched for as a single name and is not found.
func (f *FS) resolve(name string) (uint32, error) {
	if name == "." || name == "" {
		return f.sb.RootInode, nil
	}
	ino, found, err := f.lookup(f.sb.RootInode, name)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrNotFound
	}
	return ino, nil
}

// Open implements fs.FS.
func (f *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	ino, err := f.resolve(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	var rec inode.Inode
	if err := f.inodes.Read(ino, &rec); err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	if rec.IsDir() {
		return f.openDir(name, ino, &rec), nil
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fmt.Errorf("ibfs: regular file content not modeled by this layer")}
}

// ReadDir implements fs.ReadDirFS.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	ino, err := f.resolve(name)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}

	var rec inode.Inode
	if err := f.inodes.Read(ino, &rec); err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	if !rec.IsDir() {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: ErrNotDirectory}
	}

	var entries []fs.DirEntry
	err = f.tree.Iterate(f.sb.RootBptBlock, ino, func(k bptree.Key, childIno uint32) error {
		var child inode.Inode
		if rerr := f.inodes.Read(childIno, &child); rerr != nil {
			return rerr
		}
		entries = append(entries, dirEntry{name: k.NameString(), ino: childIno, isDir: child.IsDir()})
		return nil
	})
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	return entries, nil
}

// Stat implements fs.StatFS.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	ino, err := f.resolve(name)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	var rec inode.Inode
	if err := f.inodes.Read(ino, &rec); err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	base := name
	if base == "" {
		base = "."
	}
	return fileInfo{name: base, ino: ino, rec: rec}, nil
}
