//go:build fuse

// Package ibfsfuse is an optional, read-only FUSE bridge exposing a mounted
// ibfs image's root directory, grounded on the teacher's inode_fuse.go
// Lookup/ReadDir/FillAttr trio and rebuilt against go-fuse's high-level
// InodeEmbedder API instead of the raw one, since only that API is
// supported by the version of the library this module depends on.
package ibfsfuse

import (
	"context"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"

	"github.com/vfx-coder/ibfs"
)

// Root is the FUSE root node for a mounted ibfs image. Only single-level
// lookups are supported, matching spec.md §6's single-segment path scope.
type Root struct {
	fs.Inode
	fsys *ibfs.FS
}

var (
	_ fs.NodeLookuper  = (*Root)(nil)
	_ fs.NodeReaddirer = (*Root)(nil)
	_ fs.NodeGetattrer = (*Root)(nil)
)

// NewRoot wraps an already-mounted ibfs.FS as a go-fuse root node.
func NewRoot(fsys *ibfs.FS) *Root {
	return &Root{fsys: fsys}
}

// Mount mounts fsys read-only at mountpoint and returns the server, which
// is already serving requests; Mount itself does not block until unmount.
func Mount(fsys *ibfs.FS, mountpoint string) (*fuse.Server, error) {
	root := NewRoot(fsys)
	server, err := fs.Mount(mountpoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName:   "ibfs",
			ReadOnly: true,
		},
	})
	if err != nil {
		return nil, err
	}
	return server, nil
}

func (r *Root) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = uint32(unix.S_IFDIR | 0o555)
	out.SetTimeout(time.Second)
	return 0
}

func (r *Root) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	info, err := r.fsys.Stat(name)
	if err != nil {
		return nil, syscall.ENOENT
	}

	mode := uint32(unix.S_IFREG | 0o444)
	if info.IsDir() {
		mode = uint32(unix.S_IFDIR | 0o555)
	}
	out.Attr.Mode = mode
	out.Attr.Size = uint64(info.Size())
	out.Attr.Mtime = uint64(info.ModTime().Unix())
	out.SetEntryTimeout(time.Second)
	out.SetAttrTimeout(time.Second)

	child := r.NewInode(ctx, &entry{fsys: r.fsys, name: name}, fs.StableAttr{Mode: mode})
	return child, 0
}

func (r *Root) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := r.fsys.ReadDir(".")
	if err != nil {
		return nil, syscall.EIO
	}

	list := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(unix.S_IFREG)
		if e.IsDir() {
			mode = unix.S_IFDIR
		}
		list = append(list, fuse.DirEntry{Name: e.Name(), Mode: mode})
	}
	return fs.NewListDirStream(list), 0
}

// entry is a leaf node: an ibfs root-level directory. Regular files are not
// modeled by ibfs.FS (no content layer), so entry only ever represents a
// directory, consistent with the facade's scope.
type entry struct {
	fs.Inode
	fsys *ibfs.FS
	name string
}

var (
	_ fs.NodeGetattrer = (*entry)(nil)
	_ fs.NodeReaddirer = (*entry)(nil)
)

func (e *entry) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	info, err := e.fsys.Stat(e.name)
	if err != nil {
		return syscall.ENOENT
	}
	out.Attr.Mode = uint32(unix.S_IFDIR | 0o555)
	out.Attr.Size = uint64(info.Size())
	out.Attr.Mtime = uint64(info.ModTime().Unix())
	out.SetTimeout(time.Second)
	return 0
}

func (e *entry) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	// ibfs only models one directory level below root; an entry's own
	// children are out of scope, so it always reports empty.
	return fs.NewListDirStream(nil), 0
}
