package ibfs

import (
	"io/fs"
	"time"

	"github.com/vfx-coder/ibfs/inode"
)

// dirEntry implements fs.DirEntry for one ibfs directory listing row,
// mirroring the teacher's direntry.
type dirEntry struct {
	name  string
	ino   uint32
	isDir bool
}

var _ fs.DirEntry = dirEntry{}

func (e dirEntry) Name() string { return e.name }

func (e dirEntry) IsDir() bool { return e.isDir }

func (e dirEntry) Type() fs.FileMode {
	if e.isDir {
		return fs.ModeDir
	}
	return 0
}

func (e dirEntry) Info() (fs.FileInfo, error) {
	return fileInfo{name: e.name, ino: e.ino, rec: inode.Inode{Mode: modeOf(e.isDir)}}, nil
}

func modeOf(isDir bool) uint16 {
	if isDir {
		return inode.S_IFDIR
	}
	return 0
}

// fileInfo implements fs.FileInfo over an already-loaded inode record,
// mirroring the teacher's fileinfo.
type fileInfo struct {
	name string
	ino  uint32
	rec  inode.Inode
}

var _ fs.FileInfo = fileInfo{}

func (fi fileInfo) Name() string { return fi.name }

func (fi fileInfo) Size() int64 { return int64(fi.rec.Size) }

func (fi fileInfo) Mode() fs.FileMode {
	if fi.rec.IsDir() {
		return fs.ModeDir | 0o755
	}
	return 0o644
}

func (fi fileInfo) ModTime() time.Time { return time.Unix(fi.rec.Mtime, 0) }

func (fi fileInfo) IsDir() bool { return fi.rec.IsDir() }

func (fi fileInfo) Sys() any { return fi.rec }

// dirFile is the fs.ReadDirFile returned by FS.Open for a directory inode.
type dirFile struct {
	fsys    *FS
	name    string
	ino     uint32
	rec     *inode.Inode
	entries []fs.DirEntry
	read    bool
}

var _ fs.ReadDirFile = (*dirFile)(nil)

func (f *FS) openDir(name string, ino uint32, rec *inode.Inode) *dirFile {
	return &dirFile{fsys: f, name: name, ino: ino, rec: rec}
}

func (d *dirFile) Stat() (fs.FileInfo, error) {
	return fileInfo{name: d.name, ino: d.ino, rec: *d.rec}, nil
}

func (d *dirFile) Read([]byte) (int, error) {
	return 0, fs.ErrInvalid
}

func (d *dirFile) Close() error {
	return nil
}

func (d *dirFile) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.read {
		entries, err := d.fsys.ReadDir(d.name)
		if err != nil {
			return nil, err
		}
		d.entries = entries
		d.read = true
	}

	if n <= 0 {
		out := d.entries
		d.entries = nil
		return out, nil
	}
	if len(d.entries) == 0 {
		return nil, nil
	}
	if n > len(d.entries) {
		n = len(d.entries)
	}
	out := d.entries[:n]
	d.entries = d.entries[n:]
	return out, nil
}
