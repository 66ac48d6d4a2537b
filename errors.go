package ibfs

import "errors"

// Package-specific error variables that can be used with errors.Is() for
// error handling, matching spec.md §7's error kind list.
var (
	// ErrInvalidImage is returned when block 0 does not carry the ibfs
	// magic number.
	ErrInvalidImage = errors.New("ibfs: not an ibfs image")

	// ErrInvalidVersion is returned when the superblock's version field is
	// not one this package understands.
	ErrInvalidVersion = errors.New("ibfs: unsupported image version")

	// ErrCorruptSuperblock is returned when the superblock's geometry
	// fields are internally inconsistent (zero counts, root_inode out of
	// range, block_size mismatch).
	ErrCorruptSuperblock = errors.New("ibfs: corrupt superblock")

	// ErrNotFound is returned when a name does not exist in its parent
	// directory.
	ErrNotFound = errors.New("ibfs: no such file or directory")

	// ErrExists is returned by Mkdir when the name is already taken.
	ErrExists = errors.New("ibfs: name already exists")

	// ErrNotEmpty is returned by Rmdir when the directory still has
	// entries.
	ErrNotEmpty = errors.New("ibfs: directory not empty")

	// ErrNotDirectory is returned when an operation that requires a
	// directory is given a file inode.
	ErrNotDirectory = errors.New("ibfs: not a directory")

	// ErrIsDirectory is returned when Remove targets a directory.
	ErrIsDirectory = errors.New("ibfs: is a directory")

	// ErrInvalidName is returned for an empty, too-long, "." or ".." name.
	ErrInvalidName = errors.New("ibfs: invalid name")
)
