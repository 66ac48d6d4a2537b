package bptree

import "errors"

// Package-specific error variables, checked with errors.Is, matching the
// sentinel-error convention the facade and every other ibfs package use.
var (
	// ErrCorrupt is returned when a node fails validation: num_keys > Order,
	// or an internal node appearing where Iterate expects a leaf.
	ErrCorrupt = errors.New("bptree: corrupt node")

	// ErrNotFound is returned by Delete when the key is absent.
	ErrNotFound = errors.New("bptree: key not found")

	// ErrExists is returned by Insert when the key is already present.
	ErrExists = errors.New("bptree: key already exists")

	// ErrInvalidKey describes a nil/zero-value key passed where a real key
	// is required. No Tree method returns it; Delete on an empty tree
	// returns ErrNotFound.
	ErrInvalidKey = errors.New("bptree: invalid key")
)
