// Package bitmap implements the inode and data-block allocation bitmaps
// described in spec.md §4.2: one bit per object, LSB-first within each byte,
// persisted as a single 4096-byte block.
package bitmap

import (
	"errors"
	"fmt"
	"log"

	"github.com/vfx-coder/ibfs/blockdev"
)

// ErrExhausted is returned when no free bit remains in the bitmap's range.
var ErrExhausted = errors.New("bitmap: no free entry")

// ErrOutOfRange is returned when an index falls outside the bitmap's valid
// span.
var ErrOutOfRange = errors.New("bitmap: index out of range")

// Bitmap is a single allocation bitmap backed by one fixed block.
type Bitmap struct {
	dev       *blockdev.Device
	block     uint32 // block number this bitmap lives at (1 = inodes, 2 = data)
	low, high uint32 // valid index range is [low, high)
}

// New returns a Bitmap living at the given block, indexable over [low, high).
func New(dev *blockdev.Device, block, low, high uint32) *Bitmap {
	return &Bitmap{dev: dev, block: block, low: low, high: high}
}

func (b *Bitmap) inRange(i uint32) bool {
	return i >= b.low && i < b.high
}

// Alloc scans for the first clear bit in [low, high), sets it, persists the
// block, and returns the bit index. Returns ErrExhausted if none is free.
func (b *Bitmap) Alloc() (uint32, error) {
	buf := make([]byte, blockdev.Size)
	if err := b.dev.ReadBlock(b.block, buf); err != nil {
		return 0, fmt.Errorf("bitmap: read block %d: %w", b.block, err)
	}

	if b.high > blockdev.Size*8 {
		return 0, fmt.Errorf("bitmap: range %d exceeds %d bits per block", b.high, blockdev.Size*8)
	}

	for i := b.low; i < b.high; i++ {
		byteIdx, bitIdx := i/8, i%8
		if buf[byteIdx]&(1<<bitIdx) != 0 {
			continue
		}

		buf[byteIdx] |= 1 << bitIdx
		if err := b.dev.WriteBlock(b.block, buf); err != nil {
			// Roll back in memory; the on-disk bit was never set since the
			// write failed, so there is nothing on disk to undo.
			buf[byteIdx] &^= 1 << bitIdx
			return 0, fmt.Errorf("bitmap: persist allocation of %d: %w", i, err)
		}
		return i, nil
	}

	return 0, ErrExhausted
}

// Free clears the bit for index i. Freeing an already-free bit logs a
// warning and returns nil; it is diagnostic only, not an error.
func (b *Bitmap) Free(i uint32) error {
	if !b.inRange(i) {
		return fmt.Errorf("%w: %d not in [%d,%d)", ErrOutOfRange, i, b.low, b.high)
	}

	buf := make([]byte, blockdev.Size)
	if err := b.dev.ReadBlock(b.block, buf); err != nil {
		return fmt.Errorf("bitmap: read block %d: %w", b.block, err)
	}

	byteIdx, bitIdx := i/8, i%8
	if buf[byteIdx]&(1<<bitIdx) == 0 {
		log.Printf("ibfs: bitmap: double-free of index %d in block %d", i, b.block)
		return nil
	}

	buf[byteIdx] &^= 1 << bitIdx
	if err := b.dev.WriteBlock(b.block, buf); err != nil {
		return fmt.Errorf("bitmap: persist free of %d: %w", i, err)
	}
	return nil
}

// IsSet reports whether index i's bit is allocated. Used by offline
// integrity checking; it never mutates the bitmap.
func (b *Bitmap) IsSet(i uint32) (bool, error) {
	if !b.inRange(i) {
		return false, fmt.Errorf("%w: %d not in [%d,%d)", ErrOutOfRange, i, b.low, b.high)
	}

	buf := make([]byte, blockdev.Size)
	if err := b.dev.ReadBlock(b.block, buf); err != nil {
		return false, fmt.Errorf("bitmap: read block %d: %w", b.block, err)
	}

	byteIdx, bitIdx := i/8, i%8
	return buf[byteIdx]&(1<<bitIdx) != 0, nil
}

// Zero writes an all-clear bitmap block, used by mkfs.
func Zero(dev *blockdev.Device, block uint32) error {
	return dev.WriteBlock(block, make([]byte, blockdev.Size))
}
