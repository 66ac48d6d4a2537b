// Package blockdev implements the fixed-size block I/O layer that every
// other ibfs component reads and writes through.
package blockdev

import (
	"errors"
	"fmt"
	"io"
)

// Size is the fixed size, in bytes, of every block in an ibfs image.
const Size = 4096

// ErrOutOfRange is returned when a block number falls outside the device's
// known block count.
var ErrOutOfRange = errors.New("blockdev: block number out of range")

// ErrShortTransfer is returned when a read or write did not move exactly
// Size bytes. Partial transfers are never accepted.
var ErrShortTransfer = errors.New("blockdev: short block transfer")

// Device is a fixed-size block device backed by a ReaderAt/WriterAt, typically
// an *os.File opened on the disk image.
type Device struct {
	ra io.ReaderAt
	wa io.WriterAt

	// blockCount is the bound for range checks; 0 means the geometry is
	// unknown and no range check is made.
	blockCount uint32
}

// New wraps a backing file. blockCount may be 0 if the geometry is not yet
// known (e.g. before the superblock has been read during mount); such a
// device does no range checks until SetBlockCount is called.
func New(f interface {
	io.ReaderAt
	io.WriterAt
}, blockCount uint32) *Device {
	return &Device{ra: f, wa: f, blockCount: blockCount}
}

// SetBlockCount updates the bound used by range checks. Mkfs and Mount do
// not call it: they build a new Device with the image's block_count.
func (d *Device) SetBlockCount(n uint32) {
	d.blockCount = n
}

// BlockCount returns the device's configured block count, or 0 if unset.
func (d *Device) BlockCount() uint32 {
	return d.blockCount
}

func (d *Device) checkRange(num uint32) error {
	if d.blockCount != 0 && num >= d.blockCount {
		return fmt.Errorf("%w: block %d >= block_count %d", ErrOutOfRange, num, d.blockCount)
	}
	return nil
}

// ReadBlock reads exactly Size bytes at block_num*Size into buf.
func (d *Device) ReadBlock(num uint32, buf []byte) error {
	if len(buf) != Size {
		return fmt.Errorf("blockdev: buffer must be exactly %d bytes, got %d", Size, len(buf))
	}
	if err := d.checkRange(num); err != nil {
		return err
	}

	n, err := d.ra.ReadAt(buf, int64(num)*Size)
	if err != nil && err != io.EOF {
		return fmt.Errorf("blockdev: read block %d: %w", num, err)
	}
	if n != Size {
		return fmt.Errorf("%w: block %d read %d/%d bytes", ErrShortTransfer, num, n, Size)
	}
	return nil
}

// WriteBlock writes exactly Size bytes from buf at block_num*Size.
func (d *Device) WriteBlock(num uint32, buf []byte) error {
	if len(buf) != Size {
		return fmt.Errorf("blockdev: buffer must be exactly %d bytes, got %d", Size, len(buf))
	}
	if err := d.checkRange(num); err != nil {
		return err
	}

	n, err := d.wa.WriteAt(buf, int64(num)*Size)
	if err != nil {
		return fmt.Errorf("blockdev: write block %d: %w", num, err)
	}
	if n != Size {
		return fmt.Errorf("%w: block %d wrote %d/%d bytes", ErrShortTransfer, num, n, Size)
	}
	return nil
}
