// Package inode implements the fixed-layout inode table described in
// spec.md §3/§4.3: inodes are packed floor(BLOCK_SIZE/sizeof(Inode)) per
// block, starting at block 3.
package inode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/vfx-coder/ibfs/bitmap"
	"github.com/vfx-coder/ibfs/blockdev"
)

// S_IFDIR marks an inode as a directory, per spec.md §3.
const S_IFDIR uint16 = 0o040000

// TableStart is the first block of the inode table.
const TableStart = 3

// onDiskSize is the fixed, 4096-divisible serialized size of one inode
// record: the fields take 2+2+8+8+8+8+12*4+4 = 88 bytes, zero-padded to 128
// so that 4096/128 = 32 inodes fill each block exactly.
const onDiskSize = 128

// ErrOutOfRange is returned when an inode number is >= inode_count.
var ErrOutOfRange = errors.New("inode: number out of range")

// Inode is the fixed-size metadata record for one file or directory.
type Inode struct {
	Mode         uint16
	LinksCount   uint16
	Size         uint64
	Atime        int64
	Mtime        int64
	Ctime        int64
	DirectBlocks [12]uint32
	SingleIndir  uint32 // carried per spec.md §9 Open Question; never read/written by rm
}

// IsDir reports whether the inode's mode bit marks it as a directory.
func (i *Inode) IsDir() bool {
	return i.Mode&S_IFDIR == S_IFDIR
}

// PerBlock is the number of inode slots packed into one block.
const PerBlock = blockdev.Size / onDiskSize

// Table is the on-disk inode table access layer.
type Table struct {
	dev        *blockdev.Device
	inodeCount uint32
	bits       *bitmap.Bitmap
}

// NewTable returns a Table over dev with the given inode_count, allocating
// bits from the given inode bitmap.
func NewTable(dev *blockdev.Device, inodeCount uint32, bits *bitmap.Bitmap) *Table {
	return &Table{dev: dev, inodeCount: inodeCount, bits: bits}
}

func (t *Table) blockAndOffset(n uint32) (block uint32, offset int) {
	block = TableStart + n/PerBlock
	offset = int(n%PerBlock) * onDiskSize
	return
}

func (i *Inode) marshal() []byte {
	buf := make([]byte, onDiskSize)
	binary.LittleEndian.PutUint16(buf[0:2], i.Mode)
	binary.LittleEndian.PutUint16(buf[2:4], i.LinksCount)
	binary.LittleEndian.PutUint64(buf[4:12], i.Size)
	binary.LittleEndian.PutUint64(buf[12:20], uint64(i.Atime))
	binary.LittleEndian.PutUint64(buf[20:28], uint64(i.Mtime))
	binary.LittleEndian.PutUint64(buf[28:36], uint64(i.Ctime))
	for idx, b := range i.DirectBlocks {
		binary.LittleEndian.PutUint32(buf[36+idx*4:40+idx*4], b)
	}
	binary.LittleEndian.PutUint32(buf[36+12*4:36+12*4+4], i.SingleIndir)
	return buf
}

func (i *Inode) unmarshal(buf []byte) error {
	if len(buf) < onDiskSize {
		return fmt.Errorf("inode: short record, %d < %d", len(buf), onDiskSize)
	}
	i.Mode = binary.LittleEndian.Uint16(buf[0:2])
	i.LinksCount = binary.LittleEndian.Uint16(buf[2:4])
	i.Size = binary.LittleEndian.Uint64(buf[4:12])
	i.Atime = int64(binary.LittleEndian.Uint64(buf[12:20]))
	i.Mtime = int64(binary.LittleEndian.Uint64(buf[20:28]))
	i.Ctime = int64(binary.LittleEndian.Uint64(buf[28:36]))
	for idx := range i.DirectBlocks {
		i.DirectBlocks[idx] = binary.LittleEndian.Uint32(buf[36+idx*4 : 40+idx*4])
	}
	i.SingleIndir = binary.LittleEndian.Uint32(buf[36+12*4 : 36+12*4+4])
	return nil
}

// Read loads inode n into out.
func (t *Table) Read(n uint32, out *Inode) error {
	if n >= t.inodeCount {
		return fmt.Errorf("%w: %d >= %d", ErrOutOfRange, n, t.inodeCount)
	}

	block, offset := t.blockAndOffset(n)
	buf := make([]byte, blockdev.Size)
	if err := t.dev.ReadBlock(block, buf); err != nil {
		return fmt.Errorf("inode: read block %d for inode %d: %w", block, n, err)
	}

	return out.unmarshal(buf[offset : offset+onDiskSize])
}

// Write persists in as inode n, read-modify-writing the shared block so
// sibling inodes in the same block are preserved.
func (t *Table) Write(n uint32, in *Inode) error {
	if n >= t.inodeCount {
		return fmt.Errorf("%w: %d >= %d", ErrOutOfRange, n, t.inodeCount)
	}

	block, offset := t.blockAndOffset(n)
	buf := make([]byte, blockdev.Size)
	if err := t.dev.ReadBlock(block, buf); err != nil {
		return fmt.Errorf("inode: read block %d for inode %d: %w", block, n, err)
	}

	copy(buf[offset:offset+onDiskSize], in.marshal())
	if err := t.dev.WriteBlock(block, buf); err != nil {
		return fmt.Errorf("inode: write block %d for inode %d: %w", block, n, err)
	}
	return nil
}

// Alloc allocates a bitmap bit, zeroes and initializes a new inode record
// with the given mode, and writes it through Write. If the write fails, the
// bitmap bit is released.
func (t *Table) Alloc(mode uint16) (uint32, error) {
	n, err := t.bits.Alloc()
	if err != nil {
		return 0, fmt.Errorf("inode: alloc: %w", err)
	}

	now := time.Now().Unix()
	rec := &Inode{
		Mode:       mode,
		LinksCount: 1,
		Size:       0,
		Atime:      now,
		Mtime:      now,
		Ctime:      now,
	}

	if err := t.Write(n, rec); err != nil {
		if ferr := t.bits.Free(n); ferr != nil {
			return 0, fmt.Errorf("inode: write failed (%w) and rollback free failed: %s", err, ferr)
		}
		return 0, fmt.Errorf("inode: alloc: write new inode %d: %w", n, err)
	}
	return n, nil
}

// Free releases inode n's bitmap bit. The table slot itself is not zeroed;
// reuse overwrites it via Write.
func (t *Table) Free(n uint32) error {
	return t.bits.Free(n)
}
