// Package ibfs is the filesystem facade: mkfs, mount, and the directory
// operations built on top of blockdev, bitmap, inode, and bptree.
package ibfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/vfx-coder/ibfs/blockdev"
)

// Magic identifies an ibfs image, per spec.md §6.
const Magic uint32 = 0xDEADBEEF

// Version is the on-disk format version this package writes and accepts.
const Version uint32 = 1

// superblockBlock is the fixed block number of the superblock.
const superblockBlock = 0

// Superblock is the block-0 metadata record: geometry and the tree root.
// Marshaling walks the exported fields by reflection, following the
// teacher's Superblock.UnmarshalBinary pattern, so adding a field here never
// requires touching the (de)serialization code.
type Superblock struct {
	Magic        uint32
	Version      uint32
	BlockSize    uint32
	InodeCount   uint32
	BlockCount   uint32
	RootInode    uint32
	RootBptBlock uint32
}

func (s *Superblock) binarySize() int {
	v := reflect.ValueOf(s).Elem()
	sz := uintptr(0)
	for i := 0; i < v.NumField(); i++ {
		sz += v.Field(i).Type().Size()
	}
	return int(sz)
}

func (s *Superblock) marshal() []byte {
	buf := &bytes.Buffer{}
	v := reflect.ValueOf(s).Elem()
	for i := 0; i < v.NumField(); i++ {
		// Fixed-width uint32 fields into a growing buffer never fail to
		// encode; any error here would indicate a field type mismatch.
		if err := binary.Write(buf, binary.LittleEndian, v.Field(i).Interface()); err != nil {
			panic(fmt.Sprintf("ibfs: superblock field %s: %s", v.Type().Field(i).Name, err))
		}
	}
	out := make([]byte, blockdev.Size)
	copy(out, buf.Bytes())
	return out
}

func (s *Superblock) unmarshal(data []byte) error {
	v := reflect.ValueOf(s).Elem()
	r := bytes.NewReader(data[:s.binarySize()])
	for i := 0; i < v.NumField(); i++ {
		if err := binary.Read(r, binary.LittleEndian, v.Field(i).Addr().Interface()); err != nil {
			return fmt.Errorf("ibfs: superblock field %s: %w", v.Type().Field(i).Name, err)
		}
	}
	return nil
}

func readSuperblock(dev *blockdev.Device) (*Superblock, error) {
	buf := make([]byte, blockdev.Size)
	if err := dev.ReadBlock(superblockBlock, buf); err != nil {
		return nil, fmt.Errorf("ibfs: read superblock: %w", err)
	}
	sb := &Superblock{}
	if err := sb.unmarshal(buf); err != nil {
		return nil, err
	}
	return sb, nil
}

func writeSuperblock(dev *blockdev.Device, sb *Superblock) error {
	if err := dev.WriteBlock(superblockBlock, sb.marshal()); err != nil {
		return fmt.Errorf("ibfs: write superblock: %w", err)
	}
	return nil
}
