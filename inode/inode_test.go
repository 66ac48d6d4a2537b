package inode_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vfx-coder/ibfs/bitmap"
	"github.com/vfx-coder/ibfs/blockdev"
	"github.com/vfx-coder/ibfs/inode"
)

type memDisk struct {
	data []byte
}

func newMemDisk(blocks int) *memDisk {
	return &memDisk{data: make([]byte, blocks*blockdev.Size)}
}

func (m *memDisk) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.data[off:])
	return n, nil
}

func (m *memDisk) WriteAt(p []byte, off int64) (int, error) {
	n := copy(m.data[off:], p)
	return n, nil
}

func newTestTable(t *testing.T, inodeCount uint32) *inode.Table {
	t.Helper()
	blocks := inode.TableStart + inodeCount/inode.PerBlock + 2
	dev := blockdev.New(newMemDisk(int(blocks)), blocks)
	require.NoError(t, bitmap.Zero(dev, 0))
	bits := bitmap.New(dev, 0, 0, inodeCount)
	return inode.NewTable(dev, inodeCount, bits)
}

func TestAllocWritesInitializedRecord(t *testing.T) {
	table := newTestTable(t, 64)

	n, err := table.Alloc(inode.S_IFDIR)
	require.NoError(t, err)
	require.Equal(t, uint32(0), n)

	var rec inode.Inode
	require.NoError(t, table.Read(n, &rec))
	require.True(t, rec.IsDir())
	require.Equal(t, uint16(1), rec.LinksCount)
	require.Zero(t, rec.Size)
	require.NotZero(t, rec.Mtime)
}

func TestWriteReadRoundTripPreservesDirectBlocks(t *testing.T) {
	table := newTestTable(t, 64)
	n, err := table.Alloc(0)
	require.NoError(t, err)

	rec := inode.Inode{Mode: 0, LinksCount: 2, Size: 1234}
	rec.DirectBlocks[0] = 10
	rec.DirectBlocks[11] = 99
	require.NoError(t, table.Write(n, &rec))

	var out inode.Inode
	require.NoError(t, table.Read(n, &out))
	require.Equal(t, rec.DirectBlocks, out.DirectBlocks)
	require.Equal(t, uint64(1234), out.Size)
	require.Equal(t, uint16(2), out.LinksCount)
}

func TestSiblingInodesInSameBlockDoNotClobberEachOther(t *testing.T) {
	table := newTestTable(t, 64)

	a, err := table.Alloc(inode.S_IFDIR)
	require.NoError(t, err)
	b, err := table.Alloc(0)
	require.NoError(t, err)
	require.Less(t, a, uint32(inode.PerBlock))
	require.Less(t, b, uint32(inode.PerBlock))

	var recA, recB inode.Inode
	require.NoError(t, table.Read(a, &recA))
	require.NoError(t, table.Read(b, &recB))
	require.True(t, recA.IsDir())
	require.False(t, recB.IsDir())
}

func TestReadOutOfRange(t *testing.T) {
	table := newTestTable(t, 8)
	var rec inode.Inode
	err := table.Read(100, &rec)
	require.ErrorIs(t, err, inode.ErrOutOfRange)
}

func TestAllocFailsWhenBitmapExhausted(t *testing.T) {
	table := newTestTable(t, 1)

	_, err := table.Alloc(inode.S_IFDIR)
	require.NoError(t, err)

	_, err = table.Alloc(0)
	require.ErrorIs(t, err, bitmap.ErrExhausted)
}

func TestFreeReleasesBitForReuse(t *testing.T) {
	table := newTestTable(t, 2)

	a, err := table.Alloc(inode.S_IFDIR)
	require.NoError(t, err)
	require.NoError(t, table.Free(a))

	b, err := table.Alloc(0)
	require.NoError(t, err)
	require.Equal(t, a, b)
}
