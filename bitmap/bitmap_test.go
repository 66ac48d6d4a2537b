package bitmap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vfx-coder/ibfs/bitmap"
	"github.com/vfx-coder/ibfs/blockdev"
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

func newTestBitmap(t *testing.T, low, high uint32) (*blockdev.Device, *bitmap.Bitmap) {
	t.Helper()
	dev := blockdev.New(newMemDisk(8), 8)
	require.NoError(t, bitmap.Zero(dev, 1))
	return dev, bitmap.New(dev, 1, low, high)
}

func TestAllocReturnsFirstFreeBit(t *testing.T) {
	_, bm := newTestBitmap(t, 0, 16)

	first, err := bm.Alloc()
	require.NoError(t, err)
	require.Equal(t, uint32(0), first)

	second, err := bm.Alloc()
	require.NoError(t, err)
	require.Equal(t, uint32(1), second)
}

func TestAllocSkipsFreedThenReallocatedBits(t *testing.T) {
	_, bm := newTestBitmap(t, 0, 4)

	a, err := bm.Alloc()
	require.NoError(t, err)
	b, err := bm.Alloc()
	require.NoError(t, err)
	require.NoError(t, bm.Free(a))

	c, err := bm.Alloc()
	require.NoError(t, err)
	require.Equal(t, a, c)
	require.NotEqual(t, b, c)
}

func TestAllocExhausted(t *testing.T) {
	_, bm := newTestBitmap(t, 0, 2)

	_, err := bm.Alloc()
	require.NoError(t, err)
	_, err = bm.Alloc()
	require.NoError(t, err)

	_, err = bm.Alloc()
	require.ErrorIs(t, err, bitmap.ErrExhausted)
}

func TestAllocRespectsLowBound(t *testing.T) {
	_, bm := newTestBitmap(t, 3, 8)

	i, err := bm.Alloc()
	require.NoError(t, err)
	require.Equal(t, uint32(3), i)
}

func TestFreeOutOfRange(t *testing.T) {
	_, bm := newTestBitmap(t, 0, 4)
	err := bm.Free(10)
	require.ErrorIs(t, err, bitmap.ErrOutOfRange)
}

func TestDoubleFreeIsNotAnError(t *testing.T) {
	_, bm := newTestBitmap(t, 0, 4)

	i, err := bm.Alloc()
	require.NoError(t, err)
	require.NoError(t, bm.Free(i))
	require.NoError(t, bm.Free(i))
}

func TestIsSetReflectsAllocState(t *testing.T) {
	_, bm := newTestBitmap(t, 0, 4)

	set, err := bm.IsSet(0)
	require.NoError(t, err)
	require.False(t, set)

	i, err := bm.Alloc()
	require.NoError(t, err)

	set, err = bm.IsSet(i)
	require.NoError(t, err)
	require.True(t, set)

	require.NoError(t, bm.Free(i))
	set, err = bm.IsSet(i)
	require.NoError(t, err)
	require.False(t, set)
}

func TestIsSetOutOfRange(t *testing.T) {
	_, bm := newTestBitmap(t, 0, 4)
	_, err := bm.IsSet(99)
	require.ErrorIs(t, err, bitmap.ErrOutOfRange)
}
