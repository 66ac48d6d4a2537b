package blockdev_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vfx-coder/ibfs/blockdev"
)

// memDisk is an in-memory io.ReaderAt/io.WriterAt standing in for the
// *os.File backing a real image, following mockReader in the squashfs test
// suite.
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

func TestReadWriteBlockRoundTrip(t *testing.T) {
	dev := blockdev.New(newMemDisk(4), 4)

	buf := make([]byte, blockdev.Size)
	for i := range buf {
		buf[i] = byte(i)
	}
	require.NoError(t, dev.WriteBlock(2, buf))

	out := make([]byte, blockdev.Size)
	require.NoError(t, dev.ReadBlock(2, out))
	require.Equal(t, buf, out)
}

func TestReadBlockOutOfRange(t *testing.T) {
	dev := blockdev.New(newMemDisk(4), 4)
	buf := make([]byte, blockdev.Size)
	err := dev.ReadBlock(4, buf)
	require.ErrorIs(t, err, blockdev.ErrOutOfRange)
}

func TestWriteBlockOutOfRange(t *testing.T) {
	dev := blockdev.New(newMemDisk(4), 4)
	buf := make([]byte, blockdev.Size)
	err := dev.WriteBlock(10, buf)
	require.ErrorIs(t, err, blockdev.ErrOutOfRange)
}

func TestUnboundedDeviceAllowsAnyBlock(t *testing.T) {
	dev := blockdev.New(newMemDisk(4), 0)
	buf := make([]byte, blockdev.Size)
	require.NoError(t, dev.WriteBlock(3, buf))
	require.Zero(t, dev.BlockCount())

	dev.SetBlockCount(4)
	require.Equal(t, uint32(4), dev.BlockCount())
	err := dev.ReadBlock(4, buf)
	require.ErrorIs(t, err, blockdev.ErrOutOfRange)
}

func TestReadBlockRejectsWrongBufferSize(t *testing.T) {
	dev := blockdev.New(newMemDisk(4), 4)
	err := dev.ReadBlock(0, make([]byte, blockdev.Size-1))
	require.Error(t, err)
}

func TestWriteBlockRejectsWrongBufferSize(t *testing.T) {
	dev := blockdev.New(newMemDisk(4), 4)
	err := dev.WriteBlock(0, make([]byte, blockdev.Size+1))
	require.Error(t, err)
}
