//go:build zstd

package ibfs

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

func init() {
	registerCodec(CompressionZstd,
		func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w)
		},
		func(r io.Reader) (io.ReadCloser, error) {
			zr, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return zr.IOReadCloser(), nil
		},
	)
}
