package ibfs

import (
	"fmt"
	"io"
	"os"
)

// CompressionFormat selects the codec Export/Import use for an image
// archive, grounded on the teacher's SquashComp enum.
type CompressionFormat uint16

const (
	CompressionNone CompressionFormat = iota
	CompressionXZ
	CompressionZstd
)

func (c CompressionFormat) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionXZ:
		return "xz"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("CompressionFormat(%d)", c)
}

type compressor func(io.Writer) (io.WriteCloser, error)
type decompressor func(io.Reader) (io.ReadCloser, error)

var (
	compressors   = map[CompressionFormat]compressor{}
	decompressors = map[CompressionFormat]decompressor{}
)

// registerCodec is called from comp_xz.go/comp_zstd.go's build-tagged init
// functions, mirroring the teacher's RegisterCompHandler pattern.
func registerCodec(format CompressionFormat, c compressor, d decompressor) {
	compressors[format] = c
	decompressors[format] = d
}

// ErrUnsupportedCompression is returned when the requested format has no
// codec registered, either because it's unknown or its build tag was not
// enabled.
var ErrUnsupportedCompression = fmt.Errorf("ibfs: unsupported compression format")

// Export copies the image at path into w, compressing it with format. This
// is an archival convenience on top of the raw block layout; it has no
// effect on how a mounted image's blocks are read or written.
func Export(path string, w io.Writer, format CompressionFormat) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ibfs: export: open %s: %w", path, err)
	}
	defer f.Close()

	if format == CompressionNone {
		_, err := io.Copy(w, f)
		return err
	}

	enc, ok := compressors[format]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedCompression, format)
	}
	cw, err := enc(w)
	if err != nil {
		return fmt.Errorf("ibfs: export: open %s encoder: %w", format, err)
	}
	if _, err := io.Copy(cw, f); err != nil {
		cw.Close()
		return fmt.Errorf("ibfs: export: compress: %w", err)
	}
	return cw.Close()
}

// Import decompresses r, written with format, into a fresh file at path.
func Import(r io.Reader, path string, format CompressionFormat) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("ibfs: import: create %s: %w", path, err)
	}
	defer f.Close()

	if format == CompressionNone {
		_, err := io.Copy(f, r)
		return err
	}

	dec, ok := decompressors[format]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedCompression, format)
	}
	rc, err := dec(r)
	if err != nil {
		return fmt.Errorf("ibfs: import: open %s decoder: %w", format, err)
	}
	defer rc.Close()

	_, err = io.Copy(f, rc)
	return err
}
