package ibfs

// defaultBlockCount and defaultInodeCount give mkfs a small but usable
// geometry when the caller supplies none.
const (
	defaultBlockCount = 4096
	defaultInodeCount = 1024
)

// MkfsOption configures Mkfs, mirroring the teacher's WriterOption pattern.
type MkfsOption func(*mkfsConfig)

type mkfsConfig struct {
	blockCount uint32
	inodeCount uint32
	seed       []string
}

// WithBlockCount overrides the image's total block count.
func WithBlockCount(n uint32) MkfsOption {
	return func(c *mkfsConfig) { c.blockCount = n }
}

// WithInodeCount overrides the image's total inode count.
func WithInodeCount(n uint32) MkfsOption {
	return func(c *mkfsConfig) { c.inodeCount = n }
}

// WithSeedEntries populates the root directory with empty demo directories
// (created through Mkdir) during Mkfs, exercising the "optionally seed the tree with demo entries"
// clause of spec.md §4.5.
func WithSeedEntries(names ...string) MkfsOption {
	return func(c *mkfsConfig) { c.seed = append(c.seed, names...) }
}
