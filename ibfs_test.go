package ibfs_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vfx-coder/ibfs"
)

func scratchImage(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "image.ibfs")
}

// Scenario 1: mkfs image; ls / — prints only the seed entry if any; exit 0.
func TestScenarioMkfsThenLsEmpty(t *testing.T) {
	path := scratchImage(t)
	require.NoError(t, ibfs.Mkfs(path))

	fsys, err := ibfs.Mount(path)
	require.NoError(t, err)
	defer fsys.Close()

	entries, err := fsys.ReadDir(".")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestScenarioMkfsWithSeed(t *testing.T) {
	path := scratchImage(t)
	require.NoError(t, ibfs.Mkfs(path, ibfs.WithSeedEntries("demo")))

	fsys, err := ibfs.Mount(path)
	require.NoError(t, err)
	defer fsys.Close()

	entries, err := fsys.ReadDir(".")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "demo", entries[0].Name())
}

// Scenario 2: mkdir /foo; mkdir /foo — second call fails with "already
// exists"; the root listing has the same length after the failing call.
func TestScenarioMkdirTwiceFails(t *testing.T) {
	path := scratchImage(t)
	require.NoError(t, ibfs.Mkfs(path))

	fsys, err := ibfs.Mount(path)
	require.NoError(t, err)
	defer fsys.Close()

	root := fsys.RootInode()
	require.NoError(t, fsys.Mkdir(root, "foo"))

	before, err := fsys.ReadDir(".")
	require.NoError(t, err)

	err = fsys.Mkdir(root, "foo")
	require.ErrorIs(t, err, ibfs.ErrExists)

	after, err := fsys.ReadDir(".")
	require.NoError(t, err)
	require.Len(t, after, len(before))
}

// Scenario 3: mkdir /a; mkdir /b; mkdir /c; rmdir /b; ls / — lists exactly
// a/ and c/, in key order.
func TestScenarioMkdirRmdirListsRemaining(t *testing.T) {
	path := scratchImage(t)
	require.NoError(t, ibfs.Mkfs(path))

	fsys, err := ibfs.Mount(path)
	require.NoError(t, err)
	defer fsys.Close()

	root := fsys.RootInode()
	require.NoError(t, fsys.Mkdir(root, "a"))
	require.NoError(t, fsys.Mkdir(root, "b"))
	require.NoError(t, fsys.Mkdir(root, "c"))
	require.NoError(t, fsys.Rmdir(root, "b"))

	entries, err := fsys.ReadDir(".")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Equal(t, []string{"a", "c"}, names)
}

// Scenario 4: mkdir /d; rmdir /d; rmdir /d — second rmdir fails with
// "not found".
func TestScenarioRmdirTwiceFails(t *testing.T) {
	path := scratchImage(t)
	require.NoError(t, ibfs.Mkfs(path))

	fsys, err := ibfs.Mount(path)
	require.NoError(t, err)
	defer fsys.Close()

	root := fsys.RootInode()
	require.NoError(t, fsys.Mkdir(root, "d"))
	require.NoError(t, fsys.Rmdir(root, "d"))

	err = fsys.Rmdir(root, "d")
	require.ErrorIs(t, err, ibfs.ErrNotFound)
}

// Scenario 5: seed 200 entries to force at least one leaf split, then
// remove /f050 and verify the listing now misses it and the rest iterate in
// order. The facade creates only directories, so the entry is removed with
// Rmdir (Remove rejects directories).
func TestScenarioBulkInsertThenRemoveOne(t *testing.T) {
	path := scratchImage(t)
	require.NoError(t, ibfs.Mkfs(path, ibfs.WithBlockCount(8192), ibfs.WithInodeCount(2048)))

	fsys, err := ibfs.Mount(path)
	require.NoError(t, err)
	defer fsys.Close()

	root := fsys.RootInode()
	for i := 0; i < 200; i++ {
		require.NoError(t, fsys.Mkdir(root, fmt.Sprintf("f%03d", i)))
	}

	require.NoError(t, fsys.Rmdir(root, "f050"))

	entries, err := fsys.ReadDir(".")
	require.NoError(t, err)
	require.Len(t, entries, 199)

	var prev string
	for _, e := range entries {
		require.NotEqual(t, "f050", e.Name())
		if prev != "" {
			require.Less(t, prev, e.Name())
		}
		prev = e.Name()
	}
}

// Scenario 6: rm / — fails: the empty name left after stripping "/" is
// rejected as an invalid name.
func TestScenarioRemoveRootNameFails(t *testing.T) {
	path := scratchImage(t)
	require.NoError(t, ibfs.Mkfs(path))

	fsys, err := ibfs.Mount(path)
	require.NoError(t, err)
	defer fsys.Close()

	err = fsys.Remove(fsys.RootInode(), "")
	require.ErrorIs(t, err, ibfs.ErrInvalidName)
}

func TestRemoveOnDirectoryFails(t *testing.T) {
	path := scratchImage(t)
	require.NoError(t, ibfs.Mkfs(path))

	fsys, err := ibfs.Mount(path)
	require.NoError(t, err)
	defer fsys.Close()

	// The facade has no file-creation op, so exercise the type check against
	// a directory instead: rm on a directory must fail with "is a
	// directory", the mirror image of rmdir-on-a-file.
	root := fsys.RootInode()
	require.NoError(t, fsys.Mkdir(root, "dir"))
	err = fsys.Remove(root, "dir")
	require.ErrorIs(t, err, ibfs.ErrIsDirectory)
}

func TestMountRejectsNonImage(t *testing.T) {
	path := scratchImage(t)
	require.NoError(t, os.WriteFile(path, make([]byte, 4096*8), 0o644))

	_, err := ibfs.Mount(path)
	require.ErrorIs(t, err, ibfs.ErrInvalidImage)
}

func TestCheckFindsNoViolationsOnFreshImage(t *testing.T) {
	path := scratchImage(t)
	require.NoError(t, ibfs.Mkfs(path))

	fsys, err := ibfs.Mount(path)
	require.NoError(t, err)
	defer fsys.Close()

	root := fsys.RootInode()
	for i := 0; i < 50; i++ {
		require.NoError(t, fsys.Mkdir(root, fmt.Sprintf("n%03d", i)))
	}

	violations, err := ibfs.Check(fsys)
	require.NoError(t, err)
	require.Empty(t, violations)
}

func TestMkdirRejectsReservedNames(t *testing.T) {
	path := scratchImage(t)
	require.NoError(t, ibfs.Mkfs(path))

	fsys, err := ibfs.Mount(path)
	require.NoError(t, err)
	defer fsys.Close()

	root := fsys.RootInode()
	for _, name := range []string{"", ".", "..", string(make([]byte, 28))} {
		err := fsys.Mkdir(root, name)
		require.ErrorIs(t, err, ibfs.ErrInvalidName)
	}
}

func TestMkdirAcceptsMaxLengthName(t *testing.T) {
	path := scratchImage(t)
	require.NoError(t, ibfs.Mkfs(path))

	fsys, err := ibfs.Mount(path)
	require.NoError(t, err)
	defer fsys.Close()

	name := make([]byte, 27)
	for i := range name {
		name[i] = 'x'
	}
	require.NoError(t, fsys.Mkdir(fsys.RootInode(), string(name)))
}
