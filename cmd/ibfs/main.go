// Command ibfs is the external driver for the ibfs filesystem core, per
// spec.md §6's CLI surface: mkfs/ls/mkdir/rmdir/rm/test/fsck against a
// single-level directory under /.
package main

import (
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/vfx-coder/ibfs"
)

const usage = `ibfs - ibfs image tool

Usage:
  ibfs mkfs <image> [--blocks N] [--inodes N]   Create and format an image
  ibfs <image> ls [/]                           List the root directory
  ibfs <image> mkdir /name                      Create a top-level directory
  ibfs <image> rmdir /name                      Remove an empty top-level directory
  ibfs <image> rm /name                         Remove a top-level file
  ibfs <image> fsck                             Check structural invariants
  ibfs <image> test                             Run the built-in search self-test
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	// Every subcommand but mkfs takes the image first (ibfs <image> <command>);
	// swap the two so the dispatch below always sees the command first.
	switch os.Args[1] {
	case "mkfs", "help", "-h", "--help":
	default:
		if len(os.Args) > 2 {
			os.Args[1], os.Args[2] = os.Args[2], os.Args[1]
		}
	}

	var err error
	switch os.Args[1] {
	case "mkfs":
		err = runMkfs(os.Args[2:])
	case "ls":
		err = runLs(os.Args[2:])
	case "mkdir":
		err = runMkdir(os.Args[2:])
	case "rmdir":
		err = runRmdir(os.Args[2:])
	case "rm":
		err = runRm(os.Args[2:])
	case "fsck":
		err = runFsck(os.Args[2:])
	case "test":
		err = runTest(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "ibfs: unknown command %q\n", os.Args[1])
		fmt.Print(usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ibfs: %s\n", err)
		os.Exit(1)
	}
}

func stripLeadingSlash(p string) string {
	if len(p) > 0 && p[0] == '/' {
		return p[1:]
	}
	return p
}

func runMkfs(args []string) error {
	fset := flag.NewFlagSet("mkfs", flag.ExitOnError)
	blocks := fset.Uint32("blocks", 0, "total block count (default geometry if 0)")
	inodes := fset.Uint32("inodes", 0, "total inode count (default geometry if 0)")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() < 1 {
		return fmt.Errorf("mkfs: missing image path")
	}

	var opts []ibfs.MkfsOption
	if *blocks != 0 {
		opts = append(opts, ibfs.WithBlockCount(*blocks))
	}
	if *inodes != 0 {
		opts = append(opts, ibfs.WithInodeCount(*inodes))
	}
	return ibfs.Mkfs(fset.Arg(0), opts...)
}

func runLs(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("ls: missing image path")
	}
	fsys, err := ibfs.Mount(args[0])
	if err != nil {
		return err
	}
	defer fsys.Close()

	path := "."
	if len(args) > 1 {
		path = stripLeadingSlash(args[1])
	}

	entries, err := fsys.ReadDir(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ibfs: %s: %s\n", e.Name(), err)
			continue
		}
		typeChar := "-"
		if info.IsDir() {
			typeChar = "d"
		}
		fmt.Printf("%s %8d %s %s\n", typeChar, info.Size(), info.ModTime().Format(time.RFC3339), e.Name())
	}
	return nil
}

func runMkdir(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("mkdir: missing image path or name")
	}
	fsys, err := ibfs.Mount(args[0])
	if err != nil {
		return err
	}
	defer fsys.Close()

	return fsys.Mkdir(fsys.RootInode(), stripLeadingSlash(args[1]))
}

func runRmdir(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("rmdir: missing image path or name")
	}
	fsys, err := ibfs.Mount(args[0])
	if err != nil {
		return err
	}
	defer fsys.Close()

	return fsys.Rmdir(fsys.RootInode(), stripLeadingSlash(args[1]))
}

func runRm(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("rm: missing image path or name")
	}
	fsys, err := ibfs.Mount(args[0])
	if err != nil {
		return err
	}
	defer fsys.Close()

	return fsys.Remove(fsys.RootInode(), stripLeadingSlash(args[1]))
}

func runFsck(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("fsck: missing image path")
	}
	fsys, err := ibfs.Mount(args[0])
	if err != nil {
		return err
	}
	defer fsys.Close()

	violations, err := ibfs.Check(fsys)
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		fmt.Println("ibfs: fsck: no violations found")
		return nil
	}
	for _, v := range violations {
		fmt.Println(v.String())
	}
	return fmt.Errorf("fsck: %d violation(s) found", len(violations))
}

// runTest runs the built-in search self-test from spec.md §6: mkdir a
// handful of entries in a scratch image and confirm every one is findable.
func runTest(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("test: missing image path")
	}
	path := args[0]

	if err := ibfs.Mkfs(path, ibfs.WithSeedEntries("alpha", "beta", "gamma")); err != nil {
		return err
	}

	fsys, err := ibfs.Mount(path)
	if err != nil {
		return err
	}
	defer fsys.Close()

	entries, err := fsys.ReadDir(".")
	if err != nil {
		return err
	}
	want := map[string]bool{"alpha": false, "beta": false, "gamma": false}
	for _, e := range entries {
		want[e.Name()] = true
	}
	for name, found := range want {
		if !found {
			return fmt.Errorf("test: seeded entry %q not found", name)
		}
	}
	fmt.Println("ibfs: test: ok")
	return nil
}
