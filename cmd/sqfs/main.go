package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sqfsreader/squashfs"
)

const usage = `sqfs - SquashFS CLI tool

Usage:
  sqfs ls <squashfs_file> [<path>]          List files in SquashFS (optionally in a specific path)
  sqfs cat <squashfs_file> <file>           Display contents of a file in SquashFS
  sqfs info <squashfs_file>                 Display information about a SquashFS archive
  sqfs help                                 Show this help message

Examples:
  sqfs ls archive.squashfs                  List all files at the root of archive.squashfs
  sqfs ls archive.squashfs lib              List all files in the lib directory
  sqfs cat archive.squashfs dir/file.txt    Display contents of file.txt from archive.squashfs
  sqfs info archive.squashfs                Show metadata about the SquashFS archive
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cmd := os.Args[1]

	switch cmd {
	case "ls":
		if len(os.Args) < 3 {
			fmt.Println("Error: Missing SquashFS file path")
			fmt.Println(usage)
			os.Exit(1)
		}
		sqfsPath := os.Args[2]
		path := "."
		if len(os.Args) > 3 {
			path = os.Args[3]
		}
		err := listFiles(sqfsPath, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}

	case "cat":
		if len(os.Args) < 4 {
			fmt.Println("Error: Missing SquashFS file path or target file")
			fmt.Println(usage)
			os.Exit(1)
		}
		sqfsPath := os.Args[2]
		filePath := os.Args[3]
		err := catFile(sqfsPath, filePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}

	case "info":
		if len(os.Args) < 3 {
			fmt.Println("Error: Missing SquashFS file path")
			fmt.Println(usage)
			os.Exit(1)
		}
		sqfsPath := os.Args[2]
		err := showInfo(sqfsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}

	case "help":
		fmt.Println(usage)

	default:
		fmt.Printf("Error: Unknown command '%s'\n", cmd)
		fmt.Println(usage)
		os.Exit(1)
	}
}

// mount opens sqfsPath and mounts it through the literal Probe/Mount facade
// dispatcher.go exposes, the surface spec.md §4.8 actually names.
func mount(sqfsPath string) (*os.File, *squashfs.Reader, error) {
	f, err := os.Open(sqfsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open '%s': %w", sqfsPath, err)
	}

	ok, err := squashfs.Probe(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to probe '%s': %w", sqfsPath, err)
	}
	if !ok {
		f.Close()
		return nil, nil, fmt.Errorf("'%s' is not a SquashFS image", sqfsPath)
	}

	r, err := squashfs.Mount(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to mount '%s': %w", sqfsPath, err)
	}
	return f, r, nil
}

// printDirEntry prints one listing line: a type indicator, the entry's size
// (regular files only, fetched via the facade's Size(path) operation) and
// its name, mirroring the shape spec.md §6 describes for host-facing entries.
func printDirEntry(r *squashfs.Reader, parent string, entry *squashfs.DirEntry) {
	typeChar := "-"
	switch {
	case entry.Type.IsDir():
		typeChar = "d"
	case entry.Type.IsSymlink():
		typeChar = "l"
	}

	sizeStr := "       -"
	if entry.Type.IsRegular() {
		childPath := entry.Name
		if parent != "." && parent != "" {
			childPath = parent + "/" + entry.Name
		}
		if n, err := r.Size(childPath); err == nil {
			sizeStr = fmt.Sprintf("%8d", n)
		}
	}

	fmt.Printf("%s %s %s\n", typeChar, sizeStr, entry.Name)
}

// listFiles lists files in SquashFS in the specified path, driving
// OpenDir/ReadDir/CloseDir end to end.
func listFiles(sqfsPath, dirPath string) error {
	f, r, err := mount(sqfsPath)
	if err != nil {
		return err
	}
	defer f.Close()
	defer r.Unmount()

	ds, err := r.OpenDir(dirPath)
	if err != nil {
		return fmt.Errorf("path '%s' not found or not a directory: %w", dirPath, err)
	}
	defer ds.CloseDir()

	for {
		entry, err := ds.ReadDir()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read directory '%s': %w", dirPath, err)
		}
		printDirEntry(r, dirPath, entry)
	}

	return nil
}

// catFile displays the contents of a file from a SquashFS archive, driving
// Open/Read/Close in chunks rather than slurping the whole file at once.
func catFile(sqfsPath, filePath string) error {
	f, r, err := mount(sqfsPath)
	if err != nil {
		return err
	}
	defer f.Close()
	defer r.Unmount()

	fh, err := r.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open '%s': %w", filePath, err)
	}
	defer fh.Close()

	buf := make([]byte, 64*1024)
	var offset int64
	for {
		n, err := fh.Read(buf, offset)
		if n > 0 {
			if _, werr := os.Stdout.Write(buf[:n]); werr != nil {
				return fmt.Errorf("failed to write file contents to stdout: %w", werr)
			}
			offset += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read '%s': %w", filePath, err)
		}
		if n == 0 {
			break
		}
	}

	return nil
}

// showInfo displays metadata information about a SquashFS archive.
func showInfo(sqfsPath string) error {
	f, r, err := mount(sqfsPath)
	if err != nil {
		return err
	}
	defer f.Close()
	defer r.Unmount()

	sb := r.Superblock()

	fmt.Println("SquashFS Archive Information")
	fmt.Println("===========================")

	createTime := time.Unix(int64(sb.ModTime), 0)

	fmt.Printf("Version:          %d.%d\n", sb.VMajor, sb.VMinor)
	fmt.Printf("Creation time:    %s\n", createTime.Format(time.RFC1123))
	fmt.Printf("Block size:       %d bytes\n", sb.BlockSize)
	fmt.Printf("Compression:      %s\n", sb.Comp)
	fmt.Printf("Flags:            %s\n", sb.Flags)
	fmt.Printf("Total size:       %d bytes\n", sb.BytesUsed)
	fmt.Printf("Inode count:      %d\n", sb.InodeCnt)
	fmt.Printf("Fragment count:   %d\n", sb.FragCount)
	fmt.Printf("ID count:         %d\n", sb.IdCount)

	var fileCount, dirCount, symCount int
	countFilesAndDirs(r, ".", &fileCount, &dirCount, &symCount)

	fmt.Println("\nContent Summary")
	fmt.Println("--------------")
	fmt.Printf("Directories:      %d\n", dirCount)
	fmt.Printf("Regular files:    %d\n", fileCount)
	fmt.Printf("Symlinks:         %d\n", symCount)

	return nil
}

// countFilesAndDirs recursively counts files, directories and symlinks in
// the archive by walking OpenDir/ReadDir, the same facade listFiles uses.
func countFilesAndDirs(r *squashfs.Reader, dir string, fileCount, dirCount, symCount *int) {
	ds, err := r.OpenDir(dir)
	if err != nil {
		return
	}
	defer ds.CloseDir()

	for {
		entry, err := ds.ReadDir()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch {
		case entry.Type.IsDir():
			*dirCount++
			subdir := entry.Name
			if dir != "." {
				subdir = dir + "/" + entry.Name
			}
			countFilesAndDirs(r, subdir, fileCount, dirCount, symCount)
		case entry.Type.IsSymlink():
			*symCount++
		default:
			*fileCount++
		}
	}
}
