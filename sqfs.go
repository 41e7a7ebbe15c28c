package squashfs

import (
	"fmt"
	"io"
	"io/fs"
	"sort"
)

// maxSymlinkDepth bounds how many symlinks Open/Stat will follow while
// resolving one path, matching spec.md §4.5's recommended cap; exceeding it
// reports ErrTooManySymlinks rather than looping forever on a cyclic image.
const maxSymlinkDepth = 40

var (
	_ fs.FS         = (*Superblock)(nil)
	_ fs.StatFS     = (*Superblock)(nil)
	_ fs.ReadDirFS  = (*Superblock)(nil)
	_ fs.ReadFileFS = (*Superblock)(nil)
)

// lookup resolves a token path to its inode, starting from the image root
// and restarting traversal from the root each time a symlink is followed
// (with depth capped at maxSymlinkDepth to reject cycles). followFinal
// controls whether the last path component is itself followed if it names a
// symlink: Stat/Open want it followed, Lstat does not.
func (sb *Superblock) lookup(toks []string, followFinal bool) (*Inode, error) {
	ino, err := sb.Root()
	if err != nil {
		return nil, err
	}

	depth := 0
	i := 0
	for i < len(toks) {
		if !ino.IsDir() {
			return nil, fmt.Errorf("%w: %q", ErrNotDirectory, toks[i-1])
		}

		entry, err := sb.findEntry(ino, toks[i])
		if err != nil {
			return nil, err
		}
		next, err := sb.inodeAt(entry.Ref)
		if err != nil {
			return nil, err
		}

		isLast := i == len(toks)-1
		if next.IsSymlink() && (!isLast || followFinal) {
			depth++
			if depth > maxSymlinkDepth {
				return nil, fmt.Errorf("%w: chasing %s", ErrTooManySymlinks, joinTokens(toks))
			}
			resolved := resolveSymlink(toks[:i], next.Target)
			toks = append(append([]string{}, resolved...), toks[i+1:]...)
			i = 0
			if ino, err = sb.Root(); err != nil {
				return nil, err
			}
			continue
		}

		ino = next
		i++
	}

	return ino, nil
}

func pathError(op, name string, err error) error {
	return &fs.PathError{Op: op, Path: name, Err: err}
}

func (sb *Superblock) resolve(op, name string, followFinal bool) (*Inode, error) {
	if !fs.ValidPath(name) {
		return nil, pathError(op, name, fs.ErrInvalid)
	}
	ino, err := sb.lookup(tokenize(name), followFinal)
	if err != nil {
		return nil, pathError(op, name, err)
	}
	return ino, nil
}

// resolvePath resolves a POSIX-style path (leading "/" optional, ".."
// permitted and collapsed against already-resolved components) for the
// literal spec facade in dispatcher.go, which isn't bound to fs.FS's
// stricter path grammar.
func (sb *Superblock) resolvePath(op, name string, followFinal bool) (*Inode, error) {
	ino, err := sb.lookup(tokenizePath(name), followFinal)
	if err != nil {
		return nil, pathError(op, name, err)
	}
	return ino, nil
}

// Open implements fs.FS: it resolves name (following any symlinks, including
// the final component) and returns a *File for a regular file or a
// directory handle supporting fs.ReadDirFile.
func (sb *Superblock) Open(name string) (fs.File, error) {
	ino, err := sb.resolve("open", name, true)
	if err != nil {
		return nil, err
	}
	if ino.IsDir() {
		entries, err := sb.readDirectory(ino)
		if err != nil {
			return nil, pathError("open", name, err)
		}
		return newDirHandle(sb, ino, name, entries), nil
	}
	if !ino.IsRegular() {
		return nil, pathError("open", name, ErrUnsupportedType)
	}
	return &File{sb: sb, ino: ino, name: name}, nil
}

// Stat implements fs.StatFS, following symlinks.
func (sb *Superblock) Stat(name string) (fs.FileInfo, error) {
	ino, err := sb.resolve("stat", name, true)
	if err != nil {
		return nil, err
	}
	return newFileInfo(sb, ino, name), nil
}

// Lstat stats name without following a symlink named by its final component.
func (sb *Superblock) Lstat(name string) (fs.FileInfo, error) {
	ino, err := sb.resolve("lstat", name, false)
	if err != nil {
		return nil, err
	}
	return newFileInfo(sb, ino, name), nil
}

// ReadDir implements fs.ReadDirFS.
func (sb *Superblock) ReadDir(name string) ([]fs.DirEntry, error) {
	ino, err := sb.resolve("readdir", name, true)
	if err != nil {
		return nil, err
	}
	if !ino.IsDir() {
		return nil, pathError("readdir", name, ErrNotDirectory)
	}
	entries, err := sb.readDirectory(ino)
	if err != nil {
		return nil, pathError("readdir", name, err)
	}

	out := make([]fs.DirEntry, len(entries))
	for i, e := range entries {
		out[i] = dirEntryAdapter{sb: sb, e: e}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

// ReadFile implements fs.ReadFileFS.
func (sb *Superblock) ReadFile(name string) ([]byte, error) {
	ino, err := sb.resolve("readfile", name, true)
	if err != nil {
		return nil, err
	}
	if !ino.IsRegular() {
		return nil, pathError("readfile", name, ErrUnsupportedType)
	}
	if err := checkAlloc(int(ino.FileSize)); err != nil {
		return nil, pathError("readfile", name, err)
	}
	buf := make([]byte, ino.FileSize)
	n, err := sb.readFileAt(ino, buf, 0)
	if err != nil && n != len(buf) {
		return nil, pathError("readfile", name, err)
	}
	return buf[:n], nil
}

// Readlink returns a symlink's raw target text, without resolving it.
func (sb *Superblock) Readlink(name string) (string, error) {
	ino, err := sb.resolve("readlink", name, false)
	if err != nil {
		return "", err
	}
	if !ino.IsSymlink() {
		return "", pathError("readlink", name, fs.ErrInvalid)
	}
	return ino.Target, nil
}

// FindInode resolves name to its raw parsed Inode, following symlinks,
// for callers that want lower-level access than fs.FS offers (e.g. nlink,
// uid/gid index, block layout).
func (sb *Superblock) FindInode(name string) (*Inode, error) {
	return sb.resolve("stat", name, true)
}

// dirEntryAdapter adapts our DirEntry to fs.DirEntry, fetching the target
// inode lazily (only when Info() is actually called).
type dirEntryAdapter struct {
	sb *Superblock
	e  DirEntry
}

func (d dirEntryAdapter) Name() string { return d.e.Name }
func (d dirEntryAdapter) IsDir() bool  { return d.e.IsDir() }
func (d dirEntryAdapter) Type() fs.FileMode {
	return d.e.Type.Mode()
}
func (d dirEntryAdapter) Info() (fs.FileInfo, error) {
	ino, err := d.sb.inodeAt(d.e.Ref)
	if err != nil {
		return nil, err
	}
	return newFileInfo(d.sb, ino, d.e.Name), nil
}

// dirHandle is the fs.ReadDirFile returned by Open for a directory: it
// implements the stateful "Fresh -> Iterating -> Exhausted" cursor
// spec.md §4.8 describes for directory streams.
type dirHandle struct {
	sb      *Superblock
	ino     *Inode
	name    string
	entries []DirEntry
	pos     int
}

func newDirHandle(sb *Superblock, ino *Inode, name string, entries []DirEntry) *dirHandle {
	return &dirHandle{sb: sb, ino: ino, name: name, entries: entries}
}

func (d *dirHandle) Stat() (fs.FileInfo, error) { return newFileInfo(d.sb, d.ino, d.name), nil }

func (d *dirHandle) Read([]byte) (int, error) {
	return 0, pathError("read", d.name, ErrNotDirectory)
}

func (d *dirHandle) Close() error { return nil }

// ReadDir implements fs.ReadDirFile: n<=0 drains every remaining entry with a
// nil error even if that's zero entries; n>0 returns at most n entries and,
// once exhausted, io.EOF.
func (d *dirHandle) ReadDir(n int) ([]fs.DirEntry, error) {
	remaining := len(d.entries) - d.pos
	var want int
	var err error
	if n <= 0 {
		want = remaining
	} else {
		want = n
		if want > remaining {
			want = remaining
		}
		if want == 0 {
			err = io.EOF
		}
	}

	out := make([]fs.DirEntry, want)
	for i := 0; i < want; i++ {
		out[i] = dirEntryAdapter{sb: d.sb, e: d.entries[d.pos+i]}
	}
	d.pos += want

	return out, err
}
