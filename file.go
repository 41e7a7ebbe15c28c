package squashfs

import (
	"fmt"
	"io"
	"io/fs"
	"time"
)

// readFileAt reads up to len(buf) bytes of a regular file's logical content
// starting at file offset off, returning how many bytes were produced. This
// is spec.md §4.7: full blocks are looked up via the inode's block_sizes
// array and read_blocks, and a trailing partial block is satisfied from the
// file's shared fragment, if it has one. offset is always a file offset
// (not a buffer offset) and the return count is how many bytes actually
// landed starting at buf[0], resolving the original driver's inconsistent
// convention for what "offset" and "actread" mean.
func (sb *Superblock) readFileAt(ino *Inode, buf []byte, off int64) (int, error) {
	if !ino.IsRegular() {
		return 0, ErrUnsupportedType
	}
	if off < 0 || uint64(off) > ino.FileSize {
		return 0, ErrRange
	}
	if uint64(off) == ino.FileSize {
		return 0, io.EOF
	}

	remaining := ino.FileSize - uint64(off)
	want := uint64(len(buf))
	if want > remaining {
		want = remaining
	}

	blockSize := uint64(sb.BlockSize)
	fullRegion := uint64(len(ino.BlockSizes)) * blockSize

	var n uint64
	pos := uint64(off)
	for n < want {
		if pos < fullRegion {
			blockIdx := pos / blockSize
			blockOff := pos % blockSize

			payload, err := sb.readDataBlock(ino, int(blockIdx))
			if err != nil {
				return int(n), err
			}
			if blockOff >= uint64(len(payload)) {
				return int(n), fmt.Errorf("%w: short data block", ErrCorruptInode)
			}
			copied := uint64(copy(buf[n:n+min64(want-n, uint64(len(payload))-blockOff)], payload[blockOff:]))
			if copied == 0 {
				return int(n), fmt.Errorf("%w: zero-length copy from data block", ErrCorruptInode)
			}
			n += copied
			pos += copied
		} else {
			tail, err := sb.readFragmentTail(ino)
			if err != nil {
				return int(n), err
			}
			tailOff := pos - fullRegion
			if tailOff >= uint64(len(tail)) {
				return int(n), fmt.Errorf("%w: short fragment tail", ErrCorruptInode)
			}
			copied := uint64(copy(buf[n:n+min64(want-n, uint64(len(tail))-tailOff)], tail[tailOff:]))
			n += copied
			pos += copied
		}
	}

	return int(n), nil
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// readDataBlock fetches and, if needed, decompresses data block blockIdx of
// ino, handling the bit-24 compressed flag and the zero-size sparse-hole
// convention both data and fragment block size entries share (spec.md §6).
func (sb *Superblock) readDataBlock(ino *Inode, blockIdx int) ([]byte, error) {
	sizeEntry := ino.BlockSizes[blockIdx]
	blockSize := int(sb.BlockSize)

	if sizeEntry == 0 {
		// sparse hole: logically all zero, no bytes stored on disk.
		n := blockSize
		if blockIdx == len(ino.BlockSizes)-1 {
			if rem := int(ino.FileSize % uint64(blockSize)); rem != 0 {
				n = rem
			}
		}
		return make([]byte, n), nil
	}

	rawLen := blockLen(sizeEntry)
	if err := checkAlloc(int(rawLen)); err != nil {
		return nil, err
	}
	raw := make([]byte, rawLen)
	if _, err := sb.fs.ReadAt(raw, int64(ino.DataBlockOffset[blockIdx])); err != nil {
		return nil, fmt.Errorf("%w: reading data block %d: %v", ErrShortRead, blockIdx, err)
	}

	if !blockCompressed(sizeEntry) {
		return raw, nil
	}
	return sb.decompress(raw, blockSize)
}

// readFragmentTail fetches, decompresses, and slices out this file's portion
// of its shared fragment block.
func (sb *Superblock) readFragmentTail(ino *Inode) ([]byte, error) {
	frag, err := sb.fragment(ino.Fragment)
	if err != nil {
		return nil, err
	}

	rawLen := blockLen(frag.Size)
	if err := checkAlloc(int(rawLen)); err != nil {
		return nil, err
	}
	raw := make([]byte, rawLen)
	if _, err := sb.fs.ReadAt(raw, int64(frag.StartBlock)); err != nil {
		return nil, fmt.Errorf("%w: reading fragment block: %v", ErrShortRead, err)
	}

	var block []byte
	if blockCompressed(frag.Size) {
		block, err = sb.decompress(raw, int(sb.BlockSize))
		if err != nil {
			return nil, err
		}
	} else {
		block = raw
	}

	tailLen := ino.FileSize - uint64(len(ino.BlockSizes))*uint64(sb.BlockSize)
	if tailLen == 0 {
		return nil, fmt.Errorf("%w: file names a fragment but has no tail bytes", ErrCorruptInode)
	}
	start := int(ino.FragOffset)
	end := start + int(tailLen)
	if start < 0 || end > len(block) {
		return nil, fmt.Errorf("%w: fragment offset/size out of range", ErrCorruptRef)
	}
	return block[start:end], nil
}

// File is the fs.File/fs.ReaderAt view of a regular file's content,
// returned by Superblock.Open.
type File struct {
	sb   *Superblock
	ino  *Inode
	name string
	pos  int64
}

var (
	_ fs.File     = (*File)(nil)
	_ io.ReaderAt = (*File)(nil)
)

func (f *File) Read(p []byte) (int, error) {
	n, err := f.sb.readFileAt(f.ino, p, f.pos)
	f.pos += int64(n)
	return n, err
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.sb.readFileAt(f.ino, p, off)
}

func (f *File) Stat() (fs.FileInfo, error) {
	return newFileInfo(f.sb, f.ino, f.name), nil
}

func (f *File) Close() error { return nil }

// fileInfo adapts a parsed Inode to fs.FileInfo.
type fileInfo struct {
	sb   *Superblock
	ino  *Inode
	name string
}

func newFileInfo(sb *Superblock, ino *Inode, name string) *fileInfo {
	return &fileInfo{sb: sb, ino: ino, name: name}
}

func (fi *fileInfo) Name() string { return fi.name }

func (fi *fileInfo) Size() int64 {
	if fi.ino.IsRegular() {
		return int64(fi.ino.FileSize)
	}
	if fi.ino.IsSymlink() {
		return int64(len(fi.ino.Target))
	}
	return 0
}

func (fi *fileInfo) Mode() fs.FileMode {
	return fi.ino.Type.Mode() | fs.FileMode(fi.ino.Mode&0o7777)
}

func (fi *fileInfo) ModTime() time.Time { return time.Unix(int64(fi.ino.Mtime), 0).UTC() }
func (fi *fileInfo) IsDir() bool        { return fi.ino.IsDir() }
func (fi *fileInfo) Sys() any           { return fi.ino }
