package squashfs

import (
	"encoding/binary"
	"fmt"
)

// invalidFrag marks a file inode that uses no fragment block: its whole
// content, including any partial last block, lives in data blocks.
const invalidFrag uint32 = 0xffffffff

// blockCompressedBit is cleared, not set, on a compressed data or fragment
// block size entry: SQUASHFS_COMPRESSED_BIT_BLOCK in the real format. A block
// whose size entry has this bit set is stored raw.
const blockCompressedBit uint32 = 1 << 24

// Inode is the parsed, type-independent view of one on-disk inode: the
// 16-byte common header every variant shares, plus whichever type-specific
// fields parseInode filled in. Basic and extended variants of the same kind
// (e.g. DirType/XDirType) populate the same Go fields for what both wire
// formats carry; fields only an extended format has (Xattr, and Sparse and
// Nlink for a file) stay zero for a basic inode. Type tells a caller which
// wire representation was used.
type Inode struct {
	Type   Type
	Mode   uint16 // permission bits only, no type bits
	UidIdx uint16
	GidIdx uint16
	Mtime  uint32
	Number uint32

	// directory
	StartBlock  uint32
	Offset      uint16
	DirSize     uint32
	Nlink       uint32
	ParentInode uint32

	// regular file
	DataBlockStart  uint64
	FileSize        uint64
	Sparse          uint64
	Fragment        uint32
	FragOffset      uint32
	BlockSizes      []uint32
	DataBlockOffset []uint64 // on-disk start offset of each entry in BlockSizes

	// symlink
	Target string

	Xattr uint32
}

func (ino *Inode) IsDir() bool     { return ino.Type.IsDir() }
func (ino *Inode) IsRegular() bool { return ino.Type.IsRegular() }
func (ino *Inode) IsSymlink() bool { return ino.Type.IsSymlink() }

// HasFragment reports whether the file's tail is packed into a shared
// fragment block rather than occupying a whole data block of its own.
func (ino *Inode) HasFragment() bool {
	return ino.Fragment != invalidFrag
}

// validateFragment enforces spec.md §7/§8's fragment-sentinel rules: the
// only valid combinations are (Fragment==invalidFrag, FragOffset==invalidFrag)
// meaning "no fragment" and (Fragment!=invalidFrag, FragOffset!=invalidFrag)
// meaning "tail lives in this fragment at this offset" — any other mix of
// the sentinel is Corrupt, as is a fragment named on a file whose size is
// already an exact multiple of the block size (its tail would be zero bytes).
func validateFragment(fileSize uint64, blockSize uint32, fragment, fragOffset uint32) error {
	if fragment == invalidFrag {
		if fragOffset != invalidFrag {
			return fmt.Errorf("%w: fragment offset set without a fragment index", ErrCorruptInode)
		}
		return nil
	}
	if fragOffset == invalidFrag {
		return fmt.Errorf("%w: fragment index set without a fragment offset", ErrCorruptInode)
	}
	if blockSize != 0 && fileSize%uint64(blockSize) == 0 {
		return fmt.Errorf("%w: file size %d is an exact multiple of the block size but names a fragment", ErrCorruptInode, fileSize)
	}
	return nil
}

// blockReader is a tiny cursor over an in-memory table payload, used instead
// of bytes.Reader+binary.Read per field so parseInode can read variable-length
// tails (symlink targets, block size arrays) without knowing their length up front.
type blockReader struct {
	data  []byte
	pos   int
	order binary.ByteOrder
}

func (r *blockReader) u16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, fmt.Errorf("%w: inode table truncated", ErrCorruptInode)
	}
	v := r.order.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *blockReader) u32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("%w: inode table truncated", ErrCorruptInode)
	}
	v := r.order.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *blockReader) u64() (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, fmt.Errorf("%w: inode table truncated", ErrCorruptInode)
	}
	v := r.order.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *blockReader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("%w: inode table truncated", ErrCorruptInode)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// parseInode decodes the inode at byte position pos within the (already
// fully decompressed) inode table t, given the image's logical block size
// (needed to size a regular file's block_sizes array). It is grounded on
// the basic/extended inode layouts named in spec.md §4.3 and on U-Boot's
// sqfs_get_regfile_info/sqfs_get_lregfile_info for the block-count formula.
func parseInode(sb *Superblock, t *table, pos int) (*Inode, error) {
	r := &blockReader{data: t.data, pos: pos, order: sb.order}

	rawType, err := r.u16()
	if err != nil {
		return nil, err
	}
	ino := &Inode{Type: Type(rawType)}

	if ino.Mode, err = r.u16(); err != nil {
		return nil, err
	}
	if ino.UidIdx, err = r.u16(); err != nil {
		return nil, err
	}
	if ino.GidIdx, err = r.u16(); err != nil {
		return nil, err
	}
	if ino.Mtime, err = r.u32(); err != nil {
		return nil, err
	}
	if ino.Number, err = r.u32(); err != nil {
		return nil, err
	}

	switch ino.Type.Basic() {
	case DirType:
		if ino.Type == XDirType {
			if err := parseExtendedDir(r, ino); err != nil {
				return nil, err
			}
		} else {
			if err := parseBasicDir(r, ino); err != nil {
				return nil, err
			}
		}
	case FileType:
		if ino.Type == XFileType {
			if err := parseExtendedFile(sb, r, ino); err != nil {
				return nil, err
			}
		} else {
			if err := parseBasicFile(sb, r, ino); err != nil {
				return nil, err
			}
		}
	case SymlinkType:
		if err := parseSymlink(r, ino); err != nil {
			return nil, err
		}
		if ino.Type == XSymlinkType {
			if ino.Xattr, err = r.u32(); err != nil {
				return nil, err
			}
		}
	case BlockDevType, CharDevType, FifoType, SocketType:
		// device/fifo/socket inodes carry an nlink, a device number for
		// block/char devices, and, extended, an xattr index; we don't expose
		// device major/minor (non-goal), so we only consume enough bytes to
		// keep the cursor meaningful.
		if ino.Nlink, err = r.u32(); err != nil {
			return nil, err
		}
		if ino.Type.Basic() == BlockDevType || ino.Type.Basic() == CharDevType {
			if _, err := r.u32(); err != nil { // rdev, not exposed
				return nil, err
			}
		}
		if ino.Type >= XDirType {
			if ino.Xattr, err = r.u32(); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: inode type %d", ErrUnsupportedType, rawType)
	}

	return ino, nil
}

func parseBasicDir(r *blockReader, ino *Inode) (err error) {
	if ino.StartBlock, err = r.u32(); err != nil {
		return err
	}
	if ino.Nlink, err = r.u32(); err != nil {
		return err
	}
	sz, err := r.u16()
	if err != nil {
		return err
	}
	ino.DirSize = uint32(sz)
	if ino.Offset, err = r.u16(); err != nil {
		return err
	}
	if ino.ParentInode, err = r.u32(); err != nil {
		return err
	}
	return nil
}

func parseExtendedDir(r *blockReader, ino *Inode) (err error) {
	if ino.Nlink, err = r.u32(); err != nil {
		return err
	}
	if ino.DirSize, err = r.u32(); err != nil {
		return err
	}
	if ino.StartBlock, err = r.u32(); err != nil {
		return err
	}
	if ino.ParentInode, err = r.u32(); err != nil {
		return err
	}
	iCount, err := r.u16()
	if err != nil {
		return err
	}
	if ino.Offset, err = r.u16(); err != nil {
		return err
	}
	if ino.Xattr, err = r.u32(); err != nil {
		return err
	}
	// the i_count directory-index entries that follow speed up large
	// directory lookups in the original driver; we always scan linearly
	// (spec.md §4.5), so we don't need to parse them.
	_ = iCount
	return nil
}

func parseBasicFile(sb *Superblock, r *blockReader, ino *Inode) (err error) {
	startBlock, err := r.u32()
	if err != nil {
		return err
	}
	ino.DataBlockStart = uint64(startBlock)
	if ino.Fragment, err = r.u32(); err != nil {
		return err
	}
	if ino.FragOffset, err = r.u32(); err != nil {
		return err
	}
	fsz, err := r.u32()
	if err != nil {
		return err
	}
	ino.FileSize = uint64(fsz)
	if err := validateFragment(ino.FileSize, sb.BlockSize, ino.Fragment, ino.FragOffset); err != nil {
		return err
	}
	return readBlockSizes(sb, r, ino)
}

func parseExtendedFile(sb *Superblock, r *blockReader, ino *Inode) (err error) {
	if ino.DataBlockStart, err = r.u64(); err != nil {
		return err
	}
	if ino.FileSize, err = r.u64(); err != nil {
		return err
	}
	if ino.Sparse, err = r.u64(); err != nil {
		return err
	}
	if ino.Nlink, err = r.u32(); err != nil {
		return err
	}
	if ino.Fragment, err = r.u32(); err != nil {
		return err
	}
	if ino.FragOffset, err = r.u32(); err != nil {
		return err
	}
	if ino.Xattr, err = r.u32(); err != nil {
		return err
	}
	if err := validateFragment(ino.FileSize, sb.BlockSize, ino.Fragment, ino.FragOffset); err != nil {
		return err
	}
	return readBlockSizes(sb, r, ino)
}

// readBlockSizes reads the variable-length array of per-data-block size
// entries following a file inode's fixed fields, sized by
// sqfsCalcNBlocks. Each entry's high bit (blockCompressedBit) records whether
// that one block was stored raw; a zero entry marks a sparse (all-zero) hole.
func readBlockSizes(sb *Superblock, r *blockReader, ino *Inode) error {
	n := sqfsCalcNBlocks(ino.FileSize, sb.BlockSize, ino.HasFragment())
	if err := checkAlloc(int(n) * 4); err != nil {
		return err
	}
	sizes := make([]uint32, n)
	offsets := make([]uint64, n)
	cur := ino.DataBlockStart
	for i := range sizes {
		v, err := r.u32()
		if err != nil {
			return err
		}
		sizes[i] = v
		offsets[i] = cur
		cur += uint64(blockLen(v))
	}
	ino.BlockSizes = sizes
	ino.DataBlockOffset = offsets
	return nil
}

func parseSymlink(r *blockReader, ino *Inode) (err error) {
	if ino.Nlink, err = r.u32(); err != nil {
		return err
	}
	n, err := r.u32()
	if err != nil {
		return err
	}
	if err := checkAlloc(int(n)); err != nil {
		return err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return err
	}
	ino.Target = string(b)
	return nil
}

// sqfsCalcNBlocks mirrors U-Boot's sqfs_calc_n_blks: a file with no fragment
// needs ceil(fileSize/blockSize) full data blocks; one using a fragment
// stores only the whole blocks and leaves its tail in the fragment, so it
// needs floor(fileSize/blockSize).
func sqfsCalcNBlocks(fileSize uint64, blockSize uint32, hasFragment bool) uint32 {
	if fileSize == 0 {
		return 0
	}
	bs := uint64(blockSize)
	if hasFragment {
		return uint32(fileSize / bs)
	}
	return uint32((fileSize + bs - 1) / bs)
}

// blockCompressed reports whether a data/fragment block size entry describes
// a compressed block: the real on-disk convention is the inverse of its name
// — the bit is set exactly when the block is stored raw (spec.md §6).
func blockCompressed(sizeEntry uint32) bool {
	return sizeEntry&blockCompressedBit == 0
}

// blockLen returns the number of on-disk bytes a data/fragment block size
// entry occupies, with the compressed-flag bit masked off.
func blockLen(sizeEntry uint32) uint32 {
	return sizeEntry &^ blockCompressedBit
}
