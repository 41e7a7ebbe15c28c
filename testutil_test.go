package squashfs

import (
	"bytes"
	"encoding/binary"
)

// buf is a tiny little-endian byte builder used to hand-assemble synthetic
// SquashFS images for tests, the same way the teacher's mock_test.go builds
// minimal images in memory rather than relying on real .squashfs fixtures.
type buf struct {
	bytes.Buffer
}

func (b *buf) u16(v uint16) { binary.Write(&b.Buffer, binary.LittleEndian, v) }
func (b *buf) u32(v uint32) { binary.Write(&b.Buffer, binary.LittleEndian, v) }
func (b *buf) u64(v uint64) { binary.Write(&b.Buffer, binary.LittleEndian, v) }
func (b *buf) i32(v int32)  { binary.Write(&b.Buffer, binary.LittleEndian, v) }
func (b *buf) raw(p []byte) { b.Buffer.Write(p) }

const sentinel64 = 0xffffffffffffffff

// superblockLayout writes the 96-byte fixed superblock header in exactly
// the field order Superblock.unmarshalBinary expects (reflect walks the
// struct's exported fields in declaration order).
func superblockLayout(sb *buf, f superblockFields) {
	sb.u32(f.Magic)
	sb.u32(f.InodeCnt)
	sb.i32(f.ModTime)
	sb.u32(f.BlockSize)
	sb.u32(f.FragCount)
	sb.u16(uint16(f.Comp))
	sb.u16(f.BlockLog)
	sb.u16(uint16(f.Flags))
	sb.u16(f.IdCount)
	sb.u16(f.VMajor)
	sb.u16(f.VMinor)
	sb.u64(f.RootInode)
	sb.u64(f.BytesUsed)
	sb.u64(f.IdTableStart)
	sb.u64(f.XattrIdTableStart)
	sb.u64(f.InodeTableStart)
	sb.u64(f.DirTableStart)
	sb.u64(f.FragTableStart)
	sb.u64(f.ExportTableStart)
}

type superblockFields struct {
	Magic             uint32
	InodeCnt          uint32
	ModTime           int32
	BlockSize         uint32
	FragCount         uint32
	Comp              Compression
	BlockLog          uint16
	Flags             Flags
	IdCount           uint16
	VMajor            uint16
	VMinor            uint16
	RootInode         uint64
	BytesUsed         uint64
	IdTableStart      uint64
	XattrIdTableStart uint64
	InodeTableStart   uint64
	DirTableStart     uint64
	FragTableStart    uint64
	ExportTableStart  uint64
}

// metaBlock wraps payload in an uncompressed metadata block header (bit15
// set, low 15 bits the payload length), matching readMetadataBlockAt's
// expectations for an "uncompressed" block.
func metaBlock(payload []byte) []byte {
	var b buf
	b.u16(0x8000 | uint16(len(payload)))
	b.raw(payload)
	return b.Bytes()
}

// syntheticImage is a hand-built minimal image: a root directory containing
// one regular file ("file.txt", content contentText) and one symlink
// ("greet" -> "file.txt"), with no compression and no fragments, laid out
// entirely with explicit on-disk offsets so every table reference in this
// package's code can be exercised end to end.
type syntheticImage struct {
	data        []byte
	content     []byte
	blockSize   uint32
}

func buildSyntheticImage() syntheticImage {
	const blockSize = 4096
	content := []byte("hello, squashfs\n")

	// --- inode table payload: root dir, file, symlink, back to back ---
	var inodes buf
	// root dir inode (basic dir): common header + start_block/nlink/file_size/offset/parent
	const rootInodeNum = 1
	const fileInodeNum = 2
	const symlinkInodeNum = 3

	rootOffset := inodes.Len()
	inodes.u16(uint16(DirType))
	inodes.u16(0o755)
	inodes.u16(0) // uid idx
	inodes.u16(0) // gid idx
	inodes.u32(0) // mtime
	inodes.u32(rootInodeNum)
	inodes.u32(0) // start_block: dir table delta where root's own entries live
	inodes.u32(1) // nlink
	// file_size (directory listing byte size, filled below once known) placeholder
	dirSizeFieldOffset := inodes.Len()
	inodes.u16(0) // placeholder, patched below
	inodes.u16(0) // offset into dir table block (0)
	inodes.u32(rootInodeNum)

	fileOffset := inodes.Len()
	inodes.u16(uint16(FileType))
	inodes.u16(0o644)
	inodes.u16(0)
	inodes.u16(0)
	inodes.u32(0)
	inodes.u32(fileInodeNum)
	inodes.u32(0)          // start_block for data (patched to absolute offset below)
	inodes.u32(invalidFrag) // no fragment
	inodes.u32(invalidFrag) // no fragment offset either
	inodes.u32(uint32(len(content)))
	inodes.u32(uint32(len(content)) | blockCompressedBit) // single raw block

	symlinkOffset := inodes.Len()
	inodes.u16(uint16(SymlinkType))
	inodes.u16(0o777)
	inodes.u16(0)
	inodes.u16(0)
	inodes.u32(0)
	inodes.u32(symlinkInodeNum)
	inodes.u32(1) // nlink
	inodes.u32(uint32(len("file.txt")))
	inodes.raw([]byte("file.txt"))

	inodeBytes := inodes.Bytes()

	// --- directory table payload: one header + two entries ---
	var dirs buf
	dirs.u32(1) // count-1: 2 entries
	dirs.u32(0) // start_block: inode table delta where entries' inodes live (same block, delta 0)
	dirs.u32(fileInodeNum)

	dirs.u16(uint16(fileOffset))
	dirs.u16(uint16(int16(fileInodeNum - fileInodeNum)))
	dirs.u16(uint16(FileType))
	dirs.u16(uint16(len("file.txt") - 1))
	dirs.raw([]byte("file.txt"))

	dirs.u16(uint16(symlinkOffset))
	dirs.u16(uint16(int16(symlinkInodeNum - fileInodeNum)))
	dirs.u16(uint16(SymlinkType))
	dirs.u16(uint16(len("greet") - 1))
	dirs.raw([]byte("greet"))

	dirBytes := dirs.Bytes()

	// patch root inode's directory size field: stored size = real size + 3
	realDirSize := len(dirBytes)
	binary.LittleEndian.PutUint16(inodeBytes[dirSizeFieldOffset:], uint16(realDirSize+3))

	dirBlock := metaBlock(dirBytes)

	const superblockSize = 96
	inodeTableStart := uint64(superblockSize)
	// inodeBytes' length is already final (patching in place doesn't change
	// it), so the inode metadata block's on-disk size is known before we
	// patch in the file's absolute data offset below.
	dirTableStart := inodeTableStart + uint64(len(metaBlock(inodeBytes)))
	fragTableStart := dirTableStart + uint64(len(dirBlock))
	dataStart := fragTableStart // FragCount == 0, no fragment table bytes at all

	// patch file inode's data start_block to the absolute data offset
	fileStartBlockFieldOffset := fileOffset + 16 // past the 16-byte common header
	binary.LittleEndian.PutUint32(inodeBytes[fileStartBlockFieldOffset:], uint32(dataStart))
	inodeBlock := metaBlock(inodeBytes)

	var img buf
	superblockLayout(&img, superblockFields{
		Magic:             SquashfsMagic,
		InodeCnt:          3,
		BlockSize:         blockSize,
		FragCount:         0,
		Comp:              GZip,
		BlockLog:          12,
		Flags:             0,
		IdCount:           0,
		VMajor:            4,
		VMinor:            0,
		RootInode:         uint64(newInodeRef(0, uint16(rootOffset))),
		BytesUsed:         uint64(superblockSize) + uint64(len(inodeBlock)) + uint64(len(dirBlock)) + uint64(len(content)),
		IdTableStart:      sentinel64,
		XattrIdTableStart: sentinel64,
		InodeTableStart:   inodeTableStart,
		DirTableStart:     dirTableStart,
		FragTableStart:    fragTableStart,
		ExportTableStart:  sentinel64,
	})
	img.raw(inodeBlock)
	img.raw(dirBlock)
	img.raw(content)

	return syntheticImage{data: img.Bytes(), content: content, blockSize: blockSize}
}
