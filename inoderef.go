package squashfs

// inodeRef is the packed 64-bit value used throughout an image to point at an
// inode: the low 16 bits are a byte offset into a metadata block's
// decompressed payload, and the high 48 bits are that block's on-disk byte
// delta from the inode table's start (spec.md §4.4). The root inode field in
// the superblock uses this packing, and each directory entry's reference is
// built from its header's start_block and the entry's own offset field.
type inodeRef uint64

func newInodeRef(index uint64, offset uint16) inodeRef {
	return inodeRef(index<<16 | uint64(offset))
}

func (r inodeRef) Index() uint64 {
	return uint64(r) >> 16
}

func (r inodeRef) Offset() uint16 {
	return uint16(uint64(r) & 0xffff)
}
