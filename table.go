package squashfs

import "fmt"

// table is a fully decompressed metadata-block chain, together with an index
// mapping the on-disk byte delta of each block's header (relative to the
// chain's start offset) to that block's position in the concatenated
// decompressed payload. This is how inode and directory references are
// resolved: both are a (index, offset) pair where index names a metadata
// block by its on-disk delta from the owning table's start, and offset is a
// byte position within that block's decompressed payload (spec.md §4.4,
// §4.5), mirroring the m_list/pos_list arrays sqfs_read_inode_table and
// sqfs_read_directory_table build in the original driver.
type table struct {
	data    []byte
	blockAt map[uint64]int
}

// loadTable decompresses every metadata block between start and end
// (exclusive), both absolute byte offsets into the image, and records where
// each block's payload landed in the concatenated result.
func loadTable(sb *Superblock, start, end uint64) (*table, error) {
	if end <= start {
		return nil, fmt.Errorf("%w: empty table range [%d,%d)", ErrCorruptMetadata, start, end)
	}

	t := &table{blockAt: make(map[uint64]int)}
	cur := start
	for cur < end {
		t.blockAt[cur-start] = len(t.data)

		consumed, payload, err := sb.readMetadataBlockAt(int64(cur))
		if err != nil {
			return nil, err
		}
		if err := checkAlloc(len(t.data) + len(payload)); err != nil {
			return nil, err
		}
		t.data = append(t.data, payload...)
		cur += uint64(consumed)
	}

	return t, nil
}

// resolve maps an (index, offset) reference to a position in t.data, failing
// with ErrCorruptRef if index does not name a block boundary this table
// actually has, or offset runs past the end of the decompressed payload.
func (t *table) resolve(index uint64, offset uint16) (int, error) {
	pos, ok := t.blockAt[index]
	if !ok {
		return 0, fmt.Errorf("%w: index %d is not a metadata block boundary", ErrCorruptRef, index)
	}
	p := pos + int(offset)
	if p > len(t.data) {
		return 0, fmt.Errorf("%w: offset %d in block %d runs past table end", ErrCorruptRef, offset, index)
	}
	return p, nil
}

// inodes returns the fully decompressed inode table, loading and caching it
// on first use.
func (sb *Superblock) inodes() (*table, error) {
	sb.inoTableOnce.Do(func() {
		sb.inoTable, sb.inoTableErr = loadTable(sb, sb.InodeTableStart, sb.DirTableStart)
	})
	return sb.inoTable, sb.inoTableErr
}

// directories returns the fully decompressed directory table, loading and
// caching it on first use.
func (sb *Superblock) directories() (*table, error) {
	sb.dirTableOnce.Do(func() {
		sb.dirTable, sb.dirTableErr = loadTable(sb, sb.DirTableStart, sb.FragTableStart)
	})
	return sb.dirTable, sb.dirTableErr
}
