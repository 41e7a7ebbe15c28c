package squashfs

import (
	"fmt"
	"io/fs"
)

// DirEntry is one decoded entry from a directory listing: a name, the type
// tag carried alongside it (so callers can tell a directory from a file
// without fetching the target inode), and the packed reference needed to
// fetch that inode.
type DirEntry struct {
	Name        string
	Type        Type
	InodeNumber uint32
	Ref         inodeRef
}

func (e DirEntry) IsDir() bool { return e.Type.IsDir() }

// inodeAt parses the inode a packed reference points at.
func (sb *Superblock) inodeAt(ref inodeRef) (*Inode, error) {
	it, err := sb.inodes()
	if err != nil {
		return nil, err
	}
	pos, err := it.resolve(ref.Index(), ref.Offset())
	if err != nil {
		return nil, err
	}
	return parseInode(sb, it, pos)
}

// Root parses and returns the image's root directory inode.
func (sb *Superblock) Root() (*Inode, error) {
	return sb.inodeAt(inodeRef(sb.RootInode))
}

// readDirectory decodes the full entry list for a directory inode
// (spec.md §4.5): a chain of (header, entries...) groups is read directly
// out of the already-decompressed directory table, starting at the inode's
// (start_block, offset) reference and running for DirSize-3 bytes — the
// on-disk size always includes 3 bytes of fixed overhead that isn't part of
// any entry.
func (sb *Superblock) readDirectory(ino *Inode) ([]DirEntry, error) {
	if !ino.IsDir() {
		return nil, ErrNotDirectory
	}

	dt, err := sb.directories()
	if err != nil {
		return nil, err
	}

	pos, err := dt.resolve(uint64(ino.StartBlock), ino.Offset)
	if err != nil {
		return nil, err
	}

	realSize := int(ino.DirSize) - 3
	if realSize < 0 {
		realSize = 0
	}
	end := pos + realSize
	if end > len(dt.data) {
		return nil, fmt.Errorf("%w: directory size runs past table end", ErrCorruptRef)
	}

	var entries []DirEntry
	r := &blockReader{data: dt.data, pos: pos, order: sb.order}
	for r.pos < end {
		countM1, err := r.u32()
		if err != nil {
			return nil, err
		}
		startBlock, err := r.u32()
		if err != nil {
			return nil, err
		}
		baseInode, err := r.u32()
		if err != nil {
			return nil, err
		}

		count := int(countM1) + 1
		for i := 0; i < count; i++ {
			offset, err := r.u16()
			if err != nil {
				return nil, err
			}
			deltaRaw, err := r.u16()
			if err != nil {
				return nil, err
			}
			typ, err := r.u16()
			if err != nil {
				return nil, err
			}
			nameSizeM1, err := r.u16()
			if err != nil {
				return nil, err
			}
			nameBytes, err := r.bytes(int(nameSizeM1) + 1)
			if err != nil {
				return nil, err
			}

			delta := int16(deltaRaw)
			entries = append(entries, DirEntry{
				Name:        string(nameBytes),
				Type:        Type(typ),
				InodeNumber: uint32(int64(baseInode) + int64(delta)),
				Ref:         newInodeRef(uint64(startBlock), offset),
			})
		}
	}

	return entries, nil
}

// findEntry linearly scans a directory's entries for name, matching
// sqfs_search_dir's approach (no fast index lookup).
func (sb *Superblock) findEntry(ino *Inode, name string) (*DirEntry, error) {
	entries, err := sb.readDirectory(ino)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Name == name {
			return &entries[i], nil
		}
	}
	return nil, fs.ErrNotExist
}
