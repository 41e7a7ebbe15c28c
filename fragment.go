package squashfs

import "fmt"

// fragEntriesPerBlock is how many 16-byte fragment entries fit in one fully
// decompressed metadata block (8192 / 16).
const fragEntriesPerBlock = metadataBlockSize / 16

// Fragment describes the shared tail block a file's last partial block was
// packed into: where it lives on disk and how many (optionally compressed)
// bytes it occupies. Multiple files can share one Fragment block, each at
// its own byte offset (an Inode's FragOffset field, not recorded here).
type Fragment struct {
	StartBlock uint64
	Size       uint32
}

// loadFragPtrs reads the fragment index's pointer array: ceil(FragCount/512)
// 64-bit offsets, each naming a metadata block that holds up to 512
// fragment entries (spec.md §4.6).
func (sb *Superblock) loadFragPtrs() ([]uint64, error) {
	sb.fragPtrsOnce.Do(func() {
		if sb.FragCount == 0 {
			return
		}
		n := (int(sb.FragCount) + fragEntriesPerBlock - 1) / fragEntriesPerBlock
		buf := make([]byte, n*8)
		if _, err := sb.fs.ReadAt(buf, int64(sb.FragTableStart)); err != nil {
			sb.fragPtrsErr = fmt.Errorf("%w: reading fragment pointer array: %v", ErrShortRead, err)
			return
		}
		ptrs := make([]uint64, n)
		for i := range ptrs {
			ptrs[i] = sb.order.Uint64(buf[i*8:])
		}
		sb.fragPtrs = ptrs
	})
	return sb.fragPtrs, sb.fragPtrsErr
}

// fragment looks up fragment index idx (as named by a file inode's Fragment
// field), returning the on-disk start and size entry of the fragment block
// it lives in. The file's offset within that block is not part of the
// result; it comes from the inode's FragOffset.
func (sb *Superblock) fragment(idx uint32) (*Fragment, error) {
	if idx == invalidFrag {
		return nil, fmt.Errorf("%w: no fragment for this file", ErrCorruptInode)
	}
	if idx >= sb.FragCount {
		return nil, fmt.Errorf("%w: fragment index %d >= %d fragments", ErrRange, idx, sb.FragCount)
	}

	ptrs, err := sb.loadFragPtrs()
	if err != nil {
		return nil, err
	}
	block := int(idx) / fragEntriesPerBlock
	slot := int(idx) % fragEntriesPerBlock
	if block >= len(ptrs) {
		return nil, fmt.Errorf("%w: fragment index %d out of range", ErrCorruptRef, idx)
	}

	_, payload, err := sb.readMetadataBlockAt(int64(ptrs[block]))
	if err != nil {
		return nil, err
	}
	off := slot * 16
	if off+16 > len(payload) {
		return nil, fmt.Errorf("%w: fragment slot %d past end of block", ErrCorruptRef, slot)
	}

	return &Fragment{
		StartBlock: sb.order.Uint64(payload[off:]),
		Size:       sb.order.Uint32(payload[off+8:]),
	}, nil
}
