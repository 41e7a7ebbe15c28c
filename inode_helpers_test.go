package squashfs

import "testing"

func TestSqfsCalcNBlocks(t *testing.T) {
	cases := []struct {
		fileSize    uint64
		blockSize   uint32
		hasFragment bool
		want        uint32
	}{
		{0, 4096, false, 0},
		{0, 4096, true, 0},
		{4096, 4096, false, 1},  // exact multiple, no fragment needed in practice but formula still ceils
		{4096, 4096, true, 1},   // exact multiple: one full block, nothing left for a fragment
		{4097, 4096, false, 2},  // needs a second (partial) block, kept whole since no fragment
		{4097, 4096, true, 1},   // one full block, 1 byte tail goes to the fragment
		{100, 4096, true, 0},    // entirely a fragment tail
		{100, 4096, false, 1},
	}
	for _, c := range cases {
		got := sqfsCalcNBlocks(c.fileSize, c.blockSize, c.hasFragment)
		if got != c.want {
			t.Errorf("sqfsCalcNBlocks(%d, %d, %v) = %d, want %d", c.fileSize, c.blockSize, c.hasFragment, got, c.want)
		}
	}
}

func TestBlockCompressedBit(t *testing.T) {
	raw := uint32(1234) | blockCompressedBit
	if blockCompressed(raw) {
		t.Errorf("entry with the bit set should report uncompressed (stored raw)")
	}
	if got := blockLen(raw); got != 1234 {
		t.Errorf("blockLen = %d, want 1234", got)
	}

	compressed := uint32(4321)
	if !blockCompressed(compressed) {
		t.Errorf("entry with the bit clear should report compressed")
	}
	if got := blockLen(compressed); got != 4321 {
		t.Errorf("blockLen = %d, want 4321", got)
	}
}

func TestInodeTypeBasic(t *testing.T) {
	if XDirType.Basic() != DirType {
		t.Errorf("XDirType.Basic() = %v, want DirType", XDirType.Basic())
	}
	if !XFileType.IsRegular() {
		t.Errorf("XFileType should report IsRegular")
	}
	if !SymlinkType.IsSymlink() {
		t.Errorf("SymlinkType should report IsSymlink")
	}
}
