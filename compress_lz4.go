//go:build lz4

package squashfs

import (
	"io"

	"github.com/pierrec/lz4/v4"
)

// LZ4 is not used by the teacher; it is pulled in from the rest of the
// retrieval pack (github.com/diskfs/go-diskfs depends on pierrec/lz4/v4 and
// implements squashfs LZ4 support) per the expansion rule that every
// plausible codec in the pack gets wired somewhere.
func init() {
	RegisterDecompressor(LZ4, streamToDecompressFunc(func(r io.Reader) (io.Reader, error) {
		return lz4.NewReader(r), nil
	}))
}
