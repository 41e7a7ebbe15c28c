package squashfs

import (
	"io"

	"github.com/klauspost/compress/zlib"
)

// GZip is mksquashfs's default compressor and is, despite the name, a raw
// zlib (RFC1950) stream rather than a gzip (RFC1952) one. It ships
// unconditionally (no build tag) since a reader that cannot open the common
// case isn't useful; the other codecs are opt-in, matching the teacher's
// own comp_xz.go/comp_zstd.go convention.
func init() {
	RegisterDecompressor(GZip, streamToDecompressFunc(func(r io.Reader) (io.Reader, error) {
		return zlib.NewReader(r)
	}))
}
