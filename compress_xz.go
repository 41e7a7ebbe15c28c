//go:build xz

package squashfs

import (
	"io"

	"github.com/ulikunitz/xz"
)

func init() {
	RegisterDecompressor(XZ, streamToDecompressFunc(func(r io.Reader) (io.Reader, error) {
		return xz.NewReader(r)
	}))
}
