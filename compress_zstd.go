//go:build zstd

package squashfs

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

func init() {
	RegisterDecompressor(ZSTD, streamToDecompressFunc(func(r io.Reader) (io.Reader, error) {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	}))
}
