package squashfs

import (
	"fmt"
)

// metadataHeaderSize is the fixed 16-bit header every metadata block begins with.
const metadataHeaderSize = 2

// readMetadataBlockAt parses the 16-bit header of the metadata block whose
// header starts at byte offset off (relative to the start of sb.fs), then
// either copies or decompresses its payload. It returns the decompressed
// payload and the number of on-disk bytes consumed (header + compressed
// payload), so a caller walking a chain of blocks can advance off by
// `consumed` to reach the next one. This is the "Metadata-block reader"
// component (spec.md §4.2).
func (sb *Superblock) readMetadataBlockAt(off int64) (consumed int, payload []byte, err error) {
	head := make([]byte, metadataHeaderSize)
	n, err := sb.fs.ReadAt(head, off)
	if err != nil || n != len(head) {
		return 0, nil, fmt.Errorf("%w: reading metadata header at %d: %v", ErrShortRead, off, err)
	}

	lenN := sb.order.Uint16(head)
	uncompressed := lenN&0x8000 != 0
	payloadLen := int(lenN & 0x7fff)

	if payloadLen == 0 {
		return 0, nil, fmt.Errorf("%w: zero-length metadata block at %d", ErrCorruptMetadata, off)
	}
	if uncompressed && payloadLen > metadataBlockSize {
		return 0, nil, fmt.Errorf("%w: uncompressed payload %d exceeds %d at %d", ErrCorruptMetadata, payloadLen, metadataBlockSize, off)
	}

	raw := make([]byte, payloadLen)
	n, err = sb.fs.ReadAt(raw, off+metadataHeaderSize)
	if err != nil || n != len(raw) {
		return 0, nil, fmt.Errorf("%w: reading metadata payload at %d: %v", ErrShortRead, off, err)
	}

	if uncompressed {
		payload = raw
	} else {
		payload, err = sb.decompress(raw, metadataBlockSize)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: decompressing metadata block at %d: %v", ErrCorruptMetadata, off, err)
		}
		if len(payload) == 0 || len(payload) > metadataBlockSize {
			return 0, nil, fmt.Errorf("%w: decompressed metadata block at %d has implausible size %d", ErrCorruptMetadata, off, len(payload))
		}
	}

	return metadataHeaderSize + payloadLen, payload, nil
}
