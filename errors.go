package squashfs

import "errors"

// Package-specific error variables that can be used with errors.Is() for error handling.
// These map onto the error kinds a SquashFS reader must surface: IO, Corrupt, NotFound,
// NotDir, Unsupported, Range, Loop and NoMem.
var (
	// ErrInvalidFile is returned when the image does not start with the SquashFS magic.
	ErrInvalidFile = errors.New("invalid file, squashfs signature not found")

	// ErrInvalidSuper is returned when the superblock's table offsets are not
	// strictly monotonically increasing, or otherwise fail validation.
	ErrInvalidSuper = errors.New("invalid squashfs superblock")

	// ErrInvalidVersion is returned when the on-disk version is not 4.0.
	ErrInvalidVersion = errors.New("invalid file version, expected squashfs 4.0")

	// ErrShortRead is returned when the block device collaborator produced
	// fewer bytes than requested.
	ErrShortRead = errors.New("squashfs: short read from block device")

	// ErrCorruptMetadata is returned when a metadata block header is inconsistent
	// (zero payload length, payload too large, or decompression failure).
	ErrCorruptMetadata = errors.New("squashfs: corrupt metadata block")

	// ErrCorruptRef is returned when an inode or directory reference does not
	// land inside the decompressed table it addresses.
	ErrCorruptRef = errors.New("squashfs: inode or directory reference out of range")

	// ErrCorruptInode is returned when an inode's own fields are inconsistent
	// (e.g. a fragmented file whose tail would be zero bytes).
	ErrCorruptInode = errors.New("squashfs: corrupt inode")

	// ErrNotDirectory is returned when attempting directory operations on a non-directory.
	ErrNotDirectory = errors.New("squashfs: not a directory")

	// ErrUnsupportedType is returned when an operation is attempted on an inode
	// type the reader recognizes but does not otherwise handle (device/fifo/socket).
	ErrUnsupportedType = errors.New("squashfs: unsupported inode type")

	// ErrUnsupportedCompression is returned when the superblock names a
	// compression algorithm for which no decompressor is registered.
	ErrUnsupportedCompression = errors.New("squashfs: unsupported compression algorithm")

	// ErrRange is returned when a read starts past the end of the file, or a
	// file names a fragment index not below the image's fragment count. A read
	// longer than the rest of the file is shortened, not rejected.
	ErrRange = errors.New("squashfs: requested range exceeds file size")

	// ErrTooManySymlinks is returned when symlink resolution exceeds the maximum depth.
	ErrTooManySymlinks = errors.New("squashfs: too many levels of symbolic links")

	// ErrAllocTooLarge is returned when a computed allocation size (derived
	// from on-disk, attacker-controllable fields) exceeds a sane bound. This
	// stands in for the spec's NoMem kind: we refuse the allocation rather
	// than let a corrupt image force an enormous malloc.
	ErrAllocTooLarge = errors.New("squashfs: refusing implausibly large allocation")

	// ErrClosed is returned by any operation on a reader or directory stream
	// after Close/closedir has already run.
	ErrClosed = errors.New("squashfs: use of closed reader")
)
