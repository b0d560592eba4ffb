package snapshot

import "errors"

const (
	// MagicNumber identifies snapshot files (ASCII: "DSAR")
	MagicNumber = 0x44534152
	// Version is the current file format version (v1.0.0)
	Version = 0x00010000

	// FlagSparse marks snapshots that carry a page index instead of the
	// full payload.
	FlagSparse = 1 << 0
)

var (
	ErrInvalidMagic     = errors.New("invalid magic number")
	ErrInvalidVersion   = errors.New("unsupported version")
	ErrSizeMismatch     = errors.New("snapshot size does not match arena size")
	ErrPageSizeMismatch = errors.New("snapshot page size does not match host page size")
)

// FileHeader is the 64-byte header at the start of every snapshot.
// All multi-byte fields are little-endian.
type FileHeader struct {
	Magic     uint32   // 0x44534152 ("DSAR")
	Version   uint32   // File format version
	Flags     uint32   // FlagSparse etc.
	PageSize  uint32   // Page size the snapshot was taken with
	ArenaSize uint64   // Size of the source arena in bytes
	Codec     [8]byte  // NUL-padded codec name ("none", "lz4", "zstd")
	Reserved  [32]byte // Future use
}

// codecName decodes the NUL-padded codec field.
func (h *FileHeader) codecName() string {
	for i, b := range h.Codec {
		if b == 0 {
			return string(h.Codec[:i])
		}
	}
	return string(h.Codec[:])
}

// setCodecName encodes name into the fixed codec field.
func (h *FileHeader) setCodecName(name string) {
	h.Codec = [8]byte{}
	copy(h.Codec[:], name)
}
