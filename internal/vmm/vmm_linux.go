//go:build linux

package vmm

import (
	"fmt"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Store is a handle to an anonymously-shareable backing store. On Linux it
// is a /dev/shm object that has already been unlinked, so the descriptor is
// the only way to reach it.
type Store struct {
	fd   int
	size uint64
}

// NewStore creates a backing store of exactly size bytes. The named object
// is unlinked immediately after creation; no other process can discover it.
// The executable flag is unused on Linux, where protection is chosen per
// mapping.
func NewStore(name string, size uint64, writable, executable bool) (*Store, error) {
	_ = executable

	flags := unix.O_CREAT | unix.O_EXCL
	if writable {
		flags |= unix.O_RDWR
	} else {
		flags |= unix.O_RDONLY
	}

	path := filepath.Join("/dev/shm", name)
	fd, err := unix.Open(path, flags, 0600)
	if err != nil {
		return nil, fmt.Errorf("shm open %q: %w", name, err)
	}

	// Only handles derived from this descriptor can reach the store now.
	if err := unix.Unlink(path); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("shm unlink %q: %w", name, err)
	}

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("ftruncate to %d: %w", size, err)
	}

	return &Store{fd: fd, size: size}, nil
}

// Size returns the store size in bytes.
func (s *Store) Size() uint64 {
	return s.size
}

// Map maps [offset, offset+length) of the store into the address space.
// A non-zero addr forces the mapping to exactly that address, replacing
// whatever is there; addr 0 lets the kernel choose.
func (s *Store) Map(addr uintptr, offset uint64, length uintptr, p Prot) (uintptr, error) {
	flags := unix.MAP_SHARED
	if addr != 0 {
		flags |= unix.MAP_FIXED
	}

	//nolint:gosec // addr originates from a prior mapping or reservation
	base, err := unix.MmapPtr(s.fd, int64(offset), unsafe.Pointer(addr), length, protFlags(p), flags)
	if err != nil {
		return 0, fmt.Errorf("mmap offset=%d length=%d: %w", offset, length, err)
	}
	return uintptr(base), nil
}

// Close closes the store descriptor. Live mappings keep their pages until
// unmapped; the kernel frees the object when the last reference drops.
func (s *Store) Close() error {
	if err := unix.Close(s.fd); err != nil {
		return fmt.Errorf("close shm fd: %w", err)
	}
	return nil
}

// Unmap removes the mapping at [addr, addr+length).
func Unmap(addr uintptr, length uintptr) error {
	//nolint:gosec // addr is a mapping base returned by Map
	if err := unix.MunmapPtr(unsafe.Pointer(addr), length); err != nil {
		return fmt.Errorf("munmap addr=%#x length=%d: %w", addr, length, err)
	}
	return nil
}

// Flush writes dirty pages of [addr, addr+length) back to the store so the
// data is visible to any other or future mapping of the same range.
func Flush(addr uintptr, length uintptr) error {
	b := byteRange(addr, length)
	if err := unix.Msync(b, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync addr=%#x length=%d: %w", addr, length, err)
	}
	return nil
}

// Protect changes the protection of already-mapped pages in place.
func Protect(addr uintptr, length uintptr, p Prot) error {
	b := byteRange(addr, length)
	if err := unix.Mprotect(b, protFlags(p)); err != nil {
		return fmt.Errorf("mprotect addr=%#x length=%d prot=%v: %w", addr, length, p, err)
	}
	return nil
}

// ReserveRegion finds a contiguous free region of the given size by
// reserving it with an inaccessible anonymous mapping and releasing it
// again. The returned address is only a hint: nothing prevents its reuse
// before the caller maps it.
func ReserveRegion(size uintptr) (uintptr, error) {
	base, err := unix.MmapPtr(-1, 0, nil, size, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, fmt.Errorf("reserve %d bytes: %w", size, err)
	}
	if err := unix.MunmapPtr(base, size); err != nil {
		return 0, fmt.Errorf("release reservation at %p: %w", base, err)
	}
	return uintptr(base), nil
}

func protFlags(p Prot) int {
	prot := unix.PROT_NONE
	if p.Read {
		prot |= unix.PROT_READ
	}
	if p.Write {
		prot |= unix.PROT_WRITE
	}
	if p.Exec {
		prot |= unix.PROT_EXEC
	}
	return prot
}

func byteRange(addr uintptr, length uintptr) []byte {
	//nolint:gosec // addr is a mapping base returned by Map
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), length)
}
