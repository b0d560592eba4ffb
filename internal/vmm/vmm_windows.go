//go:build windows

package vmm

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// MapViewOfFileEx is not generated in x/sys/windows, so it is resolved
// from kernel32 directly. It is the only way to request a view at a
// caller-chosen base address.
var (
	modkernel32         = windows.NewLazySystemDLL("kernel32.dll")
	procMapViewOfFileEx = modkernel32.NewProc("MapViewOfFileEx")
)

// Store is a handle to an anonymously-shareable backing store. On Windows
// it is a pagefile-backed file mapping object; the name is never opened by
// anyone else, so only this handle reaches it.
type Store struct {
	handle windows.Handle
	size   uint64
}

// NewStore creates a backing store of exactly size bytes. writable and
// executable set the protection ceiling of the mapping object; views may
// request any subset.
func NewStore(name string, size uint64, writable, executable bool) (*Store, error) {
	var prot uint32
	switch {
	case writable && executable:
		prot = windows.PAGE_EXECUTE_READWRITE
	case writable:
		prot = windows.PAGE_READWRITE
	default:
		prot = windows.PAGE_READONLY
	}

	namep, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("mapping name %q: %w", name, err)
	}

	handle, err := windows.CreateFileMapping(windows.InvalidHandle, nil, prot,
		uint32(size>>32), uint32(size), namep)
	if err != nil {
		return nil, fmt.Errorf("CreateFileMapping size=%d: %w", size, err)
	}

	return &Store{handle: handle, size: size}, nil
}

// Size returns the store size in bytes.
func (s *Store) Size() uint64 {
	return s.size
}

// Map maps [offset, offset+length) of the store into the address space.
// A non-zero addr forces the view to exactly that address, claiming the
// range; addr 0 lets the OS choose.
func (s *Store) Map(addr uintptr, offset uint64, length uintptr, p Prot) (uintptr, error) {
	access := uint32(windows.FILE_MAP_READ)
	if p.Write {
		access |= windows.FILE_MAP_WRITE
	}
	if p.Exec {
		access |= windows.FILE_MAP_EXECUTE
	}

	base, _, callErr := procMapViewOfFileEx.Call(uintptr(s.handle), uintptr(access),
		uintptr(offset>>32), uintptr(uint32(offset)), length, addr)
	if base == 0 {
		return 0, fmt.Errorf("MapViewOfFileEx offset=%d length=%d: %w", offset, length, callErr)
	}
	return base, nil
}

// Close releases the mapping object handle. Live views keep their pages
// until unmapped.
func (s *Store) Close() error {
	if err := windows.CloseHandle(s.handle); err != nil {
		return fmt.Errorf("close mapping handle: %w", err)
	}
	return nil
}

// Unmap removes the view at addr. length is unused on Windows, where views
// are unmapped whole.
func Unmap(addr uintptr, length uintptr) error {
	_ = length
	if err := windows.UnmapViewOfFile(addr); err != nil {
		return fmt.Errorf("UnmapViewOfFile addr=%#x: %w", addr, err)
	}
	return nil
}

// Flush writes dirty pages of [addr, addr+length) back to the store.
func Flush(addr uintptr, length uintptr) error {
	if err := windows.FlushViewOfFile(addr, length); err != nil {
		return fmt.Errorf("FlushViewOfFile addr=%#x length=%d: %w", addr, length, err)
	}
	return nil
}

// pageProtection maps the readable x writable x executable triple to the
// page protection constant, always the non-copy-on-write variant. Windows
// has no write-only protection, so writable implies readable.
var pageProtection = [2][2][2]uint32{
	{ // not readable
		{windows.PAGE_NOACCESS, windows.PAGE_EXECUTE},
		{windows.PAGE_READWRITE, windows.PAGE_EXECUTE_READWRITE},
	},
	{ // readable
		{windows.PAGE_READONLY, windows.PAGE_EXECUTE_READ},
		{windows.PAGE_READWRITE, windows.PAGE_EXECUTE_READWRITE},
	},
}

// Protect changes the protection of already-mapped pages in place.
func Protect(addr uintptr, length uintptr, p Prot) error {
	var oldProtect uint32
	prot := pageProtection[b2i(p.Read)][b2i(p.Write)][b2i(p.Exec)]
	if err := windows.VirtualProtect(addr, length, prot, &oldProtect); err != nil {
		return fmt.Errorf("VirtualProtect addr=%#x length=%d prot=%v: %w", addr, length, p, err)
	}
	return nil
}

// ReserveRegion finds a contiguous free region of the given size by
// reserving it without committing backing memory and releasing it again.
// The returned address is only a hint: nothing prevents its reuse before
// the caller maps it.
func ReserveRegion(size uintptr) (uintptr, error) {
	base, err := windows.VirtualAlloc(0, size, windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return 0, fmt.Errorf("reserve %d bytes: %w", size, err)
	}
	if err := windows.VirtualFree(base, 0, windows.MEM_RELEASE); err != nil {
		return 0, fmt.Errorf("release reservation at %#x: %w", base, err)
	}
	return base, nil
}

func b2i(v bool) int {
	if v {
		return 1
	}
	return 0
}
