package memarena

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// View is one live mapping of a sub-range of an arena's backing store. A
// View is either owning (holds the mapping) or empty (after Close or
// Detach); an empty view performs no further platform calls. Views are
// created only through an Arena and do not keep it alive: the arena must
// outlive every view derived from it.
type View struct {
	arena    *Arena
	base     uintptr
	offset   uint64
	length   uint64
	writable bool
	released atomic.Bool
}

// Base returns the mapped base address, or 0 if the view is empty.
func (v *View) Base() uintptr {
	if v.released.Load() {
		return 0
	}
	return v.base
}

// Bytes returns the mapped range as a byte slice, or nil if the view is
// empty. The slice aliases the backing store directly: writes through it
// are visible through every overlapping view.
// Warning: the slice is valid only until Close or Detach.
func (v *View) Bytes() []byte {
	if v.released.Load() {
		return nil
	}
	//nolint:gosec // base is a live mapping owned by this view
	return unsafe.Slice((*byte)(unsafe.Pointer(v.base)), v.length)
}

// Offset returns the backing-store offset this view maps.
func (v *View) Offset() uint64 {
	return v.offset
}

// Size returns the mapped length in bytes.
func (v *View) Size() uint64 {
	return v.length
}

// Writable reports whether the view was opened writable.
func (v *View) Writable() bool {
	return v.writable
}

// Close flushes the view (if writable) and unmaps it, exactly once; an
// already-closed or detached view is a no-op.
//
// A flush failure would silently lose dirty aliased data, and a failed
// unmap leaves ownership of the address range unknown. Neither state can
// be safely continued past, so Close logs the error and panics instead of
// returning it.
func (v *View) Close() {
	if v.released.Swap(true) {
		return
	}
	if v.writable {
		if err := v.arena.FlushViewPtr(v.base, v.length); err != nil {
			panic(fmt.Errorf("memarena: failed to flush view at teardown: %w", err))
		}
	}
	if err := v.arena.ReleaseViewPtr(v.base, v.length); err != nil {
		panic(fmt.Errorf("memarena: failed to unmap view at teardown: %w", err))
	}
}

// Detach relinquishes ownership of the mapping and returns its base
// address; the view becomes empty. The caller takes over the mapping's
// lifetime and must eventually pass the address to Arena.ReleaseViewPtr
// (after Arena.FlushViewPtr if it was written). Returns 0 if the view is
// already empty.
func (v *View) Detach() uintptr {
	if v.released.Swap(true) {
		return 0
	}
	return v.base
}
