// Package memarena provides a cross-platform virtual-memory arena: a
// fixed-size anonymous, shareable backing store with any number of
// independent views (memory mappings) of its sub-ranges, at caller-chosen
// or OS-chosen addresses, each with its own page protection.
//
// # Overview
//
// The point of the arena is aliasing: several views may map the same or
// overlapping backing-store offsets, so a write through one view is visible
// through all others without copying. This is how hardware-mirrored guest
// memory regions are presented as ordinary contiguous address ranges, and
// how a single buffer can be mapped writable in one place and
// read-executable in another for just-in-time code.
//
//	arena, err := memarena.New(0x200000, memarena.ProtRead|memarena.ProtWrite)
//	if err != nil { ... }
//	defer arena.Close()
//
//	// Two views over the same offsets: classic mirror.
//	a, _ := arena.CreateView(0, 0x1000, memarena.ProtRead|memarena.ProtWrite)
//	b, _ := arena.CreateView(0, 0x1000, memarena.ProtRead|memarena.ProtWrite)
//	a.Bytes()[0] = 0xAB // observable as b.Bytes()[0]
//
// # Lifetime
//
// Views are created only through an Arena and must be closed before the
// arena itself; Close on an arena with live views fails with
// ErrViewsOutstanding. Closing a view flushes dirty pages (if the view is
// writable) and unmaps it; a flush or unmap failure at teardown leaves the
// address space in an unknown state and aborts the process.
//
// # Concurrency
//
// Arena and View operations may be called from multiple goroutines; the
// live-view counter is atomic and the kernel serializes page-table
// mutation. The contents of aliased pages carry no extra synchronization:
// writers and readers of overlapping views synchronize themselves, and
// FindBaseAddressForMapping must be confined to single-threaded startup.
//
// # Platform Support
//
//   - Linux: shm object (created under /dev/shm, immediately unlinked),
//     mmap/msync/munmap/mprotect.
//   - Windows: pagefile-backed file mapping,
//     MapViewOfFileEx/FlushViewOfFile/UnmapViewOfFile/VirtualProtect.
//
// Other platforms are not supported.
package memarena
