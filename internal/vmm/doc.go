// Package vmm wraps the platform virtual-memory primitives used by the
// arena: creating an anonymously-shareable backing store, mapping and
// unmapping byte ranges of it at chosen or arbitrary addresses, changing
// page protection in place, and flushing dirty pages back to the store.
//
// # Backend Selection
//
// Exactly one backend is compiled in, selected by build tags:
//
//   - Linux: a named object under /dev/shm, unlinked immediately after
//     creation so it is reachable only through the open descriptor, then
//     mmap/msync/munmap/mprotect via golang.org/x/sys/unix.
//   - Windows: a pagefile-backed file mapping object, then
//     MapViewOfFileEx/FlushViewOfFile/UnmapViewOfFile/VirtualProtect via
//     golang.org/x/sys/windows.
//
// There is no runtime dispatch between backends and no fallback for other
// platforms.
//
// # Addresses
//
// The package deals in raw addresses (uintptr), not Go slices: mappings can
// be placed at caller-chosen fixed addresses and several mappings may alias
// the same store pages, which does not fit the single-owner model of a
// []byte-returning API. Callers use unsafe.Slice when byte access is
// needed.
package vmm
