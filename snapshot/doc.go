// Package snapshot serializes arena contents to a durable save-state format.
//
// A snapshot is a self-describing binary image of a memory arena: a fixed
// header, an optional sparse page index, the page payload as a stream of
// independently compressed blocks, and a CRC32 footer. Snapshots written
// on one machine can be restored on another as long as the arena size and
// page size match.
//
// # Saving and Loading
//
//	a, _ := memarena.New(16<<20, memarena.ProtRead|memarena.ProtWrite)
//	defer a.Close()
//
//	var buf bytes.Buffer
//	err := snapshot.Save(ctx, &buf, a, snapshot.WithCodec("zstd"), snapshot.WithSparse(true))
//	...
//	err = snapshot.Load(ctx, &buf, a)
//
// # Sparse Snapshots
//
// With WithSparse, pages that contain only zero bytes are omitted from the
// payload and recorded in a compressed bitmap instead. For arenas that are
// mostly untouched this shrinks snapshots dramatically. Loading a sparse
// snapshot zeroes the absent pages, so the restored arena is bit-identical
// to the saved one.
//
// # Slot Management
//
// Manager organizes numbered save-state slots on top of a blobstore.Store
// and tracks the most recent one through a CURRENT pointer blob:
//
//	mgr, _ := snapshot.NewManager(store, snapshot.WithSlots(10))
//	err := mgr.SaveSlot(ctx, a, 3)
//	err = mgr.LoadCurrent(ctx, a)
package snapshot
