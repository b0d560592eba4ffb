package memarena

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/vaginessa/duckstation/internal/conv"
	"github.com/vaginessa/duckstation/internal/vmm"
)

// storeSeq disambiguates stores created in the same process with the same
// size; the derived name must be unique for the instant it exists.
var storeSeq atomic.Uint64

// Arena owns one fixed-size anonymous, shareable backing store and hands
// out views of its sub-ranges. The zero value is not usable; construct
// with New.
type Arena struct {
	store    *vmm.Store
	size     uint64
	views    atomic.Int64
	closed   atomic.Bool
	logger   *Logger
	metrics  MetricsCollector
	acquirer MemoryAcquirer
}

// New allocates a backing store of exactly size bytes. maxProt is the
// store's permission ceiling: views may request any subset at or below it.
// The store is created under a process-and-size-derived unique name and
// immediately detached from that name, so only this arena can reach it.
func New(size uint64, maxProt Protection, opts ...Option) (*Arena, error) {
	if size == 0 {
		return nil, ErrInvalidSize
	}

	o := options{
		logger:  NewLogger(nil),
		metrics: NoopMetricsCollector{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.acquirer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		if err := o.acquirer.AcquireMemory(ctx, int64(size)); err != nil {
			return nil, fmt.Errorf("memarena: acquire %d bytes: %w", size, err)
		}
	}

	name := o.storeName
	if name == "" {
		name = fmt.Sprintf("duckstation_arena_%d_%d_%d", size, os.Getpid(), storeSeq.Add(1))
	}

	store, err := vmm.NewStore(name, size, maxProt.Writable(), maxProt.Executable())
	if err != nil {
		if o.acquirer != nil {
			o.acquirer.ReleaseMemory(int64(size))
		}
		o.logger.Error("create backing store failed", "size", size, "error", err)
		return nil, fmt.Errorf("memarena: %w", err)
	}

	o.logger.Debug("backing store created", "size", size, "prot", maxProt.String())

	return &Arena{
		store:    store,
		size:     size,
		logger:   o.logger,
		metrics:  o.metrics,
		acquirer: o.acquirer,
	}, nil
}

// Size returns the fixed size of the backing store in bytes.
func (a *Arena) Size() uint64 {
	return a.size
}

// Views returns the number of currently-live views of this arena.
func (a *Arena) Views() int64 {
	return a.views.Load()
}

// FindBaseAddressForMapping reserves a contiguous block of free virtual
// address space, releases the reservation, and returns its base address.
// Use it to discover a region wide enough for a planned layout of several
// fixed-address views before creating them.
//
// The result is only a hint: the region may be claimed by any other
// allocation between release and the caller's mapping. Confine calls to
// single-threaded startup.
func (a *Arena) FindBaseAddressForMapping(size uint64) (uintptr, error) {
	n, err := conv.Uint64ToUintptr(size)
	if err != nil {
		return 0, fmt.Errorf("memarena: %w", err)
	}
	base, err := vmm.ReserveRegion(n)
	if err != nil {
		a.logger.Error("find base address failed", "size", size, "error", err)
		return 0, fmt.Errorf("memarena: %w", err)
	}
	return base, nil
}

// CreateView maps [offset, offset+length) of the backing store at an
// OS-chosen address. Overlapping or identical ranges across views are
// explicitly supported; that aliasing is the arena's reason to exist.
// ProtRead is implied.
func (a *Arena) CreateView(offset, length uint64, prot Protection) (*View, error) {
	return a.CreateViewAt(0, offset, length, prot)
}

// CreateViewAt is CreateView with a forced base address: the view claims
// exactly [addr, addr+length), replacing any mapping there. addr 0 falls
// back to an OS-chosen address.
func (a *Arena) CreateViewAt(addr uintptr, offset, length uint64, prot Protection) (*View, error) {
	base, err := a.CreateViewPtr(offset, length, prot, addr)
	if err != nil {
		return nil, err
	}
	return &View{
		arena:    a,
		base:     base,
		offset:   offset,
		length:   length,
		writable: prot.Writable(),
	}, nil
}

// CreateViewPtr is the raw-pointer variant of CreateView for callers that
// manage the mapping's lifetime themselves: the returned address must
// eventually be passed to ReleaseViewPtr (after FlushViewPtr if written).
// addr 0 requests an OS-chosen address.
func (a *Arena) CreateViewPtr(offset, length uint64, prot Protection, addr uintptr) (uintptr, error) {
	start := time.Now()
	base, err := a.createViewPtr(offset, length, prot, addr)
	a.metrics.RecordCreateView(time.Since(start), err)
	a.logger.LogCreateView(offset, length, prot, base, err)
	return base, err
}

func (a *Arena) createViewPtr(offset, length uint64, prot Protection, addr uintptr) (uintptr, error) {
	if a.closed.Load() {
		return 0, ErrClosed
	}
	if length == 0 || length > a.size || offset > a.size-length {
		return 0, &ErrOutOfRange{Offset: offset, Length: length, Size: a.size}
	}

	n, err := conv.Uint64ToUintptr(length)
	if err != nil {
		return 0, fmt.Errorf("memarena: %w", err)
	}

	// Views are always at least readable.
	base, err := a.store.Map(addr, offset, n, (prot | ProtRead).prot())
	if err != nil {
		return 0, fmt.Errorf("memarena: %w", err)
	}

	a.views.Add(1)
	return base, nil
}

// FlushViewPtr forces dirty pages of [addr, addr+length) back to the
// backing store so the data survives unmapping and is visible to any other
// or future view over the same offsets.
func (a *Arena) FlushViewPtr(addr uintptr, length uint64) error {
	start := time.Now()
	err := a.flushViewPtr(addr, length)
	a.metrics.RecordFlush(time.Since(start), err)
	if err != nil {
		a.logger.Error("flush view failed", "addr", fmtAddr(addr), "length", length, "error", err)
	}
	return err
}

func (a *Arena) flushViewPtr(addr uintptr, length uint64) error {
	n, err := conv.Uint64ToUintptr(length)
	if err != nil {
		return fmt.Errorf("memarena: %w", err)
	}
	if err := vmm.Flush(addr, n); err != nil {
		return fmt.Errorf("memarena: %w", err)
	}
	return nil
}

// ReleaseViewPtr unmaps the view at [addr, addr+length) and decrements the
// live-view counter. Releasing more views than were created is a
// programming error and panics.
func (a *Arena) ReleaseViewPtr(addr uintptr, length uint64) error {
	start := time.Now()
	err := a.releaseViewPtr(addr, length)
	a.metrics.RecordRelease(time.Since(start), err)
	a.logger.LogRelease(addr, length, err)
	return err
}

func (a *Arena) releaseViewPtr(addr uintptr, length uint64) error {
	n, err := conv.Uint64ToUintptr(length)
	if err != nil {
		return fmt.Errorf("memarena: %w", err)
	}
	if err := vmm.Unmap(addr, n); err != nil {
		return fmt.Errorf("memarena: %w", err)
	}
	if a.views.Add(-1) < 0 {
		panic("memarena: view counter underflow")
	}
	return nil
}

// SetPageProtection changes the protection of an already-mapped region in
// place; the mapping does not move. The caller must ensure no other
// goroutine is accessing the region during the transition.
func (a *Arena) SetPageProtection(addr uintptr, length uint64, prot Protection) error {
	start := time.Now()
	err := a.setPageProtection(addr, length, prot)
	a.metrics.RecordProtect(time.Since(start), err)
	a.logger.LogProtect(addr, length, prot, err)
	return err
}

func (a *Arena) setPageProtection(addr uintptr, length uint64, prot Protection) error {
	n, err := conv.Uint64ToUintptr(length)
	if err != nil {
		return fmt.Errorf("memarena: %w", err)
	}
	if err := vmm.Protect(addr, n, prot.prot()); err != nil {
		return fmt.Errorf("memarena: %w", err)
	}
	return nil
}

// Close releases the backing store. Closing while views are live fails
// with ErrViewsOutstanding and leaves the arena open: the store must
// outlive every view derived from it. Close is idempotent once it has
// succeeded.
func (a *Arena) Close() error {
	if n := a.views.Load(); n > 0 {
		a.logger.Warn("close refused, views outstanding", "views", n)
		return ErrViewsOutstanding
	}
	if a.closed.Swap(true) {
		return nil
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("close backing store failed", "error", err)
		return fmt.Errorf("memarena: %w", err)
	}
	if a.acquirer != nil {
		a.acquirer.ReleaseMemory(int64(a.size))
	}
	a.logger.Debug("backing store released", "size", a.size)
	return nil
}
