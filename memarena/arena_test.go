//go:build linux

package memarena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/vaginessa/duckstation/internal/vmm"
)

var protRW = ProtRead | ProtWrite

func pageSize() uint64 {
	return uint64(vmm.PageSize())
}

func newTestArena(t *testing.T, size uint64) *Arena {
	t.Helper()
	a, err := New(size, protRW, WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, a.Close())
	})
	return a
}

func TestNew(t *testing.T) {
	t.Run("zero size", func(t *testing.T) {
		_, err := New(0, protRW)
		assert.ErrorIs(t, err, ErrInvalidSize)
	})

	t.Run("create and close", func(t *testing.T) {
		a, err := New(2*pageSize(), protRW, WithLogger(nil))
		require.NoError(t, err)
		assert.Equal(t, 2*pageSize(), a.Size())
		assert.EqualValues(t, 0, a.Views())
		require.NoError(t, a.Close())

		// Idempotent once succeeded.
		require.NoError(t, a.Close())

		// Operations on a closed arena fail.
		_, err = a.CreateView(0, pageSize(), protRW)
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("same-size arenas coexist", func(t *testing.T) {
		a := newTestArena(t, pageSize())
		b := newTestArena(t, pageSize())
		assert.NotSame(t, a, b)
	})

	t.Run("store name override", func(t *testing.T) {
		a, err := New(pageSize(), protRW, WithLogger(nil), WithStoreName("memarena_named_test"))
		require.NoError(t, err)
		require.NoError(t, a.Close())
	})
}

func TestArena_CreateView(t *testing.T) {
	t.Run("initial content is zero", func(t *testing.T) {
		a := newTestArena(t, 4*pageSize())

		v, err := a.CreateView(pageSize(), 2*pageSize(), protRW)
		require.NoError(t, err)
		defer v.Close()

		assert.EqualValues(t, 1, a.Views())
		for i, b := range v.Bytes() {
			if b != 0 {
				t.Fatalf("byte at index %d not zero: %d", i, b)
			}
		}
	})

	t.Run("bounds violation has no side effects", func(t *testing.T) {
		a := newTestArena(t, 2*pageSize())

		_, err := a.CreateView(pageSize(), 2*pageSize(), protRW)
		var oor *ErrOutOfRange
		require.ErrorAs(t, err, &oor)
		assert.Equal(t, pageSize(), oor.Offset)
		assert.Equal(t, 2*pageSize(), oor.Length)
		assert.EqualValues(t, 0, a.Views())
	})

	t.Run("offset overflow is rejected", func(t *testing.T) {
		a := newTestArena(t, 2*pageSize())

		_, err := a.CreateView(^uint64(0)-pageSize(), 2*pageSize(), protRW)
		var oor *ErrOutOfRange
		assert.ErrorAs(t, err, &oor)
	})

	t.Run("zero length is rejected", func(t *testing.T) {
		a := newTestArena(t, 2*pageSize())

		_, err := a.CreateView(0, 0, protRW)
		var oor *ErrOutOfRange
		assert.ErrorAs(t, err, &oor)
	})
}

func TestArena_Aliasing(t *testing.T) {
	t.Run("write through one view is visible through the other", func(t *testing.T) {
		a := newTestArena(t, 2*pageSize())

		viewA, err := a.CreateView(0, pageSize(), protRW)
		require.NoError(t, err)
		defer viewA.Close()

		viewB, err := a.CreateView(0, pageSize(), protRW)
		require.NoError(t, err)
		defer viewB.Close()

		require.NotEqual(t, viewA.Base(), viewB.Base())

		viewA.Bytes()[0] = 0xAB
		assert.EqualValues(t, 0xAB, viewB.Bytes()[0])
	})

	t.Run("partial overlap", func(t *testing.T) {
		a := newTestArena(t, 4*pageSize())

		lo, err := a.CreateView(0, 2*pageSize(), protRW)
		require.NoError(t, err)
		defer lo.Close()

		hi, err := a.CreateView(pageSize(), 2*pageSize(), protRW)
		require.NoError(t, err)
		defer hi.Close()

		// lo's second page and hi's first page alias the same store page.
		lo.Bytes()[pageSize()+5] = 0x42
		assert.EqualValues(t, 0x42, hi.Bytes()[5])
	})
}

func TestArena_Durability(t *testing.T) {
	a := newTestArena(t, 2*pageSize())

	v, err := a.CreateView(pageSize(), pageSize(), protRW)
	require.NoError(t, err)
	v.Bytes()[9] = 0xEE
	v.Close()
	require.EqualValues(t, 0, a.Views())

	again, err := a.CreateView(pageSize(), pageSize(), protRW)
	require.NoError(t, err)
	defer again.Close()
	assert.EqualValues(t, 0xEE, again.Bytes()[9])
}

func TestArena_FixedAddress(t *testing.T) {
	a := newTestArena(t, 2*pageSize())

	base, err := a.FindBaseAddressForMapping(2 * pageSize())
	require.NoError(t, err)
	require.NotZero(t, base)

	// Mirror: offset 0 mapped twice, back to back, so the store's first
	// page appears at two consecutive virtual pages.
	lo, err := a.CreateViewAt(base, 0, pageSize(), protRW)
	require.NoError(t, err)
	defer lo.Close()
	require.Equal(t, base, lo.Base())

	hi, err := a.CreateViewAt(base+uintptr(pageSize()), 0, pageSize(), protRW)
	require.NoError(t, err)
	defer hi.Close()
	require.Equal(t, base+uintptr(pageSize()), hi.Base())

	lo.Bytes()[7] = 0x99
	assert.EqualValues(t, 0x99, hi.Bytes()[7])
}

func TestArena_RawPointerVariant(t *testing.T) {
	a := newTestArena(t, 2*pageSize())

	addr, err := a.CreateViewPtr(0, pageSize(), protRW, 0)
	require.NoError(t, err)
	require.NotZero(t, addr)
	assert.EqualValues(t, 1, a.Views())

	v, err := a.CreateView(0, pageSize(), protRW)
	require.NoError(t, err)
	v.Bytes()[0] = 0x11
	v.Close()

	require.NoError(t, a.FlushViewPtr(addr, pageSize()))
	require.NoError(t, a.ReleaseViewPtr(addr, pageSize()))
	assert.EqualValues(t, 0, a.Views())
}

func TestArena_SetPageProtection(t *testing.T) {
	a := newTestArena(t, pageSize())

	v, err := a.CreateView(0, pageSize(), protRW)
	require.NoError(t, err)
	defer v.Close()

	v.Bytes()[0] = 1

	require.NoError(t, a.SetPageProtection(v.Base(), v.Size(), ProtRead))
	assert.EqualValues(t, 1, v.Bytes()[0])

	require.NoError(t, a.SetPageProtection(v.Base(), v.Size(), protRW))
	v.Bytes()[0] = 2
	assert.EqualValues(t, 2, v.Bytes()[0])

	t.Run("misaligned address is rejected", func(t *testing.T) {
		err := a.SetPageProtection(v.Base()+1, pageSize(), ProtRead)
		assert.Error(t, err)
	})
}

func TestArena_CloseWithLiveViews(t *testing.T) {
	a, err := New(pageSize(), protRW, WithLogger(nil))
	require.NoError(t, err)

	v, err := a.CreateView(0, pageSize(), protRW)
	require.NoError(t, err)

	assert.ErrorIs(t, a.Close(), ErrViewsOutstanding)

	// Still usable after the refused close.
	v.Bytes()[0] = 3
	v.Close()
	require.NoError(t, a.Close())
}

func TestArena_CounterConsistency(t *testing.T) {
	a := newTestArena(t, 4*pageSize())

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for i := 0; i < 50; i++ {
				v, err := a.CreateView(0, pageSize(), protRW)
				if err != nil {
					return err
				}
				v.Bytes()[0]++
				v.Close()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 0, a.Views())
}

func TestArena_Metrics(t *testing.T) {
	collector := &BasicMetricsCollector{}
	a, err := New(pageSize(), protRW, WithLogger(nil), WithMetricsCollector(collector))
	require.NoError(t, err)
	defer a.Close()

	v, err := a.CreateView(0, pageSize(), protRW)
	require.NoError(t, err)
	require.NoError(t, a.SetPageProtection(v.Base(), v.Size(), protRW))
	v.Close()

	_, err = a.CreateView(0, 2*pageSize(), protRW)
	require.Error(t, err)

	assert.EqualValues(t, 2, collector.CreateViewCount.Load())
	assert.EqualValues(t, 1, collector.CreateViewErrors.Load())
	assert.EqualValues(t, 1, collector.ReleaseCount.Load())
	assert.EqualValues(t, 1, collector.ProtectCount.Load())
	assert.EqualValues(t, 1, collector.FlushCount.Load())
}
