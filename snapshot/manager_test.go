//go:build linux

package snapshot

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaginessa/duckstation/blobstore"
	"github.com/vaginessa/duckstation/resource"
)

func TestManager_SaveLoadSlots(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	rc := resource.NewController(resource.Config{
		MaxBackgroundWorkers: 2,
	})

	mgr, err := NewManager(store,
		WithSlots(10),
		WithResourceController(rc),
		WithSaveOptions(WithCodec("lz4"), WithSparse(true)),
	)
	require.NoError(t, err)

	a := newTestArena(t, 8*pageSize())

	withArena(t, a, func(data []byte) {
		copy(data, []byte("first state"))
	})
	require.NoError(t, mgr.SaveSlot(ctx, a, 0))

	withArena(t, a, func(data []byte) {
		copy(data, []byte("third state"))
	})
	require.NoError(t, mgr.SaveSlot(ctx, a, 3))

	slots, err := mgr.Slots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, slots)

	current, err := mgr.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, current)

	// Clobber, then restore the current slot
	withArena(t, a, func(data []byte) {
		for i := range data {
			data[i] = 0xEE
		}
	})
	require.NoError(t, mgr.LoadCurrent(ctx, a))
	withArena(t, a, func(data []byte) {
		assert.True(t, bytes.HasPrefix(data, []byte("third state")))
	})

	// Restore an older slot
	require.NoError(t, mgr.LoadSlot(ctx, a, 0))
	withArena(t, a, func(data []byte) {
		assert.True(t, bytes.HasPrefix(data, []byte("first state")))
	})
}

func TestManager_SlotValidation(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewManager(blobstore.NewMemoryStore(), WithSlots(2))
	require.NoError(t, err)

	a := newTestArena(t, pageSize())

	require.ErrorIs(t, mgr.SaveSlot(ctx, a, -1), ErrInvalidSlot)
	require.ErrorIs(t, mgr.SaveSlot(ctx, a, 2), ErrInvalidSlot)
	require.ErrorIs(t, mgr.LoadSlot(ctx, a, 5), ErrInvalidSlot)
	require.ErrorIs(t, mgr.DeleteSlot(ctx, 5), ErrInvalidSlot)

	_, err = NewManager(blobstore.NewMemoryStore(), WithSlots(0))
	require.Error(t, err)
}

func TestManager_NoCurrent(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewManager(blobstore.NewMemoryStore())
	require.NoError(t, err)

	a := newTestArena(t, pageSize())

	require.ErrorIs(t, mgr.LoadCurrent(ctx, a), ErrNoCurrent)
	_, err = mgr.Current(ctx)
	require.ErrorIs(t, err, ErrNoCurrent)
}

func TestManager_DeleteSlot(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	mgr, err := NewManager(store)
	require.NoError(t, err)

	a := newTestArena(t, pageSize())

	require.NoError(t, mgr.SaveSlot(ctx, a, 1))
	require.NoError(t, mgr.DeleteSlot(ctx, 1))

	slots, err := mgr.Slots(ctx)
	require.NoError(t, err)
	assert.Empty(t, slots)

	// CURRENT still points at the deleted slot; loading it now fails
	require.Error(t, mgr.LoadCurrent(ctx, a))
}

func TestManager_Closed(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewManager(blobstore.NewMemoryStore())
	require.NoError(t, err)
	require.NoError(t, mgr.Close())

	a := newTestArena(t, pageSize())

	require.ErrorIs(t, mgr.SaveSlot(ctx, a, 0), ErrManagerClosed)
	require.ErrorIs(t, mgr.LoadCurrent(ctx, a), ErrManagerClosed)
	_, err = mgr.Slots(ctx)
	require.ErrorIs(t, err, ErrManagerClosed)
}

func TestManager_RateLimitedSave(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	// Generous limit: the save must still complete promptly
	rc := resource.NewController(resource.Config{
		IOLimitBytesPerSec: 64 << 20,
	})

	mgr, err := NewManager(store, WithResourceController(rc), WithSaveOptions(WithCodec("none")))
	require.NoError(t, err)

	a := newTestArena(t, 4*pageSize())
	withArena(t, a, func(data []byte) {
		for i := range data {
			data[i] = byte(i)
		}
	})

	require.NoError(t, mgr.SaveSlot(ctx, a, 0))
	require.NoError(t, mgr.LoadSlot(ctx, a, 0))
}
