package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/vaginessa/duckstation/blobstore"
	"github.com/vaginessa/duckstation/memarena"
	"github.com/vaginessa/duckstation/resource"
)

var (
	// ErrManagerClosed is returned when operations are attempted on a
	// closed manager.
	ErrManagerClosed = errors.New("snapshot manager is closed")

	// ErrInvalidSlot is returned for slot numbers outside the
	// configured range.
	ErrInvalidSlot = errors.New("invalid slot number")

	// ErrNoCurrent is returned by LoadCurrent when no slot has been
	// saved yet.
	ErrNoCurrent = errors.New("no current save state")
)

// currentName is the pointer blob naming the most recent save state.
const currentName = "CURRENT"

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithSlots sets the number of save-state slots. Default: 10.
func WithSlots(n int) ManagerOption {
	return func(m *Manager) { m.slots = n }
}

// WithResourceController attaches a controller that throttles snapshot
// IO and bounds concurrent background saves.
func WithResourceController(rc *resource.Controller) ManagerOption {
	return func(m *Manager) { m.res = rc }
}

// WithManagerLogger sets the logger. Default: discard.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithSaveOptions sets the snapshot options applied to every SaveSlot.
func WithSaveOptions(optFns ...Option) ManagerOption {
	return func(m *Manager) { m.saveOpts = optFns }
}

// Manager organizes numbered save-state slots on top of a blob store.
//
// Each slot is a blob named "state_NNN.sav". The CURRENT blob holds the
// name of the most recently saved slot, so the latest state survives
// process restarts without scanning timestamps. All methods are safe
// for concurrent use; saves to the same store are serialized by the
// underlying store's atomicity guarantees.
type Manager struct {
	store    blobstore.Store
	res      *resource.Controller
	logger   *slog.Logger
	slots    int
	saveOpts []Option

	mu     sync.RWMutex
	closed bool
}

// NewManager creates a slot manager over the given store.
func NewManager(store blobstore.Store, optFns ...ManagerOption) (*Manager, error) {
	m := &Manager{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		slots:  10,
	}
	for _, fn := range optFns {
		fn(m)
	}
	if m.slots <= 0 {
		return nil, fmt.Errorf("slot count must be positive, got %d", m.slots)
	}
	return m, nil
}

// SlotName returns the blob name for a slot.
func (m *Manager) SlotName(slot int) string {
	return fmt.Sprintf("state_%03d.sav", slot)
}

func (m *Manager) checkSlot(slot int) error {
	if slot < 0 || slot >= m.slots {
		return fmt.Errorf("%w: %d (have %d slots)", ErrInvalidSlot, slot, m.slots)
	}
	return nil
}

func (m *Manager) checkOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrManagerClosed
	}
	return nil
}

// SaveSlot snapshots the arena into the given slot and advances CURRENT.
//
// The snapshot is streamed to the store through the rate limiter, and
// counts against the controller's background-work budget, so foreground
// arena traffic keeps priority.
func (m *Manager) SaveSlot(ctx context.Context, a *memarena.Arena, slot int) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := m.checkSlot(slot); err != nil {
		return err
	}

	if err := m.res.AcquireBackground(ctx); err != nil {
		return err
	}
	defer m.res.ReleaseBackground()

	name := m.SlotName(slot)

	w, err := m.store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}

	limited := resource.NewRateLimitedWriter(ctx, w, m.res)
	if err := Save(ctx, limited, a, m.saveOpts...); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", name, err)
	}

	if err := m.store.Put(ctx, currentName, []byte(name)); err != nil {
		return fmt.Errorf("failed to update %s: %w", currentName, err)
	}

	m.logger.Info("saved state", "slot", slot, "name", name)
	return nil
}

// LoadSlot restores the arena from the given slot.
func (m *Manager) LoadSlot(ctx context.Context, a *memarena.Arena, slot int) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := m.checkSlot(slot); err != nil {
		return err
	}
	return m.load(ctx, a, m.SlotName(slot))
}

// LoadCurrent restores the arena from the most recently saved slot.
func (m *Manager) LoadCurrent(ctx context.Context, a *memarena.Arena) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	name, err := m.currentSlotName(ctx)
	if err != nil {
		return err
	}
	return m.load(ctx, a, name)
}

// Current returns the slot number CURRENT points at.
func (m *Manager) Current(ctx context.Context) (int, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	name, err := m.currentSlotName(ctx)
	if err != nil {
		return 0, err
	}
	var slot int
	if _, err := fmt.Sscanf(name, "state_%03d.sav", &slot); err != nil {
		return 0, fmt.Errorf("malformed %s content %q: %w", currentName, name, err)
	}
	return slot, nil
}

// Slots returns the occupied slot numbers, sorted.
func (m *Manager) Slots(ctx context.Context) ([]int, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	names, err := m.store.List(ctx, "state_")
	if err != nil {
		return nil, err
	}
	var slots []int
	for _, name := range names {
		var slot int
		if _, err := fmt.Sscanf(name, "state_%03d.sav", &slot); err != nil {
			continue
		}
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	return slots, nil
}

// DeleteSlot removes a slot's blob. CURRENT is left untouched even when
// it points at the deleted slot; loading it then fails with the store's
// not-found error.
func (m *Manager) DeleteSlot(ctx context.Context, slot int) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := m.checkSlot(slot); err != nil {
		return err
	}
	return m.store.Delete(ctx, m.SlotName(slot))
}

// Close marks the manager as closed. It does not close the store.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Manager) currentSlotName(ctx context.Context) (string, error) {
	blob, err := m.store.Open(ctx, currentName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return "", ErrNoCurrent
		}
		return "", err
	}
	defer func() { _ = blob.Close() }()

	content, err := io.ReadAll(blobstore.NewReader(blob))
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func (m *Manager) load(ctx context.Context, a *memarena.Arena, name string) error {
	blob, err := m.store.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer func() { _ = blob.Close() }()

	limited := resource.NewRateLimitedReader(ctx, blobstore.NewReader(blob), m.res)
	if err := Load(ctx, limited, a); err != nil {
		return fmt.Errorf("failed to load %s: %w", name, err)
	}

	m.logger.Info("loaded state", "name", name)
	return nil
}
