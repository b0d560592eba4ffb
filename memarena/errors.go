package memarena

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when operating on a closed arena.
	ErrClosed = errors.New("memarena: arena is closed")
	// ErrInvalidSize is returned when an arena size of zero is requested.
	ErrInvalidSize = errors.New("memarena: invalid arena size")
	// ErrViewsOutstanding is returned by Arena.Close while views are still
	// live. The arena stays open; close the views first.
	ErrViewsOutstanding = errors.New("memarena: live views outstanding")
)

// ErrOutOfRange indicates a view request outside the arena's backing
// store. It is produced by the bounds check alone; match it with
// errors.As.
type ErrOutOfRange struct {
	Offset uint64
	Length uint64
	Size   uint64
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("memarena: range offset=%#x length=%#x exceeds arena size %#x", e.Offset, e.Length, e.Size)
}
