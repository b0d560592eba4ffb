package conv

import (
	"fmt"
)

// Uint64ToUintptr converts uint64 to uintptr safely.
func Uint64ToUintptr(v uint64) (uintptr, error) {
	// On 32-bit platforms uintptr cannot hold the full uint64 range.
	if v > uint64(^uintptr(0)) {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to uintptr (too large)", v)
	}
	return uintptr(v), nil
}
