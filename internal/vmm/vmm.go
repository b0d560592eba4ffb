package vmm

import "os"

// Prot describes the access allowed through a mapping as a
// readable/writable/executable triple.
type Prot struct {
	Read  bool
	Write bool
	Exec  bool
}

// String renders the triple in ls -l style, e.g. "rw-" or "r-x".
func (p Prot) String() string {
	b := [3]byte{'-', '-', '-'}
	if p.Read {
		b[0] = 'r'
	}
	if p.Write {
		b[1] = 'w'
	}
	if p.Exec {
		b[2] = 'x'
	}
	return string(b[:])
}

// PageSize returns the size of a virtual-memory page on this platform.
func PageSize() int {
	return os.Getpagesize()
}
