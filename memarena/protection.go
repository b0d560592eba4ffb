package memarena

import "github.com/vaginessa/duckstation/internal/vmm"

// Protection is a page-protection bitmask.
//
// Views are always at least readable; CreateView treats ProtRead as
// implied. SetPageProtection honors the mask exactly, so a region can be
// made fully inaccessible.
type Protection uint8

const (
	// ProtRead grants read access.
	ProtRead Protection = 1 << iota
	// ProtWrite grants write access.
	ProtWrite
	// ProtExec grants execute access.
	ProtExec
)

// ProtNone grants no access.
const ProtNone Protection = 0

// Readable reports whether the mask includes read access.
func (p Protection) Readable() bool { return p&ProtRead != 0 }

// Writable reports whether the mask includes write access.
func (p Protection) Writable() bool { return p&ProtWrite != 0 }

// Executable reports whether the mask includes execute access.
func (p Protection) Executable() bool { return p&ProtExec != 0 }

// String renders the mask in ls -l style, e.g. "rw-" or "r-x".
func (p Protection) String() string {
	return p.prot().String()
}

func (p Protection) prot() vmm.Prot {
	return vmm.Prot{Read: p.Readable(), Write: p.Writable(), Exec: p.Executable()}
}
