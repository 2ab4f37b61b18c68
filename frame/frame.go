// Package frame is the physical-frame-ownership primitive consumed by the
// virtual-memory core: an Allocator hands out uniquely owned pages, and a
// Frame's owner decides when to give the page back.
//
// Go has no destructors, so unlike the Rust original a Frame does not free
// itself when it goes out of scope, so callers must call Release explicitly
// (MapArea/Region.Unmap and AddressSpace teardown do this). Copy-on-write
// sharing is realised as an explicit reference count per frame (see the
// design notes on this in DESIGN.md): Retain hands back a second Frame value
// referring to the same page and bumps the count; the page returns to the
// allocator only once every Frame referring to it has been Released.
package frame

import "riscvvm/riscv"

// Allocator yields uniquely owned, zero-initialized physical frames. It
// returns ok=false on exhaustion; frame.Frame itself never allocates.
//
// Bytes exposes direct-mapped access to any page in the pool by physical
// page number alone, mirroring the teacher's Physmem_t.Dmap: a page-table
// walker needs to read and write interior node content addressed only by
// the PPN stored in a parent entry, not by a Frame value it may never have
// held.
type Allocator interface {
	Allocate() (Frame, bool)
	Bytes(riscv.PPN) []byte
}

// Frame is a handle on one physical page. The zero Frame is not valid; only
// Frames returned by an Allocator (or derived via Retain) may be used.
type Frame struct {
	ppn  riscv.PPN
	pool refcountedPool
}

// refcountedPool is the subset of Pool/HostPool a Frame needs to retain,
// release, and read/write its own backing bytes.
type refcountedPool interface {
	bytes(riscv.PPN) []byte
	retain(riscv.PPN)
	release(riscv.PPN)
}

// PPN returns the physical page number this frame owns.
func (f Frame) PPN() riscv.PPN { return f.ppn }

// Bytes returns the PageSize-byte backing store for this frame. Mutations
// are visible to every Frame/PTE referencing the same PPN, exactly the
// sharing a CoW page needs until it is privately copied.
func (f Frame) Bytes() []byte { return f.pool.bytes(f.ppn) }

// Valid reports whether f was produced by an Allocator (as opposed to being
// a zero value).
func (f Frame) Valid() bool { return f.pool != nil }

// Retain increments the frame's reference count and returns a second handle
// to the same physical page. Used when a page becomes copy-on-write shared
// between a parent and child address space.
func (f Frame) Retain() Frame {
	f.pool.retain(f.ppn)
	return Frame{ppn: f.ppn, pool: f.pool}
}

// Release decrements the frame's reference count, returning the page to the
// allocator once no Frame referencing it remains.
func (f Frame) Release() {
	f.pool.release(f.ppn)
}
