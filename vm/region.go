// Package vm implements the address-space data structure (AddressSpace) and
// region abstraction (Region) that sit on top of pagetable.Table: kernel
// space construction, ELF-driven user space construction, full-copy and
// copy-on-write fork, and the fault path that resolves a CoW write.
package vm

import (
	"riscvvm/frame"
	"riscvvm/internal/align"
	"riscvvm/pagetable"
	"riscvvm/riscv"
)

// RegionKind tags the two mapping policies a Region can have. New variants
// (file-backed, linear-offset) extend this tag rather than growing a
// subclass hierarchy.
type RegionKind int

const (
	// Identical maps a VPN to the identically numbered PPN, used for
	// kernel regions whose virtual and physical addresses coincide.
	Identical RegionKind = iota
	// Framed maps a VPN to a frame allocated from the pool; the region
	// owns every frame it maps (modulo copy-on-write sharing, see cow.go).
	Framed
)

// Region is a contiguous virtual-page range plus the frames backing it (for
// Framed regions) and its permission/map-type policy.
type Region struct {
	VPNRange   riscv.VPNRange
	dataFrames map[riscv.VPN]frame.Frame
	Kind       RegionKind
	Perm       riscv.Flags
}

// NewRegion constructs a region covering [startVA.Floor(), endVA.Ceil())
// with no hardware side effect: nothing is mapped until Map is called.
func NewRegion(startVA, endVA riscv.VAddr, kind RegionKind, perm riscv.Flags) *Region {
	return &Region{
		VPNRange:   riscv.NewVPNRange(startVA.Floor(), endVA.Ceil()),
		dataFrames: make(map[riscv.VPN]frame.Frame),
		Kind:       kind,
		Perm:       perm,
	}
}

// RegionFromAnother clones range/kind/perm; the clone starts with no frames
// of its own. A caller that wants it pre-populated with shared CoW frames
// (see NewCOWChild) inserts them directly before pushing the region.
func RegionFromAnother(src *Region) *Region {
	return &Region{
		VPNRange:   src.VPNRange,
		dataFrames: make(map[riscv.VPN]frame.Frame),
		Kind:       src.Kind,
		Perm:       src.Perm,
	}
}

// FrameCount reports how many frames this region currently owns or shares,
// exposed mainly for tests asserting frame-conservation properties.
func (r *Region) FrameCount() int { return len(r.dataFrames) }

func (r *Region) mapOne(pt *pagetable.Table, alloc frame.Allocator, vpn riscv.VPN) {
	var ppn riscv.PPN
	switch r.Kind {
	case Identical:
		ppn = riscv.PPN(vpn)
	case Framed:
		f, ok := alloc.Allocate()
		if !ok {
			panic("vm: out of frames mapping region")
		}
		r.dataFrames[vpn] = f
		ppn = f.PPN()
	default:
		panic("vm: unknown region kind")
	}
	pt.Map(vpn, ppn, r.Perm)
}

func (r *Region) unmapOne(pt *pagetable.Table, vpn riscv.VPN) {
	if r.Kind == Framed {
		if f, ok := r.dataFrames[vpn]; ok {
			f.Release()
			delete(r.dataFrames, vpn)
		}
	}
	pt.Unmap(vpn)
}

// Map installs a leaf entry for every VPN in the region's range.
func (r *Region) Map(pt *pagetable.Table, alloc frame.Allocator) {
	r.VPNRange.Each(func(vpn riscv.VPN) bool {
		r.mapOne(pt, alloc, vpn)
		return true
	})
}

// Unmap clears every leaf entry in the region's range and, for Framed
// regions, releases each owned frame.
func (r *Region) Unmap(pt *pagetable.Table) {
	r.VPNRange.Each(func(vpn riscv.VPN) bool {
		r.unmapOne(pt, vpn)
		return true
	})
}

// CopyData requires the region to be Framed and already mapped. It writes
// data starting at the region's first VPN, page by page, stopping once data
// is exhausted; bytes beyond len(data) are left untouched (the allocator
// hands out zeroed frames).
func (r *Region) CopyData(pt *pagetable.Table, alloc frame.Allocator, data []byte) {
	if r.Kind != Framed {
		panic("vm: copy_data on a non-framed region")
	}
	vpn := r.VPNRange.Start
	start := 0
	for {
		end := align.Min(start+riscv.PageSize, len(data))
		src := data[start:end]
		ent, ok := pt.Translate(vpn)
		if !ok {
			panic("vm: copy_data before region was mapped")
		}
		dst := alloc.Bytes(ent.PPN())
		copy(dst[:len(src)], src)
		start += riscv.PageSize
		if start >= len(data) {
			break
		}
		vpn++
	}
}

// releaseFrames releases every frame this region owns or shares without
// touching the page table, mirroring the original's reliance on Rust's Drop
// to free a MapArea's data_frames when the area list is cleared.
func (r *Region) releaseFrames() {
	if r.Kind != Framed {
		return
	}
	for vpn, f := range r.dataFrames {
		f.Release()
		delete(r.dataFrames, vpn)
	}
}

// insertShared records a CoW-shared frame for vpn without mapping or
// allocating anything: used when a child region is built already-mapped by
// the page-table-level CoW fork machinery (see NewCOWChild).
func (r *Region) insertShared(vpn riscv.VPN, f frame.Frame) {
	r.dataFrames[vpn] = f
}

// takeOwned replaces the frame recorded for vpn and returns the old frame
// without releasing it, so the caller can decide whether and how to
// release it. Used by ResolveCOWFault to hand the freshly copied frame to
// the region that covers the faulting VPN.
func (r *Region) takeOwned(vpn riscv.VPN, newFrame frame.Frame) (old frame.Frame, hadOld bool) {
	old, hadOld = r.dataFrames[vpn]
	r.dataFrames[vpn] = newFrame
	return old, hadOld
}
