package vm

import (
	"fmt"

	"golang.org/x/sync/singleflight"

	"riscvvm/config"
	"riscvvm/frame"
	"riscvvm/register"
	"riscvvm/riscv"
)

// NewCOWChild builds a child address space that shares every area below
// heapTop with parent copy-on-write, and deep-copies every area at or above
// heapTop.Floor(). heapTop is normally the parent's current program-break
// address: areas
// above it (trap context, user stack) are short-lived, per-task control
// structures not worth sharing, while the heap and program image below it
// are the ones a fork-then-exec workload benefits from sharing lazily.
//
// The split is a total partition of the parent's area list (spec open
// question (b)): every area goes to exactly one of the two loops below.
func NewCOWChild(parent *AddressSpace, heapTop riscv.VAddr, trampolinePhys riscv.PAddr, alloc frame.Allocator) *AddressSpace {
	child := NewBareAddressSpace(alloc)
	child.MapTrampoline(config.Layout{Trampoline: trampolinePhys})
	heapTopVPN := heapTop.Floor()

	for _, area := range parent.areas {
		if area.VPNRange.Start < heapTopVPN {
			continue
		}
		newArea := RegionFromAnother(area)
		child.Push(newArea, nil)
		area.VPNRange.Each(func(vpn riscv.VPN) bool {
			srcEnt, ok := parent.Translate(vpn)
			if !ok {
				panic(fmt.Sprintf("vm: cow deep-copy source %v not mapped", vpn))
			}
			dstEnt, ok := child.Translate(vpn)
			if !ok {
				panic(fmt.Sprintf("vm: cow deep-copy destination %v not mapped", vpn))
			}
			copy(alloc.Bytes(dstEnt.PPN()), alloc.Bytes(srcEnt.PPN()))
			return true
		})
	}

	for _, area := range parent.areas {
		if area.VPNRange.Start >= heapTopVPN {
			continue
		}
		if area.Kind != Framed {
			// Identical regions (kernel-only, never reached via a user
			// fork) have no owned frame to share; the child maps its own
			// identical clone instead.
			newArea := RegionFromAnother(area)
			child.Push(newArea, nil)
			continue
		}

		newArea := RegionFromAnother(area)
		area.VPNRange.Each(func(vpn riscv.VPN) bool {
			ent, ok := parent.pt.Translate(vpn)
			if !ok {
				panic(fmt.Sprintf("vm: cow share source %v not mapped", vpn))
			}
			shared := ent.Flags() &^ riscv.FlagWrite
			ppn := ent.PPN()

			parent.pt.SetFlags(vpn, shared)
			parent.pt.SetCOW(vpn)

			child.pt.Map(vpn, ppn, shared)
			child.pt.SetCOW(vpn)

			parentFrame, ok := area.dataFrames[vpn]
			if !ok {
				panic(fmt.Sprintf("vm: cow share source %v has no owned frame", vpn))
			}
			newArea.insertShared(vpn, parentFrame.Retain())
			return true
		})
		child.PushMapped(newArea)
	}

	return child
}

// cowFaultDedup collapses concurrent ResolveCOWFault calls for the same
// (address space, VPN) pair into a single resolution: the teacher's fault
// handler has long called out "two threads simultaneously faulted on the
// same page" as a known hazard, and singleflight is the off-the-shelf fix
// rather than a hand-rolled lock table.
var cowFaultDedup singleflight.Group

// ResolveCOWFault handles a write fault on a copy-on-write page: vpn's
// current mapping points at a frame shared with at least one other address
// space (formerPPN). It allocates a private frame, copies the shared page's
// contents into it, rewrites the page table so vpn maps the private copy
// with the write bit restored and the COW bit cleared, and invalidates the
// TLB for that single VPN before returning, the ordering the fault path
// requires: a remapped PTE must never be left behind a stale TLB entry. It
// returns an error only on frame exhaustion; every other failure is a fatal
// invariant violation (a fault on a vpn that was never actually CoW) and
// panics.
func (as *AddressSpace) ResolveCOWFault(vpn riscv.VPN, formerPPN riscv.PPN, alloc frame.Allocator, regs register.Root) error {
	key := cowFaultKey(as, vpn)
	_, err, _ := cowFaultDedup.Do(key, func() (interface{}, error) {
		newFrame, ok := alloc.Allocate()
		if !ok {
			return nil, fmt.Errorf("vm: resolve cow fault at %v: out of frames", vpn)
		}

		copy(newFrame.Bytes(), alloc.Bytes(formerPPN))
		as.pt.RemapCOW(vpn, newFrame.PPN(), formerPPN)
		regs.FlushTLBPage(vpn)

		region, ok := as.regionCovering(vpn)
		if !ok {
			panic(fmt.Sprintf("vm: resolve cow fault at %v: no region covers it", vpn))
		}
		old, hadOld := region.takeOwned(vpn, newFrame)
		if hadOld {
			old.Release()
		}
		return nil, nil
	})
	return err
}

func cowFaultKey(as *AddressSpace, vpn riscv.VPN) string {
	return fmt.Sprintf("%p:%d", as, vpn)
}
