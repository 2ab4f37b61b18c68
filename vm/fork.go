package vm

import (
	"fmt"

	"riscvvm/config"
	"riscvvm/frame"
	"riscvvm/riscv"
)

// NewForkedChild deep-copies every area of parent, byte for byte, via
// Translate on both sides, into a fresh address space with no sharing at
// all. Used when copy-on-write is disabled or unsuitable.
func NewForkedChild(parent *AddressSpace, trampolinePhys riscv.PAddr, alloc frame.Allocator) *AddressSpace {
	child := NewBareAddressSpace(alloc)
	child.MapTrampoline(config.Layout{Trampoline: trampolinePhys})

	for _, area := range parent.areas {
		newArea := RegionFromAnother(area)
		child.Push(newArea, nil)

		area.VPNRange.Each(func(vpn riscv.VPN) bool {
			srcEnt, ok := parent.Translate(vpn)
			if !ok {
				panic(fmt.Sprintf("vm: fork source %v not mapped", vpn))
			}
			dstEnt, ok := child.Translate(vpn)
			if !ok {
				panic(fmt.Sprintf("vm: fork destination %v not mapped", vpn))
			}
			copy(alloc.Bytes(dstEnt.PPN()), alloc.Bytes(srcEnt.PPN()))
			return true
		})
	}

	return child
}
