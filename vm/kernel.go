package vm

import (
	"riscvvm/config"
	"riscvvm/frame"
	"riscvvm/riscv"
	"riscvvm/sizefmt"
)

// NewKernelSpace builds the one address space the kernel itself runs under:
// the trampoline plus one identically mapped region per linked section, per
// free physical memory, and per MMIO window (spec §4.3 table). Identity
// mapping is used throughout because the kernel's linked addresses equal
// its physical load addresses.
func NewKernelSpace(layout config.Layout, alloc frame.Allocator) *AddressSpace {
	as := NewBareAddressSpace(alloc)
	as.MapTrampoline(layout)

	as.logf(".text   [%#x, %#x)", layout.STText, layout.ETText)
	as.logf(".rodata [%#x, %#x)", layout.SRoData, layout.ERoData)
	as.logf(".data   [%#x, %#x)", layout.SData, layout.EData)
	as.logf(".bss    [%#x, %#x)", layout.SBSSWithStack, layout.EBSS)

	as.logf("mapping .text section")
	as.Push(NewRegion(layout.STText, layout.ETText, Identical, riscv.FlagRead|riscv.FlagExec), nil)

	as.logf("mapping .rodata section")
	as.Push(NewRegion(layout.SRoData, layout.ERoData, Identical, riscv.FlagRead), nil)

	as.logf("mapping .data section")
	as.Push(NewRegion(layout.SData, layout.EData, Identical, riscv.FlagRead|riscv.FlagWrite), nil)

	as.logf("mapping .bss section")
	as.Push(NewRegion(layout.SBSSWithStack, layout.EBSS, Identical, riscv.FlagRead|riscv.FlagWrite), nil)

	freeBytes := uint64(config.MemoryEnd) - uint64(layout.EKernel)
	as.logf("mapping physical memory, %s free", sizefmt.Bytes(freeBytes))
	as.Push(NewRegion(layout.EKernel, riscv.VAddr(config.MemoryEnd), Identical, riscv.FlagRead|riscv.FlagWrite), nil)

	as.logf("mapping memory-mapped registers")
	for _, win := range config.MMIO {
		start := riscv.VAddr(win.Base)
		end := riscv.VAddr(uint64(win.Base) + win.Len)
		as.Push(NewRegion(start, end, Identical, riscv.FlagRead|riscv.FlagWrite), nil)
	}

	return as
}
