package vm

import (
	"riscvvm/config"
	"riscvvm/riscv"
)

// RemapTest checks the permission invariants a freshly built kernel address
// space must hold, probing one VPN from the middle of each section: .text is
// not writable, .rodata is neither writable nor executable, and .data is not
// executable. It panics on the first violation rather than returning a bool,
// since a failure here means NewKernelSpace mapped permissions wrong — a
// fatal construction bug, not a runtime condition a caller should recover
// from.
func RemapTest(as *AddressSpace, layout config.Layout) {
	checkNotWritable := func(name string, va riscv.VAddr) {
		ent, ok := as.Translate(va.Floor())
		if !ok {
			panic("vm: remap_test: " + name + " midpoint not mapped")
		}
		if ent.Writable() {
			panic("vm: remap_test: " + name + " is writable")
		}
	}
	checkNotExecutable := func(name string, va riscv.VAddr) {
		ent, ok := as.Translate(va.Floor())
		if !ok {
			panic("vm: remap_test: " + name + " midpoint not mapped")
		}
		if ent.Executable() {
			panic("vm: remap_test: " + name + " is executable")
		}
	}

	checkNotWritable(".text", midpoint(layout.STText, layout.ETText))

	rodataMid := midpoint(layout.SRoData, layout.ERoData)
	checkNotWritable(".rodata", rodataMid)
	checkNotExecutable(".rodata", rodataMid)

	checkNotExecutable(".data", midpoint(layout.SData, layout.EData))
}

func midpoint(start, end riscv.VAddr) riscv.VAddr {
	return start + (end-start)/2
}
