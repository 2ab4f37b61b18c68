// Package trap is the thin seam between a store-page-fault trap entry and
// the virtual-memory core: it looks up the faulting task's address space and
// hands the fault to vm.ResolveCOWFault, the way the teacher's own trap
// handler dispatches page faults to mem.Physmem_t rather than poking page
// tables directly from the trap prologue.
package trap

import (
	"fmt"

	"riscvvm/frame"
	"riscvvm/register"
	"riscvvm/riscv"
	"riscvvm/task"
)

// HandleStorePageFault resolves a store-page-fault trap for the given task,
// assuming the faulting page is copy-on-write. It returns an error describing
// why the fault could not be resolved as a CoW fault; a caller that wants to
// deliver a real segfault to the task does that on error, not here.
func HandleStorePageFault(cur task.Current, vpn riscv.VPN, alloc frame.Allocator, regs register.Root) error {
	as := cur.AddressSpace()
	ent, ok := as.Translate(vpn)
	if !ok {
		return fmt.Errorf("trap: store fault at unmapped vpn %v", vpn)
	}
	if !ent.IsCOW() {
		return fmt.Errorf("trap: store fault at vpn %v is not copy-on-write", vpn)
	}
	return as.ResolveCOWFault(vpn, ent.PPN(), alloc, regs)
}
