// Package register isolates the one truly architecture-specific,
// privileged operation in the virtual-memory core: writing the page-table
// base register and fencing the TLB. Keeping it behind a small interface
// (per the design notes: "isolate in a thin architecture-specific trait so
// the rest of the core is portable and testable off-hardware") lets every
// other package run and be tested on any host.
package register

import "riscvvm/riscv"

// Root is the page-table-base register (RISC-V satp) plus the TLB
// invalidation instruction (sfence.vma) that must follow any write to it.
type Root interface {
	// WriteSATP installs tok as the active page-table root. Implementations
	// must not reorder this after the following FlushTLB/FlushTLBPage call.
	WriteSATP(tok riscv.SATP)
	// FlushTLB invalidates every cached translation for the current
	// address space (used by Activate, a full address-space switch).
	FlushTLB()
	// FlushTLBPage invalidates cached translations for a single VPN (used
	// after a copy-on-write remap, which only changes one mapping).
	FlushTLBPage(vpn riscv.VPN)
}
