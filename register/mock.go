package register

import "riscvvm/riscv"

// Mock is an in-memory Root used by tests and by cmd/vmdemo when it is run
// hosted rather than on real RISC-V hardware. It records every write and
// flush instead of touching any CSR.
type Mock struct {
	Current     riscv.SATP
	Flushes     int
	PageFlushes []riscv.VPN
}

// WriteSATP records tok as the active token.
func (m *Mock) WriteSATP(tok riscv.SATP) { m.Current = tok }

// FlushTLB records a full flush.
func (m *Mock) FlushTLB() { m.Flushes++ }

// FlushTLBPage records a single-page flush.
func (m *Mock) FlushTLBPage(vpn riscv.VPN) {
	m.PageFlushes = append(m.PageFlushes, vpn)
}
