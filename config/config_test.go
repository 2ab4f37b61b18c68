package config

import (
	"testing"

	"riscvvm/riscv"
)

func TestTrampolineIsTopPage(t *testing.T) {
	if Trampoline.Offset() != 0 {
		t.Fatal("Trampoline is not page-aligned")
	}
	if uint64(Trampoline)+riscv.PageSize != (1 << riscv.VAWidth) {
		t.Fatal("Trampoline is not the last page of the Sv39 virtual address space")
	}
}

func TestTrapContextBelowTrampoline(t *testing.T) {
	if TrapContext+riscv.VAddr(riscv.PageSize) != Trampoline {
		t.Fatal("TrapContext is not exactly one page below Trampoline")
	}
}

func TestMMIOWindowsNonEmpty(t *testing.T) {
	if len(MMIO) == 0 {
		t.Fatal("no MMIO windows configured")
	}
	for _, w := range MMIO {
		if w.Len == 0 {
			t.Errorf("MMIO window at %#x has zero length", w.Base)
		}
	}
}
