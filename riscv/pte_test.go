package riscv

import "testing"

func TestEntryRoundTrip(t *testing.T) {
	ppn := PPN(0xABCDE)
	flags := FlagValid | FlagRead | FlagWrite
	e := newEntry(ppn, flags)

	if got := e.PPN(); got != ppn {
		t.Errorf("PPN() = %#x, want %#x", uint64(got), uint64(ppn))
	}
	if got := e.Flags(); got != flags {
		t.Errorf("Flags() = %#x, want %#x", uint64(got), uint64(flags))
	}
	if !e.IsValid() {
		t.Error("IsValid() = false")
	}
	if !e.Writable() {
		t.Error("Writable() = false")
	}
	if e.Executable() {
		t.Error("Executable() = true")
	}
}

func TestEntryIsLeaf(t *testing.T) {
	leaf := newEntry(1, FlagValid|FlagRead)
	if !leaf.IsLeaf() {
		t.Error("entry with R set should be a leaf")
	}
	interior := newEntry(1, FlagValid)
	if interior.IsLeaf() {
		t.Error("entry with no R/W/X set should not be a leaf")
	}
}

func TestEntryCOWBit(t *testing.T) {
	e := newEntry(1, FlagValid|FlagRead|FlagCOW)
	if !e.IsCOW() {
		t.Error("IsCOW() = false, want true")
	}
	if e.Writable() {
		t.Error("a COW entry created here should not also carry Write")
	}
}

func TestSATPRoundTrip(t *testing.T) {
	ppn := PPN(0x1234)
	s := NewSATP(7, ppn)
	if got := s.RootPPN(); got != ppn {
		t.Errorf("RootPPN() = %#x, want %#x", uint64(got), uint64(ppn))
	}
	if mode := uint64(s) >> satpModeShift; mode != satpModeSv39 {
		t.Errorf("satp mode = %d, want %d", mode, satpModeSv39)
	}
}

func TestFlagsHas(t *testing.T) {
	f := FlagRead | FlagWrite
	if !f.Has(FlagRead) {
		t.Error("Has(FlagRead) = false")
	}
	if f.Has(FlagExec) {
		t.Error("Has(FlagExec) = true")
	}
	if !f.Has(FlagRead | FlagWrite) {
		t.Error("Has(FlagRead|FlagWrite) = false")
	}
}
