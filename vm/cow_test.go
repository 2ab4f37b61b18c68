package vm

import (
	"testing"

	"riscvvm/config"
	"riscvvm/frame"
	"riscvvm/register"
	"riscvvm/riscv"
)

func TestNewCOWChildSharesBelowHeapTop(t *testing.T) {
	pool := frame.NewPool(0, 1<<16)
	parent, _, heapBottom := buildTestUserSpace(t, pool)

	child := NewCOWChild(parent, heapBottom, riscv.PAddr(0x80000000), pool)

	vpn := riscv.VAddr(0x1000).Floor()
	pEnt, ok := parent.Translate(vpn)
	if !ok {
		t.Fatal("parent segment vpn unmapped after cow fork")
	}
	if pEnt.Writable() {
		t.Fatal("parent's write bit was not cleared by cow fork")
	}
	if !pEnt.IsCOW() {
		t.Fatal("parent's COW bit was not set by cow fork")
	}

	cEnt, ok := child.Translate(vpn)
	if !ok {
		t.Fatal("child segment vpn unmapped after cow fork")
	}
	if cEnt.PPN() != pEnt.PPN() {
		t.Fatal("cow child does not share the parent's physical frame")
	}
	if cEnt.Writable() || !cEnt.IsCOW() {
		t.Fatal("child's cow leaf should be read-only with the COW bit set")
	}

	if got := pool.Refcount(pEnt.PPN()); got != 2 {
		t.Fatalf("Refcount() = %d after cow share, want 2", got)
	}
}

func TestNewCOWChildDeepCopiesAboveHeapTop(t *testing.T) {
	pool := frame.NewPool(0, 1<<16)
	parent, _, heapBottom := buildTestUserSpace(t, pool)

	child := NewCOWChild(parent, heapBottom, riscv.PAddr(0x80000000), pool)

	pEnt, _ := parent.Translate(config.TrapContext.Floor())
	cEnt, _ := child.Translate(config.TrapContext.Floor())
	if pEnt.PPN() == cEnt.PPN() {
		t.Fatal("trap context should be deep-copied, not shared, across the heap-top split")
	}
	if cEnt.IsCOW() {
		t.Fatal("deep-copied area should not carry the COW bit")
	}
}

func TestResolveCOWFaultGivesChildAPrivateWritableCopy(t *testing.T) {
	pool := frame.NewPool(0, 1<<16)
	parent, _, heapBottom := buildTestUserSpace(t, pool)
	child := NewCOWChild(parent, heapBottom, riscv.PAddr(0x80000000), pool)

	vpn := riscv.VAddr(0x1000).Floor()
	before, _ := child.Translate(vpn)
	formerPPN := before.PPN()

	if err := child.ResolveCOWFault(vpn, formerPPN, pool, &register.Mock{}); err != nil {
		t.Fatalf("ResolveCOWFault: %v", err)
	}

	after, ok := child.Translate(vpn)
	if !ok {
		t.Fatal("vpn unmapped after resolving cow fault")
	}
	if after.PPN() == formerPPN {
		t.Fatal("child still points at the shared frame after resolving the fault")
	}
	if !after.Writable() || after.IsCOW() {
		t.Fatal("resolved cow leaf should be writable with the COW bit cleared")
	}

	// The parent's mapping, and its data, must be untouched.
	parentEnt, _ := parent.Translate(vpn)
	if parentEnt.PPN() != formerPPN {
		t.Fatal("resolving the child's fault altered the parent's mapping")
	}
	if got := pool.Refcount(formerPPN); got != 1 {
		t.Fatalf("Refcount(formerPPN) = %d after resolution, want 1 (parent only)", got)
	}
}

func TestResolveCOWFaultIsIdempotentUnderDuplicateCalls(t *testing.T) {
	pool := frame.NewPool(0, 1<<16)
	parent, _, heapBottom := buildTestUserSpace(t, pool)
	child := NewCOWChild(parent, heapBottom, riscv.PAddr(0x80000000), pool)

	vpn := riscv.VAddr(0x1000).Floor()
	ent, _ := child.Translate(vpn)
	formerPPN := ent.PPN()

	if err := child.ResolveCOWFault(vpn, formerPPN, pool, &register.Mock{}); err != nil {
		t.Fatalf("first ResolveCOWFault: %v", err)
	}
	resolved, _ := child.Translate(vpn)

	// A second fault against the same now-stale formerPPN must not corrupt
	// state. RemapCOW rejects it (ppn mismatch), which surfaces here as a
	// panic from the underlying page table — exactly the
	// fatal-invariant-violation path a caller that mis-decodes a second
	// trap for an already-resolved page should hit.
	defer func() {
		recover()
		again, _ := child.Translate(vpn)
		if again.PPN() != resolved.PPN() {
			t.Fatal("child mapping was altered despite the duplicate call failing")
		}
	}()
	child.ResolveCOWFault(vpn, formerPPN, pool, &register.Mock{})
}
