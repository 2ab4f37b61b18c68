package frame

import (
	"testing"

	"riscvvm/riscv"
)

func TestPoolAllocateZeroesAndIsUnique(t *testing.T) {
	p := NewPool(0x10, 4)

	f1, ok := p.Allocate()
	if !ok {
		t.Fatal("Allocate() failed on a fresh pool")
	}
	for i := range f1.Bytes() {
		f1.Bytes()[i] = 0xFF
	}

	f2, ok := p.Allocate()
	if !ok {
		t.Fatal("Allocate() failed for second frame")
	}
	if f1.PPN() == f2.PPN() {
		t.Fatalf("two live allocations returned the same ppn %v", f1.PPN())
	}
	for _, b := range f2.Bytes() {
		if b != 0 {
			t.Fatal("freshly allocated frame is not zeroed")
		}
	}
}

func TestPoolExhaustion(t *testing.T) {
	p := NewPool(0, 2)
	if _, ok := p.Allocate(); !ok {
		t.Fatal("first allocation failed")
	}
	if _, ok := p.Allocate(); !ok {
		t.Fatal("second allocation failed")
	}
	if _, ok := p.Allocate(); ok {
		t.Fatal("allocation succeeded past pool capacity")
	}
}

func TestFrameReleaseReturnsPageToPool(t *testing.T) {
	p := NewPool(0, 1)
	f, _ := p.Allocate()
	f.Release()
	if p.Free() != 1 {
		t.Fatalf("Free() = %d after releasing the only frame, want 1", p.Free())
	}
	if _, ok := p.Allocate(); !ok {
		t.Fatal("could not reallocate a released frame")
	}
}

func TestFrameRetainKeepsPageAliveUntilAllReleased(t *testing.T) {
	p := NewPool(0, 1)
	f, _ := p.Allocate()
	shared := f.Retain()

	if got := p.Refcount(f.PPN()); got != 2 {
		t.Fatalf("Refcount() = %d after Retain, want 2", got)
	}

	f.Release()
	if p.Free() != 0 {
		t.Fatal("page returned to freelist while a retained handle is still live")
	}

	shared.Release()
	if p.Free() != 1 {
		t.Fatal("page not returned to freelist after every handle released")
	}
}

func TestBytesIsSharedAcrossHandles(t *testing.T) {
	p := NewPool(0, 1)
	f, _ := p.Allocate()
	shared := f.Retain()

	f.Bytes()[0] = 42
	if shared.Bytes()[0] != 42 {
		t.Fatal("Retain()'d handle does not observe writes through the original handle")
	}
	if got := p.Bytes(f.PPN())[0]; got != 42 {
		t.Fatal("Allocator.Bytes(ppn) does not observe writes made through a Frame handle")
	}
	shared.Release()
	f.Release()
}

func TestZeroFrameIsInvalid(t *testing.T) {
	var f Frame
	if f.Valid() {
		t.Fatal("zero Frame reports Valid() = true")
	}
}

func TestRefcountIndexesFromPoolBase(t *testing.T) {
	p := NewPool(0x100, 2)
	f, _ := p.Allocate()
	if f.PPN() < riscv.PPN(0x100) {
		t.Fatalf("allocated ppn %v is below the pool base", f.PPN())
	}
	if got := p.Refcount(f.PPN()); got != 1 {
		t.Fatalf("Refcount(%v) = %d for a fresh allocation, want 1", f.PPN(), got)
	}
}
