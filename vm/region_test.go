package vm

import (
	"testing"

	"riscvvm/frame"
	"riscvvm/pagetable"
	"riscvvm/riscv"
)

func newTestPT(t *testing.T) (*pagetable.Table, *frame.Pool) {
	t.Helper()
	pool := frame.NewPool(0, 256)
	return pagetable.New(pool), pool
}

func TestFramedRegionMapUnmapReleasesFrames(t *testing.T) {
	pt, pool := newTestPT(t)
	r := NewRegion(0, riscv.VAddr(3*riscv.PageSize), Framed, riscv.FlagRead|riscv.FlagWrite)

	r.Map(pt, pool)
	if r.FrameCount() != 3 {
		t.Fatalf("FrameCount() = %d after Map, want 3", r.FrameCount())
	}
	free := pool.Free()

	r.Unmap(pt)
	if r.FrameCount() != 0 {
		t.Fatalf("FrameCount() = %d after Unmap, want 0", r.FrameCount())
	}
	if pool.Free() != free+3 {
		t.Fatalf("Free() = %d after Unmap, want %d", pool.Free(), free+3)
	}
}

func TestIdenticalRegionMapsVPNToSamePPN(t *testing.T) {
	pt, pool := newTestPT(t)
	r := NewRegion(riscv.VAddr(5*riscv.PageSize), riscv.VAddr(6*riscv.PageSize), Identical, riscv.FlagRead)
	r.Map(pt, pool)

	ent, ok := pt.Translate(riscv.VPN(5))
	if !ok {
		t.Fatal("identical region vpn not mapped")
	}
	if ent.PPN() != riscv.PPN(5) {
		t.Errorf("PPN() = %v, want 5", ent.PPN())
	}
	if r.FrameCount() != 0 {
		t.Error("identical region should not own any allocator frames")
	}
}

func TestCopyDataWritesAcrossPageBoundary(t *testing.T) {
	pt, pool := newTestPT(t)
	r := NewRegion(0, riscv.VAddr(2*riscv.PageSize), Framed, riscv.FlagRead|riscv.FlagWrite)
	r.Map(pt, pool)

	data := make([]byte, riscv.PageSize+16)
	for i := range data {
		data[i] = byte(i)
	}
	r.CopyData(pt, pool, data)

	ent0, _ := pt.Translate(riscv.VPN(0))
	ent1, _ := pt.Translate(riscv.VPN(1))
	page0 := pool.Bytes(ent0.PPN())
	page1 := pool.Bytes(ent1.PPN())

	for i := 0; i < riscv.PageSize; i++ {
		if page0[i] != byte(i) {
			t.Fatalf("page0[%d] = %d, want %d", i, page0[i], byte(i))
		}
	}
	for i := 0; i < 16; i++ {
		if page1[i] != byte(riscv.PageSize+i) {
			t.Fatalf("page1[%d] = %d, want %d", i, page1[i], byte(riscv.PageSize+i))
		}
	}
}

func TestCopyDataOnIdenticalRegionPanics(t *testing.T) {
	pt, pool := newTestPT(t)
	r := NewRegion(0, riscv.VAddr(riscv.PageSize), Identical, riscv.FlagRead)
	r.Map(pt, pool)

	defer func() {
		if recover() == nil {
			t.Fatal("CopyData on an identical region did not panic")
		}
	}()
	r.CopyData(pt, pool, []byte{1})
}

func TestTakeOwnedReturnsOldAndReplaces(t *testing.T) {
	pool := frame.NewPool(0, 4)
	r := NewRegion(0, riscv.VAddr(riscv.PageSize), Framed, riscv.FlagRead)
	f1, _ := pool.Allocate()
	r.insertShared(riscv.VPN(0), f1)

	f2, _ := pool.Allocate()
	old, hadOld := r.takeOwned(riscv.VPN(0), f2)
	if !hadOld || old.PPN() != f1.PPN() {
		t.Fatal("takeOwned did not return the previous frame")
	}
	old.Release()

	if r.dataFrames[riscv.VPN(0)].PPN() != f2.PPN() {
		t.Fatal("takeOwned did not install the new frame")
	}
}
