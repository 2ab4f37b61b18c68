//go:build unix

package frame

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"riscvvm/riscv"
)

// HostPool is an Allocator backed by a single anonymous mmap arena, used to
// exercise the copy-on-write protocol against real page-aligned host memory
// instead of plain Go slices. The design notes call for the core to stay
// "testable off-hardware via a mock page-table-root register"; HostPool is
// the off-hardware stand-in for the frame allocator the teacher's Physmem_t
// provides on real iron via the direct map (mem.Physmem_t.Dmap in the
// reference kernel).
type HostPool struct {
	mu      sync.Mutex
	base    riscv.PPN
	arena   []byte
	n       int
	refcnt  []int32
	freeIdx []int
}

// NewHostPool mmaps n pages of anonymous memory and returns a HostPool over
// it.
func NewHostPool(base riscv.PPN, n int) (*HostPool, error) {
	arena, err := unix.Mmap(-1, 0, n*riscv.PageSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("frame: mmap %d pages: %w", n, err)
	}
	p := &HostPool{
		base:    base,
		arena:   arena,
		n:       n,
		refcnt:  make([]int32, n),
		freeIdx: make([]int, n),
	}
	for i := 0; i < n; i++ {
		p.freeIdx[i] = n - 1 - i
	}
	return p, nil
}

// Close unmaps the pool's backing arena. It must not be called while any
// Frame allocated from the pool is still in use.
func (p *HostPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	arena := p.arena
	p.arena = nil
	return unix.Munmap(arena)
}

// Allocate implements Allocator.
func (p *HostPool) Allocate() (Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.freeIdx) == 0 {
		return Frame{}, false
	}
	idx := p.freeIdx[len(p.freeIdx)-1]
	p.freeIdx = p.freeIdx[:len(p.freeIdx)-1]
	page := p.page(idx)
	for i := range page {
		page[i] = 0
	}
	p.refcnt[idx] = 1
	return Frame{ppn: p.base + riscv.PPN(idx), pool: p}, true
}

func (p *HostPool) page(idx int) []byte {
	off := idx * riscv.PageSize
	return p.arena[off : off+riscv.PageSize]
}

func (p *HostPool) index(ppn riscv.PPN) int {
	idx := int(ppn - p.base)
	if idx < 0 || idx >= p.n {
		panic(fmt.Sprintf("frame: ppn %v out of host pool range", ppn))
	}
	return idx
}

func (p *HostPool) bytes(ppn riscv.PPN) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page(p.index(ppn))
}

// Bytes returns the direct-mapped backing bytes for ppn.
func (p *HostPool) Bytes(ppn riscv.PPN) []byte { return p.bytes(ppn) }

func (p *HostPool) retain(ppn riscv.PPN) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.index(ppn)
	if p.refcnt[idx] <= 0 {
		panic("frame: retain of freed frame")
	}
	p.refcnt[idx]++
}

func (p *HostPool) release(ppn riscv.PPN) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.index(ppn)
	if p.refcnt[idx] <= 0 {
		panic("frame: double release")
	}
	p.refcnt[idx]--
	if p.refcnt[idx] == 0 {
		p.freeIdx = append(p.freeIdx, idx)
	}
}
