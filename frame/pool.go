package frame

import (
	"fmt"
	"sync"

	"riscvvm/riscv"
)

// Pool is a freelist-based physical frame allocator, grounded on the
// teacher's Physmem_t free-list/refcount design (mem.Physmem_t in the
// reference kernel) but simplified to a single hosted arena: no per-CPU
// free lists, since this core targets a single hart or per-hart-pinned
// address spaces (spec §5).
type Pool struct {
	mu      sync.Mutex
	base    riscv.PPN
	pages   [][]byte
	refcnt  []int32
	freeIdx []int
}

// NewPool creates a pool of n pages, with physical page numbers starting at
// base. The backing storage is plain Go memory; a Pool is meant for tests
// and for the hosted demo binary, not for a real MMU-addressed machine.
func NewPool(base riscv.PPN, n int) *Pool {
	p := &Pool{
		base:    base,
		pages:   make([][]byte, n),
		refcnt:  make([]int32, n),
		freeIdx: make([]int, n),
	}
	for i := 0; i < n; i++ {
		p.pages[i] = make([]byte, riscv.PageSize)
		p.freeIdx[i] = n - 1 - i
	}
	return p
}

// Allocate implements Allocator: pops a zeroed frame off the free list.
func (p *Pool) Allocate() (Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.freeIdx) == 0 {
		return Frame{}, false
	}
	idx := p.freeIdx[len(p.freeIdx)-1]
	p.freeIdx = p.freeIdx[:len(p.freeIdx)-1]
	for i := range p.pages[idx] {
		p.pages[idx][i] = 0
	}
	p.refcnt[idx] = 1
	return Frame{ppn: p.base + riscv.PPN(idx), pool: p}, true
}

// Free reports the number of frames currently available.
func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.freeIdx)
}

// Refcount reports the live reference count of the frame at ppn, mainly for
// tests asserting frame-conservation properties.
func (p *Pool) Refcount(ppn riscv.PPN) int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refcnt[p.index(ppn)]
}

func (p *Pool) index(ppn riscv.PPN) int {
	idx := int(ppn - p.base)
	if idx < 0 || idx >= len(p.pages) {
		panic(fmt.Sprintf("frame: ppn %v out of pool range", ppn))
	}
	return idx
}

func (p *Pool) bytes(ppn riscv.PPN) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pages[p.index(ppn)]
}

// Bytes returns the direct-mapped backing bytes for ppn, valid whether ppn
// was handed out as a Frame to this caller or not; page-table walkers need
// to read interior nodes by PPN alone.
func (p *Pool) Bytes(ppn riscv.PPN) []byte { return p.bytes(ppn) }

func (p *Pool) retain(ppn riscv.PPN) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.index(ppn)
	if p.refcnt[idx] <= 0 {
		panic("frame: retain of freed frame")
	}
	p.refcnt[idx]++
}

func (p *Pool) release(ppn riscv.PPN) {
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
