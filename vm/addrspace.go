package vm

import (
	"log"
	"sync"

	"riscvvm/config"
	"riscvvm/frame"
	"riscvvm/pagetable"
	"riscvvm/register"
	"riscvvm/riscv"
)

// AddressSpace aggregates one page table and an ordered list of regions. It
// is the unit a task activates.
type AddressSpace struct {
	pt    *pagetable.Table
	alloc frame.Allocator
	areas []*Region

	// Verbose, when true, makes construction helpers log boot-trace
	// messages the way the original kernel's new_kernel/from_elf do.
	Verbose bool
}

// NewBareAddressSpace returns an empty address space with a fresh page
// table and no regions, not even the trampoline.
func NewBareAddressSpace(alloc frame.Allocator) *AddressSpace {
	return &AddressSpace{pt: pagetable.New(alloc), alloc: alloc}
}

// PageTable exposes the underlying table, e.g. for RemapTest-style probes.
func (as *AddressSpace) PageTable() *pagetable.Table { return as.pt }

// Token returns the activation word for this address space's page table.
func (as *AddressSpace) Token() riscv.SATP { return as.pt.Token() }

// Areas returns the address space's region list. Callers must not mutate
// the returned slice; it is exposed read-only for inspection and tests.
func (as *AddressSpace) Areas() []*Region { return as.areas }

// MapTrampoline installs the single trampoline leaf mapping at the
// architectural TRAMPOLINE address, R|X, outside the area list. Spec
// invariant 3: every AddressSpace maps it, and it is never tracked in
// areas, because its backing frame is the kernel's static trampoline code.
func (as *AddressSpace) MapTrampoline(layout config.Layout) {
	as.pt.Map(config.Trampoline.Floor(), layout.Trampoline.Floor(), riscv.FlagRead|riscv.FlagExec)
}

// Push maps region, optionally copies data into it, and appends it to the
// area list.
func (as *AddressSpace) Push(region *Region, data []byte) {
	region.Map(as.pt, as.alloc)
	if data != nil {
		region.CopyData(as.pt, as.alloc, data)
	}
	as.areas = append(as.areas, region)
}

// PushMapped appends region without mapping it, used by the copy-on-write
// fork path, which installs leaf entries itself (see NewCOWChild).
func (as *AddressSpace) PushMapped(region *Region) {
	as.areas = append(as.areas, region)
}

// InsertFramedArea is a convenience for allocating a new framed region.
func (as *AddressSpace) InsertFramedArea(startVA, endVA riscv.VAddr, perm riscv.Flags) {
	as.Push(NewRegion(startVA, endVA, Framed, perm), nil)
}

// InsertMmapArea is a deliberate alias of InsertFramedArea (spec open
// question (c)): until an anonymous-file-backing extension exists, an mmap
// region is indistinguishable from a plain framed one.
func (as *AddressSpace) InsertMmapArea(startVA, endVA riscv.VAddr, perm riscv.Flags) {
	as.InsertFramedArea(startVA, endVA, perm)
}

// RemoveAreaWithStartVPN finds the first area whose range starts at vpn,
// unmaps it, and removes it. It is a no-op if no such area exists.
func (as *AddressSpace) RemoveAreaWithStartVPN(vpn riscv.VPN) {
	for i, a := range as.areas {
		if a.VPNRange.Start == vpn {
			a.Unmap(as.pt)
			as.areas = append(as.areas[:i:i], as.areas[i+1:]...)
			return
		}
	}
}

// regionCovering returns the area whose range contains vpn, if any.
func (as *AddressSpace) regionCovering(vpn riscv.VPN) (*Region, bool) {
	for _, a := range as.areas {
		if a.VPNRange.Contains(vpn) {
			return a, true
		}
	}
	return nil, false
}

// Translate forwards to the page table. Absence (an unmapped vpn) is not an
// error; callers decide whether it is expected.
func (as *AddressSpace) Translate(vpn riscv.VPN) (riscv.Entry, bool) {
	return as.pt.Translate(vpn)
}

// RecycleDataPages clears the area list. Its side effect is releasing every
// leaf frame each area owned or shared; the page table itself (and the
// trampoline mapping) is retained, mirroring the original's reliance on
// areas.clear() to drop frames without separately unmapping their PTEs.
func (as *AddressSpace) RecycleDataPages() {
	for _, a := range as.areas {
		a.releaseFrames()
	}
	as.areas = nil
}

// Destroy releases every frame this address space owns: first the leaf data
// frames each area held or shared (via RecycleDataPages), then the page
// table's own root and interior frames. After Destroy the AddressSpace must
// not be used again; this is the operation spec §8's frame-conservation
// invariant holds a discarded address space to.
func (as *AddressSpace) Destroy() {
	as.RecycleDataPages()
	as.pt.Close()
}

// Activate writes the page table's token to the page-table-base register
// and issues a full TLB flush, in that order. Ordering spec §5 requires
// the write to be observed before the flush.
func (as *AddressSpace) Activate(regs register.Root) {
	regs.WriteSATP(as.pt.Token())
	regs.FlushTLB()
}

func (as *AddressSpace) logf(format string, args ...interface{}) {
	if as.Verbose {
		log.Printf(format, args...)
	}
}

// kernelSpace is the process-wide kernel address space singleton: "init
// during boot, never destroyed", accessed only under kernelSpaceMu (spec
// §5, §9: "expose it through a dependency-injected handle in tests and
// only globalize in the production binary"). Production boot code calls
// InitKernelSpace once; apart from the test of InitKernelSpace itself,
// which resets this global before and after, tests construct their own
// AddressSpace directly via NewKernelSpace.
var (
	kernelSpaceMu sync.Mutex
	kernelSpace   *AddressSpace
)

// InitKernelSpace builds the kernel address space once and installs it as
// the package-wide singleton. Calling it twice panics: the kernel address
// space's lifecycle is "initialized once during boot, never destroyed".
func InitKernelSpace(layout config.Layout, alloc frame.Allocator) *AddressSpace {
	kernelSpaceMu.Lock()
	defer kernelSpaceMu.Unlock()
	if kernelSpace != nil {
		panic("vm: kernel address space already initialized")
	}
	kernelSpace = NewKernelSpace(layout, alloc)
	return kernelSpace
}

// KernelToken returns the activation token for the singleton kernel address
// space, acquiring the guarding lock as spec §5 requires for any access to
// kernel virtual-memory state.
func KernelToken() riscv.SATP {
	kernelSpaceMu.Lock()
	defer kernelSpaceMu.Unlock()
	if kernelSpace == nil {
		panic("vm: kernel address space not initialized")
	}
	return kernelSpace.Token()
}
