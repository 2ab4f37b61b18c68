// Package pagetable implements the Sv39 three-level page-table walker: the
// tree of interior nodes one address space owns, and the primitive
// map/unmap/translate/CoW-marking operations the higher-level address-space
// abstraction builds on.
package pagetable

import (
	"encoding/binary"
	"fmt"

	"riscvvm/frame"
	"riscvvm/riscv"
)

const entriesPerPage = riscv.PageSize / 8

// Table owns the tree of page-table frames for one address space. Leaf data
// frames referenced by a mapping are never owned here; they belong to the
// Region that installed the mapping (spec: "Leaf frames are not owned by
// PageTable").
type Table struct {
	alloc    frame.Allocator
	root     frame.Frame
	interior []frame.Frame
}

// New allocates a root frame and returns an empty table with no mappings.
func New(alloc frame.Allocator) *Table {
	root, ok := alloc.Allocate()
	if !ok {
		panic("pagetable: out of frames allocating root")
	}
	return &Table{alloc: alloc, root: root}
}

// Token returns the activation word encoding {mode=Sv39, asid=0, root PPN}.
func (t *Table) Token() riscv.SATP { return riscv.NewSATP(0, t.root.PPN()) }

// Close releases the root frame and every interior node frame allocated
// during walks, returning them to the allocator. Leaf data frames are not
// touched; their owning Region releases those separately. Leaf entries still
// present in the table are neither checked nor cleared. Close must run
// exactly once.
func (t *Table) Close() {
	t.root.Release()
	for _, node := range t.interior {
		node.Release()
	}
	t.interior = nil
}

// RootPPN returns the physical page number of the table's root node.
func (t *Table) RootPPN() riscv.PPN { return t.root.PPN() }

func readEntry(page []byte, idx int) riscv.Entry {
	off := idx * 8
	return riscv.Entry(binary.LittleEndian.Uint64(page[off : off+8]))
}

func writeEntry(page []byte, idx int, e riscv.Entry) {
	off := idx * 8
	binary.LittleEndian.PutUint64(page[off:off+8], uint64(e))
}

func entryOf(raw riscv.Entry) (riscv.PPN, riscv.Flags) {
	return raw.PPN(), raw.Flags()
}

// walk returns the backing bytes of the page holding vpn's leaf slot, and
// the entry index of that slot within the page. When create is false, the
// walk stops and returns ok=false at the first invalid non-leaf entry
// instead of allocating. When create is true, missing interior nodes are
// allocated and linked in as the walk proceeds.
func (t *Table) walk(vpn riscv.VPN, create bool) (page []byte, idx int, ok bool) {
	page = t.alloc.Bytes(t.root.PPN())
	for level := 0; level < riscv.Levels-1; level++ {
		i := int(vpn.Index(level))
		ent := readEntry(page, i)
		if !ent.IsValid() {
			if !create {
				return nil, 0, false
			}
			next, allocated := t.alloc.Allocate()
			if !allocated {
				panic("pagetable: out of frames during walk")
			}
			t.interior = append(t.interior, next)
			writeEntry(page, i, newTableEntry(next.PPN()))
			page = t.alloc.Bytes(next.PPN())
			continue
		}
		if ent.IsLeaf() {
			panic(fmt.Sprintf("pagetable: walk through leaf entry for %v at level %d", vpn, level))
		}
		page = t.alloc.Bytes(ent.PPN())
	}
	return page, int(vpn.Index(riscv.Levels - 1)), true
}

func newTableEntry(ppn riscv.PPN) riscv.Entry {
	return riscv.Entry(uint64(ppn)<<10) | riscv.Entry(riscv.FlagValid)
}

// Map walks/creates interior nodes and installs a leaf entry {ppn, flags |
// Valid}. It panics if the target leaf is already valid.
func (t *Table) Map(vpn riscv.VPN, ppn riscv.PPN, flags riscv.Flags) {
	page, idx, _ := t.walk(vpn, true)
	if readEntry(page, idx).IsValid() {
		panic(fmt.Sprintf("pagetable: remap of already-valid leaf %v", vpn))
	}
	writeEntry(page, idx, riscv.Entry(uint64(ppn)<<10)|riscv.Entry(flags|riscv.FlagValid))
}

// Unmap clears the leaf entry for vpn. It panics if the entry is not valid.
// Empty interior nodes along the path are not pruned.
func (t *Table) Unmap(vpn riscv.VPN) {
	page, idx, ok := t.walk(vpn, false)
	if !ok || !readEntry(page, idx).IsValid() {
		panic(fmt.Sprintf("pagetable: unmap of non-mapped vpn %v", vpn))
	}
	writeEntry(page, idx, 0)
}

// Translate returns the leaf entry for vpn if the walk reaches a valid
// entry; the second result is false for an unmapped vpn (an expected,
// non-fatal outcome, not an error).
func (t *Table) Translate(vpn riscv.VPN) (riscv.Entry, bool) {
	page, idx, ok := t.walk(vpn, false)
	if !ok {
		return 0, false
	}
	ent := readEntry(page, idx)
	if !ent.IsValid() {
		return 0, false
	}
	return ent, true
}

func (t *Table) mustFind(vpn riscv.VPN, op string) ([]byte, int, riscv.Entry) {
	page, idx, ok := t.walk(vpn, false)
	if !ok {
		panic(fmt.Sprintf("pagetable: %s of unmapped vpn %v", op, vpn))
	}
	ent := readEntry(page, idx)
	if !ent.IsValid() {
		panic(fmt.Sprintf("pagetable: %s of invalid leaf %v", op, vpn))
	}
	return page, idx, ent
}

// SetFlags rewrites the leaf entry's flags, keeping its PPN and its Valid
// bit. It requires the leaf to be valid.
func (t *Table) SetFlags(vpn riscv.VPN, flags riscv.Flags) {
	page, idx, ent := t.mustFind(vpn, "set_flags")
	ppn, _ := entryOf(ent)
	writeEntry(page, idx, riscv.Entry(uint64(ppn)<<10)|riscv.Entry(flags|riscv.FlagValid))
}

// SetCOW sets the leaf entry's software COW bit.
func (t *Table) SetCOW(vpn riscv.VPN) {
	page, idx, ent := t.mustFind(vpn, "set_cow")
	writeEntry(page, idx, ent|riscv.Entry(riscv.FlagCOW))
}

// ResetCOW clears the leaf entry's software COW bit.
func (t *Table) ResetCOW(vpn riscv.VPN) {
	page, idx, ent := t.mustFind(vpn, "reset_cow")
	writeEntry(page, idx, ent&^riscv.Entry(riscv.FlagCOW))
}

// RemapCOW resolves a copy-on-write fault: it requires the existing leaf PPN
// to equal formerPPN and the COW bit to be set, then rewrites the entry to
// {ppn: newPPN, flags: original flags without COW, with Write restored}.
func (t *Table) RemapCOW(vpn riscv.VPN, newPPN, formerPPN riscv.PPN) {
	page, idx, ent := t.mustFind(vpn, "remap_cow")
	ppn, flags := entryOf(ent)
	if ppn != formerPPN {
		panic(fmt.Sprintf("pagetable: remap_cow ppn mismatch for %v: have %v want %v", vpn, ppn, formerPPN))
	}
	if !flags.Has(riscv.FlagCOW) {
		panic(fmt.Sprintf("pagetable: remap_cow of non-cow leaf %v", vpn))
	}
	newFlags := (flags &^ riscv.FlagCOW) | riscv.FlagWrite
	writeEntry(page, idx, riscv.Entry(uint64(newPPN)<<10)|riscv.Entry(newFlags))
}
