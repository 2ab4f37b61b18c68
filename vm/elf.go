package vm

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"

	"riscvvm/config"
	"riscvvm/frame"
	"riscvvm/riscv"
	"riscvvm/sizefmt"
	"riscvvm/symbolize"
)

// NewFromELF builds a user address space from an ELF image: the trampoline,
// one framed region per PT_LOAD program header, a user heap, the
// trap-context page, and a user stack. It returns the address space, the
// initial user stack pointer, the user heap's bottom address, and the ELF
// entry point — exactly the four values a task needs to start running.
//
// debug/elf, not a third-party parser, is used here deliberately: the
// teacher's own kernel/chentry.go ELF-entry-patching tool reaches for
// debug/elf directly, and no example repo in the pack ships an alternative.
func NewFromELF(elfData []byte, trampolinePhys riscv.PAddr, alloc frame.Allocator) (as *AddressSpace, userSP, userHeapBottom riscv.VAddr, entry uint64) {
	as = NewBareAddressSpace(alloc)

	f, err := elf.NewFile(bytes.NewReader(elfData))
	if err != nil {
		panic(fmt.Sprintf("vm: invalid elf: %v", err))
	}
	if f.Ident[elf.EI_MAG0] != '\x7f' || f.Ident[elf.EI_MAG1] != 'E' ||
		f.Ident[elf.EI_MAG2] != 'L' || f.Ident[elf.EI_MAG3] != 'F' {
		panic("vm: invalid elf!")
	}

	as.MapTrampoline(config.Layout{Trampoline: trampolinePhys})

	if sym, ok := symbolize.EntrySymbol(elfData); ok {
		as.logf("entry symbol: %s", sym)
	}

	var maxEndVPN riscv.VPN
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		startVA := riscv.VAddr(prog.Vaddr)
		endVA := riscv.VAddr(prog.Vaddr + prog.Memsz)

		perm := riscv.FlagUser
		if prog.Flags&elf.PF_R != 0 {
			perm |= riscv.FlagRead
		}
		if prog.Flags&elf.PF_W != 0 {
			perm |= riscv.FlagWrite
		}
		if prog.Flags&elf.PF_X != 0 {
			perm |= riscv.FlagExec
		}

		region := NewRegion(startVA, endVA, Framed, perm)
		if end := region.VPNRange.End; end > maxEndVPN {
			maxEndVPN = end
		}

		data, err := io.ReadAll(prog.Open())
		if err != nil {
			panic(fmt.Sprintf("vm: reading PT_LOAD segment: %v", err))
		}
		as.logf("mapping PT_LOAD [%#x, %#x), %s", startVA, endVA, sizefmt.Bytes(prog.Memsz))
		as.Push(region, data)
	}

	// user heap, one guard page above the program break
	userHeapBottom = maxEndVPN.Addr() + riscv.VAddr(riscv.PageSize)
	userHeapTop := userHeapBottom + riscv.VAddr(config.UserHeapSize)
	as.Push(NewRegion(userHeapBottom, userHeapTop, Framed,
		riscv.FlagRead|riscv.FlagWrite|riscv.FlagUser), nil)

	// trap context: kernel-writable, not user-accessible
	as.Push(NewRegion(config.TrapContext, config.Trampoline, Framed,
		riscv.FlagRead|riscv.FlagWrite), nil)

	// user stack, one guard page below the trap context
	userStackTop := config.TrapContext - riscv.VAddr(riscv.PageSize)
	userStackBottom := userStackTop - riscv.VAddr(config.UserStackSize)
	as.Push(NewRegion(userStackBottom, userStackTop, Framed,
		riscv.FlagRead|riscv.FlagWrite|riscv.FlagUser), nil)

	return as, userStackTop, userHeapBottom, f.Entry
}
