// Package config holds the constants and boot-time layout facts the virtual
// memory core needs but does not own: the ones spec.md documents under
// "External Interfaces" as consumed from the linker script and the board.
package config

import "riscvvm/riscv"

const (
	// PageSize mirrors riscv.PageSize for callers that only need config.
	PageSize = riscv.PageSize

	// Trampoline is the virtual address of the trampoline page, mapped
	// identically into every address space. It sits at the top page of the
	// Sv39 virtual address space.
	Trampoline riscv.VAddr = (1 << riscv.VAWidth) - riscv.PageSize

	// TrapContext is one page below Trampoline.
	TrapContext riscv.VAddr = Trampoline - riscv.PageSize

	// UserStackSize is the size, in bytes, of a task's user stack region.
	UserStackSize = 8 * riscv.PageSize * 256 // 8 MiB

	// UserHeapSize is the size, in bytes, of a task's user heap region.
	UserHeapSize = 16 * riscv.PageSize * 256 // 16 MiB

	// MemoryEnd is the top of usable physical RAM identity-mapped by the
	// kernel address space.
	MemoryEnd riscv.PAddr = 0x88000000
)

// MMIOWindow is one memory-mapped-I/O region identity-mapped into the
// kernel address space.
type MMIOWindow struct {
	Base riscv.PAddr
	Len  uint64
}

// MMIO lists the board's memory-mapped I/O windows, e.g. VirtIO/UART/PLIC on
// a QEMU virt machine.
var MMIO = []MMIOWindow{
	{Base: 0x10001000, Len: 0x1000},  // VirtIO MMIO
	{Base: 0x0c000000, Len: 0x400000}, // PLIC
	{Base: 0x10000000, Len: 0x1000},  // UART
}

// Layout stands in for the linker-provided extern symbols (stext..
// strampoline) a real boot image supplies. A hosted Go module has no linker
// script, so callers (boot glue, or tests) build a Layout describing the
// kernel image they actually have.
type Layout struct {
	STText, ETText         riscv.VAddr // .text
	SRoData, ERoData       riscv.VAddr // .rodata
	SData, EData           riscv.VAddr // .data
	SBSSWithStack, EBSS    riscv.VAddr // .bss, including the boot stack
	EKernel                riscv.VAddr // end of the kernel image; free RAM starts here
	Trampoline             riscv.PAddr // physical address of the trampoline code page
}
