// Command vmdemo boots a kernel address space, optionally loads a user ELF
// image, forks it both ways, and (optionally) dumps a pprof heap profile of
// the kernel's region occupancy. It exists to exercise the virtual-memory
// core end to end outside of real RISC-V hardware, the way the teacher's own
// kernel/chentry.go is a small standalone tool built around the same core
// packages rather than the boot path itself.
package main

import (
	"flag"
	"log"
	"os"

	"riscvvm/config"
	"riscvvm/frame"
	"riscvvm/profile"
	"riscvvm/register"
	"riscvvm/riscv"
	"riscvvm/trap"
	"riscvvm/vm"
)

// currentTask is the demo's stand-in for a real scheduler's "running task"
// handle, satisfying task.Current with a single fixed address space.
type currentTask struct {
	as *vm.AddressSpace
}

func (c currentTask) AddressSpace() *vm.AddressSpace { return c.as }

const framePoolPages = 1 << 16

func main() {
	elfPath := flag.String("elf", "", "path to an ELF user image to load")
	profilePath := flag.String("profile", "", "path to write a pprof heap profile of the kernel address space")
	verbose := flag.Bool("v", false, "log boot-trace messages")
	flag.Parse()

	alloc := frame.NewPool(0x1000, framePoolPages)

	layout := config.Layout{
		STText:        0x80200000,
		ETText:        0x80204000,
		SRoData:       0x80204000,
		ERoData:       0x80206000,
		SData:         0x80206000,
		EData:         0x80208000,
		SBSSWithStack: 0x80208000,
		EBSS:          0x8020c000,
		EKernel:       0x8020c000,
		Trampoline:    0x8020c000,
	}

	kernel := vm.NewKernelSpace(layout, alloc)
	kernel.Verbose = *verbose
	vm.RemapTest(kernel, layout)
	log.Printf("kernel space built, token=%#x", kernel.Token())

	regs := &register.Mock{}
	kernel.Activate(regs)
	log.Printf("kernel space activated, tlb flushes=%d", regs.Flushes)

	if *profilePath != "" {
		f, err := os.Create(*profilePath)
		if err != nil {
			log.Fatalf("vmdemo: creating profile output: %v", err)
		}
		if err := profile.DumpHeap(kernel, f); err != nil {
			log.Fatalf("vmdemo: writing profile: %v", err)
		}
		if err := f.Close(); err != nil {
			log.Fatalf("vmdemo: closing profile output: %v", err)
		}
		log.Printf("wrote heap profile to %s", *profilePath)
	}

	if *elfPath == "" {
		return
	}

	data, err := os.ReadFile(*elfPath)
	if err != nil {
		log.Fatalf("vmdemo: reading elf: %v", err)
	}

	user, sp, heapBottom, entry := vm.NewFromELF(data, layout.Trampoline, alloc)
	user.Verbose = *verbose
	log.Printf("user space built, entry=%#x sp=%#x heapBottom=%#x", entry, sp, heapBottom)

	forked := vm.NewForkedChild(user, layout.Trampoline, alloc)
	log.Printf("full-copy fork, child token=%#x", forked.Token())

	cowChild := vm.NewCOWChild(user, heapBottom, layout.Trampoline, alloc)
	log.Printf("copy-on-write fork, child token=%#x", cowChild.Token())

	demonstrateCOWFault(cowChild, riscv.VAddr(entry), alloc, regs)
}

// demonstrateCOWFault simulates a store-page-fault trap entry: decode the
// faulting VPN, fetch the running task's address space, and dispatch to
// trap.HandleStorePageFault exactly as a real trap prologue would after
// decoding scause/stval. entryVA targets the ELF entry point, which sits in
// the PT_LOAD segment NewCOWChild shares copy-on-write below heapBottom.
func demonstrateCOWFault(child *vm.AddressSpace, entryVA riscv.VAddr, alloc *frame.Pool, regs register.Root) {
	vpn := entryVA.Floor()
	ent, ok := child.Translate(vpn)
	if !ok || !ent.IsCOW() {
		return
	}
	cur := currentTask{as: child}
	if err := trap.HandleStorePageFault(cur, vpn, alloc, regs); err != nil {
		log.Printf("cow fault resolution failed: %v", err)
		return
	}
	log.Printf("resolved cow fault at %v", vpn)
}
