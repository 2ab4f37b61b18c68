// Package task declares the sliver of the task/scheduler subsystem the
// virtual-memory core consumes. The scheduler itself is out of scope (spec
// §1); this is the interface boundary, not an implementation.
package task

import "riscvvm/vm"

// Current is the handle a collaborating scheduler exposes for "the running
// task" — the trap handler uses it to reach the faulting task's address
// space when resolving a copy-on-write fault.
type Current interface {
	AddressSpace() *vm.AddressSpace
}
