// Package symbolize resolves and demangles the symbol name at an ELF entry
// point, for readable boot-log lines. A freestanding kernel's user images
// are as likely to be linked from Rust or C++ as from C, so entry symbols
// are demangled rather than printed raw.
package symbolize

import (
	"bytes"
	"debug/elf"

	"github.com/ianlancetaylor/demangle"
)

// EntrySymbol returns the demangled name of the symbol table entry whose
// value equals the ELF's entry point, if the image carries a symbol table
// at all. ok is false for a stripped image or one with no symbol at the
// entry address — neither is an error, just nothing to report.
func EntrySymbol(elfData []byte) (name string, ok bool) {
	f, err := elf.NewFile(bytes.NewReader(elfData))
	if err != nil {
		return "", false
	}
	syms, err := f.Symbols()
	if err != nil {
		return "", false
	}
	for _, sym := range syms {
		if sym.Value != f.Entry {
			continue
		}
		return demangle.Filter(sym.Name), true
	}
	return "", false
}
