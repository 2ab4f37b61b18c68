package riscv

// Flags is a bit set over the Sv39 page-table-entry flag bits, plus one
// software-reserved bit (COW) that hardware ignores entirely.
type Flags uint64

const (
	// FlagValid marks a page-table entry as present.
	FlagValid Flags = 1 << 0
	// FlagRead permits loads from the page.
	FlagRead Flags = 1 << 1
	// FlagWrite permits stores to the page.
	FlagWrite Flags = 1 << 2
	// FlagExec permits instruction fetch from the page.
	FlagExec Flags = 1 << 3
	// FlagUser permits user-mode access to the page.
	FlagUser Flags = 1 << 4
	// FlagGlobal marks a translation as present in every address space.
	FlagGlobal Flags = 1 << 5
	// FlagAccessed is set by hardware on first access.
	FlagAccessed Flags = 1 << 6
	// FlagDirty is set by hardware on first write.
	FlagDirty Flags = 1 << 7
	// FlagCOW is a software-reserved bit (Sv39 RSW[0]) marking a page whose
	// hardware write bit was cleared for a copy-on-write share. Hardware
	// never interprets it.
	FlagCOW Flags = 1 << 8

	// rwxuMask isolates the permission bits a caller of MapArea/Region-level
	// APIs is allowed to specify; Valid is added by Table.Map itself.
	rwxuMask = FlagRead | FlagWrite | FlagExec | FlagUser
	// leafMask distinguishes a leaf entry (any of R/W/X set) from a
	// non-leaf entry (none set, PPN points at the next-level table).
	leafMask = FlagRead | FlagWrite | FlagExec
)

// Has reports whether all bits of want are set in f.
func (f Flags) Has(want Flags) bool { return f&want == want }

// IsLeaf reports whether flags describe a leaf (data) page-table entry as
// opposed to a pointer to the next level of the walk.
func (f Flags) IsLeaf() bool { return f&leafMask != 0 }

// Permission returns the subset of f relevant to MapArea/Region permission
// policy: R, W, X, U.
func (f Flags) Permission() Flags { return f & rwxuMask }

// Entry is one hardware-format Sv39 page-table-entry word.
type Entry uint64

func newEntry(ppn PPN, flags Flags) Entry {
	return Entry(uint64(ppn)<<10) | Entry(flags)
}

// PPN extracts the physical page number encoded in the entry.
func (e Entry) PPN() PPN { return PPN(uint64(e) >> 10) }

// Flags extracts the low flag bits (including the software COW bit).
func (e Entry) Flags() Flags { return Flags(uint64(e) & 0x3ff) }

// IsValid reports whether the entry's Valid bit is set.
func (e Entry) IsValid() bool { return e.Flags().Has(FlagValid) }

// IsCOW reports whether the entry's software COW bit is set.
func (e Entry) IsCOW() bool { return e.Flags().Has(FlagCOW) }

// IsLeaf reports whether the entry is a leaf (as opposed to pointing at an
// interior page-table node).
func (e Entry) IsLeaf() bool { return e.Flags().IsLeaf() }

// Writable reports whether the entry's hardware write bit is set.
func (e Entry) Writable() bool { return e.Flags().Has(FlagWrite) }

// Executable reports whether the entry's hardware execute bit is set.
func (e Entry) Executable() bool { return e.Flags().Has(FlagExec) }

// SATP is the activation token written to the page-table-base register: mode
// (Sv39 = 8), ASID, and root page number packed per the RISC-V privileged
// spec layout.
type SATP uint64

const (
	satpModeSv39 = 8
	satpModeShift = 60
	satpASIDShift = 44
	satpASIDMask  = (1 << 16) - 1
	satpPPNMask   = (1 << 44) - 1
)

// NewSATP packs the Sv39 mode tag, an ASID (always 0 in this core, see
// spec's single-address-space-per-hart model) and the page-table root PPN
// into an activation token.
func NewSATP(asid uint16, rootPPN PPN) SATP {
	v := uint64(satpModeSv39) << satpModeShift
	v |= uint64(asid&satpASIDMask) << satpASIDShift
	v |= uint64(rootPPN) & satpPPNMask
	return SATP(v)
}

// RootPPN extracts the page-table root PPN from the token.
func (s SATP) RootPPN() PPN { return PPN(uint64(s) & satpPPNMask) }
