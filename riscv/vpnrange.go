package riscv

// VPNRange is a half-open [Start, End) run of virtual page numbers. It is a
// plain value type: cheap to copy and safe to iterate more than once.
type VPNRange struct {
	Start VPN
	End   VPN
}

// NewVPNRange builds a range covering [start, end). It panics if start > end,
// the one ordering invariant the range must hold.
func NewVPNRange(start, end VPN) VPNRange {
	if start > end {
		panic("riscv: VPNRange start after end")
	}
	return VPNRange{Start: start, End: end}
}

// Len reports the number of pages in the range.
func (r VPNRange) Len() int { return int(r.End - r.Start) }

// Contains reports whether vpn falls within the range.
func (r VPNRange) Contains(vpn VPN) bool { return vpn >= r.Start && vpn < r.End }

// Each calls fn for every VPN in the range, in ascending order, stopping
// early if fn returns false.
func (r VPNRange) Each(fn func(VPN) bool) {
	for vpn := r.Start; vpn < r.End; vpn++ {
		if !fn(vpn) {
			return
		}
	}
}

// Slice materializes the range as a slice, mainly useful in tests.
func (r VPNRange) Slice() []VPN {
	out := make([]VPN, 0, r.Len())
	r.Each(func(vpn VPN) bool {
		out = append(out, vpn)
		return true
	})
	return out
}
