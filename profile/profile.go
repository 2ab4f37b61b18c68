// Package profile renders a live address space as a pprof heap profile, so
// an operator can point "go tool pprof" at a dump and see where a kernel's
// physical frames are going region by region — the same offline-inspection
// workflow the teacher's D_PROF device node exists to support.
package profile

import (
	"io"

	"github.com/google/pprof/profile"

	"riscvvm/riscv"
	"riscvvm/vm"
)

// DumpHeap writes a pprof-format profile of as to w: one sample per region,
// valued by frame count and byte size, labeled by mapping kind and
// permission bits. It never touches as's page table; it only reads the
// region list.
func DumpHeap(as *vm.AddressSpace, w io.Writer) error {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "frames", Unit: "count"},
			{Type: "size", Unit: "bytes"},
		},
		PeriodType: &profile.ValueType{Type: "space", Unit: "bytes"},
		Period:     riscv.PageSize,
	}

	for i, area := range as.Areas() {
		fn := &profile.Function{
			ID:   uint64(i + 1),
			Name: regionLabel(area),
		}
		loc := &profile.Location{
			ID:   uint64(i + 1),
			Line: []profile.Line{{Function: fn}},
		}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)

		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{int64(area.FrameCount()), int64(area.FrameCount()) * riscv.PageSize},
			Label: map[string][]string{
				"kind": {kindLabel(area.Kind)},
				"perm": {permLabel(area.Perm)},
			},
		})
	}

	return p.Write(w)
}

func kindLabel(kind vm.RegionKind) string {
	if kind == vm.Identical {
		return "identical"
	}
	return "framed"
}

func permLabel(perm riscv.Flags) string {
	s := []byte("----")
	if perm.Has(riscv.FlagRead) {
		s[0] = 'R'
	}
	if perm.Has(riscv.FlagWrite) {
		s[1] = 'W'
	}
	if perm.Has(riscv.FlagExec) {
		s[2] = 'X'
	}
	if perm.Has(riscv.FlagUser) {
		s[3] = 'U'
	}
	return string(s)
}

func regionLabel(area *vm.Region) string {
	return permLabel(area.Perm) + " " + kindLabel(area.Kind) + " [" +
		area.VPNRange.Start.String() + ", " + area.VPNRange.End.String() + ")"
}
