package inputfile

import (
	"debug/elf"
	"testing"

	"github.com/coreld/coreld/pkg/target"
)

func TestGetRankOrdering(t *testing.T) {
	strong := &ObjectFile{}
	strong.Priority = 2
	weak := &ObjectFile{}
	weak.Priority = 3

	strongDef := &target.Sym{Shndx: 1}
	weakDef := &target.Sym{Shndx: 1}
	weakDef.SetBind(uint8(elf.STB_WEAK))

	strongRank := GetRank(strong, strongDef, false)
	weakRank := GetRank(weak, weakDef, false)

	if strongRank >= weakRank {
		t.Fatalf("strong rank %d should beat (be less than) weak rank %d", strongRank, weakRank)
	}
}

func TestGetRankLazyLosesToDefinition(t *testing.T) {
	obj := &ObjectFile{}
	obj.Priority = 1
	sym := &target.Sym{Shndx: 1}

	def := GetRank(obj, sym, false)
	lazy := GetRank(obj, sym, true)
	if def >= lazy {
		t.Fatalf("a real definition must outrank a lazy (archive, not yet pulled in) one")
	}
}

func TestMergeableSectionFindFragmentIndex(t *testing.T) {
	m := &MergeableSection{FragOffsets: []uint32{0, 4, 10}}
	cases := []struct {
		off  uint32
		want int
	}{
		{0, 0}, {3, 0}, {4, 1}, {9, 1}, {10, 2}, {100, 2},
	}
	for _, c := range cases {
		if got := m.findFragmentIndex(c.off); got != c.want {
			t.Fatalf("findFragmentIndex(%d) = %d, want %d", c.off, got, c.want)
		}
	}
}
