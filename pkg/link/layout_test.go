package link

import (
	"debug/elf"
	"testing"

	"github.com/coreld/coreld/pkg/inputfile"
)

func TestChunkAlignmentDefaultsToOneNotZero(t *testing.T) {
	o := NewOutputSection(".data", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC), 0)
	o.Shdr.AddrAlign = 0

	if got := chunkAlignment(o); got != 1 {
		t.Fatalf("chunkAlignment of a zero-align chunk = %d, want 1 (never 0, a later mod-by-it would panic)", got)
	}
}

func TestChunkAlignmentPrefersExtraAddrAlign(t *testing.T) {
	o := NewOutputSection(".text", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC), 0)
	o.Shdr.AddrAlign = 16
	o.SetExtraAddrAlign(4096)

	if got := chunkAlignment(o); got != 4096 {
		t.Fatalf("chunkAlignment = %d, want the larger ExtraAddrAlign 4096", got)
	}
}

func TestComputeSectionSizesPacksMembersByAlignment(t *testing.T) {
	ctx := &Context{}
	osec := NewOutputSection(".data", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC), 0)

	a := &inputfile.InputSection{ShSize: 3, P2Align: 0}
	b := &inputfile.InputSection{ShSize: 5, P2Align: 3} // needs 8-byte alignment
	osec.Members = []*inputfile.InputSection{a, b}
	ctx.OutputSections = []*OutputSection{osec}

	ComputeSectionSizes(ctx)

	if a.Offset != 0 {
		t.Fatalf("first member should start at offset 0, got %d", a.Offset)
	}
	if b.Offset != 8 {
		t.Fatalf("second member should be pushed to the next 8-byte boundary, got %d", b.Offset)
	}
	if osec.Shdr.Size != 13 {
		t.Fatalf("section size = %d, want 13 (offset 8 + size 5)", osec.Shdr.Size)
	}
	if osec.Shdr.AddrAlign != 8 {
		t.Fatalf("section alignment should track its most-aligned member, got %d", osec.Shdr.AddrAlign)
	}
}
