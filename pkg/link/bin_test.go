package link

import (
	"debug/elf"
	"testing"

	"github.com/coreld/coreld/pkg/inputfile"
)

func TestCollectOutputSectionsSortsByNameAndDropsEmpty(t *testing.T) {
	ctx := &Context{}

	full := NewOutputSection(".text", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC), 0)
	full.Members = []*inputfile.InputSection{{}}
	empty := NewOutputSection(".data", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC), 1)
	other := NewOutputSection(".bss", uint32(elf.SHT_NOBITS), uint64(elf.SHF_ALLOC), 2)
	other.Members = []*inputfile.InputSection{{}}

	ctx.OutputSections = []*OutputSection{full, empty, other}

	got := CollectOutputSections(ctx)
	if len(got) != 2 {
		t.Fatalf("expected 2 non-empty output sections, got %d", len(got))
	}
	if got[0].GetName() != ".bss" || got[1].GetName() != ".text" {
		t.Fatalf("expected sorted-by-name order [.bss, .text], got [%s, %s]", got[0].GetName(), got[1].GetName())
	}
}
