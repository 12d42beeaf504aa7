package link

import (
	"debug/elf"
	"testing"
)

func TestGetOutputNameFoldsNumberedSections(t *testing.T) {
	cases := []struct {
		name  string
		flags uint64
		want  string
	}{
		{".text.hot", 0, ".text"},
		{".text", 0, ".text"},
		{".data.rel.ro.local", 0, ".data.rel.ro"},
		{".init_array.00100", 0, ".init_array"},
		{"custom_section", 0, "custom_section"},
	}
	for _, c := range cases {
		if got := GetOutputName(c.name, c.flags); got != c.want {
			t.Fatalf("GetOutputName(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestGetOutputNameSplitsMergeableRodata(t *testing.T) {
	strFlags := uint64(elf.SHF_MERGE) | uint64(elf.SHF_STRINGS)
	if got := GetOutputName(".rodata.str1.1", strFlags); got != ".rodata.str" {
		t.Fatalf("mergeable string rodata should fold to .rodata.str, got %q", got)
	}

	cstFlags := uint64(elf.SHF_MERGE)
	if got := GetOutputName(".rodata.cst8", cstFlags); got != ".rodata.cst" {
		t.Fatalf("mergeable constant rodata should fold to .rodata.cst, got %q", got)
	}
}

func TestCanonicalizeTypeRecognizesInitArray(t *testing.T) {
	got := CanonicalizeType(".init_array.00100", uint64(elf.SHT_PROGBITS))
	if got != uint64(elf.SHT_INIT_ARRAY) {
		t.Fatalf("CanonicalizeType should promote a numbered init_array section to SHT_INIT_ARRAY")
	}
}

func TestCanonicalizeTypeLeavesOtherTypesAlone(t *testing.T) {
	got := CanonicalizeType(".text", uint64(elf.SHT_PROGBITS))
	if got != uint64(elf.SHT_PROGBITS) {
		t.Fatalf("CanonicalizeType must not touch an ordinary PROGBITS section")
	}
}
