package link

import (
	"debug/elf"
	"testing"
)

func TestMaxU64(t *testing.T) {
	if maxU64(3, 5) != 5 {
		t.Fatalf("maxU64(3, 5) should be 5")
	}
	if maxU64(5, 3) != 5 {
		t.Fatalf("maxU64(5, 3) should be 5")
	}
}

func TestToPhdrFlags(t *testing.T) {
	o := NewOutputSection(".text", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC|elf.SHF_EXECINSTR), 0)
	flags := toPhdrFlags(o)
	if flags&uint32(elf.PF_R) == 0 {
		t.Fatalf("every segment must be at least readable")
	}
	if flags&uint32(elf.PF_X) == 0 {
		t.Fatalf("SHF_EXECINSTR must map to PF_X")
	}
	if flags&uint32(elf.PF_W) != 0 {
		t.Fatalf("a non-writable section must not get PF_W")
	}
}

func TestIsBssVsIsTbss(t *testing.T) {
	bss := NewOutputSection(".bss", uint32(elf.SHT_NOBITS), uint64(elf.SHF_ALLOC|elf.SHF_WRITE), 0)
	tbss := NewOutputSection(".tbss", uint32(elf.SHT_NOBITS), uint64(elf.SHF_ALLOC|elf.SHF_WRITE|elf.SHF_TLS), 1)

	if !isBss(bss) || isTbss(bss) {
		t.Fatalf(".bss must be bss and not tbss")
	}
	if isBss(tbss) || !isTbss(tbss) {
		t.Fatalf(".tbss must be tbss and not plain bss")
	}
}

func TestIsRelroMatchesGotAndInitArray(t *testing.T) {
	ctx := &Context{}
	ctx.Got = NewGotSection()

	if !isRelro(ctx, ctx.Got) {
		t.Fatalf(".got must be relro")
	}

	initArray := NewOutputSection(".init_array", uint32(elf.SHT_INIT_ARRAY), uint64(elf.SHF_ALLOC|elf.SHF_WRITE), 0)
	if !isRelro(ctx, initArray) {
		t.Fatalf(".init_array must be relro")
	}

	readOnly := NewOutputSection(".rodata", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC), 1)
	if isRelro(ctx, readOnly) {
		t.Fatalf("a non-writable section can never be relro")
	}
}
