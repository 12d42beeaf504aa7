package link

import (
	"debug/elf"
	"testing"

	"github.com/coreld/coreld/pkg/inputfile"
)

func TestSetStartAndSetEnd(t *testing.T) {
	chunk := NewOutputSection(".data", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC), 0)
	chunk.Shdr.Size = 64

	start := inputfile.NewSymbol("__data_start")
	end := inputfile.NewSymbol("__data_end")

	setStart(start, chunk)
	setEnd(end, chunk)

	if start.Value != 0 {
		t.Fatalf("setStart must place the symbol at offset 0, got %d", start.Value)
	}
	if end.Value != 64 {
		t.Fatalf("setEnd must place the symbol at the chunk's size, got %d", end.Value)
	}
	if start.OutputChunk != chunk || end.OutputChunk != chunk {
		t.Fatalf("both symbols must be bound to the chunk")
	}
}

func TestSetStartNilChunkIsNoop(t *testing.T) {
	sym := inputfile.NewSymbol("__maybe_missing")
	sym.Value = 42
	setStart(sym, nil)
	if sym.Value != 42 {
		t.Fatalf("a nil chunk must leave the symbol untouched")
	}
}

func TestFirstOfPrefersPrimary(t *testing.T) {
	a := NewOutputSection(".text", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC), 0)
	b := NewOutputSection(".data", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC), 1)

	if firstOf(a, b) != a {
		t.Fatalf("firstOf must prefer a non-nil primary")
	}
	if firstOf(nil, b) != b {
		t.Fatalf("firstOf must fall back when primary is nil")
	}
}

func TestFixSyntheticSymbolsSetsBssStart(t *testing.T) {
	ctx := &Context{}
	text := NewOutputSection(".text", uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC|elf.SHF_EXECINSTR), 0)
	text.Shdr.Size = 16
	bss := NewOutputSection(".bss", uint32(elf.SHT_NOBITS), uint64(elf.SHF_ALLOC|elf.SHF_WRITE), 1)
	bss.Shdr.Size = 32

	ctx.Chunks = []Chunker{text, bss}
	ctx.__Etext = inputfile.NewSymbol("_etext")
	ctx.__Edata = inputfile.NewSymbol("_edata")
	ctx.__End = inputfile.NewSymbol("_end")
	ctx.__BssStart = inputfile.NewSymbol("__bss_start")
	ctx.__Ehdr = inputfile.NewSymbol("__ehdr_start")

	FixSyntheticSymbols(ctx)

	if ctx.__Etext.OutputChunk != text || ctx.__Etext.Value != 16 {
		t.Fatalf("_etext should end at the last executable chunk's end")
	}
	if ctx.__BssStart.OutputChunk != bss || ctx.__BssStart.Value != 0 {
		t.Fatalf("__bss_start should land on the start of .bss, got chunk=%v value=%d", ctx.__BssStart.OutputChunk, ctx.__BssStart.Value)
	}
	if ctx.__End.OutputChunk != bss {
		t.Fatalf("_end should track the last allocated chunk (.bss)")
	}
}
