package link

import (
	"debug/elf"
	"sync"
	"testing"

	"github.com/coreld/coreld/pkg/config"
	"github.com/coreld/coreld/pkg/file"
	"github.com/coreld/coreld/pkg/inputfile"
	"github.com/coreld/coreld/pkg/target"
)

func newScanCtx() *Context {
	ctx := NewContext(config.Default())
	ctx.Dynbss = NewDynbssSection()
	ctx.DynbssRelro = NewDynbssRelroSection()
	ctx.Got = NewGotSection()
	ctx.Plt = NewPltSection()
	return ctx
}

func newRelocatingObj(sym *inputfile.Symbol, relType elf.R_X86_64) (*inputfile.ObjectFile, *inputfile.InputSection) {
	obj := &inputfile.ObjectFile{}
	obj.File = &file.File{Name: "test.o"}
	obj.IsAlive = true
	obj.Symbols = []*inputfile.Symbol{sym}
	obj.ElfSections = []target.Shdr{{Flags: uint64(elf.SHF_ALLOC)}}

	isec := &inputfile.InputSection{
		File:    obj,
		IsAlive: true,
		Shndx:   0,
		Rels:    []target.Rela{{Sym: 0, Type: uint32(relType)}},
	}
	obj.Sections = []*inputfile.InputSection{isec}
	return obj, isec
}

// newDsoOwnedSymbol builds a symbol a DSO defines (File stays nil, same
// as an unresolved symbol, per SharedFile.ResolveSymbols) whose defining
// section is writable or read-only depending on writable.
func newDsoOwnedSymbol(name string, size uint64, writable bool) *inputfile.Symbol {
	sym := inputfile.NewSymbol(name)
	dso := &inputfile.SharedFile{}
	dso.ElfSections = []target.Shdr{{}, {}} // index 0 unused, index 1 is sym's section
	if writable {
		dso.ElfSections[1].Flags = uint64(elf.SHF_WRITE)
	}
	dso.ElfSyms = []target.Sym{{Size: size, Shndx: 1}}
	sym.DsoOwner = dso
	sym.SymIdx = 0
	return sym
}

func TestScanSectionRelocationsCopyrelGoesToDynbssForWritableDso(t *testing.T) {
	ctx := newScanCtx()
	sym := newDsoOwnedSymbol("writable_dso_sym", 8, true)
	obj, isec := newRelocatingObj(sym, elf.R_X86_64_64)

	var mu sync.Mutex
	scanSectionRelocations(ctx, &mu, obj, isec)

	if sym.Flags&inputfile.NeedsCopyrel == 0 {
		t.Fatalf("expected NeedsCopyrel to be set")
	}
	if len(ctx.Dynbss.Syms) != 1 {
		t.Fatalf("writable DSO symbol should land in .dynbss, got %d entries", len(ctx.Dynbss.Syms))
	}
	if len(ctx.DynbssRelro.Syms) != 0 {
		t.Fatalf(".dynbss.rel.ro should stay empty for a writable symbol")
	}
}

func TestScanSectionRelocationsCopyrelGoesToDynbssRelroForReadonlyDso(t *testing.T) {
	ctx := newScanCtx()
	sym := newDsoOwnedSymbol("readonly_dso_sym", 8, false)
	obj, isec := newRelocatingObj(sym, elf.R_X86_64_64)

	var mu sync.Mutex
	scanSectionRelocations(ctx, &mu, obj, isec)

	if len(ctx.DynbssRelro.Syms) != 1 {
		t.Fatalf("read-only DSO symbol should land in .dynbss.rel.ro, got %d entries", len(ctx.DynbssRelro.Syms))
	}
	if len(ctx.Dynbss.Syms) != 0 {
		t.Fatalf(".dynbss should stay empty for a read-only symbol")
	}
}

func TestScanSectionRelocationsUndefinedSymbolNeedsDynsymButNoCopyrel(t *testing.T) {
	ctx := newScanCtx()
	sym := inputfile.NewSymbol("undefined_sym")
	obj, isec := newRelocatingObj(sym, elf.R_X86_64_64)

	var mu sync.Mutex
	scanSectionRelocations(ctx, &mu, obj, isec)

	if sym.Flags&inputfile.NeedsDynsym == 0 {
		t.Fatalf("a symbol no object file defines must be flagged NeedsDynsym")
	}
	if len(ctx.Dynbss.Syms) != 0 || len(ctx.DynbssRelro.Syms) != 0 {
		t.Fatalf("a symbol with no DSO owner must not get a copy-relocation slot")
	}
}

func TestScanSectionRelocationsCopyrelPropagatesToAliases(t *testing.T) {
	ctx := newScanCtx()
	dso := &inputfile.SharedFile{}
	dso.ElfSections = []target.Shdr{{}, {Flags: uint64(elf.SHF_WRITE)}}
	dso.ElfSyms = []target.Sym{
		{Size: 8, Shndx: 1, Val: 0x10},
		{Size: 8, Shndx: 1, Val: 0x10}, // alias: same section, same value
	}

	primary := inputfile.NewSymbol("primary")
	primary.DsoOwner = dso
	primary.SymIdx = 0
	alias := inputfile.NewSymbol("alias")
	alias.DsoOwner = dso
	alias.SymIdx = 1
	dso.Symbols = []*inputfile.Symbol{primary, alias}

	obj, isec := newRelocatingObj(primary, elf.R_X86_64_64)

	var mu sync.Mutex
	scanSectionRelocations(ctx, &mu, obj, isec)

	if alias.Flags&inputfile.NeedsCopyrel == 0 {
		t.Fatalf("expected alias to inherit NeedsCopyrel")
	}
	if alias.Flags&inputfile.NeedsDynsym == 0 {
		t.Fatalf("expected alias to be flagged NeedsDynsym for its own .dynsym slot")
	}
	if alias.OutputChunk != primary.OutputChunk || alias.Value != primary.Value {
		t.Fatalf("expected alias to share the primary's output chunk and value")
	}
	if len(ctx.Dynbss.Syms) != 1 {
		t.Fatalf("expected exactly one .dynbss slot shared by primary and alias, got %d", len(ctx.Dynbss.Syms))
	}
}

func TestScanSectionRelocationsGotAllocatesOneSlotPerSymbol(t *testing.T) {
	ctx := newScanCtx()
	sym := inputfile.NewSymbol("got_sym")
	obj, isec := newRelocatingObj(sym, elf.R_X86_64_GOTPCREL)

	var mu sync.Mutex
	scanSectionRelocations(ctx, &mu, obj, isec)
	scanSectionRelocations(ctx, &mu, obj, isec) // re-scanning must not double-allocate

	if len(ctx.Got.GotSyms) != 1 {
		t.Fatalf("expected exactly one GOT slot, got %d", len(ctx.Got.GotSyms))
	}
}
