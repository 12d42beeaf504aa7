package link

import (
	"debug/elf"

	"github.com/coreld/coreld/pkg/inputfile"
	"github.com/coreld/coreld/pkg/target"
)

// DynbssSection backs copy relocations: a DSO-defined data symbol a
// non-PIC reference needs a real address for gets a same-size slot here.
// This pipeline emits no .rela.dyn, so no COPY relocation is written for
// the slot. Writable DSO symbols land in .dynbss; read-only ones (per
// SharedFile.IsReadonly) land in .dynbss.rel.ro, whose name suffix makes
// isRelro place it in the PT_GNU_RELRO segment.
type DynbssSection struct {
	Chunk
	Syms []*inputfile.Symbol
}

func newDynbssSection(name string) *DynbssSection {
	d := &DynbssSection{Chunk: NewChunk()}
	d.Name = name
	d.Shdr.Type = uint32(elf.SHT_NOBITS)
	d.Shdr.Flags = uint64(elf.SHF_ALLOC | elf.SHF_WRITE)
	d.Shdr.AddrAlign = 1
	return d
}

func NewDynbssSection() *DynbssSection      { return newDynbssSection(".dynbss") }
func NewDynbssRelroSection() *DynbssSection { return newDynbssSection(".dynbss.rel.ro") }

// AddSymbol reserves a copy-relocation slot for sym, sized and aligned to
// its DSO definition's symbol size and alignment.
func (d *DynbssSection) AddSymbol(ctx *Context, sym *inputfile.Symbol) {
	if GetCopyrelIdx(ctx, sym) >= 0 {
		return
	}
	EnsureAux(ctx, sym)

	esym := elfSymOf(sym)
	align := uint64(1)
	if esym.Size > 0 {
		for align < esym.Size && align < 32 {
			align <<= 1
		}
	}
	if uint64(d.Shdr.AddrAlign) < align {
		d.Shdr.AddrAlign = align
	}

	offset := alignUp(d.Shdr.Size, align)
	aux(ctx, sym).CopyrelIdx = int32(offset)
	d.Shdr.Size = offset + esym.Size
	sym.SetOutputChunk(d)
	sym.Value = offset

	d.Syms = append(d.Syms, sym)
}

// elfSymOf returns the raw ELF symbol record a copy relocation's size and
// alignment come from. A COPYREL candidate always has sym.File == nil
// (the one-definition-rule resolver never lets an object file claim a
// symbol a DSO also defines more weakly), so the record lives on whatever
// DSO actually won sym.DsoOwner, not on File.
func elfSymOf(sym *inputfile.Symbol) *target.Sym {
	if sym.DsoOwner != nil {
		return &sym.DsoOwner.ElfSyms[sym.SymIdx]
	}
	return sym.ElfSym()
}

func alignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

func GetCopyrelIdx(ctx *Context, sym *inputfile.Symbol) int32 {
	if sym.AuxIdx == -1 {
		return -1
	}
	return aux(ctx, sym).CopyrelIdx
}
