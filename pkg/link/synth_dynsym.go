package link

import (
	"debug/elf"

	"github.com/coreld/coreld/pkg/inputfile"
	"github.com/coreld/coreld/pkg/utils"
)

// DynstrSection is the string table .dynsym's name/soname fields index
// into. Offset 0 is always the empty string, matching SHT_STRTAB
// convention.
type DynstrSection struct {
	Chunk
	buf     []byte
	offsets map[string]uint32
}

func NewDynstrSection() *DynstrSection {
	d := &DynstrSection{
		Chunk:   NewChunk(),
		buf:     []byte{0},
		offsets: make(map[string]uint32),
	}
	d.Name = ".dynstr"
	d.Shdr.Type = uint32(elf.SHT_STRTAB)
	d.Shdr.Flags = uint64(elf.SHF_ALLOC)
	d.Shdr.AddrAlign = 1
	return d
}

func (d *DynstrSection) Add(s string) uint32 {
	if off, ok := d.offsets[s]; ok {
		return off
	}
	off := uint32(len(d.buf))
	d.offsets[s] = off
	d.buf = append(d.buf, []byte(s)...)
	d.buf = append(d.buf, 0)
	d.Shdr.Size = uint64(len(d.buf))
	return off
}

func (d *DynstrSection) CopyBuf(ctx *Context) {
	copy(ctx.Buf[d.Shdr.Offset:], d.buf)
}

// DynsymSection is .dynsym, the table of symbols participating in
// dynamic linking: every symbol a DSO needs to resolve against this
// output, plus every symbol this output exports.
type DynsymSection struct {
	Chunk
	Syms []*inputfile.Symbol
	// symIdx tracks each symbol's slot in Syms, so Add returns the
	// existing slot for a symbol already present and Idx can look it up.
	symIdx map[*inputfile.Symbol]uint32
}

func NewDynsymSection() *DynsymSection {
	d := &DynsymSection{
		Chunk:  NewChunk(),
		symIdx: make(map[*inputfile.Symbol]uint32),
	}
	d.Name = ".dynsym"
	d.Shdr.Type = uint32(elf.SHT_DYNSYM)
	d.Shdr.Flags = uint64(elf.SHF_ALLOC)
	d.Shdr.EntSize = 24
	d.Shdr.AddrAlign = 8
	// slot 0 is the mandatory null symbol
	d.Syms = append(d.Syms, nil)
	return d
}

func (d *DynsymSection) Add(sym *inputfile.Symbol) uint32 {
	if idx, ok := d.symIdx[sym]; ok {
		return idx
	}
	idx := uint32(len(d.Syms))
	d.symIdx[sym] = idx
	d.Syms = append(d.Syms, sym)
	return idx
}

func (d *DynsymSection) Idx(sym *inputfile.Symbol) (uint32, bool) {
	idx, ok := d.symIdx[sym]
	return idx, ok
}

func (d *DynsymSection) UpdateShdr(ctx *Context) {
	d.Shdr.Size = uint64(len(d.Syms)) * d.Shdr.EntSize
	d.Shdr.Link = uint32(ctx.Dynstr.Shndx)
}

func (d *DynsymSection) CopyBuf(ctx *Context) {
	base := d.Shdr.Offset
	for i, sym := range d.Syms {
		if sym == nil {
			continue
		}
		off := base + uint64(i)*d.Shdr.EntSize
		buf := ctx.Buf[off : off+d.Shdr.EntSize]

		nameOff := ctx.Dynstr.Add(sym.Name)
		bind := byte(elf.STB_GLOBAL)
		if sym.IsWeak {
			bind = byte(elf.STB_WEAK)
		}
		typ := byte(elf.STT_NOTYPE)
		if sym.File != nil {
			typ = sym.ElfSym().Type()
		}

		utils.Write[uint32](buf[0:], nameOff)
		buf[4] = bind<<4 | typ
		buf[5] = byte(sym.Visibility)
		// A symbol defined by one of this output's own input sections gets
		// a real section index once the layout engine has assigned one to
		// its owning chunk; a DSO-owned or still-undefined symbol stays
		// SHN_UNDEF, which is what ld.so's symbol resolution expects for
		// something it must satisfy from elsewhere.
		shndx := uint16(elf.SHN_UNDEF)
		if sym.OutputChunk != nil {
			shndx = uint16(sym.OutputChunk.(Chunker).GetShndx())
		} else if sym.Fragment != nil {
			shndx = uint16(sym.Fragment.(*SectionFragment).Parent.Shndx)
		} else if sym.InputSection != nil && sym.InputSection.OutputChunk != nil {
			shndx = uint16(sym.InputSection.OutputChunk.(Chunker).GetShndx())
		}
		utils.Write[uint16](buf[6:], shndx)
		utils.Write[uint64](buf[8:], GetAddr(ctx, sym))
		utils.Write[uint64](buf[16:], 0)
	}
}

// ElfHash implements the original System V ELF symbol hash function used
// by .hash, grounded on the gABI reference algorithm (mold/glibc share
// the same constants).
func ElfHash(name string) uint32 {
	var h uint32
	for _, c := range []byte(name) {
		h = (h << 4) + uint32(c)
		if g := h & 0xf0000000; g != 0 {
			h ^= g >> 24
			h &^= g
		}
	}
	return h
}

// GnuHash implements the GNU-extension hash function (djb2 variant) used
// by .gnu.hash.
func GnuHash(name string) uint32 {
	h := uint32(5381)
	for _, c := range []byte(name) {
		h = h*33 + uint32(c)
	}
	return h
}
