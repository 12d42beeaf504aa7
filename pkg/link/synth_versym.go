package link

import (
	"debug/elf"

	"github.com/coreld/coreld/pkg/target"
	"github.com/coreld/coreld/pkg/utils"
)

// VersymSection emits .gnu.version: one uint16 slot per .dynsym entry,
// naming the Verdef/Verneed index the dynamic linker should bind that
// symbol's version against. Slot 0 always mirrors .dynsym's mandatory
// null symbol and reads VER_NDX_LOCAL; every other slot defaults to
// VER_NDX_GLOBAL unless VersionResolver assigned the symbol a more
// specific index.
type VersymSection struct {
	Chunk
}

func NewVersymSection() *VersymSection {
	v := &VersymSection{Chunk: NewChunk()}
	v.Name = ".gnu.version"
	v.Shdr.Type = uint32(elf.SHT_GNU_VERSYM)
	v.Shdr.Flags = uint64(elf.SHF_ALLOC)
	v.Shdr.EntSize = 2
	v.Shdr.AddrAlign = 2
	return v
}

func (v *VersymSection) UpdateShdr(ctx *Context) {
	v.Shdr.Size = uint64(len(ctx.Dynsym.Syms)) * 2
	v.Shdr.Link = uint32(ctx.Dynsym.Shndx)
}

func (v *VersymSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[v.Shdr.Offset:]
	for i, sym := range ctx.Dynsym.Syms {
		idx := target.VER_NDX_GLOBAL
		switch {
		case i == 0:
			idx = target.VER_NDX_LOCAL
		case sym != nil && sym.VerIdx != 0:
			idx = sym.VerIdx
		}
		utils.Write[uint16](buf[i*2:], idx)
	}
}
