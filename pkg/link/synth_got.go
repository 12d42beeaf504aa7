package link

import (
	"debug/elf"

	"github.com/coreld/coreld/pkg/inputfile"
	"github.com/coreld/coreld/pkg/utils"
)

// GotEntry is one eight-byte slot of the Global Offset Table, plus the
// dynamic relocation kind (if any) the image needs to populate it at
// load time rather than at link time.
type GotEntry struct {
	Idx  int64
	Val  uint64
	Rel  elf.R_X86_64
}

func (e *GotEntry) IsRel() bool { return e.Rel != elf.R_X86_64_NONE }

type GotSection struct {
	Chunk
	GotSyms   []*inputfile.Symbol
	GotTpSyms []*inputfile.Symbol
	TlsgdSyms []*inputfile.Symbol
	TlsldSyms []*inputfile.Symbol
	tlsldIdx  int64
}

func NewGotSection() *GotSection {
	g := &GotSection{Chunk: NewChunk()}
	g.Name = ".got"
	g.Shdr.Type = uint32(elf.SHT_PROGBITS)
	g.Shdr.Flags = uint64(elf.SHF_ALLOC | elf.SHF_WRITE)
	g.Shdr.AddrAlign = 8
	return g
}

func (g *GotSection) AddGotSymbol(ctx *Context, sym *inputfile.Symbol) {
	EnsureAux(ctx, sym)
	aux(ctx, sym).GotIdx = int32(g.Shdr.Size / 8)
	g.Shdr.Size += 8
	g.GotSyms = append(g.GotSyms, sym)
}

func (g *GotSection) AddGotTpSymbol(ctx *Context, sym *inputfile.Symbol) {
	EnsureAux(ctx, sym)
	aux(ctx, sym).GotTpIdx = int32(g.Shdr.Size / 8)
	g.Shdr.Size += 8
	g.GotTpSyms = append(g.GotTpSyms, sym)
}

// AddTlsgdSymbol reserves the two-slot {module id, offset} pair a
// general-dynamic TLS access needs.
func (g *GotSection) AddTlsgdSymbol(ctx *Context, sym *inputfile.Symbol) {
	EnsureAux(ctx, sym)
	aux(ctx, sym).TlsgdIdx = int32(g.Shdr.Size / 8)
	g.Shdr.Size += 16
	g.TlsgdSyms = append(g.TlsgdSyms, sym)
}

// AddTlsldSlot reserves the module-id slot local-dynamic TLS accesses
// share; there is at most one in the whole output.
func (g *GotSection) AddTlsldSlot(ctx *Context) int64 {
	if len(g.TlsldSyms) > 0 {
		return g.tlsldIdx
	}
	g.tlsldIdx = int64(g.Shdr.Size / 8)
	g.Shdr.Size += 16
	g.TlsldSyms = append(g.TlsldSyms, nil)
	return g.tlsldIdx
}

func (g *GotSection) GetEntries(ctx *Context) []GotEntry {
	var entries []GotEntry
	for _, sym := range g.GotSyms {
		idx := int64(GetGotIdx(ctx, sym))
		if sym.File == nil || (sym.File.IsAlive == false) {
			entries = append(entries, GotEntry{idx, 0, elf.R_X86_64_GLOB_DAT})
			continue
		}
		entries = append(entries, GotEntry{idx, GetAddr(ctx, sym), elf.R_X86_64_NONE})
	}

	for _, sym := range g.GotTpSyms {
		idx := int64(GetGotTpIdx(ctx, sym))
		entries = append(entries, GotEntry{idx, GetAddr(ctx, sym) - ctx.TpAddr, elf.R_X86_64_NONE})
	}

	return entries
}

func (g *GotSection) UpdateShdr(ctx *Context) {
	if g.Shdr.Size == 0 {
		g.Shdr.Size = 8
	}
}

func (g *GotSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[g.Shdr.Offset : g.Shdr.Offset+g.Shdr.Size]
	for i := range buf {
		buf[i] = 0
	}

	for _, ent := range g.GetEntries(ctx) {
		if !ent.IsRel() {
			utils.Write[uint64](buf[ent.Idx*8:], ent.Val)
		}
		// Dynamic (R_X86_64_GLOB_DAT/DTPMOD64/...) entries are left zero
		// here; populating them is the dynamic linker's job at load time.
		// This pipeline emits no .rela.dyn records for them.
	}
}
