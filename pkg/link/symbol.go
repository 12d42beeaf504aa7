package link

import "github.com/coreld/coreld/pkg/inputfile"

// EnsureAux allocates sym's slot in ctx.SymbolsAux if it doesn't have one
// yet, returning the index. Called the first time a relocation scan
// decides a symbol needs a GOT/PLT/TLS/copy-relocation entry.
func EnsureAux(ctx *Context, sym *inputfile.Symbol) int32 {
	if sym.AuxIdx >= 0 {
		return sym.AuxIdx
	}
	sym.AuxIdx = int32(len(ctx.SymbolsAux))
	ctx.SymbolsAux = append(ctx.SymbolsAux, SymbolAux{
		GotIdx: -1, GotTpIdx: -1, PltIdx: -1, TlsgdIdx: -1, TlsdescIdx: -1, CopyrelIdx: -1,
	})
	return sym.AuxIdx
}

func aux(ctx *Context, sym *inputfile.Symbol) *SymbolAux {
	return &ctx.SymbolsAux[sym.AuxIdx]
}

func GetGotIdx(ctx *Context, sym *inputfile.Symbol) int32 {
	if sym.AuxIdx == -1 {
		return -1
	}
	return aux(ctx, sym).GotIdx
}

func GetGotTpIdx(ctx *Context, sym *inputfile.Symbol) int32 {
	if sym.AuxIdx == -1 {
		return -1
	}
	return aux(ctx, sym).GotTpIdx
}

func GetPltIdx(ctx *Context, sym *inputfile.Symbol) int32 {
	if sym.AuxIdx == -1 {
		return -1
	}
	return aux(ctx, sym).PltIdx
}

// GetAddr resolves sym's runtime virtual address. A symbol with no
// definition at all (an unresolved strong reference that survived to
// this point, which should have already been diagnosed) resolves to 0.
func GetAddr(ctx *Context, sym *inputfile.Symbol) uint64 {
	if sym.Fragment != nil {
		if !sym.Fragment.FragAlive() {
			return 0
		}
		return sym.Fragment.FragAddr() + sym.Value
	}

	if sym.OutputChunk != nil {
		return sym.OutputChunk.ChunkAddr() + sym.Value
	}

	if sym.InputSection == nil {
		return sym.Value
	}
	if !sym.InputSection.IsAlive {
		return 0
	}
	return sym.InputSection.GetAddr() + sym.Value
}

func GetGotAddr(ctx *Context, sym *inputfile.Symbol) uint64 {
	return ctx.Got.Shdr.Addr + uint64(GetGotIdx(ctx, sym))*8
}

func GetGotTpAddr(ctx *Context, sym *inputfile.Symbol) uint64 {
	return ctx.Got.Shdr.Addr + uint64(GetGotTpIdx(ctx, sym))*8
}

func GetPltAddr(ctx *Context, sym *inputfile.Symbol) uint64 {
	return ctx.Plt.Shdr.Addr + uint64(GetPltIdx(ctx, sym))*pltEntrySize
}
