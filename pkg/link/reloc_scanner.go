package link

import (
	"debug/elf"
	"sync"

	"github.com/coreld/coreld/pkg/inputfile"
	"github.com/coreld/coreld/pkg/parallel"
	"github.com/coreld/coreld/pkg/target"
)

// ScanRelocations walks every relocation in every live input section, one
// object per goroutine, and records per referenced symbol what the
// synthetic section builder needs to allocate for it: a GOT slot, a PLT
// stub, a TLS block, or a copy-relocation slot. Flag mutations and
// synthetic-table inserts go through a single shared lock, since the same
// symbol can be (and often is) referenced by sections in more than one
// object scanned concurrently.
func ScanRelocations(ctx *Context) {
	var mu sync.Mutex
	parallel.ForEach(ctx.Objs, func(obj *inputfile.ObjectFile) {
		if !obj.IsAlive {
			return
		}
		for _, isec := range obj.Sections {
			if isec == nil || !isec.IsAlive || isec.Shdr().Flags&uint64(elf.SHF_ALLOC) == 0 {
				continue
			}
			scanSectionRelocations(ctx, &mu, obj, isec)
		}
	})
}

func scanSectionRelocations(ctx *Context, mu *sync.Mutex, obj *inputfile.ObjectFile, isec *inputfile.InputSection) {
	for _, rel := range isec.GetRels() {
		if int(rel.Sym) >= len(obj.Symbols) {
			continue
		}
		sym := obj.Symbols[rel.Sym]
		if sym == nil {
			continue
		}

		mu.Lock()
		scanOneRelocation(ctx, obj, sym, rel.Type)
		mu.Unlock()
	}
}

// scanOneRelocation applies one relocation's needs to sym. Must be called
// with ctx's relocation-scan lock held: it both reads and mutates shared
// per-symbol flags and shared synthetic-section state (ctx.Got/ctx.Plt/
// ctx.Dynbss), none of which are safe to touch from more than one
// goroutine at a time.
func scanOneRelocation(ctx *Context, obj *inputfile.ObjectFile, sym *inputfile.Symbol, relType uint32) {
	// A symbol this file doesn't itself define, referenced from a live
	// section, must be visible to the dynamic linker one way or another.
	// The first time we see one with nobody at all defining it (no
	// object, no DSO), that's a genuine unresolved reference.
	if sym.File == nil {
		if sym.Flags&inputfile.NeedsDynsym == 0 && sym.DsoOwner == nil {
			ctx.Err.Addf(obj.File.Name, sym.Name, "undefined symbol")
		}
		sym.Flags |= inputfile.NeedsDynsym
	}

	switch target.RelocNeed(relType) {
	case target.NeedGot:
		if sym.Flags&inputfile.NeedsGot == 0 {
			sym.Flags |= inputfile.NeedsGot
			ctx.Got.AddGotSymbol(ctx, sym)
		}
	case target.NeedGotTpoff:
		if sym.Flags&inputfile.NeedsGotTpoff == 0 {
			sym.Flags |= inputfile.NeedsGotTpoff
			ctx.Got.AddGotTpSymbol(ctx, sym)
		}
	case target.NeedTlsgd:
		if sym.Flags&inputfile.NeedsTlsgd == 0 {
			sym.Flags |= inputfile.NeedsTlsgd
			ctx.Got.AddTlsgdSymbol(ctx, sym)
		}
	case target.NeedTlsld:
		if sym.Flags&inputfile.NeedsTlsld == 0 {
			sym.Flags |= inputfile.NeedsTlsld
			ctx.Got.AddTlsldSlot(ctx)
		}
	case target.NeedTlsdesc:
		sym.Flags |= inputfile.NeedsTlsdesc
	case target.NeedPlt:
		if sym.File == nil && sym.Flags&inputfile.NeedsPlt == 0 {
			sym.Flags |= inputfile.NeedsPlt
			ctx.Plt.AddSymbol(ctx, sym)
			// The PLT stub jumps through the symbol's GOT slot.
			if sym.Flags&inputfile.NeedsGot == 0 {
				sym.Flags |= inputfile.NeedsGot
				ctx.Got.AddGotSymbol(ctx, sym)
			}
		}
	case target.NeedCopyrel:
		if sym.File == nil && sym.DsoOwner != nil && sym.Flags&inputfile.NeedsCopyrel == 0 {
			addCopyrelSymbol(ctx, sym)
		}
	}
}

// addCopyrelSymbol reserves sym's copy-relocation slot and propagates the
// same treatment to every other dynamic symbol in its DSO aliasing it
// (same section, same value). An alias shares the exact same runtime
// address as the primary symbol (that's what makes it an alias in the
// DSO to begin with) rather than getting a second copy of the data, so it
// inherits the primary's output chunk/value/read-only classification
// outright and only needs its own .dynsym slot.
func addCopyrelSymbol(ctx *Context, sym *inputfile.Symbol) {
	sym.Flags |= inputfile.NeedsCopyrel
	readonly := sym.DsoOwner.IsReadonly(sym)
	if readonly {
		ctx.DynbssRelro.AddSymbol(ctx, sym)
	} else {
		ctx.Dynbss.AddSymbol(ctx, sym)
	}

	for _, alias := range sym.DsoOwner.FindAliases(sym) {
		if alias == nil || alias == sym || alias.Flags&inputfile.NeedsCopyrel != 0 {
			continue
		}
		alias.Flags |= inputfile.NeedsCopyrel | inputfile.NeedsDynsym
		alias.SetOutputChunk(sym.OutputChunk)
		alias.Value = sym.Value
	}
}
