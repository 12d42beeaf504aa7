package link

import (
	"debug/elf"

	"github.com/coreld/coreld/pkg/inputfile"
)

// addSyntheticSymbol interns name and wires it to the internal object
// file so a normal symbol-resolution pass (and later FixSyntheticSymbols)
// can treat it like any other definition, matching the teacher's
// internal-object approach to linker-defined symbols rather than special-
// casing them throughout the pipeline.
func addSyntheticSymbol(ctx *Context, name string) *inputfile.Symbol {
	sym := ctx.InternSymbol(name)
	sym.File = ctx.InternalObj
	sym.Visibility = uint8(elf.STV_HIDDEN)
	sym.IsExported = false
	return sym
}

// AddSyntheticSymbols interns the handful of section-boundary symbols a
// conventional Linux/ELF toolchain guarantees exist (__init_array_start,
// _end, __bss_start, ...), deferring their actual values to
// FixSyntheticSymbols once layout has assigned every chunk its address.
func AddSyntheticSymbols(ctx *Context) {
	ctx.__InitArrayStart = addSyntheticSymbol(ctx, "__init_array_start")
	ctx.__InitArrayEnd = addSyntheticSymbol(ctx, "__init_array_end")
	ctx.__FiniArrayStart = addSyntheticSymbol(ctx, "__fini_array_start")
	ctx.__FiniArrayEnd = addSyntheticSymbol(ctx, "__fini_array_end")
	ctx.__PreinitArrayStart = addSyntheticSymbol(ctx, "__preinit_array_start")
	ctx.__PreinitArrayEnd = addSyntheticSymbol(ctx, "__preinit_array_end")
	ctx.__BssStart = addSyntheticSymbol(ctx, "__bss_start")
	ctx.__Ehdr = addSyntheticSymbol(ctx, "__ehdr_start")
	ctx.__Etext = addSyntheticSymbol(ctx, "_etext")
	ctx.__Edata = addSyntheticSymbol(ctx, "_edata")
	ctx.__End = addSyntheticSymbol(ctx, "_end")
}

func setStart(sym *inputfile.Symbol, chunk Chunker) {
	if sym == nil || chunk == nil {
		return
	}
	sym.SetOutputChunk(chunk)
	sym.Value = 0
}

func setEnd(sym *inputfile.Symbol, chunk Chunker) {
	if sym == nil || chunk == nil {
		return
	}
	sym.SetOutputChunk(chunk)
	sym.Value = chunk.GetShdr().Size
}

// FixSyntheticSymbols assigns every linker-defined symbol's final value
// now that every chunk has a real address: init/fini/preinit array
// bounds track whichever output section ended up with that section type,
// and the section-boundary symbols track the first chunk, the last
// allocated and last executable chunks, and the first .bss chunk.
func FixSyntheticSymbols(ctx *Context) {
	var body []Chunker
	for _, chunk := range ctx.Chunks {
		if chunk.Kind() != ChunkKindHeader {
			body = append(body, chunk)
		}
	}

	for _, chunk := range body {
		switch chunk.GetShdr().Type {
		case uint32(elf.SHT_INIT_ARRAY):
			setStart(ctx.__InitArrayStart, chunk)
			setEnd(ctx.__InitArrayEnd, chunk)
		case uint32(elf.SHT_PREINIT_ARRAY):
			setStart(ctx.__PreinitArrayStart, chunk)
			setEnd(ctx.__PreinitArrayEnd, chunk)
		case uint32(elf.SHT_FINI_ARRAY):
			setStart(ctx.__FiniArrayStart, chunk)
			setEnd(ctx.__FiniArrayEnd, chunk)
		}
	}

	if len(ctx.Chunks) > 0 {
		setStart(ctx.__Ehdr, ctx.Chunks[0])
	}

	var lastAlloc, lastExec, firstNonAlloc Chunker
	for _, chunk := range ctx.Chunks {
		if chunk.GetShdr().Flags&uint64(elf.SHF_ALLOC) == 0 {
			if firstNonAlloc == nil {
				firstNonAlloc = chunk
			}
			continue
		}
		lastAlloc = chunk
		if chunk.GetShdr().Flags&uint64(elf.SHF_EXECINSTR) != 0 {
			lastExec = chunk
		}
	}

	setEnd(ctx.__Etext, firstOf(lastExec, lastAlloc))
	setEnd(ctx.__Edata, lastAlloc)
	setEnd(ctx.__End, lastAlloc)
	setStart(ctx.__BssStart, firstBss(ctx))
}

func firstOf(primary, fallback Chunker) Chunker {
	if primary != nil {
		return primary
	}
	return fallback
}

func firstBss(ctx *Context) Chunker {
	for _, chunk := range ctx.Chunks {
		if isBss(chunk) {
			return chunk
		}
	}
	return nil
}
