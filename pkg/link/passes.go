package link

import (
	"github.com/coreld/coreld/pkg/file"
	"github.com/coreld/coreld/pkg/inputfile"
	"github.com/coreld/coreld/pkg/parallel"
	"github.com/coreld/coreld/pkg/utils"
)

// CreateInternalFile installs a synthetic ObjectFile with no real ELF
// payload, used purely as the "defining file" for linker-generated
// symbols like __bss_start.
func CreateInternalFile(ctx *Context) {
	obj := &inputfile.ObjectFile{}
	obj.File = &file.File{Name: "<internal>"}
	obj.IsAlive = true
	obj.Priority = 0
	ctx.InternalObj = obj
	ctx.Objs = append(ctx.Objs, obj)
}

// ResolveSymbols runs the one-definition-rule resolution to a fixed
// point: an initial pass lets every file claim the globals it defines,
// MarkLiveObjects then propagates liveness from every already-alive
// file outward through their references, objects
// that never became live get their claims cleared, and a second
// resolution pass lets the survivors claim cleanly (an object pulled in
// only via a weak/common reference shouldn't out-rank a strong
// definition in a file nobody needed).
func ResolveSymbols(ctx *Context) {
	for _, obj := range ctx.Objs {
		obj.ResolveSymbols(ctx)
	}
	for _, dso := range ctx.Dsos {
		dso.ResolveSymbols()
	}

	MarkLiveObjects(ctx)

	for _, obj := range ctx.Objs {
		if !obj.IsAlive {
			obj.ClearSymbols()
		}
	}

	for _, obj := range ctx.Objs {
		if obj.IsAlive {
			obj.ResolveSymbols(ctx)
		}
	}

	ctx.Objs = utils.RemoveIf(ctx.Objs, func(o *inputfile.ObjectFile) bool { return !o.IsAlive })
}

// MarkLiveObjects drains a worklist seeded from every already-alive
// object (the internal file, plus any object the driver decided is a
// root), feeding newly-reachable objects back into the same worklist.
func MarkLiveObjects(ctx *Context) {
	var roots []*inputfile.ObjectFile
	for _, obj := range ctx.Objs {
		if obj.IsAlive {
			roots = append(roots, obj)
		}
	}
	utils.Assert(len(roots) > 0)

	wl := parallel.NewWorklist(roots)
	wl.Drain(func(obj *inputfile.ObjectFile, feed func(*inputfile.ObjectFile)) {
		obj.MarkLiveObjects(feed)
	})
}

func RegisterSectionPieces(ctx *Context) {
	for _, obj := range ctx.Objs {
		obj.RegisterSectionPieces()
	}
}

// ConvertCommonSymbols gives every winning COMMON symbol a real
// zero-initialized backing section, so binning sees an ordinary allocated
// InputSection rather than a dangling SHN_COMMON reference.
func ConvertCommonSymbols(ctx *Context) {
	for _, obj := range ctx.Objs {
		obj.ConvertCommonSymbols()
	}
}

func ComputeImportExport(ctx *Context) {
	for _, obj := range ctx.Objs {
		obj.ComputeImportExport()
	}
}

func ClaimUnresolvedSymbols(ctx *Context) {
	for _, obj := range ctx.Objs {
		obj.ClaimUnresolvedSymbols(ctx.DefaultVersionIdx)
	}
}

// ScanRels runs the relocation scan and binds every dynamic-import-
// needing symbol (and everything this output exports) into .dynsym, in
// two deterministic sweeps: this output's own objects (in priority
// order, already ctx.Objs's order), then the DSOs a scanned relocation
// found an import or copy-relocation alias against (in priority order,
// ctx.Dsos's order) so a symbol this output merely imports still gets a
// stable slot.
func ScanRels(ctx *Context) {
	ScanRelocations(ctx)

	for _, obj := range ctx.Objs {
		for _, sym := range obj.GetGlobalSyms() {
			if sym.File != obj {
				continue
			}
			if sym.Flags&inputfile.NeedsDynsym != 0 || sym.IsExported {
				ctx.Dynsym.Add(sym)
			}
		}
	}

	for _, dso := range ctx.Dsos {
		for _, sym := range dso.Symbols {
			if sym == nil || sym.DsoOwner != dso {
				continue
			}
			if sym.Flags&inputfile.NeedsDynsym != 0 {
				ctx.Dynsym.Add(sym)
			}
		}
	}
}

// CreateSyntheticSections allocates every chunk the pipeline might need
// and registers them on ctx.Chunks; the ones that end up empty (no
// symbol ever claimed a slot) are dropped later in Run, which removes
// every non-output-section chunk still sized zero after UpdateShdr,
// mirroring the teacher's push-everything-then-prune approach.
func CreateSyntheticSections(ctx *Context) {
	push := func(c Chunker) { ctx.Chunks = append(ctx.Chunks, c) }

	ctx.Ehdr = NewOutputEhdr()
	ctx.Phdr = NewOutputPhdr()
	ctx.Shdr = NewOutputShdr()
	push(ctx.Ehdr)
	push(ctx.Phdr)
	push(ctx.Shdr)

	ctx.Got = NewGotSection()
	ctx.Plt = NewPltSection()
	ctx.Dynstr = NewDynstrSection()
	ctx.Dynsym = NewDynsymSection()
	ctx.Hash = NewHashSection()
	ctx.GnuHash = NewGnuHashSection()
	ctx.Verdef = NewVerdefSection()
	ctx.Verneed = NewVerneedSection()
	ctx.Versym = NewVersymSection()
	ctx.Dynbss = NewDynbssSection()
	ctx.DynbssRelro = NewDynbssRelroSection()

	push(ctx.Got)
	push(ctx.Plt)
	push(ctx.Dynbss)
	push(ctx.DynbssRelro)
	push(ctx.Dynsym)
	push(ctx.Dynstr)
	if ctx.Arg.HashStyleSysv {
		push(ctx.Hash)
	}
	if ctx.Arg.HashStyleGnu {
		push(ctx.GnuHash)
	}
	push(ctx.Verdef)
	push(ctx.Verneed)
	push(ctx.Versym)
}

// Run drives the full middle-end pipeline in order, mirroring the
// teacher's main driver loop: load inputs, eliminate dead COMDATs,
// resolve symbols, merge sections, bin sections, scan relocations, lay
// out, fix synthetic symbols, and finally render every chunk's bytes
// into the output buffer.
func Run(ctx *Context, libraryPaths, args []string) []byte {
	CreateInternalFile(ctx)
	ReadInputFiles(ctx, libraryPaths, args)

	ApplyExcludeLibs(ctx)
	ResolveComdatGroups(ctx.Objs)
	ResolveSymbols(ctx)
	ConvertCommonSymbols(ctx)
	CheckDuplicateSymbols(ctx)
	ctx.Err.Checkpoint()

	RegisterSectionPieces(ctx)
	ComputeImportExport(ctx)
	ComputeMergedSectionSizes(ctx)

	CreateSyntheticSections(ctx)
	BinSections(ctx)
	ctx.Chunks = append(ctx.Chunks, CollectOutputSections(ctx)...)

	AddSyntheticSymbols(ctx)
	ClaimUnresolvedSymbols(ctx)
	NewVersionResolver(ctx).Run()
	ScanRels(ctx)
	ctx.Err.Checkpoint()

	ComputeSectionSizes(ctx)
	SortOutputSections(ctx)

	for _, c := range ctx.Chunks {
		c.UpdateShdr(ctx)
	}

	ctx.Chunks = utils.RemoveIf(ctx.Chunks, func(c Chunker) bool {
		return c.Kind() != ChunkKindOutputSection && c.GetShdr().Size == 0
	})

	shndx := int64(1)
	for _, c := range ctx.Chunks {
		if c.Kind() != ChunkKindHeader {
			c.SetShndx(shndx)
			shndx++
		}
	}
	for _, c := range ctx.Chunks {
		c.UpdateShdr(ctx)
	}

	fileoff := SetOsecOffsets(ctx)
	FixSyntheticSymbols(ctx)

	ctx.Buf = make([]byte, fileoff)
	parallel.ForEach(ctx.Chunks, func(c Chunker) {
		c.CopyBuf(ctx)
	})

	return ctx.Buf
}
