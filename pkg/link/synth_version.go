package link

import (
	"debug/elf"
	"path/filepath"

	"github.com/coreld/coreld/pkg/inputfile"
	"github.com/coreld/coreld/pkg/utils"
)

// VerdefSection emits .gnu.version_d: the gABI-defined linked list of
// Verdef/Verdaux records declaring the version names this output itself
// exports, grounded on the fill_verdef byte-chain encoding original
// linkers build from a version script's node list.
type VerdefSection struct {
	Chunk
	Versions []string // Versions[i] is written as version index i+1; the first entry carries VER_FLG_BASE
}

func NewVerdefSection() *VerdefSection {
	v := &VerdefSection{Chunk: NewChunk()}
	v.Name = ".gnu.version_d"
	v.Shdr.Type = uint32(elf.SHT_GNU_VERDEF)
	v.Shdr.Flags = uint64(elf.SHF_ALLOC)
	v.Shdr.AddrAlign = 8
	v.Shdr.EntSize = 4
	return v
}

// AddVersion registers a version name (e.g. "LIBFOO_1.2") and returns the
// version index later symbols reference via sym.VerIdx.
func (v *VerdefSection) AddVersion(name string) uint16 {
	v.Versions = append(v.Versions, name)
	return uint16(len(v.Versions))
}

func (v *VerdefSection) UpdateShdr(ctx *Context) {
	if len(v.Versions) == 0 {
		v.Shdr.Size = 0
		return
	}
	// Each record is Verdef(20) + one Verdaux(8) for the defining name.
	v.Shdr.Size = uint64(len(v.Versions)) * 28
	v.Shdr.Link = uint32(ctx.Dynstr.Shndx)
	v.Shdr.Info = uint32(len(v.Versions))
}

func (v *VerdefSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[v.Shdr.Offset:]
	off := 0
	for i, name := range v.Versions {
		ndx := uint16(i) + 1
		flags := uint16(0)
		if ndx == 1 {
			flags = 1 // VER_FLG_BASE
		}
		next := uint32(28)
		if i == len(v.Versions)-1 {
			next = 0
		}

		utils.Write[uint16](buf[off+0:], 1) // vd_version
		utils.Write[uint16](buf[off+2:], flags)
		utils.Write[uint16](buf[off+4:], ndx)
		utils.Write[uint16](buf[off+6:], 1) // vd_cnt: one Verdaux
		utils.Write[uint32](buf[off+8:], ElfHash(name))
		utils.Write[uint32](buf[off+12:], 20) // vd_aux: offset to the Verdaux
		utils.Write[uint32](buf[off+16:], next)

		auxOff := off + 20
		utils.Write[uint32](buf[auxOff+0:], ctx.Dynstr.Add(name))
		utils.Write[uint32](buf[auxOff+4:], 0) // vda_next: no extra aux entries

		off += 28
	}
}

// VerneedEntry is one externally-defined version this output references
// symbols from, grounded on a DSO's own .gnu.version_d table.
type VerneedEntry struct {
	File     string
	Versions []string
}

// VerneedSection emits .gnu.version_r: the linked list of Verneed/Vernaux
// records recording, per needed shared library, which of its versions
// this output's undefined symbols resolve against.
type VerneedSection struct {
	Chunk
	Needed []*VerneedEntry
	verIdx map[string]uint16 // "soname/version" -> assigned index
	next   uint16
}

func NewVerneedSection() *VerneedSection {
	v := &VerneedSection{Chunk: NewChunk(), verIdx: make(map[string]uint16), next: firstVerneedIdx}
	v.Name = ".gnu.version_r"
	v.Shdr.Type = uint32(elf.SHT_GNU_VERNEED)
	v.Shdr.Flags = uint64(elf.SHF_ALLOC)
	return v
}

const firstVerneedIdx = 2

func (v *VerneedSection) entryFor(soname string) *VerneedEntry {
	for _, e := range v.Needed {
		if e.File == soname {
			return e
		}
	}
	e := &VerneedEntry{File: soname}
	v.Needed = append(v.Needed, e)
	return e
}

// AddVersion records that this output needs `version` from `soname`,
// returning the gnu.version index to stamp on every symbol using it.
func (v *VerneedSection) AddVersion(soname, version string) uint16 {
	key := soname + "/" + version
	if idx, ok := v.verIdx[key]; ok {
		return idx
	}
	e := v.entryFor(soname)
	e.Versions = append(e.Versions, version)
	idx := v.next
	v.next++
	v.verIdx[key] = idx
	return idx
}

func (v *VerneedSection) UpdateShdr(ctx *Context) {
	size := uint64(0)
	for _, e := range v.Needed {
		size += 16 + uint64(len(e.Versions))*16
	}
	v.Shdr.Size = size
	v.Shdr.Link = uint32(ctx.Dynstr.Shndx)
	v.Shdr.Info = uint32(len(v.Needed))
}

func (v *VerneedSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[v.Shdr.Offset:]
	off := 0
	for fi, e := range v.Needed {
		nextNeed := uint32(16 + len(e.Versions)*16)
		if fi == len(v.Needed)-1 {
			nextNeed = 0
		}
		utils.Write[uint16](buf[off+0:], 1) // vn_version
		utils.Write[uint16](buf[off+2:], uint16(len(e.Versions)))
		utils.Write[uint32](buf[off+4:], ctx.Dynstr.Add(e.File))
		utils.Write[uint32](buf[off+8:], 16) // vn_aux
		utils.Write[uint32](buf[off+12:], nextNeed)

		auxOff := off + 16
		for vi, version := range e.Versions {
			idx := v.verIdx[e.File+"/"+version]
			nextAux := uint32(16)
			if vi == len(e.Versions)-1 {
				nextAux = 0
			}
			utils.Write[uint32](buf[auxOff+0:], ElfHash(version))
			utils.Write[uint16](buf[auxOff+4:], idx)
			utils.Write[uint16](buf[auxOff+6:], 0) // vna_flags
			utils.Write[uint32](buf[auxOff+8:], ctx.Dynstr.Add(version))
			utils.Write[uint32](buf[auxOff+12:], nextAux)
			auxOff += 16
		}
		off += 16 + len(e.Versions)*16
	}
}

// VersionResolver assigns a VerIdx to every dynamic symbol by matching a
// version script's glob patterns (config.VersionPatterns) against symbol
// names, falling back to the output's default version for anything
// unmatched, and records each DSO-sourced symbol's embedded "name@ver"
// suffix (if any) against ctx.Verneed.
type VersionResolver struct {
	ctx *Context
}

func NewVersionResolver(ctx *Context) *VersionResolver { return &VersionResolver{ctx: ctx} }

func (r *VersionResolver) Run() {
	for i := range r.ctx.Arg.VersionPatterns {
		idx := r.ctx.Verdef.AddVersion(versionNameOf(r.ctx.Arg.VersionPatterns[i].Pattern))
		r.ctx.Arg.VersionPatterns[i].VerNdx = idx
	}

	r.ctx.Symtab.Range(func(sym *inputfile.Symbol) {
		name, ver, ok := splitVersionedName(sym.Name)
		if ok {
			sym.Name = name
		}

		switch {
		case sym.File != nil:
			// Locally defined: an embedded "name@ver" suffix has no
			// meaning here (that's how an imported reference pins a
			// DSO's version, not how an export declares its own), so only
			// a version script's pattern match assigns a Verdef index.
			for i := range r.ctx.Arg.VersionPatterns {
				if matchVersionPattern(r.ctx.Arg.VersionPatterns[i].Pattern, sym.Name) {
					sym.VerIdx = r.ctx.Arg.VersionPatterns[i].VerNdx
				}
			}
		case ok && sym.DsoOwner != nil:
			// A DSO-owned import with an explicit "name@ver"/"name@@ver"
			// suffix binds to that exact version of the exporting DSO.
			sym.VerIdx = r.ctx.Verneed.AddVersion(dsoSonameOf(sym), ver)
		}
	})
}

// matchVersionPattern reports whether a version-script pattern (an exact
// name, or a glob using '*'/'?' the way a shell path pattern does)
// matches a symbol name.
func matchVersionPattern(pattern, name string) bool {
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}

func versionNameOf(pattern string) string { return pattern }

func dsoSonameOf(sym *inputfile.Symbol) string {
	if sym.DsoOwner == nil {
		return ""
	}
	return sym.DsoOwner.Soname
}

// splitVersionedName splits "name@VERSION" or "name@@VERSION" embedded
// symbol names the way a hand-written assembly file or a version-scripted
// archive member encodes them.
func splitVersionedName(name string) (base, version string, ok bool) {
	for i := 0; i < len(name); i++ {
		if name[i] == '@' {
			j := i + 1
			for j < len(name) && name[j] == '@' {
				j++
			}
			return name[:i], name[j:], true
		}
	}
	return name, "", false
}
