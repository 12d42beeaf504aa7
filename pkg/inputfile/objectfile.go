package inputfile

import (
	"bytes"
	"debug/elf"
	"math"
	"sort"
	"strings"

	"github.com/coreld/coreld/pkg/file"
	"github.com/coreld/coreld/pkg/target"
	"github.com/coreld/coreld/pkg/utils"
)

// Resolver is the narrow slice of pkg/link.Context that ObjectFile
// parsing needs: the global symbol intern table, the merged-section
// registry, and the version a freshly-resolved symbol should carry when
// no version script has claimed it yet. Kept as an interface here so
// pkg/inputfile never has to import pkg/link.
type Resolver interface {
	InternSymbol(name string) *Symbol
	MergedSectionFor(name string, typ uint32, flags uint64) FragmentInterner
	DefaultVersion() uint16
}

type ObjectFile struct {
	InputFile
	Sections          []*InputSection
	MergeableSections []*MergeableSection

	Symbols   []*Symbol
	LocalSyms []Symbol
	FragSyms  []Symbol

	SymtabSec      *target.Shdr
	SymtabShndxSec []uint32

	// ComdatGroups maps a COMDAT signature (the defining symbol's name)
	// to the section indices it groups together. Populated while parsing
	// SHT_GROUP sections; resolved across every object by pkg/link's
	// comdat deduplication pass.
	ComdatGroups map[string][]int64

	// ArchiveName is the basename of the archive this object was
	// extracted from, or "" for an object named directly on the command
	// line. Drives both the §4.3 file-priority grouping and -exclude-libs
	// matching.
	ArchiveName string

	// ExcludeLibs is set once ApplyExcludeLibs finds this object's
	// ArchiveName named by -exclude-libs (or -exclude-libs=ALL), and
	// suppresses this object's symbols from being exported.
	ExcludeLibs bool
}

func NewObjectFile(f *file.File, inLib bool) *ObjectFile {
	o := &ObjectFile{InputFile: *NewInputFile(f)}
	o.IsAlive = !inLib
	return o
}

// Parse fills in an ObjectFile's sections and symbol table. It must run
// before the file participates in symbol resolution.
func (o *ObjectFile) Parse(r Resolver) {
	o.SymtabSec = o.FindSection(uint32(elf.SHT_SYMTAB))
	if o.SymtabSec != nil {
		o.FirstGlobal = int64(o.SymtabSec.Info)
		o.InputFile.fillUpElfSyms(o.SymtabSec)
		o.InputFile.SymbolStrtab = o.InputFile.GetBytesFromIdx(int64(o.SymtabSec.Link))
	}

	o.initializeSections()
	o.initializeSymbols(r)
	o.sortRelocations()
	o.initializeMergeableSections(r)
	o.skipEhframeSections()
}

func (o *ObjectFile) initializeSections() {
	o.Sections = make([]*InputSection, len(o.InputFile.ElfSections))
	for i := 0; i < len(o.ElfSections); i++ {
		shdr := &o.ElfSections[i]
		if (shdr.Flags&uint64(target.SHF_EXCLUDE) != 0) &&
			(shdr.Flags&uint64(elf.SHF_ALLOC) == 0) &&
			(shdr.Type != target.SHT_LLVM_ADDRSIG) {
			continue
		}

		switch elf.SectionType(shdr.Type) {
		case elf.SHT_GROUP:
			o.readComdatGroup(shdr)
		case elf.SHT_SYMTAB_SHNDX:
			o.fillUpSymtabShndxSec(shdr)
		case elf.SHT_SYMTAB, elf.SHT_STRTAB, elf.SHT_REL, elf.SHT_RELA, elf.SHT_NULL:
			// no InputSection
		default:
			name := target.GetName(o.InputFile.ShStrtab, shdr.Name)
			if name == ".note.GNU-stack" || strings.HasPrefix(name, ".gnu.warning.") {
				continue
			}
			o.Sections[i] = NewInputSection(o, int64(i))
		}
	}

	for i := 0; i < len(o.InputFile.ElfSections); i++ {
		shdr := &o.InputFile.ElfSections[i]
		if shdr.Type != uint32(elf.SHT_RELA) {
			continue
		}
		if shdr.Info >= uint32(len(o.Sections)) {
			utils.Fatal("invalid relocated section index")
		}
		if relTarget := o.Sections[shdr.Info]; relTarget != nil {
			utils.Assert(relTarget.RelsecIdx == math.MaxUint32)
			relTarget.RelsecIdx = uint32(i)
		}
	}
}

// readComdatGroup records a GRP_COMDAT group's signature name and member
// section indices, ignoring non-COMDAT (plain GRP) groups.
func (o *ObjectFile) readComdatGroup(shdr *target.Shdr) {
	bs := o.InputFile.GetBytesFromShdr(shdr)
	if len(bs) < 4 || utils.Read[uint32](bs)&target.GRP_COMDAT == 0 {
		return
	}
	bs = bs[4:]

	esym := &o.ElfSyms[shdr.Info]
	name := target.GetName(o.SymbolStrtab, esym.Name)
	if name == "" {
		return
	}

	var members []int64
	for len(bs) >= 4 {
		members = append(members, int64(utils.Read[uint32](bs)))
		bs = bs[4:]
	}
	if o.ComdatGroups == nil {
		o.ComdatGroups = make(map[string][]int64)
	}
	o.ComdatGroups[name] = members
}

func (o *ObjectFile) initializeSymbols(r Resolver) {
	if o.SymtabSec == nil {
		return
	}

	o.LocalSyms = make([]Symbol, o.FirstGlobal)
	for i := range o.LocalSyms {
		o.LocalSyms[i] = *NewSymbol("")
	}
	o.LocalSyms[0].File = o
	o.LocalSyms[0].SymIdx = 0

	for i := int64(1); i < o.FirstGlobal; i++ {
		esym := &o.ElfSyms[i]
		if esym.IsCommon() {
			utils.Fatal("local symbol cannot be common")
		}

		name := target.GetName(o.SymbolStrtab, esym.Name)
		if name == "" && esym.Type() == uint8(elf.STT_SECTION) {
			if sec := o.GetSection(esym, i); sec != nil {
				name = sec.Name()
			}
		}

		sym := &o.LocalSyms[i]
		sym.Name = name
		sym.File = o
		sym.Value = esym.Val
		sym.SymIdx = int32(i)

		if !esym.IsAbs() {
			sym.SetInputSection(o.Sections[o.GetShndx(esym, i)])
		}
	}

	o.Symbols = make([]*Symbol, len(o.ElfSyms))
	for i := int64(0); i < o.FirstGlobal; i++ {
		o.Symbols[i] = &o.LocalSyms[i]
	}
	for i := o.FirstGlobal; i < int64(len(o.ElfSyms)); i++ {
		esym := &o.ElfSyms[i]
		name := target.GetName(o.SymbolStrtab, esym.Name)
		o.Symbols[i] = r.InternSymbol(name)
	}
}

func (o *ObjectFile) sortRelocations() {
	for i := 1; i < len(o.Sections); i++ {
		isec := o.Sections[i]
		if isec == nil || !isec.IsAlive || isec.Shdr().Flags&uint64(elf.SHF_ALLOC) == 0 {
			continue
		}
		rels := isec.GetRels()
		sort.SliceStable(rels, func(i, j int) bool { return rels[i].Offset < rels[j].Offset })
	}
}

func findNull(data []byte, entSize int) int {
	if entSize == 1 {
		return bytes.IndexByte(data, 0)
	}
	for i := 0; i <= len(data)-entSize; i += entSize {
		if utils.AllZeros(data[i : i+entSize]) {
			return i
		}
	}
	return -1
}

func splitSection(r Resolver, isec *InputSection) *MergeableSection {
	rec := &MergeableSection{}
	shdr := isec.Shdr()
	rec.Parent = r.MergedSectionFor(isec.Name(), shdr.Type, shdr.Flags)
	rec.P2Align = isec.P2Align

	data := isec.Contents
	offset := uint64(0)
	if shdr.Flags&uint64(elf.SHF_STRINGS) != 0 {
		for len(data) > 0 {
			end := findNull(data, int(shdr.EntSize))
			if end == -1 {
				utils.Fatal("string is not null terminated")
			}
			substr := data[:uint64(end)+shdr.EntSize]
			data = data[uint64(end)+shdr.EntSize:]
			rec.Strs = append(rec.Strs, string(substr))
			rec.FragOffsets = append(rec.FragOffsets, uint32(offset))
			offset += uint64(end) + shdr.EntSize
		}
	} else {
		if shdr.EntSize == 0 || uint64(len(data))%shdr.EntSize != 0 {
			utils.Fatal("section size is not a multiple of entsize")
		}
		for len(data) > 0 {
			substr := data[:shdr.EntSize]
			data = data[shdr.EntSize:]
			rec.Strs = append(rec.Strs, string(substr))
			rec.FragOffsets = append(rec.FragOffsets, uint32(offset))
			offset += shdr.EntSize
		}
	}
	return rec
}

func (o *ObjectFile) initializeMergeableSections(r Resolver) {
	o.MergeableSections = make([]*MergeableSection, len(o.Sections))
	for i, isec := range o.Sections {
		if isec != nil && isec.IsAlive && isec.Shdr().Flags&uint64(elf.SHF_MERGE) != 0 &&
			isec.ShSize > 0 && isec.Shdr().EntSize > 0 && isec.RelsecIdx == math.MaxUint32 {
			o.MergeableSections[i] = splitSection(r, isec)
			isec.IsAlive = false
		}
	}
}

func (o *ObjectFile) skipEhframeSections() {
	for _, isec := range o.Sections {
		if isec != nil && isec.IsAlive && isec.Name() == ".eh_frame" {
			isec.IsAlive = false
		}
	}
}

func (o *ObjectFile) fillUpSymtabShndxSec(s *target.Shdr) {
	bs := o.InputFile.GetBytesFromShdr(s)
	n := len(bs) / 4
	o.SymtabShndxSec = make([]uint32, 0, n)
	for n > 0 {
		o.SymtabShndxSec = append(o.SymtabShndxSec, utils.Read[uint32](bs))
		bs = bs[4:]
		n--
	}
}

func (o *ObjectFile) GetSection(esym *target.Sym, idx int64) *InputSection {
	return o.Sections[o.GetShndx(esym, idx)]
}

func (o *ObjectFile) GetShndx(esym *target.Sym, idx int64) int64 {
	utils.Assert(idx >= 0 && idx < int64(len(o.ElfSyms)))
	if esym.Shndx == uint16(elf.SHN_XINDEX) {
		return int64(o.SymtabShndxSec[idx])
	}
	return int64(esym.Shndx)
}

func (o *ObjectFile) GetGlobalSyms() []*Symbol { return o.Symbols[o.FirstGlobal:] }

// ResolveSymbols applies the one-definition rule: for every global symbol
// this file defines, claim ownership if this file's rank beats whatever
// currently owns the name.
func (o *ObjectFile) ResolveSymbols(r Resolver) {
	for i := o.FirstGlobal; i < int64(len(o.ElfSyms)); i++ {
		sym := o.Symbols[i]
		esym := &o.ElfSyms[i]
		if esym.IsUndef() {
			continue
		}

		var isec *InputSection
		if !esym.IsAbs() && !esym.IsCommon() {
			isec = o.GetSection(esym, i)
			if isec == nil {
				continue
			}
		}

		if GetRank(o, esym, !o.IsAlive) < sym.GetRank() {
			sym.File = o
			sym.SetInputSection(isec)
			sym.Value = esym.Val
			sym.SymIdx = int32(i)
			sym.VerIdx = r.DefaultVersion()
			sym.IsWeak = esym.IsWeak()
			sym.IsExported = false
		}
	}
}

// MarkLiveObjects walks this file's global symbols, merging visibility
// and feeding newly-reachable defining files back to the caller.
func (o *ObjectFile) MarkLiveObjects(feed func(*ObjectFile)) {
	utils.Assert(o.IsAlive)

	for i := o.FirstGlobal; i < int64(len(o.ElfSyms)); i++ {
		esym := &o.ElfSyms[i]
		sym := o.Symbols[i]

		o.MergeVisibility(sym, esym.StVisibility())

		if esym.IsWeak() || sym.File == nil {
			continue
		}

		keep := esym.IsUndef() || (esym.IsCommon() && !sym.ElfSym().IsCommon())
		if keep && !sym.File.SwapIsAlive(true) {
			feed(sym.File)
		}
	}
}

func (o *ObjectFile) MergeVisibility(sym *Symbol, visibility uint8) {
	if visibility == uint8(elf.STV_INTERNAL) {
		visibility = uint8(elf.STV_HIDDEN)
	}

	priority := func(v uint8) int {
		switch v {
		case uint8(elf.STV_HIDDEN):
			return 1
		case uint8(elf.STV_PROTECTED):
			return 2
		case uint8(elf.STV_DEFAULT):
			return 3
		}
		utils.Fatal("unknown symbol visibility")
		return 0
	}

	if priority(sym.Visibility) > priority(visibility) {
		sym.Visibility = visibility
	}
}

func (o *ObjectFile) ClearSymbols() {
	for _, sym := range o.GetGlobalSyms() {
		if sym.File == o {
			sym.Clear()
		}
	}
}

// RegisterSectionPieces interns every mergeable-section string into its
// FragmentInterner, rewrites symbols that pointed into a now-split
// section to point at their fragment instead, and synthesizes section-
// relative "fragment symbols" for relocations whose target symbol is a
// STT_SECTION symbol over a merged section.
func (o *ObjectFile) RegisterSectionPieces() {
	for _, m := range o.MergeableSections {
		if m == nil {
			continue
		}
		m.Fragments = make([]Fragment, 0, len(m.Strs))
		for i := range m.Strs {
			m.Fragments = append(m.Fragments, m.Parent.Insert(m.Strs[i], uint32(m.P2Align)))
		}
	}

	for i := int64(1); i < int64(len(o.ElfSyms)); i++ {
		sym := o.Symbols[i]
		esym := &o.ElfSyms[i]
		if esym.IsAbs() || esym.IsCommon() || esym.IsUndef() {
			continue
		}

		m := o.MergeableSections[o.GetShndx(esym, i)]
		if m == nil {
			continue
		}

		frag, fragOffset := o.Sections[0].GetFragment(m, uint32(esym.Val))
		if frag == nil {
			utils.Fatal("bad symbol value")
		}
		sym.SetFragment(frag)
		sym.Value = uint64(fragOffset)
	}

	var fragSyms []Symbol
	var pending []*target.Rela
	for _, isec := range o.Sections {
		if isec == nil || !isec.IsAlive || isec.Shdr().Flags&uint64(elf.SHF_ALLOC) == 0 {
			continue
		}
		rels := isec.GetRels()
		for i := range rels {
			r := &rels[i]
			esym := &o.ElfSyms[r.Sym]
			if esym.Type() != uint8(elf.STT_SECTION) {
				continue
			}
			if o.MergeableSections[o.GetShndx(esym, int64(r.Sym))] == nil {
				continue
			}
			fragSyms = append(fragSyms, *NewSymbol("<fragment>"))
			pending = append(pending, r)
		}
	}

	o.FragSyms = fragSyms
	for i, r := range pending {
		esym := &o.ElfSyms[r.Sym]
		m := o.MergeableSections[o.GetShndx(esym, int64(r.Sym))]
		frag, fragOffset := o.Sections[0].GetFragment(m, uint32(esym.Val)+uint32(r.Addend))
		if frag == nil {
			utils.Fatal("bad relocation")
		}

		sym := &o.FragSyms[i]
		sym.File = o
		sym.SymIdx = int32(r.Sym)
		sym.Visibility = uint8(elf.STV_HIDDEN)
		sym.SetFragment(frag)
		sym.Value = uint64(fragOffset) - uint64(r.Addend)

		r.Sym = uint32(len(o.ElfSyms)) + uint32(i)
	}

	for i := range o.FragSyms {
		o.Symbols = append(o.Symbols, &o.FragSyms[i])
	}
}

// ClaimUnresolvedSymbols makes this file the owner, as an unexported
// definition with value 0, of every undefined-weak reference it makes
// that no file defines, so later passes don't treat "referenced but never
// defined, and was only ever weak" as a hard link error. Undefined
// references that are not weak are left unclaimed.
func (o *ObjectFile) ClaimUnresolvedSymbols(defaultVersion uint16) {
	if !o.IsAlive {
		return
	}

	for i := o.FirstGlobal; i < int64(len(o.ElfSyms)); i++ {
		esym := &o.ElfSyms[i]
		if !esym.IsUndef() {
			continue
		}

		sym := o.Symbols[i]
		if sym.File != nil && (!sym.ElfSym().IsUndef() || sym.File.Priority <= o.Priority) {
			continue
		}

		if esym.IsUndefWeak() {
			sym.File = o
			sym.InputSection = nil
			sym.OutputChunk = nil
			sym.Fragment = nil
			sym.Value = 0
			sym.SymIdx = int32(i)
			sym.IsWeak = false
			sym.IsExported = false
			sym.VerIdx = defaultVersion
		}
	}
}

// ComputeImportExport marks every global symbol this file owns, that is
// neither hidden nor scoped local by a version script, as exported.
func (o *ObjectFile) ComputeImportExport() {
	if o.ExcludeLibs {
		return
	}
	for _, sym := range o.GetGlobalSyms() {
		if sym.File == nil || sym.Visibility == uint8(elf.STV_HIDDEN) ||
			sym.VerIdx == target.VER_NDX_LOCAL {
			continue
		}
		if sym.File == o {
			sym.IsExported = true
		}
	}
}

// ConvertCommonSymbols synthesizes a backing .bss InputSection for every
// COMMON symbol this object won resolution for, the way a tentative
// definition becomes a real zero-initialized allocation once the linker
// has decided which file's COMMON wins. st_size holds the byte count and
// st_value holds the required alignment for a COMMON symbol, per the ELF
// gABI convention; st_value is rewritten to 0 (the fresh section's base)
// once the conversion lands.
func (o *ObjectFile) ConvertCommonSymbols() {
	for i := o.FirstGlobal; i < int64(len(o.ElfSyms)); i++ {
		esym := &o.ElfSyms[i]
		if !esym.IsCommon() {
			continue
		}
		sym := o.Symbols[i]
		if sym.File != o {
			continue
		}

		align := esym.Val
		if align == 0 {
			align = 1
		}

		shdr := target.Shdr{
			Type:      uint32(elf.SHT_NOBITS),
			Flags:     uint64(elf.SHF_ALLOC | elf.SHF_WRITE),
			Size:      esym.Size,
			AddrAlign: align,
		}
		shndx := int64(len(o.ElfSections))
		o.ElfSections = append(o.ElfSections, shdr)

		isec := &InputSection{
			File:      o,
			Offset:    math.MaxUint32,
			RelsecIdx: math.MaxUint32,
			ShSize:    uint32(esym.Size),
			P2Align:   p2AlignOf(align),
			IsAlive:   true,
			IsCommon:  true,
			Shndx:     uint32(shndx),
		}
		o.Sections = append(o.Sections, isec)

		sym.SetInputSection(isec)
		sym.Value = 0
	}
}
