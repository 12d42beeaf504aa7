package inputfile

import (
	"debug/elf"

	"github.com/coreld/coreld/pkg/file"
	"github.com/coreld/coreld/pkg/target"
	"github.com/coreld/coreld/pkg/utils"
)

// SharedFile represents a dynamic shared object pulled in as an input.
// The teacher never links against DSOs (its RISC-V static-executable
// focus has no use for them); this is new, modeled on the DSO handling
// passes.cc drives (resolve_dso_symbols, is_readonly, find_aliases).
type SharedFile struct {
	InputFile
	Soname  string
	Symbols []*Symbol

	VerDefs map[uint16]string // version index -> version name, from .gnu.version_d
}

func NewSharedFile(f *file.File) *SharedFile {
	s := &SharedFile{InputFile: *NewInputFile(f)}
	s.IsAlive = false
	return s
}

// Parse reads the DSO's dynamic symbol table and its SONAME (falling
// back to File.Name, the file's full name as given, if the DSO carries
// none).
func (s *SharedFile) Parse(r Resolver) {
	dynsym := s.FindSection(uint32(elf.SHT_DYNSYM))
	if dynsym == nil {
		s.Soname = s.File.Name
		return
	}

	s.FirstGlobal = int64(dynsym.Info)
	s.InputFile.fillUpElfSyms(dynsym)
	s.InputFile.SymbolStrtab = s.InputFile.GetBytesFromIdx(int64(dynsym.Link))

	s.Soname = s.readSoname()

	s.Symbols = make([]*Symbol, len(s.ElfSyms))
	for i := int64(0); i < int64(len(s.ElfSyms)); i++ {
		esym := &s.ElfSyms[i]
		name := target.GetName(s.SymbolStrtab, esym.Name)
		if name == "" {
			continue
		}
		s.Symbols[i] = r.InternSymbol(name)
	}
}

func (s *SharedFile) readSoname() string {
	dynamic := s.FindSection(uint32(elf.SHT_DYNAMIC))
	strtab := s.FindSection(uint32(elf.SHT_STRTAB))
	if dynamic == nil || strtab == nil {
		return s.File.Name
	}

	strs := s.GetBytesFromShdr(strtab)
	bs := s.GetBytesFromShdr(dynamic)
	for len(bs) >= 16 {
		tag := utils.Read[uint64](bs)
		val := utils.Read[uint64](bs[8:])
		bs = bs[16:]
		if elf.DynTag(tag) == elf.DT_SONAME {
			return target.GetName(strs, uint32(val))
		}
	}
	return s.File.Name
}

// ResolveSymbols registers this DSO's defined dynamic symbols as
// candidate definitions, the same one-definition-rule comparison
// ObjectFile.ResolveSymbols uses, except a DSO can never outrank an
// object file's definition (a DSO symbol's rank is always weakest) and
// File itself stays nil — a DSO-defined symbol still needs a dynamic
// import exactly like an unresolved one, so the resolver's "does some
// object file define this" check doesn't need to change. DsoOwner
// records which DSO won, for the COPYREL-routing decision downstream.
func (s *SharedFile) ResolveSymbols() {
	for i, esym := range s.ElfSyms {
		if esym.IsUndef() {
			continue
		}
		sym := s.Symbols[i]
		if sym == nil || sym.File != nil || sym.DsoOwner != nil {
			continue
		}
		sym.DsoOwner = s
		sym.Value = esym.Val
		sym.SymIdx = int32(i)
		sym.IsWeak = esym.IsWeak()
	}
}

// IsReadonly reports whether the section defining sym in this DSO lacks
// SHF_WRITE (a section index past the DSO's section table counts as
// writable). The relocation scanner uses it to route a copy relocation
// to .dynbss.rel.ro rather than .dynbss.
func (s *SharedFile) IsReadonly(sym *Symbol) bool {
	esym := &s.ElfSyms[sym.SymIdx]
	shndx := esym.Shndx
	if int(shndx) >= len(s.ElfSections) {
		return false
	}
	return s.ElfSections[shndx].Flags&uint64(elf.SHF_WRITE) == 0
}

// FindAliases returns every other defined dynamic symbol in this DSO
// with the same section/value as sym — candidates for copy-relocation
// aliasing, mirroring mold's find_aliases.
func (s *SharedFile) FindAliases(sym *Symbol) []*Symbol {
	esym := &s.ElfSyms[sym.SymIdx]
	var aliases []*Symbol
	for i, other := range s.ElfSyms {
		if int32(i) == sym.SymIdx || other.IsUndef() {
			continue
		}
		if other.Shndx == esym.Shndx && other.Val == esym.Val {
			aliases = append(aliases, s.Symbols[i])
		}
	}
	return aliases
}
