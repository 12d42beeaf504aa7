package inputfile

import (
	"debug/elf"

	"github.com/coreld/coreld/pkg/target"
)

// NEEDS_* flags record what a relocation scan found a symbol requires the
// synthetic section builder to allocate space for. Unlike the teacher
// (which only ever needed NEEDS_GOT/NEEDS_GOTTP on its RISC-V target),
// x86-64 TLS and PLT/COPYREL handling needs the full set.
const (
	NeedsDynsym uint32 = 1 << iota
	NeedsGot
	NeedsPlt
	NeedsGotTpoff
	NeedsTlsgd
	NeedsTlsdesc
	NeedsTlsld
	NeedsCopyrel
)

// AddressableChunk is satisfied by pkg/link's output-section chunk type.
// Symbol needs only a chunk's base address to resolve GetAddr, so this
// narrow interface is enough to avoid pkg/inputfile importing pkg/link
// (which itself must import pkg/inputfile for ObjectFile/InputSection).
type AddressableChunk interface {
	ChunkAddr() uint64
}

// Fragment is satisfied by pkg/link's merged-section fragment type, for
// the same reason as AddressableChunk.
type Fragment interface {
	FragAddr() uint64
	FragAlive() bool
}

// Symbol is the one-definition-rule unit: every name interned across all
// input files resolves to exactly one Symbol, whose File/InputSection/
// OutputChunk/Fragment union records where its definition currently
// lives.
type Symbol struct {
	File *ObjectFile

	// DsoOwner records which shared object defines this symbol, for
	// symbols no object file claims (File stays nil for those, same as
	// an unresolved symbol, since a DSO definition still needs a dynamic
	// import the way an unresolved one does). Only consulted for
	// COPYREL/readonly routing; resolution itself still keys off File.
	DsoOwner *SharedFile

	InputSection *InputSection
	OutputChunk  AddressableChunk
	Fragment     Fragment

	Value uint64
	Name  string

	SymIdx int32
	AuxIdx int32
	VerIdx uint16

	Flags      uint32
	Visibility uint8

	IsWeak     bool
	IsExported bool
}

func NewSymbol(name string) *Symbol {
	return &Symbol{
		Name:       name,
		SymIdx:     -1,
		AuxIdx:     -1,
		Visibility: uint8(elf.STV_DEFAULT),
	}
}

func (s *Symbol) SetInputSection(isec *InputSection) {
	s.InputSection = isec
	s.OutputChunk = nil
	s.Fragment = nil
}

func (s *Symbol) SetOutputChunk(c AddressableChunk) {
	s.InputSection = nil
	s.OutputChunk = c
	s.Fragment = nil
}

func (s *Symbol) SetFragment(f Fragment) {
	s.InputSection = nil
	s.OutputChunk = nil
	s.Fragment = f
}

func (s *Symbol) ElfSym() *target.Sym { return &s.File.ElfSyms[s.SymIdx] }

func (s *Symbol) Clear() {
	s.File = nil
	s.DsoOwner = nil
	s.Fragment = nil
	s.OutputChunk = nil
	s.InputSection = nil
	s.SymIdx = -1
	s.VerIdx = 0
	s.IsWeak = false
	s.IsExported = false
}
