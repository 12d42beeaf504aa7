// Package inputfile parses relocatable object files and shared objects
// far enough that the core pipeline in pkg/link can resolve symbols, bin
// sections, and scan relocations against them.
package inputfile

import (
	"debug/elf"
	"fmt"
	"unsafe"

	"github.com/coreld/coreld/pkg/file"
	"github.com/coreld/coreld/pkg/target"
	"github.com/coreld/coreld/pkg/utils"
)

// InputFile is the shared parsed-header state for both ObjectFile and
// SharedFile: section headers, string tables, and the raw ELF symbol
// table, before either kind layers its own symbol-resolution semantics
// on top.
type InputFile struct {
	File         *file.File
	ElfSections  []target.Shdr
	FirstGlobal  int64
	ShStrtab     []byte
	SymbolStrtab []byte

	ElfSyms []target.Sym

	IsAlive  bool
	Priority uint32
}

func NewInputFile(f *file.File) *InputFile {
	in := &InputFile{File: f}
	if len(f.Contents) < int(unsafe.Sizeof(target.Ehdr{})) {
		utils.Fatal("file too small: " + f.Name)
	}
	if !target.CheckMagic(f.Contents) {
		utils.Fatal("not an ELF file: " + f.Name)
	}

	ehdr := utils.Read[target.Ehdr](f.Contents)

	contents := f.Contents[ehdr.ShOff:]
	shdr := utils.Read[target.Shdr](contents)

	numSections := int64(ehdr.ShNum)
	if numSections == 0 {
		numSections = int64(shdr.Size)
	}

	in.ElfSections = []target.Shdr{shdr}
	for numSections > 1 {
		contents = contents[unsafe.Sizeof(target.Shdr{}):]
		in.ElfSections = append(in.ElfSections, utils.Read[target.Shdr](contents))
		numSections--
	}

	shstrtabIdx := int64(ehdr.ShStrndx)
	if ehdr.ShStrndx == uint16(elf.SHN_XINDEX) {
		shstrtabIdx = int64(shdr.Link)
	}
	in.ShStrtab = in.GetBytesFromIdx(shstrtabIdx)
	return in
}

func (in *InputFile) GetBytesFromShdr(s *target.Shdr) []byte {
	end := s.Offset + s.Size
	if uint64(len(in.File.Contents)) < end {
		utils.Fatal(fmt.Sprintf("section header out of range: %d", s.Offset))
	}
	return in.File.Contents[s.Offset:end]
}

func (in *InputFile) GetBytesFromIdx(idx int64) []byte {
	utils.Assert(idx < int64(len(in.ElfSections)))
	return in.GetBytesFromShdr(&in.ElfSections[idx])
}

func (in *InputFile) fillUpElfSyms(s *target.Shdr) {
	bs := in.GetBytesFromShdr(s)
	n := len(bs) / int(unsafe.Sizeof(target.Sym{}))
	syms := make([]target.Sym, 0, n)
	for n > 0 {
		syms = append(syms, utils.Read[target.Sym](bs))
		bs = bs[unsafe.Sizeof(target.Sym{}):]
		n--
	}
	in.ElfSyms = syms
}

func (in *InputFile) FindSection(ty uint32) *target.Shdr {
	for i := range in.ElfSections {
		if in.ElfSections[i].Type == ty {
			return &in.ElfSections[i]
		}
	}
	return nil
}

func (in *InputFile) SwapIsAlive(isAlive bool) bool {
	old := in.IsAlive
	in.IsAlive = isAlive
	return old
}

func (in *InputFile) GetEhdr() target.Ehdr {
	return utils.Read[target.Ehdr](in.File.Contents)
}
