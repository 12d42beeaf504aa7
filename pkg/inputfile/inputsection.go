package inputfile

import (
	"debug/elf"
	"math"
	"unsafe"

	"github.com/coreld/coreld/pkg/target"
	"github.com/coreld/coreld/pkg/utils"
)

// InputSection is a slice of an object file's byte content together with
// its relocations and the output chunk it will eventually be binned
// into. Binning (BinSections, in pkg/link) assigns OutputChunk and
// ComputeSectionSizes assigns Offset; until then OutputChunk is nil and
// Offset is math.MaxUint32.
type InputSection struct {
	File        *ObjectFile
	OutputChunk AddressableChunk
	Contents    []byte
	Offset      uint32
	Shndx       uint32
	RelsecIdx   uint32
	ShSize      uint32
	IsAlive     bool
	P2Align     uint8
	Rels        []target.Rela

	// IsCommon marks a section ConvertCommonSymbols synthesized to back a
	// winning COMMON symbol. It has no real on-disk Shdr to read Name()
	// from, so it reports ".bss" directly.
	IsCommon bool
}

func NewInputSection(file *ObjectFile, shndx int64) *InputSection {
	s := &InputSection{
		Offset:    math.MaxUint32,
		RelsecIdx: math.MaxUint32,
		ShSize:    math.MaxUint32,
		IsAlive:   true,
		File:      file,
		Shndx:     uint32(shndx),
	}

	shdr := s.Shdr()
	if shndx < int64(len(file.ElfSections)) {
		s.Contents = file.File.Contents[shdr.Offset : shdr.Offset+shdr.Size]
	}

	if shdr.Flags&uint64(elf.SHF_COMPRESSED) != 0 {
		chdr := s.Chdr()
		s.ShSize = uint32(chdr.Size)
		s.P2Align = p2AlignOf(chdr.AddrAlign)
	} else {
		s.ShSize = uint32(shdr.Size)
		s.P2Align = p2AlignOf(shdr.AddrAlign)
	}

	return s
}

// p2AlignOf converts a byte alignment (0 meaning "unaligned") to its
// power-of-two exponent.
func p2AlignOf(alignment uint64) uint8 {
	if alignment == 0 {
		return 0
	}
	return uint8(utils.CountrZero[uint64](alignment))
}

func (s *InputSection) Shdr() *target.Shdr {
	if s.Shndx < uint32(len(s.File.ElfSections)) {
		return &s.File.ElfSections[s.Shndx]
	}
	utils.Fatal("section index out of range")
	return nil
}

func (s *InputSection) Chdr() target.Chdr {
	return utils.Read[target.Chdr](s.Contents)
}

// GetAddr requires OutputChunk to have been assigned by binning.
func (s *InputSection) GetAddr() uint64 {
	return s.OutputChunk.ChunkAddr() + uint64(s.Offset)
}

func (s *InputSection) Name() string {
	if s.IsCommon {
		return ".bss"
	}
	return target.GetName(s.File.ShStrtab, s.File.ElfSections[s.Shndx].Name)
}

func (s *InputSection) GetRels() []target.Rela {
	if s.RelsecIdx == math.MaxUint32 || s.Rels != nil {
		return s.Rels
	}

	bs := s.File.GetBytesFromShdr(&s.File.InputFile.ElfSections[s.RelsecIdx])
	n := len(bs) / int(unsafe.Sizeof(target.Rela{}))
	rels := make([]target.Rela, 0, n)
	for n > 0 {
		rels = append(rels, utils.Read[target.Rela](bs))
		bs = bs[unsafe.Sizeof(target.Rela{}):]
		n--
	}
	s.Rels = rels
	return s.Rels
}

// GetFragment resolves a SHF_MERGE-eligible section's offset to the
// SectionFragment containing it plus the fragment-relative remainder.
// Only meaningful on sections the object's MergeableSections slot for
// this index is non-nil; callers in pkg/link check that first.
func (s *InputSection) GetFragment(m *MergeableSection, offset uint32) (Fragment, uint32) {
	idx := m.findFragmentIndex(offset)
	if idx < 0 {
		return nil, 0
	}
	return m.Fragments[idx], offset - m.FragOffsets[idx]
}
