package inputfile

import (
	"debug/elf"

	"github.com/coreld/coreld/pkg/target"
)

// GetRank implements the one-definition-rule priority ordering: a lower
// rank always wins. Definition beats lazy (archive-member, not yet
// pulled in) reference; strong beats weak; common is weakest of all
// defined kinds. File priority (declaration order) breaks ties within a
// class.
func GetRank(file *ObjectFile, esym *target.Sym, isLazy bool) uint64 {
	if esym.IsCommon() {
		if isLazy {
			return (6 << 24) + uint64(file.Priority)
		}
		return (5 << 24) + uint64(file.Priority)
	}

	isWeak := esym.Bind() == uint8(elf.STB_WEAK)
	if isLazy {
		if isWeak {
			return (4 << 24) + uint64(file.Priority)
		}
		return (3 << 24) + uint64(file.Priority)
	}
	if isWeak {
		return (2 << 24) + uint64(file.Priority)
	}
	return (1 << 24) + uint64(file.Priority)
}

// GetRank returns sym's current rank, or the weakest possible rank if it
// has no definition at all.
func (s *Symbol) GetRank() uint64 {
	if s.File == nil {
		return 7 << 24
	}
	return GetRank(s.File, s.ElfSym(), !s.File.IsAlive)
}
