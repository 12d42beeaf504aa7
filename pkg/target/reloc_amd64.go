package target

import "debug/elf"

// relocInfo mirrors the {size} map shape used by elfRelocsX86_64 in the
// go/obj corpus: a compact per-kind table grouping size together with the
// GOT/PLT/TLS need classification the relocation scanner keys off.
type relocInfo struct {
	size byte
	need NeedKind
}

// NeedKind enumerates what a relocation referencing a symbol requires the
// synthetic section builder to allocate for that symbol.
type NeedKind uint8

const (
	NeedNone NeedKind = iota
	NeedGot
	NeedGotTpoff
	NeedTlsgd
	NeedTlsdesc
	NeedTlsld
	NeedCopyrel
	NeedPlt
)

var x86_64Relocs = map[elf.R_X86_64]relocInfo{
	elf.R_X86_64_NONE:            {0, NeedNone},
	elf.R_X86_64_64:              {8, NeedCopyrel},
	elf.R_X86_64_PC32:            {4, NeedCopyrel},
	elf.R_X86_64_GOT32:           {4, NeedGot},
	elf.R_X86_64_PLT32:           {4, NeedPlt},
	elf.R_X86_64_COPY:            {0, NeedNone},
	elf.R_X86_64_GLOB_DAT:        {8, NeedNone},
	elf.R_X86_64_JMP_SLOT:        {8, NeedNone},
	elf.R_X86_64_RELATIVE:        {8, NeedNone},
	elf.R_X86_64_GOTPCREL:        {4, NeedGot},
	elf.R_X86_64_32:              {4, NeedCopyrel},
	elf.R_X86_64_32S:             {4, NeedCopyrel},
	elf.R_X86_64_16:              {2, NeedCopyrel},
	elf.R_X86_64_PC16:            {2, NeedCopyrel},
	elf.R_X86_64_8:               {1, NeedCopyrel},
	elf.R_X86_64_PC8:             {1, NeedCopyrel},
	elf.R_X86_64_DTPMOD64:        {8, NeedTlsgd},
	elf.R_X86_64_DTPOFF64:        {8, NeedTlsgd},
	elf.R_X86_64_TPOFF64:         {8, NeedNone},
	elf.R_X86_64_TLSGD:           {4, NeedTlsgd},
	elf.R_X86_64_TLSLD:           {4, NeedTlsld},
	elf.R_X86_64_DTPOFF32:        {4, NeedNone},
	elf.R_X86_64_GOTTPOFF:        {4, NeedGotTpoff},
	elf.R_X86_64_TPOFF32:         {4, NeedNone},
	elf.R_X86_64_PC64:            {8, NeedCopyrel},
	elf.R_X86_64_GOTOFF64:        {8, NeedGot},
	elf.R_X86_64_GOTPC32:         {4, NeedNone},
	elf.R_X86_64_GOT64:           {8, NeedGot},
	elf.R_X86_64_GOTPCREL64:      {8, NeedGot},
	elf.R_X86_64_GOTPC64:         {8, NeedNone},
	elf.R_X86_64_GOTPLT64:        {8, NeedGot},
	elf.R_X86_64_PLTOFF64:        {8, NeedPlt},
	elf.R_X86_64_SIZE32:          {4, NeedNone},
	elf.R_X86_64_SIZE64:          {8, NeedNone},
	elf.R_X86_64_GOTPC32_TLSDESC: {4, NeedTlsdesc},
	elf.R_X86_64_TLSDESC_CALL:    {0, NeedTlsdesc},
	elf.R_X86_64_TLSDESC:         {16, NeedTlsdesc},
	elf.R_X86_64_IRELATIVE:       {8, NeedNone},
	elf.R_X86_64_GOTPCRELX:       {4, NeedGot},
	elf.R_X86_64_REX_GOTPCRELX:   {4, NeedGot},
}

// RelocSize returns the byte width a relocation of kind typ writes, or -1
// if typ is not a recognized x86-64 relocation kind.
func RelocSize(typ uint32) int {
	r, ok := x86_64Relocs[elf.R_X86_64(typ)]
	if !ok {
		return -1
	}
	return int(r.size)
}

// RelocNeed classifies what a relocation of kind typ requires the
// symbol it targets to have allocated (GOT slot, PLT stub, TLS block...).
func RelocNeed(typ uint32) NeedKind {
	r, ok := x86_64Relocs[elf.R_X86_64(typ)]
	if !ok {
		return NeedNone
	}
	return r.need
}

func RelocName(typ uint32) string {
	return elf.R_X86_64(typ).String()
}

// IsBaseRel reports whether typ is a direct (absolute or PC-relative)
// reference that may need a R_X86_64_RELATIVE/COPY dynamic relocation
// when the target is only resolvable at load time.
func IsBaseRel(typ uint32) bool {
	switch elf.R_X86_64(typ) {
	case elf.R_X86_64_64, elf.R_X86_64_32, elf.R_X86_64_32S:
		return true
	}
	return false
}
