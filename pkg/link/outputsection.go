package link

import (
	"debug/elf"

	"github.com/coreld/coreld/pkg/inputfile"
)

// OutputSection collects every InputSection binned under a given
// (name, sh_type, sh_flags) tuple.
type OutputSection struct {
	Chunk
	Members []*inputfile.InputSection
	Idx     uint32
}

func NewOutputSection(name string, typ uint32, flags uint64, idx uint32) *OutputSection {
	o := &OutputSection{Chunk: NewChunk()}
	o.Name = name
	o.Shdr.Type = typ
	o.Shdr.Flags = flags
	o.Idx = idx
	return o
}

// normalizeOutputKey applies the same (name, type, flags) folding every
// section binned into an OutputSection goes through: numbered/per-symbol
// input names fold to their stem, .init_array/.fini_array get their
// PROGBITS type corrected, and link-editor-only flag bits (SHF_GROUP,
// SHF_COMPRESSED, SHF_LINK_ORDER) are stripped since they describe the
// input section, not the output one it's merged into.
func normalizeOutputKey(name string, typ uint64, flags uint64) (string, uint64, uint64) {
	name = GetOutputName(name, flags)
	typ = CanonicalizeType(name, typ)
	flags = flags &^ uint64(elf.SHF_GROUP) &^ uint64(elf.SHF_COMPRESSED) &^ uint64(elf.SHF_LINK_ORDER)

	if typ == uint64(elf.SHT_INIT_ARRAY) || typ == uint64(elf.SHT_FINI_ARRAY) {
		flags |= uint64(elf.SHF_WRITE)
	}
	return name, typ, flags
}

// GetOutputSectionInstance finds or creates the OutputSection a section
// with this (name, type, flags) should be binned into.
func GetOutputSectionInstance(ctx *Context, name string, typ uint64, flags uint64) *OutputSection {
	name, typ, flags = normalizeOutputKey(name, typ, flags)

	for _, os := range ctx.OutputSections {
		if name == os.Name && typ == uint64(os.Shdr.Type) && flags == os.Shdr.Flags {
			return os
		}
	}

	os := NewOutputSection(name, uint32(typ), flags, uint32(len(ctx.OutputSections)))
	ctx.OutputSections = append(ctx.OutputSections, os)
	return os
}

func (o *OutputSection) Kind() int { return ChunkKindOutputSection }

func (o *OutputSection) CopyBuf(ctx *Context) {
	if o.Shdr.Type == uint32(elf.SHT_NOBITS) {
		return
	}

	buf := ctx.Buf[o.Shdr.Offset:]
	for i, isec := range o.Members {
		WriteInputSection(isec, buf[isec.Offset:])

		thisEnd := uint64(isec.Offset + isec.ShSize)
		nextStart := o.Shdr.Size
		if i < len(o.Members)-1 {
			nextStart = uint64(o.Members[i+1].Offset)
		}
		for j := thisEnd; j < nextStart; j++ {
			buf[j] = 0
		}
	}
}
