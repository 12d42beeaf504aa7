package link

import (
	"debug/elf"
	"sort"

	"github.com/coreld/coreld/pkg/inputfile"
	"github.com/coreld/coreld/pkg/utils"
)

// SectionFragment is one interned string/constant shared by every input
// section that contributed an identical piece of mergeable data.
type SectionFragment struct {
	Parent  *MergedSection
	Offset  uint32
	P2Align uint32
	IsAlive bool
}

func NewSectionFragment(m *MergedSection) *SectionFragment {
	return &SectionFragment{Parent: m, Offset: ^uint32(0)}
}

func (f *SectionFragment) FragAddr() uint64 { return f.Parent.Shdr.Addr + uint64(f.Offset) }
func (f *SectionFragment) FragAlive() bool  { return f.IsAlive }

// MergedSection is the output chunk a MergeableSection's fragments are
// pooled into: one per distinct (name, type, flags) tuple, deduplicating
// identical strings/constants across every input file.
type MergedSection struct {
	Chunk
	fragments map[string]*SectionFragment
}

func NewMergedSection(name string, flags uint64, typ uint32) *MergedSection {
	m := &MergedSection{Chunk: NewChunk(), fragments: make(map[string]*SectionFragment)}
	m.Name = name
	m.Shdr.Flags = flags
	m.Shdr.Type = typ
	return m
}

func GetMergedSectionInstance(ctx *Context, name string, typ uint32, flags uint64) *MergedSection {
	name = GetOutputName(name, flags)
	flags = flags &^ uint64(elf.SHF_GROUP) &^ uint64(elf.SHF_MERGE) &^
		uint64(elf.SHF_STRINGS) &^ uint64(elf.SHF_COMPRESSED)

	for _, m := range ctx.MergedSections {
		if name == m.Name && flags == m.Shdr.Flags && typ == m.Shdr.Type {
			return m
		}
	}

	m := NewMergedSection(name, flags, typ)
	ctx.MergedSections = append(ctx.MergedSections, m)
	return m
}

// Insert implements inputfile.FragmentInterner.
func (m *MergedSection) Insert(key string, p2align uint32) inputfile.Fragment {
	f, ok := m.fragments[key]
	if !ok {
		f = NewSectionFragment(m)
		m.fragments[key] = f
	}
	if f.P2Align < p2align {
		f.P2Align = p2align
	}
	return f
}

func (m *MergedSection) AssignOffsets() {
	type entry struct {
		key string
		val *SectionFragment
	}
	entries := make([]entry, 0, len(m.fragments))
	for k, v := range m.fragments {
		entries = append(entries, entry{k, v})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		x, y := entries[i], entries[j]
		if x.val.P2Align != y.val.P2Align {
			return x.val.P2Align < y.val.P2Align
		}
		if len(x.key) != len(y.key) {
			return len(x.key) < len(y.key)
		}
		return x.key < y.key
	})

	offset := uint64(0)
	p2align := uint64(0)
	for _, e := range entries {
		if !e.val.IsAlive {
			continue
		}
		offset = utils.AlignTo(offset, 1<<e.val.P2Align)
		e.val.Offset = uint32(offset)
		offset += uint64(len(e.key))
		if p2align < uint64(e.val.P2Align) {
			p2align = uint64(e.val.P2Align)
		}
	}

	m.Shdr.Size = utils.AlignTo(offset, 1<<p2align)
	m.Shdr.AddrAlign = 1 << p2align
}

func (m *MergedSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[m.Shdr.Offset:]
	for key, f := range m.fragments {
		if f.IsAlive {
			copy(buf[f.Offset:], key)
		}
	}
}
