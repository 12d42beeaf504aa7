package link

import (
	"debug/elf"
	"strings"
	"unsafe"

	"github.com/coreld/coreld/pkg/target"
	"github.com/coreld/coreld/pkg/utils"
)

type OutputPhdr struct {
	Chunk
	Phdrs []target.Phdr
}

func NewOutputPhdr() *OutputPhdr {
	o := &OutputPhdr{Chunk: NewChunk()}
	o.Shdr.Flags = uint64(elf.SHF_ALLOC)
	o.Shdr.AddrAlign = 8
	return o
}

func (o *OutputPhdr) Kind() int { return ChunkKindHeader }

func toPhdrFlags(chunk Chunker) uint32 {
	ret := uint32(elf.PF_R)
	if chunk.GetShdr().Flags&uint64(elf.SHF_WRITE) != 0 {
		ret |= uint32(elf.PF_W)
	}
	if chunk.GetShdr().Flags&uint64(elf.SHF_EXECINSTR) != 0 {
		ret |= uint32(elf.PF_X)
	}
	return ret
}

func isBss(chunk Chunker) bool {
	return chunk.GetShdr().Type == uint32(elf.SHT_NOBITS) && chunk.GetShdr().Flags&uint64(elf.SHF_TLS) == 0
}

func isTbss(chunk Chunker) bool {
	return chunk.GetShdr().Type == uint32(elf.SHT_NOBITS) && chunk.GetShdr().Flags&uint64(elf.SHF_TLS) != 0
}

func isNote(chunk Chunker) bool {
	shdr := chunk.GetShdr()
	return shdr.Type == uint32(elf.SHT_NOTE) && shdr.Flags&uint64(elf.SHF_ALLOC) != 0
}

func isRelro(ctx *Context, chunk Chunker) bool {
	flags := chunk.GetShdr().Flags
	typ := chunk.GetShdr().Type

	if flags&uint64(elf.SHF_WRITE) == 0 {
		return false
	}
	return flags&uint64(elf.SHF_TLS) != 0 ||
		typ == uint32(elf.SHT_INIT_ARRAY) ||
		typ == uint32(elf.SHT_FINI_ARRAY) ||
		typ == uint32(elf.SHT_PREINIT_ARRAY) ||
		chunk == ctx.Got ||
		strings.HasSuffix(chunk.GetName(), "rel.ro")
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func createPhdr(ctx *Context) []target.Phdr {
	var vec []target.Phdr

	define := func(typ, flags uint32, minAlign uint64, chunk Chunker) {
		p := target.Phdr{Type: typ, Flags: flags}
		p.Align = maxU64(minAlign, chunk.GetShdr().AddrAlign)
		p.Offset = chunk.GetShdr().Offset
		if chunk.GetShdr().Type != uint32(elf.SHT_NOBITS) {
			p.FileSize = chunk.GetShdr().Size
		}
		p.VAddr = chunk.GetShdr().Addr
		p.PAddr = chunk.GetShdr().Addr
		p.MemSize = chunk.GetShdr().Size
		vec = append(vec, p)
	}

	push := func(chunk Chunker) {
		p := &vec[len(vec)-1]
		p.Align = maxU64(p.Align, chunk.GetShdr().AddrAlign)
		if chunk.GetShdr().Type != uint32(elf.SHT_NOBITS) {
			p.FileSize = chunk.GetShdr().Addr + chunk.GetShdr().Size - p.VAddr
		}
		p.MemSize = chunk.GetShdr().Addr + chunk.GetShdr().Size - p.VAddr
	}

	for _, chunk := range ctx.Chunks {
		chunk.SetExtraAddrAlign(1)
	}

	define(uint32(elf.PT_PHDR), uint32(elf.PF_R), 8, ctx.Phdr)

	n := len(ctx.Chunks)
	for i := 0; i < n; {
		first := ctx.Chunks[i]
		i++
		if !isNote(first) {
			continue
		}

		flags := toPhdrFlags(first)
		define(uint32(elf.PT_NOTE), flags, first.GetShdr().AddrAlign, first)
		for i < n && isNote(ctx.Chunks[i]) && toPhdrFlags(ctx.Chunks[i]) == flags {
			push(ctx.Chunks[i])
			i++
		}
	}

	{
		var chunks []Chunker
		for _, c := range ctx.Chunks {
			if !isTbss(c) {
				chunks = append(chunks, c)
			}
		}

		end := len(chunks)
		for i := 0; i < end; {
			first := chunks[i]
			i++
			if first.GetShdr().Flags&uint64(elf.SHF_ALLOC) == 0 {
				break
			}

			flags := toPhdrFlags(first)
			define(uint32(elf.PT_LOAD), flags, target.PageSize, first)

			if !isBss(first) {
				for i < end && !isBss(chunks[i]) &&
					toPhdrFlags(chunks[i]) == flags &&
					chunks[i].GetShdr().Offset-first.GetShdr().Offset == chunks[i].GetShdr().Addr-first.GetShdr().Addr {
					push(chunks[i])
					i++
				}
			}

			for i < end && isBss(chunks[i]) && toPhdrFlags(chunks[i]) == flags {
				push(chunks[i])
				i++
			}

			first.SetExtraAddrAlign(int64(vec[len(vec)-1].Align))
		}
	}

	for i := 0; i < len(ctx.Chunks); i++ {
		if ctx.Chunks[i].GetShdr().Flags&uint64(elf.SHF_TLS) == 0 {
			continue
		}

		define(uint32(elf.PT_TLS), toPhdrFlags(ctx.Chunks[i]), 1, ctx.Chunks[i])
		i++

		for i < len(ctx.Chunks) && ctx.Chunks[i].GetShdr().Flags&uint64(elf.SHF_TLS) != 0 {
			push(ctx.Chunks[i])
			i++
		}

		ctx.TpAddr = vec[len(vec)-1].VAddr
	}

	vec = append(vec, target.Phdr{
		Type:  uint32(elf.PT_GNU_STACK),
		Flags: uint32(elf.PF_R) | uint32(elf.PF_W),
	})

	for i := 0; i < len(ctx.Chunks); i++ {
		if !isRelro(ctx, ctx.Chunks[i]) {
			continue
		}

		define(uint32(elf.PT_GNU_RELRO), uint32(elf.PF_R), 1, ctx.Chunks[i])
		ctx.Chunks[i].SetExtraAddrAlign(target.PageSize)
		i++

		for i < len(ctx.Chunks) && isRelro(ctx, ctx.Chunks[i]) {
			push(ctx.Chunks[i])
			i++
		}

		vec[len(vec)-1].MemSize = utils.AlignTo(vec[len(vec)-1].MemSize, target.PageSize)
		if i < len(ctx.Chunks) {
			ctx.Chunks[i].SetExtraAddrAlign(target.PageSize)
		}
	}

	return vec
}

func (o *OutputPhdr) UpdateShdr(ctx *Context) {
	o.Phdrs = createPhdr(ctx)
	o.Shdr.Size = uint64(len(o.Phdrs)) * uint64(unsafe.Sizeof(target.Phdr{}))
}

func (o *OutputPhdr) CopyBuf(ctx *Context) {
	buf := ctx.Buf[o.Shdr.Offset:]
	for i, p := range o.Phdrs {
		utils.Write[target.Phdr](buf[i*int(unsafe.Sizeof(target.Phdr{})):], p)
	}
}
