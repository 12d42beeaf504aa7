package link

import (
	"debug/elf"
	"unsafe"

	"github.com/coreld/coreld/pkg/target"
	"github.com/coreld/coreld/pkg/utils"
)

type OutputEhdr struct {
	Chunk
}

func NewOutputEhdr() *OutputEhdr {
	o := &OutputEhdr{Chunk: NewChunk()}
	o.Shdr.Flags = uint64(elf.SHF_ALLOC)
	o.Shdr.Size = uint64(unsafe.Sizeof(target.Ehdr{}))
	o.Shdr.AddrAlign = 8
	return o
}

func (o *OutputEhdr) Kind() int { return ChunkKindHeader }

func GetEntryAddr(ctx *Context) uint64 {
	for _, osec := range ctx.OutputSections {
		if osec.Name == ".text" {
			return osec.Shdr.Addr
		}
	}
	return 0
}

func (o *OutputEhdr) CopyBuf(ctx *Context) {
	ehdr := target.Ehdr{}
	target.WriteMagic(ehdr.Ident[:])
	ehdr.Ident[elf.EI_CLASS] = uint8(elf.ELFCLASS64)
	ehdr.Ident[elf.EI_DATA] = uint8(elf.ELFDATA2LSB)
	ehdr.Ident[elf.EI_VERSION] = uint8(elf.EV_CURRENT)
	ehdr.Type = uint16(elf.ET_EXEC)
	if ctx.Arg.Shared {
		ehdr.Type = uint16(elf.ET_DYN)
	}
	ehdr.Machine = uint16(target.Machine)
	ehdr.Version = uint32(elf.EV_CURRENT)
	ehdr.Entry = GetEntryAddr(ctx)
	ehdr.PhOff = ctx.Phdr.Shdr.Offset
	ehdr.ShOff = ctx.Shdr.Shdr.Offset
	ehdr.EhSize = uint16(unsafe.Sizeof(target.Ehdr{}))
	ehdr.PhEntSize = uint16(unsafe.Sizeof(target.Phdr{}))
	ehdr.PhNum = uint16(ctx.Phdr.Shdr.Size) / uint16(unsafe.Sizeof(target.Phdr{}))
	ehdr.ShEntSize = uint16(unsafe.Sizeof(target.Shdr{}))
	ehdr.ShNum = uint16(ctx.Shdr.Shdr.Size) / uint16(unsafe.Sizeof(target.Shdr{}))

	utils.Write[target.Ehdr](ctx.Buf[o.Shdr.Offset:], ehdr)
}
