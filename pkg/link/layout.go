package link

import (
	"debug/elf"
	"math"
	"sort"

	"github.com/coreld/coreld/pkg/inputfile"
	"github.com/coreld/coreld/pkg/parallel"
	"github.com/coreld/coreld/pkg/target"
	"github.com/coreld/coreld/pkg/utils"
)

// sectionSlabSize bounds how many members one goroutine packs offsets for
// in a single sequential sweep. A section with tens of thousands of input
// sections (common for .text/.data in a large static link) would otherwise
// serialize all of ComputeSectionSizes behind one goroutine.
const sectionSlabSize = 10000

// ComputeSectionSizes packs every output section's members at increasing
// offsets, respecting each member's own alignment, and records the
// section's resulting size and alignment. Every OutputSection is
// independent of every other, so the outer loop runs one goroutine per
// section; within a section with enough members to matter, the member
// list is split into fixed-size slabs, each packed locally from offset
// zero in parallel, and the slabs' local spans are then stitched into a
// single increasing offset range by a short sequential prefix-sum pass.
func ComputeSectionSizes(ctx *Context) {
	parallel.ForEach(ctx.OutputSections, computeOutputSectionSize)
}

func computeOutputSectionSize(osec *OutputSection) {
	if len(osec.Members) == 0 {
		osec.Shdr.Size = 0
		return
	}

	slabs := slabifyMembers(osec.Members, sectionSlabSize)
	localEnds := make([]uint64, len(slabs))
	localP2Aligns := make([]uint8, len(slabs))

	parallel.ForEachIndexed(slabs, func(i int, slab []*inputfile.InputSection) {
		offset := uint64(0)
		p2align := uint8(0)
		for _, isec := range slab {
			offset = utils.AlignTo(offset, 1<<isec.P2Align)
			isec.Offset = uint32(offset)
			offset += uint64(isec.ShSize)
			if isec.P2Align > p2align {
				p2align = isec.P2Align
			}
		}
		localEnds[i] = offset
		localP2Aligns[i] = p2align
	})

	p2align := uint8(0)
	for _, a := range localP2Aligns {
		if a > p2align {
			p2align = a
		}
	}

	// Every slab start is aligned to the section's overall alignment, a
	// power of two no smaller than any individual member's alignment, so
	// offsets computed locally within a slab (relative to its own zero)
	// stay correctly aligned once shifted by that start.
	starts := make([]uint64, len(slabs))
	end := uint64(0)
	for i, localEnd := range localEnds {
		starts[i] = utils.AlignTo(end, 1<<p2align)
		end = starts[i] + localEnd
	}

	parallel.ForEachIndexed(slabs, func(i int, slab []*inputfile.InputSection) {
		start := starts[i]
		if start == 0 {
			return
		}
		for _, isec := range slab {
			isec.Offset += uint32(start)
		}
	})

	osec.Shdr.Size = end
	osec.Shdr.AddrAlign = 1 << p2align
}

// slabifyMembers splits members into contiguous, order-preserving slices
// of at most size elements each.
func slabifyMembers(members []*inputfile.InputSection, size int) [][]*inputfile.InputSection {
	var slabs [][]*inputfile.InputSection
	for i := 0; i < len(members); i += size {
		end := i + size
		if end > len(members) {
			end = len(members)
		}
		slabs = append(slabs, members[i:end])
	}
	return slabs
}

// SortOutputSections orders every chunk the way a conventional ELF
// loader expects: headers first, allocated sections before
// non-allocated debug/symbol sections, and within the allocated region
// read-only/executable material ahead of writable data ahead of bss, so
// PT_LOAD segment carving in createPhdr needs the fewest, most
// permission-homogeneous segments.
func SortOutputSections(ctx *Context) {
	rank1 := func(chunk Chunker) int32 {
		typ := chunk.GetShdr().Type
		flags := chunk.GetShdr().Flags

		if flags&uint64(elf.SHF_ALLOC) == 0 {
			return math.MaxInt32 - 1
		}
		if chunk == ctx.Shdr {
			return math.MaxInt32
		}
		if chunk == ctx.Ehdr {
			return 0
		}
		if chunk == ctx.Phdr {
			return 1
		}
		if typ == uint32(elf.SHT_NOTE) {
			return 3
		}

		b2i := func(b bool) int32 {
			if b {
				return 1
			}
			return 0
		}

		writable := b2i(flags&uint64(elf.SHF_WRITE) != 0)
		notExec := b2i(flags&uint64(elf.SHF_EXECINSTR) == 0)
		notTls := b2i(flags&uint64(elf.SHF_TLS) == 0)
		notRelro := b2i(!isRelro(ctx, chunk))
		bss := b2i(typ == uint32(elf.SHT_NOBITS))

		return (1 << 10) | writable<<9 | notExec<<8 | notTls<<7 | notRelro<<6 | bss<<5
	}

	rank2 := func(chunk Chunker) int32 {
		if chunk.GetShdr().Type == uint32(elf.SHT_NOTE) {
			return -int32(chunk.GetShdr().AddrAlign)
		}
		if chunk == ctx.Got {
			return 1
		}
		return 0
	}

	sort.SliceStable(ctx.Chunks, func(i, j int) bool {
		a, b := rank1(ctx.Chunks[i]), rank1(ctx.Chunks[j])
		if a != b {
			return a < b
		}
		return rank2(ctx.Chunks[i]) < rank2(ctx.Chunks[j])
	})
}

func chunkAlignment(chunk Chunker) uint64 {
	extra := uint64(chunk.GetExtraAddrAlign())
	base := chunk.GetShdr().AddrAlign
	if base == 0 {
		base = 1
	}
	if extra > base {
		return extra
	}
	return base
}

// doSetOsecOffsets assigns every allocated chunk a virtual address, then
// derives file offsets from those addresses (skewed so that a chunk's
// in-file offset and in-memory address agree modulo the page size, the
// page-aligned skew every gABI-conforming loader requires), and finally
// lays out every non-allocated chunk back-to-back after the last
// allocated one.
func doSetOsecOffsets(ctx *Context) uint64 {
	addr := target.ImageBase
	for _, chunk := range ctx.Chunks {
		if chunk.GetShdr().Flags&uint64(elf.SHF_ALLOC) == 0 {
			continue
		}
		if isTbss(chunk) {
			chunk.GetShdr().Addr = addr
			continue
		}
		addr = utils.AlignTo(addr, chunkAlignment(chunk))
		chunk.GetShdr().Addr = addr
		addr += chunk.GetShdr().Size
	}

	for i := 0; i < len(ctx.Chunks); {
		if !isTbss(ctx.Chunks[i]) {
			i++
			continue
		}
		addr := ctx.Chunks[i].GetShdr().Addr
		for ; i < len(ctx.Chunks) && isTbss(ctx.Chunks[i]); i++ {
			addr = utils.AlignTo(addr, chunkAlignment(ctx.Chunks[i]))
			ctx.Chunks[i].GetShdr().Addr = addr
			addr += ctx.Chunks[i].GetShdr().Size
		}
	}

	fileoff := uint64(0)
	i := 0
	for i < len(ctx.Chunks) && ctx.Chunks[i].GetShdr().Flags&uint64(elf.SHF_ALLOC) != 0 {
		first := ctx.Chunks[i]
		utils.Assert(first.GetShdr().Type != uint32(elf.SHT_NOBITS))

		fileoff = utils.AlignWithSkew(fileoff, chunkAlignment(first), first.GetShdr().Addr%chunkAlignment(first))

		for {
			ctx.Chunks[i].GetShdr().Offset = fileoff + ctx.Chunks[i].GetShdr().Addr - first.GetShdr().Addr
			i++

			if i >= len(ctx.Chunks) ||
				ctx.Chunks[i].GetShdr().Flags&uint64(elf.SHF_ALLOC) == 0 ||
				ctx.Chunks[i].GetShdr().Type == uint32(elf.SHT_NOBITS) {
				break
			}
			if ctx.Chunks[i].GetShdr().Addr < first.GetShdr().Addr {
				break
			}

			gap := ctx.Chunks[i].GetShdr().Addr - ctx.Chunks[i-1].GetShdr().Addr - ctx.Chunks[i-1].GetShdr().Size
			if gap >= target.PageSize {
				break
			}
		}

		fileoff = ctx.Chunks[i-1].GetShdr().Offset + ctx.Chunks[i-1].GetShdr().Size

		for i < len(ctx.Chunks) &&
			ctx.Chunks[i].GetShdr().Flags&uint64(elf.SHF_ALLOC) != 0 &&
			ctx.Chunks[i].GetShdr().Type == uint32(elf.SHT_NOBITS) {
			i++
		}
	}

	for ; i < len(ctx.Chunks); i++ {
		fileoff = utils.AlignTo(fileoff, ctx.Chunks[i].GetShdr().AddrAlign)
		ctx.Chunks[i].GetShdr().Offset = fileoff
		fileoff += ctx.Chunks[i].GetShdr().Size
	}

	return fileoff
}

// SetOsecOffsets runs doSetOsecOffsets to a fixed point: assigning
// addresses can change the program header count (a new PT_LOAD or
// PT_GNU_RELRO segment once alignment padding pushes a boundary), which
// changes ctx.Phdr's own size, which can in turn shift every address
// after it. Re-running until the phdr size stabilizes matches the
// teacher's own fixed-point approach.
func SetOsecOffsets(ctx *Context) uint64 {
	for {
		fileoff := doSetOsecOffsets(ctx)
		if ctx.Phdr == nil {
			return fileoff
		}
		size := ctx.Phdr.Shdr.Size
		ctx.Phdr.UpdateShdr(ctx)
		if size == ctx.Phdr.Shdr.Size {
			return fileoff
		}
	}
}
