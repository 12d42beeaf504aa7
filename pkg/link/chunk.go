// Package link implements the core pipeline: symbol resolution, COMDAT
// deduplication, section merging and binning, relocation scanning,
// synthetic section construction, versioning, layout, and synthetic
// symbol fixing. It operates on the parsed types from pkg/inputfile.
package link

import "github.com/coreld/coreld/pkg/target"

const (
	ChunkKindHeader = iota
	ChunkKindOutputSection
	ChunkKindSynthetic
)

// Chunker is any piece of the final image: a header, an output section
// collecting input sections, or a synthetic section the linker generates
// itself (.got, .plt, .dynsym, ...).
type Chunker interface {
	Kind() int
	GetShdr() *target.Shdr
	GetName() string
	GetShndx() int64
	SetShndx(int64)
	GetExtraAddrAlign() int64
	SetExtraAddrAlign(int64)
	UpdateShdr(ctx *Context)
	CopyBuf(ctx *Context)

	// ChunkAddr satisfies inputfile.AddressableChunk so a Symbol can
	// point directly at any Chunker as its OutputChunk.
	ChunkAddr() uint64
}

// Chunk is the common base every concrete chunk type embeds.
type Chunk struct {
	Name           string
	Shdr           target.Shdr
	Shndx          int64
	ExtraAddrAlign int64
}

func NewChunk() Chunk {
	return Chunk{Shdr: target.Shdr{AddrAlign: 1}}
}

func (c *Chunk) Kind() int                        { return ChunkKindSynthetic }
func (c *Chunk) GetShdr() *target.Shdr             { return &c.Shdr }
func (c *Chunk) GetName() string                   { return c.Name }
func (c *Chunk) GetShndx() int64                   { return c.Shndx }
func (c *Chunk) SetShndx(a int64)                  { c.Shndx = a }
func (c *Chunk) GetExtraAddrAlign() int64          { return c.ExtraAddrAlign }
func (c *Chunk) SetExtraAddrAlign(a int64)         { c.ExtraAddrAlign = a }
func (c *Chunk) UpdateShdr(ctx *Context)           {}
func (c *Chunk) CopyBuf(ctx *Context)              {}
func (c *Chunk) ChunkAddr() uint64                 { return c.Shdr.Addr }
