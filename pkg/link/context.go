package link

import (
	"github.com/coreld/coreld/pkg/config"
	"github.com/coreld/coreld/pkg/errs"
	"github.com/coreld/coreld/pkg/inputfile"
	"github.com/coreld/coreld/pkg/target"
	"github.com/coreld/coreld/pkg/utils"
)

// SymbolAux holds the per-symbol slots (GOT/PLT/TLS indices) that only
// exist once a symbol is known to need them; most symbols never do, so
// these live out-of-line in a sparse side table rather than bloating
// every Symbol.
type SymbolAux struct {
	GotIdx    int32
	GotTpIdx  int32
	PltIdx    int32
	TlsgdIdx  int32
	TlsdescIdx int32
	CopyrelIdx int32
}

// Context is the root of the link: the object/DSO vectors, the symbol
// table, every synthetic chunk, the output buffer, and the option table
// driving policy decisions.
type Context struct {
	Arg *config.Config
	Err *errs.Sink

	Symtab *inputfile.SymbolTable

	SymbolsAux []SymbolAux

	Objs []*inputfile.ObjectFile
	Dsos []*inputfile.SharedFile

	InternalObj *inputfile.ObjectFile

	Chunks []Chunker

	MergedSections []*MergedSection
	OutputSections []*OutputSection

	Ehdr *OutputEhdr
	Shdr *OutputShdr
	Phdr *OutputPhdr
	Got  *GotSection
	Plt  *PltSection
	Dynsym *DynsymSection
	Dynstr *DynstrSection
	Hash   *HashSection
	GnuHash *GnuHashSection
	Verdef  *VerdefSection
	Verneed *VerneedSection
	Versym  *VersymSection
	Dynbss  *DynbssSection
	DynbssRelro *DynbssSection

	Buf []byte

	FilePriority int64
	Visited      utils.MapSet[string]

	DefaultVersionIdx uint16

	TpAddr uint64

	__InitArrayStart    *inputfile.Symbol
	__InitArrayEnd      *inputfile.Symbol
	__FiniArrayStart    *inputfile.Symbol
	__FiniArrayEnd      *inputfile.Symbol
	__PreinitArrayStart *inputfile.Symbol
	__PreinitArrayEnd   *inputfile.Symbol
	__BssStart          *inputfile.Symbol
	__Ehdr              *inputfile.Symbol
	__Etext             *inputfile.Symbol
	__Edata             *inputfile.Symbol
	__End               *inputfile.Symbol
}

func NewContext(cfg *config.Config) *Context {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Context{
		Arg:               cfg,
		Err:               &errs.Sink{},
		Symtab:            inputfile.NewSymbolTable(),
		Visited:           utils.NewMapSet[string](),
		FilePriority: 10000,
		// An unversioned symbol binds at the output's default (global)
		// version; VER_NDX_LOCAL is reserved for one a version script's
		// "local:" stanza explicitly hides.
		DefaultVersionIdx: target.VER_NDX_GLOBAL,
	}
}

// InternSymbol satisfies inputfile.Resolver.
func (ctx *Context) InternSymbol(name string) *inputfile.Symbol {
	return ctx.Symtab.Intern(name)
}

// DefaultVersion satisfies inputfile.Resolver.
func (ctx *Context) DefaultVersion() uint16 { return ctx.DefaultVersionIdx }

// MergedSectionFor satisfies inputfile.Resolver.
func (ctx *Context) MergedSectionFor(name string, typ uint32, flags uint64) inputfile.FragmentInterner {
	return GetMergedSectionInstance(ctx, name, typ, flags)
}
