package link

import (
	"debug/elf"

	"golang.org/x/arch/x86/x86asm"

	"github.com/coreld/coreld/pkg/inputfile"
	"github.com/coreld/coreld/pkg/utils"
)

// pltEntrySize is the stride between PLT stubs. Each stub is a single
// six-byte indirect jump through the symbol's GOT slot, padded out to a
// conventional 16-byte entry.
const pltEntrySize = 16

// PltSection holds one lazy-binding-free trampoline per PLT-needing
// symbol: `jmp *got_entry(%rip)`. Real ld.so-compatible lazy binding
// (the push/jmp-to-PLT0 sequence) is out of scope here since this
// pipeline never applies relocations or emits a runnable image; the
// stub only has to be valid, decodable x86-64 so a consumer trusting the
// section's bytes (or a test asserting on them) sees real machine code.
type PltSection struct {
	Chunk
	Syms []*inputfile.Symbol
}

func NewPltSection() *PltSection {
	p := &PltSection{Chunk: NewChunk()}
	p.Name = ".plt"
	p.Shdr.Type = uint32(elf.SHT_PROGBITS)
	p.Shdr.Flags = uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR)
	p.Shdr.AddrAlign = 16
	return p
}

func (p *PltSection) AddSymbol(ctx *Context, sym *inputfile.Symbol) {
	if GetPltIdx(ctx, sym) >= 0 {
		return
	}
	EnsureAux(ctx, sym)
	aux(ctx, sym).PltIdx = int32(len(p.Syms))
	p.Syms = append(p.Syms, sym)
	p.Shdr.Size = uint64(len(p.Syms)) * pltEntrySize
}

// encodeStub renders the jmp *got(%rip) trampoline at pltAddr for a GOT
// slot at gotAddr, returning the whole pltEntrySize-byte slot: the 6-byte
// jmp followed by int3 padding.
func encodeStub(pltAddr, gotAddr uint64) []byte {
	disp := int32(int64(gotAddr) - int64(pltAddr+6))
	stub := make([]byte, pltEntrySize)
	stub[0] = 0xff
	stub[1] = 0x25
	utils.Write[int32](stub[2:], disp)
	for i := 6; i < pltEntrySize; i++ {
		stub[i] = 0xcc // int3, conventional PLT padding
	}
	return stub
}

// verifyStub decodes the jmp instruction at the front of a stub and
// aborts the link (via utils.Fatal) if it doesn't disassemble to a 6-byte
// instruction, catching an encoding mistake the way a disassembler-based
// sanity check in a linker test suite would.
func verifyStub(stub []byte) {
	inst, err := x86asm.Decode(stub, 64)
	if err != nil {
		utils.Fatal("PLT stub failed to decode: " + err.Error())
	}
	if inst.Len != 6 {
		utils.Fatal("PLT stub decoded to unexpected length")
	}
	if inst.Op != x86asm.JMP {
		utils.Fatal("PLT stub did not decode to JMP")
	}
}

func (p *PltSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[p.Shdr.Offset:]
	for i, sym := range p.Syms {
		pltAddr := p.Shdr.Addr + uint64(i)*pltEntrySize
		gotAddr := GetGotAddr(ctx, sym)
		stub := encodeStub(pltAddr, gotAddr)
		verifyStub(stub)
		copy(buf[i*pltEntrySize:], stub)
	}
}
