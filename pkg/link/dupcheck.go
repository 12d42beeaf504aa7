package link

import (
	"github.com/coreld/coreld/pkg/inputfile"
	"github.com/coreld/coreld/pkg/parallel"
)

// CheckDuplicateSymbols walks every object's global symbol table slots in
// parallel, looking for a strong, non-COMMON definition of a name some
// other file won the one-definition-rule election for. Each one found is
// an ODR violation (two objects both claim to define the same strong
// symbol) and gets recorded in ctx.Err rather than silently resolved by
// priority.
func CheckDuplicateSymbols(ctx *Context) {
	parallel.ForEach(ctx.Objs, func(obj *inputfile.ObjectFile) {
		checkObjectDuplicates(ctx, obj)
	})
}

func checkObjectDuplicates(ctx *Context, obj *inputfile.ObjectFile) {
	for i := obj.FirstGlobal; i < int64(len(obj.ElfSyms)); i++ {
		esym := &obj.ElfSyms[i]
		if esym.IsUndef() || esym.IsCommon() || esym.IsWeak() {
			continue
		}

		sym := obj.Symbols[i]
		if sym.File == obj || sym.File == nil {
			continue
		}

		if !esym.IsAbs() {
			if obj.GetSection(esym, i) == nil {
				continue
			}
		}

		owner := "<unknown>"
		if sym.File != nil {
			owner = sym.File.File.Name
		}
		ctx.Err.Addf(obj.File.Name, sym.Name, "duplicate definition, already defined in %s", owner)
	}
}
