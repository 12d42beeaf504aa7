package inputfile

import "sync"

// SymbolTable is the process-wide intern table mapping a symbol name to
// its single canonical Symbol. Lookups happen from many goroutines during
// parsing and resolution, so inserts are guarded by a mutex; once
// interning settles the table is read-mostly for the rest of the pipeline.
type SymbolTable struct {
	mu sync.Mutex
	m  map[string]*Symbol
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{m: make(map[string]*Symbol)}
}

// Intern returns the Symbol for name, creating it if this is the first
// reference seen anywhere in the link.
func (t *SymbolTable) Intern(name string) *Symbol {
	t.mu.Lock()
	defer t.mu.Unlock()
	if sym, ok := t.m[name]; ok {
		return sym
	}
	sym := NewSymbol(name)
	t.m[name] = sym
	return sym
}

func (t *SymbolTable) Lookup(name string) (*Symbol, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sym, ok := t.m[name]
	return sym, ok
}

func (t *SymbolTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}

// Range calls fn for every interned symbol. fn must not call back into
// the table.
func (t *SymbolTable) Range(fn func(*Symbol)) {
	t.mu.Lock()
	syms := make([]*Symbol, 0, len(t.m))
	for _, s := range t.m {
		syms = append(syms, s)
	}
	t.mu.Unlock()
	for _, s := range syms {
		fn(s)
	}
}
