// Package errs accumulates recoverable diagnostics across a link so that a
// run surfaces every problem it finds rather than stopping at the first
// one, then fails the process at a checkpoint. Unrecoverable invariant
// violations still go through pkg/utils.Fatal.
package errs

import (
	"fmt"
	"os"
	"sync"
)

// Diagnostic is one reportable problem: a duplicate symbol, an unresolved
// reference, an incompatible input file.
type Diagnostic struct {
	File    string
	Symbol  string
	Message string
}

func (d *Diagnostic) String() string {
	switch {
	case d.File != "" && d.Symbol != "":
		return fmt.Sprintf("%s: %s: %s", d.File, d.Symbol, d.Message)
	case d.File != "":
		return fmt.Sprintf("%s: %s", d.File, d.Message)
	default:
		return d.Message
	}
}

// Sink collects diagnostics from any number of goroutines.
type Sink struct {
	mu   sync.Mutex
	errs []*Diagnostic
}

func (s *Sink) Add(d *Diagnostic) {
	s.mu.Lock()
	s.errs = append(s.errs, d)
	s.mu.Unlock()
}

func (s *Sink) Addf(file, symbol, format string, args ...any) {
	s.Add(&Diagnostic{File: file, Symbol: symbol, Message: fmt.Sprintf(format, args...)})
}

func (s *Sink) HasErrors() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs) > 0
}

func (s *Sink) Diagnostics() []*Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Diagnostic(nil), s.errs...)
}

// Checkpoint prints every diagnostic recorded so far, one line each, and
// exits the process with a non-zero status if any were recorded. It is a
// no-op when the sink is empty.
func (s *Sink) Checkpoint() {
	diags := s.Diagnostics()
	if len(diags) == 0 {
		return
	}
	for _, d := range diags {
		fmt.Fprintln(os.Stderr, "coreld: error:", d.String())
	}
	os.Exit(1)
}
