// Package trace brackets pass boundaries with named scopes, mirroring
// mold's Timer RAII pattern without pulling in a timing or logging
// dependency the example corpus never shows. Enabled is off by default;
// flipping it on makes each Scope print its name and elapsed time to
// stderr when it closes, which is
// enough for a developer chasing down which pass a slow link spent time
// in without committing the pipeline to any particular logging library.
package trace

import (
	"fmt"
	"os"
	"time"
)

var Enabled = false

type scope struct {
	name  string
	start time.Time
}

// Scope marks entry to a named pass; call the returned func on exit.
//
//	defer trace.Scope("resolve_obj_symbols")()
func Scope(name string) func() {
	if !Enabled {
		return func() {}
	}
	s := &scope{name: name, start: time.Now()}
	return func() {
		fmt.Fprintf(os.Stderr, "coreld: %s: %s\n", s.name, time.Since(s.start))
	}
}
