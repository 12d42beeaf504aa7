package errs

import "testing"

func TestSinkAccumulates(t *testing.T) {
	var s Sink
	if s.HasErrors() {
		t.Fatalf("empty sink reports errors")
	}
	s.Addf("a.o", "foo", "multiple definition")
	s.Addf("b.o", "", "unknown relocation")
	if !s.HasErrors() {
		t.Fatalf("sink with entries reports no errors")
	}
	if len(s.Diagnostics()) != 2 {
		t.Fatalf("got %d diagnostics, want 2", len(s.Diagnostics()))
	}
}

func TestDiagnosticString(t *testing.T) {
	d := &Diagnostic{File: "a.o", Symbol: "foo", Message: "multiple definition"}
	if got, want := d.String(), "a.o: foo: multiple definition"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
