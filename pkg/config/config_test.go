package config

import "testing"

func TestDefault(t *testing.T) {
	c := Default()
	if c.PageSize == 0 {
		t.Fatalf("page size not resolved")
	}
	if c.ImageBase != 0x200000 {
		t.Fatalf("got image base %#x, want 0x200000", c.ImageBase)
	}
	if !c.GCSections {
		t.Fatalf("GCSections should default on")
	}
}
