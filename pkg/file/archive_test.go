package file

import (
	"bytes"
	"fmt"
	"testing"
)

// buildArMember renders one ar(1) member header+body, short-filename form.
func buildArMember(name string, body []byte) []byte {
	var hdr ArHdr
	copy(hdr.Name[:], name+"/")
	for i := len(name) + 1; i < len(hdr.Name); i++ {
		hdr.Name[i] = ' '
	}
	fillSpaces(hdr.Date[:])
	fillSpaces(hdr.Uid[:])
	fillSpaces(hdr.Gid[:])
	fillSpaces(hdr.Mode[:])
	sizeStr := fmt.Sprintf("%-10d", len(body))
	copy(hdr.Size[:], sizeStr)
	hdr.Fmag[0], hdr.Fmag[1] = '`', '\n'

	buf := &bytes.Buffer{}
	buf.Write(hdr.Name[:])
	buf.Write(hdr.Date[:])
	buf.Write(hdr.Uid[:])
	buf.Write(hdr.Gid[:])
	buf.Write(hdr.Mode[:])
	buf.Write(hdr.Size[:])
	buf.Write(hdr.Fmag[:])
	buf.Write(body)
	if len(body)%2 == 1 {
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func fillSpaces(b []byte) {
	for i := range b {
		b[i] = ' '
	}
}

func TestReadArchiveMembers(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("!<arch>\n")
	buf.Write(buildArMember("a.o", []byte("AAAA")))
	buf.Write(buildArMember("b.o", []byte("BBBBB")))

	f := &File{Name: "libtest.a", Contents: buf.Bytes()}
	members := ReadArchiveMembers(f)

	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
	if members[0].Name != "a.o" || string(members[0].Contents) != "AAAA" {
		t.Fatalf("member 0 = %q %q", members[0].Name, members[0].Contents)
	}
	if members[1].Name != "b.o" || string(members[1].Contents) != "BBBBB" {
		t.Fatalf("member 1 = %q %q", members[1].Name, members[1].Contents)
	}
	if ArchiveBasename(members[0]) != "libtest.a" {
		t.Fatalf("got archive basename %q", ArchiveBasename(members[0]))
	}
}
