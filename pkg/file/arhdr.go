package file

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/coreld/coreld/pkg/utils"
)

// ArHdr is the fixed 60-byte header preceding every ar(1) member.
type ArHdr struct {
	Name [16]byte
	Date [12]byte
	Uid  [6]byte
	Gid  [6]byte
	Mode [8]byte
	Size [10]byte
	Fmag [2]byte
}

func (a *ArHdr) startsWith(s string) bool {
	return len(s) <= len(a.Name) && string(a.Name[:len(s)]) == s
}

func (a *ArHdr) IsStrtab() bool { return a.startsWith("// ") }
func (a *ArHdr) IsSymtab() bool {
	return a.startsWith("/ ") || a.startsWith("/SYM64/ ")
}

// ReadName decodes a member's filename, consuming from ptr for the
// BSD-style long-filename case, following strTab for the SysV case, or
// reading inline for a short name.
func (a *ArHdr) ReadName(strTab []byte, ptr *[]byte) string {
	if a.startsWith("#1/") {
		nameLen, err := strconv.Atoi(strings.TrimSpace(string(a.Name[3:])))
		utils.MustNo(err)
		name := (*ptr)[:nameLen]
		*ptr = (*ptr)[nameLen:]
		if end := bytes.IndexByte(name, 0); end != -1 {
			name = name[:end]
		}
		return string(name)
	}

	if a.startsWith("/") {
		start, err := strconv.Atoi(strings.TrimSpace(string(a.Name[1:])))
		utils.MustNo(err)
		end := start + bytes.Index(strTab[start:], []byte("/\n"))
		return string(strTab[start:end])
	}

	if end := bytes.IndexByte(a.Name[:], '/'); end != -1 {
		return string(a.Name[:end])
	}
	return string(a.Name[:])
}

func (a *ArHdr) GetSize() int {
	sz, err := strconv.Atoi(strings.TrimSpace(string(a.Size[:])))
	utils.MustNo(err)
	return sz
}
