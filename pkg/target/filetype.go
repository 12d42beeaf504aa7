package target

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"unicode"
)

type FileType int8

const (
	FileTypeUnknown FileType = iota
	FileTypeEmpty
	FileTypeObject
	FileTypeDso
	FileTypeAr
	FileTypeThinAr
	FileTypeText
)

func CheckMagic(contents []byte) bool {
	return len(contents) >= 4 && bytes.Equal(contents[:4], []byte{0x7f, 'E', 'L', 'F'})
}

func GetFileType(contents []byte) FileType {
	if len(contents) == 0 {
		return FileTypeEmpty
	}

	if CheckMagic(contents) {
		et := elf.Type(binary.LittleEndian.Uint16(contents[16:]))
		switch et {
		case elf.ET_REL:
			return FileTypeObject
		case elf.ET_DYN:
			return FileTypeDso
		}
		return FileTypeUnknown
	}

	if bytes.HasPrefix(contents, []byte("!<arch>\n")) {
		return FileTypeAr
	}
	if bytes.HasPrefix(contents, []byte("!<thin>\n")) {
		return FileTypeThinAr
	}

	if isTextFile(contents) {
		return FileTypeText
	}

	return FileTypeUnknown
}

func isTextFile(contents []byte) bool {
	return len(contents) >= 4 &&
		unicode.IsPrint(rune(contents[0])) &&
		unicode.IsPrint(rune(contents[1])) &&
		unicode.IsPrint(rune(contents[2])) &&
		unicode.IsPrint(rune(contents[3]))
}

// IsCompatible reports whether contents was produced for this linker's
// pinned machine type (EM_X86_64, 64-bit).
func IsCompatible(contents []byte) bool {
	ft := GetFileType(contents)
	if ft != FileTypeObject && ft != FileTypeDso {
		return true
	}
	if contents[4] != byte(elf.ELFCLASS64) {
		return false
	}
	machine := binary.LittleEndian.Uint16(contents[18:])
	return machine == Machine
}
