package file

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/coreld/coreld/pkg/target"
	"github.com/coreld/coreld/pkg/utils"
)

// ReadArchiveMembers expands a regular ar(1) archive into its member
// Files, skipping the symbol table and the extended-name string table.
func ReadArchiveMembers(f *File) []*File {
	const hdrSize = int(unsafe.Sizeof(ArHdr{}))

	begin := 0
	data := begin + 8 // skip "!<arch>\n"
	var strTab []byte
	var files []*File

	for begin+len(f.Contents)-data >= 2 {
		if (data-begin)%2 == 1 {
			data++
		}

		hdr := &ArHdr{}
		err := binary.Read(bytes.NewReader(f.Contents[data:]), binary.LittleEndian, hdr)
		utils.MustNo(err)
		body := data + hdrSize
		data = body + hdr.GetSize()

		if hdr.IsStrtab() {
			strTab = f.Contents[body:data]
			continue
		}
		if hdr.IsSymtab() {
			continue
		}

		ptr := f.Contents[body:]
		name := hdr.ReadName(strTab, &ptr)
		if name == "__.SYMDEF" || name == "__.SYMDEF SORTED" {
			continue
		}

		files = append(files, &File{
			Name:     name,
			Contents: f.Contents[body:data],
			Parent:   f,
		})
	}

	return files
}

// ReadThinArchiveMembers expands a thin archive (!<thin>\n magic) into its
// member Files. A thin archive's member bodies are not inlined; each
// header is followed only by the next header, and the member's real
// content must be read from disk relative to the archive's directory.
func ReadThinArchiveMembers(f *File) []*File {
	const hdrSize = int(unsafe.Sizeof(ArHdr{}))

	begin := 0
	data := begin + 8
	var strTab []byte
	var files []*File
	dir := filepath.Dir(f.Name)

	for begin+len(f.Contents)-data >= 2 {
		if (data-begin)%2 == 1 {
			data++
		}

		hdr := &ArHdr{}
		err := binary.Read(bytes.NewReader(f.Contents[data:]), binary.LittleEndian, hdr)
		utils.MustNo(err)
		body := data + hdrSize
		size := hdr.GetSize()

		if hdr.IsStrtab() {
			strTab = f.Contents[body : body+size]
			data = body
			continue
		}
		if hdr.IsSymtab() {
			data = body
			continue
		}

		ptr := f.Contents[body:]
		name := hdr.ReadName(strTab, &ptr)
		data = body

		contents, err := os.ReadFile(filepath.Join(dir, name))
		utils.MustNo(err)
		files = append(files, &File{Name: name, Contents: contents, Parent: f})
	}

	return files
}

// ReadArchiveMembersAuto dispatches on f's sniffed file type.
func ReadArchiveMembersAuto(f *File) []*File {
	switch target.GetFileType(f.Contents) {
	case target.FileTypeAr:
		return ReadArchiveMembers(f)
	case target.FileTypeThinAr:
		return ReadThinArchiveMembers(f)
	default:
		utils.Fatal("not an archive: " + f.Name)
		return nil
	}
}
