// Package file reads raw input files and walks archive (ar) members,
// independent of what kind of ELF payload those members turn out to hold.
package file

import (
	"os"
	"path/filepath"

	"github.com/coreld/coreld/pkg/target"
	"github.com/coreld/coreld/pkg/utils"
)

// File is a raw byte blob read off disk: either a standalone object/DSO or
// an archive that ReadArchiveMembers will expand into more Files.
type File struct {
	Name     string
	Contents []byte

	// Parent is set on archive members, pointing back at the archive File
	// they were extracted from. ArchiveBasename uses it to find the
	// originating archive's basename for exclude_libs matching.
	Parent *File
}

func MustNewFile(filename string) *File {
	contents, err := os.ReadFile(filename)
	utils.MustNo(err)
	return &File{Name: filename, Contents: contents}
}

// ArchiveBasename returns the basename of the archive a member was
// extracted from ("libfoo.a" for a member of /usr/lib/libfoo.a), or "" if
// f was not extracted from an archive.
func ArchiveBasename(f *File) string {
	if f.Parent == nil {
		return ""
	}
	return filepath.Base(f.Parent.Name)
}

// FindLibrary resolves "-lfoo" against a search path list the way a Unix
// linker does: libfoo.so first (unless static linking is forced), then
// libfoo.a.
func FindLibrary(paths []string, name string, preferStatic bool) *File {
	tryOpen := func(path string) *File {
		contents, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		return &File{Name: path, Contents: contents}
	}

	exts := []string{".so", ".a"}
	if preferStatic {
		exts = []string{".a", ".so"}
	}

	for _, dir := range paths {
		stem := filepath.Join(dir, "lib"+name)
		for _, ext := range exts {
			if f := tryOpen(stem + ext); f != nil {
				return f
			}
		}
	}
	return nil
}

// CheckCompatible aborts the link if f's ELF machine type does not match
// this linker's pinned target.
func CheckCompatible(f *File) {
	if !target.IsCompatible(f.Contents) {
		utils.Fatal("incompatible file: " + f.Name)
	}
}
