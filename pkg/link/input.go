package link

import (
	"github.com/coreld/coreld/pkg/file"
	"github.com/coreld/coreld/pkg/inputfile"
	"github.com/coreld/coreld/pkg/target"
	"github.com/coreld/coreld/pkg/utils"
)

// ReadInputFiles resolves every command-line input (a path, or a "-lfoo"
// library reference) into object files and DSOs attached to ctx, then
// assigns each its final file priority.
func ReadInputFiles(ctx *Context, libraryPaths []string, args []string) {
	for _, arg := range args {
		if name, ok := utils.RemovePrefix(arg, "-l"); ok {
			lib := file.FindLibrary(libraryPaths, name, ctx.Arg.Shared == false)
			if lib == nil {
				utils.Fatal("library not found: -l" + name)
			}
			ReadFile(ctx, lib)
		} else {
			ReadFile(ctx, file.MustNewFile(arg))
		}
	}

	if len(ctx.Objs) == 0 {
		utils.Fatal("no input files")
	}

	AssignFilePriorities(ctx)
}

// AssignFilePriorities groups files the way set_file_priority does: the
// internal file outranks everything (handled at its own creation), then
// non-archive objects in input order, then archive-member objects in
// input order, then DSOs in input order. No priority is assigned while
// files are read, because the final grouping can't be known until every
// archive member has been read; this pass numbers everything once that's
// settled, so a command line that
// interleaves plain objects and archives still resolves ties the same way
// a grouped command line would.
func AssignFilePriorities(ctx *Context) {
	next := ctx.FilePriority

	for _, obj := range ctx.Objs {
		if obj == ctx.InternalObj || obj.ArchiveName != "" {
			continue
		}
		obj.Priority = uint32(next)
		next++
	}
	for _, obj := range ctx.Objs {
		if obj == ctx.InternalObj || obj.ArchiveName == "" {
			continue
		}
		obj.Priority = uint32(next)
		next++
	}
	for _, dso := range ctx.Dsos {
		dso.Priority = uint32(next)
		next++
	}

	ctx.FilePriority = next
}

func ReadFile(ctx *Context, f *file.File) {
	if ctx.Visited.Contains(f.Name) {
		return
	}

	switch target.GetFileType(f.Contents) {
	case target.FileTypeObject:
		ctx.Objs = append(ctx.Objs, CreateObjectFile(ctx, f, ""))
	case target.FileTypeDso:
		ctx.Dsos = append(ctx.Dsos, CreateSharedFile(ctx, f))
	case target.FileTypeAr, target.FileTypeThinAr:
		for _, child := range file.ReadArchiveMembersAuto(f) {
			switch target.GetFileType(child.Contents) {
			case target.FileTypeObject:
				ctx.Objs = append(ctx.Objs, CreateObjectFile(ctx, child, f.Name))
			default:
				utils.Fatal("unsupported archive member type: " + child.Name)
			}
		}
		ctx.Visited.Add(f.Name)
	default:
		utils.Fatal("unknown file type: " + f.Name)
	}
}

func CreateObjectFile(ctx *Context, f *file.File, archiveName string) *inputfile.ObjectFile {
	file.CheckCompatible(f)

	inLib := len(archiveName) > 0
	obj := inputfile.NewObjectFile(f, inLib)
	obj.ArchiveName = archiveName
	obj.Parse(ctx)
	return obj
}

func CreateSharedFile(ctx *Context, f *file.File) *inputfile.SharedFile {
	file.CheckCompatible(f)

	dso := inputfile.NewSharedFile(f)
	dso.Parse(ctx)
	return dso
}
