package link

import "github.com/coreld/coreld/pkg/utils"

// ApplyExcludeLibs flags every archive-member object named by
// -exclude-libs (or every archive member at all, if the list contains
// "ALL") so ComputeImportExport later refuses to export its symbols. Must
// run once every object's ArchiveName is known, before export decisions
// are made.
func ApplyExcludeLibs(ctx *Context) {
	if len(ctx.Arg.ExcludeLibs) == 0 {
		return
	}

	set := utils.NewMapSet[string]()
	for _, name := range ctx.Arg.ExcludeLibs {
		set.Add(name)
	}

	for _, obj := range ctx.Objs {
		if obj.ArchiveName == "" {
			continue
		}
		if set.Contains("ALL") || set.Contains(obj.ArchiveName) {
			obj.ExcludeLibs = true
		}
	}
}
