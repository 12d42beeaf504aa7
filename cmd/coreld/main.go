// Command coreld links ELF64 x86-64 object files and archives into an
// executable or shared object, the way a conventional Unix linker's
// command line works: positional arguments name inputs, -l/-L resolve
// against a library search path, and -o names the output.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/coreld/coreld/pkg/config"
	"github.com/coreld/coreld/pkg/link"
	"github.com/coreld/coreld/pkg/utils"
)

var version = "dev"

func main() {
	cfg := config.Default()
	var libraryPaths []string

	remaining := parseArgs(cfg, &libraryPaths, os.Args[1:])

	ctx := link.NewContext(cfg)
	buf := link.Run(ctx, libraryPaths, remaining)

	out, err := os.OpenFile(ctx.Arg.Output, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0777)
	utils.MustNo(err)
	defer out.Close()

	_, err = out.Write(buf)
	utils.MustNo(err)
}

// parseArgs walks the GNU ld-style command line, filling in cfg and
// libraryPaths as it goes and returning the leftover positional
// arguments (object/archive paths and "-lfoo" references) for
// link.Run's input reader.
func parseArgs(cfg *config.Config, libraryPaths *[]string, args []string) []string {
	dashes := func(name string) []string {
		if len(name) == 1 {
			return []string{"-" + name}
		}
		return []string{"-" + name, "--" + name}
	}

	var remaining []string
	var arg string

	readArg := func(name string) bool {
		for _, opt := range dashes(name) {
			if args[0] == opt {
				if len(args) == 1 {
					utils.Fatal(fmt.Sprintf("option -%s: argument missing", name))
				}
				arg = args[1]
				args = args[2:]
				return true
			}

			prefix := opt
			if len(name) > 1 {
				prefix += "="
			}
			if strings.HasPrefix(args[0], prefix) {
				arg = args[0][len(prefix):]
				args = args[1:]
				return true
			}
		}
		return false
	}

	readFlag := func(name string) bool {
		for _, opt := range dashes(name) {
			if args[0] == opt {
				args = args[1:]
				return true
			}
		}
		return false
	}

	for len(args) > 0 {
		switch {
		case readFlag("help"):
			fmt.Printf("Usage: coreld [options] file...\n")
			os.Exit(0)
		case readFlag("v") || readFlag("version"):
			fmt.Printf("coreld %s\n", version)
			os.Exit(0)
		case readArg("o") || readArg("output"):
			cfg.Output = arg
		case readArg("soname") || readArg("h"):
			cfg.Soname = arg
		case readArg("L") || readArg("library-path"):
			*libraryPaths = append(*libraryPaths, arg)
		case readArg("l"):
			remaining = append(remaining, "-l"+arg)
		case readArg("dynamic-linker"):
			cfg.DynamicLinker = arg
		case readArg("exclude-libs"):
			cfg.ExcludeLibs = append(cfg.ExcludeLibs, strings.Split(arg, ",")...)
		case readArg("u") || readArg("undefined"):
			cfg.Undefined = append(cfg.Undefined, arg)
		case readFlag("shared") || readFlag("Bshareable"):
			cfg.Shared = true
		case readFlag("export-dynamic") || readFlag("E"):
			cfg.ExportDynamic = true
		case readFlag("Bsymbolic"):
			cfg.Bsymbolic = true
		case readFlag("Bsymbolic-functions"):
			cfg.BsymbolicFunctions = true
		case readFlag("eh-frame-hdr"):
			cfg.EhFrameHdr = true
		case readFlag("gc-sections"):
			cfg.GCSections = true
		case readFlag("no-gc-sections"):
			cfg.GCSections = false
		case readArg("hash-style"):
			switch arg {
			case "sysv":
				cfg.HashStyleSysv, cfg.HashStyleGnu = true, false
			case "gnu":
				cfg.HashStyleSysv, cfg.HashStyleGnu = false, true
			case "both":
				cfg.HashStyleSysv, cfg.HashStyleGnu = true, true
			default:
				utils.Fatal("unknown -hash-style argument: " + arg)
			}
		case readArg("version-script"):
			cfg.VersionDefinitions = append(cfg.VersionDefinitions, arg)
		case readArg("m"):
			if arg != "elf_x86_64" {
				utils.Fatal("unsupported -m argument: " + arg + " (only elf_x86_64 is supported)")
			}
		case readArg("sysroot"), readArg("plugin"), readArg("plugin-opt"),
			readArg("build-id"):
			// Ignored; no effect on the x86-64 pipeline.
		case readFlag("static") || readFlag("as-needed") || readFlag("start-group") ||
			readFlag("end-group") || readFlag("s") || readFlag("no-relax") ||
			readFlag("fatal-warnings") || readFlag("no-undefined"):
			// Ignored.
		default:
			if args[0][0] == '-' {
				utils.Fatal("unknown command line option: " + args[0])
			}
			remaining = append(remaining, args[0])
			args = args[1:]
		}
	}

	for i, path := range *libraryPaths {
		(*libraryPaths)[i] = filepath.Clean(path)
	}

	return remaining
}
