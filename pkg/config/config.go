// Package config holds the option table the core pipeline reads its
// policy decisions from, plus the OS page-size lookup Default performs
// before the driver constructs a link.Context.
package config

import "golang.org/x/sys/unix"

// BuildIDKind selects the .note.gnu.build-id generation strategy.
type BuildIDKind int8

const (
	BuildIDNone BuildIDKind = iota
	BuildIDFast
	BuildIDSha256
	BuildIDUUID
)

// VersionPattern maps a glob (or exact name) to the version index symbols
// matching it should be assigned, mirroring a version-script wildcard rule.
type VersionPattern struct {
	Pattern string
	VerNdx  uint16
}

type Config struct {
	Output string
	Soname string

	ImageBase uint64
	PageSize  uint64

	// ExcludeLibs holds archive basenames (or "ALL") whose members should
	// have exclude_libs visibility applied.
	ExcludeLibs []string
	Undefined   []string

	DynamicLinker string
	BuildID       BuildIDKind
	EhFrameHdr    bool

	HashStyleSysv bool
	HashStyleGnu  bool

	VersionDefinitions []string
	VersionPatterns    []VersionPattern

	GCSections bool

	Shared             bool
	ExportDynamic      bool
	Bsymbolic          bool
	BsymbolicFunctions bool
}

// Default returns a Config with the same baseline policy the teacher's
// ContextArg zero value implies (static executable, page-aligned at the
// conventional x86-64 Linux base), with the page size resolved from the
// running OS rather than hardcoded, falling back to the target package's
// constant when the OS call is unavailable (non-Linux, sandboxed, etc).
func Default() *Config {
	return &Config{
		Output:        "a.out",
		ImageBase:     0x200000,
		PageSize:      pageSize(),
		GCSections:    true,
		HashStyleSysv: true,
		HashStyleGnu:  true,
	}
}

func pageSize() uint64 {
	sz := unix.Getpagesize()
	if sz <= 0 {
		return 4096
	}
	return uint64(sz)
}
