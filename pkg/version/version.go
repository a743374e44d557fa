// Package version carries build metadata injected with -ldflags -X.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set at link time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Resolved returns Version, falling back to the module version recorded
// by `go install` when no ldflags were given.
func Resolved() string {
	if Version != "dev" {
		return Version
	}

	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	return Version
}

// String formats the full build description.
func String() string {
	return fmt.Sprintf("jestify %s (commit %s, built %s)", Resolved(), Commit, Date)
}
