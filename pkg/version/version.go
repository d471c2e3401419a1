package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Set with -ldflags "-X github.com/kamikazebr/sentinel/pkg/version.Version=v1.2.0 ..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GitDirty  = ""
)

// Info is the build metadata of the running binary
type Info struct {
	Version   string
	Commit    string
	Dirty     bool
	BuildTime string
	GoVersion string
}

func Current() Info {
	return Info{
		Version:   Version,
		Commit:    GitCommit,
		Dirty:     GitDirty == "true",
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

func (i Info) commit() string {
	if i.Dirty {
		return i.Commit + "-dirty"
	}
	return i.Commit
}

// Short is the one-line banner, e.g.
// sentinel-server v1.2.0 (abc1234 2026-03-01T12:00:00Z)
func (i Info) Short(binary string) string {
	return fmt.Sprintf("%s %s (%s %s)", binary, i.Version, i.commit(), i.BuildTime)
}

// Detail is printed by `version -v`
func (i Info) Detail() string {
	tree := "clean"
	if i.Dirty {
		tree = "dirty"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Version:    %s\n", i.Version)
	fmt.Fprintf(&b, "Git commit: %s (%s)\n", i.Commit, tree)
	fmt.Fprintf(&b, "Built:      %s\n", i.BuildTime)
	fmt.Fprintf(&b, "Go version: %s", i.GoVersion)
	return b.String()
}

// LogAttrs returns slog key/value pairs for the startup line
func (i Info) LogAttrs() []any {
	return []any{"version", i.Version, "commit", i.commit(), "built", i.BuildTime}
}
