// Package version reports what binary is running. The variables are set
// with -ldflags "-X"; GitCommit falls back to the VCS stamp Go embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version   = "v0.0.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func init() {
	if GitCommit != "unknown" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			GitCommit = s.Value
		}
	}
}

// Info is the one-line banner printed by "hikari version".
func Info() string {
	return fmt.Sprintf("hikari %s (%s) built at %s with %s", Version, GitCommit, BuildTime, runtime.Version())
}
