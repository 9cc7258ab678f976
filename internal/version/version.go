// Package version reports which docstream build is running.
package version

import (
	"fmt"
	"runtime/debug"
)

// Release builds set these with -ldflags -X.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns the line printed by -version. Commit and date fall back
// to the VCS stamp the go command embeds when they were not set at link
// time.
func String() string {
	commit, date := Commit, Date
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "none" && len(s.Value) >= 12 {
					commit = s.Value[:12]
				}
			case "vcs.time":
				if date == "unknown" {
					date = s.Value
				}
			}
		}
	}
	return fmt.Sprintf("%s (commit %s, built %s)", Version, commit, date)
}
