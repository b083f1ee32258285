// Package version carries build metadata injected with -ldflags, e.g.
// -X homework-watcher/internal/version.Version=v1.2.0.
package version

import "fmt"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info renders the build metadata, one field per line.
func Info() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s\n", Version, Commit, BuildDate)
}

// UserAgent is the default User-Agent for outbound API calls.
func UserAgent() string {
	return "hwwatcher/" + Version
}
