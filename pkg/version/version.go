// Package version reports the build of the topicsearch binary.
package version

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X github.com/Aman-CERP/topicsearch/pkg/version.Version=v0.3.0" and friends.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// BuildInfo is the JSON shape of `topicsearch version --json`.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetInfo returns the build of the running binary.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// String is the one-line form printed by `topicsearch version`.
func String() string {
	return fmt.Sprintf("topicsearch %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, runtime.Version())
}

// Short returns the bare version.
func Short() string {
	return Version
}

// UserAgent is sent on requests to embedding and classifier backends.
func UserAgent() string {
	return fmt.Sprintf("topicsearch/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
