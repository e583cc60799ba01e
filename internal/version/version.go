// Package version provides centralized version information for the
// textchunking application.
//
// The version variables are set during build using ldflags:
//
//	-ldflags "-X textchunking/internal/version.version=v1.0.0 -X textchunking/internal/version.commit=abc123 -X textchunking/internal/version.buildTime=2025-01-01T00:00:00Z"
package version

import (
	"fmt"
	"strings"
)

// These variables are set via ldflags during build.
//
//nolint:gochecknoglobals // Required for build-time injection via ldflags.
var (
	version   string
	commit    string
	buildTime string
)

// ApplicationName is the name displayed in version output.
const ApplicationName = "TextChunking CLI"

// Default values used when version information is not available.
const (
	DefaultVersion   = "dev"
	DefaultCommit    = "unknown"
	DefaultBuildTime = "unknown"
)

// Info holds the resolved version information.
type Info struct {
	Version   string
	Commit    string
	BuildTime string
}

// Get returns the version information, falling back to defaults for unset
// fields.
func Get() Info {
	info := Info{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
	if info.Version == "" {
		info.Version = DefaultVersion
	}
	if info.Commit == "" {
		info.Commit = DefaultCommit
	}
	if info.BuildTime == "" {
		info.BuildTime = DefaultBuildTime
	}
	return info
}

// Short returns just the version number.
func (i Info) Short() string {
	return i.Version
}

// String returns the full multi-line version output.
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", ApplicationName)
	fmt.Fprintf(&b, "Version: %s\n", i.Version)
	fmt.Fprintf(&b, "Commit: %s\n", i.Commit)
	fmt.Fprintf(&b, "Built: %s\n", i.BuildTime)
	return b.String()
}
