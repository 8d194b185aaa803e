// Package buildinfo stores build-time metadata shared across packages.
package buildinfo

import "runtime/debug"

// Version is set via ldflags during build. Defaults to "dev".
var Version = "dev"

// Commit is the source revision, set via ldflags or read from the embedded
// VCS stamp.
var Commit = ""

// Revision returns Commit, falling back to the vcs.revision build setting.
func Revision() string {
	if Commit != "" {
		return Commit
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}

			return s.Value
		}
	}

	return "unknown"
}
