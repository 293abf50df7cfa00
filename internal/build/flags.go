// SPDX-License-Identifier: MIT
package build

import (
	"errors"
	"fmt"
)

// ldFlags holds build-time information that is injected during compilation.
// The fields are populated via -ldflags during the build process, for example:
//
//	go build -ldflags "-X wavviz/internal/build.buildVersion=0.1.0 -X wavviz/internal/build.buildCommit=$(git rev-parse --short HEAD)"
type ldFlags struct {
	Name        string // Application name
	Description string // One-line description for help output
	Time        string // Build timestamp
	Commit      string // Git commit hash
	Version     string // Semantic version
}

// Package-level variables for build information.
// These are populated by -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:        "wavviz",
		Description: "Play a WAV file and watch its spectrum or waveform",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize copies build information from the ldflags variables into the
// build flags. Flags that were not injected keep their development defaults
// and are reported in the returned error.
func Initialize() error {
	var missing []error
	set := func(dst *string, val, name string) {
		if val == "" {
			missing = append(missing, fmt.Errorf("%s is not set", name))
			return
		}
		*dst = val
	}

	set(&buildFlags.Name, buildName, "BuildName")
	set(&buildFlags.Time, buildTime, "BuildTime")
	set(&buildFlags.Commit, buildCommit, "BuildCommit")
	set(&buildFlags.Version, buildVersion, "BuildVersion")

	return errors.Join(missing...)
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// VersionString is the text printed by --version.
func (f *ldFlags) VersionString() string {
	return fmt.Sprintf("%s (commit %s, built %s)", f.Version, f.Commit, f.Time)
}
