// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata injected at link time, for example:
//
//	go build -ldflags "-X freqmeter/pkg/build.buildName=freqmeter \
//	  -X freqmeter/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds run with the defaults.
package build

import "fmt"

// Description is the one-line summary shown by the CLI.
const Description = "Real-time audio spectrum meter rendering SVG paths"

// Info is the build metadata of the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String formats the metadata for `--version`.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Time)
}

// Package-level variables populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = defaultInfo()
)

func defaultInfo() *Info {
	return &Info{
		Name:        "freqmeter",
		Description: Description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize copies the ldflags variables into the build metadata. It
// returns an error naming the first missing flag and leaves the defaults in
// place in that case.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build metadata.
func GetBuildFlags() *Info {
	return buildFlags
}
