package build

import "fmt"

// Version components. Overridden at link time via -ldflags for release
// builds.
const (
	appMajor uint = 0
	appMinor uint = 1
	appPatch uint = 0

	// appPreRelease marks the version as a development build when
	// non-empty.
	appPreRelease = "beta"
)

// Commit is the full git commit hash the binary was built from, set via
// -ldflags.
var Commit string

// Version returns the application version as a properly formed string.
func Version() string {
	version := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)

	if appPreRelease != "" {
		version = fmt.Sprintf("%s-%s", version, appPreRelease)
	}

	return version
}
