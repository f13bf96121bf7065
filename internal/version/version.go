// Package version carries build metadata set with -ldflags "-X".
package version

import "runtime"

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GoVersion returns the toolchain the binary was built with.
func GoVersion() string {
	return runtime.Version()
}
