// Package buildinfo carries build-time version metadata stamped by the linker.
package buildinfo

var (
	// Version is the semantic version of this build.
	Version = "dev"
	// Commit is the VCS revision the binary was built from.
	Commit = "none"
	// BuildDate is the UTC timestamp of the build.
	BuildDate = "unknown"
)
