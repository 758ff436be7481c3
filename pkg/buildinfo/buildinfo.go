// Package buildinfo reports version information about the running binary,
// grounded on the teacher's pkg/buildinfo (GitInfo/Version set via -ldflags
// -X, surfaced through a single Summary() string); the djpeg/testing-linked
// hooks that are specific to Perkeep's image pipeline are dropped, since no
// component of this solver loads an equivalent optional codec.
package buildinfo

// GitInfo is either empty or the git hash of the commit this binary was
// built from, set with:
//
//	go build -ldflags="-X tiersolve.dev/pkg/buildinfo.GitInfo=$(git rev-parse HEAD)"
var GitInfo string

// Version is a string like "0.1.0", set the same way as GitInfo.
var Version string

// Summary returns the version and/or git hash of this binary, or "unknown"
// if neither linker flag was set.
func Summary() string {
	switch {
	case Version != "" && GitInfo != "":
		return Version + ", " + GitInfo
	case GitInfo != "":
		return GitInfo
	case Version != "":
		return Version
	default:
		return "unknown"
	}
}
