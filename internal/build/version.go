package build

import (
	"runtime"
	"strings"
)

// These are meant to be overridden at build time with -ldflags
// "-X github.com/roasbeef/prreview/internal/build.Commit=...".
var (
	// Commit is the git commit hash the binary was built from.
	Commit string

	// CommitHash is an alternate commit var some build pipelines set
	// instead of Commit.
	CommitHash string

	// RawTags is a comma-separated list of build tags, set via ldflags.
	RawTags string

	// appVersion is the semantic version of this build.
	appVersion = "0.1.0"
)

// GoVersion is the Go toolchain version used to build the binary.
var GoVersion = runtime.Version()

// Version returns the semantic version string for this build.
func Version() string {
	return appVersion
}

// Tags splits RawTags into individual build tag names.
func Tags() []string {
	if RawTags == "" {
		return nil
	}
	return strings.Split(RawTags, ",")
}
