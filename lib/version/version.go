// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"io"
	"os"
	"runtime"
)

// Set via -ldflags at build time.
var (
	// Version is the release version.
	Version = "0.1.0-dev"

	// GitCommit is the short SHA of the build.
	GitCommit = "unknown"

	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// Info returns "version (commit, build time)" for --version output.
func Info() string {
	return fmt.Sprintf("%s (%s, %s)", Version, GitCommit, BuildTime)
}

// Fprint writes the --version line for the named binary to w,
// followed by the Go toolchain and platform.
func Fprint(w io.Writer, name string) {
	fmt.Fprintf(w, "%s %s\n  Go: %s\n  Platform: %s/%s\n",
		name, Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Print writes the --version output for name to stdout.
func Print(name string) {
	Fprint(os.Stdout, name)
}
