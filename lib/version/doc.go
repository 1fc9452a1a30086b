// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the mark3 binaries.
//
// [Version], [GitCommit] and [BuildTime] are set at link time:
//
//	go build -ldflags "-X github.com/moslevin/mark3-logger/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// They keep their development defaults in test runs.
package version
