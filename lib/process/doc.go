// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the exit path shared by the mark3 binaries.
//
// Every main is a one-liner around run() error; a non-nil error goes
// to [Fatal], which prints "error: ..." to stderr and exits 1. The
// structured logger may not exist yet when run fails, so Fatal writes
// directly.
package process
