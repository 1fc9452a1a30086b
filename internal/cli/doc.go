// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli holds the flag and logging conventions shared by the
// mark3 binaries.
package cli
