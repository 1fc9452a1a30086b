// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds channel helpers shared by the package tests.
//
// Tests drive time with clock.Fake, so the only wall-clock waits in
// the suite are the timeouts here, which turn a hung goroutine into a
// test failure instead of a stuck run.
package testutil
