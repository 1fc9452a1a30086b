// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracedecode turns flushed ring-buffer bytes back into log
// events. [Decoder] finds frames in a byte stream, tolerating the torn
// record an overrun leaves at the start of a flush and frames split
// across reads. [Render] joins a decoded record with a symbol index and
// formats its arguments with the call site's C format string.
package tracedecode
