// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metastream

import (
	"encoding/binary"
	"log/slog"
)

type options struct {
	order  binary.ByteOrder
	logger *slog.Logger
}

// Option configures a Parser or Writer.
type Option func(*options)

// WithByteOrder sets the byte order of tokens and numeric fields. The
// default is little-endian, the order of the targets the stream is
// generated for.
func WithByteOrder(order binary.ByteOrder) Option {
	return func(o *options) { o.order = order }
}

// WithLogger sets the logger that receives resynchronization and
// end-of-stream diagnostics at debug level. Writers ignore it.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func buildOptions(opts []Option) options {
	built := options{
		order:  binary.LittleEndian,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&built)
	}
	return built
}
