// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads configuration for the mark3 logger tools.
//
// Configuration comes from a single file named by the
// MARK3_LOGGER_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no search path and no per-field
// environment override: the file is the whole story. Tools that run
// without a file use [Default].
//
// The file format follows the extension: .yaml and .yml are YAML,
// .json and .jsonc are JSON with comments and trailing commas allowed.
//
// Path fields support ${VAR} and ${VAR:-default} expansion after
// loading. ${CONFIG_DIR} names the directory holding the config file,
// so a capture path can sit next to the config that produced it.
package config
