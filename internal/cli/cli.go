// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/moslevin/mark3-logger/lib/config"
	"github.com/moslevin/mark3-logger/lib/version"
)

// CommonFlags are registered by every binary.
type CommonFlags struct {
	ConfigPath  string
	Verbose     bool
	ShowVersion bool
	Help        bool
}

// AddFlags registers the common flags on flagSet.
func (f *CommonFlags) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.ConfigPath, "config", "", "config file (default: $"+config.EnvironmentVariable+" if set)")
	flagSet.BoolVarP(&f.Verbose, "verbose", "v", false, "log debug messages")
	flagSet.BoolVar(&f.ShowVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&f.Help, "help", "h", false, "show help")
}

// Parse parses args into flagSet. It returns done=true when --version
// or --help was handled and the binary should exit successfully.
func (f *CommonFlags) Parse(flagSet *pflag.FlagSet, args []string, help string, stdout io.Writer) (done bool, err error) {
	flagSet.SetOutput(io.Discard)
	if err := flagSet.Parse(args); err != nil {
		return false, err
	}
	if f.ShowVersion {
		version.Fprint(stdout, flagSet.Name())
		return true, nil
	}
	if f.Help {
		fmt.Fprint(stdout, help)
		fmt.Fprintln(stdout, "\nFlags:")
		flagSet.SetOutput(stdout)
		flagSet.PrintDefaults()
		return true, nil
	}
	return false, nil
}

// LoadConfig returns the file named by --config, then the file named
// by MARK3_LOGGER_CONFIG, then the defaults.
func (f *CommonFlags) LoadConfig() (*config.Config, error) {
	if f.ConfigPath != "" {
		return config.LoadFile(f.ConfigPath)
	}
	if os.Getenv(config.EnvironmentVariable) != "" {
		return config.Load()
	}
	return config.Default(), nil
}

// NewLogger returns a logger writing to stderr: text when stderr is a
// terminal, JSON lines otherwise. verbose lowers the level to debug.
func NewLogger(stderr io.Writer, verbose bool) *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		options.Level = slog.LevelDebug
	}
	if IsTerminal(stderr) {
		return slog.New(slog.NewTextHandler(stderr, options))
	}
	return slog.New(slog.NewJSONHandler(stderr, options))
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
