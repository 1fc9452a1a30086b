// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/moslevin/mark3-logger/lib/config"
)

func newFlagSet(common *CommonFlags) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("mark3-test", pflag.ContinueOnError)
	common.AddFlags(flagSet)
	return flagSet
}

func TestParseVersion(t *testing.T) {
	t.Parallel()

	var common CommonFlags
	var stdout bytes.Buffer
	done, err := common.Parse(newFlagSet(&common), []string{"--version"}, "help text\n", &stdout)
	if err != nil || !done {
		t.Fatalf("Parse = %v, %v; want done", done, err)
	}
	if !strings.HasPrefix(stdout.String(), "mark3-test ") {
		t.Errorf("version output = %q", stdout.String())
	}
}

func TestParseHelp(t *testing.T) {
	t.Parallel()

	var common CommonFlags
	var stdout bytes.Buffer
	done, err := common.Parse(newFlagSet(&common), []string{"-h"}, "Usage: mark3-test\n", &stdout)
	if err != nil || !done {
		t.Fatalf("Parse = %v, %v; want done", done, err)
	}
	for _, fragment := range []string{"Usage: mark3-test", "--verbose", "--config"} {
		if !strings.Contains(stdout.String(), fragment) {
			t.Errorf("help output lacks %q:\n%s", fragment, stdout.String())
		}
	}
}

func TestParseRejectsUnknownFlag(t *testing.T) {
	t.Parallel()

	var common CommonFlags
	if _, err := common.Parse(newFlagSet(&common), []string{"--bogus"}, "", &bytes.Buffer{}); err == nil {
		t.Fatal("Parse accepted an unknown flag")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mark3.yaml")
	if err := os.WriteFile(path, []byte("buffer:\n  capacity: 2048\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv(config.EnvironmentVariable, "")
	common := CommonFlags{}
	cfg, err := common.LoadConfig()
	if err != nil || cfg.Buffer.Capacity != 512 {
		t.Fatalf("LoadConfig without a file = %+v, %v; want defaults", cfg, err)
	}

	t.Setenv(config.EnvironmentVariable, path)
	cfg, err = common.LoadConfig()
	if err != nil || cfg.Buffer.Capacity != 2048 {
		t.Fatalf("LoadConfig from environment = %+v, %v", cfg, err)
	}

	common.ConfigPath = filepath.Join(t.TempDir(), "absent.yaml")
	if _, err := common.LoadConfig(); err == nil {
		t.Error("LoadConfig accepted a missing --config file")
	}
}

func TestNewLoggerJSONWhenRedirected(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	logger := NewLogger(&stderr, false)
	logger.Debug("hidden")
	logger.Info("decode complete", "events", 3)

	var record map[string]any
	if err := json.Unmarshal(stderr.Bytes(), &record); err != nil {
		t.Fatalf("log output is not one JSON record: %v\n%s", err, stderr.String())
	}
	if record["msg"] != "decode complete" || record["events"] != float64(3) {
		t.Errorf("record = %v", record)
	}

	stderr.Reset()
	NewLogger(&stderr, true).Debug("shown")
	if !strings.Contains(stderr.String(), "shown") {
		t.Error("verbose logger dropped a debug message")
	}
}
