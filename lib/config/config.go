// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/moslevin/mark3-logger/lib/capture"
	"github.com/moslevin/mark3-logger/lib/logbuf"
	"github.com/moslevin/mark3-logger/lib/tlv"
)

// EnvironmentVariable names the config file for Load.
const EnvironmentVariable = "MARK3_LOGGER_CONFIG"

// Config is the configuration shared by the mark3 tools.
type Config struct {
	// Target describes the device whose logs are decoded.
	Target TargetConfig `yaml:"target" json:"target"`

	// Buffer configures the simulated ring buffer.
	Buffer BufferConfig `yaml:"buffer" json:"buffer"`

	// Capture configures the file flushed ring bytes go to.
	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// Metadata is the build-time metadata stream.
	Metadata MetadataConfig `yaml:"metadata" json:"metadata"`

	// Symbols is the SQLite symbol store.
	Symbols SymbolsConfig `yaml:"symbols" json:"symbols"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// TargetConfig describes the device ABI.
type TargetConfig struct {
	// PointerSize is 2, 4 or 8 bytes. Default: 4
	PointerSize int `yaml:"pointer_size" json:"pointer_size"`

	// ByteOrder is "little" or "big". Default: little
	ByteOrder string `yaml:"byte_order" json:"byte_order"`
}

// BufferConfig configures the ring buffer.
type BufferConfig struct {
	// Capacity in bytes. Default: 512
	Capacity int `yaml:"capacity" json:"capacity"`

	// FlushInterval is the consumer's poll period as a Go duration.
	// Default: 100ms
	FlushInterval string `yaml:"flush_interval" json:"flush_interval"`
}

// CaptureConfig configures the capture file.
type CaptureConfig struct {
	// Path of the capture file. "-" writes a hex dump to stdout
	// instead. Default: mark3.capture
	Path string `yaml:"path" json:"path"`

	// Compression is none, lz4 or zstd. Default: lz4
	Compression string `yaml:"compression" json:"compression"`
}

// MetadataConfig locates the metadata stream.
type MetadataConfig struct {
	// Path of the raw stream. Default: logger.bin
	Path string `yaml:"path" json:"path"`
}

// SymbolsConfig locates the symbol store.
type SymbolsConfig struct {
	// Database is a SQLite path. Empty disables the store.
	Database string `yaml:"database" json:"database"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	// Address to serve /metrics on, such as "127.0.0.1:9464". Empty
	// disables the endpoint.
	Address string `yaml:"address" json:"address"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Target: TargetConfig{
			PointerSize: 4,
			ByteOrder:   "little",
		},
		Buffer: BufferConfig{
			Capacity:      512,
			FlushInterval: logbuf.DefaultFlushInterval.String(),
		},
		Capture: CaptureConfig{
			Path:        "mark3.capture",
			Compression: capture.CompressionLZ4.String(),
		},
		Metadata: MetadataConfig{
			Path: "logger.bin",
		},
	}
}

// Load loads the file named by MARK3_LOGGER_CONFIG. It fails if the
// variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of a config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path over the defaults, expands
// variables in path fields, and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	configDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolving config directory: %w", err)
	}
	cfg.expandVariables(map[string]string{"CONFIG_DIR": configDir})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch extension := strings.ToLower(filepath.Ext(path)); extension {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, c)
	case ".json", ".jsonc":
		return json.Unmarshal(jsonc.ToJSON(data), c)
	default:
		return fmt.Errorf("unsupported config extension %q (want .yaml, .yml, .json, or .jsonc)", extension)
	}
}

func (c *Config) expandVariables(vars map[string]string) {
	c.Capture.Path = expandVars(c.Capture.Path, vars)
	c.Metadata.Path = expandVars(c.Metadata.Path, vars)
	c.Symbols.Database = expandVars(c.Symbols.Database, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}. vars are consulted
// before the environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Layout(); err != nil {
		errs = append(errs, err)
	}
	if c.Buffer.Capacity < logbuf.FrameOverhead+tlv.HeaderSize {
		errs = append(errs, fmt.Errorf("buffer.capacity must be at least %d bytes, got %d",
			logbuf.FrameOverhead+tlv.HeaderSize, c.Buffer.Capacity))
	}
	if _, err := c.FlushInterval(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Compression(); err != nil {
		errs = append(errs, fmt.Errorf("capture.compression: %w", err))
	}
	if c.Capture.Path == "" {
		errs = append(errs, errors.New("capture.path is required"))
	}

	return errors.Join(errs...)
}

// Layout returns the target's wire layout.
func (c *Config) Layout() (tlv.Layout, error) {
	layout := tlv.Layout{PointerSize: c.Target.PointerSize}
	switch c.Target.ByteOrder {
	case "little", "":
		layout.ByteOrder = binary.LittleEndian
	case "big":
		layout.ByteOrder = binary.BigEndian
	default:
		return tlv.Layout{}, fmt.Errorf("target.byte_order must be little or big, got %q", c.Target.ByteOrder)
	}
	if err := layout.Validate(); err != nil {
		return tlv.Layout{}, fmt.Errorf("target: %w", err)
	}
	return layout, nil
}

// FlushInterval parses buffer.flush_interval.
func (c *Config) FlushInterval() (time.Duration, error) {
	if c.Buffer.FlushInterval == "" {
		return logbuf.DefaultFlushInterval, nil
	}
	interval, err := time.ParseDuration(c.Buffer.FlushInterval)
	if err != nil {
		return 0, fmt.Errorf("buffer.flush_interval: %w", err)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("buffer.flush_interval must be positive, got %s", interval)
	}
	return interval, nil
}

// Compression parses capture.compression.
func (c *Config) Compression() (capture.Compression, error) {
	return capture.ParseCompression(c.Capture.Compression)
}
