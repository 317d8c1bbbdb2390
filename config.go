// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package xapi

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-hclog"
)

// Config holds connection settings for one venue account.
type Config struct {
	CommandURL string
	StreamURL  string
	Transport  string

	UserID   string
	Password string

	DialTimeout    time.Duration
	RequestTimeout time.Duration
	ReadLimit      int64

	LogLevel string
	LogJSON  bool
}

// DefaultConfig returns settings for the real-money endpoints.
func DefaultConfig() Config {
	return Config{
		CommandURL:     "wss://ws.xtb.com/real",
		StreamURL:      "wss://ws.xtb.com/realStream",
		Transport:      DefaultTransport,
		DialTimeout:    10 * time.Second,
		RequestTimeout: 30 * time.Second,
		ReadLimit:      1 << 20,
		LogLevel:       "info",
	}
}

// DemoConfig returns settings for the demo endpoints.
func DemoConfig() Config {
	cfg := DefaultConfig()
	cfg.CommandURL = "wss://ws.xtb.com/demo"
	cfg.StreamURL = "wss://ws.xtb.com/demoStream"
	return cfg
}

// fileConfig is the TOML key mapping onto Config.
type fileConfig struct {
	CommandURL     string `toml:"command_url"`
	StreamURL      string `toml:"stream_url"`
	Transport      string `toml:"transport"`
	UserID         string `toml:"user_id"`
	Password       string `toml:"password"`
	DialTimeout    string `toml:"dial_timeout"`
	RequestTimeout string `toml:"request_timeout"`
	ReadLimit      int64  `toml:"read_limit"`
	LogLevel       string `toml:"log_level"`
	LogJSON        bool   `toml:"log_json"`
	Demo           bool   `toml:"demo"`
}

// LoadConfig overlays the TOML file at path onto DefaultConfig (or
// DemoConfig when demo = true).
func LoadConfig(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load xapi config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load xapi config: unknown key %q", undecoded[0].String())
	}

	cfg := DefaultConfig()
	if raw.Demo {
		cfg = DemoConfig()
	}
	if meta.IsDefined("command_url") {
		cfg.CommandURL = strings.TrimSpace(raw.CommandURL)
	}
	if meta.IsDefined("stream_url") {
		cfg.StreamURL = strings.TrimSpace(raw.StreamURL)
	}
	if meta.IsDefined("transport") {
		cfg.Transport = strings.TrimSpace(raw.Transport)
	}
	if meta.IsDefined("user_id") {
		cfg.UserID = strings.TrimSpace(raw.UserID)
	}
	if meta.IsDefined("password") {
		cfg.Password = raw.Password
	}
	if meta.IsDefined("dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DialTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("load xapi config: dial_timeout: %w", err)
		}
		cfg.DialTimeout = d
	}
	if meta.IsDefined("request_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.RequestTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("load xapi config: request_timeout: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if meta.IsDefined("read_limit") {
		cfg.ReadLimit = raw.ReadLimit
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_json") {
		cfg.LogJSON = raw.LogJSON
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings Connect depends on.
func (c Config) Validate() error {
	if strings.TrimSpace(c.CommandURL) == "" {
		return fmt.Errorf("xapi config missing command_url")
	}
	if !HasTransport(c.Transport) {
		return fmt.Errorf("xapi config: transport %q not available (have %v)", c.Transport, AvailableTransports())
	}
	if c.DialTimeout < 0 || c.RequestTimeout < 0 {
		return fmt.Errorf("xapi config: negative timeout")
	}
	if c.ReadLimit < 0 {
		return fmt.Errorf("xapi config: negative read_limit")
	}
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		return fmt.Errorf("xapi config: invalid log_level %q", c.LogLevel)
	}
	return nil
}

// NewLogger builds the logger described by LogLevel and LogJSON.
func (c Config) NewLogger() (hclog.Logger, error) {
	level := hclog.LevelFromString(c.LogLevel)
	if level == hclog.NoLevel {
		return nil, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "xapi",
		Level:      level,
		Output:     os.Stderr,
		JSONFormat: c.LogJSON,
	}), nil
}
