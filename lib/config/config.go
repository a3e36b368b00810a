// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for RoomTalk clients.
//
// Configuration is loaded from a single YAML file specified by:
//   - the ROOMTALK_CONFIG environment variable, or
//   - the --config flag passed to the command.
//
// There are no fallbacks or automatic discovery; a missing file is an
// error. The bearer token deliberately never lives in the config file —
// it comes from the environment or the auth collaborator.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath is the environment variable naming the config file.
const EnvConfigPath = "ROOMTALK_CONFIG"

// Config is the client configuration.
type Config struct {
	// Broker configures the pub/sub connection.
	Broker BrokerConfig `yaml:"broker"`
	// History configures the REST history endpoint.
	History HistoryConfig `yaml:"history"`
	// LogLevel is one of debug, info, warn, error. Empty means info.
	LogLevel string `yaml:"log_level"`
}

// BrokerConfig configures the broker transport.
type BrokerConfig struct {
	// URL is the websocket endpoint (e.g., "wss://chat.roomtalk.app/ws").
	URL string `yaml:"url"`
	// RetryInterval overrides the fixed reconnect cadence. Zero keeps
	// the 3-second default.
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// HistoryConfig configures the history REST client.
type HistoryConfig struct {
	// URL is the REST API base (e.g., "https://api.roomtalk.app").
	URL string `yaml:"url"`
	// PageSize is the history page size. Zero keeps the default.
	PageSize int `yaml:"page_size"`
}

// Load reads the config file at path. An empty path falls back to the
// ROOMTALK_CONFIG environment variable.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return nil, fmt.Errorf("config: no config file specified (set %s or pass --config)", EnvConfigPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate reports every problem with the configuration, not just the
// first, so a bad file is fixed in one pass.
func (c *Config) Validate() error {
	var problems []string
	if c.Broker.URL == "" {
		problems = append(problems, "broker.url is required")
	} else if !strings.HasPrefix(c.Broker.URL, "ws://") && !strings.HasPrefix(c.Broker.URL, "wss://") {
		problems = append(problems, "broker.url must be a ws:// or wss:// URL")
	}
	if c.Broker.RetryInterval < 0 {
		problems = append(problems, "broker.retry_interval must not be negative")
	}
	if c.History.URL == "" {
		problems = append(problems, "history.url is required")
	}
	if c.History.PageSize < 0 {
		problems = append(problems, "history.page_size must not be negative")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}
