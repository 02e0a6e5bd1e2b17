// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// BaseURLEnv overrides the configured backend base URL.
const BaseURLEnv = "GAINVIEW_BASE_URL"

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Server    ServerConfig    `toml:"server"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Log       LogConfig       `toml:"log"`
}

// ServerConfig maps backend connection settings.
type ServerConfig struct {
	BaseURL *string `toml:"base-url"`
	Timeout *int    `toml:"timeout"`
}

// DashboardConfig maps dashboard display settings.
type DashboardConfig struct {
	PlotHeight *int  `toml:"plot-height"`
	ShowGraph  *bool `toml:"show-graph"`
	ShowTopics *bool `toml:"show-topics"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
	File  *string `toml:"file"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// EnvBaseURL returns the base URL from the environment, if set.
func EnvBaseURL() *string {
	v := strings.TrimSpace(os.Getenv(BaseURLEnv))
	if v == "" {
		return nil
	}
	return &v
}
