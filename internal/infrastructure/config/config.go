package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"devassist.dev/cli/internal/infrastructure/plugins"
)

// Configuration is the merged process configuration.
type Configuration struct {
	StateDir         string             `json:"stateDir,omitempty" yaml:"stateDir,omitempty" toml:"stateDir,omitempty"`
	ProjectDir       string             `json:"projectDir,omitempty" yaml:"projectDir,omitempty" toml:"projectDir,omitempty"`
	PluginDirs       plugins.PathConfig `json:"pluginDirs" yaml:"pluginDirs" toml:"pluginDirs"`
	LogLevel         string             `json:"logLevel,omitempty" yaml:"logLevel,omitempty" toml:"logLevel,omitempty"`
	LogFormat        string             `json:"logFormat,omitempty" yaml:"logFormat,omitempty" toml:"logFormat,omitempty"`
	MaxStateAge      Duration           `json:"maxStateAge,omitempty" yaml:"maxStateAge,omitempty" toml:"maxStateAge,omitempty"`
	DiscoveryWorkers int                `json:"discoveryWorkers,omitempty" yaml:"discoveryWorkers,omitempty" toml:"discoveryWorkers,omitempty"`

	// Shared is handed to every plugin constructor
	Shared map[string]any `json:"shared,omitempty" yaml:"shared,omitempty" toml:"shared,omitempty"`
}

// Duration is a time.Duration written as text ("720h") in config files.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// Defaults
const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultMaxStateAge = 30 * 24 * time.Hour
)

// DefaultConfiguration returns the built-in configuration for a working directory
func DefaultConfiguration(workDir string) *Configuration {
	return &Configuration{
		StateDir:         "~/.devassist/state",
		ProjectDir:       workDir,
		PluginDirs:       plugins.DefaultPathConfig(workDir),
		LogLevel:         DefaultLogLevel,
		LogFormat:        DefaultLogFormat,
		MaxStateAge:      Duration{DefaultMaxStateAge},
		DiscoveryWorkers: plugins.DefaultDiscoveryWorkers,
		Shared:           map[string]any{},
	}
}

// ResolvedStateDir returns StateDir with ~ expanded.
func (c *Configuration) ResolvedStateDir() string {
	return expandPath(c.StateDir)
}

// getDefaultConfigPath returns ~/.devassist/config.yaml
func getDefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".devassist", "config.yaml")
	}
	return filepath.Join(home, ".devassist", "config.yaml")
}

// expandPath expands ~ in paths
func expandPath(path string) string {
	if path == "~" || (len(path) > 1 && path[:2] == "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
