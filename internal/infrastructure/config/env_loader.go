package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable the configuration reads.
const EnvPrefix = "DEVASSIST_"

// EnvironmentConfigSource loads configuration from DEVASSIST_* environment variables
type EnvironmentConfigSource struct {
	lookup func(string) (string, bool)
}

// NewEnvironmentConfigSource creates a source reading the process environment
func NewEnvironmentConfigSource() *EnvironmentConfigSource {
	return &EnvironmentConfigSource{lookup: os.LookupEnv}
}

// Load builds a configuration from the environment. Unset variables leave fields zero.
func (e *EnvironmentConfigSource) Load() (*Configuration, error) {
	config := &Configuration{}
	get := func(name string) (string, bool) {
		v, ok := e.lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("STATE_DIR"); ok {
		config.StateDir = v
	}
	if v, ok := get("PROJECT_DIR"); ok {
		config.ProjectDir = v
	}
	if v, ok := get("PLUGIN_DIR_PROJECT"); ok {
		config.PluginDirs.Project = v
	}
	if v, ok := get("PLUGIN_DIR_USER"); ok {
		config.PluginDirs.User = v
	}
	if v, ok := get("PLUGIN_DIR_BUILTIN"); ok {
		config.PluginDirs.Builtin = v
	}
	if v, ok := get("PLUGIN_DIR_SYSTEM"); ok {
		config.PluginDirs.System = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		config.LogLevel = v
	}
	if v, ok := get("LOG_FORMAT"); ok {
		config.LogFormat = v
	}
	if v, ok := get("DEBUG"); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%sDEBUG: %w", EnvPrefix, err)
		}
		if debug {
			config.LogLevel = "debug"
		}
	}
	if v, ok := get("MAX_STATE_AGE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%sMAX_STATE_AGE: %w", EnvPrefix, err)
		}
		config.MaxStateAge = Duration{d}
	}
	if v, ok := get("DISCOVERY_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%sDISCOVERY_WORKERS: %w", EnvPrefix, err)
		}
		config.DiscoveryWorkers = n
	}

	return config, nil
}

// Priority returns the priority of this source (higher overrides lower)
func (e *EnvironmentConfigSource) Priority() int {
	return 20
}

// Name returns the name of this source
func (e *EnvironmentConfigSource) Name() string {
	return "env"
}
