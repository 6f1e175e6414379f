package config

import (
	"errors"
	"fmt"
	"strings"

	"devassist.dev/cli/internal/infrastructure/logging"
)

// Validate validates the configuration
func Validate(config *Configuration) error {
	if config == nil {
		return errors.New("configuration cannot be nil")
	}

	var errs []error
	if strings.TrimSpace(config.StateDir) == "" {
		errs = append(errs, errors.New("state directory is required"))
	}
	if strings.TrimSpace(config.ProjectDir) == "" {
		errs = append(errs, errors.New("project directory is required"))
	}
	if _, err := logging.ParseLevel(config.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(config.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", config.LogFormat))
	}
	if config.MaxStateAge.Duration < 0 {
		errs = append(errs, errors.New("max state age cannot be negative"))
	}
	if config.DiscoveryWorkers < 0 {
		errs = append(errs, errors.New("discovery workers cannot be negative"))
	}

	return errors.Join(errs...)
}
