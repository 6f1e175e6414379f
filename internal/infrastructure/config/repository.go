package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
)

// ConfigSource defines the interface for configuration sources
type ConfigSource interface {
	Load() (*Configuration, error)
	Priority() int
	Name() string
}

// CompositeConfigRepository merges defaults, the config file and the environment.
type CompositeConfigRepository struct {
	sources    []ConfigSource
	configPath string
	workDir    string
}

// NewCompositeConfigRepository creates a repository reading configPath, or
// $DEVASSIST_CONFIG_FILE, or ~/.devassist/config.yaml, in that order of preference.
func NewCompositeConfigRepository(configPath, workDir string) *CompositeConfigRepository {
	if configPath == "" {
		configPath = os.Getenv(EnvPrefix + "CONFIG_FILE")
	}
	if configPath == "" {
		configPath = getDefaultConfigPath()
	}
	if workDir == "" {
		workDir, _ = os.Getwd()
	}

	repo := &CompositeConfigRepository{
		configPath: expandPath(configPath),
		workDir:    workDir,
	}
	repo.AddSource(NewFileConfigSource(repo.configPath))
	repo.AddSource(NewEnvironmentConfigSource())
	return repo
}

// AddSource adds a configuration source
func (r *CompositeConfigRepository) AddSource(source ConfigSource) {
	r.sources = append(r.sources, source)
}

// Load merges every source over the defaults and validates the result.
func (r *CompositeConfigRepository) Load() (*Configuration, error) {
	config := r.LoadDefault()

	sorted := make([]ConfigSource, len(r.sources))
	copy(sorted, r.sources)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})

	for _, source := range sorted {
		sourceConfig, err := source.Load()
		if err != nil {
			return nil, fmt.Errorf("%s configuration: %w", source.Name(), err)
		}
		config = mergeConfigurations(config, sourceConfig)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// LoadDefault returns the default configuration
func (r *CompositeConfigRepository) LoadDefault() *Configuration {
	return DefaultConfiguration(r.workDir)
}

// Save writes config to the config path in the format its extension selects.
func (r *CompositeConfigRepository) Save(config *Configuration) error {
	if err := Validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := marshal(r.configPath, config)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	if err := os.WriteFile(r.configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}

// GetConfigPath returns the path to the configuration file
func (r *CompositeConfigRepository) GetConfigPath() string {
	return r.configPath
}

// mergeConfigurations overlays the non-zero fields of source onto target
func mergeConfigurations(target, source *Configuration) *Configuration {
	if source == nil {
		return target
	}

	result := *target
	if source.StateDir != "" {
		result.StateDir = source.StateDir
	}
	if source.ProjectDir != "" {
		result.ProjectDir = source.ProjectDir
	}
	result.PluginDirs = source.PluginDirs.Merge(target.PluginDirs)
	if source.LogLevel != "" {
		result.LogLevel = source.LogLevel
	}
	if source.LogFormat != "" {
		result.LogFormat = source.LogFormat
	}
	if source.MaxStateAge.Duration != 0 {
		result.MaxStateAge = source.MaxStateAge
	}
	if source.DiscoveryWorkers != 0 {
		result.DiscoveryWorkers = source.DiscoveryWorkers
	}

	// Shared maps merge key by key
	result.Shared = maps.Clone(target.Shared)
	if result.Shared == nil {
		result.Shared = make(map[string]any, len(source.Shared))
	}
	maps.Copy(result.Shared, source.Shared)

	return &result
}
