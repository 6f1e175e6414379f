package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfigSource loads configuration from a YAML, TOML or JSON file.
// The format follows the file extension; unknown extensions are read as YAML.
type FileConfigSource struct {
	filePath string
}

// NewFileConfigSource creates a new file configuration source
func NewFileConfigSource(filePath string) *FileConfigSource {
	return &FileConfigSource{filePath: filePath}
}

// Load loads configuration from file. A missing file yields no configuration.
func (f *FileConfigSource) Load() (*Configuration, error) {
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Configuration
	if err := unmarshal(f.filePath, data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", f.filePath, err)
	}
	return &config, nil
}

// Priority returns the priority of this source (higher overrides lower)
func (f *FileConfigSource) Priority() int {
	return 10
}

// Name returns the name of this source
func (f *FileConfigSource) Name() string {
	return "file"
}

func unmarshal(path string, data []byte, out *Configuration) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return json.Unmarshal(data, out)
	case ".toml":
		return toml.Unmarshal(data, out)
	default:
		return yaml.Unmarshal(data, out)
	}
}

func marshal(path string, config *Configuration) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return json.MarshalIndent(config, "", "  ")
	case ".toml":
		return toml.Marshal(config)
	default:
		return yaml.Marshal(config)
	}
}
