package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest file names, in lookup order.
var ManifestFiles = []string{"plugin.json", "plugin.yaml", "plugin.yml"}

const (
	// DefaultEntryPoint is the entry file expected when the manifest declares none.
	DefaultEntryPoint = "plugin.go"

	// DefaultExport is the catalog export tried after the manifest class and the plugin name.
	DefaultExport = "default"
)

// Manifest describes a plugin's identity, entry point and declared capabilities.
type Manifest struct {
	// Identity
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Entry point and export symbol
	Main  string `json:"main,omitempty" yaml:"main,omitempty"`
	Class string `json:"class,omitempty" yaml:"class,omitempty"`

	// Higher priority plugins are listed first within a category
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`

	// Declarations
	Capabilities        []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	SupportedModels     []string `json:"supportedModels,omitempty" yaml:"supportedModels,omitempty"`
	SupportedExtensions []string `json:"supportedExtensions,omitempty" yaml:"supportedExtensions,omitempty"`
	Rules               []string `json:"rules,omitempty" yaml:"rules,omitempty"`
	Actions             []string `json:"actions,omitempty" yaml:"actions,omitempty"`

	// path to the plugin directory
	path string
}

// Validation errors.
var (
	ErrManifestNotFound = errors.New("manifest: no plugin.json or plugin.yaml")
	ErrMissingName      = errors.New("manifest: name is required")
	ErrMissingVersion   = errors.New("manifest: version is required")
	ErrInvalidName      = errors.New("manifest: name must not contain path separators or colons")
	ErrInvalidMain      = errors.New("manifest: main must be a relative path inside the plugin directory")
)

// LoadManifestFromDir finds and parses the manifest in a plugin directory.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	for _, name := range ManifestFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadManifest(path)
		}
	}
	return nil, ErrManifestNotFound
}

// LoadManifest reads, defaults and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		err = json.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	m.path = filepath.Dir(path)
	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Main == "" {
		m.Main = DefaultEntryPoint
	}
}

// Validate checks the minimal manifest contract: a usable name and a version.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrMissingName
	}
	if strings.ContainsAny(m.Name, `/\:`) || m.Name == "." || m.Name == ".." {
		return fmt.Errorf("%w: %s", ErrInvalidName, m.Name)
	}
	if strings.TrimSpace(m.Version) == "" {
		return ErrMissingVersion
	}
	if m.Main != "" {
		clean := filepath.Clean(m.Main)
		if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
		}
	}
	return nil
}

// Path returns the plugin directory the manifest was read from.
func (m *Manifest) Path() string {
	return m.path
}

// MainPath returns the absolute path of the entry-point file.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.path, m.Main)
}

// Exports returns the catalog symbols to try, in order.
func (m *Manifest) Exports() []string {
	if m.Class != "" {
		return []string{m.Class}
	}
	return []string{m.Name, DefaultExport}
}

// HasCapability reports whether the manifest declares the capability.
func (m *Manifest) HasCapability(capability string) bool {
	for _, c := range m.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

func (m *Manifest) String() string {
	return fmt.Sprintf("%s v%s", m.Name, m.Version)
}

// Clone returns a deep copy, so plugins cannot mutate the registry's manifest.
func (m *Manifest) Clone() *Manifest {
	clone := *m
	clone.Capabilities = append([]string(nil), m.Capabilities...)
	clone.SupportedModels = append([]string(nil), m.SupportedModels...)
	clone.SupportedExtensions = append([]string(nil), m.SupportedExtensions...)
	clone.Rules = append([]string(nil), m.Rules...)
	clone.Actions = append([]string(nil), m.Actions...)
	return &clone
}
