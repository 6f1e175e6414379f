package plugins

import (
	"os"
	"path/filepath"
	"strings"
)

// Search root scopes, highest precedence first.
const (
	ScopeProject = "project"
	ScopeUser    = "user"
	ScopeBuiltin = "builtin"
	ScopeSystem  = "system"
)

// DefaultSystemDir is the machine-wide plugin directory.
const DefaultSystemDir = "/usr/local/share/devassist/plugins"

// PathConfig overrides individual search roots. Empty fields fall back to the defaults.
type PathConfig struct {
	Project string `json:"project,omitempty" yaml:"project,omitempty" toml:"project,omitempty"`
	User    string `json:"user,omitempty" yaml:"user,omitempty" toml:"user,omitempty"`
	Builtin string `json:"builtin,omitempty" yaml:"builtin,omitempty" toml:"builtin,omitempty"`
	System  string `json:"system,omitempty" yaml:"system,omitempty" toml:"system,omitempty"`
}

// SearchRoot is one directory searched for plugins.
type SearchRoot struct {
	Scope string
	Dir   string
}

// DefaultPathConfig returns the standard search roots relative to workDir.
func DefaultPathConfig(workDir string) PathConfig {
	cfg := PathConfig{
		Project: filepath.Join(workDir, ".devassist", "plugins"),
		User:    "~/.devassist/plugins",
		System:  DefaultSystemDir,
	}
	if exe, err := os.Executable(); err == nil {
		cfg.Builtin = filepath.Join(filepath.Dir(exe), "plugins")
	}
	return cfg
}

// Merge fills every empty field of c from defaults.
func (c PathConfig) Merge(defaults PathConfig) PathConfig {
	if c.Project == "" {
		c.Project = defaults.Project
	}
	if c.User == "" {
		c.User = defaults.User
	}
	if c.Builtin == "" {
		c.Builtin = defaults.Builtin
	}
	if c.System == "" {
		c.System = defaults.System
	}
	return c
}

// Dir returns the configured directory for a scope, with ~ expanded.
func (c PathConfig) Dir(scope string) string {
	switch scope {
	case ScopeProject:
		return expandPath(c.Project)
	case ScopeUser:
		return expandPath(c.User)
	case ScopeBuiltin:
		return expandPath(c.Builtin)
	case ScopeSystem:
		return expandPath(c.System)
	}
	return ""
}

// Resolve returns the existing search roots in precedence order.
// Missing or unset directories are silently omitted.
func (c PathConfig) Resolve() []SearchRoot {
	var roots []SearchRoot
	seen := make(map[string]bool)

	for _, scope := range []string{ScopeProject, ScopeUser, ScopeBuiltin, ScopeSystem} {
		dir := c.Dir(scope)
		if dir == "" {
			continue
		}
		dir = filepath.Clean(dir)
		if seen[dir] {
			continue
		}
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		seen[dir] = true
		roots = append(roots, SearchRoot{Scope: scope, Dir: dir})
	}

	return roots
}

// expandPath expands ~ in paths
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
