// Package builtin holds the plugins compiled into devassist.
package builtin

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"devassist.dev/cli/internal/core/plugin"
	"devassist.dev/cli/internal/infrastructure/plugins"
)

// Export names registered in the catalog.
const (
	WriteFileExport = "write-file"
	LineCountExport = "line-count"
)

//go:embed manifests
var manifests embed.FS

// Register adds every built-in constructor to the catalog.
func Register(catalog *plugins.Catalog) error {
	return errors.Join(
		catalog.Register(plugin.CategoryFixer, WriteFileExport, newWriteFile),
		catalog.Register(plugin.CategoryQuality, LineCountExport, newLineCount),
	)
}

// Seed copies the built-in manifests into root, a plugin search root.
// Existing files are left untouched. It returns the plugin directories written.
func Seed(root string) ([]string, error) {
	var written []string
	err := fs.WalkDir(manifests, "manifests", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel("manifests", filepath.FromSlash(path))
		if err != nil {
			return err
		}
		target := filepath.Join(root, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if _, err := os.Stat(target); err == nil {
			return nil
		}

		data, err := manifests.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return err
		}
		written = append(written, filepath.Dir(target))
		return nil
	})
	if err != nil {
		return written, fmt.Errorf("failed to seed built-in plugins into %s: %w", root, err)
	}
	return written, nil
}

// projectDir picks the directory relative paths resolve against:
// the call context first, then the shared configuration, then the working directory.
func projectDir(shared plugins.SharedConfig, actx plugin.Context) string {
	if dir, ok := actx["projectDir"].(string); ok && dir != "" {
		return dir
	}
	if dir, ok := shared["projectDir"].(string); ok && dir != "" {
		return dir
	}
	dir, _ := os.Getwd()
	return dir
}
