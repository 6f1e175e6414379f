package builtin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"devassist.dev/cli/internal/core/plugin"
	"devassist.dev/cli/internal/infrastructure/plugins"
)

// WriteFile is a fixer that writes spec["content"] to spec["path"].
type WriteFile struct {
	manifest *plugin.Manifest
	shared   plugins.SharedConfig
}

func newWriteFile(m *plugin.Manifest, shared plugins.SharedConfig) (any, error) {
	return &WriteFile{manifest: m, shared: shared}, nil
}

// CanFix reports whether fixType is a file fix
func (w *WriteFile) CanFix(fixType string, _ plugin.Context) bool {
	return fixType == "file"
}

// Fix writes the file, creating parent directories. Paths must stay inside the project.
func (w *WriteFile) Fix(ctx context.Context, spec plugin.FixSpec, actx plugin.Context) (plugin.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rel, _ := spec["path"].(string)
	if strings.TrimSpace(rel) == "" {
		return nil, errors.New("write-file: spec.path is required")
	}
	content, ok := spec["content"].(string)
	if !ok {
		return nil, errors.New("write-file: spec.content must be a string")
	}

	root := projectDir(w.shared, actx)
	target, err := ResolveInProject(root, rel)
	if err != nil {
		return nil, err
	}

	created := false
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(target); err == nil {
		mode = info.Mode().Perm()
	} else if errors.Is(err, fs.ErrNotExist) {
		created = true
	} else {
		return nil, fmt.Errorf("write-file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("write-file: %w", err)
	}
	if err := os.WriteFile(target, []byte(content), mode); err != nil {
		return nil, fmt.Errorf("write-file: %w", err)
	}

	return plugin.Result{
		"path":    target,
		"created": created,
		"bytes":   len(content),
	}, nil
}

// ResolveInProject joins rel onto root and rejects paths escaping root.
func ResolveInProject(root, rel string) (string, error) {
	target := rel
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, rel)
	}
	target = filepath.Clean(target)

	base := filepath.Clean(root)
	if target != base && !strings.HasPrefix(target, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("write-file: %s is outside the project directory %s", rel, root)
	}
	return target, nil
}
