package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"devassist.dev/cli/internal/core/plugin"
)

// writePlugin creates <root>/<category dir>/<dir>/ with a plugin.json and an entry file.
func writePlugin(t *testing.T, root string, c plugin.Category, dir string, manifest map[string]any) string {
	t.Helper()
	pluginDir := filepath.Join(root, c.Dir(), dir)
	require.NoError(t, os.MkdirAll(pluginDir, 0o755))

	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "plugin.json"), data, 0o644))

	main, _ := manifest["main"].(string)
	if main == "" {
		main = plugin.DefaultEntryPoint
	}
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, main), []byte("package main\n"), 0o644))
	return pluginDir
}

func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

type echoFixer struct {
	manifest *plugin.Manifest
	shared   SharedConfig
}

func (f *echoFixer) Fix(_ context.Context, spec plugin.FixSpec, _ plugin.Context) (plugin.Result, error) {
	return plugin.Result{"spec": map[string]any(spec)}, nil
}

func (f *echoFixer) CanFix(fixType string, _ plugin.Context) bool { return fixType == "file" }

type lifecycleFixer struct {
	echoFixer
	initErr     error
	initialized bool
	cleaned     bool
}

func (f *lifecycleFixer) Initialize(context.Context) error {
	f.initialized = true
	return f.initErr
}

func (f *lifecycleFixer) Cleanup(context.Context) error {
	f.cleaned = true
	return nil
}

type emptyPlugin struct{}
