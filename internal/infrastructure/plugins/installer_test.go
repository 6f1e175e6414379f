package plugins

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devassist.dev/cli/internal/core/domain"
	"devassist.dev/cli/internal/core/plugin"
	"devassist.dev/cli/internal/core/session"
	"devassist.dev/cli/internal/infrastructure/state"
)

func newTestInstaller(t *testing.T) (*Installer, PathConfig, *state.Store) {
	t.Helper()
	base := t.TempDir()
	paths := PathConfig{
		Project: filepath.Join(base, "project"),
		User:    filepath.Join(base, "user"),
	}
	logger, _ := testLogger()
	store := state.NewStore(filepath.Join(base, "state"), logger)
	return NewInstaller(paths, store, logger), paths, store
}

func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestInstaller_InstallDirectory(t *testing.T) {
	installer, paths, store := newTestInstaller(t)
	src := writePlugin(t, t.TempDir(), plugin.CategoryFixer, "src", map[string]any{"name": "gofmt", "version": "1.2.0"})

	record, err := installer.Install(context.Background(), src, plugin.CategoryFixer, DestinationProject)
	require.NoError(t, err)

	target := filepath.Join(paths.Project, "fixers", "gofmt")
	assert.Equal(t, target, record.Path)
	assert.Equal(t, "fixer:gofmt", record.Key)
	assert.FileExists(t, filepath.Join(target, "plugin.json"))
	assert.FileExists(t, filepath.Join(target, plugin.DefaultEntryPoint))
	assert.True(t, store.Exists(session.TypePlugin, "project:fixer:gofmt"))

	// the installed plugin is discoverable
	registry := NewRegistry()
	_, err = NewDiscoverer(paths, registry, 1, nil, nil).Discover(context.Background())
	require.NoError(t, err)
	_, ok := registry.Get(plugin.CategoryFixer, "gofmt")
	assert.True(t, ok)

	_, err = installer.Install(context.Background(), src, plugin.CategoryFixer, DestinationProject)
	assert.ErrorContains(t, err, "already installed")
}

func TestInstaller_UnsupportedDestination(t *testing.T) {
	installer, _, _ := newTestInstaller(t)
	src := writePlugin(t, t.TempDir(), plugin.CategoryFixer, "src", map[string]any{"name": "x", "version": "1.0.0"})

	for _, dest := range []string{"system", "builtin", "", "global"} {
		_, err := installer.Install(context.Background(), src, plugin.CategoryFixer, dest)
		var ude *domain.UnsupportedDestinationError
		require.ErrorAs(t, err, &ude, "destination %q", dest)
		assert.Equal(t, dest, ude.Destination)
	}
}

func TestInstaller_InvalidManifestWritesNothing(t *testing.T) {
	installer, paths, store := newTestInstaller(t)
	src := writePlugin(t, t.TempDir(), plugin.CategoryFixer, "src", map[string]any{"name": "x"})

	_, err := installer.Install(context.Background(), src, plugin.CategoryFixer, DestinationUser)
	require.ErrorIs(t, err, plugin.ErrMissingVersion)

	entries, err := os.ReadDir(filepath.Join(paths.User, "fixers"))
	require.NoError(t, err)
	assert.Empty(t, entries, "staging directory is removed")

	records, err := installer.Installed()
	require.NoError(t, err)
	assert.Empty(t, records)
	ids, _ := store.List(session.TypePlugin)
	assert.Empty(t, ids)
}

func TestInstaller_InstallArchive(t *testing.T) {
	installer, paths, _ := newTestInstaller(t)
	archive := filepath.Join(t.TempDir(), "lint.tar.gz")
	data := tarGz(t, map[string]string{
		"lint/plugin.yaml": "name: lint\nversion: 0.3.0\n",
		"lint/plugin.go":   "package main\n",
	})
	require.NoError(t, os.WriteFile(archive, data, 0o644))
	sum := sha256.Sum256(data)
	require.NoError(t, os.WriteFile(archive+".sha256", []byte(hex.EncodeToString(sum[:])+"  lint.tar.gz\n"), 0o644))

	record, err := installer.Install(context.Background(), archive, plugin.CategoryAnalyzer, DestinationUser)
	require.NoError(t, err)

	assert.Equal(t, "0.3.0", record.Version)
	assert.FileExists(t, filepath.Join(paths.User, "analyzers", "lint", "plugin.yaml"))
}

func TestInstaller_ArchiveChecksumMismatch(t *testing.T) {
	installer, _, _ := newTestInstaller(t)
	archive := filepath.Join(t.TempDir(), "p.tar.gz")
	require.NoError(t, os.WriteFile(archive, tarGz(t, map[string]string{"plugin.json": `{"name":"p","version":"1"}`}), 0o644))
	require.NoError(t, os.WriteFile(archive+".sha256", []byte("deadbeef"), 0o644))

	_, err := installer.Install(context.Background(), archive, plugin.CategoryFixer, DestinationProject)
	assert.ErrorContains(t, err, "checksum mismatch")
}

func TestInstaller_ArchivePathTraversalRejected(t *testing.T) {
	installer, paths, _ := newTestInstaller(t)
	archive := filepath.Join(t.TempDir(), "evil.tar.gz")
	require.NoError(t, os.WriteFile(archive, tarGz(t, map[string]string{
		"../../escape.txt": "gotcha",
	}), 0o644))

	_, err := installer.Install(context.Background(), archive, plugin.CategoryFixer, DestinationProject)
	assert.ErrorContains(t, err, "unsafe tar path")
	assert.NoFileExists(t, filepath.Join(paths.Project, "escape.txt"))
}

func TestInstaller_RejectsNonArchiveFile(t *testing.T) {
	installer, _, _ := newTestInstaller(t)
	src := filepath.Join(t.TempDir(), "plugin.zip")
	require.NoError(t, os.WriteFile(src, []byte("PK not gzip"), 0o644))

	_, err := installer.Install(context.Background(), src, plugin.CategoryFixer, DestinationProject)
	assert.ErrorContains(t, err, "expected a directory or .tar.gz archive")
}

func TestInstaller_Uninstall(t *testing.T) {
	installer, paths, store := newTestInstaller(t)
	src := writePlugin(t, t.TempDir(), plugin.CategoryQuality, "src", map[string]any{"name": "cover", "version": "1.0.0"})
	_, err := installer.Install(context.Background(), src, plugin.CategoryQuality, DestinationUser)
	require.NoError(t, err)

	records, err := installer.Installed()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "quality:cover", records[0].Key)

	require.NoError(t, installer.Uninstall(context.Background(), plugin.CategoryQuality, "cover", DestinationUser))
	assert.NoDirExists(t, filepath.Join(paths.User, "quality", "cover"))
	assert.False(t, store.Exists(session.TypePlugin, "user:quality:cover"))

	err = installer.Uninstall(context.Background(), plugin.CategoryQuality, "cover", DestinationUser)
	var nf *domain.NotFoundError
	assert.ErrorAs(t, err, &nf)

	err = installer.Uninstall(context.Background(), plugin.CategoryQuality, "cover", "system")
	var ude *domain.UnsupportedDestinationError
	assert.ErrorAs(t, err, &ude)
}
