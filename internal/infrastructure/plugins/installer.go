package plugins

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"devassist.dev/cli/internal/core/domain"
	"devassist.dev/cli/internal/core/plugin"
	"devassist.dev/cli/internal/core/session"
	"devassist.dev/cli/internal/infrastructure/state"
)

// Install destinations.
const (
	DestinationProject = ScopeProject
	DestinationUser    = ScopeUser
)

// InstallRecord is persisted as a plugin state document for every installed plugin.
type InstallRecord struct {
	Key         string    `json:"key"`
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Destination string    `json:"destination"`
	Path        string    `json:"path"`
	Source      string    `json:"source"`
	InstalledAt time.Time `json:"installedAt"`
}

// Installer copies plugin directories or archives into a search root.
type Installer struct {
	paths  PathConfig
	store  *state.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewInstaller creates an installer writing into the project and user roots of paths
func NewInstaller(paths PathConfig, store *state.Store, logger *slog.Logger) *Installer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{
		paths:  paths,
		store:  store,
		logger: logger.With("component", "installer"),
		now:    time.Now,
	}
}

// Install installs the plugin at source (a directory or a .tar.gz archive) as a plugin of
// the given category under destination ("project" or "user").
// An archive with a sibling <source>.sha256 file is verified before extraction.
func (i *Installer) Install(ctx context.Context, source string, category plugin.Category, destination string) (*InstallRecord, error) {
	root, err := i.destinationRoot(destination)
	if err != nil {
		return nil, err
	}
	if category.Dir() == "" {
		return nil, fmt.Errorf("unknown plugin type %q", category)
	}

	source = expandPath(source)
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("plugin source not found: %w", err)
	}

	categoryDir := filepath.Join(root, category.Dir())
	if err := os.MkdirAll(categoryDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create plugins directory: %w", err)
	}

	// Stage next to the final location so the last step is a rename.
	staging, err := os.MkdirTemp(categoryDir, ".install-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if info.IsDir() {
		err = copyTree(ctx, source, staging)
	} else {
		err = i.extractArchive(source, staging)
	}
	if err != nil {
		return nil, err
	}

	pluginDir, err := stagedPluginDir(staging)
	if err != nil {
		return nil, err
	}
	manifest, err := plugin.LoadManifestFromDir(pluginDir)
	if err != nil {
		return nil, fmt.Errorf("invalid plugin at %s: %w", source, err)
	}

	target := filepath.Join(categoryDir, manifest.Name)
	if _, err := os.Stat(target); err == nil {
		return nil, fmt.Errorf("plugin %s already installed at %s", plugin.Key(category, manifest.Name), target)
	}
	if err := os.Rename(pluginDir, target); err != nil {
		return nil, fmt.Errorf("failed to move plugin into place: %w", err)
	}

	record := &InstallRecord{
		Key:         plugin.Key(category, manifest.Name),
		Type:        string(category),
		Name:        manifest.Name,
		Version:     manifest.Version,
		Destination: destination,
		Path:        target,
		Source:      source,
		InstalledAt: i.now().UTC(),
	}
	if err := i.store.Save(session.TypePlugin, recordID(destination, category, manifest.Name), record); err != nil {
		return nil, err
	}

	i.logger.Info("plugin installed", "key", record.Key, "version", record.Version, "path", target)
	return record, nil
}

// Uninstall removes an installed plugin directory and its install record.
func (i *Installer) Uninstall(ctx context.Context, category plugin.Category, name, destination string) error {
	root, err := i.destinationRoot(destination)
	if err != nil {
		return err
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid plugin name %q", name)
	}

	target := filepath.Join(root, category.Dir(), name)
	if _, err := os.Stat(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.NewNotFound("plugin", plugin.Key(category, name))
		}
		return err
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("failed to remove plugin %s: %w", target, err)
	}
	if err := i.store.Delete(session.TypePlugin, recordID(destination, category, name)); err != nil {
		return err
	}

	i.logger.Info("plugin uninstalled", "key", plugin.Key(category, name), "path", target)
	return nil
}

// Installed returns every install record, sorted by id.
func (i *Installer) Installed() ([]InstallRecord, error) {
	ids, err := i.store.List(session.TypePlugin)
	if err != nil {
		return nil, err
	}
	records := make([]InstallRecord, 0, len(ids))
	for _, id := range ids {
		var r InstallRecord
		if i.store.Load(session.TypePlugin, id, &r) {
			records = append(records, r)
		}
	}
	return records, nil
}

func (i *Installer) destinationRoot(destination string) (string, error) {
	switch destination {
	case DestinationProject, DestinationUser:
	default:
		return "", &domain.UnsupportedDestinationError{Destination: destination}
	}
	root := i.paths.Dir(destination)
	if root == "" {
		return "", fmt.Errorf("no %s plugin directory configured", destination)
	}
	return root, nil
}

func recordID(destination string, category plugin.Category, name string) string {
	return destination + ":" + plugin.Key(category, name)
}

// stagedPluginDir accepts archives that hold the plugin at their root or inside a
// single top-level directory.
func stagedPluginDir(staging string) (string, error) {
	if _, err := plugin.LoadManifestFromDir(staging); !errors.Is(err, plugin.ErrManifestNotFound) {
		return staging, nil
	}
	entries, err := os.ReadDir(staging)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(staging, entries[0].Name()), nil
	}
	return staging, nil
}

func (i *Installer) extractArchive(source, dest string) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("failed to read plugin archive: %w", err)
	}
	if !isGzip(data) {
		return fmt.Errorf("unsupported plugin source %s: expected a directory or .tar.gz archive", source)
	}

	if sum, err := os.ReadFile(source + ".sha256"); err == nil {
		fields := strings.Fields(string(sum))
		if len(fields) == 0 {
			return fmt.Errorf("empty checksum file %s.sha256", source)
		}
		if err := verifyChecksum(data, fields[0]); err != nil {
			return fmt.Errorf("checksum verification failed: %w", err)
		}
	}

	return extractTarGz(bytes.NewReader(data), dest)
}

// extractTarGz extracts a tar.gz stream into dest, rejecting entries that escape it
func extractTarGz(r io.Reader, dest string) error {
	gzReader, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	base := filepath.Clean(dest)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar header: %w", err)
		}

		targetPath := filepath.Join(base, header.Name)

		// Security: prevent path traversal
		if targetPath != base && !strings.HasPrefix(targetPath, base+string(os.PathSeparator)) {
			return fmt.Errorf("unsafe tar path: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			if err := writeFrom(targetPath, tarReader, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}
		}
	}

	return nil
}

// copyTree copies regular files and directories from src into dst
func copyTree(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer in.Close()
		return writeFrom(target, in, info.Mode().Perm())
	})
}

func writeFrom(path string, r io.Reader, mode os.FileMode) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode|0o200)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	return file.Close()
}

// verifyChecksum verifies a plugin archive against its expected sha256
func verifyChecksum(data []byte, expectedChecksum string) error {
	hash := sha256.Sum256(data)
	actualChecksum := hex.EncodeToString(hash[:])

	if !strings.EqualFold(actualChecksum, expectedChecksum) {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expectedChecksum, actualChecksum)
	}

	return nil
}

// isGzip checks if data is gzip compressed
func isGzip(data []byte) bool {
	return len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b
}
