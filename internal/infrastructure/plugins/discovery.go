package plugins

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"devassist.dev/cli/internal/core/domain"
	"devassist.dev/cli/internal/core/plugin"
	"devassist.dev/cli/internal/infrastructure/monitoring"
)

// DefaultDiscoveryWorkers bounds concurrent manifest reads within one search root.
const DefaultDiscoveryWorkers = 8

// Shadowed records a plugin ignored because a higher-precedence root registered its key first.
type Shadowed struct {
	Key        string
	Path       string
	ShadowedBy string
}

// DiscoveryResult summarizes one discovery run.
type DiscoveryResult struct {
	Discovered int
	Warnings   []domain.DiscoveryWarning
	Shadowed   []Shadowed
}

// Discoverer scans the search roots and populates the registry. It never loads plugin code.
type Discoverer struct {
	paths    PathConfig
	registry *Registry
	workers  int
	logger   *slog.Logger
	metrics  *monitoring.Metrics
}

// NewDiscoverer creates a discoverer over the given search path configuration
func NewDiscoverer(paths PathConfig, registry *Registry, workers int, logger *slog.Logger, metrics *monitoring.Metrics) *Discoverer {
	if workers <= 0 {
		workers = DefaultDiscoveryWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	return &Discoverer{
		paths:    paths,
		registry: registry,
		workers:  workers,
		logger:   logger.With("component", "discovery"),
		metrics:  metrics,
	}
}

// Roots returns the search roots that currently exist, highest precedence first.
func (d *Discoverer) Roots() []SearchRoot {
	return d.paths.Resolve()
}

// Discover rebuilds the registry from every search root. Invalid candidates become
// warnings; duplicates in lower-precedence roots are reported as shadowed.
func (d *Discoverer) Discover(ctx context.Context) (*DiscoveryResult, error) {
	pool, err := ants.NewPool(d.workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery pool: %w", err)
	}
	defer pool.Release()

	d.registry.Reset()
	result := &DiscoveryResult{}
	roots := d.paths.Resolve()

	for _, category := range plugin.Categories {
		for _, root := range roots {
			if err := ctx.Err(); err != nil {
				return result, err
			}

			candidates, err := d.scan(pool, category, root)
			if err != nil {
				return result, err
			}

			for _, c := range candidates {
				if c.err != nil {
					d.warn(result, category, c.dir, c.err.Error())
					continue
				}

				desc := plugin.NewDescriptor(category, root.Dir, c.manifest)
				if !d.registry.Register(desc) {
					winner, _ := d.registry.Get(category, desc.Name)
					result.Shadowed = append(result.Shadowed, Shadowed{
						Key:        desc.Key(),
						Path:       desc.Path,
						ShadowedBy: winner.Path,
					})
					d.metrics.PluginsShadowed.WithLabelValues(string(category)).Inc()
					d.logger.Info("plugin shadowed by higher-precedence root",
						"key", desc.Key(), "path", desc.Path, "shadowedBy", winner.Path)
					continue
				}

				result.Discovered++
				d.metrics.PluginsDiscovered.WithLabelValues(string(category)).Inc()
				d.logger.Debug("plugin discovered", "key", desc.Key(), "version", c.manifest.Version, "scope", root.Scope)
			}
		}
	}

	d.logger.Info("plugin discovery finished",
		"discovered", result.Discovered,
		"warnings", len(result.Warnings),
		"shadowed", len(result.Shadowed),
		"roots", len(roots))
	return result, nil
}

type candidate struct {
	dir      string
	manifest *plugin.Manifest
	err      error
}

// scan reads every candidate manifest under <root>/<category dir> on the pool and
// returns them in directory-name order.
func (d *Discoverer) scan(pool *ants.Pool, category plugin.Category, root SearchRoot) ([]candidate, error) {
	base := filepath.Join(root.Dir, category.Dir())
	entries, err := os.ReadDir(base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		d.logger.Warn("failed to read plugin directory", "path", base, "error", err)
		return nil, nil
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			dirs = append(dirs, entry.Name())
		}
	}
	sort.Strings(dirs)

	candidates := make([]candidate, len(dirs))
	var wg sync.WaitGroup
	for i, name := range dirs {
		i, dir := i, filepath.Join(base, name)
		wg.Add(1)
		task := func() {
			defer wg.Done()
			m, err := plugin.LoadManifestFromDir(dir)
			candidates[i] = candidate{dir: dir, manifest: m, err: err}
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			candidates[i] = candidate{dir: dir, err: fmt.Errorf("failed to schedule manifest read: %w", err)}
		}
	}
	wg.Wait()

	return candidates, nil
}

func (d *Discoverer) warn(result *DiscoveryResult, category plugin.Category, path, message string) {
	w := domain.DiscoveryWarning{Type: string(category), Path: path, Message: message}
	result.Warnings = append(result.Warnings, w)
	d.metrics.DiscoveryWarnings.WithLabelValues(string(category)).Inc()
	d.logger.Warn("skipping plugin candidate", "type", category, "path", path, "reason", message)
}
