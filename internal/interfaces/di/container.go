package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sync"

	"devassist.dev/cli/internal/application/ports"
	"devassist.dev/cli/internal/application/services"
	"devassist.dev/cli/internal/infrastructure/config"
	"devassist.dev/cli/internal/infrastructure/logging"
	"devassist.dev/cli/internal/infrastructure/monitoring"
	"devassist.dev/cli/internal/infrastructure/plugins"
	"devassist.dev/cli/internal/infrastructure/state"
	"devassist.dev/cli/internal/plugins/builtin"
)

var _ ports.StateStore = (*state.Store)(nil)

// Options are the process-level overrides applied on top of the loaded configuration
type Options struct {
	ConfigPath string
	WorkDir    string
	StateDir   string
	Debug      bool

	// LogWriter defaults to stderr
	LogWriter io.Writer
}

// Container holds all application dependencies
type Container struct {
	// Configuration
	ConfigRepo *config.CompositeConfigRepository
	Config     *config.Configuration

	// Ambient
	Logger  *slog.Logger
	Metrics *monitoring.Metrics

	// Infrastructure
	Store      *state.Store
	Registry   *plugins.Registry
	Catalog    *plugins.Catalog
	Discoverer *plugins.Discoverer
	Loader     *plugins.Loader
	Installer  *plugins.Installer

	// Application services
	Rollback *services.RollbackEngine
	Tracker  *services.SessionTracker

	discoverOnce sync.Once
	discovery    *plugins.DiscoveryResult
	discoveryErr error
}

// NewContainer loads configuration and wires every component
func NewContainer(opts Options) (*Container, error) {
	c := &Container{
		ConfigRepo: config.NewCompositeConfigRepository(opts.ConfigPath, opts.WorkDir),
	}

	cfg, err := c.ConfigRepo.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.StateDir != "" {
		cfg.StateDir = opts.StateDir
	}
	if opts.Debug {
		cfg.LogLevel = "debug"
	}
	c.Config = cfg

	if err := c.initializeComponents(opts); err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}
	return c, nil
}

// initializeComponents initializes all components with proper dependencies
func (c *Container) initializeComponents(opts Options) error {
	cfg := c.Config

	logger, err := logging.NewConsoleLogger(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Writer: opts.LogWriter,
	})
	if err != nil {
		return err
	}
	c.Logger = logger
	c.Metrics = monitoring.NewMetrics()

	c.Store = state.NewStore(cfg.ResolvedStateDir(), c.Logger)

	c.Catalog = plugins.NewCatalog()
	if err := builtin.Register(c.Catalog); err != nil {
		return fmt.Errorf("failed to register built-in plugins: %w", err)
	}

	c.Registry = plugins.NewRegistry()
	c.Discoverer = plugins.NewDiscoverer(cfg.PluginDirs, c.Registry, cfg.DiscoveryWorkers, c.Logger, c.Metrics)
	c.Loader = plugins.NewLoader(c.Registry, c.Catalog, c.sharedConfig(), c.Logger, c.Metrics)
	c.Installer = plugins.NewInstaller(cfg.PluginDirs, c.Store, c.Logger)

	c.Rollback = services.NewRollbackEngine(cfg.ProjectDir, c.Logger)
	c.Tracker = services.NewSessionTracker(c.Store, c.Rollback, c.Logger, c.Metrics)

	c.Logger.Debug("container initialized",
		"config", c.ConfigRepo.GetConfigPath(),
		"stateDir", c.Store.Root(),
		"projectDir", cfg.ProjectDir)
	return nil
}

// sharedConfig is the configuration every plugin constructor receives
func (c *Container) sharedConfig() plugins.SharedConfig {
	shared := plugins.SharedConfig(maps.Clone(c.Config.Shared))
	if shared == nil {
		shared = plugins.SharedConfig{}
	}
	if _, ok := shared["projectDir"]; !ok {
		shared["projectDir"] = c.Config.ProjectDir
	}
	return shared
}

// Discover runs plugin discovery once per container and returns the cached result
func (c *Container) Discover(ctx context.Context) (*plugins.DiscoveryResult, error) {
	c.discoverOnce.Do(func() {
		c.discovery, c.discoveryErr = c.Discoverer.Discover(ctx)
	})
	return c.discovery, c.discoveryErr
}

// Shutdown releases loaded plugins. The active session is left open so a later
// process can resume it.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error
	if c.Loader != nil {
		if err := c.Loader.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		c.Logger.Warn("shutdown completed with errors", "error", err)
		return err
	}
	c.Logger.Debug("shutdown complete")
	return nil
}
