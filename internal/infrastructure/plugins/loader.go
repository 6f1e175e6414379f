package plugins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"devassist.dev/cli/internal/core/domain"
	"devassist.dev/cli/internal/core/plugin"
	"devassist.dev/cli/internal/infrastructure/monitoring"
)

const tracerName = "devassist.dev/cli/plugins"

// Loaded pairs a descriptor with its live instance.
type Loaded struct {
	Descriptor *plugin.Descriptor
	Instance   any
}

// Skipped records a plugin that LoadAllOfType could not load.
type Skipped struct {
	Key string
	Err error
}

// Loader turns registry descriptors into validated, cached plugin instances.
// Concurrent loads of one key share a single construction.
type Loader struct {
	registry *Registry
	catalog  *Catalog
	shared   SharedConfig
	logger   *slog.Logger
	metrics  *monitoring.Metrics
	tracer   trace.Tracer
	group    singleflight.Group
}

// NewLoader creates a loader
func NewLoader(registry *Registry, catalog *Catalog, shared SharedConfig, logger *slog.Logger, metrics *monitoring.Metrics) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	return &Loader{
		registry: registry,
		catalog:  catalog,
		shared:   shared,
		logger:   logger.With("component", "loader"),
		metrics:  metrics,
		tracer:   otel.Tracer(tracerName),
	}
}

// SetTracer replaces the global tracer.
func (l *Loader) SetTracer(t trace.Tracer) {
	l.tracer = t
}

// Load returns the instance for (category, name), constructing and validating it on first use.
func (l *Loader) Load(ctx context.Context, category plugin.Category, name string) (any, error) {
	desc, ok := l.registry.Get(category, name)
	if !ok {
		return nil, domain.NewNotFound("plugin", plugin.Key(category, name))
	}
	if desc.Loaded() {
		return desc.Instance(), nil
	}

	v, err, _ := l.group.Do(desc.Key(), func() (any, error) {
		if desc.Loaded() {
			return desc.Instance(), nil
		}
		return l.load(ctx, desc)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (l *Loader) load(ctx context.Context, desc *plugin.Descriptor) (instance any, err error) {
	key := desc.Key()
	ctx, span := l.tracer.Start(ctx, "plugins.Load", trace.WithAttributes(
		attribute.String("plugin.key", key),
		attribute.String("plugin.path", desc.Path),
	))
	defer func() {
		result := "success"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, "load failed")
			l.logger.Warn("plugin load failed", "key", key, "error", err)
		} else {
			l.logger.Debug("plugin loaded", "key", key, "version", desc.Manifest.Version)
		}
		l.metrics.PluginLoads.WithLabelValues(string(desc.Type), result).Inc()
		span.End()
	}()

	entry := desc.Manifest.MainPath()
	if info, statErr := os.Stat(entry); statErr != nil || info.IsDir() {
		return nil, &domain.LoadError{Key: key, Reason: fmt.Sprintf("entry point %s not found", desc.Manifest.Main), Err: statErr}
	}

	factory, export, ok := l.catalog.Resolve(desc.Type, desc.Manifest)
	if !ok {
		return nil, &domain.LoadError{
			Key:    key,
			Reason: fmt.Sprintf("no registered export among [%s]", strings.Join(desc.Manifest.Exports(), ", ")),
		}
	}
	span.SetAttributes(attribute.String("plugin.export", export))

	instance, err = factory(desc.Manifest.Clone(), maps.Clone(l.shared))
	if err != nil {
		return nil, &domain.LoadError{Key: key, Reason: "constructor failed", Err: err}
	}
	if instance == nil {
		return nil, &domain.LoadError{Key: key, Reason: "constructor returned no instance"}
	}

	if err := plugin.ValidateContract(desc.Type, instance); err != nil {
		return nil, &domain.LoadError{Key: key, Reason: "contract violation", Err: err}
	}

	if initializer, ok := instance.(plugin.Initializer); ok {
		if err := initializer.Initialize(ctx); err != nil {
			return nil, &domain.LoadError{Key: key, Reason: "initialize failed", Err: err}
		}
	}

	desc.MarkLoaded(instance)
	return instance, nil
}

// LoadAllOfType attempts every plugin of a category independently. Failures never abort
// the batch; they are returned as skips.
func (l *Loader) LoadAllOfType(ctx context.Context, category plugin.Category) ([]Loaded, []Skipped) {
	var loaded []Loaded
	var skipped []Skipped

	for _, desc := range l.registry.ByType(category) {
		instance, err := l.Load(ctx, category, desc.Name)
		if err != nil {
			skipped = append(skipped, Skipped{Key: desc.Key(), Err: err})
			continue
		}
		loaded = append(loaded, Loaded{Descriptor: desc, Instance: instance})
	}

	return loaded, skipped
}

// Shutdown unloads every instance and runs its Cleanup hook if it has one.
func (l *Loader) Shutdown(ctx context.Context) error {
	var errs []error
	for _, desc := range l.registry.List() {
		if !desc.Loaded() {
			continue
		}
		instance := desc.Unload()
		if cleaner, ok := instance.(plugin.Cleaner); ok {
			if err := cleaner.Cleanup(ctx); err != nil {
				errs = append(errs, fmt.Errorf("cleanup %s: %w", desc.Key(), err))
			}
		}
	}
	return errors.Join(errs...)
}
