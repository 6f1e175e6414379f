package plugins

import (
	"fmt"
	"sort"
	"sync"

	"devassist.dev/cli/internal/core/plugin"
)

// SharedConfig is the configuration map handed to every plugin constructor.
type SharedConfig map[string]any

// Factory constructs a plugin instance from its manifest.
type Factory func(m *plugin.Manifest, shared SharedConfig) (any, error)

// Catalog maps (type, export) pairs to constructors registered at program start.
// A manifest's class, its name, or the default export selects the constructor.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Register binds a constructor to a type and export name.
// Registering the same pair twice is a programming error.
func (c *Catalog) Register(category plugin.Category, export string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("nil factory for %s", plugin.Key(category, export))
	}
	if export == "" {
		return fmt.Errorf("empty export name for %s factory", category)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := plugin.Key(category, export)
	if _, exists := c.factories[key]; exists {
		return fmt.Errorf("factory %s already registered", key)
	}
	c.factories[key] = factory
	return nil
}

// MustRegister is Register for init-time wiring; it panics on error.
func (c *Catalog) MustRegister(category plugin.Category, export string, factory Factory) {
	if err := c.Register(category, export, factory); err != nil {
		panic(err)
	}
}

// Lookup returns the constructor registered for (category, export).
func (c *Catalog) Lookup(category plugin.Category, export string) (Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.factories[plugin.Key(category, export)]
	return f, ok
}

// Resolve returns the first registered constructor among the manifest's exports.
func (c *Catalog) Resolve(category plugin.Category, m *plugin.Manifest) (Factory, string, bool) {
	for _, export := range m.Exports() {
		if f, ok := c.Lookup(category, export); ok {
			return f, export, true
		}
	}
	return nil, "", false
}

// Exports lists the registered "type:export" keys, sorted.
func (c *Catalog) Exports() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.factories))
	for k := range c.factories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
