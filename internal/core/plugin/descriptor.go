package plugin

import "sync"

// Descriptor is the registry entry for a discovered plugin: its metadata plus load state.
// Descriptors are rebuilt by every discovery run and never persisted.
type Descriptor struct {
	Type     Category
	Name     string
	Path     string
	Manifest *Manifest
	Root     string

	mu       sync.RWMutex
	loaded   bool
	instance any
}

// NewDescriptor creates an unloaded descriptor for a manifest found in root.
func NewDescriptor(c Category, root string, m *Manifest) *Descriptor {
	return &Descriptor{
		Type:     c,
		Name:     m.Name,
		Path:     m.Path(),
		Manifest: m,
		Root:     root,
	}
}

// Key returns the "type:name" registry key.
func (d *Descriptor) Key() string {
	return Key(d.Type, d.Name)
}

// Loaded reports whether a validated instance is attached.
func (d *Descriptor) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loaded
}

// Instance returns the live instance, or nil when not loaded.
func (d *Descriptor) Instance() any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.instance
}

// MarkLoaded attaches a validated instance. Only the loader calls this.
func (d *Descriptor) MarkLoaded(instance any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.instance = instance
	d.loaded = true
}

// Unload detaches the instance and returns it.
func (d *Descriptor) Unload() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	instance := d.instance
	d.instance = nil
	d.loaded = false
	return instance
}
