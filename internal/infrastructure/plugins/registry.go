package plugins

import (
	"sort"

	cmap "github.com/orcaman/concurrent-map/v2"

	"devassist.dev/cli/internal/core/plugin"
)

// Registry indexes discovered plugins by "type:name".
// Registration is first-wins: a key is never overwritten.
type Registry struct {
	entries cmap.ConcurrentMap[string, *plugin.Descriptor]
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: cmap.New[*plugin.Descriptor]()}
}

// Register adds d under its key and reports whether it was accepted.
// A false return means an earlier registration shadows d.
func (r *Registry) Register(d *plugin.Descriptor) bool {
	return r.entries.SetIfAbsent(d.Key(), d)
}

// Get returns the descriptor for a type and name.
func (r *Registry) Get(c plugin.Category, name string) (*plugin.Descriptor, bool) {
	return r.entries.Get(plugin.Key(c, name))
}

// ByType returns every descriptor of a category, highest manifest priority first,
// then by name.
func (r *Registry) ByType(c plugin.Category) []*plugin.Descriptor {
	var out []*plugin.Descriptor
	for _, d := range r.entries.Items() {
		if d.Type == c {
			out = append(out, d)
		}
	}
	sortDescriptors(out)
	return out
}

// List returns every descriptor grouped by category, each group ordered like ByType.
func (r *Registry) List() []*plugin.Descriptor {
	var out []*plugin.Descriptor
	for _, c := range plugin.Categories {
		out = append(out, r.ByType(c)...)
	}
	return out
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	return r.entries.Count()
}

// Reset drops every entry. Loaded instances are not cleaned up here.
func (r *Registry) Reset() {
	r.entries.Clear()
}

func sortDescriptors(ds []*plugin.Descriptor) {
	sort.Slice(ds, func(i, j int) bool {
		pi, pj := ds[i].Manifest.Priority, ds[j].Manifest.Priority
		if pi != pj {
			return pi > pj
		}
		return ds[i].Name < ds[j].Name
	})
}
