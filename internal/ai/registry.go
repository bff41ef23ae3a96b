package ai

import "sort"

// Registry is the lookup table of interchangeable AI backends. It is built
// once at startup and read-only afterwards, so no locking is needed.
type Registry struct {
	providers map[string]Provider
	defaultID string
}

// NewRegistry creates an empty registry whose Initialize fallback resolves
// to defaultID.
func NewRegistry(defaultID string) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		defaultID: defaultID,
	}
}

// Register adds (or replaces) a provider under its own id.
func (r *Registry) Register(p Provider) {
	r.providers[p.ID()] = p
}

// Get looks up a provider by id.
func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// Default returns the designated fallback provider, or nil if the default
// id was never registered.
func (r *Registry) Default() Provider {
	return r.providers[r.defaultID]
}

// DefaultID returns the configured fallback provider id.
func (r *Registry) DefaultID() string {
	return r.defaultID
}

// IDs lists the registered provider ids (order unspecified).
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.providers))
	for id := range r.providers {
		out = append(out, id)
	}
	return out
}

// List returns the registered providers ordered by id.
func (r *Registry) List() []Provider {
	ids := r.IDs()
	sort.Strings(ids)
	out := make([]Provider, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.providers[id])
	}
	return out
}
