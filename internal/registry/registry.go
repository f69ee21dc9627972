// Package registry keeps the catalog of environments and which of them is
// active, and persists it as a single JSON document next to the repository's
// git metadata.
package registry

import (
	"sort"
	"time"

	"twin/internal/errors"
	"twin/internal/types"
)

// Registry is the in-memory catalog. At most one environment is active and
// Active always names an existing entry.
type Registry struct {
	Environments map[string]*types.Environment `json:"environments"`
	Active       *string                       `json:"active"`
	LastUpdated  *time.Time                    `json:"last_updated"`
}

// New returns an empty registry
func New() *Registry {
	return &Registry{Environments: make(map[string]*types.Environment)}
}

// Add inserts env. A name that is already registered is rejected.
func (r *Registry) Add(env *types.Environment) error {
	if _, ok := r.Environments[env.Name]; ok {
		return errors.EnvironmentAlreadyExists(env.Name)
	}
	r.Environments[env.Name] = env
	r.touch()
	return nil
}

// Remove deletes the named entry and returns it. The active pointer is
// cleared when it referenced the removed entry.
func (r *Registry) Remove(name string) (*types.Environment, bool) {
	env, ok := r.Environments[name]
	if !ok {
		return nil, false
	}
	delete(r.Environments, name)
	if r.Active != nil && *r.Active == name {
		r.Active = nil
	}
	r.touch()
	return env, true
}

// Get returns the named entry
func (r *Registry) Get(name string) (*types.Environment, bool) {
	env, ok := r.Environments[name]
	return env, ok
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.Environments[name]
	return ok
}

// SetActive makes name the sole active environment. The previously active
// entry becomes inactive in the same step.
func (r *Registry) SetActive(name string) error {
	env, ok := r.Environments[name]
	if !ok {
		return errors.EnvironmentNotFound(name)
	}

	if prev := r.GetActive(); prev != nil && prev.Name != name {
		prev.SetStatus(types.StatusInactive, "")
	}
	env.SetStatus(types.StatusActive, "")
	r.Active = &name
	r.touch()
	return nil
}

// ClearActive demotes the active environment, if any
func (r *Registry) ClearActive() {
	if prev := r.GetActive(); prev != nil && prev.Status == types.StatusActive {
		prev.SetStatus(types.StatusInactive, "")
	}
	r.Active = nil
	r.touch()
}

// GetActive returns the active environment or nil
func (r *Registry) GetActive() *types.Environment {
	if r.Active == nil {
		return nil
	}
	return r.Environments[*r.Active]
}

// ActiveName returns the active environment name, or "" when none is active
func (r *Registry) ActiveName() string {
	if r.Active == nil {
		return ""
	}
	return *r.Active
}

// List returns every environment sorted by name
func (r *Registry) List() []*types.Environment {
	envs := make([]*types.Environment, 0, len(r.Environments))
	for _, env := range r.Environments {
		envs = append(envs, env)
	}
	sort.Slice(envs, func(i, j int) bool { return envs[i].Name < envs[j].Name })
	return envs
}

// Len returns the number of environments
func (r *Registry) Len() int {
	return len(r.Environments)
}

// normalize repairs a document read from disk: a nil map becomes empty and a
// dangling active pointer is dropped.
func (r *Registry) normalize() {
	if r.Environments == nil {
		r.Environments = make(map[string]*types.Environment)
	}
	for name, env := range r.Environments {
		if env == nil {
			delete(r.Environments, name)
			continue
		}
		env.Name = name
	}
	if r.Active != nil && !r.Has(*r.Active) {
		r.Active = nil
	}
}

func (r *Registry) touch() {
	now := time.Now().UTC()
	r.LastUpdated = &now
}
