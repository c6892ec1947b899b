// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package driver

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates a Provider instance.
type Factory func() (Provider, error)

// RegistryEntry represents a registered compute driver.
type RegistryEntry struct {
	// Name is the unique identifier for this driver.
	Name string

	// Priority determines selection order (higher = preferred).
	// Standard priorities:
	//   - 100: hardware drivers (CUDA, HIP)
	//   - 10: software drivers
	Priority int

	// Factory creates provider instances.
	Factory Factory

	// Available reports if the driver is usable on this system.
	Available func() bool
}

// globalRegistry is the default registry.
var globalRegistry = NewRegistry()

// Registry manages registered compute drivers.
//
// The registry lets hardware bindings register themselves from their own
// packages without changes to the core library:
//
//	func init() {
//	    driver.Register("cuda", 100, newCUDAProvider, cudaAvailable)
//	}
//
// Callers open a driver by name or auto-select the best available:
//
//	p, err := driver.Open("cuda")
//	p, err := driver.OpenDefault()
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*RegistryEntry
}

// NewRegistry creates a new empty registry.
// Most code should use the global registry via Register and Open.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*RegistryEntry),
	}
}

// Register adds a driver to the global registry.
//
// If available is nil, the driver is assumed always available.
// Registering a name that already exists replaces the previous entry.
func Register(name string, priority int, factory Factory, available func() bool) {
	globalRegistry.Register(name, priority, factory, available)
}

// Open creates a provider from the named driver in the global registry.
func Open(name string) (Provider, error) {
	return globalRegistry.Open(name)
}

// OpenDefault creates a provider from the highest-priority available driver
// in the global registry.
func OpenDefault() (Provider, error) {
	return globalRegistry.OpenDefault()
}

// List returns the names of all registered drivers in the global registry,
// sorted by priority (highest first).
func List() []string {
	return globalRegistry.List()
}

// Register adds a driver to the registry.
func (r *Registry) Register(name string, priority int, factory Factory, available func() bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries == nil {
		r.entries = make(map[string]*RegistryEntry)
	}
	r.entries[name] = &RegistryEntry{
		Name:      name,
		Priority:  priority,
		Factory:   factory,
		Available: available,
	}
}

// Unregister removes a driver from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Get returns the entry for the named driver.
func (r *Registry) Get(name string) (*RegistryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Open creates a provider from the named driver.
func (r *Registry) Open(name string) (Provider, error) {
	e, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
	if e.Available != nil && !e.Available() {
		return nil, fmt.Errorf("%w: %q is not available on this system", ErrNoDriver, name)
	}
	return e.Factory()
}

// OpenDefault creates a provider from the highest-priority available driver.
func (r *Registry) OpenDefault() (Provider, error) {
	for _, name := range r.List() {
		e, ok := r.Get(name)
		if !ok {
			continue
		}
		if e.Available != nil && !e.Available() {
			continue
		}
		return e.Factory()
	}
	return nil, ErrNoDriver
}

// List returns all registered driver names sorted by priority (highest first).
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*RegistryEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].Name < entries[j].Name
	})

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}
