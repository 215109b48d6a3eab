package provider

import (
	"fmt"
	"sync"
)

// Registry maps provider names to providers. List order is registration order.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Provider
	order  []Provider
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]Provider{}}
}

// Register adds p. A second provider with the same name is rejected.
func (r *Registry) Register(p Provider) error {
	name := p.Name()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateProvider, name)
	}
	r.byName[name] = p
	r.order = append(r.order, p)
	return nil
}

func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	return p, ok
}

// Lookup is Get with an error naming the provider.
func (r *Registry) Lookup(name string) (Provider, error) {
	if p, ok := r.Get(name); ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}

func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Provider(nil), r.order...)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, p.Name())
	}
	return out
}

// First returns the earliest registered provider.
func (r *Registry) First() (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return nil, false
	}
	return r.order[0], true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
