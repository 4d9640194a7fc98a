package validation

import (
	"sort"
	"strings"
	"sync"
)

// Registry maps names to validator functions so declarative form definitions
// can reference validators that only exist in code. Later registrations
// replace earlier ones with the same name. The zero value is ready to use.
type Registry struct {
	mu         sync.RWMutex
	validators map[string]ValidatorFunc
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register stores fn under name. Empty names and nil functions are ignored.
func (r *Registry) Register(name string, fn ValidatorFunc) {
	if r == nil || fn == nil {
		return
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.validators == nil {
		r.validators = make(map[string]ValidatorFunc)
	}
	r.validators[trimmed] = fn
}

// Lookup returns the validator registered under name.
func (r *Registry) Lookup(name string) (ValidatorFunc, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.validators[strings.TrimSpace(name)]
	return fn, ok
}

// Names lists registered validators in lexical order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.validators))
	for name := range r.validators {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
