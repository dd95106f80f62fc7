package toolsets

import (
	"sort"
	"strings"
	"sync"
)

// Registry tracks the flat namespace of registered capability names across
// all toolsets of one bundle and detects collisions before anything is
// committed.
//
// The registry is deliberately split into a pure validation step
// (ValidateNames) and a mutating commit step (Commit) so the activation
// manager can check an entire toolset against the current namespace before
// pushing anything to the external registration sink.
type Registry struct {
	mu sync.RWMutex

	// names maps a final qualified capability name to the key of the
	// toolset that owns it. Bare names added via Add have an empty owner.
	names map[string]string

	// namespaceWithKey enables "<toolsetKey>." prefixing of capability
	// names.
	namespaceWithKey bool
}

// NewRegistry creates an empty capability registry. When namespaceWithKey is
// set, qualified names are prefixed with their toolset key.
func NewRegistry(namespaceWithKey bool) *Registry {
	return &Registry{
		names:            make(map[string]string),
		namespaceWithKey: namespaceWithKey,
	}
}

// Add registers a bare capability name. It returns a *CollisionError when
// the name is already present.
func (r *Registry) Add(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, exists := r.names[name]; exists {
		return &CollisionError{Name: name, Owner: owner}
	}
	r.names[name] = ""
	return nil
}

// QualifiedName computes the final exposed name for a capability of the
// given toolset. With namespacing enabled the name is prefixed
// "<toolsetKey>.", unless it already begins with that exact prefix, in which
// case it is left unmodified.
func (r *Registry) QualifiedName(toolsetKey, name string) string {
	if !r.namespaceWithKey {
		return name
	}
	prefix := toolsetKey + "."
	if strings.HasPrefix(name, prefix) {
		return name
	}
	return prefix + name
}

// ValidateNames computes the final qualified name of every capability and
// checks the entire current namespace for conflicts without registering
// anything. Duplicates within the supplied batch collide too.
//
// Returns the qualified names in input order, or a *CollisionError for the
// first conflicting name.
func (r *Registry) ValidateNames(toolsetKey string, capabilities []CapabilityDefinition) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	qualified := make([]string, 0, len(capabilities))
	seen := make(map[string]struct{}, len(capabilities))

	for _, capability := range capabilities {
		name := r.QualifiedName(toolsetKey, capability.Name)

		if owner, exists := r.names[name]; exists {
			return nil, &CollisionError{Name: name, Owner: owner}
		}
		if _, dup := seen[name]; dup {
			return nil, &CollisionError{Name: name, Owner: toolsetKey}
		}

		seen[name] = struct{}{}
		qualified = append(qualified, name)
	}

	return qualified, nil
}

// Commit registers a qualified name previously returned by ValidateNames and
// records its toolset ownership for group queries.
func (r *Registry) Commit(toolsetKey, qualifiedName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[qualifiedName] = toolsetKey
}

// Has reports whether a qualified name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.names[name]
	return exists
}

// List returns all registered qualified names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListByToolset returns the registered qualified names grouped by owning
// toolset key, each group sorted. Bare names added via Add are grouped under
// the empty key.
func (r *Registry) ListByToolset() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	grouped := make(map[string][]string)
	for name, owner := range r.names {
		grouped[owner] = append(grouped[owner], name)
	}
	for _, names := range grouped {
		sort.Strings(names)
	}
	return grouped
}

// Len returns the number of registered names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}
