package acquisition

import "fmt"

// Registry resolves policies by their config name. It is a constructed
// value passed where needed, never package-level mutable state.
type Registry struct {
	policies map[string]Policy
}

// NewRegistry returns a registry with all built-in policies. Recognized
// names: random, thompson_sampling (alias ts), ucb, ei, variance.
func NewRegistry() *Registry {
	r := &Registry{policies: make(map[string]Policy)}

	r.Register("random", NewRandom())
	ts := NewThompson()
	r.Register("thompson_sampling", ts)
	r.Register("ts", ts)
	r.Register("ucb", NewUCB())
	r.Register("ei", NewEI())
	r.Register("variance", NewVariance())

	return r
}

// Register adds or replaces a policy under name.
func (r *Registry) Register(name string, p Policy) {
	r.policies[name] = p
}

// Get returns the policy registered under name.
func (r *Registry) Get(name string) (Policy, error) {
	p, ok := r.policies[name]
	if !ok {
		return nil, fmt.Errorf("unknown acquisition policy: %q", name)
	}
	return p, nil
}

// Names returns the registered policy names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	return names
}
