package policy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
)

// Registry manages the available dialogue policies.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
	fallback string
	legacy   LegacyPolicy
}

// RegistryOption configures the Registry.
type RegistryOption func(*Registry)

// WithDefault names the policy used when a conversation starts from nothing.
func WithDefault(name string) RegistryOption {
	return func(r *Registry) {
		r.fallback = name
	}
}

// WithLegacy sets the handler for non-state input and system work.
func WithLegacy(l LegacyPolicy) RegistryOption {
	return func(r *Registry) {
		r.legacy = l
	}
}

// NewRegistry creates a new empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		policies: make(map[string]Policy),
		fallback: domain.PolicyTransaction,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a policy under its own name.
func (r *Registry) Register(p Policy) error {
	if p == nil || p.Name() == "" {
		return domain.ErrInvalidPolicy
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.policies[p.Name()]; ok {
		return fmt.Errorf("%w: %s", domain.ErrPolicyExists, p.Name())
	}
	r.policies[p.Name()] = p
	return nil
}

// Lookup returns the policy registered under name.
func (r *Registry) Lookup(name string) (Policy, error) {
	r.mu.RLock()
	p, ok := r.policies[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPolicy, name)
	}
	return p, nil
}

// Default returns the policy used for programs that arrive without a state.
func (r *Registry) Default() (Policy, error) {
	r.mu.RLock()
	name := r.fallback
	r.mu.RUnlock()
	return r.Lookup(name)
}

// DefaultName returns the name of the default policy.
func (r *Registry) DefaultName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// Names lists the registered policies in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetLegacy replaces the legacy policy.
func (r *Registry) SetLegacy(l LegacyPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.legacy = l
}

// Legacy returns the legacy policy, or nil if none is set.
func (r *Registry) Legacy() LegacyPolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.legacy
}
