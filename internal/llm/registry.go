// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Provider registry with factory pattern

package llm

import (
	"fmt"
	"sort"
	"sync"
)

// ProviderFactory creates a provider from config
type ProviderFactory func(config *ProviderConfig) (Provider, error)

// Registry manages provider factories.
// A provider that cannot be built is an error: there is no fallback, since
// a substitute reply would be rendered as if the model had produced it.
type Registry struct {
	mu        sync.RWMutex
	factories map[ProviderType]ProviderFactory
}

// DefaultRegistry is the global provider registry
var DefaultRegistry = NewRegistry()

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[ProviderType]ProviderFactory),
	}
}

// Register adds a provider factory to the registry
func (r *Registry) Register(providerType ProviderType, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[providerType] = factory
}

// Get validates config and builds the requested provider
func (r *Registry) Get(config *ProviderConfig) (Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: no provider configured", ErrUnknownProvider)
	}

	r.mu.RLock()
	factory, ok := r.factories[config.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, config.Type)
	}

	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	prov, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %s: %w", config.Type, err)
	}
	return prov, nil
}

// Names returns the registered provider types, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for t := range r.factories {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}

// NewProvider creates an LLM provider from the default registry
func NewProvider(config *ProviderConfig) (Provider, error) {
	return DefaultRegistry.Get(config)
}
