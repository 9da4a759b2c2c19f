package toolrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/parleyhq/parley/internal/domain"
)

// Capability is one invocable external function.
type Capability func(ctx context.Context, args map[string]string) (json.RawMessage, error)

// Factory constructs a Capability from adapter-specific config.
// It is typically called from an init() function in the adapter package.
type Factory func(config map[string]string) (Capability, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// RegisterFactory makes a capability factory available by adapter name.
func RegisterFactory(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("toolrunner: duplicate factory registration for %q", name))
	}
	factories[name] = factory
}

// NewCapability creates a Capability by adapter name using the registered factory.
func NewCapability(name string, config map[string]string) (Capability, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("toolrunner: unknown adapter %q", name)
	}
	return factory(config)
}

// Registry is an in-process Runner backed by named capabilities.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]Capability
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]Capability)}
}

// Register binds a capability to a tool name, replacing any previous binding.
func (r *Registry) Register(name string, cap Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[name] = cap
}

// Has reports whether the capability is available.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.caps[name]
	return ok
}

// Invoke executes the named capability.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]string) (json.RawMessage, error) {
	r.mu.RLock()
	cap, ok := r.caps[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("capability %q: %w", name, domain.ErrNotFound)
	}
	return cap(ctx, args)
}

// Names returns the registered capability names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	return names
}
