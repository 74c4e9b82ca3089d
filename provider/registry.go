package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	apperrors "github.com/kbukum/sttkit/errors"
)

// Registry holds named provider instances in registration order, plus the
// factories that build them. It is safe for concurrent use.
type Registry[T Provider] struct {
	mu        sync.RWMutex
	factories map[string]Factory[T]
	instances map[string]T
	order     []string
}

// NewRegistry creates a new empty Registry.
func NewRegistry[T Provider]() *Registry[T] {
	return &Registry[T]{
		factories: make(map[string]Factory[T]),
		instances: make(map[string]T),
	}
}

// Register adds p under p.Name(). Blank names fail with INVALID_INPUT and
// names already present fail with ALREADY_EXISTS; the registry is unchanged
// in both cases.
func (r *Registry[T]) Register(p T) error {
	name := p.Name()
	if strings.TrimSpace(name) == "" {
		return apperrors.InvalidInput("name", "provider name must not be blank")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.instances[name]; exists {
		return apperrors.AlreadyExists("provider").WithDetail("name", name)
	}
	r.instances[name] = p
	r.order = append(r.order, name)
	return nil
}

// Unregister removes the named provider and reports whether it was present.
func (r *Registry[T]) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[name]; !ok {
		return false
	}
	delete(r.instances, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	return true
}

// Get returns the provider registered under name. Absence is reported by
// the boolean, never by a panic.
func (r *Registry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.instances[name]
	return p, ok
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Len returns the number of registered providers.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Names returns registered names in registration order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// List returns registered providers in registration order.
func (r *Registry[T]) List() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.instances[name])
	}
	return out
}

// ListAvailable returns, in registration order, the providers whose
// IsAvailable reports true. Availability is probed without holding the lock.
func (r *Registry[T]) ListAvailable(ctx context.Context) []T {
	all := r.List()
	out := make([]T, 0, len(all))
	for _, p := range all {
		if p.IsAvailable(ctx) {
			out = append(out, p)
		}
	}
	return out
}

// RegisterFactory registers a factory under a kind such as "whisper".
func (r *Registry[T]) RegisterFactory(kind string, factory Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// Kinds returns the sorted kinds with a registered factory.
func (r *Registry[T]) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Create builds a provider with the factory registered for kind and runs its
// Init when it is Initializable. The instance is not registered.
func (r *Registry[T]) Create(ctx context.Context, kind string, cfg map[string]any) (T, error) {
	var zero T
	r.mu.RLock()
	factory, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return zero, apperrors.NotFound("provider factory", kind)
	}

	p, err := factory(cfg)
	if err != nil {
		return zero, fmt.Errorf("create %s provider: %w", kind, err)
	}
	if in, ok := any(p).(Initializable); ok {
		if err := in.Init(ctx); err != nil {
			return zero, fmt.Errorf("init %s provider %q: %w", kind, p.Name(), err)
		}
	}
	return p, nil
}

// Close calls Close on every registered Closeable provider, in reverse
// registration order, and joins their errors.
func (r *Registry[T]) Close(ctx context.Context) error {
	all := r.List()
	var errs []error
	for i := len(all) - 1; i >= 0; i-- {
		if c, ok := any(all[i]).(Closeable); ok {
			if err := c.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("close %q: %w", all[i].Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
