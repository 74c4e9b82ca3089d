package provider

import "context"

// Provider is the base interface all providers must implement.
type Provider interface {
	// Name returns the provider's unique name.
	Name() string
	// IsAvailable reports whether the provider can take requests right now.
	IsAvailable(ctx context.Context) bool
}

// Factory creates a provider instance from a settings map.
type Factory[T Provider] func(cfg map[string]any) (T, error)
