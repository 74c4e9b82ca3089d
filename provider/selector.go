package provider

import "context"

// Source is the read side of a Registry that selectors resolve against.
type Source[T Provider] interface {
	Get(name string) (T, bool)
	List() []T
}

// Selector resolves requested names into the ordered providers to try.
// Implementations are deterministic for unchanged source state and may
// return an empty slice.
type Selector[T Provider] interface {
	Select(ctx context.Context, names []string, src Source[T]) []T
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc[T Provider] func(ctx context.Context, names []string, src Source[T]) []T

// Select calls f.
func (f SelectorFunc[T]) Select(ctx context.Context, names []string, src Source[T]) []T {
	return f(ctx, names, src)
}

// PrioritySelector keeps the requested order, dropping names that are not
// registered or not available. Repeated names keep their first position.
type PrioritySelector[T Provider] struct{}

// Select implements Selector.
func (PrioritySelector[T]) Select(ctx context.Context, names []string, src Source[T]) []T {
	seen := make(map[string]struct{}, len(names))
	out := make([]T, 0, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if p, ok := src.Get(name); ok && p.IsAvailable(ctx) {
			out = append(out, p)
		}
	}
	return out
}

// RegistrationOrderSelector returns the same providers as PrioritySelector
// ordered by their position in the source rather than in the request.
type RegistrationOrderSelector[T Provider] struct{}

// Select implements Selector.
func (RegistrationOrderSelector[T]) Select(ctx context.Context, names []string, src Source[T]) []T {
	chosen := make(map[string]struct{})
	for _, p := range (PrioritySelector[T]{}).Select(ctx, names, src) {
		chosen[p.Name()] = struct{}{}
	}
	out := make([]T, 0, len(chosen))
	for _, p := range src.List() {
		if _, ok := chosen[p.Name()]; ok {
			out = append(out, p)
		}
	}
	return out
}

// FilterSelector narrows the result of Inner (PrioritySelector when nil)
// to the providers Keep accepts, preserving order.
type FilterSelector[T Provider] struct {
	Inner Selector[T]
	Keep  func(T) bool
}

// Select implements Selector.
func (s FilterSelector[T]) Select(ctx context.Context, names []string, src Source[T]) []T {
	inner := s.Inner
	if inner == nil {
		inner = PrioritySelector[T]{}
	}
	candidates := inner.Select(ctx, names, src)
	if s.Keep == nil {
		return candidates
	}
	out := make([]T, 0, len(candidates))
	for _, p := range candidates {
		if s.Keep(p) {
			out = append(out, p)
		}
	}
	return out
}
