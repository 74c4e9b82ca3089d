package transcription

import (
	"maps"
	"reflect"
	"slices"
	"time"

	"github.com/kbukum/sttkit/validation"
)

// Plan defaults.
const (
	DefaultMaxRetries = 1
	DefaultTimeout    = 5 * time.Minute
)

// Plan is an immutable description of which backends to try, in order, and
// how hard to try each one. Construct it with NewPlan, SinglePlan or
// FallbackPlan; accessors return copies.
type Plan struct {
	providers  []string
	options    map[string]Options
	maxRetries int
	timeout    time.Duration
	backoff    time.Duration
}

type planSpec struct {
	Providers  []string           `json:"providers" validate:"min=1,dive,nonblank"`
	Options    map[string]Options `json:"options"`
	MaxRetries int                `json:"max_retries" validate:"gte=0"`
	Timeout    time.Duration      `json:"timeout" validate:"gt=0"`
	Backoff    time.Duration      `json:"backoff" validate:"gte=0"`
}

// PlanOption customises a Plan under construction.
type PlanOption func(*planSpec)

// WithMaxRetries sets how many times a failed attempt is repeated on the same
// backend before falling back. Zero means one attempt per backend.
func WithMaxRetries(n int) PlanOption {
	return func(s *planSpec) { s.MaxRetries = n }
}

// WithTimeout sets the budget of a single attempt.
func WithTimeout(d time.Duration) PlanOption {
	return func(s *planSpec) { s.Timeout = d }
}

// WithBackoff sets the initial pause between retries of the same backend.
// It doubles on every further retry.
func WithBackoff(d time.Duration) PlanOption {
	return func(s *planSpec) { s.Backoff = d }
}

// WithProviderOptions sets the option bag passed to the named backend.
// The map is copied; nil is stored as an empty bag.
func WithProviderOptions(name string, opts Options) PlanOption {
	return func(s *planSpec) {
		if s.Options == nil {
			s.Options = make(map[string]Options)
		}
		if opts == nil {
			opts = Options{}
		}
		s.Options[name] = maps.Clone(opts)
	}
}

// NewPlan builds a Plan trying providers in the given order. The slice is
// copied and never modified. Invalid input yields INVALID_INPUT.
func NewPlan(providers []string, opts ...PlanOption) (Plan, error) {
	spec := planSpec{
		Providers:  slices.Clone(providers),
		MaxRetries: DefaultMaxRetries,
		Timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&spec)
	}
	if err := validation.Validate(spec); err != nil {
		return Plan{}, err
	}

	return Plan{
		providers:  spec.Providers,
		options:    spec.Options,
		maxRetries: spec.MaxRetries,
		timeout:    spec.Timeout,
		backoff:    spec.Backoff,
	}, nil
}

// SinglePlan builds a Plan with one backend and no fallback.
func SinglePlan(name string, opts ...PlanOption) (Plan, error) {
	return NewPlan([]string{name}, opts...)
}

// FallbackPlan builds a Plan trying primary first and then fallbacks in order.
func FallbackPlan(primary string, fallbacks []string, opts ...PlanOption) (Plan, error) {
	names := make([]string, 0, 1+len(fallbacks))
	names = append(names, primary)
	names = append(names, fallbacks...)
	return NewPlan(names, opts...)
}

// Providers returns the requested backend names in order.
func (p Plan) Providers() []string { return slices.Clone(p.providers) }

// Primary returns the first requested backend.
func (p Plan) Primary() string {
	if len(p.providers) == 0 {
		return ""
	}
	return p.providers[0]
}

// HasFallback reports whether more than one backend is requested.
func (p Plan) HasFallback() bool { return len(p.providers) > 1 }

// Fallbacks returns the backends after the primary.
func (p Plan) Fallbacks() []string {
	if len(p.providers) < 2 {
		return []string{}
	}
	return slices.Clone(p.providers[1:])
}

// Options returns a shallow copy of the option bag for name, never nil.
func (p Plan) Options(name string) Options {
	opts := maps.Clone(p.options[name])
	if opts == nil {
		opts = Options{}
	}
	return opts
}

// MaxRetries returns the retry budget per backend.
func (p Plan) MaxRetries() int { return p.maxRetries }

// Attempts returns the number of attempts per backend (MaxRetries + 1).
func (p Plan) Attempts() int { return p.maxRetries + 1 }

// Timeout returns the budget of a single attempt.
func (p Plan) Timeout() time.Duration { return p.timeout }

// Backoff returns the initial pause between retries.
func (p Plan) Backoff() time.Duration { return p.backoff }

// IsZero reports whether p was never constructed.
func (p Plan) IsZero() bool { return len(p.providers) == 0 }

// Equal reports whether p and other describe the same plan.
func (p Plan) Equal(other Plan) bool {
	if !slices.Equal(p.providers, other.providers) ||
		p.maxRetries != other.maxRetries ||
		p.timeout != other.timeout ||
		p.backoff != other.backoff ||
		len(p.options) != len(other.options) {
		return false
	}
	for name, opts := range p.options {
		theirs, ok := other.options[name]
		if !ok || !reflect.DeepEqual(opts, theirs) {
			return false
		}
	}
	return true
}
