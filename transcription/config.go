package transcription

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/go-viper/mapstructure/v2"

	apperrors "github.com/kbukum/sttkit/errors"
	"github.com/kbukum/sttkit/validation"
)

// Config is the transcription section of the service configuration.
//
//	transcription:
//	  policy: priority
//	  default_plan:
//	    providers: [whisper, openai]
//	    max_retries: 1
//	    timeout: 2m
//	  providers:
//	    - name: whisper
//	      kind: whisper
//	      settings:
//	        url: http://localhost:8387
type Config struct {
	Policy      string           `mapstructure:"policy" yaml:"policy" validate:"omitempty,oneof=priority availability_first format_aware"`
	Format      string           `mapstructure:"format" yaml:"format"`
	DefaultPlan PlanConfig       `mapstructure:"default_plan" yaml:"default_plan"`
	Providers   []ProviderConfig `mapstructure:"providers" yaml:"providers" validate:"dive"`
}

// ProviderConfig describes one backend instance to create through a
// registered factory.
type ProviderConfig struct {
	Name     string         `mapstructure:"name" yaml:"name" validate:"required,nonblank"`
	Kind     string         `mapstructure:"kind" yaml:"kind" validate:"required,nonblank"`
	Settings map[string]any `mapstructure:"settings" yaml:"settings"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Policy == "" {
		c.Policy = PolicyPriority
	}
	if len(c.DefaultPlan.Providers) == 0 {
		for _, p := range c.Providers {
			c.DefaultPlan.Providers = append(c.DefaultPlan.Providers, p.Name)
		}
	}
}

// Validate checks field constraints and rejects duplicate provider names.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Providers))
	for _, p := range c.Providers {
		if _, dup := seen[p.Name]; dup {
			return apperrors.InvalidInput("providers", fmt.Sprintf("provider %q is configured twice", p.Name))
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

// SelectionPolicy returns the configured policy.
func (c *Config) SelectionPolicy() (Policy, error) {
	return PolicyByName(c.Policy, c.Format)
}

// PlanConfig is the loadable form of a Plan. Zero fields take the Plan
// defaults; MaxRetries is a pointer so an explicit 0 disables retries.
type PlanConfig struct {
	Providers  []string           `mapstructure:"providers" yaml:"providers"`
	MaxRetries *int               `mapstructure:"max_retries" yaml:"max_retries"`
	Timeout    time.Duration      `mapstructure:"timeout" yaml:"timeout"`
	Backoff    time.Duration      `mapstructure:"backoff" yaml:"backoff"`
	Options    map[string]Options `mapstructure:"options" yaml:"options"`
}

// Merge returns c with its unset fields taken from defaults.
func (c PlanConfig) Merge(defaults PlanConfig) PlanConfig {
	if len(c.Providers) == 0 {
		c.Providers = defaults.Providers
	}
	if c.MaxRetries == nil {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.Backoff == 0 {
		c.Backoff = defaults.Backoff
	}
	if len(defaults.Options) > 0 {
		merged := maps.Clone(defaults.Options)
		maps.Copy(merged, c.Options)
		c.Options = merged
	}
	return c
}

// Plan builds a validated Plan.
func (c PlanConfig) Plan() (Plan, error) {
	var opts []PlanOption
	if c.MaxRetries != nil {
		opts = append(opts, WithMaxRetries(*c.MaxRetries))
	}
	if c.Timeout != 0 {
		opts = append(opts, WithTimeout(c.Timeout))
	}
	if c.Backoff != 0 {
		opts = append(opts, WithBackoff(c.Backoff))
	}
	for name, o := range c.Options {
		opts = append(opts, WithProviderOptions(name, o))
	}
	return NewPlan(c.Providers, opts...)
}

// RegisterProviders creates each configured provider through the factory
// registered for its kind and registers it under its configured name. The
// name is passed to the factory as the "name" setting.
func RegisterProviders(ctx context.Context, reg *Registry, providers []ProviderConfig) error {
	for _, pc := range providers {
		settings := maps.Clone(pc.Settings)
		if settings == nil {
			settings = make(map[string]any, 1)
		}
		settings["name"] = pc.Name

		t, err := reg.Create(ctx, pc.Kind, settings)
		if err != nil {
			return fmt.Errorf("create provider %s (%s): %w", pc.Name, pc.Kind, err)
		}
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("register provider %s: %w", pc.Name, err)
		}
	}
	return nil
}

// DecodeSettings decodes a factory settings map into out. Strings such as
// "30s" are accepted for time.Duration fields.
func DecodeSettings(settings map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(settings); err != nil {
		return apperrors.InvalidInput("settings", err.Error()).WithCause(err)
	}
	return nil
}
