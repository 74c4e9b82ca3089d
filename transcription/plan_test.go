package transcription

import (
	"reflect"
	"testing"
	"time"

	apperrors "github.com/kbukum/sttkit/errors"
)

func TestNewPlanDefaults(t *testing.T) {
	p, err := NewPlan([]string{"whisper", "openai"})
	if err != nil {
		t.Fatalf("NewPlan failed: %v", err)
	}
	if p.MaxRetries() != DefaultMaxRetries {
		t.Errorf("expected default max retries %d, got %d", DefaultMaxRetries, p.MaxRetries())
	}
	if p.Attempts() != DefaultMaxRetries+1 {
		t.Errorf("expected %d attempts, got %d", DefaultMaxRetries+1, p.Attempts())
	}
	if p.Timeout() != DefaultTimeout {
		t.Errorf("expected default timeout, got %v", p.Timeout())
	}
	if p.Backoff() != 0 {
		t.Errorf("expected no backoff, got %v", p.Backoff())
	}
	if p.Primary() != "whisper" || !p.HasFallback() {
		t.Errorf("unexpected primary/fallback: %q %v", p.Primary(), p.HasFallback())
	}
	if !reflect.DeepEqual(p.Fallbacks(), []string{"openai"}) {
		t.Errorf("expected fallbacks [openai], got %v", p.Fallbacks())
	}
}

func TestNewPlanInvalid(t *testing.T) {
	tests := []struct {
		name      string
		providers []string
		opts      []PlanOption
	}{
		{"empty providers", nil, nil},
		{"blank provider", []string{"whisper", " "}, nil},
		{"negative retries", []string{"whisper"}, []PlanOption{WithMaxRetries(-1)}},
		{"zero timeout", []string{"whisper"}, []PlanOption{WithTimeout(0)}},
		{"negative timeout", []string{"whisper"}, []PlanOption{WithTimeout(-time.Second)}},
		{"negative backoff", []string{"whisper"}, []PlanOption{WithBackoff(-time.Second)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewPlan(tc.providers, tc.opts...)
			appErr, ok := apperrors.AsAppError(err)
			if !ok || appErr.Code != apperrors.ErrCodeInvalidInput {
				t.Fatalf("expected INVALID_INPUT, got %v", err)
			}
			if !p.IsZero() {
				t.Error("expected zero plan on error")
			}
		})
	}
}

func TestPlanFactoriesAgree(t *testing.T) {
	viaNew, err := NewPlan([]string{"a", "b", "c"}, WithMaxRetries(2))
	if err != nil {
		t.Fatal(err)
	}
	viaFallback, err := FallbackPlan("a", []string{"b", "c"}, WithMaxRetries(2))
	if err != nil {
		t.Fatal(err)
	}
	if !viaNew.Equal(viaFallback) {
		t.Error("expected NewPlan and FallbackPlan to produce equal plans")
	}

	single, err := SinglePlan("a")
	if err != nil {
		t.Fatal(err)
	}
	if single.HasFallback() || len(single.Fallbacks()) != 0 {
		t.Errorf("single plan must not have fallbacks: %v", single.Fallbacks())
	}
}

func TestPlanEqual(t *testing.T) {
	base := func(opts ...PlanOption) Plan {
		t.Helper()
		p, err := NewPlan([]string{"a", "b"}, opts...)
		if err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name  string
		other Plan
		equal bool
	}{
		{"identical", base(), true},
		{"different retries", base(WithMaxRetries(3)), false},
		{"different timeout", base(WithTimeout(time.Second)), false},
		{"different backoff", base(WithBackoff(time.Second)), false},
		{"different options", base(WithProviderOptions("a", Options{"language": "en"})), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := base().Equal(tc.other); got != tc.equal {
				t.Errorf("Equal() = %v, want %v", got, tc.equal)
			}
		})
	}

	withOpts := base(WithProviderOptions("a", Options{"language": "en"}))
	if !withOpts.Equal(base(WithProviderOptions("a", Options{"language": "en"}))) {
		t.Error("plans with equal options must be equal")
	}

	nilOpts := base(WithProviderOptions("a", nil))
	if !nilOpts.Equal(base(WithProviderOptions("a", Options{}))) {
		t.Error("nil and empty option bags must compare equal")
	}
	if nilOpts.Equal(base(WithProviderOptions("b", nil))) {
		t.Error("option bags for different providers must not compare equal")
	}
	if nilOpts.Options("a") == nil {
		t.Error("expected an empty bag for a, got nil")
	}
}

func TestPlanDoesNotShareInput(t *testing.T) {
	names := []string{"a", "b"}
	opts := Options{"language": "en"}
	p, err := NewPlan(names, WithProviderOptions("a", opts))
	if err != nil {
		t.Fatal(err)
	}

	names[0] = "mutated"
	opts["language"] = "de"
	if p.Primary() != "a" {
		t.Errorf("mutating the input slice changed the plan: %v", p.Providers())
	}
	if p.Options("a").String("language") != "en" {
		t.Errorf("mutating the input options changed the plan: %v", p.Options("a"))
	}

	got := p.Providers()
	got[1] = "mutated"
	if p.Providers()[1] != "b" {
		t.Error("Providers must return a copy")
	}
	o := p.Options("a")
	o["language"] = "fr"
	if p.Options("a").String("language") != "en" {
		t.Error("Options must return a copy")
	}
	if !reflect.DeepEqual(names, []string{"mutated", "b"}) {
		t.Error("NewPlan must not modify its input")
	}
}

func TestPlanOptionsAbsent(t *testing.T) {
	p, err := SinglePlan("a")
	if err != nil {
		t.Fatal(err)
	}
	opts := p.Options("missing")
	if opts == nil || len(opts) != 0 {
		t.Errorf("expected empty non-nil options, got %#v", opts)
	}
}

func TestOptionsAccessors(t *testing.T) {
	o := Options{"language": "en", "temperature": 0.2, "beam": 5, "flag": true}
	if o.String("language") != "en" || o.String("flag") != "" {
		t.Error("unexpected String result")
	}
	if v, ok := o.Float("temperature"); !ok || v != 0.2 {
		t.Errorf("expected 0.2, got %v %v", v, ok)
	}
	if v, ok := o.Float("beam"); !ok || v != 5 {
		t.Errorf("expected 5, got %v %v", v, ok)
	}
	if _, ok := o.Float("language"); ok {
		t.Error("expected non-numeric value to be rejected")
	}
}
