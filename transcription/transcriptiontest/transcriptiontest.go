// Package transcriptiontest provides a scripted transcriber for tests,
// demos and offline configurations.
package transcriptiontest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/sttkit/provider"
	"github.com/kbukum/sttkit/transcription"
)

// Kind is the factory kind for scripted transcribers.
const Kind = "scripted"

// Step is the scripted outcome of one Transcribe call.
type Step struct {
	Text  string
	Err   error
	Delay time.Duration
	// IgnoreContext makes Delay a plain sleep that does not observe
	// cancellation, like a misbehaving client.
	IgnoreContext bool
	Panic         any
}

// Text returns a step that succeeds with text.
func Text(text string) Step { return Step{Text: text} }

// Fail returns a step that fails with err.
func Fail(err error) Step { return Step{Err: err} }

// Failf returns a step that fails with a formatted error.
func Failf(format string, args ...any) Step { return Step{Err: fmt.Errorf(format, args...)} }

// Empty returns a step that succeeds with a blank transcript.
func Empty() Step { return Step{} }

// Hang returns a step that sleeps for d ignoring its context, then succeeds.
func Hang(d time.Duration) Step {
	return Step{Text: "late", Delay: d, IgnoreContext: true}
}

// Transcriber replays its steps in order and repeats the last one once they
// run out. Without steps every call returns "transcript from <name>".
type Transcriber struct {
	name    string
	formats *transcription.FormatSet

	mu        sync.Mutex
	available bool
	steps     []Step
	requests  []transcription.Request
	closed    bool
}

var _ transcription.Transcriber = (*Transcriber)(nil)

// New creates an available transcriber that accepts every format.
func New(name string, steps ...Step) *Transcriber {
	return &Transcriber{name: name, available: true, steps: steps}
}

// WithFormats restricts the accepted formats.
func (t *Transcriber) WithFormats(formats ...string) *Transcriber {
	fs := transcription.NewFormatSet(formats...)
	t.formats = &fs
	return t
}

// SetAvailable changes the reported availability.
func (t *Transcriber) SetAvailable(available bool) *Transcriber {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.available = available
	return t
}

// Name implements transcription.Transcriber.
func (t *Transcriber) Name() string { return t.name }

// IsAvailable implements transcription.Transcriber.
func (t *Transcriber) IsAvailable(context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.available && !t.closed
}

// SupportsFormat implements transcription.Transcriber.
func (t *Transcriber) SupportsFormat(format string) bool {
	return t.formats == nil || t.formats.Supports(format)
}

// Transcribe implements transcription.Transcriber.
func (t *Transcriber) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	t.mu.Lock()
	n := len(t.requests)
	t.requests = append(t.requests, req)
	step := Step{Text: "transcript from " + t.name}
	if len(t.steps) > 0 {
		step = t.steps[min(n, len(t.steps)-1)]
	}
	t.mu.Unlock()

	if step.Delay > 0 {
		if step.IgnoreContext {
			time.Sleep(step.Delay)
		} else {
			timer := time.NewTimer(step.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	if step.Panic != nil {
		panic(step.Panic)
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return &transcription.Result{Text: step.Text}, nil
}

// Calls returns how many times Transcribe was invoked.
func (t *Transcriber) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}

// Requests returns the requests received, in order.
func (t *Transcriber) Requests() []transcription.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]transcription.Request(nil), t.requests...)
}

// Close marks the transcriber unavailable.
func (t *Transcriber) Close(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Closed reports whether Close was called.
func (t *Transcriber) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Config configures a scripted transcriber built by Factory.
type Config struct {
	Name string `mapstructure:"name"`
	// Text is returned by every call unless Error is set.
	Text      string   `mapstructure:"text"`
	Error     string   `mapstructure:"error"`
	Available *bool    `mapstructure:"available"`
	Formats   []string `mapstructure:"formats"`
}

// Factory returns a provider.Factory creating scripted transcribers from a
// settings map, for offline configurations.
func Factory() provider.Factory[transcription.Transcriber] {
	return func(settings map[string]any) (transcription.Transcriber, error) {
		var cfg Config
		if err := transcription.DecodeSettings(settings, &cfg); err != nil {
			return nil, err
		}
		if cfg.Name == "" {
			cfg.Name = Kind
		}

		var steps []Step
		switch {
		case cfg.Error != "":
			steps = append(steps, Fail(errors.New(cfg.Error)))
		case cfg.Text != "":
			steps = append(steps, Text(cfg.Text))
		}
		t := New(cfg.Name, steps...)
		if len(cfg.Formats) > 0 {
			t.WithFormats(cfg.Formats...)
		}
		if cfg.Available != nil {
			t.SetAvailable(*cfg.Available)
		}
		return t, nil
	}
}
