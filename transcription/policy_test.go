package transcription_test

import (
	"context"
	"reflect"
	"testing"

	apperrors "github.com/kbukum/sttkit/errors"
	"github.com/kbukum/sttkit/transcription"
	"github.com/kbukum/sttkit/transcription/transcriptiontest"
)

func registryOf(t *testing.T, ts ...*transcriptiontest.Transcriber) *transcription.Registry {
	t.Helper()
	reg := transcription.NewRegistry()
	for _, tr := range ts {
		if err := reg.Register(tr); err != nil {
			t.Fatalf("Register(%q) failed: %v", tr.Name(), err)
		}
	}
	return reg
}

func transcriberNames(ts []transcription.Transcriber) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Name())
	}
	return out
}

func TestPriorityPolicy(t *testing.T) {
	reg := registryOf(t,
		transcriptiontest.New("gemini").SetAvailable(false),
		transcriptiontest.New("openai"),
	)
	got := transcriberNames(transcription.Priority().Select(context.Background(), []string{"gemini", "openai", "x"}, reg))
	if !reflect.DeepEqual(got, []string{"openai"}) {
		t.Errorf("expected [openai], got %v", got)
	}
}

func TestPolicyOnEmptyRegistry(t *testing.T) {
	reg := transcription.NewRegistry()
	for _, p := range []transcription.Policy{
		transcription.Priority(),
		transcription.AvailabilityFirst(),
		transcription.FormatAware("wav"),
	} {
		if got := p.Select(context.Background(), []string{"a", "b"}, reg); len(got) != 0 {
			t.Errorf("expected no candidates, got %v", transcriberNames(got))
		}
	}
}

func TestAvailabilityFirstPolicy(t *testing.T) {
	reg := registryOf(t,
		transcriptiontest.New("c"),
		transcriptiontest.New("a"),
		transcriptiontest.New("down").SetAvailable(false),
		transcriptiontest.New("b"),
	)
	requested := []string{"b", "down", "a", "c", "a"}

	priority := transcriberNames(transcription.Priority().Select(context.Background(), requested, reg))
	availability := transcriberNames(transcription.AvailabilityFirst().Select(context.Background(), requested, reg))

	if !reflect.DeepEqual(priority, []string{"b", "a", "c"}) {
		t.Errorf("unexpected priority order %v", priority)
	}
	if !reflect.DeepEqual(availability, []string{"c", "a", "b"}) {
		t.Errorf("expected registration order [c a b], got %v", availability)
	}
}

func TestFormatAwarePolicy(t *testing.T) {
	reg := registryOf(t,
		transcriptiontest.New("mp3only").WithFormats("mp3"),
		transcriptiontest.New("wavonly").WithFormats("wav"),
		transcriptiontest.New("any"),
	)
	requested := []string{"mp3only", "wavonly", "any"}

	got := transcriberNames(transcription.FormatAware("WAV").Select(context.Background(), requested, reg))
	if !reflect.DeepEqual(got, []string{"wavonly", "any"}) {
		t.Errorf("expected [wavonly any], got %v", got)
	}

	// Without a format and outside an execution nothing is filtered.
	got = transcriberNames(transcription.FormatAware("").Select(context.Background(), requested, reg))
	if !reflect.DeepEqual(got, requested) {
		t.Errorf("expected unfiltered %v, got %v", requested, got)
	}
}

func TestSelectionIsDeterministic(t *testing.T) {
	reg := registryOf(t, transcriptiontest.New("a"), transcriptiontest.New("b"), transcriptiontest.New("c"))
	requested := []string{"c", "a", "b"}
	for _, p := range []transcription.Policy{transcription.Priority(), transcription.AvailabilityFirst()} {
		first := transcriberNames(p.Select(context.Background(), requested, reg))
		for i := 0; i < 5; i++ {
			if got := transcriberNames(p.Select(context.Background(), requested, reg)); !reflect.DeepEqual(got, first) {
				t.Fatalf("selection changed between calls: %v vs %v", first, got)
			}
		}
	}
}

func TestPolicyByName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"", false},
		{"priority", false},
		{"Availability_First", false},
		{"format_aware", false},
		{"random", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := transcription.PolicyByName(tc.name, "wav")
			if tc.wantErr {
				appErr, ok := apperrors.AsAppError(err)
				if !ok || appErr.Code != apperrors.ErrCodeInvalidInput {
					t.Fatalf("expected INVALID_INPUT, got %v", err)
				}
				return
			}
			if err != nil || p == nil {
				t.Fatalf("unexpected result %v, %v", p, err)
			}
		})
	}
}

func TestForFormat(t *testing.T) {
	reg := registryOf(t,
		transcriptiontest.New("a").WithFormats("wav"),
		transcriptiontest.New("b").WithFormats("mp3"),
		transcriptiontest.New("c").SetAvailable(false),
	)
	got := transcriberNames(transcription.ForFormat(reg, ".wav"))
	if !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("expected [a c], got %v", got)
	}
}
