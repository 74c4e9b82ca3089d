package transcription_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "github.com/kbukum/sttkit/errors"
	"github.com/kbukum/sttkit/logger"
	"github.com/kbukum/sttkit/observability"
	"github.com/kbukum/sttkit/resilience"
	"github.com/kbukum/sttkit/transcription"
	tt "github.com/kbukum/sttkit/transcription/transcriptiontest"
)

func newJob(t *testing.T, format string, providers []string, opts ...transcription.PlanOption) *transcription.Job {
	t.Helper()
	audio, err := transcription.NewAudioReference("/audio/input."+format, format)
	if err != nil {
		t.Fatal(err)
	}
	plan, err := transcription.NewPlan(providers, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return transcription.NewJob(audio, plan)
}

func execute(t *testing.T, ex *transcription.Executor, job *transcription.Job) *transcription.Job {
	t.Helper()
	got, err := ex.Execute(context.Background(), job)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if got != job {
		t.Fatal("Execute must return the job it was given")
	}
	return got
}

func newExecutor(reg *transcription.Registry, opts ...transcription.ExecutorOption) *transcription.Executor {
	return transcription.NewExecutor(reg, append([]transcription.ExecutorOption{transcription.WithLogger(logger.Nop())}, opts...)...)
}

func TestExecuteNoProviderAvailable(t *testing.T) {
	tests := []struct {
		name string
		reg  func(t *testing.T) *transcription.Registry
	}{
		{"empty registry", func(t *testing.T) *transcription.Registry { return transcription.NewRegistry() }},
		{"all unavailable", func(t *testing.T) *transcription.Registry {
			return registryOf(t, tt.New("a").SetAvailable(false))
		}},
		{"unregistered names", func(t *testing.T) *transcription.Registry { return registryOf(t, tt.New("other")) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			job := execute(t, newExecutor(tc.reg(t)), newJob(t, "wav", []string{"a", "b"}))

			if job.Status() != transcription.StatusFailed {
				t.Fatalf("expected failed, got %s", job.Status())
			}
			if job.ErrorKind() != transcription.KindNoProviderAvailable {
				t.Errorf("expected no-provider-available, got %q", job.ErrorKind())
			}
			if job.Err().Code != apperrors.ErrCodeNoProviderAvailable || job.Err().HTTPStatus != 503 {
				t.Errorf("unexpected error %+v", job.Err())
			}
			if len(job.Attempts()) != 0 {
				t.Errorf("expected no attempts, got %d", len(job.Attempts()))
			}
		})
	}
}

func TestExecuteFormatAwareNoMatch(t *testing.T) {
	reg := registryOf(t, tt.New("a").WithFormats("mp3"))
	ex := newExecutor(reg, transcription.WithPolicy(transcription.FormatAware("wav")))
	job := execute(t, ex, newJob(t, "wav", []string{"a"}))
	if job.ErrorKind() != transcription.KindNoProviderAvailable {
		t.Errorf("expected no-provider-available, got %q", job.ErrorKind())
	}
}

func TestExecuteFormatAwareUsesJobFormat(t *testing.T) {
	mp3 := tt.New("mp3only").WithFormats("mp3")
	wav := tt.New("wavonly", tt.Text("hello")).WithFormats("wav")
	ex := newExecutor(registryOf(t, mp3, wav), transcription.WithPolicy(transcription.FormatAware("")))

	job := execute(t, ex, newJob(t, "wav", []string{"mp3only", "wavonly"}))
	if job.Provider() != "wavonly" || mp3.Calls() != 0 {
		t.Errorf("expected wavonly to be used alone, got provider %q, mp3 calls %d", job.Provider(), mp3.Calls())
	}
}

func TestExecutePrimarySucceeds(t *testing.T) {
	a := tt.New("a", tt.Text("hello world"))
	b := tt.New("b")
	job := execute(t, newExecutor(registryOf(t, a, b)), newJob(t, "wav", []string{"a", "b"}))

	if job.Status() != transcription.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", job.Status(), job.ErrorMessage())
	}
	if job.Transcript() != "hello world" || job.Provider() != "a" {
		t.Errorf("unexpected outcome %q from %q", job.Transcript(), job.Provider())
	}
	if b.Calls() != 0 {
		t.Errorf("fallback must not be called, got %d calls", b.Calls())
	}
	if job.Err() != nil || job.ErrorKind() != "" {
		t.Errorf("completed job must have no error, got %v", job.Err())
	}
	attempts := job.Attempts()
	if len(attempts) != 1 || attempts[0].Err != nil || attempts[0].Provider != "a" || attempts[0].Number != 1 {
		t.Errorf("unexpected attempts %+v", attempts)
	}
}

func TestExecuteRetryAccounting(t *testing.T) {
	tests := []struct {
		maxRetries int
		wantCalls  int
	}{
		{0, 1},
		{1, 2},
		{3, 4},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("max_retries=%d", tc.maxRetries), func(t *testing.T) {
			a := tt.New("a", tt.Failf("unavailable"))
			job := execute(t, newExecutor(registryOf(t, a)),
				newJob(t, "wav", []string{"a"}, transcription.WithMaxRetries(tc.maxRetries)))

			if a.Calls() != tc.wantCalls {
				t.Errorf("expected %d calls, got %d", tc.wantCalls, a.Calls())
			}
			if len(job.Attempts()) != tc.wantCalls {
				t.Errorf("expected %d recorded attempts, got %d", tc.wantCalls, len(job.Attempts()))
			}
			for i, at := range job.Attempts() {
				if at.Number != i+1 {
					t.Errorf("attempt %d numbered %d", i, at.Number)
				}
			}
		})
	}
}

func TestExecuteRetryThenSucceed(t *testing.T) {
	a := tt.New("a", tt.Failf("flaky"), tt.Text("second time"))
	job := execute(t, newExecutor(registryOf(t, a)), newJob(t, "wav", []string{"a"}, transcription.WithMaxRetries(2)))

	if job.Status() != transcription.StatusCompleted || job.Transcript() != "second time" {
		t.Fatalf("expected completion on retry, got %s %q", job.Status(), job.Transcript())
	}
	if a.Calls() != 2 || len(job.Attempts()) != 2 {
		t.Errorf("expected 2 calls and attempts, got %d/%d", a.Calls(), len(job.Attempts()))
	}
	if len(job.ProviderFailures()) != 0 {
		t.Errorf("expected no provider failures, got %v", job.ProviderFailures())
	}
}

func TestExecuteFallback(t *testing.T) {
	a := tt.New("a", tt.Failf("a down"))
	b := tt.New("b", tt.Text("from b"))
	job := execute(t, newExecutor(registryOf(t, a, b)),
		newJob(t, "wav", []string{"a", "b"}, transcription.WithMaxRetries(1)))

	if job.Status() != transcription.StatusCompleted || job.Provider() != "b" {
		t.Fatalf("expected completion by b, got %s by %q", job.Status(), job.Provider())
	}
	if a.Calls() != 2 || b.Calls() != 1 {
		t.Errorf("expected a=2 b=1 calls, got a=%d b=%d", a.Calls(), b.Calls())
	}
	failures := job.ProviderFailures()
	if len(failures) != 1 || failures[0].Provider != "a" || failures[0].Attempts != 2 {
		t.Errorf("unexpected failures %+v", failures)
	}
	if len(job.AttemptsFor("a")) != 2 || len(job.AttemptsFor("b")) != 1 {
		t.Errorf("unexpected attempt trail %+v", job.Attempts())
	}
}

func TestExecuteSkipsUnsupportedFormat(t *testing.T) {
	a := tt.New("a", tt.Failf("a down")).WithFormats("mp3")
	b := tt.New("b", tt.Text("from b")).WithFormats("wav")
	job := execute(t, newExecutor(registryOf(t, a, b)),
		newJob(t, "wav", []string{"a", "b"}, transcription.WithMaxRetries(2)))

	if job.Status() != transcription.StatusCompleted || job.Provider() != "b" {
		t.Fatalf("expected completion by b, got %s by %q", job.Status(), job.Provider())
	}
	if a.Calls() != 0 {
		t.Errorf("a cannot read wav and must not be called, got %d calls", a.Calls())
	}
	if len(job.AttemptsFor("a")) != 0 {
		t.Errorf("expected no attempts for a, got %+v", job.AttemptsFor("a"))
	}
	failures := job.ProviderFailures()
	if len(failures) != 1 || failures[0].Provider != "a" || failures[0].Attempts != 0 {
		t.Fatalf("unexpected failures %+v", failures)
	}
	if !errors.Is(failures[0].LastError, transcription.ErrUnsupportedFormat) {
		t.Errorf("expected unsupported format error, got %v", failures[0].LastError)
	}
}

func TestExecuteUnsupportedFormatEverywhere(t *testing.T) {
	a := tt.New("a").WithFormats("mp3")
	job := execute(t, newExecutor(registryOf(t, a)),
		newJob(t, "wav", []string{"a"}, transcription.WithMaxRetries(3)))

	if job.ErrorKind() != transcription.KindAllProvidersExhausted {
		t.Fatalf("expected all-providers-exhausted, got %q", job.ErrorKind())
	}
	want := `all providers exhausted: a: unsupported audio format "wav" (0 attempts)`
	if job.ErrorMessage() != want {
		t.Errorf("expected message %q, got %q", want, job.ErrorMessage())
	}
	if a.Calls() != 0 {
		t.Errorf("expected no calls, got %d", a.Calls())
	}
}

func TestExecuteAllProvidersExhausted(t *testing.T) {
	a := tt.New("a", tt.Failf("a down"))
	b := tt.New("b", tt.Failf("b down"))
	job := execute(t, newExecutor(registryOf(t, a, b)),
		newJob(t, "wav", []string{"a", "b"}, transcription.WithMaxRetries(1)))

	if job.Status() != transcription.StatusFailed || job.ErrorKind() != transcription.KindAllProvidersExhausted {
		t.Fatalf("expected all-providers-exhausted, got %s %q", job.Status(), job.ErrorKind())
	}
	want := "all providers exhausted: a: a down (2 attempts); b: b down (2 attempts)"
	if job.ErrorMessage() != want {
		t.Errorf("expected message %q, got %q", want, job.ErrorMessage())
	}
	if job.Err().Code != apperrors.ErrCodeProvidersExhausted || !job.Err().Retryable {
		t.Errorf("unexpected error %+v", job.Err())
	}

	var order []string
	for _, at := range job.Attempts() {
		order = append(order, at.Provider)
	}
	if strings.Join(order, ",") != "a,a,b,b" {
		t.Errorf("expected attempts a,a,b,b, got %v", order)
	}
	if job.Transcript() != "" || job.Provider() != "" {
		t.Error("failed job must have no transcript")
	}
}

func TestExecuteEmptyTranscriptIsFailure(t *testing.T) {
	a := tt.New("a", tt.Empty())
	b := tt.New("b", tt.Text("real text"))
	job := execute(t, newExecutor(registryOf(t, a, b)),
		newJob(t, "wav", []string{"a", "b"}, transcription.WithMaxRetries(0)))

	if job.Provider() != "b" {
		t.Fatalf("expected fallback to b, got %q", job.Provider())
	}
	if first := job.Attempts()[0]; !errors.Is(first.Err, transcription.ErrEmptyTranscript) {
		t.Errorf("expected ErrEmptyTranscript, got %v", first.Err)
	}
}

func TestExecuteAttemptTimeout(t *testing.T) {
	a := tt.New("a", tt.Hang(time.Second), tt.Text("fast"))
	ex := newExecutor(registryOf(t, a))
	job := newJob(t, "wav", []string{"a"}, transcription.WithTimeout(20*time.Millisecond), transcription.WithMaxRetries(1))

	start := time.Now()
	execute(t, ex, job)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("timeout did not unblock the executor, took %v", elapsed)
	}
	if job.Status() != transcription.StatusCompleted || job.Transcript() != "fast" {
		t.Fatalf("expected completion on the second attempt, got %s %q", job.Status(), job.Transcript())
	}
	if first := job.Attempts()[0]; !errors.Is(first.Err, resilience.ErrTimeout) {
		t.Errorf("expected first attempt to time out, got %v", first.Err)
	}
}

func TestExecuteRecoversProviderPanic(t *testing.T) {
	a := tt.New("a", tt.Step{Panic: "nil map"}, tt.Text("recovered"))
	job := execute(t, newExecutor(registryOf(t, a)), newJob(t, "wav", []string{"a"}))

	if job.Transcript() != "recovered" {
		t.Fatalf("expected recovery, got %s %q", job.Status(), job.ErrorMessage())
	}
	if first := job.Attempts()[0]; first.Err == nil || !strings.Contains(first.Err.Error(), "panicked") {
		t.Errorf("expected panic recorded as attempt error, got %v", first.Err)
	}
}

func TestExecuteCanceledBeforeStart(t *testing.T) {
	a := tt.New("a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := newJob(t, "wav", []string{"a"})
	if _, err := newExecutor(registryOf(t, a)).Execute(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status() != transcription.StatusFailed || job.ErrorKind() != transcription.KindCanceled {
		t.Fatalf("expected canceled, got %s %q", job.Status(), job.ErrorKind())
	}
	if job.Err().Code != apperrors.ErrCodeCanceled {
		t.Errorf("expected CANCELED code, got %s", job.Err().Code)
	}
	if a.Calls() != 0 {
		t.Errorf("expected no calls, got %d", a.Calls())
	}
}

func TestExecuteCanceledDuringBackoff(t *testing.T) {
	a := tt.New("a", tt.Failf("down"))
	b := tt.New("b")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	job := newJob(t, "wav", []string{"a", "b"}, transcription.WithMaxRetries(3), transcription.WithBackoff(time.Hour))
	start := time.Now()
	if _, err := newExecutor(registryOf(t, a, b)).Execute(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("cancellation did not interrupt the backoff")
	}
	if job.ErrorKind() != transcription.KindCanceled {
		t.Fatalf("expected canceled, got %s %q", job.Status(), job.ErrorKind())
	}
	if a.Calls() != 1 || b.Calls() != 0 {
		t.Errorf("expected a=1 b=0 calls, got a=%d b=%d", a.Calls(), b.Calls())
	}
	if len(job.Attempts()) != 1 {
		t.Errorf("expected the failed attempt to be recorded, got %d", len(job.Attempts()))
	}
}

func TestExecutePassesProviderOptions(t *testing.T) {
	a := tt.New("a")
	job := newJob(t, "wav", []string{"a"},
		transcription.WithProviderOptions("a", transcription.Options{"language": "de"}))
	execute(t, newExecutor(registryOf(t, a)), job)

	reqs := a.Requests()
	if len(reqs) != 1 || reqs[0].Options.String("language") != "de" {
		t.Fatalf("expected options to reach the provider, got %+v", reqs)
	}
	if reqs[0].Audio.Format() != "wav" {
		t.Errorf("expected audio to reach the provider, got %+v", reqs[0].Audio)
	}
}

func TestExecuteRejectsNonPendingJob(t *testing.T) {
	a := tt.New("a", tt.Text("once"))
	ex := newExecutor(registryOf(t, a))
	job := execute(t, ex, newJob(t, "wav", []string{"a"}))

	_, err := ex.Execute(context.Background(), job)
	if !errors.Is(err, transcription.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if job.Status() != transcription.StatusCompleted || len(job.Attempts()) != 1 || a.Calls() != 1 {
		t.Error("re-running a terminal job must leave it untouched")
	}

	if _, err := ex.Execute(context.Background(), nil); err == nil {
		t.Error("expected error for nil job")
	}
}

func TestExecuteAvailabilityFirstOrder(t *testing.T) {
	a := tt.New("a", tt.Failf("a down"))
	b := tt.New("b", tt.Failf("b down"))
	ex := newExecutor(registryOf(t, a, b), transcription.WithPolicy(transcription.AvailabilityFirst()))
	job := execute(t, ex, newJob(t, "wav", []string{"b", "a"}, transcription.WithMaxRetries(0)))

	failures := job.ProviderFailures()
	if len(failures) != 2 || failures[0].Provider != "a" || failures[1].Provider != "b" {
		t.Errorf("expected registration order a,b, got %+v", failures)
	}
}

func TestExecuteObservability(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observability.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "test", &logs)

	a := tt.New("a", tt.Failf("a down"))
	b := tt.New("b", tt.Text("ok"))
	ex := transcription.NewExecutor(registryOf(t, a, b),
		transcription.WithTracer(tp.Tracer("test")),
		transcription.WithMetrics(metrics),
		transcription.WithLogger(log),
	)
	execute(t, ex, newJob(t, "wav", []string{"a", "b"}, transcription.WithMaxRetries(0)))

	spans := recorder.Ended()
	var jobSpans, attemptSpans int
	for _, s := range spans {
		switch s.Name() {
		case observability.SpanJob:
			jobSpans++
		case observability.SpanAttempt:
			attemptSpans++
		}
	}
	if jobSpans != 1 || attemptSpans != 2 {
		t.Errorf("expected 1 job and 2 attempt spans, got %d and %d", jobSpans, attemptSpans)
	}
	for _, s := range spans {
		if s.Name() != observability.SpanJob {
			continue
		}
		attrs := map[string]attribute.Value{}
		for _, kv := range s.Attributes() {
			attrs[string(kv.Key)] = kv.Value
		}
		if got := attrs[observability.AttrProvider].AsString(); got != "b" {
			t.Errorf("expected job span provider b, got %q", got)
		}
		if got := attrs[observability.AttrCandidates].AsStringSlice(); !slices.Equal(got, []string{"a", "b"}) {
			t.Errorf("expected job span candidates [a b], got %v", got)
		}
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
		}
	}
	for _, name := range []string{"transcription.jobs", "transcription.attempts", "transcription.attempt.duration"} {
		if !found[name] {
			t.Errorf("expected metric %s to be recorded", name)
		}
	}

	out := logs.String()
	for _, msg := range []string{"attempt failed", "provider exhausted", "transcription completed"} {
		if !strings.Contains(out, msg) {
			t.Errorf("expected log %q in output", msg)
		}
	}
}
