package transcription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/kbukum/sttkit/errors"
	"github.com/kbukum/sttkit/logger"
	"github.com/kbukum/sttkit/observability"
	"github.com/kbukum/sttkit/provider"
	"github.com/kbukum/sttkit/resilience"
)

// MaxBackoff caps the delay between retries of the same provider.
const MaxBackoff = 30 * time.Second

// Executor drives Jobs through their plan: it resolves candidates with a
// Policy, retries each candidate up to Plan.Attempts() times and falls back
// to the next candidate until one succeeds or all are exhausted. A candidate
// that cannot read the job's audio format is skipped without an attempt.
//
// An Executor is safe for concurrent use; each Job must be executed once.
type Executor struct {
	source  provider.Source[Transcriber]
	policy  Policy
	log     *logger.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPolicy sets the selection policy. The default is Priority.
func WithPolicy(p Policy) ExecutorOption {
	return func(e *Executor) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithLogger sets the logger used for job and attempt events.
func WithLogger(l *logger.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics enables job and attempt metrics.
func WithMetrics(m *observability.Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithTracer sets the tracer for job and attempt spans. The default is the
// global sttkit tracer.
func WithTracer(t trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		if t != nil {
			e.tracer = t
		}
	}
}

// NewExecutor creates an Executor resolving providers from src.
func NewExecutor(src provider.Source[Transcriber], opts ...ExecutorOption) *Executor {
	e := &Executor{
		source: src,
		policy: Priority(),
		log:    logger.Get("transcription"),
		tracer: observability.Tracer(observability.InstrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Using returns a copy of e that selects candidates with p.
func (e *Executor) Using(p Policy) *Executor {
	c := *e
	if p != nil {
		c.policy = p
	}
	return &c
}

// Execute runs job to a terminal status and returns it. Provider failures,
// an empty candidate list and cancellation are reported through the Job, not
// the returned error; the error is non-nil only when job is nil or not
// pending, in which case the Job is left untouched.
func (e *Executor) Execute(ctx context.Context, job *Job) (*Job, error) {
	if job == nil {
		return nil, apperrors.InvalidInput("job", "must not be nil")
	}
	if err := job.start(); err != nil {
		return job, err
	}

	started := time.Now()
	plan := job.Plan()
	log := e.log.WithFields(logger.Fields(logger.FieldJobID, job.ID().String()))

	ctx, span := e.tracer.Start(ctx, observability.SpanJob, trace.WithAttributes(
		attribute.String(observability.AttrJobID, job.ID().String()),
		attribute.StringSlice(observability.AttrProviders, plan.Providers()),
		attribute.String(observability.AttrAudioFormat, job.Audio().Format()),
	))
	defer span.End()
	if e.metrics != nil {
		e.metrics.RecordJobStart(ctx)
	}
	defer e.finish(ctx, span, log, job, started)

	if err := ctx.Err(); err != nil {
		e.cancel(job, err)
		return job, nil
	}

	candidates := e.policy.Select(withAudioFormat(ctx, job.Audio().Format()), plan.Providers(), e.source)
	if len(candidates) == 0 {
		_ = job.fail(KindNoProviderAvailable, apperrors.NoProviderAvailable(plan.Providers()))
		return job, nil
	}
	observability.SetSpanAttribute(ctx, observability.AttrCandidates, names(candidates))

	log.Debug("executing plan", logger.Fields(
		"candidates", names(candidates),
		"attempts_per_provider", plan.Attempts(),
		"timeout", plan.Timeout().String(),
	))

	for _, t := range candidates {
		if err := ctx.Err(); err != nil {
			e.cancel(job, err)
			return job, nil
		}

		if format := job.Audio().Format(); !t.SupportsFormat(format) {
			err := fmt.Errorf("%w %q", ErrUnsupportedFormat, format)
			job.recordProviderFailure(ProviderFailure{Provider: t.Name(), Attempts: 0, LastError: err})
			log.Warn("provider skipped", logger.MergeWithError(logger.Fields(logger.FieldProvider, t.Name()), err))
			continue
		}

		result, tries, err := e.tryProvider(ctx, log, job, t)
		if err == nil {
			_ = job.complete(t.Name(), result)
			observability.SetSpanAttribute(ctx, observability.AttrProvider, t.Name())
			return job, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			e.cancel(job, ctxErr)
			return job, nil
		}

		job.recordProviderFailure(ProviderFailure{Provider: t.Name(), Attempts: tries, LastError: err})
		log.Warn("provider exhausted", logger.MergeWithError(logger.Fields(
			logger.FieldProvider, t.Name(),
			"attempts", tries,
		), err))
	}

	failures := job.ProviderFailures()
	appErr := apperrors.ProvidersExhausted(exhaustedMessage(failures)).
		WithCause(joinFailures(failures)).
		WithDetail("providers", failureNames(failures))
	_ = job.fail(KindAllProvidersExhausted, appErr)
	return job, nil
}

// tryProvider runs up to plan.Attempts() attempts against t and returns the
// result, the number of attempts made and the last error.
func (e *Executor) tryProvider(ctx context.Context, log *logger.Logger, job *Job, t Transcriber) (*Result, int, error) {
	plan := job.Plan()
	req := Request{Audio: job.Audio(), Options: plan.Options(t.Name())}

	tries := 0
	cfg := resilience.RetryConfig{
		MaxAttempts:    plan.Attempts(),
		InitialBackoff: plan.Backoff(),
		MaxBackoff:     MaxBackoff,
		BackoffFactor:  2,
		// Every failure of a provider is retried; only the caller stops us.
		RetryIf: func(error) bool { return ctx.Err() == nil },
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			log.Debug("retrying provider", logger.Fields(
				logger.FieldProvider, t.Name(),
				logger.FieldAttempt, attempt,
				"backoff", backoff.String(),
			))
		},
	}

	result, err := resilience.Retry(ctx, cfg, func(ctx context.Context, attempt int) (*Result, error) {
		tries = attempt
		return e.attempt(ctx, log, job, t, req, attempt)
	})
	return result, tries, err
}

// attempt performs one bounded call and records it on the job.
func (e *Executor) attempt(ctx context.Context, log *logger.Logger, job *Job, t Transcriber, req Request, n int) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, observability.SpanAttempt, trace.WithAttributes(
		attribute.String(observability.AttrProvider, t.Name()),
		attribute.Int(observability.AttrAttempt, n),
	))
	defer span.End()

	started := time.Now()
	result, err := resilience.Timeout(ctx, job.Plan().Timeout(), func(ctx context.Context) (*Result, error) {
		return call(ctx, t, req)
	})
	if err == nil && (result == nil || strings.TrimSpace(result.Text) == "") {
		result, err = nil, ErrEmptyTranscript
	}
	elapsed := time.Since(started)

	job.recordAttempt(Attempt{Provider: t.Name(), Number: n, StartedAt: started, Duration: elapsed, Err: err})

	status := observability.StatusOK
	if err != nil {
		status = observability.StatusError
		observability.SetSpanError(span, err)
		log.Warn("attempt failed", logger.MergeWithDuration(logger.MergeWithError(logger.Fields(
			logger.FieldProvider, t.Name(),
			logger.FieldAttempt, n,
		), err), elapsed))
	}
	span.SetAttributes(attribute.String(observability.AttrStatus, status))
	if e.metrics != nil {
		e.metrics.RecordAttempt(context.WithoutCancel(ctx), t.Name(), status, elapsed)
	}
	return result, err
}

// call invokes the provider, turning a panic into an attempt error.
func call(ctx context.Context, t Transcriber, req Request) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("provider %s panicked: %v", t.Name(), r)
		}
	}()
	return t.Transcribe(ctx, req)
}

func (e *Executor) cancel(job *Job, cause error) {
	_ = job.fail(KindCanceled, apperrors.Canceled(cause))
}

func (e *Executor) finish(ctx context.Context, span trace.Span, log *logger.Logger, job *Job, started time.Time) {
	elapsed := time.Since(started)
	status := job.Status()
	span.SetAttributes(attribute.String(observability.AttrStatus, string(status)))

	metricStatus := observability.StatusOK
	if status == StatusFailed {
		metricStatus = observability.StatusError
		span.SetAttributes(attribute.String(observability.AttrErrorKind, string(job.ErrorKind())))
		observability.SetSpanError(span, job.Err())
		log.Error("transcription failed", logger.MergeWithDuration(logger.Fields(
			"error_kind", string(job.ErrorKind()),
			logger.FieldError, job.ErrorMessage(),
			"attempts", len(job.Attempts()),
		), elapsed))
	} else {
		log.Info("transcription completed", logger.MergeWithDuration(logger.Fields(
			logger.FieldProvider, job.Provider(),
			"attempts", len(job.Attempts()),
		), elapsed))
	}
	if e.metrics != nil {
		e.metrics.RecordJobEnd(context.WithoutCancel(ctx), metricStatus, string(job.ErrorKind()), elapsed)
	}
}

// exhaustedMessage renders "all providers exhausted: a: <err> (N attempts); b: ...".
func exhaustedMessage(failures []ProviderFailure) string {
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		msg := "unknown error"
		if f.LastError != nil {
			msg = f.LastError.Error()
		}
		unit := "attempts"
		if f.Attempts == 1 {
			unit = "attempt"
		}
		parts = append(parts, fmt.Sprintf("%s: %s (%d %s)", f.Provider, msg, f.Attempts, unit))
	}
	return "all providers exhausted: " + strings.Join(parts, "; ")
}

func joinFailures(failures []ProviderFailure) error {
	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		if f.LastError != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Provider, f.LastError))
		}
	}
	return errors.Join(errs...)
}

func failureNames(failures []ProviderFailure) []string {
	out := make([]string, 0, len(failures))
	for _, f := range failures {
		out = append(out, f.Provider)
	}
	return out
}

func names(ts []Transcriber) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Name())
	}
	return out
}
