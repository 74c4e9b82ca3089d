package transcription

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/kbukum/sttkit/errors"
)

// ErrInvalidTransition is the cause of the CONFLICT error returned when a Job
// is asked to move to a status its current status does not lead to.
var ErrInvalidTransition = errors.New("invalid job status transition")

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// transitions lists the statuses each status may move to.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress},
	StatusInProgress: {StatusCompleted, StatusFailed},
}

func canTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// ErrorKind classifies why a Job failed.
type ErrorKind string

const (
	KindNoProviderAvailable   ErrorKind = "no-provider-available"
	KindAllProvidersExhausted ErrorKind = "all-providers-exhausted"
	KindCanceled              ErrorKind = "canceled"
)

// Attempt is one call to one backend.
type Attempt struct {
	Provider  string
	Number    int
	StartedAt time.Time
	Duration  time.Duration
	// Err is nil for the successful attempt.
	Err error
}

// ProviderFailure summarises a backend whose attempts were all used up.
type ProviderFailure struct {
	Provider  string
	Attempts  int
	LastError error
}

// Job is the mutable record of one transcription request. One goroutine
// drives it through Executor.Execute; getters are safe to call concurrently.
type Job struct {
	id        uuid.UUID
	audio     AudioReference
	plan      Plan
	createdAt time.Time

	mu          sync.RWMutex
	status      Status
	startedAt   time.Time
	completedAt time.Time
	result      *Result
	provider    string
	attempts    []Attempt
	failures    []ProviderFailure
	errKind     ErrorKind
	err         *apperrors.AppError
}

// NewJob creates a pending Job for audio under plan.
func NewJob(audio AudioReference, plan Plan) *Job {
	return &Job{
		id:        uuid.New(),
		audio:     audio,
		plan:      plan,
		createdAt: time.Now(),
		status:    StatusPending,
	}
}

// ID returns the job identifier.
func (j *Job) ID() uuid.UUID { return j.id }

// Audio returns the audio reference.
func (j *Job) Audio() AudioReference { return j.audio }

// Plan returns the plan the job runs under.
func (j *Job) Plan() Plan { return j.plan }

// CreatedAt returns the creation time.
func (j *Job) CreatedAt() time.Time { return j.createdAt }

// Status returns the current status.
func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// StartedAt returns when the job entered in_progress, or the zero time.
func (j *Job) StartedAt() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.startedAt
}

// CompletedAt returns when the job reached a terminal status, or the zero time.
func (j *Job) CompletedAt() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.completedAt
}

// Transcript returns the transcript text of a completed job, or "".
func (j *Job) Transcript() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.result == nil {
		return ""
	}
	return j.result.Text
}

// Result returns a copy of the full result of a completed job, or nil.
func (j *Job) Result() *Result {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.result == nil {
		return nil
	}
	r := *j.result
	r.Segments = slices.Clone(r.Segments)
	return &r
}

// Provider returns the backend that produced the transcript, or "".
func (j *Job) Provider() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.provider
}

// Attempts returns every attempt in the order they were made.
func (j *Job) Attempts() []Attempt {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return slices.Clone(j.attempts)
}

// AttemptsFor returns the attempts made against one backend.
func (j *Job) AttemptsFor(provider string) []Attempt {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []Attempt
	for _, a := range j.attempts {
		if a.Provider == provider {
			out = append(out, a)
		}
	}
	return out
}

// ProviderFailures returns the exhausted backends in the order they were tried.
func (j *Job) ProviderFailures() []ProviderFailure {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return slices.Clone(j.failures)
}

// ErrorKind returns why a failed job failed, or "".
func (j *Job) ErrorKind() ErrorKind {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.errKind
}

// ErrorMessage returns the human-readable failure message, or "".
func (j *Job) ErrorMessage() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.err == nil {
		return ""
	}
	return j.err.Message
}

// Err returns the terminal error of a failed job, or nil.
func (j *Job) Err() *apperrors.AppError {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// transitionLocked moves the job to next. Callers hold j.mu.
func (j *Job) transitionLocked(next Status) error {
	if !canTransition(j.status, next) {
		return apperrors.Conflict(fmt.Sprintf("job %s cannot move from %s to %s", j.id, j.status, next)).
			WithCause(ErrInvalidTransition).
			WithDetails(map[string]any{"job_id": j.id.String(), "from": string(j.status), "to": string(next)})
	}
	j.status = next
	return nil
}

func (j *Job) start() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusInProgress); err != nil {
		return err
	}
	j.startedAt = time.Now()
	return nil
}

func (j *Job) complete(provider string, result *Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusCompleted); err != nil {
		return err
	}
	j.provider = provider
	j.result = result
	j.completedAt = time.Now()
	return nil
}

func (j *Job) fail(kind ErrorKind, err *apperrors.AppError) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusFailed); err != nil {
		return err
	}
	j.errKind = kind
	j.err = err
	j.completedAt = time.Now()
	return nil
}

func (j *Job) recordAttempt(a Attempt) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == StatusInProgress {
		j.attempts = append(j.attempts, a)
	}
}

func (j *Job) recordProviderFailure(f ProviderFailure) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == StatusInProgress {
		j.failures = append(j.failures, f)
	}
}
