package transcription

import "time"

// JobView is the serialisable snapshot of a Job.
type JobView struct {
	ID          string        `json:"id"`
	Status      Status        `json:"status"`
	AudioPath   string        `json:"audio_path"`
	Format      string        `json:"format"`
	Providers   []string      `json:"providers"`
	Provider    string        `json:"provider,omitempty"`
	Transcript  string        `json:"transcript,omitempty"`
	Language    string        `json:"language,omitempty"`
	Segments    []Segment     `json:"segments,omitempty"`
	ErrorKind   ErrorKind     `json:"error_kind,omitempty"`
	Error       string        `json:"error,omitempty"`
	Attempts    []AttemptView `json:"attempts"`
	Failures    []FailureView `json:"failures,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// AttemptView is the serialisable form of an Attempt.
type AttemptView struct {
	Provider   string `json:"provider"`
	Number     int    `json:"number"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// FailureView is the serialisable form of a ProviderFailure.
type FailureView struct {
	Provider  string `json:"provider"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error"`
}

// View returns a consistent snapshot of the job.
func (j *Job) View() JobView {
	j.mu.RLock()
	defer j.mu.RUnlock()

	v := JobView{
		ID:        j.id.String(),
		Status:    j.status,
		AudioPath: j.audio.Path(),
		Format:    j.audio.Format(),
		Providers: j.plan.Providers(),
		Provider:  j.provider,
		ErrorKind: j.errKind,
		Attempts:  make([]AttemptView, 0, len(j.attempts)),
		CreatedAt: j.createdAt,
	}
	if j.result != nil {
		v.Transcript = j.result.Text
		v.Language = j.result.Language
		v.Segments = append([]Segment(nil), j.result.Segments...)
	}
	if j.err != nil {
		v.Error = j.err.Message
	}
	if !j.completedAt.IsZero() {
		t := j.completedAt
		v.CompletedAt = &t
	}
	for _, a := range j.attempts {
		av := AttemptView{Provider: a.Provider, Number: a.Number, DurationMs: a.Duration.Milliseconds()}
		if a.Err != nil {
			av.Error = a.Err.Error()
		}
		v.Attempts = append(v.Attempts, av)
	}
	for _, f := range j.failures {
		fv := FailureView{Provider: f.Provider, Attempts: f.Attempts}
		if f.LastError != nil {
			fv.LastError = f.LastError.Error()
		}
		v.Failures = append(v.Failures, fv)
	}
	return v
}
