package transcription

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/kbukum/sttkit/validation"
)

// AudioReference identifies the audio to transcribe. It is immutable and
// safe to share. No file I/O happens here: existence is the backend's
// concern.
type AudioReference struct {
	path     string
	format   string
	duration time.Duration
	size     int64
}

// AudioOption sets optional AudioReference metadata.
type AudioOption func(*audioSpec)

type audioSpec struct {
	duration    time.Duration
	hasDuration bool
	size        int64
	hasSize     bool
}

// WithDuration records the audio length. It must be positive.
func WithDuration(d time.Duration) AudioOption {
	return func(s *audioSpec) { s.duration, s.hasDuration = d, true }
}

// WithSize records the audio size in bytes. It must be positive.
func WithSize(n int64) AudioOption {
	return func(s *audioSpec) { s.size, s.hasSize = n, true }
}

// NewAudioReference builds an AudioReference for path. An empty format is
// derived from the path extension. Invalid input yields INVALID_INPUT.
func NewAudioReference(path, format string, opts ...AudioOption) (AudioReference, error) {
	var spec audioSpec
	for _, opt := range opts {
		opt(&spec)
	}

	format = normalizeFormat(format)
	if format == "" {
		format = normalizeFormat(filepath.Ext(path))
	}

	v := validation.New().
		Required("path", path).
		Custom(format != "", "format", "is required and could not be derived from the path")
	if spec.hasDuration {
		v.Positive("duration", spec.duration)
	}
	if spec.hasSize {
		v.Custom(spec.size > 0, "size", "must be positive")
	}
	if appErr := v.Validate(); appErr != nil {
		return AudioReference{}, appErr
	}

	return AudioReference{
		path:     path,
		format:   format,
		duration: spec.duration,
		size:     spec.size,
	}, nil
}

// Path returns the audio locator.
func (a AudioReference) Path() string { return a.path }

// Format returns the normalised format, e.g. "wav".
func (a AudioReference) Format() string { return a.format }

// Duration returns the audio length, or zero when unknown.
func (a AudioReference) Duration() time.Duration { return a.duration }

// Size returns the size in bytes, or zero when unknown.
func (a AudioReference) Size() int64 { return a.size }

// Filename returns the last element of the path.
func (a AudioReference) Filename() string { return filepath.Base(a.path) }

// Extension returns the lower-cased path extension including the dot.
func (a AudioReference) Extension() string { return strings.ToLower(filepath.Ext(a.path)) }

// IsZero reports whether a was never constructed.
func (a AudioReference) IsZero() bool { return a.path == "" }

func normalizeFormat(format string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
}
