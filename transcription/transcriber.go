package transcription

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/kbukum/sttkit/provider"
)

// ErrEmptyTranscript marks an attempt whose backend returned no text.
var ErrEmptyTranscript = errors.New("transcription returned an empty result")

// ErrUnsupportedFormat marks a backend skipped because it cannot read the
// job's audio format.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Transcriber is the capability every speech-to-text backend implements.
type Transcriber interface {
	provider.Provider // Name() and IsAvailable()

	// SupportsFormat reports whether the backend accepts audio in format.
	// Formats are lower-case without a leading dot, e.g. "wav".
	SupportsFormat(format string) bool

	// Transcribe converts the referenced audio to text. A nil result or a
	// blank Text counts as a failed attempt.
	Transcribe(ctx context.Context, req Request) (*Result, error)
}

// Options is an opaque per-backend option bag passed through from the Plan.
type Options map[string]any

// String returns the string value stored under key, or "".
func (o Options) String(key string) string {
	s, _ := o[key].(string)
	return s
}

// Float returns the numeric value stored under key.
func (o Options) Float(key string) (float64, bool) {
	switch v := o[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Request is the input of a single transcription attempt.
type Request struct {
	Audio   AudioReference
	Options Options
}

// Result holds the output of a successful attempt.
type Result struct {
	// Text is the full transcript.
	Text string `json:"text"`
	// Segments contains time-aligned transcript pieces when the backend
	// provides them.
	Segments []Segment `json:"segments,omitempty"`
	// Duration is the audio duration reported by the backend.
	Duration time.Duration `json:"duration,omitempty"`
	// Language is the detected or requested language.
	Language string `json:"language,omitempty"`
}

// Segment represents a time-aligned portion of a transcript.
type Segment struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// Registry holds transcribers by name in registration order.
type Registry = provider.Registry[Transcriber]

// NewRegistry creates an empty transcriber registry.
func NewRegistry() *Registry {
	return provider.NewRegistry[Transcriber]()
}

// ForFormat returns, in registration order, the registered transcribers that
// accept format. Availability is not checked.
func ForFormat(reg *Registry, format string) []Transcriber {
	format = normalizeFormat(format)
	var out []Transcriber
	for _, t := range reg.List() {
		if t.SupportsFormat(format) {
			out = append(out, t)
		}
	}
	return out
}

// FormatSet is a normalised set of audio formats for adapters to embed.
type FormatSet struct {
	formats []string
}

// NewFormatSet normalises formats (".MP3" and "mp3" are the same).
func NewFormatSet(formats ...string) FormatSet {
	s := FormatSet{formats: make([]string, 0, len(formats))}
	for _, f := range formats {
		if f = normalizeFormat(f); f != "" && !slices.Contains(s.formats, f) {
			s.formats = append(s.formats, f)
		}
	}
	return s
}

// Supports reports whether format is in the set.
func (s FormatSet) Supports(format string) bool {
	return slices.Contains(s.formats, normalizeFormat(format))
}

// Formats returns a copy of the formats in the set.
func (s FormatSet) Formats() []string {
	return slices.Clone(s.formats)
}
