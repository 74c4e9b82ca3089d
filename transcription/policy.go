package transcription

import (
	"context"
	"strings"

	apperrors "github.com/kbukum/sttkit/errors"
	"github.com/kbukum/sttkit/provider"
)

// Policy resolves requested provider names into the ordered transcribers an
// Executor tries. Implementations must be deterministic for an unchanged
// registry.
type Policy = provider.Selector[Transcriber]

// Policy names accepted by PolicyByName.
const (
	PolicyPriority          = "priority"
	PolicyAvailabilityFirst = "availability_first"
	PolicyFormatAware       = "format_aware"
)

// PolicyNames lists the names PolicyByName accepts.
var PolicyNames = []string{PolicyPriority, PolicyAvailabilityFirst, PolicyFormatAware}

// Priority keeps the requested order and drops unregistered or unavailable
// names. It is the default policy.
func Priority() Policy {
	return provider.PrioritySelector[Transcriber]{}
}

// AvailabilityFirst returns the same transcribers as Priority in registration
// order.
func AvailabilityFirst() Policy {
	return provider.RegistrationOrderSelector[Transcriber]{}
}

// FormatAware narrows the Priority result to transcribers accepting format.
// An empty format uses the format of the job being executed.
func FormatAware(format string) Policy {
	return formatAware{format: normalizeFormat(format)}
}

type formatAware struct {
	format string
}

func (p formatAware) Select(ctx context.Context, names []string, src provider.Source[Transcriber]) []Transcriber {
	format := p.format
	if format == "" {
		format = formatFromContext(ctx)
	}
	if format == "" {
		return Priority().Select(ctx, names, src)
	}
	return provider.FilterSelector[Transcriber]{
		Keep: func(t Transcriber) bool { return t.SupportsFormat(format) },
	}.Select(ctx, names, src)
}

// PolicyByName returns the policy registered under name. An empty name
// selects Priority; format only applies to format_aware.
func PolicyByName(name, format string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyPriority:
		return Priority(), nil
	case PolicyAvailabilityFirst:
		return AvailabilityFirst(), nil
	case PolicyFormatAware:
		return FormatAware(format), nil
	default:
		return nil, apperrors.InvalidInput("policy", "must be one of "+strings.Join(PolicyNames, ", "))
	}
}

type audioFormatKey struct{}

// withAudioFormat exposes the format of the job being resolved to policies.
func withAudioFormat(ctx context.Context, format string) context.Context {
	return context.WithValue(ctx, audioFormatKey{}, format)
}

func formatFromContext(ctx context.Context) string {
	f, _ := ctx.Value(audioFormatKey{}).(string)
	return f
}
