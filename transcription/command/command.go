// Package command runs a local transcription binary, such as whisper.cpp's
// whisper-cli, as a provider. The binary's standard output is the
// transcript.
//
// Arguments may reference the request through placeholders:
//
//	{audio}     path of the audio file
//	{format}    normalized audio format
//	{language}  "language" option, or the configured language
//	{model}     "model" option, or the configured model
package command

import (
	"context"
	"os/exec"
	"strings"
	"time"

	apperrors "github.com/kbukum/sttkit/errors"
	"github.com/kbukum/sttkit/provider"
	"github.com/kbukum/sttkit/transcription"
)

// Kind is the factory kind for command transcribers.
const Kind = "command"

const (
	defaultGracePeriod = 5 * time.Second
	// maxStderr bounds the stderr excerpt carried in errors.
	maxStderr = 512
)

// Config configures a command transcriber.
type Config struct {
	Name        string        `mapstructure:"name"`
	Binary      string        `mapstructure:"binary"`
	Args        []string      `mapstructure:"args"`
	Dir         string        `mapstructure:"dir"`
	Env         []string      `mapstructure:"env"`
	Model       string        `mapstructure:"model"`
	Language    string        `mapstructure:"language"`
	GracePeriod time.Duration `mapstructure:"grace_period"`
	// Formats lists the accepted formats; empty accepts any.
	Formats []string `mapstructure:"formats"`
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = Kind
	}
	if len(c.Args) == 0 {
		c.Args = []string{"{audio}"}
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = defaultGracePeriod
	}
}

// Provider runs Config.Binary once per attempt.
type Provider struct {
	cfg     Config
	formats transcription.FormatSet
}

var _ transcription.Transcriber = (*Provider)(nil)

// New creates a command transcriber.
func New(cfg Config) *Provider {
	cfg.applyDefaults()
	return &Provider{cfg: cfg, formats: transcription.NewFormatSet(cfg.Formats...)}
}

// Factory returns a provider.Factory for the "command" kind.
func Factory() provider.Factory[transcription.Transcriber] {
	return func(settings map[string]any) (transcription.Transcriber, error) {
		var cfg Config
		if err := transcription.DecodeSettings(settings, &cfg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(cfg.Binary) == "" {
			return nil, apperrors.MissingField("binary")
		}
		return New(cfg), nil
	}
}

func (p *Provider) Name() string { return p.cfg.Name }

// IsAvailable reports whether the binary resolves on PATH.
func (p *Provider) IsAvailable(context.Context) bool {
	_, err := exec.LookPath(p.cfg.Binary)
	return err == nil
}

func (p *Provider) SupportsFormat(format string) bool {
	if len(p.cfg.Formats) == 0 {
		return true
	}
	return p.formats.Supports(format)
}

// Transcribe runs the binary for req. A non-zero exit is a provider failure
// carrying the exit code and a stderr excerpt.
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	out, err := run(ctx, invocation{
		binary:      p.cfg.Binary,
		args:        p.expand(req),
		dir:         p.cfg.Dir,
		env:         p.cfg.Env,
		gracePeriod: p.cfg.GracePeriod,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		appErr := apperrors.ProviderFailed(p.cfg.Name, err)
		if out != nil {
			appErr = appErr.WithDetail("exit_code", out.exitCode)
			if s := excerpt(out.stderr); s != "" {
				appErr = appErr.WithDetail("stderr", s)
			}
		}
		return nil, appErr
	}

	return &transcription.Result{
		Text:     strings.TrimSpace(string(out.stdout)),
		Language: p.language(req),
	}, nil
}

func (p *Provider) expand(req transcription.Request) []string {
	r := strings.NewReplacer(
		"{audio}", req.Audio.Path(),
		"{format}", req.Audio.Format(),
		"{language}", p.language(req),
		"{model}", firstNonEmpty(req.Options.String("model"), p.cfg.Model),
	)
	args := make([]string, len(p.cfg.Args))
	for i, a := range p.cfg.Args {
		args[i] = r.Replace(a)
	}
	return args
}

func (p *Provider) language(req transcription.Request) string {
	return firstNonEmpty(req.Options.String("language"), p.cfg.Language)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxStderr {
		s = s[len(s)-maxStderr:]
	}
	return s
}
