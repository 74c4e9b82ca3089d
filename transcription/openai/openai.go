// Package openai adapts the OpenAI audio transcription API to the
// transcription.Transcriber contract.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	apperrors "github.com/kbukum/sttkit/errors"
	"github.com/kbukum/sttkit/provider"
	"github.com/kbukum/sttkit/transcription"
)

const (
	// Kind is the factory kind for OpenAI providers.
	Kind = "openai"

	// APIKeyEnv is read when no API key is configured.
	APIKeyEnv = "OPENAI_API_KEY"
)

// Formats accepted by the transcription endpoint.
var defaultFormats = []string{"flac", "m4a", "mp3", "mp4", "mpeg", "mpga", "oga", "ogg", "wav", "webm"}

// Config holds configuration for the OpenAI transcription provider.
type Config struct {
	Name    string `mapstructure:"name"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	// Language is an ISO-639-1 hint, empty for auto-detection.
	Language string        `mapstructure:"language"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = Kind
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv(APIKeyEnv)
	}
	if c.Model == "" {
		c.Model = goopenai.Whisper1
	}
}

// Provider implements transcription.Transcriber with go-openai.
type Provider struct {
	cfg     Config
	formats transcription.FormatSet
	client  *goopenai.Client
}

var _ transcription.Transcriber = (*Provider)(nil)

// New creates an OpenAI provider.
func New(cfg Config) *Provider {
	cfg.applyDefaults()

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Provider{
		cfg:     cfg,
		formats: transcription.NewFormatSet(defaultFormats...),
		client:  goopenai.NewClientWithConfig(clientCfg),
	}
}

// Factory returns a provider.Factory creating OpenAI providers from a
// settings map.
func Factory() provider.Factory[transcription.Transcriber] {
	return func(settings map[string]any) (transcription.Transcriber, error) {
		var cfg Config
		if err := transcription.DecodeSettings(settings, &cfg); err != nil {
			return nil, err
		}
		return New(cfg), nil
	}
}

// Name returns the registered provider name.
func (p *Provider) Name() string { return p.cfg.Name }

// IsAvailable reports whether an API key is configured.
func (p *Provider) IsAvailable(context.Context) bool {
	return p.cfg.APIKey != ""
}

// SupportsFormat reports whether the API accepts format.
func (p *Provider) SupportsFormat(format string) bool {
	return p.formats.Supports(format)
}

// Transcribe uploads the audio file. Recognised options: "model",
// "language", "prompt" and "temperature".
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	audioReq := goopenai.AudioRequest{
		Model:    p.cfg.Model,
		FilePath: req.Audio.Path(),
		Language: p.cfg.Language,
		Prompt:   req.Options.String("prompt"),
		Format:   goopenai.AudioResponseFormatVerboseJSON,
	}
	if m := req.Options.String("model"); m != "" {
		audioReq.Model = m
	}
	if l := req.Options.String("language"); l != "" {
		audioReq.Language = l
	}
	if t, ok := req.Options.Float("temperature"); ok {
		audioReq.Temperature = float32(t)
	}

	resp, err := p.client.CreateTranscription(ctx, audioReq)
	if err != nil {
		return nil, p.wrapError(err)
	}
	return toResult(resp), nil
}

func (p *Provider) wrapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apperrors.ProviderFailed(p.cfg.Name, fmt.Errorf("openai transcription: %w", err)).
			WithDetail("status", apiErr.HTTPStatusCode)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return apperrors.ProviderFailed(p.cfg.Name, fmt.Errorf("openai transcription: %w", err)).
			WithDetail("status", reqErr.HTTPStatusCode)
	}
	return fmt.Errorf("openai transcription: %w", err)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func toResult(resp goopenai.AudioResponse) *transcription.Result {
	segments := make([]transcription.Segment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		segments = append(segments, transcription.Segment{
			Start: seconds(seg.Start),
			End:   seconds(seg.End),
			Text:  seg.Text,
		})
	}
	return &transcription.Result{
		Text:     resp.Text,
		Segments: segments,
		Duration: seconds(resp.Duration),
		Language: resp.Language,
	}
}
