// Package whisper adapts a faster-whisper HTTP sidecar to the
// transcription.Transcriber contract.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	apperrors "github.com/kbukum/sttkit/errors"
	"github.com/kbukum/sttkit/provider"
	"github.com/kbukum/sttkit/transcription"
)

const (
	// Kind is the factory kind for Whisper providers.
	Kind = "whisper"

	defaultURL           = "http://localhost:8387"
	defaultModel         = "base"
	defaultTimeout       = 120 * time.Second
	defaultHealthTimeout = 2 * time.Second
)

var defaultFormats = []string{"wav", "mp3", "m4a", "flac", "ogg", "webm"}

// Config holds configuration for the Whisper transcription provider.
type Config struct {
	Name        string        `mapstructure:"name"`
	URL         string        `mapstructure:"url"`
	Model       string        `mapstructure:"model"`
	Language    string        `mapstructure:"language"`
	Device      string        `mapstructure:"device"`
	ComputeType string        `mapstructure:"compute_type"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// HealthTimeout bounds the availability probe.
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
	Formats       []string      `mapstructure:"formats"`
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = Kind
	}
	if c.URL == "" {
		c.URL = defaultURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.HealthTimeout == 0 {
		c.HealthTimeout = defaultHealthTimeout
	}
	if len(c.Formats) == 0 {
		c.Formats = defaultFormats
	}
}

// Provider implements transcription.Transcriber on a faster-whisper sidecar.
type Provider struct {
	cfg     Config
	formats transcription.FormatSet
	client  *http.Client
}

var _ transcription.Transcriber = (*Provider)(nil)

// New creates a Whisper provider.
func New(cfg Config) *Provider {
	cfg.applyDefaults()
	return &Provider{
		cfg:     cfg,
		formats: transcription.NewFormatSet(cfg.Formats...),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Factory returns a provider.Factory creating Whisper providers from a
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

// IsAvailable reports whether the sidecar answers its health endpoint.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// SupportsFormat reports whether the sidecar is configured to accept format.
func (p *Provider) SupportsFormat(format string) bool {
	return p.formats.Supports(format)
}

// Transcribe uploads the audio file to the sidecar. The "model" and
// "language" options override the configured values.
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	audioData, err := os.ReadFile(req.Audio.Path())
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	model := p.cfg.Model
	if m := req.Options.String("model"); m != "" {
		model = m
	}
	lang := p.cfg.Language
	if l := req.Options.String("language"); l != "" {
		lang = l
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", req.Audio.Filename())
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audioData); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}

	_ = writer.WriteField("model", model)
	if lang != "" {
		_ = writer.WriteField("language", lang)
	}
	if p.cfg.Device != "" {
		_ = writer.WriteField("device", p.cfg.Device)
	}
	if p.cfg.ComputeType != "" {
		_ = writer.WriteField("compute_type", p.cfg.ComputeType)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL+"/transcribe", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		cause := fmt.Errorf("whisper error (status %d): %s", resp.StatusCode, bytes.TrimSpace(body))
		// The server answers 503 while it is still loading its model.
		if resp.StatusCode == http.StatusServiceUnavailable {
			return nil, apperrors.ServiceUnavailable(p.cfg.Name).WithCause(cause).WithDetail("status", resp.StatusCode)
		}
		return nil, apperrors.ProviderFailed(p.cfg.Name, cause).WithDetail("status", resp.StatusCode)
	}

	var result whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode whisper response: %w", err)
	}
	return result.toResult(), nil
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
}

type whisperSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (r *whisperResponse) toResult() *transcription.Result {
	segments := make([]transcription.Segment, len(r.Segments))
	for i, seg := range r.Segments {
		segments[i] = transcription.Segment{
			Start: seconds(seg.Start),
			End:   seconds(seg.End),
			Text:  seg.Text,
		}
	}

	duration := seconds(r.Duration)
	if duration == 0 && len(r.Segments) > 0 {
		duration = seconds(r.Segments[len(r.Segments)-1].End)
	}

	return &transcription.Result{
		Text:     r.Text,
		Segments: segments,
		Duration: duration,
		Language: r.Language,
	}
}
