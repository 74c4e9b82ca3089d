package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewInvalidLevel(t *testing.T) {
	cfg := &Config{
		Level:  "invalid-level",
		Format: "json",
		Output: "stdout",
	}
	l := New(cfg, "test")
	if l == nil {
		t.Fatal("expected logger to be created even with invalid level")
	}
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "debug", Format: "json"}, "sttkit", &buf)

	l.WithComponent("transcription").Info("attempt failed", Fields("provider", "whisper", "attempt", 2))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "attempt failed" {
		t.Errorf("expected message, got %v", entry["message"])
	}
	if entry[FieldComponent] != "transcription" {
		t.Errorf("expected component field, got %v", entry[FieldComponent])
	}
	if entry["provider"] != "whisper" {
		t.Errorf("expected provider field, got %v", entry["provider"])
	}
	if entry["service"] != "sttkit" {
		t.Errorf("expected service field, got %v", entry["service"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "warn", Format: "json"}, "svc", &buf)

	l.Debug("hidden")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug/info to be filtered, got %q", buf.String())
	}

	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn output, got %q", buf.String())
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: "json"}, "svc", &buf)
	l.WithError(errors.New("boom")).Error("failed")
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("expected error field in output, got %q", buf.String())
	}
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	// Must not panic.
	l.WithComponent("x").WithFields(Fields("a", 1)).Error("nothing")
}

func TestInit(t *testing.T) {
	Init(Config{Level: "info", Format: "console", ServiceName: "sttkit"})
	gl := GetGlobalLogger()
	if gl == nil {
		t.Fatal("expected global logger to be set after Init")
	}
	if gl.service != "sttkit" {
		t.Errorf("expected service name from config, got %q", gl.service)
	}
}

func TestInitRegistersComponentLevels(t *testing.T) {
	Register("stale", Nop())
	Init(Config{Level: "warn", Format: "json", Components: map[string]string{"transcription": "debug"}})

	if got := Get("transcription").logger.GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("expected debug for overridden component, got %s", got)
	}
	if got := Get("server").logger.GetLevel(); got != zerolog.WarnLevel {
		t.Errorf("expected global warn level for other components, got %s", got)
	}
	if Get("stale") == nil || Get("stale").service == "nop" {
		t.Error("expected Init to drop loggers registered before it")
	}
}

func TestWithLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "error", Format: "json"}, "svc", &buf)

	l.WithLevel("debug").Debug("visible")
	l.WithLevel("nonsense").Debug("hidden")
	if !strings.Contains(buf.String(), "visible") || strings.Contains(buf.String(), "hidden") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestSetGlobalLogger(t *testing.T) {
	l := NewDefault("custom")
	SetGlobalLogger(l)
	if GetGlobalLogger() != l {
		t.Error("expected SetGlobalLogger to set the global logger")
	}
}

func TestGetReturnsRegisteredLogger(t *testing.T) {
	l := Nop()
	Register("registered", l)
	if Get("registered") != l {
		t.Error("expected registered logger to be returned")
	}
	if Get("unregistered") == nil {
		t.Error("expected fallback logger for unregistered name")
	}
}

func TestFields(t *testing.T) {
	f := Fields("a", 1, "b", "two", 3, "skipped", "dangling")
	if len(f) != 2 {
		t.Fatalf("expected 2 fields, got %d: %v", len(f), f)
	}
	if f["a"] != 1 || f["b"] != "two" {
		t.Errorf("unexpected fields %v", f)
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got %q", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected format 'console', got %q", cfg.Format)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected output 'stderr', got %q", cfg.Output)
	}
	if !cfg.Timestamp {
		t.Error("expected Timestamp to be true")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json"}, false},
		{"valid console", Config{Level: "debug", Format: "console"}, false},
		{"invalid level", Config{Level: "bad", Format: "json"}, true},
		{"invalid format", Config{Level: "info", Format: "xml"}, true},
		{"component override", Config{Level: "info", Format: "json", Components: map[string]string{"server": "debug"}}, false},
		{"invalid component level", Config{Level: "info", Format: "json", Components: map[string]string{"server": "chatty"}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
