package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		level string
		want  bool
	}{
		{"info logs info", Config{Level: "info"}, "info", true},
		{"info drops debug", Config{Level: "info"}, "debug", false},
		{"debug logs debug", Config{Level: "debug"}, "debug", true},
		{"error drops warn", Config{Level: "error"}, "warn", false},
		{"warning alias", Config{Level: "warning"}, "warn", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.cfg.Output = buf
			logger := NewLogger(tt.cfg)
			switch tt.level {
			case "debug":
				logger.Debug("scrape finished")
			case "info":
				logger.Info("scrape finished")
			case "warn":
				logger.Warn("scrape finished")
			case "error":
				logger.Error("scrape finished")
			}
			if got := strings.Contains(buf.String(), "scrape finished"); got != tt.want {
				t.Fatalf("expected presence=%v, output=%s", tt.want, buf.String())
			}
		})
	}
}

func TestLoggerJSONContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: "info", Format: "json", Output: buf}).WithComponent("scraper")

	ctx := WithRequestID(context.Background(), "req-1")
	logger.InfoContext(ctx, "settings saved", "region", "eu")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if entry["request_id"] != "req-1" || entry["component"] != "scraper" || entry["region"] != "eu" {
		t.Fatalf("missing fields: %v", entry)
	}
}

func TestLoggerTextFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	NewLogger(Config{Level: "info", Format: "text", Output: buf}).Info("hello", Err(errors.New("boom")))
	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "error=boom") {
		t.Fatalf("unexpected text output: %s", buf.String())
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OPENT1D_LOG_LEVEL", "debug")
	t.Setenv("OPENT1D_LOG_FORMAT", "text")
	cfg := ConfigFromEnv()
	if cfg.Level != "debug" || cfg.Format != "text" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestRequestIDAndComponentContext(t *testing.T) {
	if RequestIDFromContext(nil) != "" || ComponentFromContext(nil) != "" { //nolint:staticcheck
		t.Fatalf("nil context should yield empty values")
	}
	ctx := WithRequestID(context.Background(), "")
	if RequestIDFromContext(ctx) != "" {
		t.Fatalf("empty request id should not be stored")
	}
	ctx = WithComponent(WithRequestID(ctx, "abc"), "graph")
	if RequestIDFromContext(ctx) != "abc" || ComponentFromContext(ctx) != "graph" {
		t.Fatalf("context round trip failed")
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	base := NewLogger(Config{Level: "info", Output: buf})
	FromContext(WithRequestID(context.Background(), "r-9"), base).Info("x")
	if !strings.Contains(buf.String(), `"request_id":"r-9"`) {
		t.Fatalf("request id missing: %s", buf.String())
	}
	if FromContext(context.Background(), nil) == nil {
		t.Fatalf("expected default logger")
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Error("ignored")
	if l.Slog() == nil {
		t.Fatalf("expected slog logger")
	}
	if Err(nil).Key != "" {
		t.Fatalf("nil error should give empty attr")
	}
}

func TestLoggerRedactsPasswords(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		t.Run(format, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := NewLogger(Config{Level: "info", Format: format, Output: buf}).With("libreLinkUpPassword", "hunter2")
			logger.InfoContext(context.Background(), "settings saved", "password", "hunter2", "username", "a@b.c")

			out := buf.String()
			if strings.Contains(out, "hunter2") {
				t.Fatalf("password leaked: %s", out)
			}
			if strings.Count(out, redacted) != 2 || !strings.Contains(out, "a@b.c") {
				t.Fatalf("unexpected output: %s", out)
			}
		})
	}
}

func TestConfigFromEnvSource(t *testing.T) {
	t.Setenv("OPENT1D_LOG_SOURCE", "true")
	if !ConfigFromEnv().AddSource {
		t.Fatalf("expected AddSource from OPENT1D_LOG_SOURCE")
	}
	t.Setenv("OPENT1D_LOG_SOURCE", "")
	if ConfigFromEnv().AddSource {
		t.Fatalf("AddSource should default to false")
	}
}
