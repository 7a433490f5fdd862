// Package observability provides structured logging and metrics for the
// OpenT1D server and its clients.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	requestIDKey contextKey = "requestID"
	componentKey contextKey = "component"
)

// redacted replaces the value of any attribute whose key names a password.
const redacted = "[REDACTED]"

// Logger is the structured logger shared by the server, the scraper and the
// settings clients.
type Logger interface {
	// Debug logs at debug level.
	Debug(msg string, args ...any)
	// Info logs at info level.
	Info(msg string, args ...any)
	// Warn logs at warning level.
	Warn(msg string, args ...any)
	// Error logs at error level.
	Error(msg string, args ...any)

	// DebugContext logs at debug level, adding request_id and component from ctx.
	DebugContext(ctx context.Context, msg string, args ...any)
	// InfoContext logs at info level, adding request_id and component from ctx.
	InfoContext(ctx context.Context, msg string, args ...any)
	// WarnContext logs at warning level, adding request_id and component from ctx.
	WarnContext(ctx context.Context, msg string, args ...any)
	// ErrorContext logs at error level, adding request_id and component from ctx.
	ErrorContext(ctx context.Context, msg string, args ...any)

	// With returns a Logger that adds args to every entry.
	With(args ...any) Logger
	// WithComponent returns a Logger with the component field set.
	WithComponent(name string) Logger

	// Slog returns the underlying *slog.Logger, e.g. for http.Server.ErrorLog.
	Slog() *slog.Logger
}

// Config holds configuration for the logger.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Format is the output format (json, text).
	Format string
	// Output is the destination for logs (defaults to os.Stdout).
	Output io.Writer
	// AddSource adds source file and line to log entries.
	AddSource bool
}

// DefaultConfig logs JSON at info level to stdout.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stdout}
}

// ConfigFromEnv reads OPENT1D_LOG_LEVEL, OPENT1D_LOG_FORMAT and
// OPENT1D_LOG_SOURCE on top of DefaultConfig.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if level := os.Getenv("OPENT1D_LOG_LEVEL"); level != "" {
		cfg.Level = level
	}
	if format := os.Getenv("OPENT1D_LOG_FORMAT"); format != "" {
		cfg.Format = format
	}
	switch strings.ToLower(os.Getenv("OPENT1D_LOG_SOURCE")) {
	case "1", "true", "yes":
		cfg.AddSource = true
	}
	return cfg
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger {
	return &slogLogger{l: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// Err returns a structured attribute for err, or an empty attribute when nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// NewLogger builds a Logger from cfg. Attributes whose key contains
// "password" are always written as [REDACTED].
func NewLogger(cfg Config) Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: redactPasswords,
	}
	var h slog.Handler = slog.NewJSONHandler(out, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(out, opts)
	}
	return &slogLogger{l: slog.New(h)}
}

// NewLoggerFromSlog wraps l, or slog.Default() when l is nil.
func NewLoggerFromSlog(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func redactPasswords(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindGroup && strings.Contains(strings.ToLower(a.Key), "password") {
		return slog.String(a.Key, redacted)
	}
	return a
}

type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func (s *slogLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	s.logContext(ctx, slog.LevelDebug, msg, args)
}

func (s *slogLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	s.logContext(ctx, slog.LevelInfo, msg, args)
}

func (s *slogLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	s.logContext(ctx, slog.LevelWarn, msg, args)
}

func (s *slogLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	s.logContext(ctx, slog.LevelError, msg, args)
}

func (s *slogLogger) logContext(ctx context.Context, level slog.Level, msg string, args []any) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.l.Log(ctx, level, msg, contextFields(ctx, args)...)
}

func (s *slogLogger) With(args ...any) Logger {
	return &slogLogger{l: s.l.With(args...)}
}

func (s *slogLogger) WithComponent(name string) Logger {
	return s.With("component", name)
}

func (s *slogLogger) Slog() *slog.Logger {
	return s.l
}

// contextFields appends request_id and component from ctx to args.
func contextFields(ctx context.Context, args []any) []any {
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		args = append(args, "request_id", reqID)
	}
	if component := ComponentFromContext(ctx); component != "" {
		args = append(args, "component", component)
	}
	return args
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithComponent stores the component name in the context.
func WithComponent(ctx context.Context, component string) context.Context {
	if component == "" {
		return ctx
	}
	return context.WithValue(ctx, componentKey, component)
}

// ComponentFromContext retrieves the component name from context.
func ComponentFromContext(ctx context.Context) string {
	return stringValue(ctx, componentKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// FromContext returns l with the request ID and component from ctx attached
// to every entry.
func FromContext(ctx context.Context, l Logger) Logger {
	if l == nil {
		l = NewLogger(DefaultConfig())
	}
	if ctx == nil {
		return l
	}
	if args := contextFields(ctx, nil); len(args) > 0 {
		return l.With(args...)
	}
	return l
}
